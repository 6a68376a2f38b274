package creds

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
)

// Attributes are the caller's account attributes held by the identity
// provider. RoleARN, ExternalID and AccountID are custom attributes the
// tenant configures at onboarding; any of them may be absent.
type Attributes struct {
	Subject    string
	Email      string
	RoleARN    string
	ExternalID string
	AccountID  string
}

// IdentityProvider resolves a caller's access token to their account
// attributes.
type IdentityProvider interface {
	Attributes(ctx context.Context, accessToken string) (*Attributes, error)
}

// CognitoAPI is the subset of the Cognito Identity Provider client surface
// the provider uses. It is satisfied by *cognitoidentityprovider.Client and
// by mocks in tests.
type CognitoAPI interface {
	GetUser(ctx context.Context, params *cognitoidentityprovider.GetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error)
}

// CognitoProvider fetches user attributes from a Cognito user pool via the
// GetUser API, authenticating with the caller's own access token.
type CognitoProvider struct {
	client CognitoAPI
}

// CognitoOption is a functional option for configuring a [CognitoProvider].
type CognitoOption func(*CognitoProvider)

// WithCognitoAPI sets the Cognito client. This is useful for injecting mocks
// in tests.
func WithCognitoAPI(api CognitoAPI) CognitoOption {
	return func(p *CognitoProvider) {
		p.client = api
	}
}

// NewCognitoProvider creates a provider from the given AWS config. endpoint,
// when non-empty, overrides the region-resolved Cognito endpoint (useful
// against local stacks).
func NewCognitoProvider(awsCfg *aws.Config, endpoint string, opts ...CognitoOption) *CognitoProvider {
	p := &CognitoProvider{}

	for _, o := range opts {
		o(p)
	}

	if p.client == nil {
		p.client = cognitoidentityprovider.NewFromConfig(*awsCfg, func(o *cognitoidentityprovider.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
	}

	return p
}

// Attributes implements [IdentityProvider]. The GetUser call authenticates
// with the caller's access token, so an expired or revoked token fails here
// rather than at the STS hops.
func (c *CognitoProvider) Attributes(ctx context.Context, accessToken string) (*Attributes, error) {
	output, err := c.client.GetUser(ctx, &cognitoidentityprovider.GetUserInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}

	attrs := &Attributes{}

	for _, attr := range output.UserAttributes {
		switch aws.ToString(attr.Name) {
		case "sub":
			attrs.Subject = aws.ToString(attr.Value)
		case "email":
			attrs.Email = aws.ToString(attr.Value)
		case "custom:sts_role_arn":
			attrs.RoleARN = aws.ToString(attr.Value)
		case "custom:sts_external_id":
			attrs.ExternalID = aws.ToString(attr.Value)
		case "custom:aws_account_id":
			attrs.AccountID = aws.ToString(attr.Value)
		}
	}

	return attrs, nil
}
