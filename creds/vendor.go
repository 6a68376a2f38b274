package creds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/mailtrack/mailtrack/metrics"
)

var (
	// ErrMissingAttributes is returned when the caller's identity record
	// lacks the tenant role ARN, external ID or account ID needed to run
	// the assumption chain.
	ErrMissingAttributes = errors.New("missing tenant credential attributes")

	// ErrAssumeRoleFailed is returned when either hop of the role
	// assumption chain fails. The call is not retried.
	ErrAssumeRoleFailed = errors.New("role assumption failed")
)

const (
	brokerSessionName = "rbac"
	tenantSessionName = "ses-access"
)

// Credentials are one set of short-lived AWS credentials for a tenant.
type Credentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
}

// STSAPI is the subset of the STS client surface the vendor uses. It is
// satisfied by *sts.Client and by mocks in tests.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Vendor orchestrates the two-hop role assumption chain with cache-backed
// memoization. Safe for concurrent use.
type Vendor struct {
	broker        STSAPI
	tenantSTS     func(Credentials) STSAPI
	cache         Cache
	idp           IdentityProvider
	brokerRoleARN string
	ttl           time.Duration
	logger        *slog.Logger
}

// Option is a functional option for configuring a [Vendor].
type Option func(*Vendor)

// WithSTSAPI sets a custom [STSAPI] used for the broker hop. This is useful
// for injecting mocks in tests.
func WithSTSAPI(api STSAPI) Option {
	return func(v *Vendor) {
		v.broker = api
	}
}

// WithTenantSTS sets the factory building the STS client for the tenant
// hop from the broker hop's credentials. This is useful for injecting mocks
// in tests.
func WithTenantSTS(factory func(Credentials) STSAPI) Option {
	return func(v *Vendor) {
		v.tenantSTS = factory
	}
}

// WithTTL sets the cache TTL applied to vended credentials. The default is
// one hour, matching the lifetime of the credentials themselves.
func WithTTL(ttl time.Duration) Option {
	return func(v *Vendor) {
		v.ttl = ttl
	}
}

// New creates a Vendor. brokerRoleARN names the fixed intermediate role the
// service may assume with its own ambient credentials; the tenant role for
// the second hop comes from the caller's identity attributes per request.
func New(awsCfg *aws.Config, cache Cache, idp IdentityProvider, brokerRoleARN string, logger *slog.Logger, opts ...Option) *Vendor {
	v := &Vendor{
		cache:         cache,
		idp:           idp,
		brokerRoleARN: brokerRoleARN,
		ttl:           time.Hour,
		logger:        logger.With("component", "creds"),
	}

	for _, o := range opts {
		o(v)
	}

	if v.broker == nil {
		v.broker = sts.NewFromConfig(*awsCfg)
	}

	if v.tenantSTS == nil {
		v.tenantSTS = func(c Credentials) STSAPI {
			cfg := awsCfg.Copy()
			cfg.Credentials = awscreds.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken)

			return sts.NewFromConfig(cfg)
		}
	}

	return v
}

// Vend returns tenant-scoped credentials for the caller identified by the
// given authorization header. A cache hit returns immediately; a miss runs
// the full chain once and memoizes the result. Failure at any step is fatal
// for the call and not retried.
func (v *Vendor) Vend(ctx context.Context, authorization string) (*Credentials, error) {
	token, err := BearerToken(authorization)
	if err != nil {
		return nil, err
	}

	subject, err := SubjectFromToken(token)
	if err != nil {
		return nil, err
	}

	// Read-through: the cache owns expiry, so a present entry is valid by
	// definition. A cache read failure is treated as a miss — the chain
	// below can always rebuild the credentials.
	cached, hit, err := v.cache.Get(ctx, subject)
	if err != nil {
		v.logger.Warn("credential cache read failed", "error", err)
	}

	if hit {
		metrics.CredentialCacheHitsTotal.Inc()
		return cached, nil
	}

	metrics.CredentialCacheMissesTotal.Inc()

	attrs, err := v.idp.Attributes(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch caller attributes: %w", err)
	}

	if attrs.RoleARN == "" || attrs.ExternalID == "" || attrs.AccountID == "" {
		return nil, fmt.Errorf("%w: role ARN, external ID and account ID are all required", ErrMissingAttributes)
	}

	brokerCreds, err := v.assume(ctx, v.broker, v.brokerRoleARN, brokerSessionName, "")
	if err != nil {
		return nil, fmt.Errorf("%w: broker hop: %w", ErrAssumeRoleFailed, err)
	}

	// The external ID scopes the second hop to the caller's tenant role;
	// without it the broker hop could be replayed against any role that
	// trusts the broker.
	tenantCreds, err := v.assume(ctx, v.tenantSTS(*brokerCreds), attrs.RoleARN, tenantSessionName, attrs.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant hop: %w", ErrAssumeRoleFailed, err)
	}

	if err := v.cache.Set(ctx, subject, tenantCreds, v.ttl); err != nil {
		// The credentials are still valid; losing the memoization only
		// costs the next request another chain.
		v.logger.Warn("credential cache write failed", "subject", subject, "error", err)
	}

	return tenantCreds, nil
}

func (v *Vendor) assume(ctx context.Context, client STSAPI, roleARN, sessionName, externalID string) (*Credentials, error) {
	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionName),
	}

	if externalID != "" {
		input.ExternalId = aws.String(externalID)
	}

	output, err := client.AssumeRole(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to assume role %s: %w", roleARN, err)
	}

	if output.Credentials == nil || aws.ToString(output.Credentials.AccessKeyId) == "" {
		return nil, fmt.Errorf("role %s returned no credentials", roleARN)
	}

	return &Credentials{
		AccessKeyID:     aws.ToString(output.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(output.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(output.Credentials.SessionToken),
	}, nil
}
