// Package mailer performs the outbound send call against SES v2 using
// tenant credentials vended per request.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/mailtrack/mailtrack/creds"
)

// API is the subset of the SES v2 client surface the sender uses. It is
// satisfied by *sesv2.Client and by mocks in tests.
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Result is the upstream outcome of one send call. StatusCode is the HTTP
// status SES answered with, proxied to the API caller.
type Result struct {
	MessageID  string `json:"messageId"`
	StatusCode int    `json:"statusCode"`
}

// Sender sends mail through SES v2. Because each request runs under a
// different tenant's credentials, a fresh client is built per call from the
// vended credentials.
type Sender struct {
	factory func(creds.Credentials) API
}

// Option is a functional option for configuring a [Sender].
type Option func(*Sender)

// WithAPIFactory sets the factory building the SES client from vended
// credentials. This is useful for injecting mocks in tests.
func WithAPIFactory(factory func(creds.Credentials) API) Option {
	return func(s *Sender) {
		s.factory = factory
	}
}

// New creates a Sender using the given base AWS config for region and
// endpoint resolution; credentials are overridden per call.
func New(awsCfg *aws.Config, opts ...Option) *Sender {
	s := &Sender{}

	for _, o := range opts {
		o(s)
	}

	if s.factory == nil {
		s.factory = func(c creds.Credentials) API {
			cfg := awsCfg.Copy()
			cfg.Credentials = awscreds.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken)

			return sesv2.NewFromConfig(cfg, func(o *sesv2.Options) {
				o.APIOptions = append(o.APIOptions, addStatusCapture)
			})
		}
	}

	return s
}

// Send submits the mail under the given tenant credentials and returns the
// upstream message identifier and status code.
func (s *Sender) Send(ctx context.Context, c *creds.Credentials, input *sesv2.SendEmailInput) (*Result, error) {
	if c == nil {
		return nil, errors.New("credentials cannot be nil")
	}

	output, err := s.factory(*c).SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("send failed: %w", err)
	}

	return &Result{
		MessageID:  aws.ToString(output.MessageId),
		StatusCode: statusFromMetadata(output.ResultMetadata),
	}, nil
}

// statusKey keys the captured upstream status in the operation metadata.
type statusKey struct{}

// captureStatus copies the HTTP status code of the SES response into the
// operation metadata so Send can read it off the output.
var captureStatus = middleware.DeserializeMiddlewareFunc("CaptureHTTPStatus",
	func(ctx context.Context, in middleware.DeserializeInput, next middleware.DeserializeHandler) (middleware.DeserializeOutput, middleware.Metadata, error) {
		out, metadata, err := next.HandleDeserialize(ctx, in)

		if resp, ok := out.RawResponse.(*smithyhttp.Response); ok {
			metadata.Set(statusKey{}, resp.StatusCode)
		}

		return out, metadata, err
	})

func addStatusCapture(stack *middleware.Stack) error {
	return stack.Deserialize.Add(captureStatus, middleware.After)
}

// statusFromMetadata reads the captured status. A successful call that went
// through a mock without the capture middleware reports 200.
func statusFromMetadata(md middleware.Metadata) int {
	if status, ok := md.Get(statusKey{}).(int); ok {
		return status
	}

	return http.StatusOK
}
