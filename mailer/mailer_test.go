package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sesv2types "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/mailtrack/mailtrack/creds"
)

type mockSES struct {
	sendEmailFunc func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

func (m *mockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	if m.sendEmailFunc != nil {
		return m.sendEmailFunc(ctx, params, optFns...)
	}
	return &sesv2.SendEmailOutput{}, nil
}

func testInput() *sesv2.SendEmailInput {
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String("noreply@example.com"),
		Destination:      &sesv2types.Destination{ToAddresses: []string{"user@example.com"}},
	}
}

func TestSend_Success(t *testing.T) {
	t.Parallel()
	var capturedInput *sesv2.SendEmailInput
	var usedCreds creds.Credentials
	mock := &mockSES{
		sendEmailFunc: func(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			capturedInput = params
			return &sesv2.SendEmailOutput{MessageId: aws.String("out-456")}, nil
		},
	}
	cfg := aws.Config{}
	sender := New(&cfg, WithAPIFactory(func(c creds.Credentials) API {
		usedCreds = c
		return mock
	}))

	result, err := sender.Send(context.Background(), &creds.Credentials{AccessKeyID: "AKIA"}, testInput())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.MessageID != "out-456" {
		t.Errorf("unexpected message ID %s", result.MessageID)
	}
	if result.StatusCode != 200 {
		t.Errorf("unexpected status code %d", result.StatusCode)
	}
	if usedCreds.AccessKeyID != "AKIA" {
		t.Errorf("expected the vended credentials to reach the factory, got %s", usedCreds.AccessKeyID)
	}
	if aws.ToString(capturedInput.FromEmailAddress) != "noreply@example.com" {
		t.Errorf("unexpected sender address %s", aws.ToString(capturedInput.FromEmailAddress))
	}
}

func TestSend_CarriesUpstreamStatus(t *testing.T) {
	t.Parallel()
	mock := &mockSES{
		sendEmailFunc: func(_ context.Context, _ *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			output := &sesv2.SendEmailOutput{MessageId: aws.String("out-456")}
			output.ResultMetadata.Set(statusKey{}, 200)
			return output, nil
		},
	}
	cfg := aws.Config{}
	sender := New(&cfg, WithAPIFactory(func(creds.Credentials) API { return mock }))

	result, err := sender.Send(context.Background(), &creds.Credentials{}, testInput())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.StatusCode != 200 {
		t.Errorf("expected the captured status to reach the result, got %d", result.StatusCode)
	}
}

func TestSend_NilCredentials(t *testing.T) {
	t.Parallel()
	cfg := aws.Config{}
	sender := New(&cfg, WithAPIFactory(func(creds.Credentials) API {
		t.Error("factory should not be called without credentials")
		return &mockSES{}
	}))

	_, err := sender.Send(context.Background(), nil, testInput())

	if err == nil {
		t.Error("expected error for nil credentials, got nil")
	}
}

func TestSend_UpstreamError(t *testing.T) {
	t.Parallel()
	mock := &mockSES{
		sendEmailFunc: func(_ context.Context, _ *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, errors.New("message rejected")
		},
	}
	cfg := aws.Config{}
	sender := New(&cfg, WithAPIFactory(func(creds.Credentials) API { return mock }))

	_, err := sender.Send(context.Background(), &creds.Credentials{}, testInput())

	if err == nil {
		t.Error("expected error, got nil")
	}
}
