package ingest

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Consumer].
// Options are passed to [New] and applied before [Consumer.Init] is called.
type Option func(*Options)

// Options holds the resolved configuration for a [Consumer].
// All fields are set to sensible defaults by [New]; use With* functions to
// override individual values.
type Options struct {
	visibilityTimeoutSeconds   int32
	receiveMaxNumberOfMessages int32
	receiveWaitTimeSeconds     int32
	apiMaxRetryAttempts        int
	apiMaxRetryBackoffDelay    time.Duration
	concurrency                int
	sqsAPI                     API // Optional: injected SQS client for testing
}

func newOptions() *Options {
	return &Options{
		visibilityTimeoutSeconds:   30,
		receiveMaxNumberOfMessages: 10,
		receiveWaitTimeSeconds:     20,
		apiMaxRetryAttempts:        5,
		apiMaxRetryBackoffDelay:    10 * time.Second,
		concurrency:                4,
	}
}

func (o *Options) validate() error {
	if o.visibilityTimeoutSeconds < 10 || o.visibilityTimeoutSeconds > 3600 {
		return errors.New("SQS message visibility timeout must be between 10 seconds and 1 hour")
	}

	if o.receiveMaxNumberOfMessages < 1 || o.receiveMaxNumberOfMessages > 10 {
		return errors.New("max number of messages per SQS receive must be between 1 and 10")
	}

	if o.receiveWaitTimeSeconds < 3 || o.receiveWaitTimeSeconds > 20 {
		return errors.New("SQS receive wait time must be between 3 and 20 seconds")
	}

	if o.apiMaxRetryAttempts < 0 || o.apiMaxRetryAttempts > 10 {
		return errors.New("max SQS API retry attempts must be between 0 and 10")
	}

	if o.apiMaxRetryBackoffDelay < 1*time.Second || o.apiMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max SQS API retry backoff delay must be between 1 and 30 seconds")
	}

	if o.concurrency < 1 || o.concurrency > 64 {
		return errors.New("concurrency must be between 1 and 64")
	}

	return nil
}

// WithVisibilityTimeout sets the visibility timeout applied to each received
// message. Must be between 10 and 3600 seconds. Default: 30.
func WithVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.visibilityTimeoutSeconds = seconds
	}
}

// WithReceiveMaxNumberOfMessages sets the maximum number of messages
// returned by a single ReceiveMessage API call. Must be between 1 and 10.
// Default: 10.
func WithReceiveMaxNumberOfMessages(n int32) Option {
	return func(o *Options) {
		o.receiveMaxNumberOfMessages = n
	}
}

// WithReceiveWaitTimeSeconds sets the long-poll wait duration for each
// ReceiveMessage API call. Longer values reduce empty responses and API
// costs. Must be between 3 and 20 seconds. Default: 20.
func WithReceiveWaitTimeSeconds(seconds int32) Option {
	return func(o *Options) {
		o.receiveWaitTimeSeconds = seconds
	}
}

// WithAPIMaxRetryAttempts sets the maximum number of retry attempts for
// failed SQS API calls. Must be between 0 and 10. Default: 5.
func WithAPIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.apiMaxRetryAttempts = n
	}
}

// WithAPIMaxRetryBackoffDelay sets the maximum backoff delay between
// consecutive SQS API retry attempts. Must be between 1 second and 30
// seconds. Default: 10 seconds.
func WithAPIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.apiMaxRetryBackoffDelay = d
	}
}

// WithConcurrency sets the number of messages processed in parallel per
// receive batch. Must be between 1 and 64. Default: 4.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.concurrency = n
	}
}

// WithAPI replaces the default AWS SQS client with a custom implementation
// of the [API] interface. This option is intended for testing with mock or
// stub clients.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.sqsAPI = api
	}
}
