package dynamodb

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client]. Use [Option] functions
// (such as [WithDefaultPageSize]) to customise the defaults.
type Options struct {
	defaultPageSize int32
	dynamoDBAPI     API
	clock           func() time.Time
}

func newOptions() *Options {
	return &Options{
		defaultPageSize: 30,
		clock:           time.Now,
	}
}

func (o *Options) validate() error {
	if o.defaultPageSize < 1 || o.defaultPageSize > 1000 {
		return errors.New("default page size must be between 1 and 1000")
	}

	return nil
}

// WithDefaultPageSize sets the page size used by [Client.QueryEvents] when
// the query spec does not name one. The default is 30. Must be between 1
// and 1000.
func WithDefaultPageSize(n int32) Option {
	return func(o *Options) {
		o.defaultPageSize = n
	}
}

// WithAPI sets a custom [API] implementation. This is useful when a custom
// DynamoDB configuration is required, or for injecting mocks in tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}

// WithClock sets a custom clock function used when stamping updatedAt on
// reject updates. Defaults to [time.Now]. This is useful for controlling
// time in tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}
