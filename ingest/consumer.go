// Package ingest consumes mail lifecycle notifications from an SQS queue
// and feeds them through the event processor.
//
// The queue sits behind an event bus rule, so each message body is either a
// bus envelope with the notification under "detail" or the bare notification
// JSON; both forms are accepted. Messages are deleted after every processing
// attempt, successful or not: a notification that cannot be processed now
// will not process better on redelivery, and the status store tolerates
// missing intermediate events.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mailtrack/mailtrack/event"
	"github.com/mailtrack/mailtrack/metrics"
)

// Processor handles one decoded lifecycle event. It is satisfied by
// [github.com/mailtrack/mailtrack/processor.Processor].
type Processor interface {
	Process(ctx context.Context, ev *event.Event)
}

// Consumer reads lifecycle notifications from an SQS queue and dispatches
// them to a [Processor].
//
// Create a Consumer with [New], then call [Consumer.Init] once before
// [Consumer.Run]. Init is not thread-safe; Run is safe to call from a single
// goroutine after Init returns.
type Consumer struct {
	client      API
	queueName   string
	queueURL    string
	awsCfg      *aws.Config
	opts        *Options
	processor   Processor
	logger      *slog.Logger
	initialized bool
}

// New creates a Consumer configured to consume from the named SQS queue.
//
// Functional options may be passed to override defaults (see With*
// functions). New does not connect to AWS; call [Consumer.Init] to resolve
// the queue URL.
func New(awsCfg *aws.Config, queueName string, processor Processor, logger *slog.Logger, opts ...Option) *Consumer {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Consumer{
		awsCfg:    awsCfg,
		queueName: queueName,
		opts:      options,
		processor: processor,
		logger:    logger.With("component", "ingest", "queue_name", queueName),
	}
}

// Init initializes the Consumer: validates options and resolves the queue
// URL via GetQueueUrl. It returns the receiver so that initialization can be
// chained with [New]:
//
//	consumer, err := ingest.New(&awsCfg, "mail-events", proc, logger).Init(ctx)
//
// Init is idempotent — subsequent calls on an already-initialized Consumer
// are no-ops.
func (c *Consumer) Init(ctx context.Context) (*Consumer, error) {
	if c.initialized {
		return c, nil
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest options: %w", err)
	}

	// Use injected client if provided (for testing), otherwise create real client
	if c.opts.sqsAPI != nil {
		c.client = c.opts.sqsAPI
	} else {
		c.client = sqs.NewFromConfig(*c.awsCfg, func(o *sqs.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, c.opts.apiMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, c.opts.apiMaxRetryAttempts)
		})
	}

	resp, err := c.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(c.queueName)})
	if err != nil {
		return nil, fmt.Errorf("failed to get SQS queue URL for %s: %w", c.queueName, err)
	}

	c.queueURL = aws.ToString(resp.QueueUrl)
	c.initialized = true

	return c, nil
}

// Run reads messages from the queue in a loop and processes each batch with
// up to the configured concurrency. On a transient receive error it logs the
// failure and retries after a 5-second backoff.
//
// Run blocks until ctx is cancelled, at which point it returns ctx.Err().
// [Consumer.Init] must have been called successfully before Run is invoked.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.initialized {
		return errors.New("ingest consumer not initialized")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			err := c.read(ctx)

			// No error means we keep reading
			if err == nil {
				continue
			}

			// If the context was cancelled, return without logging an error
			if ctx.Err() != nil {
				return ctx.Err()
			}

			// The delay prevents hammering the SQS API (and excessive
			// logging) in case of persistent errors
			c.logger.Error("failed to read queue", "error", err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func (c *Consumer) read(ctx context.Context) error {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: c.opts.receiveMaxNumberOfMessages,
		VisibilityTimeout:   c.opts.visibilityTimeoutSeconds,
		WaitTimeSeconds:     c.opts.receiveWaitTimeSeconds,
	}

	output, err := c.client.ReceiveMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to receive SQS messages: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.concurrency)

	for _, m := range output.Messages {
		g.Go(func() error {
			c.handle(gctx, aws.ToString(m.MessageId), aws.ToString(m.ReceiptHandle), []byte(aws.ToString(m.Body)))
			return nil
		})
	}

	return g.Wait()
}

// handle decodes and processes one message, then deletes it. Processing
// failures are logged by the processor itself and never block deletion.
func (c *Consumer) handle(ctx context.Context, messageID, receiptHandle string, body []byte) {
	logger := c.logger.With("message_id", messageID, "correlation_id", uuid.NewString())

	defer c.deleteMessage(messageID, receiptHandle)

	ev, err := event.Decode(unwrap(body))
	if err != nil {
		metrics.EventsMalformedTotal.Inc()
		logger.Warn("dropping malformed notification", "error", err)

		return
	}

	metrics.EventsReceivedTotal.WithLabelValues(string(ev.Type)).Inc()
	logger.Debug("notification received", "event_type", ev.Type, "recipient", ev.Recipient())

	timer := time.Now()
	c.processor.Process(ctx, ev)
	metrics.EventProcessingDuration.Observe(time.Since(timer).Seconds())
}

// unwrap extracts the notification payload from a bus envelope. Bodies
// without a "detail" object are returned as-is.
func unwrap(body []byte) []byte {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}

	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		return envelope.Detail
	}

	return body
}

// deleteMessage deletes the SQS message with the given receipt handle.
// It uses context.Background() with a short timeout because the delete must
// complete regardless of the caller's context state.
func (c *Consumer) deleteMessage(messageID, receiptHandle string) {
	input := &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: &receiptHandle,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := c.client.DeleteMessage(ctx, input); err != nil {
		c.logger.Error("failed to delete SQS message", "message_id", messageID, "error", err)
		return
	}

	c.logger.Debug("SQS message deleted", "message_id", messageID)
}
