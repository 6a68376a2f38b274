// Package processor implements the mail-lifecycle state machine: it maps
// each decoded event kind onto the status-store writes that record it.
//
// The send/delivery chain shares one row per (recipient, send timestamp):
// SENT creates it, DELIVERED / BOUNCED / DELIVERY_DELAYED / REJECTED update
// it in place. Opens, clicks, complaints, rendering failures and
// subscription changes are standalone rows keyed by their own timestamps.
// Bounces and complaints additionally append the recipient to the
// suppression list.
package processor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mailtrack/mailtrack/dynamodb"
	"github.com/mailtrack/mailtrack/event"
)

// Store is the status-store surface the processor writes through. It is
// satisfied by [github.com/mailtrack/mailtrack/dynamodb.Client].
type Store interface {
	PutEvent(ctx context.Context, record *dynamodb.EventRecord, ifAbsent bool) error
	UpdateStatus(ctx context.Context, update dynamodb.StatusUpdate) error
	PutSuppression(ctx context.Context, record *dynamodb.SuppressionRecord) error
}

// Processor dispatches decoded lifecycle events to the status store.
//
// Failure semantics: every store call failure is logged and swallowed, and
// sibling writes for the same event are still attempted. Process never
// reports failure to its caller — the ingestion entry point must not feed a
// redelivery storm over a partially-applied event. This trades potential
// silent data loss on store unavailability for availability.
type Processor struct {
	store  Store
	logger *slog.Logger
}

// New creates a Processor writing through the given store.
func New(store Store, logger *slog.Logger) *Processor {
	return &Processor{
		store:  store,
		logger: logger.With("component", "processor"),
	}
}

// Process applies one decoded lifecycle event. The dispatch is exhaustive
// over the closed event union; [event.Decode] guarantees the kind is
// recognised before an event reaches here.
func (p *Processor) Process(ctx context.Context, ev *event.Event) {
	switch ev.Type {
	case event.TypeSend:
		p.handleSend(ctx, ev)
	case event.TypeDelivery:
		p.handleDelivery(ctx, ev)
	case event.TypeBounce:
		p.handleBounce(ctx, ev)
	case event.TypeComplaint:
		p.handleComplaint(ctx, ev)
	case event.TypeReject:
		p.handleReject(ctx, ev)
	case event.TypeOpen:
		p.handleOpen(ctx, ev)
	case event.TypeClick:
		p.handleClick(ctx, ev)
	case event.TypeRenderingFailure:
		p.handleRenderingFailure(ctx, ev)
	case event.TypeDeliveryDelay:
		p.handleDeliveryDelay(ctx, ev)
	case event.TypeSubscription:
		p.handleSubscription(ctx, ev)
	}
}

// record assembles the stored projection for a standalone row. An empty
// timestamp keys the row by the send timestamp, which is how SENT and
// RENDERING_FAILED rows join the recipient's lifecycle partition.
func record(ev *event.Event, timestamp string, fields map[string]string) *dynamodb.EventRecord {
	if timestamp == "" {
		timestamp = ev.Mail.Timestamp
	}

	return &dynamodb.EventRecord{
		Recipient:  ev.Recipient(),
		Status:     ev.Type.Status(),
		Timestamp:  timestamp,
		CampaignID: ev.CampaignID(),
		EmailTo:    ev.Mail.Destination,
		MessageID:  ev.Mail.MessageID,
		CreatedAt:  ev.Mail.Timestamp,
		Fields:     fields,
	}
}

func replyTo(ev *event.Event) string {
	if len(ev.Mail.CommonHeaders.ReplyTo) == 0 {
		return ""
	}

	return ev.Mail.CommonHeaders.ReplyTo[0]
}

func (p *Processor) handleSend(ctx context.Context, ev *event.Event) {
	rec := record(ev, "", map[string]string{
		"subject": ev.Mail.CommonHeaders.Subject,
		"replyTo": replyTo(ev),
	})

	p.put(ctx, ev, rec)
}

func (p *Processor) handleRenderingFailure(ctx context.Context, ev *event.Event) {
	fields := map[string]string{}

	if f := ev.RenderingFailure; f != nil {
		fields["reason"] = f.ErrorMessage
		fields["template_name"] = f.TemplateName
	}

	p.put(ctx, ev, record(ev, "", fields))
}

func (p *Processor) handleDelivery(ctx context.Context, ev *event.Event) {
	var ts string
	if ev.Delivery != nil {
		ts = ev.Delivery.Timestamp
	}

	// A delivery without a prior send row would fabricate state, so the
	// update demands an existing row and is dropped (logged) otherwise.
	p.update(ctx, ev, dynamodb.StatusUpdate{
		Recipient:       ev.Recipient(),
		SendTimestamp:   ev.Mail.Timestamp,
		NewStatus:       event.StatusDelivered,
		SyncStatusIndex: true,
		EventTimestamp:  ts,
		UpdatedAt:       ts,
		RequireExists:   true,
	})
}

func (p *Processor) handleDeliveryDelay(ctx context.Context, ev *event.Event) {
	var ts string
	if ev.DeliveryDelay != nil {
		ts = ev.DeliveryDelay.Timestamp
	}

	// Non-terminal: the status index keeps the row under its prior status
	// so a later DELIVERED or BOUNCED lands normally.
	p.update(ctx, ev, dynamodb.StatusUpdate{
		Recipient:     ev.Recipient(),
		SendTimestamp: ev.Mail.Timestamp,
		NewStatus:     event.StatusDeliveryDelayed,
		UpdatedAt:     ts,
		RequireExists: true,
	})
}

func (p *Processor) handleBounce(ctx context.Context, ev *event.Event) {
	bounce := ev.Bounce
	if bounce == nil {
		bounce = &event.Bounce{}
	}

	// A bounce may arrive before, or in place of, the SENT record on some
	// delivery paths, so the update does not require an existing row. The
	// update and the suppression insert are attempted independently.
	p.update(ctx, ev, dynamodb.StatusUpdate{
		Recipient:       ev.Recipient(),
		SendTimestamp:   ev.Mail.Timestamp,
		NewStatus:       event.StatusBounced,
		SyncStatusIndex: true,
		UpdatedAt:       bounce.Timestamp,
		Fields: map[string]string{
			"bounceType": bounce.BounceType,
			"reason":     bounce.BounceSubType,
		},
	})

	p.suppress(ctx, ev, &dynamodb.SuppressionRecord{
		Recipient: ev.Recipient(),
		Timestamp: bounce.Timestamp,
		Status:    event.StatusBounced,
		Reason:    bounce.BounceSubType,
		MessageID: ev.Mail.MessageID,
		CreatedAt: ev.Mail.Timestamp,
		Fields: map[string]string{
			"bounceType": bounce.BounceType,
			"feedbackId": bounce.FeedbackID,
			"subject":    ev.Mail.CommonHeaders.Subject,
			"replyTo":    replyTo(ev),
		},
	})
}

func (p *Processor) handleComplaint(ctx context.Context, ev *event.Event) {
	complaint := ev.Complaint
	if complaint == nil {
		complaint = &event.Complaint{}
	}

	p.put(ctx, ev, record(ev, complaint.Timestamp, map[string]string{
		"subject": ev.Mail.CommonHeaders.Subject,
		"reason":  complaint.ComplaintFeedbackType,
	}))

	p.suppress(ctx, ev, &dynamodb.SuppressionRecord{
		Recipient: ev.Recipient(),
		Timestamp: complaint.Timestamp,
		Status:    event.StatusComplained,
		Reason:    complaint.ComplaintFeedbackType,
		MessageID: ev.Mail.MessageID,
		CreatedAt: ev.Mail.Timestamp,
		Fields: map[string]string{
			"feedbackId": complaint.FeedbackID,
			"subject":    ev.Mail.CommonHeaders.Subject,
		},
	})
}

func (p *Processor) handleReject(ctx context.Context, ev *event.Event) {
	fields := map[string]string{}

	if ev.Reject != nil {
		fields["reason"] = ev.Reject.Reason
	}

	// UpdatedAt is left to the store clock: reject notifications carry no
	// timestamp of their own.
	p.update(ctx, ev, dynamodb.StatusUpdate{
		Recipient:     ev.Recipient(),
		SendTimestamp: ev.Mail.Timestamp,
		NewStatus:     event.StatusRejected,
		Fields:        fields,
	})
}

func (p *Processor) handleOpen(ctx context.Context, ev *event.Event) {
	var ts string
	if ev.Open != nil {
		ts = ev.Open.Timestamp
	}

	p.put(ctx, ev, record(ev, ts, map[string]string{
		"subject": ev.Mail.CommonHeaders.Subject,
	}))
}

func (p *Processor) handleClick(ctx context.Context, ev *event.Event) {
	fields := map[string]string{
		"subject": ev.Mail.CommonHeaders.Subject,
	}

	var ts string
	if click := ev.Click; click != nil {
		ts = click.Timestamp
		fields["reason"] = click.Link
		fields["linkTags"] = strings.Join(click.LinkTags, ",")
	}

	p.put(ctx, ev, record(ev, ts, fields))
}

func (p *Processor) handleSubscription(ctx context.Context, ev *event.Event) {
	fields := map[string]string{}

	var ts string
	if sub := ev.Subscription; sub != nil {
		ts = sub.Timestamp
		fields["contactList"] = sub.ContactList
	}

	p.put(ctx, ev, record(ev, ts, fields))
}

func (p *Processor) put(ctx context.Context, ev *event.Event, rec *dynamodb.EventRecord) {
	if err := p.store.PutEvent(ctx, rec, false); err != nil {
		p.logFailure(ev, "put event", err)
	}
}

func (p *Processor) update(ctx context.Context, ev *event.Event, update dynamodb.StatusUpdate) {
	if err := p.store.UpdateStatus(ctx, update); err != nil {
		p.logFailure(ev, "update status", err)
	}
}

func (p *Processor) suppress(ctx context.Context, ev *event.Event, rec *dynamodb.SuppressionRecord) {
	if err := p.store.PutSuppression(ctx, rec); err != nil {
		p.logFailure(ev, "put suppression", err)
	}
}

func (p *Processor) logFailure(ev *event.Event, op string, err error) {
	p.logger.Error("store write failed",
		"op", op,
		"event_type", string(ev.Type),
		"recipient", ev.Recipient(),
		"message_id", ev.Mail.MessageID,
		"error", err,
	)
}
