// Package event defines the SES mail-lifecycle event union and its decoder.
//
// An event arrives as one JSON notification per delivery stage. The union is
// closed: every recognised kind is listed in [Type], and the detail field
// matching the kind is populated on [Event]. Unknown kinds and notifications
// missing their detail are rejected at decode time.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEvent is returned by [Decode] when the notification cannot be
// mapped onto a recognised lifecycle event. Callers are expected to log and
// drop; redelivery is the bus's concern, not ours.
var ErrMalformedEvent = errors.New("malformed mail event")

// Type discriminates the mail-lifecycle event union. The values are the
// literal eventType strings SES puts on the wire, including the space in
// "Rendering Failure".
type Type string

const (
	TypeSend             Type = "Send"
	TypeDelivery         Type = "Delivery"
	TypeBounce           Type = "Bounce"
	TypeComplaint        Type = "Complaint"
	TypeReject           Type = "Reject"
	TypeOpen             Type = "Open"
	TypeClick            Type = "Click"
	TypeRenderingFailure Type = "Rendering Failure"
	TypeDeliveryDelay    Type = "DeliveryDelay"
	TypeSubscription     Type = "Subscription"
)

// Status is the stored projection of an event kind, used as the status
// attribute and the status-index partition of every persisted row.
type Status string

const (
	StatusSent            Status = "SENT"
	StatusDelivered       Status = "DELIVERED"
	StatusBounced         Status = "BOUNCED"
	StatusComplained      Status = "COMPLAINED"
	StatusRejected        Status = "REJECTED"
	StatusOpened          Status = "OPENED"
	StatusClicked         Status = "CLICKED"
	StatusRenderingFailed Status = "RENDERING_FAILED"
	StatusDeliveryDelayed Status = "DELIVERY_DELAYED"
	StatusSubscribed      Status = "SUBSCRIBED"
)

// Status returns the stored status for the event's kind.
func (t Type) Status() Status {
	switch t {
	case TypeSend:
		return StatusSent
	case TypeDelivery:
		return StatusDelivered
	case TypeBounce:
		return StatusBounced
	case TypeComplaint:
		return StatusComplained
	case TypeReject:
		return StatusRejected
	case TypeOpen:
		return StatusOpened
	case TypeClick:
		return StatusClicked
	case TypeRenderingFailure:
		return StatusRenderingFailed
	case TypeDeliveryDelay:
		return StatusDeliveryDelayed
	case TypeSubscription:
		return StatusSubscribed
	}

	return ""
}

// CommonHeaders is the subset of parsed mail headers the tracker records.
type CommonHeaders struct {
	From    []string `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject,omitempty"`
	ReplyTo []string `json:"replyTo,omitempty"`
}

// Mail describes the message the event refers to. Every event kind carries
// one. Timestamp is the ISO-8601 send time and keys the lifecycle row for the
// send/delivery chain.
type Mail struct {
	Timestamp     string              `json:"timestamp"`
	MessageID     string              `json:"messageId"`
	Source        string              `json:"source"`
	Destination   []string            `json:"destination"`
	CommonHeaders CommonHeaders       `json:"commonHeaders"`
	Tags          map[string][]string `json:"tags,omitempty"`
}

// Bounce carries the bounce-specific detail fields.
type Bounce struct {
	BounceType    string `json:"bounceType"`
	BounceSubType string `json:"bounceSubType"`
	Timestamp     string `json:"timestamp"`
	FeedbackID    string `json:"feedbackId"`
}

// Complaint carries the complaint-specific detail fields.
type Complaint struct {
	Timestamp             string `json:"timestamp"`
	FeedbackID            string `json:"feedbackId"`
	ComplaintFeedbackType string `json:"complaintFeedbackType"`
}

// Delivery carries the delivery-specific detail fields.
type Delivery struct {
	Timestamp    string `json:"timestamp"`
	SMTPResponse string `json:"smtpResponse"`
}

// Reject carries the reject-specific detail fields.
type Reject struct {
	Reason string `json:"reason"`
}

// Open carries the open-tracking detail fields.
type Open struct {
	Timestamp string `json:"timestamp"`
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
}

// Click carries the click-tracking detail fields.
type Click struct {
	Timestamp string   `json:"timestamp"`
	IPAddress string   `json:"ipAddress"`
	Link      string   `json:"link"`
	LinkTags  []string `json:"linkTags,omitempty"`
}

// RenderingFailure carries the template-rendering failure detail fields.
type RenderingFailure struct {
	TemplateName string `json:"templateName"`
	ErrorMessage string `json:"errorMessage"`
}

// DeliveryDelay carries the delivery-delay detail fields.
type DeliveryDelay struct {
	Timestamp      string `json:"timestamp"`
	DelayType      string `json:"delayType"`
	ExpirationTime string `json:"expirationTime"`
}

// Subscription carries the subscription-change detail fields.
type Subscription struct {
	Timestamp   string `json:"timestamp"`
	ContactList string `json:"contactList"`
	Source      string `json:"source"`
}

// Event is one decoded mail-lifecycle notification. The detail field matching
// Type is populated ([Decode] enforces its presence); Send carries no detail
// beyond the mail object.
type Event struct {
	Type Type `json:"eventType"`
	Mail Mail `json:"mail"`

	Bounce           *Bounce           `json:"bounce,omitempty"`
	Complaint        *Complaint        `json:"complaint,omitempty"`
	Delivery         *Delivery         `json:"delivery,omitempty"`
	Reject           *Reject           `json:"reject,omitempty"`
	Open             *Open             `json:"open,omitempty"`
	Click            *Click            `json:"click,omitempty"`
	RenderingFailure *RenderingFailure `json:"failure,omitempty"`
	DeliveryDelay    *DeliveryDelay    `json:"deliveryDelay,omitempty"`
	Subscription     *Subscription     `json:"subscription,omitempty"`
}

// Recipient returns the canonical tracked recipient: the first destination
// address. Multi-recipient fan-out is not supported; one event tracks one
// recipient.
func (e *Event) Recipient() string {
	if len(e.Mail.Destination) == 0 {
		return ""
	}

	return e.Mail.Destination[0]
}

// CampaignID returns the campaign identifier from the message tags, or ""
// when the message was not tagged.
func (e *Event) CampaignID() string {
	vals := e.Mail.Tags["campaignId"]
	if len(vals) == 0 {
		return ""
	}

	return vals[0]
}

// Decode parses and validates a raw mail-lifecycle notification. It fails
// with an error wrapping [ErrMalformedEvent] when the event kind is
// unrecognised, the mail object is absent, the destination list is empty, or
// the detail object the kind requires is missing.
func Decode(raw []byte) (*Event, error) {
	// The mail key's presence is checked on the raw message: a sparse mail
	// object is valid, an absent one is not.
	var envelope struct {
		Mail json.RawMessage `json:"mail"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	if len(envelope.Mail) == 0 || string(envelope.Mail) == "null" {
		return nil, fmt.Errorf("%w: missing mail object", ErrMalformedEvent)
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	if ev.Type.Status() == "" {
		return nil, fmt.Errorf("%w: unrecognised event type %q", ErrMalformedEvent, ev.Type)
	}

	if len(ev.Mail.Destination) == 0 {
		return nil, fmt.Errorf("%w: empty destination list", ErrMalformedEvent)
	}

	if key := ev.missingDetail(); key != "" {
		return nil, fmt.Errorf("%w: missing %s detail", ErrMalformedEvent, key)
	}

	return &ev, nil
}

// missingDetail names the detail object the event's kind requires but the
// notification did not carry, or "" when it is present.
func (e *Event) missingDetail() string {
	switch e.Type {
	case TypeBounce:
		if e.Bounce == nil {
			return "bounce"
		}
	case TypeComplaint:
		if e.Complaint == nil {
			return "complaint"
		}
	case TypeDelivery:
		if e.Delivery == nil {
			return "delivery"
		}
	case TypeReject:
		if e.Reject == nil {
			return "reject"
		}
	case TypeOpen:
		if e.Open == nil {
			return "open"
		}
	case TypeClick:
		if e.Click == nil {
			return "click"
		}
	case TypeRenderingFailure:
		if e.RenderingFailure == nil {
			return "failure"
		}
	case TypeDeliveryDelay:
		if e.DeliveryDelay == nil {
			return "deliveryDelay"
		}
	case TypeSubscription:
		if e.Subscription == nil {
			return "subscription"
		}
	}

	return ""
}
