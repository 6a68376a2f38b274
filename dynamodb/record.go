package dynamodb

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mailtrack/mailtrack/event"
)

// EventRecord is the stored projection of one lifecycle event. Timestamp
// keys the row: the send timestamp for rows in the send/delivery chain, the
// event's own timestamp for standalone rows (opens, clicks, complaints,
// rendering failures, subscription changes).
type EventRecord struct {
	Recipient  string
	Status     event.Status
	Timestamp  string
	CampaignID string
	EmailTo    []string
	MessageID  string
	CreatedAt  string

	// Fields carries the tag-specific payload attributes (subject, reason,
	// template_name, ...). Stored as top-level string attributes alongside
	// the fixed ones.
	Fields map[string]string
}

// SuppressionRecord is one append-only suppression-list entry. Presence of
// any suppression row under a recipient's partition blocks sends to them.
type SuppressionRecord struct {
	Recipient string
	Timestamp string
	Status    event.Status
	Reason    string
	MessageID string
	CreatedAt string
	Fields    map[string]string
}

// eventItem is the fixed attribute layout of a lifecycle row.
type eventItem struct {
	PK        string   `dynamodbav:"PK"`
	SK        string   `dynamodbav:"SK"`
	GSI1PK    string   `dynamodbav:"GSI1PK"`
	GSI1SK    string   `dynamodbav:"GSI1SK"`
	GSI2PK    string   `dynamodbav:"GSI2PK"`
	GSI2SK    string   `dynamodbav:"GSI2SK"`
	GSI3PK    string   `dynamodbav:"GSI3PK,omitempty"`
	GSI3SK    string   `dynamodbav:"GSI3SK,omitempty"`
	Status    string   `dynamodbav:"status"`
	EmailTo   []string `dynamodbav:"emailTo"`
	MessageID string   `dynamodbav:"messageId"`
	CreatedAt string   `dynamodbav:"createdAt"`
}

// suppressionItem is the fixed attribute layout of a suppression row.
type suppressionItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	GSI1PK    string `dynamodbav:"GSI1PK"`
	GSI1SK    string `dynamodbav:"GSI1SK"`
	Status    string `dynamodbav:"status,omitempty"`
	Reason    string `dynamodbav:"reason,omitempty"`
	MessageID string `dynamodbav:"messageId"`
	CreatedAt string `dynamodbav:"createdAt"`
}

func (r *EventRecord) validate() error {
	if r == nil {
		return errors.New("event record cannot be nil")
	}

	if r.Recipient == "" {
		return errors.New("event record recipient cannot be empty")
	}

	if r.Timestamp == "" {
		return errors.New("event record timestamp cannot be empty")
	}

	if r.Status == "" {
		return errors.New("event record status cannot be empty")
	}

	return nil
}

func (r *EventRecord) item() (map[string]dynamodbtypes.AttributeValue, error) {
	keys := BuildEventKeys(r.Recipient, r.Status, r.Timestamp, r.CampaignID)

	item, err := attributevalue.MarshalMap(eventItem{
		PK:        keys.PK,
		SK:        keys.SK,
		GSI1PK:    keys.AllPK,
		GSI1SK:    keys.AllSK,
		GSI2PK:    keys.StatusPK,
		GSI2SK:    keys.StatusSK,
		GSI3PK:    keys.CampaignPK,
		GSI3SK:    keys.CampaignSK,
		Status:    string(r.Status),
		EmailTo:   r.EmailTo,
		MessageID: r.MessageID,
		CreatedAt: r.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event record: %w", err)
	}

	mergeFields(item, r.Fields)

	return item, nil
}

func (r *SuppressionRecord) validate() error {
	if r == nil {
		return errors.New("suppression record cannot be nil")
	}

	if r.Recipient == "" {
		return errors.New("suppression record recipient cannot be empty")
	}

	if r.Timestamp == "" {
		return errors.New("suppression record timestamp cannot be empty")
	}

	return nil
}

func (r *SuppressionRecord) item() (map[string]dynamodbtypes.AttributeValue, error) {
	keys := BuildSuppressionKeys(r.Recipient, r.Timestamp)

	item, err := attributevalue.MarshalMap(suppressionItem{
		PK:        keys.PK,
		SK:        keys.SK,
		GSI1PK:    keys.AllPK,
		GSI1SK:    keys.AllSK,
		Status:    string(r.Status),
		Reason:    r.Reason,
		MessageID: r.MessageID,
		CreatedAt: r.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal suppression record: %w", err)
	}

	mergeFields(item, r.Fields)

	return item, nil
}

// mergeFields adds the tag-specific payload attributes to an item, skipping
// empty values the way the source events omit undefined fields. Payload
// names never collide with the fixed attributes; key attributes win if one
// ever does.
func mergeFields(item map[string]dynamodbtypes.AttributeValue, fields map[string]string) {
	for name, value := range fields {
		if value == "" {
			continue
		}

		if _, taken := item[name]; taken {
			continue
		}

		item[name] = &dynamodbtypes.AttributeValueMemberS{Value: value}
	}
}
