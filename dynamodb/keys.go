package dynamodb

import (
	"github.com/mailtrack/mailtrack/event"
)

const (
	// GSIAllEvents is the name of the Global Secondary Index used to list
	// every event in timestamp order. Partition key: GSI1PK (constant
	// "EVENT" for lifecycle rows, "SUPPRESS" for suppression rows), sort
	// key: GSI1SK.
	GSIAllEvents = "GSI1"

	// GSIStatus is the name of the Global Secondary Index used to list
	// events of one status in timestamp order. Partition key: GSI2PK
	// ("EV_STATUS#<status>"), sort key: GSI2SK.
	GSIStatus = "GSI2"

	// GSICampaign is the name of the Global Secondary Index used to list
	// events of one campaign tag in timestamp order. Partition key: GSI3PK
	// ("TAG#<campaignId>"), sort key: GSI3SK.
	GSICampaign = "GSI3"

	// PartitionKey is the DynamoDB partition key attribute name.
	PartitionKey = "PK"

	// SortKey is the DynamoDB sort key attribute name.
	SortKey = "SK"

	recipientPrefix   = "USER#"
	eventTsPrefix     = "EVENT_TS#"
	statusPrefix      = "EV_STATUS#"
	campaignPrefix    = "TAG#"
	suppressionPrefix = "SUPPRESS#"

	// allEventsPartition is the constant partition value shared by every
	// lifecycle row in GSIAllEvents. All events land in one partition; at
	// higher write volume, consider sharding ("EVENT#<shard>").
	allEventsPartition = "EVENT"

	// suppressionPartition is the constant partition value shared by every
	// suppression row in GSIAllEvents.
	suppressionPartition = "SUPPRESS"
)

// indexAttributes lists every key attribute projected into query results by
// the table and its indexes. They are stripped from items before the items
// are returned to callers.
var indexAttributes = []string{
	"PK", "SK",
	"GSI1PK", "GSI1SK",
	"GSI2PK", "GSI2SK",
	"GSI3PK", "GSI3SK",
}

// Keys holds the derived primary and secondary index keys for one lifecycle
// row. CampaignPK and CampaignSK are empty when the message carried no
// campaign tag; untagged rows simply do not appear in [GSICampaign].
type Keys struct {
	PK         string
	SK         string
	AllPK      string
	AllSK      string
	StatusPK   string
	StatusSK   string
	CampaignPK string
	CampaignSK string
}

// BuildEventKeys derives every index key for a lifecycle row from the
// (recipient, status, timestamp, campaign) tuple. Pure; the timestamp is
// taken verbatim so that key derivation is deterministic for a given event.
func BuildEventKeys(recipient string, status event.Status, timestamp, campaignID string) Keys {
	k := Keys{
		PK:       recipientPrefix + recipient,
		SK:       eventTsPrefix + timestamp,
		AllPK:    allEventsPartition,
		AllSK:    eventTsPrefix + timestamp,
		StatusPK: statusPrefix + string(status),
		StatusSK: eventTsPrefix + timestamp,
	}

	if campaignID != "" {
		k.CampaignPK = campaignPrefix + campaignID
		k.CampaignSK = eventTsPrefix + timestamp
	}

	return k
}

// BuildSuppressionKeys derives the primary and all-events index keys for a
// suppression row. Suppression rows live under the recipient's partition so
// the send-path existence check is a single ordered prefix scan.
func BuildSuppressionKeys(recipient, timestamp string) Keys {
	return Keys{
		PK:    recipientPrefix + recipient,
		SK:    suppressionPrefix + timestamp,
		AllPK: suppressionPartition,
		AllSK: suppressionPrefix + timestamp,
	}
}

// RecipientKey returns the partition key value for a recipient.
func RecipientKey(recipient string) string {
	return recipientPrefix + recipient
}

// EventSortKey returns the sort key value for an event timestamp.
func EventSortKey(timestamp string) string {
	return eventTsPrefix + timestamp
}
