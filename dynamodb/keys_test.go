package dynamodb

import (
	"testing"

	"github.com/mailtrack/mailtrack/event"
)

func TestBuildEventKeys(t *testing.T) {
	t.Parallel()

	keys := BuildEventKeys("user@example.com", event.StatusSent, "2024-01-15T10:00:00.000Z", "welcome")

	if keys.PK != "USER#user@example.com" {
		t.Errorf("unexpected PK %s", keys.PK)
	}
	if keys.SK != "EVENT_TS#2024-01-15T10:00:00.000Z" {
		t.Errorf("unexpected SK %s", keys.SK)
	}
	if keys.AllPK != "EVENT" {
		t.Errorf("unexpected AllPK %s", keys.AllPK)
	}
	if keys.AllSK != "EVENT_TS#2024-01-15T10:00:00.000Z" {
		t.Errorf("unexpected AllSK %s", keys.AllSK)
	}
	if keys.StatusPK != "EV_STATUS#SENT" {
		t.Errorf("unexpected StatusPK %s", keys.StatusPK)
	}
	if keys.StatusSK != "EVENT_TS#2024-01-15T10:00:00.000Z" {
		t.Errorf("unexpected StatusSK %s", keys.StatusSK)
	}
	if keys.CampaignPK != "TAG#welcome" {
		t.Errorf("unexpected CampaignPK %s", keys.CampaignPK)
	}
	if keys.CampaignSK != "EVENT_TS#2024-01-15T10:00:00.000Z" {
		t.Errorf("unexpected CampaignSK %s", keys.CampaignSK)
	}
}

func TestBuildEventKeys_NoCampaign(t *testing.T) {
	t.Parallel()

	keys := BuildEventKeys("user@example.com", event.StatusSent, "2024-01-15T10:00:00.000Z", "")

	if keys.CampaignPK != "" || keys.CampaignSK != "" {
		t.Errorf("expected empty campaign keys for untagged events, got %s/%s", keys.CampaignPK, keys.CampaignSK)
	}
}

func TestBuildEventKeys_Deterministic(t *testing.T) {
	t.Parallel()

	a := BuildEventKeys("user@example.com", event.StatusDelivered, "2024-01-15T10:00:00.000Z", "welcome")
	b := BuildEventKeys("user@example.com", event.StatusDelivered, "2024-01-15T10:00:00.000Z", "welcome")

	if a != b {
		t.Errorf("expected identical keys for identical inputs, got %+v and %+v", a, b)
	}
}

func TestBuildSuppressionKeys(t *testing.T) {
	t.Parallel()

	keys := BuildSuppressionKeys("user@example.com", "2024-01-15T10:00:05.000Z")

	if keys.PK != "USER#user@example.com" {
		t.Errorf("unexpected PK %s", keys.PK)
	}
	if keys.SK != "SUPPRESS#2024-01-15T10:00:05.000Z" {
		t.Errorf("unexpected SK %s", keys.SK)
	}
	if keys.AllPK != "SUPPRESS" {
		t.Errorf("unexpected AllPK %s", keys.AllPK)
	}
	if keys.AllSK != "SUPPRESS#2024-01-15T10:00:05.000Z" {
		t.Errorf("unexpected AllSK %s", keys.AllSK)
	}
}

func TestSuppressionKeysShareRecipientPartition(t *testing.T) {
	t.Parallel()

	eventKeys := BuildEventKeys("user@example.com", event.StatusSent, "2024-01-15T10:00:00.000Z", "")
	suppressionKeys := BuildSuppressionKeys("user@example.com", "2024-01-15T10:00:05.000Z")

	// Both row kinds live under the recipient's partition; the sort key
	// prefix is what separates them for the send-path existence scan.
	if eventKeys.PK != suppressionKeys.PK {
		t.Errorf("expected shared partition, got %s and %s", eventKeys.PK, suppressionKeys.PK)
	}
	if eventKeys.SK == suppressionKeys.SK {
		t.Error("expected distinct sort key prefixes")
	}
}
