package dynamodb

import (
	"encoding/base64"
	"testing"

	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()

	key := map[string]dynamodbtypes.AttributeValue{
		"PK":     &dynamodbtypes.AttributeValueMemberS{Value: "USER#user@example.com"},
		"SK":     &dynamodbtypes.AttributeValueMemberS{Value: "EVENT_TS#2024-01-15T10:00:00.000Z"},
		"GSI1PK": &dynamodbtypes.AttributeValueMemberS{Value: "EVENT"},
		"GSI1SK": &dynamodbtypes.AttributeValueMemberS{Value: "EVENT_TS#2024-01-15T10:00:00.000Z"},
	}

	token, err := EncodeCursor(key)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}

	decoded, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(decoded) != len(key) {
		t.Fatalf("expected %d attributes, got %d", len(key), len(decoded))
	}
	for name, attr := range key {
		got, ok := decoded[name].(*dynamodbtypes.AttributeValueMemberS)
		if !ok {
			t.Fatalf("expected attribute %s to be a string", name)
		}
		if got.Value != attr.(*dynamodbtypes.AttributeValueMemberS).Value {
			t.Errorf("attribute %s: expected %s, got %s", name, attr.(*dynamodbtypes.AttributeValueMemberS).Value, got.Value)
		}
	}
}

func TestEncodeCursor_Empty(t *testing.T) {
	t.Parallel()

	token, err := EncodeCursor(nil)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if token != "" {
		t.Errorf("expected empty token, got %s", token)
	}
}

func TestEncodeCursor_NonStringAttribute(t *testing.T) {
	t.Parallel()

	key := map[string]dynamodbtypes.AttributeValue{
		"PK": &dynamodbtypes.AttributeValueMemberN{Value: "42"},
	}

	_, err := EncodeCursor(key)

	if err == nil {
		t.Error("expected error for non-string key attribute, got nil")
	}
}

func TestDecodeCursor_Empty(t *testing.T) {
	t.Parallel()

	key, err := DecodeCursor("")
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if key != nil {
		t.Errorf("expected nil start key, got %v", key)
	}
}

func TestDecodeCursor_InvalidBase64(t *testing.T) {
	t.Parallel()

	_, err := DecodeCursor("not base64!")

	if err == nil {
		t.Error("expected error for invalid base64, got nil")
	}
}

func TestDecodeCursor_InvalidJSON(t *testing.T) {
	t.Parallel()

	token := base64.StdEncoding.EncodeToString([]byte("not json"))

	_, err := DecodeCursor(token)

	if err == nil {
		t.Error("expected error for invalid JSON, got nil")
	}
}
