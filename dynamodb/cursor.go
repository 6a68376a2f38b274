package dynamodb

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// EncodeCursor converts a last-evaluated-key structure into an opaque
// pagination token: base64 of the JSON-encoded attribute map. Every key
// attribute in this table is a string, so the JSON form is a flat
// name→value object. Returns "" for a nil or empty key.
func EncodeCursor(lastEvaluatedKey map[string]dynamodbtypes.AttributeValue) (string, error) {
	if len(lastEvaluatedKey) == 0 {
		return "", nil
	}

	flat := make(map[string]string, len(lastEvaluatedKey))

	for name, attr := range lastEvaluatedKey {
		s, ok := attr.(*dynamodbtypes.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("cursor attribute %s is not a string", name)
		}

		flat[name] = s.Value
	}

	raw, err := json.Marshal(flat)
	if err != nil {
		return "", fmt.Errorf("failed to encode cursor: %w", err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeCursor converts a pagination token produced by [EncodeCursor] back
// into the exclusive-start-key structure for the next page. The round trip
// is exact: decode(encode(k)) == k. Returns nil for an empty token.
func DecodeCursor(token string) (map[string]dynamodbtypes.AttributeValue, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}

	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}

	if len(flat) == 0 {
		return nil, nil
	}

	key := make(map[string]dynamodbtypes.AttributeValue, len(flat))

	for name, value := range flat {
		key[name] = &dynamodbtypes.AttributeValueMemberS{Value: value}
	}

	return key, nil
}
