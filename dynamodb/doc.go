// Package dynamodb provides the DynamoDB-backed status store for mailtrack.
//
// # Overview
//
// The package uses a single-table DynamoDB design. Every record is keyed by
// the tracked recipient (partition key, "PK") combined with a type-prefixed
// composite sort key ("SK"):
//
//   - Lifecycle events: USER#<recipient> / EVENT_TS#<timestamp>
//   - Suppressions:     USER#<recipient> / SUPPRESS#<timestamp>
//
// Three Global Secondary Indexes provide the read paths, each an ordered
// range scan rather than a table scan:
//
//   - [GSIAllEvents] — every event (and every suppression) in timestamp
//     order, partitioned by a constant.
//   - [GSIStatus] — events of one status in timestamp order.
//   - [GSICampaign] — events of one campaign tag in timestamp order.
//
// A lifecycle row is created on SENT (or standalone for opens, clicks,
// complaints, rendering failures and subscription changes, each keyed by its
// own timestamp) and updated in place when a later delivery-chain event
// arrives for the same recipient and send timestamp. Suppression rows are
// append-only.
//
// # Getting Started
//
// Create a [Client] with [New], supplying an AWS config, the DynamoDB table
// name, and any [Option] values you need:
//
//	client := dynamodb.New(&awsCfg, tableName)
//	if err := client.Connect(); err != nil { ... }
//	if err := client.Init(ctx, false); err != nil { ... }
//
// By default, [New] creates an AWS SDK v2 DynamoDB client from the supplied
// [aws.Config]. Supply [WithAPI] to inject a custom or mock implementation.
//
// # Pagination
//
// Range queries return an opaque cursor encoding the last evaluated key of
// the underlying index. Passing the cursor back resumes the scan at exactly
// the same position; see [EncodeCursor] and [DecodeCursor].
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines. Correctness
// under concurrent writers for the same key relies solely on per-item
// conditional writes; no coordination is used.
package dynamodb
