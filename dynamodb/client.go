package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mailtrack/mailtrack/event"
)

var (
	// ErrConditionFailed is returned by [Client.PutEvent] when a
	// conditional insert finds a row already present at the target key.
	ErrConditionFailed = errors.New("a row already exists at the target key")

	// ErrNotFound is returned by [Client.UpdateStatus] when the update
	// requires an existing row and none is present. Updating a missing row
	// without this check would silently fabricate lifecycle state.
	ErrNotFound = errors.New("no row exists at the target key")

	// ErrUnavailable wraps any store I/O failure that is neither a
	// conditional-write conflict nor a missing row.
	ErrUnavailable = errors.New("status store unavailable")
)

// IndexSelector names one of the read paths exposed by the table.
type IndexSelector int

const (
	// SelectAllEvents scans every lifecycle event in timestamp order.
	SelectAllEvents IndexSelector = iota

	// SelectStatus scans the events of one status in timestamp order.
	SelectStatus

	// SelectCampaign scans the events of one campaign tag in timestamp
	// order.
	SelectCampaign

	// SelectSuppressions scans the suppression list in timestamp order.
	SelectSuppressions
)

// QuerySpec describes one paginated range query. From and To, when both
// set, restrict the scan to an inclusive timestamp interval. Cursor resumes
// a previous scan; PageSize zero means the client default.
type QuerySpec struct {
	Index      IndexSelector
	Status     event.Status
	CampaignID string
	From       string
	To         string
	PageSize   int32
	Cursor     string
}

// Item is one returned record with all index-key attributes stripped.
type Item map[string]any

// Page is one page of query results, most recent first. NextCursor is ""
// when the scan is exhausted; HasMore is true iff the underlying index has
// further matching rows beyond this page.
type Page struct {
	Items      []Item
	NextCursor string
	HasMore    bool
}

// StatusUpdate describes an in-place status transition of an existing
// lifecycle row, addressed by the original send's key (recipient + send
// timestamp).
type StatusUpdate struct {
	Recipient     string
	SendTimestamp string
	NewStatus     event.Status

	// SyncStatusIndex re-points the status-index partition at NewStatus so
	// the row is found under its new status. Delay updates leave the index
	// untouched, matching the delivery chain's non-terminal semantics.
	SyncStatusIndex bool

	// EventTimestamp, when set, re-points the status-index sort key at the
	// triggering event's timestamp instead of the send timestamp.
	EventTimestamp string

	// UpdatedAt stamps the transition time. Empty means the store clock.
	UpdatedAt string

	// Fields carries extra attributes to set (reason, bounceType, ...).
	Fields map[string]string

	// RequireExists rejects the update with [ErrNotFound] when no row is
	// present at the key. Delivery and delay require a prior send row;
	// bounces and rejects may legitimately arrive without one.
	RequireExists bool
}

// Client is the DynamoDB-backed status store. It owns the lifecycle of
// every event and suppression row.
//
// Use [New] to create a Client, [Client.Connect] to initialize the
// underlying DynamoDB connection, and [Client.Init] to validate the table
// schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
}

// New creates a new Client configured with the given AWS config, table name,
// and optional options. Call [Client.Connect] on the returned client before
// use.
func New(awsCfg *aws.Config, tableName string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
	}
}

// Connect initializes the DynamoDB client from the AWS config provided to
// [New]. It must be called before any other Client methods, and must
// complete before the Client is used concurrently.
func (c *Client) Connect() error {
	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid DynamoDB options: %w", err)
	}

	// Use injected DynamoDB API if provided (useful for testing).
	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
	} else {
		c.client = dynamodb.NewFromConfig(*c.awsCfg)
	}

	return nil
}

// Init validates the DynamoDB table schema. It checks that the table exists,
// has the correct partition key (PK) and sort key (SK), and that the three
// required Global Secondary Indexes ([GSIAllEvents], [GSIStatus] and
// [GSICampaign]) are present and correctly configured.
//
// Pass skipSchemaValidation true to skip all checks and return immediately,
// which is useful when schema validation is managed separately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	}

	response, err := c.client.DescribeTable(ctx, input)
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("table %s does not exist", c.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.tableName, err)
	}

	if len(response.Table.KeySchema) < 1 {
		return fmt.Errorf("table %s has no key schema", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[0].AttributeName) != PartitionKey {
		return fmt.Errorf("table %s has partition key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[0].AttributeName), PartitionKey)
	}

	if len(response.Table.KeySchema) < 2 {
		return fmt.Errorf("table %s has a simple primary key, expected composite", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[1].AttributeName) != SortKey {
		return fmt.Errorf("table %s has sort key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[1].AttributeName), SortKey)
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.tableName, response.Table.TableStatus)
	}

	// Verify the three read paths. All indexes project every attribute so
	// query results can be returned without a follow-up point read.
	if err := verifySecondaryIndex(response.Table, GSIAllEvents, "GSI1PK", "GSI1SK"); err != nil {
		return err
	}

	if err := verifySecondaryIndex(response.Table, GSIStatus, "GSI2PK", "GSI2SK"); err != nil {
		return err
	}

	if err := verifySecondaryIndex(response.Table, GSICampaign, "GSI3PK", "GSI3SK"); err != nil {
		return err
	}

	return nil
}

// PutEvent writes a lifecycle row. When ifAbsent is true the write fails
// with [ErrConditionFailed] if a row already exists at the record's exact
// primary and sort key; when false the write is an unconditional upsert,
// which is the idempotent choice for rows keyed by their own unique event
// timestamp.
func (c *Client) PutEvent(ctx context.Context, record *EventRecord, ifAbsent bool) error {
	if err := record.validate(); err != nil {
		return err
	}

	item, err := record.item()
	if err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName: &c.tableName,
		Item:      item,
	}

	if ifAbsent {
		input.ConditionExpression = aws.String("attribute_not_exists(PK)")
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		var conditionFailed *dynamodbtypes.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return fmt.Errorf("%w: %s/%s", ErrConditionFailed, record.Recipient, record.Timestamp)
		}

		return fmt.Errorf("%w: failed to write event to table %s: %w", ErrUnavailable, c.tableName, err)
	}

	return nil
}

// UpdateStatus transitions an existing lifecycle row in place. The row is
// addressed by the original send's key so that a later delivery-chain event
// updates the send row rather than creating a duplicate. See [StatusUpdate]
// for the per-kind knobs.
func (c *Client) UpdateStatus(ctx context.Context, update StatusUpdate) error {
	if update.Recipient == "" {
		return errors.New("update recipient cannot be empty")
	}

	if update.SendTimestamp == "" {
		return errors.New("update send timestamp cannot be empty")
	}

	if update.NewStatus == "" {
		return errors.New("update status cannot be empty")
	}

	updatedAt := update.UpdatedAt
	if updatedAt == "" {
		updatedAt = c.opts.clock().UTC().Format(time.RFC3339)
	}

	expression := "SET #status = :status, updatedAt = :updatedAt"
	names := map[string]string{"#status": "status"}
	values := map[string]dynamodbtypes.AttributeValue{
		":status":    &dynamodbtypes.AttributeValueMemberS{Value: string(update.NewStatus)},
		":updatedAt": &dynamodbtypes.AttributeValueMemberS{Value: updatedAt},
	}

	if update.SyncStatusIndex {
		expression += ", GSI2PK = :gsi2pk"
		values[":gsi2pk"] = &dynamodbtypes.AttributeValueMemberS{Value: statusPrefix + string(update.NewStatus)}
	}

	if update.EventTimestamp != "" {
		expression += ", GSI2SK = :gsi2sk"
		values[":gsi2sk"] = &dynamodbtypes.AttributeValueMemberS{Value: eventTsPrefix + update.EventTimestamp}
	}

	// Deterministic attribute ordering keeps the expression stable for a
	// given update, which matters for request-level retries and for tests.
	fieldNames := make([]string, 0, len(update.Fields))
	for name := range update.Fields {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	for i, name := range fieldNames {
		placeholder := "#f" + strconv.Itoa(i)
		valuePlaceholder := ":f" + strconv.Itoa(i)
		expression += ", " + placeholder + " = " + valuePlaceholder
		names[placeholder] = name
		values[valuePlaceholder] = &dynamodbtypes.AttributeValueMemberS{Value: update.Fields[name]}
	}

	input := &dynamodb.UpdateItemInput{
		TableName: &c.tableName,
		Key: map[string]dynamodbtypes.AttributeValue{
			PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: RecipientKey(update.Recipient)},
			SortKey:      &dynamodbtypes.AttributeValueMemberS{Value: EventSortKey(update.SendTimestamp)},
		},
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}

	if update.RequireExists {
		input.ConditionExpression = aws.String("attribute_exists(PK)")
	}

	if _, err := c.client.UpdateItem(ctx, input); err != nil {
		var conditionFailed *dynamodbtypes.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, update.Recipient, update.SendTimestamp)
		}

		return fmt.Errorf("%w: failed to update event in table %s: %w", ErrUnavailable, c.tableName, err)
	}

	return nil
}

// PutSuppression appends a suppression row. The insert is unconditional:
// duplicate timestamps overwrite an identical row, which preserves the
// append-only log semantics without a read-before-write.
func (c *Client) PutSuppression(ctx context.Context, record *SuppressionRecord) error {
	if err := record.validate(); err != nil {
		return err
	}

	item, err := record.item()
	if err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName: &c.tableName,
		Item:      item,
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("%w: failed to write suppression to table %s: %w", ErrUnavailable, c.tableName, err)
	}

	return nil
}

// QueryEvents runs one paginated range query against the selected read
// path, most recent first. The returned cursor resumes the scan at exactly
// the position this page ended.
func (c *Client) QueryEvents(ctx context.Context, spec QuerySpec) (*Page, error) {
	pageSize := spec.PageSize
	if pageSize <= 0 {
		pageSize = c.opts.defaultPageSize
	}

	indexName, expression, values, err := buildKeyCondition(spec)
	if err != nil {
		return nil, err
	}

	startKey, err := DecodeCursor(spec.Cursor)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                 &c.tableName,
		IndexName:                 aws.String(indexName),
		KeyConditionExpression:    aws.String(expression),
		ExpressionAttributeValues: values,
		Limit:                     aws.Int32(pageSize),
		ScanIndexForward:          aws.Bool(false),
		ExclusiveStartKey:         startKey,
	}

	output, err := c.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query table %s: %w", ErrUnavailable, c.tableName, err)
	}

	items := make([]Item, 0, len(output.Items))

	for _, raw := range output.Items {
		var item map[string]any
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal query result: %w", err)
		}

		for _, attr := range indexAttributes {
			delete(item, attr)
		}

		items = append(items, item)
	}

	page := &Page{Items: items}

	if len(output.LastEvaluatedKey) > 0 {
		cursor, err := EncodeCursor(output.LastEvaluatedKey)
		if err != nil {
			return nil, err
		}

		page.NextCursor = cursor
		page.HasMore = true
	}

	return page, nil
}

// HasSuppression reports whether the recipient has at least one suppression
// row. This is an existence check on the recipient's suppression prefix,
// not a status check; any row blocks sends permanently.
func (c *Client) HasSuppression(ctx context.Context, recipient string) (bool, error) {
	if recipient == "" {
		return false, errors.New("recipient cannot be empty")
	}

	input := &dynamodb.QueryInput{
		TableName: &c.tableName,
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk":     &dynamodbtypes.AttributeValueMemberS{Value: RecipientKey(recipient)},
			":prefix": &dynamodbtypes.AttributeValueMemberS{Value: suppressionPrefix},
		},
		KeyConditionExpression: aws.String(fmt.Sprintf("%s = :pk AND begins_with(%s, :prefix)", PartitionKey, SortKey)),
		ProjectionExpression:   aws.String(PartitionKey),
		Limit:                  aws.Int32(1),
	}

	output, err := c.client.Query(ctx, input)
	if err != nil {
		return false, fmt.Errorf("%w: failed to query suppressions in table %s: %w", ErrUnavailable, c.tableName, err)
	}

	return len(output.Items) > 0, nil
}

func buildKeyCondition(spec QuerySpec) (string, string, map[string]dynamodbtypes.AttributeValue, error) {
	values := map[string]dynamodbtypes.AttributeValue{}

	var indexName, expression, sortAttr, rangePrefix string

	switch spec.Index {
	case SelectAllEvents:
		indexName = GSIAllEvents
		expression = "GSI1PK = :pk"
		sortAttr = "GSI1SK"
		rangePrefix = eventTsPrefix
		values[":pk"] = &dynamodbtypes.AttributeValueMemberS{Value: allEventsPartition}

	case SelectStatus:
		if spec.Status == "" {
			return "", "", nil, errors.New("status query requires a status")
		}

		indexName = GSIStatus
		expression = "GSI2PK = :pk"
		sortAttr = "GSI2SK"
		rangePrefix = eventTsPrefix
		values[":pk"] = &dynamodbtypes.AttributeValueMemberS{Value: statusPrefix + string(spec.Status)}

	case SelectCampaign:
		if spec.CampaignID == "" {
			return "", "", nil, errors.New("campaign query requires a campaign ID")
		}

		indexName = GSICampaign
		expression = "GSI3PK = :pk"
		sortAttr = "GSI3SK"
		rangePrefix = eventTsPrefix
		values[":pk"] = &dynamodbtypes.AttributeValueMemberS{Value: campaignPrefix + spec.CampaignID}

	case SelectSuppressions:
		indexName = GSIAllEvents
		expression = "GSI1PK = :pk"
		sortAttr = "GSI1SK"
		rangePrefix = suppressionPrefix
		values[":pk"] = &dynamodbtypes.AttributeValueMemberS{Value: suppressionPartition}

	default:
		return "", "", nil, fmt.Errorf("unknown index selector %d", spec.Index)
	}

	if spec.From != "" && spec.To != "" {
		expression += fmt.Sprintf(" AND %s BETWEEN :from AND :to", sortAttr)
		values[":from"] = &dynamodbtypes.AttributeValueMemberS{Value: rangePrefix + spec.From}
		values[":to"] = &dynamodbtypes.AttributeValueMemberS{Value: rangePrefix + spec.To}
	}

	return indexName, expression, values, nil
}

func verifySecondaryIndex(table *dynamodbtypes.TableDescription, indexName, partitionKey, sortKey string) error {
	for _, index := range table.GlobalSecondaryIndexes {
		if aws.ToString(index.IndexName) != indexName {
			continue
		}

		if aws.ToString(index.KeySchema[0].AttributeName) != partitionKey {
			return fmt.Errorf("global secondary index %s has partition key %s, expected %s", indexName, aws.ToString(index.KeySchema[0].AttributeName), partitionKey)
		}

		if len(index.KeySchema) != 2 {
			return fmt.Errorf("global secondary index %s has a simple primary key, expected a composite primary key", indexName)
		}

		if aws.ToString(index.KeySchema[1].AttributeName) != sortKey {
			return fmt.Errorf("global secondary index %s has sort key %s, expected %s", indexName, aws.ToString(index.KeySchema[1].AttributeName), sortKey)
		}

		if index.IndexStatus != dynamodbtypes.IndexStatusActive {
			return fmt.Errorf("global secondary index %s is not active (status: %s)", indexName, index.IndexStatus)
		}

		if index.Projection.ProjectionType != dynamodbtypes.ProjectionTypeAll {
			return fmt.Errorf("global secondary index %s has projection type %s, expected %s", indexName, index.Projection.ProjectionType, dynamodbtypes.ProjectionTypeAll)
		}

		return nil
	}

	return fmt.Errorf("global secondary index %s not found", indexName)
}
