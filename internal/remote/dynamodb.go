package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

// batchSize is the DynamoDB BatchWriteItem limit.
const batchSize = 25

// DynamoDBAPI is the part of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDBStore keeps remote records in a single table keyed by record id.
// Accepted writes and deletes are announced through the publisher, if any.
type DynamoDBStore struct {
	svc       DynamoDBAPI
	table     string
	publisher Publisher
	now       func() time.Time
}

var _ Transport = (*DynamoDBStore)(nil)

func NewDynamoDBStore(svc DynamoDBAPI, table string, publisher Publisher) *DynamoDBStore {
	return &DynamoDBStore{svc: svc, table: table, publisher: publisher, now: time.Now}
}

type dynamoItem struct {
	ID              string             `dynamodbav:"id"`
	UnitType        string             `dynamodbav:"unitType"`
	EquipmentID     string             `dynamodbav:"equipmentId"`
	MeasurementDate string             `dynamodbav:"measurementDate"`
	Parameters      map[string]float64 `dynamodbav:"parameters"`
	Notes           string             `dynamodbav:"notes"`
	UserID          string             `dynamodbav:"userId"`
	UserName        string             `dynamodbav:"userName"`
	LocalTimestamp  string             `dynamodbav:"localTimestamp"`
	ServerTimestamp string             `dynamodbav:"serverTimestamp"`
}

func toDynamoItem(r domain.MeasurementRecord, at time.Time) dynamoItem {
	return dynamoItem{
		ID:              r.Key(),
		UnitType:        string(r.Unit),
		EquipmentID:     r.Equipment,
		MeasurementDate: r.Date,
		Parameters:      r.Parameters,
		Notes:           r.Notes,
		UserID:          r.UserID,
		UserName:        r.UserName,
		LocalTimestamp:  r.Timestamp.UTC().Format(time.RFC3339Nano),
		ServerTimestamp: at.UTC().Format(time.RFC3339Nano),
	}
}

func (it dynamoItem) record() (domain.MeasurementRecord, error) {
	r := domain.MeasurementRecord{
		Unit:       domain.Unit(it.UnitType),
		Equipment:  it.EquipmentID,
		Date:       it.MeasurementDate,
		Parameters: it.Parameters,
		Notes:      it.Notes,
		UserID:     it.UserID,
		UserName:   it.UserName,
	}
	st, err := time.Parse(time.RFC3339Nano, it.ServerTimestamp)
	if err != nil {
		return r, fmt.Errorf("decode server timestamp of %s: %w", it.ID, err)
	}
	r.ServerTimestamp = &st
	r.Timestamp = st
	if it.LocalTimestamp != "" {
		if lt, err := time.Parse(time.RFC3339Nano, it.LocalTimestamp); err == nil {
			r.Timestamp = lt
		}
	}
	remoteOnly(&r)
	return r, nil
}

// SubmitBatch writes records in chunks of 25. Items DynamoDB hands back as
// unprocessed, and whole chunks that fail, are reported per record.
func (s *DynamoDBStore) SubmitBatch(ctx context.Context, records []domain.MeasurementRecord) (BatchResult, error) {
	var res BatchResult
	var firstErr error
	var events []domain.ChangeEvent
	at := s.now()

	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]

		writeRequests := make([]types.WriteRequest, 0, len(batch))
		written := make(map[string]dynamoItem, len(batch))
		for _, r := range batch {
			it := toDynamoItem(r, at)
			item, err := attributevalue.MarshalMap(it)
			if err != nil {
				res.Errors = append(res.Errors, BatchError{ID: r.Key(), Message: fmt.Sprintf("marshal: %v", err)})
				continue
			}
			writeRequests = append(writeRequests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
			written[it.ID] = it
		}
		if len(writeRequests) == 0 {
			continue
		}
		existing := s.existingIDs(ctx, written)

		out, err := s.svc.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.table: writeRequests},
		})
		if err != nil {
			mapped := mapDynamoError("submit batch", err)
			if firstErr == nil {
				firstErr = mapped
			}
			for _, wr := range writeRequests {
				res.Errors = append(res.Errors, BatchError{ID: itemID(wr.PutRequest.Item), Message: mapped.Error()})
			}
			continue
		}

		unprocessed := out.UnprocessedItems[s.table]
		for _, wr := range unprocessed {
			if wr.PutRequest == nil {
				continue
			}
			id := itemID(wr.PutRequest.Item)
			delete(written, id)
			res.Errors = append(res.Errors, BatchError{ID: id, Message: "unprocessed by remote store"})
		}
		res.SuccessCount += len(writeRequests) - len(unprocessed)

		for _, wr := range writeRequests {
			it, ok := written[itemID(wr.PutRequest.Item)]
			if !ok {
				continue
			}
			saved, err := it.record()
			if err != nil {
				continue
			}
			ev := domain.ChangeEvent{EventType: domain.ChangeUpdate, Record: saved}
			if !existing[it.ID] {
				ev.EventType = domain.ChangeInsert
				res.Inserted = append(res.Inserted, it.ID)
			}
			events = append(events, ev)
		}
	}

	if res.SuccessCount == 0 && firstErr != nil {
		return BatchResult{}, firstErr
	}
	for _, ev := range events {
		publish(ctx, s.publisher, ev)
	}
	return res, nil
}

// existingIDs reports which of the items are already stored. Ids it cannot
// resolve count as existing, so their writes are announced as updates.
func (s *DynamoDBStore) existingIDs(ctx context.Context, items map[string]dynamoItem) map[string]bool {
	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for id := range items {
		keys = append(keys, map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}})
	}
	out, err := s.svc.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			s.table: {Keys: keys, ProjectionExpression: aws.String("id")},
		},
	})

	existing := make(map[string]bool, len(items))
	if err != nil {
		log.Warn().Err(err).Str("component", "remote").Msg("existing item lookup failed")
		for id := range items {
			existing[id] = true
		}
		return existing
	}
	for _, item := range out.Responses[s.table] {
		existing[itemID(item)] = true
	}
	for _, item := range out.UnprocessedKeys[s.table].Keys {
		existing[itemID(item)] = true
	}
	return existing
}

func itemID(item map[string]types.AttributeValue) string {
	if v, ok := item["id"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// QueryRecords scans the table with a filter expression built from f.
func (s *DynamoDBStore) QueryRecords(ctx context.Context, f domain.Filter) ([]domain.MeasurementRecord, error) {
	if f.SyncStatus != "" && f.SyncStatus != domain.StatusSynced {
		return nil, nil
	}
	input := buildScan(s.table, f)

	var items []dynamoItem
	paginator := dynamodb.NewScanPaginator(s.svc, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapDynamoError("query records", err)
		}
		var pageItems []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, &domain.RemoteError{Kind: domain.KindUnknown, Op: "query records", Err: err}
		}
		items = append(items, pageItems...)
	}

	out := make([]domain.MeasurementRecord, 0, len(items))
	for _, it := range items {
		r, err := it.record()
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ServerTimestamp.After(*out[j].ServerTimestamp)
	})
	return out, nil
}

func buildScan(table string, f domain.Filter) *dynamodb.ScanInput {
	var conditions []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	add := func(attr, op, placeholder, v string) {
		names["#"+attr] = attr
		values[placeholder] = &types.AttributeValueMemberS{Value: v}
		conditions = append(conditions, fmt.Sprintf("#%s %s %s", attr, op, placeholder))
	}

	if f.Unit != "" {
		add("unitType", "=", ":unit", string(f.Unit))
	}
	if f.Equipment != "" {
		add("equipmentId", "=", ":equipment", f.Equipment)
	}
	if f.Date != "" {
		add("measurementDate", "=", ":date", f.Date)
	}
	if f.DateFrom != "" {
		add("measurementDate", ">=", ":dateFrom", f.DateFrom)
	}
	if f.DateTo != "" {
		add("measurementDate", "<=", ":dateTo", f.DateTo)
	}
	if f.UserID != "" {
		add("userId", "=", ":user", f.UserID)
	}

	input := &dynamodb.ScanInput{TableName: aws.String(table)}
	if len(conditions) > 0 {
		input.FilterExpression = aws.String(strings.Join(conditions, " AND "))
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}
	return input
}

// DeleteRecord deletes the item only when ownerUserID owns it. A missing
// item or a different owner is not an error.
func (s *DynamoDBStore) DeleteRecord(ctx context.Context, unit domain.Unit, equipment, date, ownerUserID string) error {
	out, err := s.svc.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: domain.RecordID(unit, equipment, date)},
		},
		ConditionExpression: aws.String("attribute_not_exists(id) OR userId = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: ownerUserID},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return mapDynamoError("delete record", err)
	}
	if len(out.Attributes) == 0 {
		return nil
	}

	var old dynamoItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &old); err != nil {
		return nil
	}
	if r, err := old.record(); err == nil {
		publish(ctx, s.publisher, domain.ChangeEvent{EventType: domain.ChangeDelete, Record: r})
	}
	return nil
}

func mapDynamoError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.RemoteError{Kind: classifyAWS(err), Op: op, Err: err}
}

// classifyAWS maps AWS SDK errors, shared by the DynamoDB and Lambda backends.
func classifyAWS(err error) domain.RemoteErrorKind {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return domain.KindNotFound
	}
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return domain.KindConflict
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindNetworkUnreachable
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException",
			"InvalidSignatureException", "MissingAuthenticationTokenException":
			return domain.KindAuthRequired
		case "ResourceNotFoundException":
			return domain.KindNotFound
		case "ConditionalCheckFailedException", "TransactionConflictException":
			return domain.KindConflict
		}
		return domain.KindUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.KindNetworkUnreachable
	}
	return domain.KindUnknown
}
