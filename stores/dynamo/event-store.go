package dynamo

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/goccy/go-json"
	pkgerrors "github.com/pkg/errors"

	"github.com/weegigs/wee-ledger-go/we"
)

type EventsTableName string

func (name EventsTableName) String() string {
	return string(name)
}

const (
	headKey         = "head"
	changeSetPrefix = "change-set#"
)

// EventStore keeps an aggregate in one partition: a head item holding the
// current revision and one item per published change set. A publish writes
// both in a single transaction, conditional on the head it read.
type EventStore struct {
	db       *dynamodb.Client
	table    *string
	revision *we.RevisionGenerator
}

func NewEventStore(db *dynamodb.Client, table EventsTableName) *EventStore {
	return &EventStore{db: db, table: aws.String(table.String()), revision: we.NewRevisionGenerator()}
}

type headItem struct {
	PartitionKey string      `dynamodbav:"pk"`
	SortKey      string      `dynamodbav:"sk"`
	Revision     we.Revision `dynamodbav:"revision"`
}

type changeSetItem struct {
	PartitionKey string       `dynamodbav:"pk"`
	SortKey      string       `dynamodbav:"sk"`
	Revision     we.Revision  `dynamodbav:"revision"`
	Timestamp    we.Timestamp `dynamodbav:"timestamp"`
	Events       string       `dynamodbav:"events"`
}

func changeSetKey(revision we.Revision) string {
	return changeSetPrefix + revision.String()
}

func (ds *EventStore) Load(ctx context.Context, id we.AggregateId) (we.Aggregate, error) {
	partition := id.Encode().String()

	condition, err := expression.NewBuilder().WithKeyCondition(
		expression.Key("pk").Equal(expression.Value(partition)).
			And(expression.Key("sk").BeginsWith(changeSetPrefix)),
	).Build()
	if err != nil {
		return we.Aggregate{}, err
	}

	pages := dynamodb.NewQueryPaginator(ds.db, &dynamodb.QueryInput{
		TableName:                 ds.table,
		KeyConditionExpression:    condition.KeyCondition(),
		ExpressionAttributeNames:  condition.Names(),
		ExpressionAttributeValues: condition.Values(),
		ConsistentRead:            aws.Bool(true),
	})

	var events []we.RecordedEvent
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return we.Aggregate{}, pkgerrors.Wrapf(err, "failed to query %s", partition)
		}

		var items []changeSetItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return we.Aggregate{}, err
		}

		for _, item := range items {
			var recorded []we.RecordedEvent
			if err := json.Unmarshal([]byte(item.Events), &recorded); err != nil {
				return we.Aggregate{}, pkgerrors.Wrapf(err, "failed to decode change set %s", item.Revision)
			}
			events = append(events, recorded...)
		}
	}

	return we.Aggregate{Id: id, Revision: we.RevisionOf(events), Events: events}, nil
}

func (ds *EventStore) head(ctx context.Context, partition string) (we.Revision, error) {
	key := map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: partition},
		"sk": &types.AttributeValueMemberS{Value: headKey},
	}

	out, err := ds.db.GetItem(ctx, &dynamodb.GetItemInput{TableName: ds.table, Key: key, ConsistentRead: aws.Bool(true)})
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to read head of %s", partition)
	}

	if out.Item == nil {
		return we.InitialRevision, nil
	}

	var item headItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return "", err
	}

	return item.Revision, nil
}

func (ds *EventStore) Publish(ctx context.Context, aggregateId we.AggregateId, options we.PublishOptions, events ...we.DomainEvent) (we.Revision, error) {
	if len(events) == 0 {
		return "", we.NoEvents
	}

	encoded := make([]we.Data, len(events))
	for i, event := range events {
		data, err := we.MarshalToData(event)
		if err != nil {
			return "", err
		}
		encoded[i] = data
	}

	partition := aggregateId.Encode().String()

	var revision we.Revision
	err := retry.Do(
		func() error {
			current, err := ds.head(ctx, partition)
			if err != nil {
				return err
			}

			if options.ExpectedRevision != "" && options.ExpectedRevision != current {
				return we.RevisionConflict
			}

			now := time.Now()
			timestamp := we.TimestampFromTime(now)

			recorded := make([]we.RecordedEvent, len(events))
			revision = current
			for i, event := range events {
				revision = ds.revision.After(now, revision)
				recorded[i] = we.RecordedEvent{
					AggregateId: aggregateId,
					Revision:    revision,
					EventID:     we.EventID(revision),
					EventType:   we.EventTypeOf(event),
					Timestamp:   timestamp,
					Metadata:    options.RecordedEventMetadata,
					Data:        encoded[i],
				}
			}

			return ds.write(ctx, partition, current, recorded)
		},
		retry.Context(ctx),
		retry.Delay(5*time.Millisecond),
		retry.RetryIf(
			func(err error) bool {
				return errors.Is(err, we.RevisionConflict) && options.ExpectedRevision == ""
			},
		),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}

	return revision, nil
}

// write stores recorded as one change set and moves the head to its last
// revision, provided the head is still at current.
func (ds *EventStore) write(ctx context.Context, partition string, current we.Revision, recorded []we.RecordedEvent) error {
	last := recorded[len(recorded)-1]

	data, err := json.Marshal(recorded)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode change set")
	}

	changes, err := attributevalue.MarshalMap(changeSetItem{
		PartitionKey: partition,
		SortKey:      changeSetKey(last.Revision),
		Revision:     last.Revision,
		Timestamp:    last.Timestamp,
		Events:       string(data),
	})
	if err != nil {
		return err
	}

	head, err := attributevalue.MarshalMap(headItem{PartitionKey: partition, SortKey: headKey, Revision: last.Revision})
	if err != nil {
		return err
	}

	unchanged := expression.Name("revision").Equal(expression.Value(current))
	if current == we.InitialRevision {
		unchanged = expression.AttributeNotExists(expression.Name("revision"))
	}

	condition, err := expression.NewBuilder().WithCondition(unchanged).Build()
	if err != nil {
		return err
	}

	_, err = ds.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:                 ds.table,
					Item:                      head,
					ConditionExpression:       condition.Condition(),
					ExpressionAttributeNames:  condition.Names(),
					ExpressionAttributeValues: condition.Values(),
				},
			},
			{
				Put: &types.Put{TableName: ds.table, Item: changes},
			},
		},
	})

	if conditionFailed(err) {
		return we.RevisionConflict
	}

	return err
}

func conditionFailed(err error) bool {
	var operation *smithy.OperationError
	if !errors.As(err, &operation) {
		return false
	}

	var response *http.ResponseError
	if !errors.As(operation.Unwrap(), &response) {
		return false
	}

	var cancelled *types.TransactionCanceledException
	if !errors.As(response.Unwrap(), &cancelled) {
		return false
	}

	for _, reason := range cancelled.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}

	return false
}
