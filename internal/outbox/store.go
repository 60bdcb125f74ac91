package outbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws"
)

// Store reads and updates one outbox table. Events are written by the owning
// service's transactions, not through Store.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

func (s *Store) Table() string { return s.tableName }

// Pending returns unpublished events, oldest first.
func (s *Store) Pending(ctx context.Context) ([]Event, error) {
	var (
		result []Event
		start  map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:                &s.tableName,
			FilterExpression:         awsString("#s = :p"),
			ExpressionAttributeNames: map[string]string{"#s": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":p": &types.AttributeValueMemberS{Value: StatusPending},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		var page []Event
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal outbox events: %w", err)
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// PublishedRetention is how long a PUBLISHED row is kept before the table's
// TTL on expires_at removes it.
const PublishedRetention = 7 * 24 * time.Hour

// MarkPublished flips a pending event to PUBLISHED and sets its expiry. An
// event another relay already marked is not an error.
func (s *Store) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:         awsString("SET #s = :published, published_at = :at, expires_at = :exp"),
		ConditionExpression:      awsString("#s = :pending"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":published": &types.AttributeValueMemberS{Value: StatusPublished},
			":pending":   &types.AttributeValueMemberS{Value: StatusPending},
			":at":        &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
			":exp":       &types.AttributeValueMemberN{Value: strconv.FormatInt(at.Add(PublishedRetention).Unix(), 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("mark event %s published: %w", id, err)
	}
	return nil
}
