package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws"
)

const orderIndex = "order_id-index"

var (
	ErrNotFound = errors.New("payment not found")
	// ErrNotRefundable means the payment left the completed state before the
	// refund could be recorded.
	ErrNotRefundable = errors.New("payment is not refundable")
)

// Store encapsulates operations on the payments table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, nowFunc: time.Now}
}

// Put writes a new payment row. Rows are never overwritten.
func (s *Store) Put(ctx context.Context, p *Payment) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal payment: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("put payment: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Payment, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       keyOf(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var p Payment
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payment: %w", err)
	}
	return &p, nil
}

// ListByOrder returns every attempt recorded for the order.
func (s *Store) ListByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	var (
		result []Payment
		start  map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:              &s.tableName,
			IndexName:              awsString(orderIndex),
			KeyConditionExpression: awsString("order_id = :o"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":o": &types.AttributeValueMemberS{Value: orderID},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("query payments by order: %w", err)
		}
		var page []Payment
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal payments: %w", err)
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return result, nil
		}
		start = out.LastEvaluatedKey
	}
}

// MarkRefunded moves a completed payment to refunded. It fails with
// ErrNotRefundable when the row is no longer completed.
func (s *Store) MarkRefunded(ctx context.Context, id string, amount float64, refundTxID string) (*Payment, error) {
	now := s.nowFunc().UTC()
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              keyOf(id),
		UpdateExpression: awsString("SET #s = :refunded, refund_amount = :ra, refund_transaction_id = :rt, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":refunded":  &types.AttributeValueMemberS{Value: StatusRefunded},
			":completed": &types.AttributeValueMemberS{Value: StatusCompleted},
			":ra":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%.2f", amount)},
			":rt":        &types.AttributeValueMemberS{Value: refundTxID},
			":ua":        &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ConditionExpression: awsString("#s = :completed"),
		ReturnValues:        types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrNotRefundable
		}
		return nil, fmt.Errorf("update payment: %w", err)
	}
	var p Payment
	if err := attributevalue.UnmarshalMap(out.Attributes, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payment: %w", err)
	}
	return &p, nil
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }
