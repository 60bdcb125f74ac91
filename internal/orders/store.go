package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

const userIndex = "user_id-index"

// ErrNotFound is returned when no order has the requested id.
var ErrNotFound = errors.New("order not found")

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	newID     func() string
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// Create persists a new pending, unpaid order.
func (s *Store) Create(ctx context.Context, req validation.CreateOrderRequest) (*Order, error) {
	now := s.nowFunc().UTC()
	o := Order{
		ID:              s.newID(),
		OrderNumber:     orderNumber(now),
		UserID:          req.UserID,
		Items:           req.Items,
		TotalAmount:     req.TotalAmount,
		Status:          StatusPending,
		ShippingAddress: req.ShippingAddress,
		PaymentStatus:   PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put order: %w", err)
	}
	return &o, nil
}

// Get fetches an order by id. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       keyOf(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateStatus overwrites the order status. Any status may replace any other;
// concurrent writers are last-write-wins.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) (*Order, error) {
	return s.update(ctx, id, "SET #s = :s, updated_at = :ua", map[string]string{"#s": "status"},
		map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: status},
		})
}

// UpdatePaymentInfo overwrites the payment link fields.
func (s *Store) UpdatePaymentInfo(ctx context.Context, id, paymentID, paymentStatus string) (*Order, error) {
	return s.update(ctx, id, "SET payment_id = :pid, payment_status = :ps, updated_at = :ua", nil,
		map[string]types.AttributeValue{
			":pid": &types.AttributeValueMemberS{Value: paymentID},
			":ps":  &types.AttributeValueMemberS{Value: paymentStatus},
		})
}

func (s *Store) update(ctx context.Context, id, expr string, names map[string]string, values map[string]types.AttributeValue) (*Order, error) {
	values[":ua"] = &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)}
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       keyOf(id),
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       awsString("attribute_exists(id)"),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// Delete removes the order permanently.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 keyOf(id),
		ConditionExpression: awsString("attribute_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// ListByUser returns the user's orders, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	var (
		result []Order
		start  map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:              &s.tableName,
			IndexName:              awsString(userIndex),
			KeyConditionExpression: awsString("user_id = :u"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":u": &types.AttributeValueMemberS{Value: userID},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("query orders by user: %w", err)
		}
		page, err := unmarshalOrders(out.Items)
		if err != nil {
			return nil, err
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	sortNewestFirst(result)
	return result, nil
}

// ListAll returns every order, newest first.
func (s *Store) ListAll(ctx context.Context) ([]Order, error) {
	return s.scan(ctx, "", nil)
}

// ListUnlinked returns orders still waiting for a payment link that were
// created before cutoff.
func (s *Store) ListUnlinked(ctx context.Context, cutoff time.Time) ([]Order, error) {
	all, err := s.scan(ctx, "payment_status = :ps", map[string]types.AttributeValue{
		":ps": &types.AttributeValueMemberS{Value: PaymentPending},
	})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, o := range all {
		if o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) scan(ctx context.Context, filter string, values map[string]types.AttributeValue) ([]Order, error) {
	var (
		result []Order
		start  map[string]types.AttributeValue
	)
	for {
		in := &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: start,
		}
		if filter != "" {
			in.FilterExpression = &filter
			in.ExpressionAttributeValues = values
		}
		out, err := s.client.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		page, err := unmarshalOrders(out.Items)
		if err != nil {
			return nil, err
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	sortNewestFirst(result)
	return result, nil
}

func unmarshalOrders(items []map[string]types.AttributeValue) ([]Order, error) {
	out := make([]Order, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, fmt.Errorf("unmarshal orders: %w", err)
	}
	return out, nil
}

func sortNewestFirst(list []Order) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// orderNumber renders ORD-<unix millis>-<9 random base36 chars>.
func orderNumber(now time.Time) string {
	u := uuid.New()
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[int(u[i])%len(base36)]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

func awsString(s string) *string { return &s }
