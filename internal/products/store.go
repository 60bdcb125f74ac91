package products

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

const categoryIndex = "category_id-index"

var (
	ErrNotFound = errors.New("not found")
	// ErrStale means the stored copy is at least as new as the one offered.
	ErrStale = errors.New("stale category copy")
)

// Store covers the products table and the category snapshot table.
type Store struct {
	client         aws.DynamoDBAPI
	productsTable  string
	snapshotsTable string
}

func NewStore(client aws.DynamoDBAPI, productsTable, snapshotsTable string) *Store {
	return &Store{client: client, productsTable: productsTable, snapshotsTable: snapshotsTable}
}

func (s *Store) Create(ctx context.Context, p Product) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.productsTable,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.productsTable,
		Key:       keyOf(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// ListByCategory queries the category index.
func (s *Store) ListByCategory(ctx context.Context, categoryID string) ([]Product, error) {
	var (
		result []Product
		start  map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:              &s.productsTable,
			IndexName:              awsString(categoryIndex),
			KeyConditionExpression: awsString("category_id = :c"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":c": &types.AttributeValueMemberS{Value: categoryID},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("query products by category: %w", err)
		}
		page, err := unmarshalProducts(out.Items)
		if err != nil {
			return nil, err
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	sortByName(result)
	return result, nil
}

// ListAll scans every product carrying a category id.
func (s *Store) ListAll(ctx context.Context) ([]Product, error) {
	var (
		result []Product
		start  map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &s.productsTable,
			FilterExpression:  awsString("attribute_exists(category_id)"),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}
		page, err := unmarshalProducts(out.Items)
		if err != nil {
			return nil, err
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	sortByName(result)
	return result, nil
}

// SetCategoryCopy overwrites a product's copy of its category unless the
// product already carries a copy of the same or a later version. A missing
// product and a newer copy both come back as ErrStale.
func (s *Store) SetCategoryCopy(ctx context.Context, id string, snap Snapshot, at time.Time) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.productsTable,
		Key:                 keyOf(id),
		UpdateExpression:    awsString("SET category_name = :n, category_slug = :s, category_version = :v, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(id) AND (attribute_not_exists(category_version) OR category_version < :v)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n":  &types.AttributeValueMemberS{Value: snap.Name},
			":s":  &types.AttributeValueMemberS{Value: snap.Slug},
			":v":  &types.AttributeValueMemberN{Value: strconv.FormatInt(snap.Version, 10)},
			":ua": &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrStale
		}
		return fmt.Errorf("update product category: %w", err)
	}
	return nil
}

func (s *Store) GetSnapshot(ctx context.Context, categoryID string) (*Snapshot, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.snapshotsTable,
		Key:       keyOf(categoryID),
	})
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var snap Snapshot
	if err := attributevalue.UnmarshalMap(out.Item, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// PutSnapshot stores snap unless the stored snapshot has the same or a later
// version, in which case it returns ErrStale.
func (s *Store) PutSnapshot(ctx context.Context, snap Snapshot) error {
	item, err := attributevalue.MarshalMap(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.snapshotsTable,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(source_version) OR source_version < :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(snap.Version, 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrStale
		}
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

func unmarshalProducts(items []map[string]types.AttributeValue) ([]Product, error) {
	out := make([]Product, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, fmt.Errorf("unmarshal products: %w", err)
	}
	return out, nil
}

func sortByName(list []Product) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }
