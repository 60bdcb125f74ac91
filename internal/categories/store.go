package categories

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/outbox"
)

var (
	ErrNotFound  = errors.New("category not found")
	ErrSlugTaken = errors.New("category slug taken")
	// ErrConcurrentUpdate means the category changed between read and write.
	ErrConcurrentUpdate = errors.New("category modified concurrently")
)

const slugClaimPrefix = "slug#"

// Store keeps categories and their slug claims in one table.
type Store struct {
	client      aws.DynamoDBAPI
	tableName   string
	outboxTable string
}

func NewStore(client aws.DynamoDBAPI, tableName, outboxTable string) *Store {
	return &Store{client: client, tableName: tableName, outboxTable: outboxTable}
}

// Create writes c, claims its slug and records event atomically.
func (s *Store) Create(ctx context.Context, c Category, event outbox.Event) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal category: %w", err)
	}
	evt, err := outbox.PutItem(s.outboxTable, event)
	if err != nil {
		return err
	}
	return s.transact(ctx, []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:           &s.tableName,
			Item:                item,
			ConditionExpression: awsString("attribute_not_exists(id)"),
		}},
		s.claim(c.Slug, c.ID),
		evt,
	})
}

// Replace overwrites prev with next when prev is still the stored version.
// A slug change moves the claim. event may be nil when nothing products copy
// has changed.
func (s *Store) Replace(ctx context.Context, prev, next Category, event *outbox.Event) error {
	item, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("marshal category: %w", err)
	}
	prevStamp, err := attributevalue.Marshal(prev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}
	items := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:                 &s.tableName,
			Item:                      item,
			ConditionExpression:       awsString("updated_at = :prev"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":prev": prevStamp},
		}},
	}
	if prev.Slug != next.Slug {
		items = append(items,
			types.TransactWriteItem{Delete: &types.Delete{
				TableName: &s.tableName,
				Key:       keyOf(slugClaimPrefix + prev.Slug),
			}},
			s.claim(next.Slug, next.ID),
		)
	}
	if event != nil {
		evt, err := outbox.PutItem(s.outboxTable, *event)
		if err != nil {
			return err
		}
		items = append(items, evt)
	}
	err = s.transact(ctx, items)
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) && len(tce.CancellationReasons) > 0 && isConditionFailure(tce.CancellationReasons[0]) {
		return ErrConcurrentUpdate
	}
	return err
}

// Delete removes the category and releases its slug.
func (s *Store) Delete(ctx context.Context, c Category) error {
	return s.transact(ctx, []types.TransactWriteItem{
		{Delete: &types.Delete{
			TableName:           &s.tableName,
			Key:                 keyOf(c.ID),
			ConditionExpression: awsString("attribute_exists(id)"),
		}},
		{Delete: &types.Delete{
			TableName: &s.tableName,
			Key:       keyOf(slugClaimPrefix + c.Slug),
		}},
	})
}

func (s *Store) claim(slug, categoryID string) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName: &s.tableName,
		Item: map[string]types.AttributeValue{
			"id":          &types.AttributeValueMemberS{Value: slugClaimPrefix + slug},
			"category_id": &types.AttributeValueMemberS{Value: categoryID},
		},
		ConditionExpression: awsString("attribute_not_exists(id)"),
	}}
}

func (s *Store) transact(ctx context.Context, items []types.TransactWriteItem) error {
	_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for i, r := range tce.CancellationReasons {
			if i > 0 && isConditionFailure(r) && items[i].Put != nil {
				return ErrSlugTaken
			}
		}
		if len(tce.CancellationReasons) > 0 && isConditionFailure(tce.CancellationReasons[0]) {
			if items[0].Delete != nil {
				return ErrNotFound
			}
		}
	}
	return fmt.Errorf("write category: %w", err)
}

func isConditionFailure(r types.CancellationReason) bool {
	return r.Code != nil && *r.Code == "ConditionalCheckFailed"
}

func (s *Store) Get(ctx context.Context, id string) (*Category, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       keyOf(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	if _, ok := out.Item["slug"]; !ok {
		return nil, ErrNotFound
	}
	var c Category
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal category: %w", err)
	}
	return &c, nil
}

// GetBySlug resolves the slug claim, then loads the category.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       keyOf(slugClaimPrefix + slug),
	})
	if err != nil {
		return nil, fmt.Errorf("get slug claim: %w", err)
	}
	cid, ok := out.Item["category_id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, cid.Value)
}

// List returns categories ordered by name; inactive ones only when asked.
func (s *Store) List(ctx context.Context, includeInactive bool) ([]Category, error) {
	filter := "attribute_exists(slug)"
	values := map[string]types.AttributeValue(nil)
	if !includeInactive {
		filter += " AND is_active = :active"
		values = map[string]types.AttributeValue{":active": &types.AttributeValueMemberBOOL{Value: true}}
	}

	var (
		result []Category
		start  map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:                 &s.tableName,
			FilterExpression:          &filter,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan categories: %w", err)
		}
		var page []Category
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal categories: %w", err)
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }
