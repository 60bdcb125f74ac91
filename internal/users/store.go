package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

var (
	ErrNotFound = errors.New("profile not found")
	// ErrStale means the stored profile was synced from the same or a later
	// credential version.
	ErrStale = errors.New("stale profile sync")
)

type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

func (s *Store) Get(ctx context.Context, id string) (*Profile, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       keyOf(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var p Profile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &p, nil
}

// Upsert writes the identity fields of a profile, keeping created_at and the
// locally owned fields of an existing one. It returns ErrStale when the
// stored profile already holds version or a later one.
func (s *Store) Upsert(ctx context.Context, req validation.SyncProfileRequest, version int64, at time.Time) (*Profile, error) {
	ts := &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)}
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 keyOf(req.ID),
		UpdateExpression:    awsString("SET email = :e, #n = :n, #r = :r, source_version = :v, updated_at = :ts, created_at = if_not_exists(created_at, :ts)"),
		ConditionExpression: awsString("attribute_not_exists(source_version) OR source_version < :v"),
		ExpressionAttributeNames: map[string]string{
			"#n": "name",
			"#r": "role",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e":  &types.AttributeValueMemberS{Value: req.Email},
			":n":  &types.AttributeValueMemberS{Value: req.Name},
			":r":  &types.AttributeValueMemberS{Value: req.Role},
			":v":  versionValue(version),
			":ts": ts,
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrStale
		}
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return unmarshalProfile(out.Attributes)
}

// MarkVersion records version without touching the profile, for a sync whose
// identity fields already match.
func (s *Store) MarkVersion(ctx context.Context, id string, version int64) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 keyOf(id),
		UpdateExpression:    awsString("SET source_version = :v"),
		ConditionExpression: awsString("attribute_exists(id) AND (attribute_not_exists(source_version) OR source_version < :v)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": versionValue(version),
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrStale
		}
		return fmt.Errorf("mark profile version: %w", err)
	}
	return nil
}

// Update sets the non-nil fields of req on an existing profile.
func (s *Store) Update(ctx context.Context, req validation.UpdateUserRequest, at time.Time) (*Profile, error) {
	sets := []string{"updated_at = :ts"}
	names := map[string]string{}
	values := map[string]types.AttributeValue{
		":ts": &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
	}
	if req.Name != nil {
		sets = append(sets, "#n = :n")
		names["#n"] = "name"
		values[":n"] = &types.AttributeValueMemberS{Value: *req.Name}
	}
	if req.Phone != nil {
		sets = append(sets, "phone = :p")
		values[":p"] = &types.AttributeValueMemberS{Value: *req.Phone}
	}
	if req.Address != nil {
		sets = append(sets, "address = :a")
		values[":a"] = &types.AttributeValueMemberS{Value: *req.Address}
	}
	if len(names) == 0 {
		names = nil
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       keyOf(req.ID),
		UpdateExpression:          awsString("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       awsString("attribute_exists(id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return unmarshalProfile(out.Attributes)
}

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
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// List returns every profile ordered by email.
func (s *Store) List(ctx context.Context) ([]Profile, error) {
	var (
		result []Profile
		start  map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan profiles: %w", err)
		}
		var page []Profile
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal profiles: %w", err)
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	return result, nil
}

func unmarshalProfile(item map[string]types.AttributeValue) (*Profile, error) {
	var p Profile
	if err := attributevalue.UnmarshalMap(item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &p, nil
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func versionValue(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

func awsString(s string) *string { return &s }
