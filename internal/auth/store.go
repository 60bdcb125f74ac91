package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/outbox"
)

var (
	ErrNotFound   = errors.New("credential not found")
	ErrEmailTaken = errors.New("email already registered")
)

const emailClaimPrefix = "email#"

// Store keeps credentials and their email claims in one table. The outbox
// table is only written inside Create's transaction.
type Store struct {
	client      aws.DynamoDBAPI
	tableName   string
	outboxTable string
}

func NewStore(client aws.DynamoDBAPI, tableName, outboxTable string) *Store {
	return &Store{client: client, tableName: tableName, outboxTable: outboxTable}
}

// Create writes the credential, claims its email and records event, or does
// none of those. A taken email yields ErrEmailTaken.
func (s *Store) Create(ctx context.Context, c Credential, event outbox.Event) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	evt, err := outbox.PutItem(s.outboxTable, event)
	if err != nil {
		return err
	}
	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           &s.tableName,
				Item:                item,
				ConditionExpression: awsString("attribute_not_exists(id)"),
			}},
			{Put: &types.Put{
				TableName: &s.tableName,
				Item: map[string]types.AttributeValue{
					"id":      &types.AttributeValueMemberS{Value: emailClaimPrefix + c.Email},
					"user_id": &types.AttributeValueMemberS{Value: c.ID},
				},
				ConditionExpression: awsString("attribute_not_exists(id)"),
			}},
			evt,
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			for _, r := range tce.CancellationReasons {
				if r.Code != nil && *r.Code == "ConditionalCheckFailed" {
					return ErrEmailTaken
				}
			}
		}
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// Replace overwrites an existing credential and records event in the same
// transaction. The email claim is left as it is.
func (s *Store) Replace(ctx context.Context, c Credential, event outbox.Event) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	evt, err := outbox.PutItem(s.outboxTable, event)
	if err != nil {
		return err
	}
	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           &s.tableName,
				Item:                item,
				ConditionExpression: awsString("attribute_exists(id)"),
			}},
			evt,
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return ErrNotFound
		}
		return fmt.Errorf("replace credential: %w", err)
	}
	return nil
}

// Get fetches a credential by user id.
func (s *Store) Get(ctx context.Context, id string) (*Credential, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       keyOf(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var c Credential
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	return &c, nil
}

// GetByEmail resolves the email claim, then loads the credential.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       keyOf(emailClaimPrefix + email),
	})
	if err != nil {
		return nil, fmt.Errorf("get email claim: %w", err)
	}
	uid, ok := out.Item["user_id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, uid.Value)
}

// SetPasswordHash replaces the stored hash of an existing credential.
func (s *Store) SetPasswordHash(ctx context.Context, id, hash string, at time.Time) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 keyOf(id),
		UpdateExpression:    awsString("SET password_hash = :h, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":h":  &types.AttributeValueMemberS{Value: hash},
			":ua": &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }
