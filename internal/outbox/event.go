// Package outbox stores domain events next to the write that caused them and
// relays them to SQS. Delivery is at-least-once; consumers must tolerate
// replays.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// Event types
const (
	TypeUserRegistered   = "user.registered"
	TypeCategoryUpserted = "category.upserted"
)

// Event statuses
const (
	StatusPending   = "PENDING"
	StatusPublished = "PUBLISHED"
)

// Event is one row of an outbox table.
type Event struct {
	ID          string     `dynamodbav:"id"`
	Type        string     `dynamodbav:"type"`
	AggregateID string     `dynamodbav:"aggregate_id"`
	Payload     string     `dynamodbav:"payload"`
	Status      string     `dynamodbav:"status"`
	CreatedAt   time.Time  `dynamodbav:"created_at"`
	PublishedAt *time.Time `dynamodbav:"published_at,omitempty"`
	// ExpiresAt is the table's TTL attribute, in Unix seconds, set once the
	// event is published.
	ExpiresAt   int64      `dynamodbav:"expires_at,omitempty"`
}

// Message is the SQS body the relay sends and the mirror consumer reads.
type Message struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// NewEvent builds a pending event with payload encoded as JSON.
func NewEvent(eventType, aggregateID string, payload any, now time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     string(raw),
		Status:      StatusPending,
		CreatedAt:   now.UTC(),
	}, nil
}

// PutItem renders e as a transaction item so it commits with the write that
// produced it.
func PutItem(table string, e Event) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal outbox event: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &table,
			Item:                item,
			ConditionExpression: awsString("attribute_not_exists(id)"),
		},
	}, nil
}

func (e Event) message() Message {
	return Message{
		ID:          e.ID,
		Type:        e.Type,
		AggregateID: e.AggregateID,
		Payload:     json.RawMessage(e.Payload),
		CreatedAt:   e.CreatedAt,
	}
}

func awsString(s string) *string { return &s }
