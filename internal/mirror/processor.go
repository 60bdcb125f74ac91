// Package mirror consumes outbox events from SQS and applies them to the
// services that keep copies: user.registered to the users profile sync,
// category.upserted to the products category snapshot.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/outbox"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/products"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/users"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// ProfileSyncer is implemented by *users.Client.
type ProfileSyncer interface {
	Sync(ctx context.Context, req validation.SyncProfileRequest) (*users.Profile, error)
}

// SnapshotSyncer is implemented by *products.Client.
type SnapshotSyncer interface {
	SyncCategorySnapshot(ctx context.Context, req validation.CategorySnapshotRequest) (*products.SnapshotReport, error)
}

// Processor handles SQS batches of outbox messages.
type Processor struct {
	profiles  ProfileSyncer
	snapshots SnapshotSyncer
	logger    *slog.Logger
}

func NewProcessor(profiles ProfileSyncer, snapshots SnapshotSyncer, logger *slog.Logger) *Processor {
	return &Processor{profiles: profiles, snapshots: snapshots, logger: logger}
}

// Handle processes every record and reports the ones worth retrying as batch
// item failures. Malformed and rejected messages are logged and dropped.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	p.logger.Info("received batch", "records", len(ev.Records))
	for _, rec := range ev.Records {
		err := p.Process(ctx, rec.Body)
		if err == nil {
			continue
		}
		log := p.logger.With("message_id", rec.MessageId)
		if !retryable(err) {
			log.Error("dropping message", "error", err)
			continue
		}
		log.Warn("message will be retried", "error", err)
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
	}
	return resp, nil
}

// Process applies one message body.
func (p *Processor) Process(ctx context.Context, body string) error {
	var msg outbox.Message
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return apperr.Validation("invalid message body: %v", err)
	}
	log := p.logger.With("event_id", msg.ID, "event_type", msg.Type, "aggregate_id", msg.AggregateID)

	switch msg.Type {
	case outbox.TypeUserRegistered:
		var req validation.SyncProfileRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return apperr.Validation("invalid %s payload: %v", msg.Type, err)
		}
		if _, err := p.profiles.Sync(ctx, req); err != nil {
			return fmt.Errorf("sync profile %s: %w", req.ID, err)
		}
	case outbox.TypeCategoryUpserted:
		var req validation.CategorySnapshotRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return apperr.Validation("invalid %s payload: %v", msg.Type, err)
		}
		if _, err := p.snapshots.SyncCategorySnapshot(ctx, req); err != nil {
			return fmt.Errorf("sync category %s: %w", req.ID, err)
		}
	default:
		log.Warn("ignoring unknown event type")
		return nil
	}
	log.Info("event applied")
	return nil
}

// retryable is false for failures a redelivery cannot fix.
func retryable(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound, apperr.KindConflict:
		return false
	}
	return true
}
