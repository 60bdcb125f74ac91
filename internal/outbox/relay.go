package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Publisher sends one message body with string attributes. *aws.Publisher
// implements it.
type Publisher interface {
	Publish(ctx context.Context, body string, attributes map[string]string) error
}

// ErrNoPublisher is returned by Flush when no queue is configured. Events
// stay pending.
var ErrNoPublisher = errors.New("outbox: no publisher configured")

// FlushReport counts what one Flush did.
type FlushReport struct {
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// Relay moves pending events from a Store to a Publisher.
type Relay struct {
	store   *Store
	pub     Publisher
	logger  *slog.Logger
	nowFunc func() time.Time
}

func NewRelay(store *Store, pub Publisher, logger *slog.Logger) *Relay {
	return &Relay{store: store, pub: pub, logger: logger, nowFunc: time.Now}
}

// Flush publishes every pending event. A failed publish leaves the event
// pending for the next run; an event that was published but not marked is
// sent again.
func (r *Relay) Flush(ctx context.Context) (FlushReport, error) {
	var rep FlushReport
	if r.pub == nil {
		return rep, ErrNoPublisher
	}
	events, err := r.store.Pending(ctx)
	if err != nil {
		return rep, err
	}

	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := r.relay(ctx, e); err != nil {
			rep.Failed++
			continue
		}
		rep.Published++
	}

	if rep.Failed > 0 {
		return rep, fmt.Errorf("outbox %s: %d of %d events not relayed", r.store.Table(), rep.Failed, len(events))
	}
	return rep, nil
}

// Publish relays the single event e, which the caller has just committed.
// Other pending events are left to Flush.
func (r *Relay) Publish(ctx context.Context, e Event) error {
	if r.pub == nil {
		return ErrNoPublisher
	}
	return r.relay(ctx, e)
}

func (r *Relay) relay(ctx context.Context, e Event) error {
	log := r.logger.With("event_id", e.ID, "event_type", e.Type, "aggregate_id", e.AggregateID)

	body, err := json.Marshal(e.message())
	if err != nil {
		log.Error("encode outbox event", "error", err)
		return fmt.Errorf("encode event %s: %w", e.ID, err)
	}
	attrs := map[string]string{
		"event_type":   e.Type,
		"event_id":     e.ID,
		"aggregate_id": e.AggregateID,
	}
	if err := r.pub.Publish(ctx, string(body), attrs); err != nil {
		log.Warn("publish outbox event", "error", err)
		return fmt.Errorf("publish event %s: %w", e.ID, err)
	}
	if err := r.store.MarkPublished(ctx, e.ID, r.nowFunc()); err != nil {
		log.Warn("event published but not marked", "error", err)
		return err
	}
	return nil
}
