package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws/awstest"
)

const table = "idempotency-table"

func newTestStore() (*Store, *awstest.Dynamo) {
	mock := awstest.NewDynamo().CreateTable(table, "idempotency_key")
	s := NewStore(mock, table, 48*time.Hour)
	s.nowFunc = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s, mock
}

func TestCreateIfNotExists_Get_MarkDone_MarkFailed(t *testing.T) {
	s, mock := newTestStore()

	ctx := context.Background()
	key := "charge:order-123:1"
	orderID := "order-123"

	created, err := s.CreateIfNotExists(ctx, key, orderID)
	if err != nil {
		t.Fatalf("CreateIfNotExists error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true")
	}

	// second create should return created=false (exists)
	created2, err := s.CreateIfNotExists(ctx, key, orderID)
	if err != nil {
		t.Fatalf("second CreateIfNotExists error: %v", err)
	}
	if created2 {
		t.Fatalf("expected created=false on duplicate create")
	}

	rec, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record, got nil")
	}
	if rec.Status != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", rec.Status)
	}
	if rec.ResourceID != orderID {
		t.Fatalf("resource id mismatch")
	}
	if want := s.nowFunc().Add(48 * time.Hour).Unix(); rec.ExpiresAt != want {
		t.Fatalf("expected expires_at %d, got %d", want, rec.ExpiresAt)
	}

	if err := s.MarkDone(ctx, key, `{"ok":true}`, 201); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}

	item := mock.Item(table, key)
	if st, ok := item["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusDone {
		t.Fatalf("status not updated to DONE, got %+v", item["status"])
	}
	if rb, ok := item["response_body"].(*types.AttributeValueMemberS); !ok || rb.Value != `{"ok":true}` {
		t.Fatalf("response_body not set correctly: %+v", item["response_body"])
	}

	if err := s.MarkFailed(ctx, key, "failed-reason"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	rec, _ = s.Get(ctx, key)
	if rec.Status != StatusFailed || rec.Note != "failed-reason" {
		t.Fatalf("expected FAILED with note, got %+v", rec)
	}
}

func TestGet_Missing(t *testing.T) {
	s, _ := newTestStore()

	rec, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
}

func TestMarkDone_MissingKey(t *testing.T) {
	s, _ := newTestStore()

	if err := s.MarkDone(context.Background(), "never-claimed", "{}", 200); err == nil {
		t.Fatal("expected error when marking an unclaimed key")
	}
}

func TestAcquire_ReturnsExisting(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	rec, created, err := s.Acquire(ctx, "refund:pay-1", "pay-1")
	if err != nil || !created || rec != nil {
		t.Fatalf("expected fresh claim, got rec=%v created=%v err=%v", rec, created, err)
	}

	if err := s.MarkDone(ctx, "refund:pay-1", `{"status":"refunded"}`, 200); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}

	rec, created, err = s.Acquire(ctx, "refund:pay-1", "pay-1")
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if created {
		t.Fatal("expected created=false for a claimed key")
	}
	if rec.Status != StatusDone || rec.ResponseStatus != 200 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestRelease(t *testing.T) {
	s, mock := newTestStore()
	ctx := context.Background()

	if _, err := s.CreateIfNotExists(ctx, "k1", "r1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Release(ctx, "k1"); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if mock.Item(table, "k1") != nil {
		t.Fatal("expected in-progress key to be deleted")
	}

	// a DONE key survives release
	if _, err := s.CreateIfNotExists(ctx, "k2", "r2"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkDone(ctx, "k2", "{}", 200); err != nil {
		t.Fatal(err)
	}
	if err := s.Release(ctx, "k2"); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if mock.Item(table, "k2") == nil {
		t.Fatal("expected DONE key to survive release")
	}

	// releasing an unknown key is a no-op
	if err := s.Release(ctx, "k3"); err != nil {
		t.Fatalf("Release of missing key: %v", err)
	}
}

func TestCreateIfNotExists_StorageError(t *testing.T) {
	s, mock := newTestStore()
	mock.FailNext("PutItem", errors.New("throttled"))

	created, err := s.CreateIfNotExists(context.Background(), "k", "r")
	if err == nil || created {
		t.Fatalf("expected storage error, got created=%v err=%v", created, err)
	}
}
