package orders

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws/awstest"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

const table = "orders"

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestStore() (*Store, *awstest.Dynamo, *clock) {
	mock := awstest.NewDynamo().CreateTable(table, "id")
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(mock, table)
	s.nowFunc = c.Now
	return s, mock, c
}

func sampleRequest(userID string) validation.CreateOrderRequest {
	return validation.CreateOrderRequest{
		UserID:      userID,
		Items:       []validation.Item{{ProductID: "p-1", ProductName: "Mug", Quantity: 2, Price: 12.5}},
		TotalAmount: 25,
		ShippingAddress: validation.ShippingAddress{
			Street: "1 Main St", City: "Cairo", Country: "EG",
		},
	}
}

func TestCreate_DefaultsAndNumber(t *testing.T) {
	s, _, c := newTestStore()

	o, err := s.Create(context.Background(), sampleRequest("u-1"))
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Empty(t, o.PaymentID)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d+-[0-9a-z]{9}$`), o.OrderNumber)
	assert.Contains(t, o.OrderNumber, "1772366400000")
	assert.Equal(t, c.now, o.CreatedAt)

	got, err := s.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items, got.Items)
	assert.Equal(t, "Cairo", got.ShippingAddress.City)
}

func TestGet_NotFound(t *testing.T) {
	s, _, _ := newTestStore()

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_AnyTransition(t *testing.T) {
	s, _, _ := newTestStore()
	ctx := context.Background()

	o, err := s.Create(ctx, sampleRequest("u-1"))
	require.NoError(t, err)

	// no transition rules: delivered straight back to pending is accepted
	for _, st := range []string{StatusDelivered, StatusPending, StatusCancelled} {
		updated, err := s.UpdateStatus(ctx, o.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, updated.Status)
	}

	_, err = s.UpdateStatus(ctx, "missing", StatusShipped)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePaymentInfo(t *testing.T) {
	s, _, _ := newTestStore()
	ctx := context.Background()

	o, err := s.Create(ctx, sampleRequest("u-1"))
	require.NoError(t, err)

	updated, err := s.UpdatePaymentInfo(ctx, o.ID, "pay-1", PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", updated.PaymentID)
	assert.Equal(t, PaymentPaid, updated.PaymentStatus)
	assert.Equal(t, StatusPending, updated.Status)

	_, err = s.UpdatePaymentInfo(ctx, "missing", "pay-1", PaymentPaid)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s, mock, _ := newTestStore()
	ctx := context.Background()

	o, err := s.Create(ctx, sampleRequest("u-1"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, o.ID))
	assert.Nil(t, mock.Item(table, o.ID))
	assert.ErrorIs(t, s.Delete(ctx, o.ID), ErrNotFound)
}

func TestListByUserAndAll(t *testing.T) {
	s, _, c := newTestStore()
	ctx := context.Background()

	first, err := s.Create(ctx, sampleRequest("u-1"))
	require.NoError(t, err)
	c.now = c.now.Add(time.Minute)
	second, err := s.Create(ctx, sampleRequest("u-1"))
	require.NoError(t, err)
	_, err = s.Create(ctx, sampleRequest("u-2"))
	require.NoError(t, err)

	mine, err := s.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListUnlinked(t *testing.T) {
	s, _, c := newTestStore()
	ctx := context.Background()

	old, err := s.Create(ctx, sampleRequest("u-1"))
	require.NoError(t, err)
	paid, err := s.Create(ctx, sampleRequest("u-1"))
	require.NoError(t, err)
	_, err = s.UpdatePaymentInfo(ctx, paid.ID, "pay-1", PaymentPaid)
	require.NoError(t, err)

	c.now = c.now.Add(time.Hour)
	_, err = s.Create(ctx, sampleRequest("u-1"))
	require.NoError(t, err)

	list, err := s.ListUnlinked(ctx, c.now.Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, old.ID, list[0].ID)
}

func TestCreate_StorageError(t *testing.T) {
	s, mock, _ := newTestStore()
	mock.FailNext("PutItem", errors.New("throttled"))

	_, err := s.Create(context.Background(), sampleRequest("u-1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
