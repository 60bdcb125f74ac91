package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/logging"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/orders"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/payments"
)

func seedOrder(f *fakeOrders, id, paymentStatus string) {
	f.orders[id] = &orders.Order{ID: id, TotalAmount: 10, Status: orders.StatusPending, PaymentStatus: paymentStatus}
}

func TestReconciler_LinksChargedOrders(t *testing.T) {
	o := newFakeOrders()
	p := newFakePayments()
	m := &fakeMetrics{}

	seedOrder(o, "charged", orders.PaymentPending)
	seedOrder(o, "refunded", orders.PaymentPending)
	seedOrder(o, "declined", orders.PaymentPending)
	seedOrder(o, "never-charged", orders.PaymentPending)
	seedOrder(o, "already-paid", orders.PaymentPaid)

	p.status["charged"] = &payments.StatusView{PaymentID: "pay-c", Status: payments.StatusCompleted}
	p.status["refunded"] = &payments.StatusView{PaymentID: "pay-r", Status: payments.StatusRefunded}
	p.status["declined"] = &payments.StatusView{PaymentID: "pay-d", Status: payments.StatusFailed}

	r := NewReconciler(o, p, m, 15*time.Minute, logging.Discard())
	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Report{Scanned: 4, Linked: 2, Skipped: 2}, rep)
	assert.Equal(t, orders.PaymentPaid, o.orders["charged"].PaymentStatus)
	assert.Equal(t, "pay-c", o.orders["charged"].PaymentID)
	assert.Equal(t, orders.PaymentRefunded, o.orders["refunded"].PaymentStatus)
	assert.Equal(t, orders.PaymentPending, o.orders["declined"].PaymentStatus)
	assert.Equal(t, 2.0, m.get(MetricReconcileLinked))

	// A second pass finds only the orders it cannot link.
	rep, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 2, Skipped: 2}, rep)
}

func TestReconciler_CountsFailures(t *testing.T) {
	o := newFakeOrders()
	p := newFakePayments()
	seedOrder(o, "a", orders.PaymentPending)
	p.statusErr = errors.New("payments down")

	rep, err := NewReconciler(o, p, nil, time.Minute, logging.Discard()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 1, Failed: 1}, rep)
}

func TestReconciler_ListFailure(t *testing.T) {
	o := newFakeOrders()
	o.listErr = errors.New("orders down")

	_, err := NewReconciler(o, newFakePayments(), nil, time.Minute, logging.Discard()).Run(context.Background())
	assert.Error(t, err)
}
