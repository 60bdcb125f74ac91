package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/orders"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/payments"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

type fakeOrders struct {
	mu        sync.Mutex
	orders    map[string]*orders.Order
	createErr error
	updateErr error
	listErr   error
	updates   []string
	nextID    int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[string]*orders.Order{}}
}

func (f *fakeOrders) Create(_ context.Context, req validation.CreateOrderRequest) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	o := &orders.Order{
		ID:            "order-" + string(rune('0'+f.nextID)),
		UserID:        req.UserID,
		Items:         req.Items,
		TotalAmount:   req.TotalAmount,
		Status:        orders.StatusPending,
		PaymentStatus: orders.PaymentPending,
	}
	f.orders[o.ID] = o
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) Get(_ context.Context, id string) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, apperr.NotFound("Order not found")
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) UpdatePayment(_ context.Context, id, paymentID, status string) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, id+"="+status)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, apperr.NotFound("Order not found")
	}
	o.PaymentID = paymentID
	o.PaymentStatus = status
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) ListUnlinked(_ context.Context, _ time.Duration) ([]orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []orders.Order
	for _, o := range f.orders {
		if o.PaymentStatus == orders.PaymentPending {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakePayments struct {
	mu sync.Mutex
	// chargeErrs is consumed one per call; once empty, charge answers.
	chargeErrs []error
	charge     *payments.ChargeResult
	chargeReqs []validation.ProcessPaymentRequest

	status    map[string]*payments.StatusView
	statusErr error

	refund     *payments.RefundResult
	refundErr  error
	refundReqs []refundCall
}

type refundCall struct {
	PaymentID string
	Amount    float64
}

func newFakePayments() *fakePayments {
	return &fakePayments{status: map[string]*payments.StatusView{}}
}

func (f *fakePayments) ProcessPayment(_ context.Context, req validation.ProcessPaymentRequest) (*payments.ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chargeReqs = append(f.chargeReqs, req)
	if len(f.chargeErrs) > 0 {
		err := f.chargeErrs[0]
		f.chargeErrs = f.chargeErrs[1:]
		return nil, err
	}
	res := *f.charge
	res.OrderID = req.OrderID
	res.Amount = req.Amount
	return &res, nil
}

func (f *fakePayments) GetPaymentStatus(_ context.Context, orderID string) (*payments.StatusView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	v, ok := f.status[orderID]
	if !ok {
		return nil, apperr.NotFound("Payment not found")
	}
	cp := *v
	return &cp, nil
}

func (f *fakePayments) RefundPayment(_ context.Context, paymentID string, amount float64) (*payments.RefundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refundReqs = append(f.refundReqs, refundCall{PaymentID: paymentID, Amount: amount})
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	res := *f.refund
	res.PaymentID = paymentID
	return &res, nil
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]float64
}

func (m *fakeMetrics) Count(_ context.Context, name string, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]float64{}
	}
	m.counts[name] += value
	return nil
}

func (m *fakeMetrics) get(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}
