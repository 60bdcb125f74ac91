package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/config"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/orders"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/payments"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// Result describes a checkout that reached the payment service.
type Result struct {
	Order  *orders.Order          `json:"order"`
	Charge *payments.ChargeResult `json:"payment"`
	Paid   bool                   `json:"paid"`
	// Linked reports whether the order now carries the payment. A paid but
	// unlinked order is picked up by the reconciler.
	Linked        bool   `json:"linked"`
	Attempts      int    `json:"attempts"`
	FailureReason string `json:"failureReason,omitempty"`
}

// RefundOutcome describes a refund issued by order.
type RefundOutcome struct {
	OrderID string                 `json:"orderId"`
	Refund  *payments.RefundResult `json:"refund"`
	Linked  bool                   `json:"linked"`
}

// Saga runs checkout as a sequence of calls with no compensation: create
// the order, charge it, link the payment back.
type Saga struct {
	orders   OrderService
	payments PaymentService
	metrics  Metrics
	logger   *slog.Logger
	cfg      config.CheckoutConfig
	sleep    func(ctx context.Context, d time.Duration) error
	epoch    func() int64
}

func NewSaga(o OrderService, p PaymentService, m Metrics, cfg config.CheckoutConfig, logger *slog.Logger) *Saga {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Saga{
		orders:   o,
		payments: p,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		sleep:    sleepContext,
		epoch:    func() int64 { return time.Now().UnixNano() },
	}
}

// ChargeKey is the idempotency key shared by every attempt of one checkout.
func ChargeKey(orderID string, epoch int64) string {
	return fmt.Sprintf("charge:%s:%d", orderID, epoch)
}

// Checkout creates the order and charges its total. A decline is returned
// as a Result with Paid=false; a charge step that could not complete is a
// *CheckoutError.
func (s *Saga) Checkout(ctx context.Context, userID string, req validation.CheckoutRequest) (*Result, error) {
	order, err := s.orders.Create(ctx, validation.CreateOrderRequest{
		UserID:          userID,
		Items:           req.Items,
		TotalAmount:     req.TotalAmount,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		s.count(ctx, MetricCheckoutFailed)
		return nil, err
	}
	log := s.logger.With("order_id", order.ID, "user_id", userID)

	charge := validation.ProcessPaymentRequest{
		OrderID:        order.ID,
		Amount:         order.TotalAmount,
		PaymentMethod:  req.PaymentMethod,
		CardDetails:    req.CardDetails,
		PayerEmail:     req.PayerEmail,
		IdempotencyKey: ChargeKey(order.ID, s.epoch()),
	}
	if charge.CardDetails != nil {
		card := *charge.CardDetails
		card.Number = validation.CleanCardNumber(card.Number)
		charge.CardDetails = &card
	}

	res, attempts, err := s.charge(ctx, log, charge)
	if err != nil {
		s.count(ctx, MetricCheckoutFailed)
		ce := &CheckoutError{OrderID: order.ID, Cause: classify(err), Attempts: attempts, Err: err}
		log.Warn("checkout failed", "attempts", attempts, "cause", ce.Cause, "error", err)
		return nil, ce
	}

	result := &Result{Order: order, Charge: res, Attempts: attempts}
	if !res.Success {
		s.count(ctx, MetricCheckoutDeclined)
		result.FailureReason = res.FailureReason
		log.Info("payment declined", "payment_id", res.PaymentID, "reason", res.FailureReason)
		return result, nil
	}

	result.Paid = true
	s.count(ctx, MetricCheckoutPaid)
	linked, err := s.orders.UpdatePayment(ctx, order.ID, res.PaymentID, orders.PaymentPaid)
	if err != nil {
		// The charge stands; the reconciler links the order later.
		s.count(ctx, MetricPaymentLinkFailed)
		log.Error("failed to link payment to order", "payment_id", res.PaymentID, "error", err)
		return result, nil
	}
	result.Order = linked
	result.Linked = true
	log.Info("checkout paid", "payment_id", res.PaymentID, "attempts", attempts)
	return result, nil
}

// charge calls process_payment up to MaxAttempts times. Only transient
// failures are retried; every attempt carries the same idempotency key.
func (s *Saga) charge(ctx context.Context, log *slog.Logger, req validation.ProcessPaymentRequest) (*payments.ChargeResult, int, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		res, err := s.payments.ProcessPayment(ctx, req)
		if err == nil {
			return res, attempt, nil
		}
		lastErr = err
		if !rpc.IsTransient(err) || attempt == s.cfg.MaxAttempts {
			return nil, attempt, err
		}

		delay := s.cfg.BaseBackoff * time.Duration(attempt+1)
		log.Warn("payment call failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		s.count(ctx, MetricChargeRetry)
		if serr := s.sleep(ctx, delay); serr != nil {
			return nil, attempt, lastErr
		}
	}
	return nil, s.cfg.MaxAttempts, lastErr
}

// Refund reverses the payment of an order for the order's total.
func (s *Saga) Refund(ctx context.Context, orderID string) (*RefundOutcome, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With("order_id", orderID)

	paymentID := order.PaymentID
	if paymentID == "" {
		view, err := s.payments.GetPaymentStatus(ctx, orderID)
		if err != nil {
			return nil, err
		}
		paymentID = view.PaymentID
	}

	res, err := s.payments.RefundPayment(ctx, paymentID, order.TotalAmount)
	if err != nil {
		s.count(ctx, MetricRefundFailed)
		log.Warn("refund rejected", "payment_id", paymentID, "error", err)
		return nil, err
	}
	out := &RefundOutcome{OrderID: orderID, Refund: res}
	if !res.Success {
		s.count(ctx, MetricRefundFailed)
		log.Warn("refund not processed", "payment_id", paymentID, "reason", res.FailureReason)
		return out, nil
	}

	s.count(ctx, MetricRefundSucceeded)
	if _, err := s.orders.UpdatePayment(ctx, orderID, paymentID, orders.PaymentRefunded); err != nil {
		log.Error("failed to mark order refunded", "payment_id", paymentID, "error", err)
		return out, nil
	}
	out.Linked = true
	log.Info("order refunded", "payment_id", paymentID, "amount", res.RefundAmount)
	return out, nil
}

func (s *Saga) count(ctx context.Context, name string) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.Count(ctx, name, 1); err != nil {
		s.logger.Debug("metric not published", "metric", name, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
