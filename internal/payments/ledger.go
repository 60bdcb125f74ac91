package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/idempotency"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// Ledger records charge and refund attempts. Every charge that reaches the
// gateway leaves a row, approved or not.
type Ledger struct {
	store   *Store
	keys    *idempotency.Store
	gateway Gateway
	v       *validatorv10.Validate
	logger  *slog.Logger
	nowFunc func() time.Time
	newID   func() string
}

func NewLedger(store *Store, keys *idempotency.Store, gateway Gateway, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:   store,
		keys:    keys,
		gateway: gateway,
		v:       validation.New(),
		logger:  logger,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

// RefundKey is the idempotency key guarding refunds of one payment.
func RefundKey(paymentID string) string { return "refund:" + paymentID }

// ProcessPayment validates, deduplicates by idempotency key, charges and
// records the attempt.
func (l *Ledger) ProcessPayment(ctx context.Context, req validation.ProcessPaymentRequest) (*ChargeResult, error) {
	if err := l.v.Struct(req); err != nil {
		return nil, &apperr.Error{Kind: apperr.KindValidation, Message: validation.Describe(err), Err: err}
	}

	log := l.logger.With("order_id", req.OrderID, "idempotency_key", req.IdempotencyKey)

	if req.IdempotencyKey != "" {
		rec, created, err := l.keys.Acquire(ctx, req.IdempotencyKey, req.OrderID)
		if err != nil {
			return nil, apperr.Internal("failed to check idempotency key", err)
		}
		if !created {
			return l.replay(rec)
		}
	}

	attempts, err := l.store.ListByOrder(ctx, req.OrderID)
	if err != nil {
		l.release(ctx, req.IdempotencyKey)
		return nil, apperr.Internal("failed to load payments", err)
	}
	for _, p := range attempts {
		if p.Status == StatusCompleted || p.Status == StatusRefunded {
			l.release(ctx, req.IdempotencyKey)
			return nil, apperr.Conflict("Order already paid")
		}
	}

	outcome, gerr := l.gateway.Charge(ctx, ChargeRequest{
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Method:     req.PaymentMethod,
		Card:       req.CardDetails,
		PayerEmail: req.PayerEmail,
	})
	now := l.nowFunc().UTC()
	if gerr != nil {
		reason := "Payment gateway error"
		var ge *GatewayError
		if errors.As(gerr, &ge) {
			reason = ge.Reason
		}
		log.Warn("gateway charge failed", "error", gerr)
		outcome = ChargeOutcome{
			Approved:      false,
			TransactionID: fmt.Sprintf("pi_error_%d", now.UnixMilli()),
			FailureReason: reason,
		}
	}

	p := &Payment{
		ID:               l.newID(),
		OrderID:          req.OrderID,
		Amount:           req.Amount,
		PaymentMethod:    req.PaymentMethod,
		TransactionID:    outcome.TransactionID,
		Status:           StatusCompleted,
		CardLast4:        cardLast4(req.CardDetails),
		PayerEmail:       req.PayerEmail,
		GatewayReference: outcome.Reference,
		IdempotencyKey:   req.IdempotencyKey,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if p.GatewayReference == "" {
		p.GatewayReference = outcome.TransactionID
	}
	if !outcome.Approved {
		p.Status = StatusFailed
		p.FailureReason = outcome.FailureReason
	}

	if err := l.store.Put(ctx, p); err != nil {
		// The gateway may already have moved money; keep the key so a retry
		// does not charge again.
		log.Error("payment not recorded after gateway call",
			"payment_id", p.ID, "transaction_id", p.TransactionID, "approved", outcome.Approved, "error", err)
		if req.IdempotencyKey != "" {
			if mErr := l.keys.MarkFailed(ctx, req.IdempotencyKey, fmt.Sprintf("record payment %s: %v", p.TransactionID, err)); mErr != nil {
				log.Error("mark idempotency key failed", "error", mErr)
			}
		}
		return nil, apperr.Internal("failed to record payment", err)
	}

	res := &ChargeResult{
		Success:       outcome.Approved,
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		TransactionID: p.TransactionID,
		Status:        p.Status,
		FailureReason: p.FailureReason,
		Amount:        p.Amount,
	}
	if req.IdempotencyKey != "" {
		body, _ := json.Marshal(res)
		if err := l.keys.MarkDone(ctx, req.IdempotencyKey, string(body), http.StatusOK); err != nil {
			log.Error("store idempotent response", "payment_id", p.ID, "error", err)
		}
	}

	log.Info("payment processed", "payment_id", p.ID, "status", p.Status, "failure_reason", p.FailureReason)
	return res, nil
}

func (l *Ledger) replay(rec *idempotency.IdempotencyRecord) (*ChargeResult, error) {
	switch rec.Status {
	case idempotency.StatusDone:
		var res ChargeResult
		if err := json.Unmarshal([]byte(rec.ResponseBody), &res); err != nil {
			return nil, apperr.Internal("failed to decode stored payment result", err)
		}
		res.Replayed = true
		return &res, nil
	case idempotency.StatusInProgress:
		return nil, apperr.Conflict("A payment with this idempotency key is already in progress")
	default:
		return nil, apperr.Conflict("A previous payment with this idempotency key has an unknown outcome")
	}
}

func (l *Ledger) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := l.keys.Release(ctx, key); err != nil {
		l.logger.Warn("release idempotency key", "idempotency_key", key, "error", err)
	}
}

// GetPaymentStatus resolves the payment of an order. A non-failed payment
// wins over failed attempts; among equals the most recent one is returned.
func (l *Ledger) GetPaymentStatus(ctx context.Context, orderID string) (*Payment, error) {
	attempts, err := l.store.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal("failed to load payments", err)
	}
	if len(attempts) == 0 {
		return nil, apperr.NotFound("Payment not found")
	}
	sort.SliceStable(attempts, func(i, j int) bool {
		fi, fj := attempts[i].Status == StatusFailed, attempts[j].Status == StatusFailed
		if fi != fj {
			return !fi
		}
		return attempts[i].CreatedAt.After(attempts[j].CreatedAt)
	})
	return &attempts[0], nil
}

// RefundPayment reverses a completed payment. Gateway failures come back as
// an unsuccessful result and leave the payment completed.
func (l *Ledger) RefundPayment(ctx context.Context, paymentID string, amount float64) (*RefundResult, error) {
	if Cents(amount) <= 0 {
		return nil, apperr.Validation("Refund amount must be greater than 0")
	}
	log := l.logger.With("payment_id", paymentID)

	p, err := l.store.Get(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("Payment not found")
		}
		return nil, apperr.Internal("failed to load payment", err)
	}
	if p.Status != StatusCompleted {
		return nil, apperr.Conflict("Can only refund completed payments")
	}
	if Cents(amount) > Cents(p.Amount) {
		return nil, apperr.Validation("Refund amount cannot exceed payment amount")
	}

	key := RefundKey(paymentID)
	rec, created, err := l.keys.Acquire(ctx, key, paymentID)
	if err != nil {
		return nil, apperr.Internal("failed to check idempotency key", err)
	}
	if !created {
		if rec.Status == idempotency.StatusInProgress {
			return nil, apperr.Conflict("A refund for this payment is already in progress")
		}
		return nil, apperr.Conflict("A previous refund for this payment has an unknown outcome")
	}

	outcome, gerr := l.gateway.Refund(ctx, RefundRequest{PaymentID: p.ID, Reference: p.GatewayReference, Amount: amount})
	if gerr != nil || !outcome.Approved {
		reason := outcome.FailureReason
		if gerr != nil {
			reason = "Refund gateway error"
			var ge *GatewayError
			if errors.As(gerr, &ge) {
				reason = ge.Reason
			}
		}
		log.Warn("refund not approved", "reason", reason, "error", gerr)
		l.release(ctx, key)
		return &RefundResult{Success: false, PaymentID: p.ID, Status: StatusFailed, FailureReason: reason}, nil
	}

	updated, err := l.store.MarkRefunded(ctx, p.ID, amount, outcome.RefundID)
	if err != nil {
		log.Error("refund not recorded after gateway call", "refund_id", outcome.RefundID, "error", err)
		if mErr := l.keys.MarkFailed(ctx, key, fmt.Sprintf("record refund %s: %v", outcome.RefundID, err)); mErr != nil {
			log.Error("mark idempotency key failed", "error", mErr)
		}
		if errors.Is(err, ErrNotRefundable) {
			return nil, apperr.Conflict("Can only refund completed payments")
		}
		return nil, apperr.Internal("failed to record refund", err)
	}

	res := &RefundResult{
		Success:             true,
		PaymentID:           updated.ID,
		Status:              updated.Status,
		RefundAmount:        updated.RefundAmount,
		RefundTransactionID: updated.RefundTransactionID,
	}
	body, _ := json.Marshal(res)
	if err := l.keys.MarkDone(ctx, key, string(body), http.StatusOK); err != nil {
		log.Error("store idempotent response", "error", err)
	}
	log.Info("payment refunded", "refund_id", updated.RefundTransactionID, "amount", amount)
	return res, nil
}

func cardLast4(card *validation.CardDetails) string {
	if card == nil {
		return ""
	}
	if card.Last4 != "" {
		return card.Last4
	}
	n := validation.CleanCardNumber(card.Number)
	if len(n) < 4 {
		return n
	}
	return n[len(n)-4:]
}
