package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws/awstest"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/idempotency"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/logging"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

const (
	paymentsTable = "payments"
	keysTable     = "idempotency"
)

// countingGateway wraps the simulator and lets tests inject failures.
type countingGateway struct {
	mu        sync.Mutex
	sim       *Simulator
	charges   int
	refunds   int
	chargeErr error
	refundErr error
	refundNo  string
}

func (g *countingGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges++
	if g.chargeErr != nil {
		return ChargeOutcome{}, g.chargeErr
	}
	return g.sim.Charge(ctx, req)
}

func (g *countingGateway) Refund(ctx context.Context, req RefundRequest) (RefundOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	if g.refundErr != nil {
		return RefundOutcome{}, g.refundErr
	}
	if g.refundNo != "" {
		return RefundOutcome{Approved: false, FailureReason: g.refundNo}, nil
	}
	return g.sim.Refund(ctx, req)
}

type ledgerFixture struct {
	ledger  *Ledger
	db      *awstest.Dynamo
	keys    *idempotency.Store
	gateway *countingGateway
	now     time.Time
}

func newLedgerFixture() *ledgerFixture {
	db := awstest.NewDynamo().
		CreateTable(paymentsTable, "id").
		CreateTable(keysTable, "idempotency_key")
	f := &ledgerFixture{
		db:      db,
		keys:    idempotency.NewStore(db, keysTable, time.Hour),
		gateway: &countingGateway{sim: NewSimulator()},
		now:     time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.ledger = NewLedger(NewStore(db, paymentsTable), f.keys, f.gateway, logging.Discard())
	f.ledger.nowFunc = func() time.Time {
		f.now = f.now.Add(time.Second)
		return f.now
	}
	return f
}

func cardPayment(orderID, number string, amount float64) validation.ProcessPaymentRequest {
	return validation.ProcessPaymentRequest{
		OrderID:       orderID,
		Amount:        amount,
		PaymentMethod: validation.MethodCreditCard,
		CardDetails:   &validation.CardDetails{Number: number, CVC: "123", Expiry: "12/30"},
	}
}

func (f *ledgerFixture) payments() []Payment {
	var out []Payment
	for _, it := range f.db.Items(paymentsTable) {
		p, err := unmarshalPayment(it)
		if err != nil {
			panic(err)
		}
		out = append(out, p)
	}
	return out
}

func unmarshalPayment(it map[string]types.AttributeValue) (Payment, error) {
	var p Payment
	err := attributevalue.UnmarshalMap(it, &p)
	return p, err
}

func TestProcessPayment_Approved(t *testing.T) {
	f := newLedgerFixture()

	res, err := f.ledger.ProcessPayment(context.Background(), cardPayment("o-1", "4242 4242 4242 4242", 100.00))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 100.00, res.Amount)
	assert.True(t, strings.HasPrefix(res.TransactionID, "pi_sim_"))

	rows := f.payments()
	require.Len(t, rows, 1)
	assert.Equal(t, res.PaymentID, rows[0].ID)
	assert.Equal(t, StatusCompleted, rows[0].Status)
	assert.Equal(t, "4242", rows[0].CardLast4)
}

func TestProcessPayment_Declines(t *testing.T) {
	cases := map[string]string{
		"4000000000000002":    "Card declined",
		"0000000000000000":    "Card declined",
		"4000 0000 0000 9995": "Insufficient funds",
	}
	for number, reason := range cases {
		t.Run(number, func(t *testing.T) {
			f := newLedgerFixture()

			res, err := f.ledger.ProcessPayment(context.Background(), cardPayment("o-1", number, 40))
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, StatusFailed, res.Status)
			assert.Equal(t, reason, res.FailureReason)

			rows := f.payments()
			require.Len(t, rows, 1)
			assert.Equal(t, StatusFailed, rows[0].Status)
			assert.Equal(t, reason, rows[0].FailureReason)
		})
	}
}

func TestProcessPayment_EveryValidPayloadLeavesOneRow(t *testing.T) {
	payloads := []validation.ProcessPaymentRequest{
		cardPayment("o-1", "4242424242424242", 10),
		cardPayment("o-2", "4000000000000002", 10),
		cardPayment("o-3", "4000000000009995", 10),
		cardPayment("o-4", "5555555555554444", 10),
		{OrderID: "o-5", Amount: 10, PaymentMethod: validation.MethodPayPal, PayerEmail: "buyer@example.com"},
		{OrderID: "o-6", Amount: 10, PaymentMethod: validation.MethodDebitCard,
			CardDetails: &validation.CardDetails{Number: "4000000000000002", CVC: "1234", Expiry: "01/29"}},
	}

	for _, req := range payloads {
		f := newLedgerFixture()
		res, err := f.ledger.ProcessPayment(context.Background(), req)
		require.NoError(t, err, req.OrderID)

		rows := f.payments()
		require.Len(t, rows, 1, req.OrderID)
		if res.Success {
			assert.Equal(t, StatusCompleted, rows[0].Status, req.OrderID)
		} else {
			assert.Equal(t, StatusFailed, rows[0].Status, req.OrderID)
			assert.NotEmpty(t, rows[0].FailureReason, req.OrderID)
		}
	}
}

func TestProcessPayment_ValidationRejectsBeforeCharge(t *testing.T) {
	f := newLedgerFixture()

	_, err := f.ledger.ProcessPayment(context.Background(), cardPayment("o-1", "4242", 10))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Invalid card number length", apperr.PublicMessage(err))
	assert.Zero(t, f.gateway.charges)
	assert.Empty(t, f.payments())

	_, err = f.ledger.ProcessPayment(context.Background(), validation.ProcessPaymentRequest{
		OrderID: "o-1", Amount: 10, PaymentMethod: validation.MethodPayPal, PayerEmail: "nope",
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, f.payments())
}

func TestProcessPayment_IdempotentReplay(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	req := cardPayment("o-1", "4242424242424242", 25)
	req.IdempotencyKey = "charge:o-1:1"

	first, err := f.ledger.ProcessPayment(ctx, req)
	require.NoError(t, err)
	second, err := f.ledger.ProcessPayment(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.True(t, second.Replayed)
	assert.Equal(t, 1, f.gateway.charges)
	assert.Len(t, f.payments(), 1)
}

func TestProcessPayment_DeclineIsReplayedToo(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	req := cardPayment("o-1", "4000000000000002", 25)
	req.IdempotencyKey = "charge:o-1:1"

	_, err := f.ledger.ProcessPayment(ctx, req)
	require.NoError(t, err)
	again, err := f.ledger.ProcessPayment(ctx, req)
	require.NoError(t, err)

	assert.False(t, again.Success)
	assert.Equal(t, "Card declined", again.FailureReason)
	assert.Equal(t, 1, f.gateway.charges)
}

func TestProcessPayment_KeyInProgress(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	_, err := f.keys.CreateIfNotExists(ctx, "charge:o-1:1", "o-1")
	require.NoError(t, err)

	req := cardPayment("o-1", "4242424242424242", 25)
	req.IdempotencyKey = "charge:o-1:1"
	_, err = f.ledger.ProcessPayment(ctx, req)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Zero(t, f.gateway.charges)
}

func TestProcessPayment_OrderAlreadyPaid(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	_, err := f.ledger.ProcessPayment(ctx, cardPayment("o-1", "4242424242424242", 25))
	require.NoError(t, err)

	req := cardPayment("o-1", "4242424242424242", 25)
	req.IdempotencyKey = "charge:o-1:2"
	_, err = f.ledger.ProcessPayment(ctx, req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 1, f.gateway.charges)
	assert.Nil(t, f.db.Item(keysTable, "charge:o-1:2"), "key should be released")
}

func TestProcessPayment_RetryAfterDecline(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	res, err := f.ledger.ProcessPayment(ctx, cardPayment("o-1", "4000000000000002", 25))
	require.NoError(t, err)
	require.False(t, res.Success)

	res, err = f.ledger.ProcessPayment(ctx, cardPayment("o-1", "4242424242424242", 25))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, f.payments(), 2)
}

func TestProcessPayment_GatewayErrorRecordsFailedAttempt(t *testing.T) {
	f := newLedgerFixture()
	f.gateway.chargeErr = &GatewayError{Reason: "Your card's security code is incorrect.", Err: errors.New("stripe 402")}

	res, err := f.ledger.ProcessPayment(context.Background(), cardPayment("o-1", "4242424242424242", 25))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Your card's security code is incorrect.", res.FailureReason)
	assert.True(t, strings.HasPrefix(res.TransactionID, "pi_error_"))

	rows := f.payments()
	require.Len(t, rows, 1)
	assert.Equal(t, StatusFailed, rows[0].Status)
}

func TestProcessPayment_PersistenceFailureAfterCharge(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	// first PutItem is the idempotency claim, second is the payment row
	f.db.FailNext("PutItem", nil)
	f.db.FailNext("PutItem", errors.New("table unavailable"))

	req := cardPayment("o-1", "4242424242424242", 25)
	req.IdempotencyKey = "charge:o-1:1"
	_, err := f.ledger.ProcessPayment(ctx, req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.Equal(t, "internal server error", apperr.PublicMessage(err))
	assert.Empty(t, f.payments())

	rec, err := f.keys.Get(ctx, "charge:o-1:1")
	require.NoError(t, err)
	assert.Equal(t, idempotency.StatusFailed, rec.Status)

	// the retry does not charge a second time
	_, err = f.ledger.ProcessPayment(ctx, req)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 1, f.gateway.charges)
}

func TestRefundPayment_Partial(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	charge, err := f.ledger.ProcessPayment(ctx, cardPayment("o-1", "4242424242424242", 100.00))
	require.NoError(t, err)

	res, err := f.ledger.RefundPayment(ctx, charge.PaymentID, 50.00)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StatusRefunded, res.Status)
	assert.Equal(t, 50.00, res.RefundAmount)
	assert.True(t, strings.HasPrefix(res.RefundTransactionID, "REF-"))

	rows := f.payments()
	require.Len(t, rows, 1)
	assert.Equal(t, StatusRefunded, rows[0].Status)
	assert.Equal(t, 50.00, rows[0].RefundAmount)

	// a second refund for any amount fails
	for _, amount := range []float64{50, 1, 100} {
		_, err = f.ledger.RefundPayment(ctx, charge.PaymentID, amount)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindConflict), fmt.Sprint(amount))
	}
	assert.Equal(t, 1, f.gateway.refunds)
}

func TestRefundPayment_AmountAbovePaymentNeverMutates(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	charge, err := f.ledger.ProcessPayment(ctx, cardPayment("o-1", "4242424242424242", 19.99))
	require.NoError(t, err)
	before := f.db.Item(paymentsTable, charge.PaymentID)

	for _, amount := range []float64{20.00, 19.999, 1000} {
		_, err := f.ledger.RefundPayment(ctx, charge.PaymentID, amount)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Equal(t, "Refund amount cannot exceed payment amount", apperr.PublicMessage(err))
	}
	assert.Equal(t, before, f.db.Item(paymentsTable, charge.PaymentID))
	assert.Zero(t, f.gateway.refunds)

	// the exact amount is allowed
	res, err := f.ledger.RefundPayment(ctx, charge.PaymentID, 19.99)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestRefundPayment_RejectsNonCompleted(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	declined, err := f.ledger.ProcessPayment(ctx, cardPayment("o-1", "4000000000000002", 10))
	require.NoError(t, err)

	_, err = f.ledger.RefundPayment(ctx, declined.PaymentID, 10)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "Can only refund completed payments", apperr.PublicMessage(err))

	_, err = f.ledger.RefundPayment(ctx, "missing", 10)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.ledger.RefundPayment(ctx, declined.PaymentID, 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRefundPayment_GatewayFailureLeavesPaymentCompleted(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	charge, err := f.ledger.ProcessPayment(ctx, cardPayment("o-1", "4242424242424242", 30))
	require.NoError(t, err)

	f.gateway.refundNo = "charge_for_pending_refund_disputed"
	res, err := f.ledger.RefundPayment(ctx, charge.PaymentID, 30)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "charge_for_pending_refund_disputed", res.FailureReason)

	f.gateway.refundNo = ""
	f.gateway.refundErr = &GatewayError{Reason: "connection reset", Err: errors.New("eof")}
	res, err = f.ledger.RefundPayment(ctx, charge.PaymentID, 30)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "connection reset", res.FailureReason)

	p, err := f.ledger.store.Get(ctx, charge.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Zero(t, p.RefundAmount)

	// retryable once the gateway recovers
	f.gateway.refundErr = nil
	res, err = f.ledger.RefundPayment(ctx, charge.PaymentID, 30)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestRefundPayment_ConcurrentRefundInProgress(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	charge, err := f.ledger.ProcessPayment(ctx, cardPayment("o-1", "4242424242424242", 30))
	require.NoError(t, err)
	_, err = f.keys.CreateIfNotExists(ctx, RefundKey(charge.PaymentID), charge.PaymentID)
	require.NoError(t, err)

	_, err = f.ledger.RefundPayment(ctx, charge.PaymentID, 30)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Zero(t, f.gateway.refunds)
}

func TestGetPaymentStatus_PrefersNonFailed(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	_, err := f.ledger.GetPaymentStatus(ctx, "o-1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.ledger.ProcessPayment(ctx, cardPayment("o-1", "4000000000000002", 10))
	require.NoError(t, err)
	paid, err := f.ledger.ProcessPayment(ctx, cardPayment("o-1", "4242424242424242", 10))
	require.NoError(t, err)
	_, err = f.ledger.ProcessPayment(ctx, cardPayment("o-2", "4000000000000002", 10))
	require.NoError(t, err)

	p, err := f.ledger.GetPaymentStatus(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, paid.PaymentID, p.ID)

	// only failed attempts: the latest one wins
	latest, err := f.ledger.ProcessPayment(ctx, cardPayment("o-2", "4000000000009995", 10))
	require.NoError(t, err)
	p, err = f.ledger.GetPaymentStatus(ctx, "o-2")
	require.NoError(t, err)
	assert.Equal(t, latest.PaymentID, p.ID)
}
