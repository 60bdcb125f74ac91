package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// Gateway moves money. A decline is a normal outcome (Approved=false); an
// error means the processor could not be reached or rejected the call.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeOutcome, error)
	Refund(ctx context.Context, req RefundRequest) (RefundOutcome, error)
}

type ChargeRequest struct {
	OrderID    string
	Amount     float64
	Method     string
	Card       *validation.CardDetails
	PayerEmail string
}

type ChargeOutcome struct {
	Approved      bool
	TransactionID string
	// Reference is what a later refund must quote to the processor.
	Reference     string
	FailureReason string
}

type RefundRequest struct {
	PaymentID string
	Reference string
	Amount    float64
}

type RefundOutcome struct {
	Approved      bool
	RefundID      string
	FailureReason string
}

// GatewayError carries the processor's own failure message.
type GatewayError struct {
	Reason string
	Err    error
}

func (e *GatewayError) Error() string { return e.Reason }
func (e *GatewayError) Unwrap() error { return e.Err }

// Reserved simulator card numbers.
const (
	CardAlwaysDeclined     = "0000000000000000"
	CardDeclinedPrefix     = "4000000000000002"
	CardInsufficientPrefix = "4000000000009995"
)

// Simulator is the deterministic gateway used when no processor is
// configured. PayPal always succeeds.
type Simulator struct {
	nowFunc func() time.Time
}

func NewSimulator() *Simulator {
	return &Simulator{nowFunc: time.Now}
}

func (s *Simulator) Charge(ctx context.Context, req ChargeRequest) (ChargeOutcome, error) {
	out := ChargeOutcome{Approved: true}
	if req.Card != nil && req.Method != validation.MethodPayPal {
		number := validation.CleanCardNumber(req.Card.Number)
		switch {
		case number == CardAlwaysDeclined || strings.HasPrefix(number, CardDeclinedPrefix):
			out.Approved, out.FailureReason = false, "Card declined"
		case strings.HasPrefix(number, CardInsufficientPrefix):
			out.Approved, out.FailureReason = false, "Insufficient funds"
		}
	}
	out.TransactionID = fmt.Sprintf("pi_sim_%s_%d", randomBase36(9), s.nowFunc().UnixMilli())
	out.Reference = out.TransactionID
	return out, nil
}

func (s *Simulator) Refund(ctx context.Context, req RefundRequest) (RefundOutcome, error) {
	return RefundOutcome{
		Approved: true,
		RefundID: fmt.Sprintf("REF-%d-%s", s.nowFunc().UnixMilli(), randomBase36(9)),
	}, nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) string {
	u := uuid.New()
	out := make([]byte, n)
	for i := range out {
		out[i] = base36[int(u[i%len(u)])%len(base36)]
	}
	return string(out)
}
