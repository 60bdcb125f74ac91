package payments

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/config"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/logging"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

func TestSimulator_Charge(t *testing.T) {
	sim := NewSimulator()
	sim.nowFunc = func() time.Time { return time.UnixMilli(1700000000123) }

	cases := []struct {
		number   string
		approved bool
		reason   string
	}{
		{"4242424242424242", true, ""},
		{"0000000000000000", false, "Card declined"},
		{"4000000000000002", false, "Card declined"},
		{"4000 0000 0000 0002 123", false, "Card declined"},
		{"4000000000009995", false, "Insufficient funds"},
		{"4000000000000077", true, ""},
	}
	for _, tc := range cases {
		out, err := sim.Charge(context.Background(), ChargeRequest{
			OrderID: "o-1", Amount: 5, Method: validation.MethodCreditCard,
			Card: &validation.CardDetails{Number: tc.number},
		})
		require.NoError(t, err)
		assert.Equal(t, tc.approved, out.Approved, tc.number)
		assert.Equal(t, tc.reason, out.FailureReason, tc.number)
		assert.Regexp(t, regexp.MustCompile(`^pi_sim_[0-9a-z]{9}_1700000000123$`), out.TransactionID)
		assert.Equal(t, out.TransactionID, out.Reference)
	}
}

func TestSimulator_PayPalAlwaysSucceeds(t *testing.T) {
	out, err := NewSimulator().Charge(context.Background(), ChargeRequest{
		OrderID: "o-1", Amount: 5, Method: validation.MethodPayPal, PayerEmail: "a@b.co",
	})
	require.NoError(t, err)
	assert.True(t, out.Approved)
}

func TestSimulator_Refund(t *testing.T) {
	sim := NewSimulator()
	sim.nowFunc = func() time.Time { return time.UnixMilli(1700000000999) }

	out, err := sim.Refund(context.Background(), RefundRequest{PaymentID: "p", Amount: 1})
	require.NoError(t, err)
	assert.True(t, out.Approved)
	assert.Regexp(t, regexp.MustCompile(`^REF-1700000000999-[0-9a-z]{9}$`), out.RefundID)
}

func TestNewGateway_Selection(t *testing.T) {
	logger := logging.Discard()

	_, ok := NewGateway(config.GatewayConfig{Mode: "simulator"}, logger).(*Simulator)
	assert.True(t, ok)

	_, ok = NewGateway(config.GatewayConfig{Mode: "stripe"}, logger).(*Simulator)
	assert.True(t, ok, "stripe without a key falls back to the simulator")

	_, ok = NewGateway(config.GatewayConfig{Mode: "stripe", StripeSecretKey: "sk_test_1"}, logger).(*StripeGateway)
	assert.True(t, ok)
}

func TestParseExpiry(t *testing.T) {
	m, y, err := parseExpiry("07/31")
	require.NoError(t, err)
	assert.Equal(t, int64(7), m)
	assert.Equal(t, int64(2031), y)

	_, _, err = parseExpiry("0731")
	assert.Error(t, err)
}

func TestIsStripeIntent(t *testing.T) {
	assert.True(t, isStripeIntent("pi_3Nabc"))
	assert.False(t, isStripeIntent("pi_sim_abc_1"))
	assert.False(t, isStripeIntent("pi_error_1"))
	assert.False(t, isStripeIntent(""))
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(1999), Cents(19.99))
	assert.Equal(t, int64(30), Cents(0.1+0.2))
	assert.Equal(t, int64(10000), Cents(100))
	// 1.005 is stored as 1.00499999...; the written amount still rounds up.
	assert.Equal(t, int64(101), Cents(1.005))
	assert.Equal(t, int64(-268), Cents(-2.675))
	assert.Equal(t, int64(0), Cents(0.004))
}
