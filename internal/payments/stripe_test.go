package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/logging"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// fakeStripe answers the three endpoints the gateway uses.
func fakeStripe(t *testing.T) (*StripeGateway, *[]string) {
	t.Helper()
	var calls []string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		calls = append(calls, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/v1/payment_methods":
			switch r.PostForm.Get("card[number]") {
			case "4000000000000002":
				w.WriteHeader(http.StatusPaymentRequired)
				_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
				return
			case "5000000000000009":
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"Something went wrong on Stripe's end."}}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"pm_123","object":"payment_method","type":"card"}`))
		case "/v1/payment_intents":
			assert.Equal(t, "2550", r.PostForm.Get("amount"))
			assert.Equal(t, "usd", r.PostForm.Get("currency"))
			assert.Equal(t, "pm_123", r.PostForm.Get("payment_method"))
			assert.Equal(t, "true", r.PostForm.Get("confirm"))
			assert.Equal(t, "o-1", r.PostForm.Get("metadata[orderId]"))
			_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","status":"succeeded","amount":2550}`))
		case "/v1/refunds":
			assert.Equal(t, "pi_123", r.PostForm.Get("payment_intent"))
			assert.Equal(t, "1000", r.PostForm.Get("amount"))
			_, _ = w.Write([]byte(`{"id":"re_123","object":"refund","status":"succeeded"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"unknown path"}}`))
		}
	}))
	t.Cleanup(ts.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(ts.URL),
		HTTPClient:        ts.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	api := client.New("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return NewStripeGateway(api, "usd", logging.Discard()), &calls
}

func card(number string) *validation.CardDetails {
	return &validation.CardDetails{Number: number, CVC: "123", Expiry: "12/30"}
}

func TestStripeGateway_ChargeSucceeded(t *testing.T) {
	g, calls := fakeStripe(t)

	out, err := g.Charge(context.Background(), ChargeRequest{
		OrderID: "o-1", Amount: 25.50, Method: validation.MethodCreditCard, Card: card("4242 4242 4242 4242"),
	})
	require.NoError(t, err)
	assert.True(t, out.Approved)
	assert.Equal(t, "pi_123", out.TransactionID)
	assert.Equal(t, "pi_123", out.Reference)
	assert.Equal(t, []string{"/v1/payment_methods", "/v1/payment_intents"}, *calls)
}

func TestStripeGateway_CardErrorIsDecline(t *testing.T) {
	g, _ := fakeStripe(t)

	out, err := g.Charge(context.Background(), ChargeRequest{
		OrderID: "o-1", Amount: 25.50, Method: validation.MethodCreditCard, Card: card("4000000000000002"),
	})
	require.NoError(t, err)
	assert.False(t, out.Approved)
	assert.Equal(t, "Your card was declined.", out.FailureReason)
	assert.True(t, strings.HasPrefix(out.TransactionID, "pi_error_"))
}

func TestStripeGateway_APIErrorIsGatewayError(t *testing.T) {
	g, _ := fakeStripe(t)

	_, err := g.Charge(context.Background(), ChargeRequest{
		OrderID: "o-1", Amount: 25.50, Method: validation.MethodCreditCard, Card: card("5000000000000009"),
	})
	require.Error(t, err)
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "Something went wrong on Stripe's end.", ge.Reason)
}

func TestStripeGateway_PayPalIsSimulated(t *testing.T) {
	g, calls := fakeStripe(t)

	out, err := g.Charge(context.Background(), ChargeRequest{
		OrderID: "o-1", Amount: 10, Method: validation.MethodPayPal, PayerEmail: "a@b.co",
	})
	require.NoError(t, err)
	assert.True(t, out.Approved)
	assert.True(t, strings.HasPrefix(out.TransactionID, "pi_sim_"))
	assert.Empty(t, *calls)
}

func TestStripeGateway_Refund(t *testing.T) {
	g, calls := fakeStripe(t)

	out, err := g.Refund(context.Background(), RefundRequest{PaymentID: "p-1", Reference: "pi_123", Amount: 10})
	require.NoError(t, err)
	assert.True(t, out.Approved)
	assert.Equal(t, "re_123", out.RefundID)

	// simulated payments are refunded by the simulator
	out, err = g.Refund(context.Background(), RefundRequest{PaymentID: "p-2", Reference: "pi_sim_abc_1", Amount: 10})
	require.NoError(t, err)
	assert.True(t, out.Approved)
	assert.True(t, strings.HasPrefix(out.RefundID, "REF-"))
	assert.Equal(t, []string{"/v1/refunds"}, *calls)
}
