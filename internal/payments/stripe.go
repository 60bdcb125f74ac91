package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/config"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// StripeGateway charges cards through Stripe payment intents. PayPal charges,
// and refunds of payments that never went through Stripe, fall back to the
// simulator.
type StripeGateway struct {
	api       *client.API
	currency  string
	returnURL string
	fallback  *Simulator
	logger    *slog.Logger
	nowFunc   func() time.Time
}

func NewStripeGateway(api *client.API, currency string, logger *slog.Logger) *StripeGateway {
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeGateway{
		api:       api,
		currency:  currency,
		returnURL: "https://storefront.local/payment/return",
		fallback:  NewSimulator(),
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// NewGateway picks the backend from configuration. Stripe mode without a
// secret key runs the simulator.
func NewGateway(cfg config.GatewayConfig, logger *slog.Logger) Gateway {
	if cfg.Mode == "stripe" && cfg.StripeSecretKey != "" {
		logger.Info("payment gateway initialized", "backend", "stripe")
		return NewStripeGateway(client.New(cfg.StripeSecretKey, nil), cfg.Currency, logger)
	}
	if cfg.Mode == "stripe" {
		logger.Warn("stripe secret key not set, using simulated payments")
	}
	return NewSimulator()
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeOutcome, error) {
	if req.Method == validation.MethodPayPal || req.Card == nil {
		return g.fallback.Charge(ctx, req)
	}

	month, year, err := parseExpiry(req.Card.Expiry)
	if err != nil {
		return ChargeOutcome{}, &GatewayError{Reason: err.Error(), Err: err}
	}

	pmParams := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(validation.CleanCardNumber(req.Card.Number)),
			ExpMonth: stripe.Int64(month),
			ExpYear:  stripe.Int64(year),
			CVC:      stripe.String(req.Card.CVC),
		},
	}
	pmParams.Context = ctx
	pm, err := g.api.PaymentMethods.New(pmParams)
	if err != nil {
		return g.failed(err)
	}

	piParams := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(Cents(req.Amount)),
		Currency:      stripe.String(g.currency),
		PaymentMethod: stripe.String(pm.ID),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String("Order " + req.OrderID),
		ReturnURL:     stripe.String(g.returnURL),
	}
	piParams.Context = ctx
	piParams.AddMetadata("orderId", req.OrderID)
	pi, err := g.api.PaymentIntents.New(piParams)
	if err != nil {
		return g.failed(err)
	}

	out := ChargeOutcome{
		Approved:      pi.Status == stripe.PaymentIntentStatusSucceeded,
		TransactionID: pi.ID,
		Reference:     pi.ID,
	}
	if !out.Approved {
		out.FailureReason = "Payment status: " + string(pi.Status)
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			out.FailureReason = pi.LastPaymentError.Msg
		}
	}
	g.logger.Info("stripe payment processed", "payment_intent", pi.ID, "status", pi.Status)
	return out, nil
}

// failed turns a Stripe error into an outcome. Card errors are declines with
// the provider's message; anything else is a gateway error.
func (g *StripeGateway) failed(err error) (ChargeOutcome, error) {
	var se *stripe.Error
	if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
		g.logger.Info("stripe declined card", "code", se.Code, "reason", se.Msg)
		return ChargeOutcome{
			Approved:      false,
			TransactionID: fmt.Sprintf("pi_error_%d", g.nowFunc().UnixMilli()),
			FailureReason: se.Msg,
		}, nil
	}
	reason := "Stripe payment processing failed"
	if se != nil && se.Msg != "" {
		reason = se.Msg
	}
	g.logger.Error("stripe payment error", "error", err)
	return ChargeOutcome{}, &GatewayError{Reason: reason, Err: err}
}

func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (RefundOutcome, error) {
	if !isStripeIntent(req.Reference) {
		return g.fallback.Refund(ctx, req)
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.Reference),
		Amount:        stripe.Int64(Cents(req.Amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	r, err := g.api.Refunds.New(params)
	if err != nil {
		reason := "Stripe refund processing failed"
		var se *stripe.Error
		if errors.As(err, &se) && se.Msg != "" {
			reason = se.Msg
		}
		g.logger.Error("stripe refund error", "payment_id", req.PaymentID, "error", err)
		return RefundOutcome{}, &GatewayError{Reason: reason, Err: err}
	}

	out := RefundOutcome{
		Approved: r.Status == stripe.RefundStatusSucceeded || r.Status == stripe.RefundStatusPending,
		RefundID: r.ID,
	}
	if !out.Approved {
		out.FailureReason = "Refund failed"
		if r.FailureReason != "" {
			out.FailureReason = string(r.FailureReason)
		}
	}
	g.logger.Info("stripe refund processed", "refund_id", r.ID, "status", r.Status)
	return out, nil
}

func isStripeIntent(ref string) bool {
	return strings.HasPrefix(ref, "pi_") && !strings.HasPrefix(ref, "pi_sim_") && !strings.HasPrefix(ref, "pi_error_")
}

// parseExpiry reads MM/YY into a month and a four digit year.
func parseExpiry(expiry string) (int64, int64, error) {
	mm, yy, ok := strings.Cut(expiry, "/")
	if !ok {
		return 0, 0, fmt.Errorf("invalid expiry %q", expiry)
	}
	month, err := strconv.ParseInt(mm, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid expiry month: %w", err)
	}
	year, err := strconv.ParseInt(yy, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid expiry year: %w", err)
	}
	return month, 2000 + year, nil
}
