package payments

import (
	"context"
	"time"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// Client is the typed RPC client for the payments service.
type Client struct {
	rpc *rpc.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{rpc: rpc.NewClient("payments", baseURL, timeout)}
}

// ProcessPayment returns the charge result for approvals and declines; err
// is set only when the call itself failed.
func (c *Client) ProcessPayment(ctx context.Context, req validation.ProcessPaymentRequest) (*ChargeResult, error) {
	var res ChargeResult
	r, err := c.rpc.Call(ctx, "process_payment", req, &res)
	if err != nil {
		return nil, err
	}
	res.Success = r.Success
	if !r.Success && res.FailureReason == "" {
		res.FailureReason = r.Message
	}
	return &res, nil
}

func (c *Client) GetPaymentStatus(ctx context.Context, orderID string) (*StatusView, error) {
	var v StatusView
	if _, err := c.rpc.Call(ctx, "get_payment_status", validation.PaymentStatusRequest{OrderID: orderID}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) RefundPayment(ctx context.Context, paymentID string, amount float64) (*RefundResult, error) {
	var res RefundResult
	r, err := c.rpc.Call(ctx, "refund_payment", validation.RefundPaymentRequest{PaymentID: paymentID, Amount: amount}, &res)
	if err != nil {
		return nil, err
	}
	res.Success = r.Success
	if !r.Success && res.FailureReason == "" {
		res.FailureReason = r.Message
	}
	return &res, nil
}
