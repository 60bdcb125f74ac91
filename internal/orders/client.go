package orders

import (
	"context"
	"time"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// Client is the typed RPC client for the orders service.
type Client struct {
	rpc *rpc.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{rpc: rpc.NewClient("orders", baseURL, timeout)}
}

func (c *Client) Create(ctx context.Context, req validation.CreateOrderRequest) (*Order, error) {
	var o Order
	if _, err := c.rpc.Call(ctx, "create_order", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) Get(ctx context.Context, id string) (*Order, error) {
	var o Order
	if _, err := c.rpc.Call(ctx, "get_order", validation.IDRequest{ID: id}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	var list []Order
	_, err := c.rpc.Call(ctx, "get_all_orders", validation.UserOrdersRequest{UserID: userID}, &list)
	return list, err
}

func (c *Client) ListAll(ctx context.Context) ([]Order, error) {
	var list []Order
	_, err := c.rpc.Call(ctx, "get_all_orders_admin", nil, &list)
	return list, err
}

func (c *Client) UpdateStatus(ctx context.Context, id, status string) (*Order, error) {
	var o Order
	req := validation.UpdateOrderStatusRequest{ID: id, Status: status}
	if _, err := c.rpc.Call(ctx, "update_order_status", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) UpdatePayment(ctx context.Context, id, paymentID, paymentStatus string) (*Order, error) {
	var o Order
	req := validation.UpdateOrderPaymentRequest{ID: id, PaymentID: paymentID, PaymentStatus: paymentStatus}
	if _, err := c.rpc.Call(ctx, "update_order_payment", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.rpc.Call(ctx, "delete_order", validation.IDRequest{ID: id}, nil)
	return err
}

// ListUnlinked returns pending-payment orders created at least olderThan ago.
func (c *Client) ListUnlinked(ctx context.Context, olderThan time.Duration) ([]Order, error) {
	var list []Order
	req := validation.UnlinkedOrdersRequest{OlderThanSeconds: int64(olderThan / time.Second)}
	_, err := c.rpc.Call(ctx, "list_unlinked_orders", req, &list)
	return list, err
}
