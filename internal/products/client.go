package products

import (
	"context"
	"time"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

type Client struct {
	rpc *rpc.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{rpc: rpc.NewClient("products", baseURL, timeout)}
}

func (c *Client) Create(ctx context.Context, req validation.CreateProductRequest) (*Product, error) {
	var p Product
	if _, err := c.rpc.Call(ctx, "create_product", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Get(ctx context.Context, id string) (*Product, error) {
	var p Product
	if _, err := c.rpc.Call(ctx, "get_product", validation.IDRequest{ID: id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) List(ctx context.Context, categoryID string) ([]Product, error) {
	var list []Product
	_, err := c.rpc.Call(ctx, "get_products", validation.ListProductsRequest{CategoryID: categoryID}, &list)
	return list, err
}

func (c *Client) SyncCategorySnapshot(ctx context.Context, req validation.CategorySnapshotRequest) (*SnapshotReport, error) {
	var rep SnapshotReport
	if _, err := c.rpc.Call(ctx, "sync_category_snapshot", req, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}
