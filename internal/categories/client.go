package categories

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
	return &Client{rpc: rpc.NewClient("categories", baseURL, timeout)}
}

func (c *Client) Create(ctx context.Context, req validation.CreateCategoryRequest) (*Category, error) {
	var cat Category
	if _, err := c.rpc.Call(ctx, "create_category", req, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Client) Update(ctx context.Context, req validation.UpdateCategoryRequest) (*Category, error) {
	var cat Category
	if _, err := c.rpc.Call(ctx, "update_category", req, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Client) Get(ctx context.Context, id string) (*Category, error) {
	var cat Category
	if _, err := c.rpc.Call(ctx, "get_category", validation.IDRequest{ID: id}, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Client) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	var cat Category
	if _, err := c.rpc.Call(ctx, "get_category_by_slug", validation.SlugRequest{Slug: slug}, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Client) List(ctx context.Context, includeInactive bool) ([]Category, error) {
	var list []Category
	_, err := c.rpc.Call(ctx, "get_categories", validation.ListCategoriesRequest{IncludeInactive: includeInactive}, &list)
	return list, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.rpc.Call(ctx, "delete_category", validation.IDRequest{ID: id}, nil)
	return err
}
