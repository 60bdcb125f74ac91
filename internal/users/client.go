package users

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
	return &Client{rpc: rpc.NewClient("users", baseURL, timeout)}
}

// Sync posts a profile to /sync.
func (c *Client) Sync(ctx context.Context, req validation.SyncProfileRequest) (*Profile, error) {
	var p Profile
	if _, err := c.rpc.Post(ctx, "/sync", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Get(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if _, err := c.rpc.Call(ctx, "get_user", validation.IDRequest{ID: id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) List(ctx context.Context) ([]Profile, error) {
	var list []Profile
	_, err := c.rpc.Call(ctx, "get_all_users", nil, &list)
	return list, err
}

func (c *Client) Update(ctx context.Context, req validation.UpdateUserRequest) (*Profile, error) {
	var p Profile
	if _, err := c.rpc.Call(ctx, "update_user", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.rpc.Call(ctx, "delete_user", validation.IDRequest{ID: id}, nil)
	return err
}
