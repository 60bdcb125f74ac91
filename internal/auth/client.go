package auth

import (
	"context"
	"time"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// Client is used by the gateway.
type Client struct {
	rpc *rpc.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{rpc: rpc.NewClient("auth", baseURL, timeout)}
}

func (c *Client) Register(ctx context.Context, req validation.RegisterRequest) (*Session, error) {
	var sess Session
	if _, err := c.rpc.Call(ctx, "register", req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) Login(ctx context.Context, req validation.LoginRequest) (*Session, error) {
	var sess Session
	if _, err := c.rpc.Call(ctx, "login", req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	var claims Claims
	if _, err := c.rpc.Call(ctx, "validate_token", validation.TokenRequest{Token: token}, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (c *Client) Profile(ctx context.Context, id string) (*User, error) {
	var u User
	if _, err := c.rpc.Call(ctx, "get_profile", validation.IDRequest{ID: id}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ChangePassword(ctx context.Context, req validation.ChangePasswordRequest) error {
	_, err := c.rpc.Call(ctx, "change_password", req, nil)
	return err
}
