package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
)

// Client calls one remote service. Every call is bounded by the client
// timeout on top of the caller's context.
type Client struct {
	service string
	baseURL string
	http    *http.Client
}

func NewClient(service, baseURL string, timeout time.Duration) *Client {
	return &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Call sends cmd with req as payload. When the reply carries data and out is
// non-nil, the data is decoded into out, including for Success=false replies.
func (c *Client) Call(ctx context.Context, cmd string, req, out any) (Result, error) {
	return c.Post(ctx, "/rpc/"+cmd, req, out)
}

// Post sends req as JSON to path. Network failures and timeouts come back as
// apperr.KindUnavailable; non-2xx replies are mapped from their status.
func (c *Client) Post(ctx context.Context, path string, req, out any) (Result, error) {
	if req == nil {
		req = struct{}{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, apperr.Internal("encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Result{}, apperr.Internal("build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, apperr.Unavailable(fmt.Sprintf("%s service unavailable", c.service), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, apperr.Unavailable(fmt.Sprintf("%s service unavailable", c.service), err)
	}

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Status: resp.StatusCode}, replyError(c.service, resp.StatusCode, env.Message)
	}
	if decodeErr != nil {
		return Result{Status: resp.StatusCode}, apperr.Internal(fmt.Sprintf("%s sent a malformed reply", c.service), decodeErr)
	}

	res := Result{Success: env.Success, Message: env.Message, Status: resp.StatusCode}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return res, apperr.Internal(fmt.Sprintf("%s sent a malformed reply", c.service), err)
		}
	}
	return res, nil
}

// StatusError is the cause attached to a non-2xx reply, recording what the
// remote actually answered.
type StatusError struct {
	Service string
	Status  int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s replied %d", e.Service, e.Status)
}

func replyError(service string, status int, message string) *apperr.Error {
	e := apperr.FromStatus(status, message)
	e.Err = &StatusError{Service: service, Status: status}
	return e
}

// IsTransient reports whether a failed call may succeed if repeated: the
// remote was unreachable, timed out, or answered with a 5xx. Faults raised
// locally, such as an unencodable request or a malformed reply, are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError
	}
	return apperr.KindOf(err) == apperr.KindUnavailable
}
