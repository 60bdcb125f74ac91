package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/checkout"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/idempotency"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// IdempotencyHeader lets a client resubmit a checkout without placing a
// second order.
const IdempotencyHeader = "Idempotency-Key"

func (g *gateway) registerCheckoutRoutes(r *gin.Engine, user gin.HandlerFunc) {
	r.POST("/checkout", user, g.checkout)
}

func (g *gateway) checkout(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, g.v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}
	userID := claimsOf(c).Subject
	log := g.Logger.With("user_id", userID)

	// Keys are scoped to the caller so two users cannot collide.
	var key string
	if h := c.GetHeader(IdempotencyHeader); h != "" && g.Requests != nil {
		key = fmt.Sprintf("checkout:%s:%s", userID, h)
		rec, created, err := g.Requests.Acquire(ctx, key, "")
		if err != nil {
			log.Error("idempotency check failed", "error", err)
			g.fail(c, apperr.Internal("idempotency check failed", err))
			return
		}
		if !created {
			replay(c, rec)
			return
		}
	}

	res, err := g.Checkout.Checkout(ctx, userID, req)
	if err != nil {
		// Nothing is stored for a failed checkout; the client may retry
		// with the same key.
		if key != "" {
			if rerr := g.Requests.Release(ctx, key); rerr != nil {
				log.Warn("failed to release checkout key", "error", rerr)
			}
		}
		g.checkoutFailed(c, err)
		return
	}

	reply := rpc.OK("Order placed successfully", res)
	status := http.StatusCreated
	if !res.Paid {
		reply = rpc.Fail(res.FailureReason, res)
		status = http.StatusOK
	}
	if key != "" {
		g.remember(c, key, status, reply)
	}
	if res.Order != nil {
		c.Header("Location", "/orders/"+res.Order.ID)
	}
	rpc.WriteReply(c, status, reply)
}

// checkoutFailed maps a terminal charge failure to 400 or 503 with the
// message the client should show.
func (g *gateway) checkoutFailed(c *gin.Context, err error) {
	var ce *checkout.CheckoutError
	if !errors.As(err, &ce) {
		g.fail(c, err)
		return
	}
	status := http.StatusServiceUnavailable
	if ce.Cause == checkout.CauseValidation {
		status = http.StatusBadRequest
	}
	g.Logger.Warn("checkout failed", "detail", ce.Detail())
	rpc.WriteReply(c, status, rpc.Fail(ce.Error(), gin.H{
		"orderId":  ce.OrderID,
		"attempts": ce.Attempts,
		"cause":    ce.Cause,
	}))
}

// remember stores the response so duplicates get the same answer. Failing
// to store it leaves the key IN_PROGRESS until it expires.
func (g *gateway) remember(c *gin.Context, key string, status int, reply rpc.Reply) {
	data, err := json.Marshal(reply.Data)
	if err != nil {
		g.Logger.Error("failed to encode checkout response", "error", err)
		return
	}
	body, err := json.Marshal(rpc.Envelope{Success: reply.Success, Message: reply.Message, Data: data})
	if err != nil {
		g.Logger.Error("failed to encode checkout response", "error", err)
		return
	}
	if err := g.Requests.MarkDone(c.Request.Context(), key, string(body), status); err != nil {
		g.Logger.Warn("failed to store checkout response", "key", key, "error", err)
	}
}

func replay(c *gin.Context, rec *idempotency.IdempotencyRecord) {
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" {
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, rpc.Envelope{Success: true})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, rpc.Envelope{Success: false, Message: "request already in progress"})
	default:
		c.JSON(http.StatusConflict, rpc.Envelope{Success: false, Message: "previous attempt failed"})
	}
}
