package checkout

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
)

// Cause classifies why a charge step gave up.
type Cause string

const (
	CauseTimeout    Cause = "timeout"
	CauseNetwork    Cause = "network"
	CauseServer     Cause = "server"
	CauseValidation Cause = "validation"
)

// CheckoutError is the terminal failure of the charge step. The order it
// names was created and stays pending.
type CheckoutError struct {
	OrderID  string
	Cause    Cause
	Attempts int
	Err      error
}

func (e *CheckoutError) Error() string {
	switch e.Cause {
	case CauseTimeout:
		return "Request timed out. Please check your internet connection and try again."
	case CauseNetwork:
		return "Network error. Please check your internet connection and try again."
	case CauseServer:
		return "Server error. Please try again in a moment."
	}
	if msg := apperr.PublicMessage(e.Err); e.Err != nil && msg != "internal server error" {
		return msg
	}
	return "Invalid payment information. Please check your details."
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// Detail includes the attempt count and underlying error, for logs.
func (e *CheckoutError) Detail() string {
	return fmt.Sprintf("checkout of order %s failed after %d attempt(s) (%s): %v", e.OrderID, e.Attempts, e.Cause, e.Err)
}

func classify(err error) Cause {
	switch apperr.KindOf(err) {
	case apperr.KindUnavailable:
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return CauseTimeout
		}
		return CauseNetwork
	case apperr.KindInternal:
		return CauseServer
	}
	return CauseValidation
}
