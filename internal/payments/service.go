package payments

import (
	"context"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// Service exposes the ledger as RPC commands.
type Service struct {
	ledger *Ledger
	v      *validatorv10.Validate
}

func NewService(ledger *Ledger) *Service {
	return &Service{ledger: ledger, v: validation.New()}
}

func (s *Service) Register(srv *rpc.Server) {
	srv.Handle("process_payment", rpc.Command(s.v, s.process))
	srv.Handle("get_payment_status", rpc.Command(s.v, s.status))
	srv.Handle("refund_payment", rpc.Command(s.v, s.refund))
}

func (s *Service) process(ctx context.Context, req validation.ProcessPaymentRequest) (rpc.Reply, error) {
	res, err := s.ledger.ProcessPayment(ctx, req)
	if err != nil {
		return rpc.Reply{}, err
	}
	if !res.Success {
		return rpc.Fail("Payment processing failed", res), nil
	}
	return rpc.OK("Payment processed successfully", res), nil
}

func (s *Service) status(ctx context.Context, req validation.PaymentStatusRequest) (rpc.Reply, error) {
	p, err := s.ledger.GetPaymentStatus(ctx, req.OrderID)
	if err != nil {
		return rpc.Reply{}, err
	}
	return rpc.OK("", viewOf(p)), nil
}

func (s *Service) refund(ctx context.Context, req validation.RefundPaymentRequest) (rpc.Reply, error) {
	res, err := s.ledger.RefundPayment(ctx, req.PaymentID, req.Amount)
	if err != nil {
		return rpc.Reply{}, err
	}
	if !res.Success {
		return rpc.Fail("Refund processing failed", res), nil
	}
	return rpc.OK("Refund processed successfully", res), nil
}
