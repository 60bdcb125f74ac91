package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// Service exposes the order store as RPC commands.
type Service struct {
	store   *Store
	v       *validatorv10.Validate
	logger  *slog.Logger
	nowFunc func() time.Time
}

func NewService(store *Store, logger *slog.Logger) *Service {
	return &Service{store: store, v: validation.New(), logger: logger, nowFunc: time.Now}
}

// Register mounts every order command on srv.
func (s *Service) Register(srv *rpc.Server) {
	srv.Handle("create_order", rpc.Command(s.v, s.create))
	srv.Handle("get_order", rpc.Command(s.v, s.get))
	srv.Handle("get_all_orders", rpc.Command(s.v, s.listByUser))
	srv.Handle("get_all_orders_admin", rpc.Command(s.v, s.listAll))
	srv.Handle("update_order_status", rpc.Command(s.v, s.updateStatus))
	srv.Handle("update_order_payment", rpc.Command(s.v, s.updatePayment))
	srv.Handle("delete_order", rpc.Command(s.v, s.delete))
	srv.Handle("list_unlinked_orders", rpc.Command(s.v, s.listUnlinked))
}

func (s *Service) create(ctx context.Context, req validation.CreateOrderRequest) (rpc.Reply, error) {
	o, err := s.store.Create(ctx, req)
	if err != nil {
		return rpc.Reply{}, apperr.Internal("failed to create order", err)
	}
	s.logger.Info("order created", "order_id", o.ID, "order_number", o.OrderNumber, "user_id", o.UserID)
	return rpc.OK("Order created successfully", o), nil
}

func (s *Service) get(ctx context.Context, req validation.IDRequest) (rpc.Reply, error) {
	o, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return rpc.Reply{}, mapErr(err, "failed to load order")
	}
	return rpc.OK("", o), nil
}

func (s *Service) listByUser(ctx context.Context, req validation.UserOrdersRequest) (rpc.Reply, error) {
	list, err := s.store.ListByUser(ctx, req.UserID)
	if err != nil {
		return rpc.Reply{}, apperr.Internal("failed to list orders", err)
	}
	return rpc.OK("", nonNil(list)), nil
}

func (s *Service) listAll(ctx context.Context, _ struct{}) (rpc.Reply, error) {
	list, err := s.store.ListAll(ctx)
	if err != nil {
		return rpc.Reply{}, apperr.Internal("failed to list orders", err)
	}
	return rpc.OK("", nonNil(list)), nil
}

func (s *Service) updateStatus(ctx context.Context, req validation.UpdateOrderStatusRequest) (rpc.Reply, error) {
	o, err := s.store.UpdateStatus(ctx, req.ID, req.Status)
	if err != nil {
		return rpc.Reply{}, mapErr(err, "failed to update order status")
	}
	return rpc.OK("Order status updated successfully", o), nil
}

func (s *Service) updatePayment(ctx context.Context, req validation.UpdateOrderPaymentRequest) (rpc.Reply, error) {
	o, err := s.store.UpdatePaymentInfo(ctx, req.ID, req.PaymentID, req.PaymentStatus)
	if err != nil {
		return rpc.Reply{}, mapErr(err, "failed to update order payment info")
	}
	s.logger.Info("order payment linked", "order_id", o.ID, "payment_id", o.PaymentID, "payment_status", o.PaymentStatus)
	return rpc.OK("Order payment info updated successfully", o), nil
}

func (s *Service) delete(ctx context.Context, req validation.IDRequest) (rpc.Reply, error) {
	if err := s.store.Delete(ctx, req.ID); err != nil {
		return rpc.Reply{}, mapErr(err, "failed to delete order")
	}
	return rpc.OK("Order deleted successfully", nil), nil
}

func (s *Service) listUnlinked(ctx context.Context, req validation.UnlinkedOrdersRequest) (rpc.Reply, error) {
	cutoff := s.nowFunc().Add(-time.Duration(req.OlderThanSeconds) * time.Second)
	list, err := s.store.ListUnlinked(ctx, cutoff)
	if err != nil {
		return rpc.Reply{}, apperr.Internal("failed to list unlinked orders", err)
	}
	return rpc.OK("", nonNil(list)), nil
}

func mapErr(err error, msg string) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Order not found")
	}
	return apperr.Internal(msg, err)
}

func nonNil(list []Order) []Order {
	if list == nil {
		return []Order{}
	}
	return list
}
