package checkout

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/orders"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/payments"
)

// Report summarizes one reconciler pass.
type Report struct {
	Scanned int `json:"scanned"`
	Linked  int `json:"linked"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Reconciler links orders left pending by a lost link step. Running it
// twice has the same effect as running it once.
type Reconciler struct {
	orders       OrderService
	payments     PaymentService
	metrics      Metrics
	logger       *slog.Logger
	pendingAfter time.Duration
}

func NewReconciler(o OrderService, p PaymentService, m Metrics, pendingAfter time.Duration, logger *slog.Logger) *Reconciler {
	return &Reconciler{orders: o, payments: p, metrics: m, logger: logger, pendingAfter: pendingAfter}
}

func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var rep Report
	pending, err := r.orders.ListUnlinked(ctx, r.pendingAfter)
	if err != nil {
		return rep, err
	}

	for _, o := range pending {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Scanned++
		log := r.logger.With("order_id", o.ID)

		view, err := r.payments.GetPaymentStatus(ctx, o.ID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				rep.Skipped++
				continue
			}
			rep.Failed++
			log.Warn("payment lookup failed", "error", err)
			continue
		}

		var status string
		switch view.Status {
		case payments.StatusCompleted:
			status = orders.PaymentPaid
		case payments.StatusRefunded:
			status = orders.PaymentRefunded
		default:
			rep.Skipped++
			continue
		}

		if _, err := r.orders.UpdatePayment(ctx, o.ID, view.PaymentID, status); err != nil {
			rep.Failed++
			log.Warn("link payment failed", "payment_id", view.PaymentID, "error", err)
			continue
		}
		rep.Linked++
		log.Info("order reconciled", "payment_id", view.PaymentID, "payment_status", status)
		if r.metrics != nil {
			if err := r.metrics.Count(ctx, MetricReconcileLinked, 1); err != nil {
				log.Debug("metric not published", "error", err)
			}
		}
	}
	return rep, nil
}
