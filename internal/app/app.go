// Package app turns a Config into runnable components. Every binary under
// cmd/ builds its services through it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/auth"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/categories"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/checkout"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/config"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/handlers"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/idempotency"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/mirror"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/orders"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/outbox"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/payments"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/products"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/users"
)

// Service names accepted by ServiceServer.
const (
	ServiceOrders     = "orders"
	ServicePayments   = "payments"
	ServiceAuth       = "auth"
	ServiceUsers      = "users"
	ServiceCategories = "categories"
	ServiceProducts   = "products"
)

// Services lists every backend that can be served on its own.
var Services = []string{ServiceOrders, ServicePayments, ServiceAuth, ServiceUsers, ServiceCategories, ServiceProducts}

type App struct {
	Config  *config.Config
	Clients *aws.AWSClients
	Logger  *slog.Logger
}

// New loads AWS clients for cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	clients, err := aws.NewAWSClients(ctx, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}
	return NewWithClients(cfg, clients, logger), nil
}

func NewWithClients(cfg *config.Config, clients *aws.AWSClients, logger *slog.Logger) *App {
	return &App{Config: cfg, Clients: clients, Logger: logger}
}

// Metrics returns a CloudWatch publisher, or a no-op when metrics are off.
func (a *App) Metrics(service string) checkout.Metrics {
	if !a.Config.Metrics.Enabled || a.Clients.CloudWatch == nil {
		return aws.NopMetrics{}
	}
	return aws.NewMetricsPublisher(a.Clients.CloudWatch, a.Config.Metrics.Namespace, service)
}

// ServiceServer builds the RPC server of one backend service.
func (a *App) ServiceServer(name string) (*rpc.Server, error) {
	cfg := a.Config
	db := a.Clients.DynamoDB
	logger := a.Logger.With("component", name)
	srv := rpc.NewServer(name, logger)

	switch name {
	case ServiceOrders:
		orders.NewService(orders.NewStore(db, cfg.Tables.Orders), logger).Register(srv)
	case ServicePayments:
		keys := idempotency.NewStore(db, cfg.Tables.Idempotency, cfg.Idempotency.TTLWindow)
		ledger := payments.NewLedger(payments.NewStore(db, cfg.Tables.Payments), keys, payments.NewGateway(cfg.Gateway, logger), logger)
		payments.NewService(ledger).Register(srv)
	case ServiceAuth:
		svc, err := a.AuthService()
		if err != nil {
			return nil, err
		}
		svc.Register(srv)
	case ServiceUsers:
		users.NewService(users.NewStore(db, cfg.Tables.Profiles), logger).Register(srv)
	case ServiceCategories:
		store := categories.NewStore(db, cfg.Tables.Categories, cfg.Tables.CategoryOutbox)
		categories.NewService(store, a.Relay(cfg.Tables.CategoryOutbox), logger).Register(srv)
	case ServiceProducts:
		a.ProductService().Register(srv)
	default:
		return nil, fmt.Errorf("unknown service %q", name)
	}
	return srv, nil
}

// AuthService is also used directly by the seed-admin command.
func (a *App) AuthService() (*auth.Service, error) {
	cfg := a.Config
	if cfg.Auth.TokenSecret == "" {
		return nil, fmt.Errorf("auth.token_secret is required")
	}
	store := auth.NewStore(a.Clients.DynamoDB, cfg.Tables.Credentials, cfg.Tables.AuthOutbox)
	tokens := auth.NewTokens(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	return auth.NewService(store, tokens, a.Relay(cfg.Tables.AuthOutbox), cfg.Auth.BcryptCost, a.Logger.With("component", ServiceAuth)), nil
}

// ProductService is also used directly by the resync command.
func (a *App) ProductService() *products.Service {
	cfg := a.Config
	store := products.NewStore(a.Clients.DynamoDB, cfg.Tables.Products, cfg.Tables.CategorySnapshots)
	source := categories.NewClient(cfg.RPC.CategoriesURL, cfg.RPC.Timeout)
	return products.NewService(store, source, a.Logger.With("component", ServiceProducts))
}

// Relay publishes the outbox stored in table to the mirror queue. With no
// queue configured events stay pending.
func (a *App) Relay(table string) *outbox.Relay {
	var pub outbox.Publisher
	if a.Config.Queue.MirrorURL != "" && a.Clients.SQS != nil {
		pub = aws.NewPublisher(a.Clients.SQS, a.Config.Queue.MirrorURL)
	}
	return outbox.NewRelay(outbox.NewStore(a.Clients.DynamoDB, table), pub, a.Logger.With("component", "outbox", "table", table))
}

func (a *App) Saga() *checkout.Saga {
	cfg := a.Config
	return checkout.NewSaga(
		orders.NewClient(cfg.RPC.OrdersURL, cfg.RPC.Timeout),
		payments.NewClient(cfg.RPC.PaymentsURL, cfg.RPC.Timeout),
		a.Metrics("checkout"),
		cfg.Checkout,
		a.Logger.With("component", "checkout"),
	)
}

func (a *App) Reconciler() *checkout.Reconciler {
	cfg := a.Config
	return checkout.NewReconciler(
		orders.NewClient(cfg.RPC.OrdersURL, cfg.RPC.Timeout),
		payments.NewClient(cfg.RPC.PaymentsURL, cfg.RPC.Timeout),
		a.Metrics("reconciler"),
		cfg.Reconcile.PendingAfter,
		a.Logger.With("component", "reconciler"),
	)
}

// Gateway builds the public router over RPC clients of every service.
func (a *App) Gateway() *gin.Engine {
	cfg := a.Config
	timeout := cfg.RPC.Timeout
	var limiter *handlers.IPLimiter
	if cfg.HTTP.AuthRateLimit > 0 {
		limiter = handlers.NewIPLimiter(cfg.HTTP.AuthRateLimit, cfg.HTTP.AuthRateBurst)
	}
	return handlers.NewRouter(handlers.Deps{
		Auth:        auth.NewClient(cfg.RPC.AuthURL, timeout),
		Users:       users.NewClient(cfg.RPC.UsersURL, timeout),
		Categories:  categories.NewClient(cfg.RPC.CategoriesURL, timeout),
		Products:    products.NewClient(cfg.RPC.ProductsURL, timeout),
		Orders:      orders.NewClient(cfg.RPC.OrdersURL, timeout),
		Payments:    payments.NewClient(cfg.RPC.PaymentsURL, timeout),
		Checkout:    a.Saga(),
		Requests:    idempotency.NewStore(a.Clients.DynamoDB, cfg.Tables.CheckoutRequests, cfg.Idempotency.TTLWindow),
		AuthLimiter: limiter,
		Logger:      a.Logger.With("component", "gateway"),
	})
}

// MirrorProcessor consumes the mirror queue.
func (a *App) MirrorProcessor() *mirror.Processor {
	cfg := a.Config
	return mirror.NewProcessor(
		users.NewClient(cfg.RPC.UsersURL, cfg.RPC.Timeout),
		products.NewClient(cfg.RPC.ProductsURL, cfg.RPC.Timeout),
		a.Logger.With("component", "mirror"),
	)
}
