// Package handlers is the public HTTP surface of the storefront. Every route
// authenticates the caller, validates the body and forwards to one service
// command; checkout and refunds go through the checkout saga.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/auth"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/categories"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/checkout"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/idempotency"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/orders"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/payments"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/products"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/users"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// AuthService is implemented by *auth.Client.
type AuthService interface {
	Register(ctx context.Context, req validation.RegisterRequest) (*auth.Session, error)
	Login(ctx context.Context, req validation.LoginRequest) (*auth.Session, error)
	ValidateToken(ctx context.Context, token string) (*auth.Claims, error)
	Profile(ctx context.Context, id string) (*auth.User, error)
	ChangePassword(ctx context.Context, req validation.ChangePasswordRequest) error
}

// UserService is implemented by *users.Client.
type UserService interface {
	Get(ctx context.Context, id string) (*users.Profile, error)
	List(ctx context.Context) ([]users.Profile, error)
	Update(ctx context.Context, req validation.UpdateUserRequest) (*users.Profile, error)
	Delete(ctx context.Context, id string) error
}

// CategoryService is implemented by *categories.Client.
type CategoryService interface {
	Create(ctx context.Context, req validation.CreateCategoryRequest) (*categories.Category, error)
	Update(ctx context.Context, req validation.UpdateCategoryRequest) (*categories.Category, error)
	Get(ctx context.Context, id string) (*categories.Category, error)
	GetBySlug(ctx context.Context, slug string) (*categories.Category, error)
	List(ctx context.Context, includeInactive bool) ([]categories.Category, error)
	Delete(ctx context.Context, id string) error
}

// ProductService is implemented by *products.Client.
type ProductService interface {
	Create(ctx context.Context, req validation.CreateProductRequest) (*products.Product, error)
	Get(ctx context.Context, id string) (*products.Product, error)
	List(ctx context.Context, categoryID string) ([]products.Product, error)
}

// OrderService is implemented by *orders.Client.
type OrderService interface {
	Create(ctx context.Context, req validation.CreateOrderRequest) (*orders.Order, error)
	Get(ctx context.Context, id string) (*orders.Order, error)
	ListByUser(ctx context.Context, userID string) ([]orders.Order, error)
	ListAll(ctx context.Context) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, id, status string) (*orders.Order, error)
	UpdatePayment(ctx context.Context, id, paymentID, paymentStatus string) (*orders.Order, error)
	Delete(ctx context.Context, id string) error
}

// PaymentService is implemented by *payments.Client.
type PaymentService interface {
	GetPaymentStatus(ctx context.Context, orderID string) (*payments.StatusView, error)
	RefundPayment(ctx context.Context, paymentID string, amount float64) (*payments.RefundResult, error)
}

// Checkout is implemented by *checkout.Saga.
type Checkout interface {
	Checkout(ctx context.Context, userID string, req validation.CheckoutRequest) (*checkout.Result, error)
	Refund(ctx context.Context, orderID string) (*checkout.RefundOutcome, error)
}

// Deps groups everything the router forwards to. Requests may be nil, in
// which case Idempotency-Key headers on checkout are ignored; a nil
// AuthLimiter leaves register and login unthrottled.
type Deps struct {
	Auth        AuthService
	Users       UserService
	Categories  CategoryService
	Products    ProductService
	Orders      OrderService
	Payments    PaymentService
	Checkout    Checkout
	Requests    *idempotency.Store
	AuthLimiter *IPLimiter
	Logger      *slog.Logger
}

type gateway struct {
	Deps
	v *validatorv10.Validate
}

// NewRouter builds the gateway engine with every public route mounted.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	g := &gateway{Deps: deps, v: validation.New()}
	user := RequireAuth(deps.Auth, deps.Logger)
	admin := RequireRole(auth.RoleAdmin)

	g.registerAuthRoutes(r, user)
	g.registerUserRoutes(r, user, admin)
	g.registerCatalogRoutes(r, user, admin)
	g.registerOrderRoutes(r, user, admin)
	g.registerCheckoutRoutes(r, user)

	return r
}
