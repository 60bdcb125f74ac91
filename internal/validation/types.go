package validation

import "time"

// Payment methods accepted by the ledger.
const (
	MethodCreditCard = "credit_card"
	MethodDebitCard  = "debit_card"
	MethodPayPal     = "paypal"
)

// Item represents a single order line item. Name and price are snapshots
// taken when the order is placed.
type Item struct {
	ProductID   string  `json:"productId" dynamodbav:"product_id" validate:"required"`
	ProductName string  `json:"productName" dynamodbav:"product_name"`
	Quantity    int     `json:"quantity" dynamodbav:"quantity" validate:"required,min=1"` // must be >= 1
	Price       float64 `json:"price" dynamodbav:"price" validate:"gte=0"`                // unit price
}

// ShippingAddress is stored verbatim on the order.
type ShippingAddress struct {
	Street  string `json:"street" dynamodbav:"street"`
	City    string `json:"city" dynamodbav:"city"`
	State   string `json:"state" dynamodbav:"state"`
	ZipCode string `json:"zipCode" dynamodbav:"zip_code"`
	Country string `json:"country" dynamodbav:"country"`
	Phone   string `json:"phone" dynamodbav:"phone"`
}

// CreateOrderRequest is the payload of create_order.
type CreateOrderRequest struct {
	UserID          string          `json:"userId" validate:"required"`
	Items           []Item          `json:"items" validate:"required,min=1,dive"` // at least one item
	TotalAmount     float64         `json:"totalAmount" validate:"gt=0"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
}

type UpdateOrderStatusRequest struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

type UpdateOrderPaymentRequest struct {
	ID            string `json:"id" validate:"required"`
	PaymentID     string `json:"paymentId"`
	PaymentStatus string `json:"paymentStatus" validate:"required,oneof=pending paid failed refunded"`
}

// IDRequest is the payload of every lookup-by-id command.
type IDRequest struct {
	ID string `json:"id" validate:"required"`
}

type UserOrdersRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type UnlinkedOrdersRequest struct {
	// OlderThanSeconds selects orders created at least this long ago.
	OlderThanSeconds int64 `json:"olderThanSeconds" validate:"gte=0"`
}

// CardDetails carries raw card data for credit_card and debit_card payments.
type CardDetails struct {
	Number string `json:"number"`
	CVC    string `json:"cvc"`
	Expiry string `json:"expiry"` // MM/YY
	Name   string `json:"name,omitempty"`
	Last4  string `json:"last4,omitempty"`
}

// ProcessPaymentRequest is the payload of process_payment. Method-specific
// rules are enforced by a struct-level validation.
type ProcessPaymentRequest struct {
	OrderID        string       `json:"orderId" validate:"required"`
	Amount         float64      `json:"amount" validate:"gt=0"`
	PaymentMethod  string       `json:"paymentMethod" validate:"required,oneof=credit_card debit_card paypal"`
	CardDetails    *CardDetails `json:"cardDetails,omitempty"`
	PayerEmail     string       `json:"payerEmail,omitempty"`
	IdempotencyKey string       `json:"idempotencyKey,omitempty"`
}

type PaymentStatusRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

type RefundPaymentRequest struct {
	PaymentID string  `json:"paymentId" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0"`
}

// CheckoutRequest is what a client submits to the gateway's checkout route.
type CheckoutRequest struct {
	Items           []Item          `json:"items" validate:"required,min=1,dive"`
	TotalAmount     float64         `json:"totalAmount" validate:"gt=0"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required,oneof=credit_card debit_card paypal"`
	CardDetails     *CardDetails    `json:"cardDetails,omitempty"`
	PayerEmail      string          `json:"payerEmail,omitempty"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=100"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	UserID      string `json:"userId" validate:"required"`
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,max=100"`
}

type TokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// SyncProfileRequest is the body of the users service's POST /sync. ID is
// the identifier assigned by the auth service; UpdatedAt is the credential's
// updated_at and orders deliveries of the same account.
type SyncProfileRequest struct {
	ID        string    `json:"id" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	Name      string    `json:"name" validate:"required"`
	Role      string    `json:"role" validate:"required,oneof=user admin"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type UpdateUserRequest struct {
	ID      string  `json:"id" validate:"required"`
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type UpdateCategoryRequest struct {
	ID          string  `json:"id" validate:"required"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

type ListCategoriesRequest struct {
	IncludeInactive bool `json:"includeInactive,omitempty"`
}

type SlugRequest struct {
	Slug string `json:"slug" validate:"required"`
}

type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	CategoryID  string  `json:"categoryId" validate:"required"`
}

type ListProductsRequest struct {
	CategoryID string `json:"categoryId,omitempty"`
}

// CategorySnapshotRequest is the payload of sync_category_snapshot.
// UpdatedAt is the category's updated_at; an older snapshot never replaces a
// newer one.
type CategorySnapshotRequest struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Slug      string    `json:"slug" validate:"required"`
	UpdatedAt time.Time `json:"updatedAt"`
}
