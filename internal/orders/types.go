package orders

import (
	"time"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// Order statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// Payment statuses as recorded on the order.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

// Order represents the item stored in the orders DynamoDB table.
type Order struct {
	ID              string                     `json:"id" dynamodbav:"id"` // PK
	OrderNumber     string                     `json:"orderNumber" dynamodbav:"order_number"`
	UserID          string                     `json:"userId" dynamodbav:"user_id"` // GSI user_id-index
	Items           []validation.Item          `json:"items" dynamodbav:"items"`
	TotalAmount     float64                    `json:"totalAmount" dynamodbav:"total_amount"`
	Status          string                     `json:"status" dynamodbav:"status"`
	ShippingAddress validation.ShippingAddress `json:"shippingAddress" dynamodbav:"shipping_address"`
	PaymentID       string                     `json:"paymentId,omitempty" dynamodbav:"payment_id,omitempty"`
	PaymentStatus   string                     `json:"paymentStatus" dynamodbav:"payment_status"`
	CreatedAt       time.Time                  `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt       time.Time                  `json:"updatedAt" dynamodbav:"updated_at"`
}
