package payment

import (
	"context"

	"github.com/SAP-F-2025/course-portal/internal/models"
)

type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

type Theme struct {
	Color string `json:"color,omitempty"`
}

// CheckoutOptions is what the browser passes to the checkout widget's constructor.
// Amount is in minor units.
type CheckoutOptions struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	Prefill     Prefill `json:"prefill"`
	Theme       Theme   `json:"theme"`
}

// Completion is the widget's signed success callback payload.
type Completion struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// Widget adapts the third-party checkout UI.
//
// Open blocks until the user completes payment or dismisses the widget, in which
// case it returns ErrDismissed.
type Widget interface {
	Loaded() bool
	Load(ctx context.Context) error
	Open(ctx context.Context, opts CheckoutOptions) (Completion, error)
}

// Gateway is the backend side of the two-phase payment protocol.
type Gateway interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, req models.PaymentVerification) (*models.VerifyPaymentResponse, error)
}

// Purchase identifies one enrollment attempt.
type Purchase struct {
	CourseID    string
	CourseTitle string
	StudentID   string
	Prefill     Prefill
}

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Result is the single value an attempt resolves to. Err is set only for
// OutcomeFailed.
type Result struct {
	AttemptID  string
	Outcome    Outcome
	Order      *models.PaymentOrder
	Enrollment *models.Enrollment
	Err        *Error
}
