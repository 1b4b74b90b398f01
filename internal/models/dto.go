package models

import (
	"encoding/json"
	"time"
)

// ===== AUTH =====

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=6,max=128"`
	Next     string `json:"next" form:"next"`
}

type RegisterRequest struct {
	Name     string   `json:"name" form:"name" validate:"required,min=2,max=100"`
	Email    string   `json:"email" form:"email" validate:"required,email"`
	Password string   `json:"password" form:"password" validate:"required,min=6,max=128"`
	Phone    string   `json:"phone,omitempty" form:"phone" validate:"omitempty,e164|numeric"`
	Role     UserRole `json:"role" form:"role" validate:"required,oneof=student faculty"`
	Next     string   `json:"-" form:"next"`
}

// ===== COURSE FORMS =====

// CourseDraft is the faculty "create course" form.
type CourseDraft struct {
	Title       string      `json:"title" form:"title" validate:"required,min=3,max=200"`
	Description string      `json:"description" form:"description" validate:"required,max=5000"`
	Category    string      `json:"category" form:"category" validate:"required,max=100"`
	Price       json.Number `json:"price" form:"price" validate:"required,price_amount"`
	Thumbnail   string      `json:"thumbnail,omitempty" form:"thumbnail" validate:"omitempty,url"`
}

// CourseUpdate carries only the fields the faculty member changed.
type CourseUpdate struct {
	Title       *string      `json:"title,omitempty" form:"title" validate:"omitempty,min=3,max=200"`
	Description *string      `json:"description,omitempty" form:"description" validate:"omitempty,max=5000"`
	Category    *string      `json:"category,omitempty" form:"category" validate:"omitempty,max=100"`
	Price       *json.Number `json:"price,omitempty" form:"price" validate:"omitempty,price_amount"`
	Thumbnail   *string      `json:"thumbnail,omitempty" form:"thumbnail" validate:"omitempty,url"`
}

// Empty reports whether no field was set.
func (u CourseUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil && u.Price == nil && u.Thumbnail == nil
}

// ContentDraft is the faculty "upload content" form. File is attached separately
// as a multipart part.
type ContentDraft struct {
	Title       string      `json:"title" form:"title" validate:"required,min=1,max=200"`
	Type        ContentType `json:"type" form:"type" validate:"required,oneof=video document quiz link"`
	Description string      `json:"description,omitempty" form:"description" validate:"omitempty,max=2000"`
	URL         string      `json:"url,omitempty" form:"url" validate:"omitempty,url"`
	Duration    int         `json:"duration,omitempty" form:"duration" validate:"omitempty,min=0,max=86400"`
}

type PreferencesRequest struct {
	LastTab string  `json:"last_tab" form:"last_tab" validate:"omitempty,oneof=overview content notes"`
	Notes   *string `json:"notes" form:"notes" validate:"omitempty,max=10000"`
}

// ===== CHECKOUT =====

type CheckoutCompleteRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

// ===== PAGINATION =====

type PaginatedResponse struct {
	Content          interface{} `json:"content"`
	TotalElements    int64       `json:"total_elements"`
	TotalPages       int         `json:"total_pages"`
	Size             int         `json:"size"`
	Page             int         `json:"page"`
	First            bool        `json:"first"`
	Last             bool        `json:"last"`
	NumberOfElements int         `json:"number_of_elements"`
	Empty            bool        `json:"empty"`
}

// ===== VALIDATION RESPONSES =====

type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value"`
	Code    string `json:"code"`
}

// ===== ERROR RESPONSES =====

type ErrorResponse struct {
	Error            string                    `json:"error"`
	Message          string                    `json:"message"`
	Code             string                    `json:"code,omitempty"`
	Suggestion       string                    `json:"suggestion,omitempty"`
	Location         string                    `json:"location,omitempty"`
	Retry            bool                      `json:"retry,omitempty"`
	Details          interface{}               `json:"details,omitempty"`
	Timestamp        time.Time                 `json:"timestamp"`
	Path             string                    `json:"path"`
	ValidationErrors []ValidationErrorResponse `json:"validation_errors,omitempty"`
}

type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
