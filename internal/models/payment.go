package models

import "encoding/json"

// PaymentOrder is the handle for one checkout attempt. It lives only for that
// attempt.
type PaymentOrder struct {
	OrderID    string `json:"order_id"`
	CourseID   string `json:"course_id"`
	StudentID  string `json:"student_id"`
	CourseName string `json:"course_name"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

type CreateOrderRequest struct {
	CourseID  string `json:"courseId"`
	StudentID string `json:"studentId"`
}

// CreateOrderResponse is the backend's answer to /payments/create-order.
// CoursePrice is in major units.
type CreateOrderResponse struct {
	Success     bool        `json:"success"`
	OrderID     string      `json:"orderId"`
	CourseName  string      `json:"courseName"`
	CoursePrice json.Number `json:"coursePrice"`
	Currency    string      `json:"currency,omitempty"`
}

// PaymentVerification carries the widget's completion fields untouched.
type PaymentVerification struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
	CourseID  string `json:"courseId"`
	StudentID string `json:"studentId"`
}

type VerifyPaymentResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Enrollment *Enrollment `json:"enrollment,omitempty"`
}
