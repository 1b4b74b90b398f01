package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/course-portal/internal/backend"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/payment"
)

func completion(orderID string) models.CheckoutCompleteRequest {
	return models.CheckoutCompleteRequest{OrderID: orderID, PaymentID: "pay_1", Signature: "sig_1"}
}

func TestCheckoutStatus_ReadyWhenConfigured(t *testing.T) {
	app := newTestApp(t)

	w := app.api(http.MethodGet, "/courses/c1/checkout", nil, app.login(t, student))

	require.Equal(t, http.StatusOK, w.Code)
	status := decode[payment.Status](t, w)
	assert.Equal(t, payment.StateReady, status.State)
	assert.True(t, status.CanPay)
	assert.True(t, status.Configured)
}

func TestCheckout_PaidCourseUnlocksAfterVerification(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, student)

	w := app.api(http.MethodPost, "/courses/c1/checkout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	opened := decode[checkoutResponse](t, w)
	require.NotNil(t, opened.Options)
	assert.Equal(t, "rzp_test_key", opened.Options.Key)
	assert.Equal(t, int64(49900), opened.Options.Amount)
	assert.Equal(t, "INR", opened.Options.Currency)
	assert.Equal(t, "order_c1", opened.Options.OrderID)
	assert.Equal(t, "Enrollment: Go Basics", opened.Options.Description)
	assert.Equal(t, student.Email, opened.Options.Prefill.Email)
	assert.Equal(t, payment.StateCheckoutOpen, opened.Status.State)
	assert.False(t, opened.Status.CanPay)

	w = app.api(http.MethodPost, "/courses/c1/checkout/complete", completion("order_c1"), cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode[checkoutResponse](t, w)
	assert.Equal(t, payment.OutcomeSuccess, done.Outcome)
	assert.Equal(t, opened.AttemptID, done.AttemptID)
	assert.Equal(t, "/courses/c1/learn", done.Location)
	assert.Equal(t, payment.StateSuccess, done.Status.State)

	created, verified := app.backend.counts()
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, verified)

	w = app.page(http.MethodGet, "/courses/c1/learn", cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckout_FreeCourseStillGoesThroughBackend(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, student)

	w := app.api(http.MethodPost, "/courses/c2/checkout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	opened := decode[checkoutResponse](t, w)
	require.NotNil(t, opened.Options)
	assert.Equal(t, int64(0), opened.Options.Amount)

	w = app.api(http.MethodPost, "/courses/c2/checkout/complete", completion(opened.Options.OrderID), cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "/courses/c2/learn", decode[checkoutResponse](t, w).Location)

	created, verified := app.backend.counts()
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, verified)
}

func TestCheckout_CreateOrderRejectedShowsServerMessage(t *testing.T) {
	app := newTestApp(t)
	app.backend.createOrderFn = func(context.Context, models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
		return nil, &backend.Error{Status: http.StatusBadRequest, Message: "Course full"}
	}

	w := app.api(http.MethodPost, "/courses/c1/checkout", nil, app.login(t, student))

	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	resp := decode[checkoutResponse](t, w)
	assert.Equal(t, payment.OutcomeFailed, resp.Outcome)
	assert.Equal(t, "Course full", resp.Message)
	assert.Equal(t, payment.KindBackend, resp.ErrorKind)
	assert.Equal(t, payment.StateFailed, resp.Status.State)
	assert.True(t, resp.Status.CanPay)
	assert.Equal(t, "Course full", resp.Status.Error)

	_, verified := app.backend.counts()
	assert.Zero(t, verified)
}

func TestCheckout_DismissReturnsToReady(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, student)

	w := app.api(http.MethodPost, "/courses/c1/checkout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.api(http.MethodPost, "/courses/c1/checkout/dismiss", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[checkoutResponse](t, w)
	assert.Equal(t, payment.OutcomeCancelled, resp.Outcome)
	assert.Empty(t, resp.Message)
	assert.Equal(t, payment.StateReady, resp.Status.State)
	assert.True(t, resp.Status.CanPay)
	assert.Empty(t, resp.Status.Error)

	_, verified := app.backend.counts()
	assert.Zero(t, verified)

	// A fresh attempt creates a new order.
	w = app.api(http.MethodPost, "/courses/c1/checkout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[checkoutResponse](t, w).Resumed)
	created, _ := app.backend.counts()
	assert.Equal(t, 2, created)
}

func TestCheckout_VerificationNetworkFailure(t *testing.T) {
	app := newTestApp(t)
	app.backend.verifyFn = func(context.Context, models.PaymentVerification) (*models.VerifyPaymentResponse, error) {
		return nil, errors.New("connection reset by peer")
	}
	cookie := app.login(t, student)

	w := app.api(http.MethodPost, "/courses/c1/checkout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.api(http.MethodPost, "/courses/c1/checkout/complete", completion("order_c1"), cookie)
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	resp := decode[checkoutResponse](t, w)
	assert.Equal(t, payment.OutcomeFailed, resp.Outcome)
	assert.Equal(t, payment.MsgVerifyFailed, resp.Message)
	assert.Equal(t, payment.StateFailed, resp.Status.State)
	assert.True(t, resp.Status.Retryable)

	// Still locked.
	w = app.page(http.MethodGet, "/courses/c1/learn", cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCheckout_SecondBeginResumesOpenCheckout(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, student)

	w := app.api(http.MethodPost, "/courses/c1/checkout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[checkoutResponse](t, w)

	w = app.api(http.MethodPost, "/courses/c1/checkout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode[checkoutResponse](t, w)

	assert.True(t, second.Resumed)
	assert.Equal(t, first.AttemptID, second.AttemptID)
	assert.Equal(t, first.Options.OrderID, second.Options.OrderID)
	created, _ := app.backend.counts()
	assert.Equal(t, 1, created)

	_ = app.api(http.MethodPost, "/courses/c1/checkout/dismiss", nil, cookie)
}

func TestCheckout_StaleCompletionRejected(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, student)

	w := app.api(http.MethodPost, "/courses/c1/checkout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.api(http.MethodPost, "/courses/c1/checkout/complete", completion("order_from_yesterday"), cookie)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, payment.StateCheckoutOpen, decode[checkoutResponse](t, w).Status.State)

	_, verified := app.backend.counts()
	assert.Zero(t, verified)

	_ = app.api(http.MethodPost, "/courses/c1/checkout/dismiss", nil, cookie)
}

func TestCheckout_RelayWithoutOpenCheckout(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, student)

	w := app.api(http.MethodPost, "/courses/c1/checkout/dismiss", nil, cookie)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.api(http.MethodPost, "/courses/c1/checkout/complete", completion("order_c1"), cookie)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCheckout_CompleteRequiresSignedFields(t *testing.T) {
	app := newTestApp(t)

	w := app.api(http.MethodPost, "/courses/c1/checkout/complete", map[string]string{"razorpay_order_id": "order_c1"}, app.login(t, student))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckout_MissingKeyIsConfigurationError(t *testing.T) {
	app := newTestApp(t, withoutKey())
	cookie := app.login(t, student)

	w := app.api(http.MethodPost, "/courses/c1/checkout", nil, cookie)

	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	resp := decode[checkoutResponse](t, w)
	assert.Equal(t, payment.KindConfiguration, resp.ErrorKind)
	assert.Equal(t, payment.MsgMissingKey, resp.Message)
	assert.False(t, resp.Status.Configured)
	assert.False(t, resp.Status.CanPay)

	created, _ := app.backend.counts()
	assert.Zero(t, created)
}

func TestCheckout_AlreadyEnrolled(t *testing.T) {
	app := newTestApp(t)
	app.backend.enroll(student.ID, "c1")

	w := app.api(http.MethodPost, "/courses/c1/checkout", nil, app.login(t, student))

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "/courses/c1/learn", decode[checkoutResponse](t, w).Location)
	created, _ := app.backend.counts()
	assert.Zero(t, created)
}

func TestCheckout_UnknownCourse(t *testing.T) {
	app := newTestApp(t)

	w := app.api(http.MethodPost, "/courses/nope/checkout", nil, app.login(t, student))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckout_FacultyCannotPay(t *testing.T) {
	app := newTestApp(t)

	w := app.api(http.MethodPost, "/courses/c1/checkout", nil, app.login(t, faculty))

	assert.Equal(t, http.StatusForbidden, w.Code)
}
