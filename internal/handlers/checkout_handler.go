package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/SAP-F-2025/course-portal/internal/enrollment"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/payment"
	"github.com/SAP-F-2025/course-portal/internal/services"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/SAP-F-2025/course-portal/internal/validator"
	"github.com/gin-gonic/gin"
)

// checkoutResponse is the JSON the preview page script drives the widget with.
type checkoutResponse struct {
	AttemptID  string                   `json:"attempt_id,omitempty"`
	Outcome    payment.Outcome          `json:"outcome,omitempty"`
	Options    *payment.CheckoutOptions `json:"options,omitempty"`
	Resumed    bool                     `json:"resumed,omitempty"`
	Message    string                   `json:"message,omitempty"`
	Suggestion string                   `json:"suggestion,omitempty"`
	ErrorKind  payment.ErrorKind        `json:"error_kind,omitempty"`
	Location   string                   `json:"location,omitempty"`
	Status     payment.Status           `json:"status"`
}

// CheckoutHandler relays the checkout widget between the browser and the
// payment orchestrator.
type CheckoutHandler struct {
	BaseHandler
	checkouts *payment.Checkouts
	courses   services.CourseService
	gate      *enrollment.Gate
	validator *validator.BusinessValidator
}

func NewCheckoutHandler(checkouts *payment.Checkouts, courses services.CourseService, gate *enrollment.Gate, v *validator.BusinessValidator, logger utils.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		BaseHandler: NewBaseHandler(logger),
		checkouts:   checkouts,
		courses:     courses,
		gate:        gate,
		validator:   v,
	}
}

// Status reports the pay button state, mounting the checkout if needed.
func (h *CheckoutHandler) Status(c *gin.Context) {
	sess := CurrentSession(c)
	c.JSON(http.StatusOK, h.checkouts.Prepare(c.Request.Context(), sess.UserID, c.Param("id")))
}

// Begin creates the order and returns the widget options. A second click while
// the widget is open gets the same options back instead of a new order.
func (h *CheckoutHandler) Begin(c *gin.Context) {
	ctx := c.Request.Context()
	sess := CurrentSession(c)
	courseID := c.Param("id")

	h.LogRequest(c, "Starting checkout", "course_id", courseID)

	if h.gate.IsEnrolled(ctx, sess, courseID) {
		c.JSON(http.StatusConflict, checkoutResponse{
			Message:  "You are already enrolled in this course.",
			Location: learnPath(courseID),
			Status:   h.checkouts.Status(sess.UserID, courseID),
		})
		return
	}

	purchase := payment.Purchase{
		CourseID:  courseID,
		StudentID: sess.UserID,
		Prefill: payment.Prefill{
			Name:    sess.DisplayName,
			Email:   sess.Email,
			Contact: sess.Phone,
		},
	}
	if courseID != "" {
		course, err := h.courses.Get(ctx, courseID)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		purchase.CourseTitle = course.Title
	}

	opened, err := h.checkouts.Begin(ctx, purchase)
	if err != nil {
		h.beginFailed(c, sess, courseID, err)
		return
	}

	if opened.Result != nil {
		h.respondResult(c, sess, courseID, *opened.Result)
		return
	}
	c.JSON(http.StatusOK, checkoutResponse{
		AttemptID: opened.AttemptID,
		Options:   opened.Options,
		Resumed:   opened.Resumed,
		Status:    h.checkouts.Status(sess.UserID, courseID),
	})
}

// Complete relays the widget's signed completion and waits for verification.
func (h *CheckoutHandler) Complete(c *gin.Context) {
	sess := CurrentSession(c)
	courseID := c.Param("id")

	var req models.CheckoutCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid_request", "Invalid payment confirmation")
		return
	}
	if errs := h.validator.Validate(&req); len(errs) > 0 {
		h.handleServiceError(c, errs)
		return
	}

	result, err := h.checkouts.Complete(c.Request.Context(), sess.UserID, courseID, payment.Completion{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		h.relayFailed(c, sess, courseID, err)
		return
	}
	h.respondResult(c, sess, courseID, result)
}

// Dismiss relays the widget's ondismiss callback. It is not an error.
func (h *CheckoutHandler) Dismiss(c *gin.Context) {
	sess := CurrentSession(c)
	courseID := c.Param("id")

	result, err := h.checkouts.Dismiss(c.Request.Context(), sess.UserID, courseID)
	if err != nil {
		h.relayFailed(c, sess, courseID, err)
		return
	}
	h.respondResult(c, sess, courseID, result)
}

func (h *CheckoutHandler) respondResult(c *gin.Context, sess *models.Session, courseID string, r payment.Result) {
	resp := checkoutResponse{AttemptID: r.AttemptID, Outcome: r.Outcome}
	status := http.StatusOK

	switch r.Outcome {
	case payment.OutcomeSuccess:
		// Granted on a context of its own so a client that has gone away still
		// gets the unlock recorded for its session.
		if err := h.gate.Grant(context.WithoutCancel(c.Request.Context()), sess, courseID); err != nil {
			h.LogError(c, err, "Failed to record unlock", "course_id", courseID)
		}
		resp.Location = learnPath(courseID)
		h.Logger(c).Info("checkout succeeded", "course_id", courseID, "attempt_id", r.AttemptID)
	case payment.OutcomeFailed:
		status = http.StatusBadGateway
		if r.Err != nil {
			resp.Message = r.Err.Message
			resp.Suggestion = r.Err.Suggestion
			resp.ErrorKind = r.Err.Kind
			status = failureStatus(r.Err)
		}
	}
	resp.Status = h.checkouts.Status(sess.UserID, courseID)
	c.JSON(status, resp)
}

func (h *CheckoutHandler) beginFailed(c *gin.Context, sess *models.Session, courseID string, err error) {
	resp := checkoutResponse{Status: h.checkouts.Status(sess.UserID, courseID)}

	if perr, ok := payment.AsError(err); ok {
		resp.Message = perr.Message
		resp.ErrorKind = perr.Kind
		resp.Outcome = payment.OutcomeFailed
		c.JSON(failureStatus(perr), resp)
		return
	}

	switch {
	case errors.Is(err, payment.ErrCheckoutInProgress):
		resp.Message = "A payment for this course is already in progress."
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, payment.ErrAlreadyCompleted):
		resp.Message = "This course has already been paid for."
		resp.Location = learnPath(courseID)
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, payment.ErrNotReady):
		resp.Message = payment.MsgScriptFailed
		resp.ErrorKind = payment.KindScript
		c.JSON(http.StatusServiceUnavailable, resp)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.Logger(c).Info("client left before the checkout opened", "course_id", courseID)
		resp.Message = payment.MsgStartFailed
		c.JSON(http.StatusRequestTimeout, resp)
	default:
		h.LogError(c, err, "Checkout failed to start", "course_id", courseID)
		resp.Message = payment.MsgStartFailed
		c.JSON(http.StatusInternalServerError, resp)
	}
}

func (h *CheckoutHandler) relayFailed(c *gin.Context, sess *models.Session, courseID string, err error) {
	resp := checkoutResponse{Status: h.checkouts.Status(sess.UserID, courseID)}
	switch {
	case errors.Is(err, payment.ErrNoCheckout):
		resp.Message = "There is no open checkout for this course."
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, payment.ErrStaleCheckout):
		resp.Message = "This payment belongs to an earlier checkout."
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		resp.Message = "Still confirming your payment. This page will update shortly."
		c.JSON(http.StatusAccepted, resp)
	default:
		h.LogError(c, err, "Checkout relay failed", "course_id", courseID)
		resp.Message = payment.MsgVerifyFailed
		c.JSON(http.StatusInternalServerError, resp)
	}
}

func failureStatus(perr *payment.Error) int {
	switch perr.Kind {
	case payment.KindConfiguration:
		return http.StatusServiceUnavailable
	case payment.KindPrecondition:
		return http.StatusBadRequest
	case payment.KindScript:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func learnPath(courseID string) string {
	return "/courses/" + url.PathEscape(courseID) + "/learn"
}
