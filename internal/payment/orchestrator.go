// Package payment drives the enroll-and-pay flow: create an order on the backend,
// open the checkout widget, relay the widget's signed completion to the backend for
// verification, and resolve to a single Result.
//
// One Orchestrator serves one (student, course) pair and allows one attempt in
// flight at a time.
package payment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/google/uuid"
)

const defaultCallTimeout = 15 * time.Second

type Settings struct {
	KeyID        string
	Currency     string
	MerchantName string
	ThemeColor   string
	CallTimeout  time.Duration
}

type Option func(*Orchestrator)

// WithObserver registers an observer for every transition.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

type Orchestrator struct {
	widget    Widget
	gateway   Gateway
	settings  Settings
	logger    utils.Logger
	observers []Observer
	now       func() time.Time

	mu         sync.Mutex
	state      State
	lastErr    *Error
	attemptID  string
	purchase   Purchase
	generation uint64
	cancel     context.CancelFunc
}

func NewOrchestrator(widget Widget, gateway Gateway, settings Settings, logger utils.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		widget:   widget,
		gateway:  gateway,
		settings: settings,
		logger:   logger,
		now:      time.Now,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Mount loads the checkout script, or goes straight to READY when it is already
// present. It also retries a failed script load.
func (o *Orchestrator) Mount(ctx context.Context) error {
	o.mu.Lock()
	switch {
	case o.state == StateIdle:
	case o.state == StateFailed && o.lastErr != nil && o.lastErr.Kind == KindScript && !o.widget.Loaded():
	case o.state == StateFailed && o.lastErr != nil && o.lastErr.Kind == KindScript:
		t, ok := o.setLocked(StateReady, nil)
		o.lastErr = nil
		o.mu.Unlock()
		o.emitIf(t, ok)
		return nil
	default:
		o.mu.Unlock()
		return nil
	}

	if o.widget.Loaded() {
		t, ok := o.setLocked(StateReady, nil)
		o.mu.Unlock()
		o.emitIf(t, ok)
		return nil
	}

	gen := o.generation
	t, ok := o.setLocked(StateScriptLoading, nil)
	o.mu.Unlock()
	o.emitIf(t, ok)

	_, err := call(ctx, o.callTimeout(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.widget.Load(ctx)
	})

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return nil
	}
	if err != nil {
		perr := &Error{Kind: KindScript, Message: MsgScriptFailed, Retryable: true, Err: err}
		o.lastErr = perr
		t, ok = o.setLocked(StateFailed, perr)
		o.mu.Unlock()
		o.emitIf(t, ok)
		utils.FromContext(ctx, o.logger).Warn("checkout script failed to load", "error", err)
		return perr
	}
	o.lastErr = nil
	t, ok = o.setLocked(StateReady, nil)
	o.mu.Unlock()
	o.emitIf(t, ok)
	return nil
}

// Start begins an attempt. The in-flight slot is taken before Start returns, so
// a second call fails with ErrCheckoutInProgress until the returned channel
// yields. ctx bounds the whole attempt, including the time the widget is open.
func (o *Orchestrator) Start(ctx context.Context, p Purchase) (<-chan Result, error) {
	if perr := o.checkPreconditions(p); perr != nil {
		o.mu.Lock()
		if !o.state.Busy() {
			o.lastErr = perr
		}
		o.mu.Unlock()
		return nil, perr
	}

	o.mu.Lock()
	switch o.state {
	case StateOrderCreating, StateCheckoutOpen, StateVerifying:
		o.mu.Unlock()
		return nil, ErrCheckoutInProgress
	case StateSuccess:
		o.mu.Unlock()
		return nil, ErrAlreadyCompleted
	case StateIdle, StateScriptLoading:
		o.mu.Unlock()
		return nil, ErrNotReady
	case StateFailed:
		if o.lastErr != nil && o.lastErr.Kind == KindScript && !o.widget.Loaded() {
			o.mu.Unlock()
			return nil, ErrNotReady
		}
	}

	var pending []Transition
	reload := false
	if o.state == StateFailed {
		if o.widget.Loaded() {
			if t, ok := o.setLocked(StateReady, nil); ok {
				pending = append(pending, t)
			}
		} else {
			reload = true
		}
	}

	o.generation++
	gen := o.generation
	o.attemptID = uuid.NewString()
	o.purchase = p
	o.lastErr = nil
	attemptCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	next := StateOrderCreating
	if reload {
		next = StateScriptLoading
	}
	if t, ok := o.setLocked(next, nil); ok {
		pending = append(pending, t)
	}
	attemptID := o.attemptID
	o.mu.Unlock()

	for _, t := range pending {
		o.emit(t)
	}
	utils.FromContext(ctx, o.logger).Info("checkout attempt started",
		"attempt_id", attemptID,
		"course_id", p.CourseID,
		"student_id", p.StudentID)

	ch := make(chan Result, 1)
	go func() {
		defer cancel()
		ch <- o.attempt(attemptCtx, gen, attemptID, p, reload)
		close(ch)
	}()
	return ch, nil
}

// Pay runs one attempt to completion. The error is non-nil only when the attempt
// could not start.
func (o *Orchestrator) Pay(ctx context.Context, p Purchase) (Result, error) {
	ch, err := o.Start(ctx, p)
	if err != nil {
		return Result{}, err
	}
	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Unmount abandons any attempt in flight. Its later results never touch this
// orchestrator's state.
func (o *Orchestrator) Unmount() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generation++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.state = StateIdle
	o.lastErr = nil
	o.attemptID = ""
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastError is the error to show next to the pay trigger, or nil.
func (o *Orchestrator) LastError() *Error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

func (o *Orchestrator) AttemptID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attemptID
}

// CanPay reports whether the pay trigger should be enabled.
func (o *Orchestrator) CanPay() bool {
	if strings.TrimSpace(o.settings.KeyID) == "" {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case StateReady, StateCancelled:
		return true
	case StateFailed:
		if o.lastErr == nil {
			return true
		}
		return o.lastErr.Retryable && (o.lastErr.Kind != KindScript || o.widget.Loaded())
	}
	return false
}

// Configured reports whether the widget key is present.
func (o *Orchestrator) Configured() bool {
	return strings.TrimSpace(o.settings.KeyID) != ""
}

func (o *Orchestrator) checkPreconditions(p Purchase) *Error {
	if strings.TrimSpace(p.CourseID) == "" {
		return preconditionError(MsgMissingCourse)
	}
	if strings.TrimSpace(p.StudentID) == "" {
		return preconditionError(MsgMissingStudent)
	}
	if !o.Configured() {
		return configurationError(MsgMissingKey)
	}
	return nil
}

func (o *Orchestrator) attempt(ctx context.Context, gen uint64, id string, p Purchase, reload bool) Result {
	if reload {
		_, err := call(ctx, o.callTimeout(), func(ctx context.Context) (struct{}, error) {
			return struct{}{}, o.widget.Load(ctx)
		})
		if err != nil {
			return o.fail(ctx, gen, id, &Error{Kind: KindScript, Message: MsgScriptFailed, Retryable: true, Err: err})
		}
		if !o.advance(gen, StateReady) || !o.advance(gen, StateOrderCreating) {
			return Result{AttemptID: id, Outcome: OutcomeCancelled}
		}
	}

	orderReq := models.CreateOrderRequest{CourseID: p.CourseID, StudentID: p.StudentID}
	resp, err := call(ctx, o.callTimeout(), func(ctx context.Context) (*models.CreateOrderResponse, error) {
		return o.gateway.CreateOrder(ctx, orderReq)
	})
	if err != nil {
		return o.fail(ctx, gen, id, backendError(err, MsgStartFailed))
	}
	if resp == nil || resp.OrderID == "" {
		return o.fail(ctx, gen, id, backendError(errors.New("create-order returned no order id"), MsgStartFailed))
	}
	if resp.CoursePrice.String() == "" {
		return o.fail(ctx, gen, id, backendError(errors.New("create-order returned no course price"), MsgStartFailed))
	}
	amount, err := models.ToMinorUnits(resp.CoursePrice)
	if err != nil {
		return o.fail(ctx, gen, id, backendError(err, MsgStartFailed))
	}

	order := &models.PaymentOrder{
		OrderID:    resp.OrderID,
		CourseID:   p.CourseID,
		StudentID:  p.StudentID,
		CourseName: firstNonEmpty(resp.CourseName, p.CourseTitle),
		Amount:     amount,
		Currency:   firstNonEmpty(resp.Currency, o.settings.Currency),
	}

	if !o.advance(gen, StateCheckoutOpen) {
		return Result{AttemptID: id, Outcome: OutcomeCancelled, Order: order}
	}

	opts := o.options(order, p)
	completion, err := call(ctx, 0, func(ctx context.Context) (Completion, error) {
		return o.widget.Open(ctx, opts)
	})
	switch {
	case errors.Is(err, ErrDismissed):
		o.dismissed(gen)
		return Result{AttemptID: id, Outcome: OutcomeCancelled, Order: order}
	case errors.Is(err, context.DeadlineExceeded):
		return o.fail(ctx, gen, id, &Error{Kind: KindBackend, Message: MsgCheckoutExpired, Retryable: true, Err: err})
	case err != nil:
		return o.fail(ctx, gen, id, &Error{Kind: KindScript, Message: MsgCheckoutInterrupt, Retryable: true, Err: err})
	}

	if !o.advance(gen, StateVerifying) {
		return Result{AttemptID: id, Outcome: OutcomeCancelled, Order: order}
	}

	verification := models.PaymentVerification{
		OrderID:   completion.OrderID,
		PaymentID: completion.PaymentID,
		Signature: completion.Signature,
		CourseID:  p.CourseID,
		StudentID: p.StudentID,
	}
	vresp, err := call(ctx, o.callTimeout(), func(ctx context.Context) (*models.VerifyPaymentResponse, error) {
		return o.gateway.VerifyPayment(ctx, verification)
	})
	if err != nil {
		return o.fail(ctx, gen, id, backendError(err, MsgVerifyFailed))
	}
	if vresp == nil || !vresp.Success {
		perr := &Error{Kind: KindBackend, Message: MsgVerifyFailed, Retryable: true}
		if vresp != nil && vresp.Message != "" {
			perr.Message = vresp.Message
		}
		return o.fail(ctx, gen, id, perr)
	}

	if !o.advance(gen, StateSuccess) {
		return Result{AttemptID: id, Outcome: OutcomeCancelled, Order: order}
	}
	utils.FromContext(ctx, o.logger).Info("checkout attempt succeeded",
		"attempt_id", id,
		"order_id", order.OrderID,
		"amount", order.Amount)
	return Result{AttemptID: id, Outcome: OutcomeSuccess, Order: order, Enrollment: vresp.Enrollment}
}

func (o *Orchestrator) options(order *models.PaymentOrder, p Purchase) CheckoutOptions {
	return CheckoutOptions{
		Key:         o.settings.KeyID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Name:        o.settings.MerchantName,
		Description: "Enrollment: " + order.CourseName,
		OrderID:     order.OrderID,
		Prefill:     p.Prefill,
		Theme:       Theme{Color: o.settings.ThemeColor},
	}
}

// advance moves the current attempt to next. It returns false if the attempt
// has been superseded.
func (o *Orchestrator) advance(gen uint64, next State) bool {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return false
	}
	t, ok := o.setLocked(next, nil)
	o.mu.Unlock()
	o.emitIf(t, ok)
	return ok
}

func (o *Orchestrator) fail(ctx context.Context, gen uint64, id string, perr *Error) Result {
	o.mu.Lock()
	if gen == o.generation {
		o.lastErr = perr
		t, ok := o.setLocked(StateFailed, perr)
		o.mu.Unlock()
		o.emitIf(t, ok)
	} else {
		o.mu.Unlock()
	}
	utils.FromContext(ctx, o.logger).Warn("checkout attempt failed",
		"attempt_id", id,
		"kind", perr.Kind,
		"message", perr.Message,
		"error", perr.Err)
	return Result{AttemptID: id, Outcome: OutcomeFailed, Err: perr}
}

func (o *Orchestrator) dismissed(gen uint64) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	o.lastErr = nil
	t1, ok1 := o.setLocked(StateCancelled, nil)
	t2, ok2 := o.setLocked(StateReady, nil)
	o.mu.Unlock()
	o.emitIf(t1, ok1)
	o.emitIf(t2, ok2)
}

func (o *Orchestrator) setLocked(next State, perr *Error) (Transition, bool) {
	from := o.state
	if !CanTransition(from, next) {
		o.logger.Error("invalid checkout transition", "from", from, "to", next)
		return Transition{}, false
	}
	o.state = next
	t := Transition{
		AttemptID: o.attemptID,
		CourseID:  o.purchase.CourseID,
		StudentID: o.purchase.StudentID,
		From:      from,
		To:        next,
		At:        o.now(),
	}
	if perr != nil {
		t.Kind = perr.Kind
		t.Message = perr.Message
	}
	return t, true
}

func (o *Orchestrator) emitIf(t Transition, ok bool) {
	if ok {
		o.emit(t)
	}
}

func (o *Orchestrator) emit(t Transition) {
	o.logger.Debug("checkout transition", "attempt_id", t.AttemptID, "from", t.From, "to", t.To)
	for _, obs := range o.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("checkout observer panicked", "error", utils.PanicError(r))
				}
			}()
			obs(t)
		}()
	}
}

func (o *Orchestrator) callTimeout() time.Duration {
	if o.settings.CallTimeout > 0 {
		return o.settings.CallTimeout
	}
	return defaultCallTimeout
}

// call runs fn with an optional timeout and converts a panic into an error. It
// returns as soon as ctx ends even if fn ignores cancellation.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: utils.PanicError(r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
