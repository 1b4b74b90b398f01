package payment

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/utils"
)

// Status is the pay-button view of one checkout.
type Status struct {
	State      State     `json:"state"`
	CanPay     bool      `json:"can_pay"`
	Configured bool      `json:"configured"`
	AttemptID  string    `json:"attempt_id,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	Suggestion string    `json:"suggestion,omitempty"`
	Retryable  bool      `json:"retryable,omitempty"`
}

// Opened is what Begin hands back to the page: either widget options to open, or
// the attempt's result when it ended before the widget opened.
type Opened struct {
	AttemptID string           `json:"attempt_id"`
	Options   *CheckoutOptions `json:"options,omitempty"`
	Result    *Result          `json:"-"`
	Resumed   bool             `json:"resumed,omitempty"`
}

type checkoutKey struct {
	studentID string
	courseID  string
}

type attemptHandle struct {
	id     string
	done   chan struct{}
	result Result
}

type checkout struct {
	orch   *Orchestrator
	bridge *Bridge

	// begin serialises attempt creation for the pair.
	begin sync.Mutex

	mu       sync.Mutex
	current  *attemptHandle
	lastUsed time.Time
}

func (c *checkout) touch() {
	c.mu.Lock()
	c.lastUsed = time.Now()
	c.mu.Unlock()
}

func (c *checkout) handle() *attemptHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Checkouts keeps one orchestrator per (student, course) pair.
type Checkouts struct {
	gateway   Gateway
	loader    *ScriptLoader
	settings  Settings
	timeout   time.Duration
	logger    utils.Logger
	observers []Observer

	mu      sync.Mutex
	entries map[checkoutKey]*checkout
}

func NewCheckouts(gateway Gateway, loader *ScriptLoader, settings Settings, checkoutTimeout time.Duration, logger utils.Logger, observers ...Observer) *Checkouts {
	return &Checkouts{
		gateway:   gateway,
		loader:    loader,
		settings:  settings,
		timeout:   checkoutTimeout,
		logger:    logger,
		observers: observers,
		entries:   make(map[checkoutKey]*checkout),
	}
}

// Settings returns the widget settings shared by every checkout.
func (x *Checkouts) Settings() Settings { return x.settings }

// ScriptURL is the checkout script the page should include.
func (x *Checkouts) ScriptURL() string { return x.loader.URL() }

func (x *Checkouts) entry(studentID, courseID string, create bool) *checkout {
	key := checkoutKey{studentID: studentID, courseID: courseID}

	x.mu.Lock()
	defer x.mu.Unlock()
	c, ok := x.entries[key]
	if !ok && create {
		bridge := NewBridge(x.loader)
		opts := make([]Option, 0, len(x.observers))
		for _, obs := range x.observers {
			opts = append(opts, WithObserver(obs))
		}
		c = &checkout{
			orch:   NewOrchestrator(bridge, x.gateway, x.settings, x.logger, opts...),
			bridge: bridge,
		}
		x.entries[key] = c
	}
	if c != nil {
		c.touch()
	}
	return c
}

// Prepare mounts the checkout for the pair and reports its status.
func (x *Checkouts) Prepare(ctx context.Context, studentID, courseID string) Status {
	if studentID == "" || courseID == "" {
		return x.Status(studentID, courseID)
	}
	c := x.entry(studentID, courseID, true)
	_ = c.orch.Mount(ctx)
	return statusOf(c.orch)
}

// Begin starts an attempt and waits until the widget should open or the attempt
// has already ended. A checkout that is already open is handed back again rather
// than creating a second order.
func (x *Checkouts) Begin(ctx context.Context, p Purchase) (*Opened, error) {
	if perr := NewOrchestrator(nil, nil, x.settings, x.logger).checkPreconditions(p); perr != nil {
		return nil, perr
	}

	c := x.entry(p.StudentID, p.CourseID, true)
	if err := c.orch.Mount(ctx); err != nil {
		return nil, err
	}

	c.begin.Lock()
	switch state := c.orch.State(); {
	case state == StateCheckoutOpen:
		if opts, ok := c.bridge.Current(); ok {
			c.begin.Unlock()
			return &Opened{AttemptID: c.orch.AttemptID(), Options: &opts, Resumed: true}, nil
		}
		c.begin.Unlock()
		return nil, ErrCheckoutInProgress
	case state.Busy():
		c.begin.Unlock()
		return nil, ErrCheckoutInProgress
	}

	c.bridge.Reset()
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), x.timeout)
	ch, err := c.orch.Start(attemptCtx, p)
	if err != nil {
		c.begin.Unlock()
		cancel()
		return nil, err
	}

	h := &attemptHandle{id: c.orch.AttemptID(), done: make(chan struct{})}
	c.mu.Lock()
	c.current = h
	c.mu.Unlock()
	c.begin.Unlock()

	go func() {
		defer cancel()
		h.result = <-ch
		close(h.done)
	}()

	select {
	case opts := <-c.bridge.Opened():
		return &Opened{AttemptID: h.id, Options: &opts}, nil
	case <-h.done:
		r := h.result
		return &Opened{AttemptID: h.id, Result: &r}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Complete relays the widget's completion and waits for verification.
func (x *Checkouts) Complete(ctx context.Context, studentID, courseID string, comp Completion) (Result, error) {
	c := x.entry(studentID, courseID, false)
	if c == nil {
		return Result{}, ErrNoCheckout
	}
	h := c.handle()
	if h == nil {
		return Result{}, ErrNoCheckout
	}
	if err := c.bridge.Resolve(comp); err != nil {
		return Result{}, err
	}
	return wait(ctx, h)
}

// Dismiss relays the widget's ondismiss callback.
func (x *Checkouts) Dismiss(ctx context.Context, studentID, courseID string) (Result, error) {
	c := x.entry(studentID, courseID, false)
	if c == nil {
		return Result{}, ErrNoCheckout
	}
	h := c.handle()
	if h == nil {
		return Result{}, ErrNoCheckout
	}
	if err := c.bridge.Dismiss(); err != nil {
		return Result{}, err
	}
	return wait(ctx, h)
}

// Status reports the checkout for the pair without creating it.
func (x *Checkouts) Status(studentID, courseID string) Status {
	c := x.entry(studentID, courseID, false)
	if c == nil {
		s := Status{State: StateIdle, Configured: strings.TrimSpace(x.settings.KeyID) != ""}
		if !s.Configured {
			s.ErrorKind = KindConfiguration
			s.Error = MsgMissingKey
		}
		return s
	}
	return statusOf(c.orch)
}

// Prune drops idle checkouts that have not been used for maxIdle.
func (x *Checkouts) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	x.mu.Lock()
	defer x.mu.Unlock()
	removed := 0
	for key, c := range x.entries {
		c.mu.Lock()
		idle := c.lastUsed.Before(cutoff)
		c.mu.Unlock()
		if !idle || c.orch.State().Busy() {
			continue
		}
		c.orch.Unmount()
		delete(x.entries, key)
		removed++
	}
	return removed
}

// Run prunes periodically until ctx ends.
func (x *Checkouts) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := x.Prune(maxIdle); n > 0 {
				x.logger.Debug("pruned idle checkouts", "count", n)
			}
		}
	}
}

func (x *Checkouts) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}

func wait(ctx context.Context, h *attemptHandle) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func statusOf(o *Orchestrator) Status {
	s := Status{
		State:      o.State(),
		CanPay:     o.CanPay(),
		Configured: o.Configured(),
		AttemptID:  o.AttemptID(),
	}
	if perr := o.LastError(); perr != nil {
		s.ErrorKind = perr.Kind
		s.Error = perr.Message
		s.Suggestion = perr.Suggestion
		s.Retryable = perr.Retryable
	}
	if !s.Configured && s.Error == "" {
		s.ErrorKind = KindConfiguration
		s.Error = MsgMissingKey
	}
	return s
}
