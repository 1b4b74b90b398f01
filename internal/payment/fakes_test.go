package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/utils"
)

type fakeWidget struct {
	loaded    atomic.Bool
	loadErr   error
	loadCalls atomic.Int32
	opens     chan CheckoutOptions
	replies   chan widgetReply
}

type widgetReply struct {
	completion Completion
	err        error
}

func newFakeWidget(loaded bool) *fakeWidget {
	w := &fakeWidget{
		opens:   make(chan CheckoutOptions, 4),
		replies: make(chan widgetReply, 4),
	}
	w.loaded.Store(loaded)
	return w
}

func (w *fakeWidget) Loaded() bool { return w.loaded.Load() }

func (w *fakeWidget) Load(context.Context) error {
	w.loadCalls.Add(1)
	if w.loadErr != nil {
		return w.loadErr
	}
	w.loaded.Store(true)
	return nil
}

func (w *fakeWidget) Open(ctx context.Context, opts CheckoutOptions) (Completion, error) {
	w.opens <- opts
	select {
	case r := <-w.replies:
		return r.completion, r.err
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}

func (w *fakeWidget) complete(c Completion) { w.replies <- widgetReply{completion: c} }
func (w *fakeWidget) dismiss()              { w.replies <- widgetReply{err: ErrDismissed} }

type fakeGateway struct {
	mu          sync.Mutex
	createCalls int
	verifyCalls int
	verified    []models.PaymentVerification

	createFn func(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error)
	verifyFn func(ctx context.Context, req models.PaymentVerification) (*models.VerifyPaymentResponse, error)
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	g.mu.Lock()
	g.createCalls++
	fn := g.createFn
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return &models.CreateOrderResponse{Success: true, OrderID: "order_1", CourseName: "Go", CoursePrice: "499"}, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, req models.PaymentVerification) (*models.VerifyPaymentResponse, error) {
	g.mu.Lock()
	g.verifyCalls++
	g.verified = append(g.verified, req)
	fn := g.verifyFn
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return &models.VerifyPaymentResponse{Success: true}, nil
}

func (g *fakeGateway) counts() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createCalls, g.verifyCalls
}

// backendErr mimics the transport error carrying server text.
type backendErr struct {
	msg        string
	suggestion string
}

func (e *backendErr) Error() string          { return "backend: " + e.msg }
func (e *backendErr) UserMessage() string    { return e.msg }
func (e *backendErr) SuggestionText() string { return e.suggestion }

var errNetwork = errors.New("connection reset by peer")

type recorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *recorder) observe(t Transition) {
	r.mu.Lock()
	r.transitions = append(r.transitions, t)
	r.mu.Unlock()
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.transitions))
	for _, t := range r.transitions {
		out = append(out, t.To)
	}
	return out
}

var testSettings = Settings{
	KeyID:        "rzp_test_key",
	Currency:     "INR",
	MerchantName: "Course Portal",
	ThemeColor:   "#3399cc",
	CallTimeout:  time.Second,
}

var testPurchase = Purchase{
	CourseID:    "c1",
	CourseTitle: "Go",
	StudentID:   "s1",
	Prefill:     Prefill{Name: "Asha", Email: "asha@example.com"},
}

func newTestOrchestrator(t *testing.T, w Widget, g Gateway, s Settings) (*Orchestrator, *recorder) {
	t.Helper()
	rec := &recorder{}
	o := NewOrchestrator(w, g, s, utils.NewDiscardLogger(), WithObserver(rec.observe))
	return o, rec
}

func waitOpen(t *testing.T, w *fakeWidget) CheckoutOptions {
	t.Helper()
	select {
	case opts := <-w.opens:
		return opts
	case <-time.After(2 * time.Second):
		t.Fatal("widget was not opened")
		return CheckoutOptions{}
	}
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("attempt did not resolve")
		return Result{}
	}
}
