package payment

import (
	"context"
	"sync"
)

type bridgeReply struct {
	completion Completion
	dismissed  bool
}

// Bridge is the Widget used when the checkout UI runs in the user's browser.
// Open publishes the options for the page to pick up and blocks until the page
// relays the widget's handler (Resolve) or ondismiss (Dismiss) callback.
type Bridge struct {
	loader *ScriptLoader
	opened chan CheckoutOptions

	mu      sync.Mutex
	current *CheckoutOptions
	reply   chan bridgeReply
}

func NewBridge(loader *ScriptLoader) *Bridge {
	return &Bridge{
		loader: loader,
		opened: make(chan CheckoutOptions, 1),
	}
}

func (b *Bridge) Loaded() bool { return b.loader.Loaded() }

func (b *Bridge) Load(ctx context.Context) error { return b.loader.Load(ctx) }

func (b *Bridge) Open(ctx context.Context, opts CheckoutOptions) (Completion, error) {
	reply := make(chan bridgeReply, 1)

	b.mu.Lock()
	b.current = &opts
	b.reply = reply
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.reply == reply {
			b.current = nil
			b.reply = nil
		}
		b.mu.Unlock()
	}()

	b.drain()
	select {
	case b.opened <- opts:
	default:
	}

	select {
	case r := <-reply:
		if r.dismissed {
			return Completion{}, ErrDismissed
		}
		return r.completion, nil
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}

// Opened yields the options of each checkout as it opens.
func (b *Bridge) Opened() <-chan CheckoutOptions { return b.opened }

// Current returns the options of the open checkout, if any.
func (b *Bridge) Current() (CheckoutOptions, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return CheckoutOptions{}, false
	}
	return *b.current, true
}

// Resolve relays the widget's completion for the open order. The fields are
// passed on exactly as received.
func (b *Bridge) Resolve(c Completion) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reply == nil {
		return ErrNoCheckout
	}
	if c.OrderID != b.current.OrderID {
		return ErrStaleCheckout
	}
	b.reply <- bridgeReply{completion: c}
	b.current = nil
	b.reply = nil
	return nil
}

// Dismiss relays the widget's ondismiss callback.
func (b *Bridge) Dismiss() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reply == nil {
		return ErrNoCheckout
	}
	b.reply <- bridgeReply{dismissed: true}
	b.current = nil
	b.reply = nil
	return nil
}

// Reset discards options published for a previous attempt.
func (b *Bridge) Reset() {
	b.drain()
}

func (b *Bridge) drain() {
	for {
		select {
		case <-b.opened:
		default:
			return
		}
	}
}
