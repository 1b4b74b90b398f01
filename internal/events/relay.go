package events

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Handler consumes one decoded checkout event.
type Handler func(ctx context.Context, ev CheckoutEvent)

// Relay subscribes to the checkout topic and fans each event out to handlers.
type Relay struct {
	router *message.Router
	logger utils.Logger
}

func NewRelay(bus *Bus, logger utils.Logger, handlers ...Handler) (*Relay, error) {
	router, err := message.NewRouter(message.RouterConfig{}, bus.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}

	router.AddNoPublisherHandler("checkout-relay", bus.Topic, bus.Subscriber, func(msg *message.Message) error {
		ev, err := decode(msg)
		if err != nil {
			// A malformed event is dropped rather than redelivered forever.
			logger.Error("dropping checkout event", "error", err)
			return nil
		}
		for _, h := range handlers {
			h(msg.Context(), ev)
		}
		return nil
	})

	return &Relay{router: router, logger: logger}, nil
}

// Run blocks until ctx ends or the router stops.
func (r *Relay) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once the relay is subscribed.
func (r *Relay) Running() chan struct{} {
	return r.router.Running()
}

func (r *Relay) Close() error {
	return r.router.Close()
}
