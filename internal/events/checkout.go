package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/payment"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	DefaultTopic = "course-portal.checkout"

	defaultQueueSize = 1024
)

// CheckoutEvent is the wire form of one checkout transition.
type CheckoutEvent struct {
	AttemptID string            `json:"attempt_id"`
	StudentID string            `json:"student_id"`
	CourseID  string            `json:"course_id"`
	From      payment.State     `json:"from"`
	To        payment.State     `json:"to"`
	ErrorKind payment.ErrorKind `json:"error_kind,omitempty"`
	Message   string            `json:"message,omitempty"`
	At        time.Time         `json:"at"`
}

func FromTransition(t payment.Transition) CheckoutEvent {
	return CheckoutEvent{
		AttemptID: t.AttemptID,
		StudentID: t.StudentID,
		CourseID:  t.CourseID,
		From:      t.From,
		To:        t.To,
		ErrorKind: t.Kind,
		Message:   t.Message,
		At:        t.At,
	}
}

// Publisher queues transitions and publishes them from Run, so observers never
// wait on the transport.
type Publisher struct {
	bus    *Bus
	queue  chan CheckoutEvent
	logger utils.Logger
}

func NewPublisher(bus *Bus, logger utils.Logger) *Publisher {
	return &Publisher{
		bus:    bus,
		queue:  make(chan CheckoutEvent, defaultQueueSize),
		logger: logger,
	}
}

// Observe is a payment.Observer. A full queue drops the event.
func (p *Publisher) Observe(t payment.Transition) {
	select {
	case p.queue <- FromTransition(t):
	default:
		p.logger.Warn("checkout event queue full, dropping event", "attempt_id", t.AttemptID, "to", t.To)
	}
}

// Run publishes queued events until ctx ends, then flushes what is left.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case ev := <-p.queue:
			p.publish(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-p.queue:
					p.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) publish(ev CheckoutEvent) {
	msg, err := encode(ev)
	if err != nil {
		p.logger.Error("failed to encode checkout event", "error", err)
		return
	}
	if err := p.bus.Publisher.Publish(p.bus.Topic, msg); err != nil {
		p.logger.Error("failed to publish checkout event", "error", err, "attempt_id", ev.AttemptID)
	}
}

func encode(ev CheckoutEvent) (*message.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("student_id", ev.StudentID)
	msg.Metadata.Set("state", string(ev.To))
	// Kafka partitions by key; one student's events stay ordered.
	msg.Metadata.Set("partition_key", ev.StudentID)
	return msg, nil
}

func decode(msg *message.Message) (CheckoutEvent, error) {
	var ev CheckoutEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal checkout event %s: %w", msg.UUID, err)
	}
	return ev, nil
}
