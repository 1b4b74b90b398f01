// Package events carries checkout transitions over a watermill bus so every portal
// instance can push them to the student's open pages.
package events

import (
	"fmt"

	"github.com/SAP-F-2025/course-portal/internal/config"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bus is a publisher/subscriber pair on one topic.
type Bus struct {
	Topic      string
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Transport  string
	logger     watermill.LoggerAdapter
}

// NewBus uses Kafka when brokers are configured and an in-process channel
// otherwise. instanceID makes the Kafka consumer group unique per instance so
// every instance sees every event.
func NewBus(cfg config.KafkaConfig, instanceID string, logger utils.Logger) (*Bus, error) {
	wlog := watermill.NewSlogLogger(logger.Slog())
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	if len(cfg.Brokers) == 0 {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wlog)
		return &Bus{Topic: topic, Publisher: ch, Subscriber: ch, Transport: "gochannel", logger: wlog}, nil
	}

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers: cfg.Brokers,
		Marshaler: kafka.NewWithPartitioningMarshaler(func(_ string, msg *message.Message) (string, error) {
			return msg.Metadata.Get("partition_key"), nil
		}),
	}, wlog)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	group := cfg.ConsumerGroup
	if instanceID != "" {
		group = group + "-" + instanceID
	}
	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               cfg.Brokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: kafka.DefaultSaramaSubscriberConfig(),
		ConsumerGroup:         group,
	}, wlog)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}

	return &Bus{Topic: topic, Publisher: pub, Subscriber: sub, Transport: "kafka", logger: wlog}, nil
}

// Close closes both sides of the bus.
func (b *Bus) Close() error {
	perr := b.Publisher.Close()
	if gc, ok := b.Subscriber.(*gochannel.GoChannel); ok && gc == b.Publisher {
		return perr
	}
	serr := b.Subscriber.Close()
	if perr != nil {
		return perr
	}
	return serr
}
