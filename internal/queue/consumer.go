package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type MessageHandler func(ctx context.Context, msg jetstream.Msg) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeDetections starts consuming detection frames from the DETECTIONS
// stream. Messages are handled one at a time in stream order, with at most
// one unacknowledged frame in flight.
func (c *Consumer) ConsumeDetections(ctx context.Context, consumerName string, handler MessageHandler) error {
	stream, err := c.js.Stream(ctx, DetectionsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", DetectionsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
		MaxAckPending: 1,
		FilterSubject: DetectionsSubjectBase + ".>",
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go fetchLoop(ctx, cons, 1, handler, "detections")

	slog.Info("detection consumer started", "consumer", consumerName)
	return nil
}

// ConsumeCrossings starts consuming crossing events (for the API to store
// and broadcast via WebSocket).
func (c *Consumer) ConsumeCrossings(ctx context.Context, consumerName string, handler MessageHandler) error {
	stream, err := c.js.Stream(ctx, CrossingsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", CrossingsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: CrossingsSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go fetchLoop(ctx, cons, 10, handler, "crossings")

	slog.Info("crossing consumer started", "consumer", consumerName)
	return nil
}

func fetchLoop(ctx context.Context, cons jetstream.Consumer, batchSize int, handler MessageHandler, name string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := cons.Fetch(batchSize, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("fetch error", "consumer", name, "error", err)
			time.Sleep(time.Second)
			continue
		}

		for msg := range batch.Messages() {
			if err := handler(ctx, msg); err != nil {
				slog.Error("process message error", "consumer", name, "error", err, "subject", msg.Subject())
				_ = msg.Nak()
			} else {
				_ = msg.Ack()
			}
		}
	}
}

// SubscribeSnapshots delivers live track snapshots of every session.
func (c *Consumer) SubscribeSnapshots(handler func(subject string, data []byte)) (*nats.Subscription, error) {
	sub, err := c.nc.Subscribe(SnapshotsSubjectBase+".>", func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe snapshots: %w", err)
	}
	return sub, nil
}

// SubscribeControl delivers session control commands.
func (c *Consumer) SubscribeControl(handler func(data []byte)) (*nats.Subscription, error) {
	sub, err := c.nc.Subscribe(ControlSubject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe control: %w", err)
	}
	return sub, nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
