package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// TaskHandler processes one interpolation task. Returning an error
// causes the message to be redelivered.
type TaskHandler func(ctx context.Context, task InterpolationTask) error

// EventHandler receives project change events.
type EventHandler func(event ProjectEvent)

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Consumer{nc: nc, js: js}, nil
}

// RunInterpolationWorkers pulls interpolation tasks and dispatches
// them to `workers` goroutines. Blocks until ctx is cancelled.
func (c *Consumer) RunInterpolationWorkers(ctx context.Context, workers int, handler TaskHandler) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, InterpolateStreamName, jetstream.ConsumerConfig{
		Durable:       "interpolation-workers",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       5 * time.Minute,
		MaxDeliver:    3,
		FilterSubject: InterpolateSubjectBase + ".>",
	})
	if err != nil {
		return fmt.Errorf("create interpolation consumer: %w", err)
	}

	msgs := make(chan jetstream.Msg)
	for i := 0; i < workers; i++ {
		go func(id int) {
			for msg := range msgs {
				c.handleTask(ctx, id, msg, handler)
			}
		}(i)
	}
	defer close(msgs)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		batch, err := cons.Fetch(workers, jetstream.FetchMaxWait(2*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("fetch interpolation tasks", "error", err)
			time.Sleep(time.Second)
			continue
		}
		for msg := range batch.Messages() {
			select {
			case msgs <- msg:
			case <-ctx.Done():
				_ = msg.Nak()
				return nil
			}
		}
	}
}

func (c *Consumer) handleTask(ctx context.Context, worker int, msg jetstream.Msg, handler TaskHandler) {
	var task InterpolationTask
	if err := json.Unmarshal(msg.Data(), &task); err != nil {
		slog.Error("decode interpolation task, dropping", "worker", worker, "error", err)
		_ = msg.Ack()
		return
	}

	slog.Info("interpolation task received",
		"worker", worker, "project_id", task.ProjectID, "video_id", task.VideoID)

	if err := handler(ctx, task); err != nil {
		slog.Error("interpolation task failed",
			"worker", worker, "project_id", task.ProjectID, "video_id", task.VideoID, "error", err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// SubscribeEvents delivers project events to the handler. Each
// subscriber gets its own ephemeral consumer so every API instance
// sees every event. Blocks until ctx is cancelled.
func (c *Consumer) SubscribeEvents(ctx context.Context, handler EventHandler) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, EventsStreamName, jetstream.ConsumerConfig{
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		FilterSubject: EventsSubjectBase + ".>",
	})
	if err != nil {
		return fmt.Errorf("create events consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		var event ProjectEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			slog.Error("decode project event", "error", err)
			return
		}
		handler(event)
	})
	if err != nil {
		return fmt.Errorf("consume events: %w", err)
	}
	defer cc.Stop()

	<-ctx.Done()
	return nil
}

func (c *Consumer) Ping() error {
	if !c.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
