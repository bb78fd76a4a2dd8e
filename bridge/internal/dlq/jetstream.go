package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/relay-stack/common/messaging"
	"github.com/telhawk-systems/relay-stack/common/messaging/nats"
)

// JetStreamQueue publishes failed deliveries to the RELAY_DLQ stream on
// relay.dlq.<reason>. Safe for use by several bridge replicas.
// All methods are safe on a nil *JetStreamQueue.
type JetStreamQueue struct {
	js      *nats.JetStreamClient
	stream  jetstream.Stream
	logger  *slog.Logger
	written atomic.Uint64
}

// NewJetStreamQueue ensures the stream exists.
func NewJetStreamQueue(ctx context.Context, js *nats.JetStreamClient, logger *slog.Logger) (*JetStreamQueue, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	stream, err := js.CreateOrUpdateStream(ctx, nats.RelayDLQStream)
	if err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}
	logger.Info("DLQ stream ready", slog.String("stream", nats.RelayDLQStream.Name))

	return &JetStreamQueue{js: js, stream: stream, logger: logger}, nil
}

// Write publishes failed and waits for the stream acknowledgment.
func (q *JetStreamQueue) Write(ctx context.Context, failed FailedEvent) error {
	if q == nil {
		return nil
	}

	data, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	msg := &messaging.Message{
		Subject: messaging.DLQSubject(failed.Reason),
		Data:    data,
		Metadata: map[string]string{
			"Relay-Job-Id":   failed.JobID,
			"Relay-Event-Id": failed.Event.ID,
			"Relay-Attempts": strconv.Itoa(failed.Attempts),
		},
	}
	if _, err := q.js.PublishMsgSync(ctx, msg); err != nil {
		return fmt.Errorf("publish dlq entry: %w", err)
	}

	q.written.Add(1)
	return nil
}

// List reads up to limit entries from the start of the stream with an
// ephemeral consumer; entries stay in the stream.
func (q *JetStreamQueue) List(ctx context.Context, limit int) ([]FailedEvent, error) {
	if q == nil {
		return nil, ErrNotEnabled
	}
	if limit <= 0 {
		limit = 100
	}

	consumer, err := q.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{messaging.SubjectRelayDLQAll},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create list consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch dlq entries: %w", err)
	}

	var events []FailedEvent
	for msg := range batch.Messages() {
		var failed FailedEvent
		if err := json.Unmarshal(msg.Data(), &failed); err != nil {
			q.logger.Warn("skipping unreadable DLQ entry", slog.String("subject", msg.Subject()), slog.String("error", err.Error()))
			continue
		}
		events = append(events, failed)
	}
	if err := batch.Error(); err != nil {
		q.logger.Debug("DLQ fetch ended early", slog.String("error", err.Error()))
	}
	return events, nil
}

// Purge removes every entry from the stream.
func (q *JetStreamQueue) Purge(ctx context.Context) error {
	if q == nil {
		return ErrNotEnabled
	}
	if err := q.stream.Purge(ctx); err != nil {
		return fmt.Errorf("purge dlq stream: %w", err)
	}
	return nil
}

func (q *JetStreamQueue) Stats(ctx context.Context) map[string]any {
	if q == nil {
		return map[string]any{"enabled": false, "backend": "jetstream"}
	}

	stats := map[string]any{
		"enabled":       true,
		"backend":       "jetstream",
		"written_local": q.written.Load(),
	}
	info, err := q.stream.Info(ctx)
	if err != nil {
		stats["error"] = err.Error()
		return stats
	}
	stats["total_messages"] = info.State.Msgs
	stats["total_bytes"] = info.State.Bytes
	return stats
}
