package notifyqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"alertflow/internal/config"
)

const notifyStreamMaxAge = 24 * time.Hour

// NATSProducer publishes notification jobs into a JetStream stream.
// Params: NATS connection and publish subject settings.
// Returns: queue producer implementation.
type NATSProducer struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
}

// NewNATSProducer creates a JetStream producer for the notify queue.
// Params: queue config from notify section.
// Returns: initialized producer or setup error.
func NewNATSProducer(cfg config.NotifyQueue) (*NATSProducer, error) {
	nc, js, err := openQueueJetStream(cfg)
	if err != nil {
		return nil, err
	}
	return &NATSProducer{nc: nc, js: js, subject: cfg.Subject}, nil
}

// Enqueue publishes one delivery job into the queue stream.
// Params: context and queue job payload.
// Returns: publish error.
func (p *NATSProducer) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal notify queue job: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = body
	if strings.TrimSpace(job.ID) != "" {
		msg.Header.Set("Nats-Msg-Id", strings.TrimSpace(job.ID))
	}
	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish notify queue job: %w", err)
	}
	return nil
}

// Close closes the producer NATS connection.
// Params: none.
// Returns: nil after connection close.
func (p *NATSProducer) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	p.nc.Close()
	return nil
}

// NATSWorker consumes notification queue jobs via a queue group consumer.
// Params: NATS connection and queue subscriptions.
// Returns: worker lifecycle handle.
type NATSWorker struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	subs   []*nats.Subscription
	dlqKV  nats.KeyValue
	logger *slog.Logger
}

// NewNATSWorker starts queue consumers for notification delivery jobs.
// Params: queue config, logger, and per-job handler callback.
// Returns: running worker or setup error.
func NewNATSWorker(cfg config.NotifyQueue, logger *slog.Logger, handler func(ctx context.Context, job Job) error) (*NATSWorker, error) {
	nc, js, err := openQueueJetStream(cfg)
	if err != nil {
		return nil, err
	}

	worker := &NATSWorker{nc: nc, js: js, logger: logger}
	if strings.TrimSpace(cfg.DLQBucket) != "" {
		dlqKV, err := js.KeyValue(cfg.DLQBucket)
		if err != nil {
			dlqKV, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: cfg.DLQBucket})
			if err != nil {
				nc.Close()
				return nil, fmt.Errorf("dlq bucket %q: %w", cfg.DLQBucket, err)
			}
		}
		worker.dlqKV = dlqKV
	}

	ackWait := time.Duration(cfg.AckWaitSec) * time.Second
	nackDelay := time.Duration(cfg.NackDelayMS) * time.Millisecond
	callback := func(message *nats.Msg) {
		worker.handleMessage(message, cfg.MaxDeliver, nackDelay, handler)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		subOpts := []nats.SubOpt{
			nats.BindStream(cfg.Stream),
			nats.Durable(cfg.ConsumerName),
			nats.ManualAck(),
			nats.AckExplicit(),
			nats.AckWait(ackWait),
			nats.MaxDeliver(cfg.MaxDeliver),
			nats.DeliverAll(),
		}
		sub, err := js.QueueSubscribe(cfg.Subject, cfg.ConsumerName, callback, subOpts...)
		if err != nil {
			_ = worker.Close()
			return nil, fmt.Errorf("queue subscribe notify %q/%q: %w", cfg.Subject, cfg.ConsumerName, err)
		}
		worker.subs = append(worker.subs, sub)
	}
	return worker, nil
}

// handleMessage decodes and processes one queued job.
// Params: delivered message, redelivery limits, and handler callback.
// Returns: ack/nack side effects on the message.
func (w *NATSWorker) handleMessage(message *nats.Msg, maxDeliver int, nackDelay time.Duration, handler func(ctx context.Context, job Job) error) {
	if message == nil {
		return
	}
	var job Job
	if err := json.Unmarshal(message.Data, &job); err != nil {
		if w.logger != nil {
			w.logger.Warn("notify queue decode failed", "subject", message.Subject, "error", err.Error())
		}
		_ = message.Ack()
		return
	}
	if handler == nil {
		_ = message.Ack()
		return
	}

	err := handler(context.Background(), job)
	if err == nil {
		_ = message.Ack()
		return
	}
	if w.logger != nil {
		w.logger.Error("notify queue handle failed", "job_id", job.ID, "channel", job.Channel, "error", err.Error())
	}

	attempts := deliveryAttempts(message)
	reason := DLQReason("")
	if IsPermanent(err) {
		reason = DLQReasonPermanentError
	} else if maxDeliver > 0 && attempts >= uint64(maxDeliver) {
		reason = DLQReasonMaxDeliverExceeded
	}
	if reason != "" {
		if dlqErr := w.storeDLQ(message, job, reason, err, attempts, maxDeliver); dlqErr != nil {
			if w.logger != nil {
				w.logger.Error("notify queue dlq store failed", "job_id", job.ID, "channel", job.Channel, "reason", string(reason), "error", dlqErr.Error())
			}
			w.nack(message, nackDelay)
			return
		}
		_ = message.Ack()
		return
	}
	w.nack(message, nackDelay)
}

// nack requeues one message with the configured delay.
// Params: message and redelivery delay.
// Returns: nothing.
func (w *NATSWorker) nack(message *nats.Msg, delay time.Duration) {
	if delay > 0 {
		_ = message.NakWithDelay(delay)
		return
	}
	_ = message.Nak()
}

// storeDLQ writes one failed job entry into the dead-letter bucket.
// Params: message, decoded job, failure reason/cause, and attempt counters.
// Returns: KV write error.
func (w *NATSWorker) storeDLQ(message *nats.Msg, job Job, reason DLQReason, cause error, attempts uint64, maxDeliver int) error {
	if w.dlqKV == nil {
		return nil
	}
	entry := DLQEntry{
		Job:        job,
		Reason:     reason,
		Error:      errorString(cause),
		Attempts:   attempts,
		MaxDeliver: maxDeliver,
		FailedAt:   time.Now().UTC(),
	}
	if message != nil {
		entry.Subject = message.Subject
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal notify dlq entry: %w", err)
	}
	key := job.ID
	if strings.TrimSpace(key) == "" {
		key = fmt.Sprintf("unkeyed.%d", time.Now().UnixNano())
	}
	if _, err := w.dlqKV.Put(key, body); err != nil {
		return fmt.Errorf("store notify dlq entry: %w", err)
	}
	return nil
}

// Close drains worker subscriptions and closes the NATS connection.
// Params: none.
// Returns: first drain error.
func (w *NATSWorker) Close() error {
	if w == nil || w.nc == nil {
		return nil
	}
	var firstErr error
	for _, sub := range w.subs {
		if err := sub.Drain(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.nc.Close()
	return firstErr
}

// openQueueJetStream opens the connection and ensures the queue stream exists.
// Params: queue config with URLs and stream/subject names.
// Returns: opened NATS connection, JetStream context, and setup error.
func openQueueJetStream(cfg config.NotifyQueue) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(strings.Join(cfg.URLs, ","))
	if err != nil {
		return nil, nil, fmt.Errorf("connect notify queue nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream init for notify queue: %w", err)
	}
	if err := ensureStream(js, cfg.Stream, cfg.Subject); err != nil {
		nc.Close()
		return nil, nil, err
	}
	return nc, js, nil
}

// ensureStream ensures the work-queue stream exists.
// Params: JetStream context, stream name, and bound subject.
// Returns: stream create/lookup error.
func ensureStream(js nats.JetStreamContext, streamName, subject string) error {
	if _, err := js.StreamInfo(streamName); err == nil {
		return nil
	} else if err != nats.ErrStreamNotFound && !strings.Contains(strings.ToLower(err.Error()), "stream not found") {
		return fmt.Errorf("stream info %q: %w", streamName, err)
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		MaxAge:    notifyStreamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", streamName, err)
	}
	return nil
}

// deliveryAttempts returns delivered-attempt count from JetStream metadata.
// Params: delivered NATS message.
// Returns: attempt count (at least 1 when message is non-nil).
func deliveryAttempts(message *nats.Msg) uint64 {
	if message == nil {
		return 0
	}
	metadata, err := message.Metadata()
	if err != nil || metadata == nil || metadata.NumDelivered <= 0 {
		return 1
	}
	return metadata.NumDelivered
}

// errorString returns a safe textual representation for an optional error.
// Params: optional error.
// Returns: non-empty error string.
func errorString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return strings.TrimSpace(err.Error())
}
