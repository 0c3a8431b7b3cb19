package notifyqueue

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"alertflow/internal/domain"
	"alertflow/internal/permanent"
)

// Job is one outbound notification task in the async delivery queue.
// Params: destination channel, escalation marker, and alert snapshot.
// Returns: queue unit consumed by delivery workers.
type Job struct {
	ID         string       `json:"id"`
	Channel    string       `json:"channel"`
	Escalation bool         `json:"escalation"`
	Level      int          `json:"level"`
	Alert      domain.Alert `json:"alert"`
	CreatedAt  time.Time    `json:"created_at"`
}

// DLQReason identifies why a notify job was moved to the dead-letter bucket.
// Params: categorized failure reason.
// Returns: machine-readable DLQ classification.
type DLQReason string

const (
	// DLQReasonPermanentError marks non-retryable processing failures.
	DLQReasonPermanentError DLQReason = "permanent_error"
	// DLQReasonMaxDeliverExceeded marks retries exhausted by queue max deliver policy.
	DLQReasonMaxDeliverExceeded DLQReason = "max_deliver_exceeded"
)

// DLQEntry is the dead-letter payload for notify queue failures.
// Params: original job, failure metadata, and delivery counters.
// Returns: persisted DLQ record.
type DLQEntry struct {
	Job        Job       `json:"job"`
	Reason     DLQReason `json:"reason"`
	Error      string    `json:"error"`
	Attempts   uint64    `json:"attempts"`
	MaxDeliver int       `json:"max_deliver"`
	Subject    string    `json:"subject"`
	FailedAt   time.Time `json:"failed_at"`
}

// BuildJobID creates a deterministic id for one delivery task.
// Duplicate fan-out publishes for the same alert, channel, and level
// collapse via the JetStream message id.
// Params: destination channel, escalation level, and alert snapshot.
// Returns: stable SHA1-based id string.
func BuildJobID(channel string, level int, escalation bool, alert domain.Alert) string {
	raw := fmt.Sprintf(
		"%s|%d|%t|%s|%s|%d",
		channel,
		level,
		escalation,
		alert.ID,
		alert.Status,
		alert.CreatedAt.UnixNano(),
	)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Producer enqueues notification delivery jobs.
// Params: context and queue job payload.
// Returns: enqueue error.
type Producer interface {
	Enqueue(ctx context.Context, job Job) error
	Close() error
}

// MarkPermanent wraps an error as a permanent processing failure.
// Params: source error.
// Returns: wrapped permanent error (or nil when input is nil).
func MarkPermanent(err error) error {
	return permanent.Mark(err)
}

// IsPermanent reports whether the error is marked as non-retryable.
// Params: processing error.
// Returns: true when a worker must not retry.
func IsPermanent(err error) bool {
	return permanent.Is(err)
}

// Worker consumes queued jobs and acknowledges delivery status.
// Params: close hook for shutdown lifecycle.
// Returns: queue worker lifecycle.
type Worker interface {
	Close() error
}
