package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"docseries/internal/core/id"
	"docseries/internal/core/numerator"
	"docseries/internal/core/tx"
	"docseries/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// maxOutboxRetries moves a message to failed after this many handler errors.
const maxOutboxRetries = 5

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID           id.ID        `db:"id"`
	EventType    string       `db:"event_type"` // e.g. "document.numbered"
	DocumentType string       `db:"document_type"`
	Payload      []byte       `db:"payload"`
	Status       OutboxStatus `db:"status"`
	RetryCount   int          `db:"retry_count"`
	LastError    *string      `db:"last_error"`
	NextRetryAt  *time.Time   `db:"next_retry_at"`
	CreatedAt    time.Time    `db:"created_at"`
	PublishedAt  *time.Time   `db:"published_at"`
}

// Event decodes the payload.
func (m *OutboxMessage) Event() (numerator.Event, error) {
	var e numerator.Event
	if err := json.Unmarshal(m.Payload, &e); err != nil {
		return e, fmt.Errorf("decode outbox message %s: %w", m.ID, err)
	}
	return e, nil
}

// OutboxPublisher implements numerator.Publisher by writing events to the
// outbox table. Inside a transaction the event commits with the data.
type OutboxPublisher struct {
	db querierSource
}

var _ numerator.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(db QuerierSource) *OutboxPublisher {
	return &OutboxPublisher{db: db}
}

// Publish writes an event to the outbox.
func (p *OutboxPublisher) Publish(ctx context.Context, e numerator.Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = p.db.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_outbox (id, event_type, document_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id.New(), e.Name, e.DocumentType, payload, OutboxStatusPending, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	// Handle processes a message and returns error if failed
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error {
	return f(ctx, msg)
}

// OutboxRelay reads pending messages and hands them to a handler.
// Used by the background worker to publish events to the message broker.
type OutboxRelay struct {
	db        querierSource
	txm       tx.Manager
	batchSize int
	handler   OutboxHandler
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(db QuerierSource, txm tx.Manager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{db: db, txm: txm, batchSize: batchSize, handler: handler}
}

// ProcessBatch fetches and processes pending messages in one transaction,
// so SKIP LOCKED keeps concurrent relays apart. Returns the number published.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		messages, err := r.fetch(ctx)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			if err := r.processMessage(ctx, msg); err != nil {
				logger.Warn(ctx, "outbox message failed", "id", msg.ID, "event", msg.EventType, "error", err)
				continue
			}
			processed++
		}
		return nil
	})
	return processed, err
}

func (r *OutboxRelay) fetch(ctx context.Context) ([]*OutboxMessage, error) {
	rows, err := r.db.GetQuerier(ctx).Query(ctx, `
		SELECT id, event_type, document_type, payload, status,
		       retry_count, last_error, next_retry_at, created_at, published_at
		FROM sys_outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, OutboxStatusPending, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*OutboxMessage
	for rows.Next() {
		var msg OutboxMessage
		err := rows.Scan(
			&msg.ID, &msg.EventType, &msg.DocumentType, &msg.Payload, &msg.Status,
			&msg.RetryCount, &msg.LastError, &msg.NextRetryAt, &msg.CreatedAt, &msg.PublishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}
	return messages, nil
}

// processMessage handles a single outbox message.
func (r *OutboxRelay) processMessage(ctx context.Context, msg *OutboxMessage) error {
	q := r.db.GetQuerier(ctx)

	if err := r.handler.Handle(ctx, msg); err != nil {
		// Linear backoff: one more minute per attempt.
		nextRetry := time.Now().UTC().Add(time.Duration(msg.RetryCount+1) * time.Minute)
		_, updateErr := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
			WHERE id = $5
		`, err.Error(), nextRetry, maxOutboxRetries, OutboxStatusFailed, msg.ID)
		if updateErr != nil {
			return fmt.Errorf("update failed message: %w", updateErr)
		}
		return err
	}

	_, err := q.Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2
		WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	return err
}

// PurgePublished deletes published messages older than age.
func (r *OutboxRelay) PurgePublished(ctx context.Context, age time.Duration) (int64, error) {
	tag, err := r.db.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, time.Now().UTC().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}
