package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// Статусы записи outbox. Событие рождается pending и после попытки
// публикации переходит в sent либо failed.
const (
	outboxPending = "pending"
	outboxSent    = "sent"
	outboxFailed  = "failed"
)

const outboxDefaultPullLimit = 100

type outboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository создаёт PostgreSQL-реализацию OutboxRepository.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepository{db: store.DB()}
}

// Enqueue сохраняет событие заказа в той же БД, где лежит сам заказ.
func (r *outboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	const q = `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)
	`
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, q,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload,
		outboxPending, now,
	); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue order event: %w", err)
	}

	return msg, nil
}

// PullPending возвращает непубликованные события в порядке постановки,
// чтобы события одного заказа уходили в брокер по порядку.
func (r *outboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = outboxDefaultPullLimit
	}

	const q = `
		SELECT id, aggregate_type, aggregate_id, event_type, payload
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, q, outboxPending, limit)
	if err != nil {
		return nil, fmt.Errorf("pull pending order events: %w", err)
	}
	defer rows.Close()

	return collectOutboxRows(rows)
}

func (r *outboxRepository) Stats() (domain.OutboxStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	const q = `
		SELECT COUNT(*), MIN(created_at)
		FROM outbox_messages
		WHERE status = $1
	`
	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, q, outboxPending).Scan(&stats.PendingCount, &oldest); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox backlog stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}

	return stats, nil
}

func (r *outboxRepository) MarkSent(id string) error {
	return r.transition(id, outboxSent)
}

func (r *outboxRepository) MarkFailed(id string) error {
	return r.transition(id, outboxFailed)
}

// transition переводит запись в конечный статус, фиксируя попытку публикации.
func (r *outboxRepository) transition(id, to string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	const q = `
		UPDATE outbox_messages
		SET status = $2,
		    attempt_count = attempt_count + 1,
		    updated_at = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q, id, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark order event %s: %w", to, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for outbox %s: %w", to, err)
	}
	if affected == 0 {
		return domain.ErrOutboxPublish
	}

	return nil
}

func collectOutboxRows(rows *sql.Rows) ([]domain.OutboxMessage, error) {
	msgs := make([]domain.OutboxMessage, 0)
	for rows.Next() {
		var msg domain.OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}

	return msgs, nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
