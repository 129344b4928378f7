// Package taskqueue provides the asynchronous task boundary: a Postgres
// outbox for enqueued work and a polling runner that dispatches tasks to
// registered handlers. Delivery is at-least-once; handlers must be
// idempotent.
package taskqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/jmoiron/sqlx"
)

// Task names understood by the worker.
const (
	TaskMergeGroups  = "merge_groups"
	TaskDeleteGroups = "delete_groups"
)

// Enqueuer schedules a named task with a JSON payload. Enqueue participates
// in the caller's transaction when one is supplied, so a task is only visible
// once the triggering mutation commits.
type Enqueuer interface {
	Enqueue(ctx context.Context, tx *sqlx.Tx, name string, payload interface{}) error
}

// Outbox is the Postgres-backed task store.
type Outbox struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewOutbox(db *sqlx.DB, log *slog.Logger) *Outbox {
	return &Outbox{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var _ Enqueuer = (*Outbox)(nil)

func (o *Outbox) Enqueue(ctx context.Context, tx *sqlx.Tx, name string, payload interface{}) error {
	const op = "internal.taskqueue.Enqueue"

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal payload: %w", op, err)
	}

	query, args, err := o.sq.Insert("tasks").
		Columns("name", "payload").
		Values(name, body).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	var ext sqlx.ExtContext = o.db
	if tx != nil {
		ext = tx
	}

	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

// ClaimNext picks the oldest unprocessed task and marks it processed in one
// statement, so concurrent runners never claim the same row twice.
func (o *Outbox) ClaimNext(ctx context.Context) (*domain.Task, error) {
	const op = "internal.taskqueue.ClaimNext"

	query := `
		UPDATE tasks SET processed_at = NOW()
		WHERE id = (
			SELECT id FROM tasks
			WHERE processed_at IS NULL
			ORDER BY id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, name, payload, created_at, processed_at`

	var task domain.Task
	if err := o.db.GetContext(ctx, &task, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: failed to claim task: %w", op, err)
	}

	return &task, nil
}
