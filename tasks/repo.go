package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool   *pgxpool.Pool
	schema string
}

const senseTasksTable = "sense_embedding_tasks"
const senseDeadLettersTable = "sense_embedding_dead_letters"

func NewRepo(pool *pgxpool.Pool, schema string) *Repo {
	return &Repo{pool: pool, schema: schema}
}

func (r *Repo) Enqueue(ctx context.Context, lemmaKey string, model string, reason string) error {
	if strings.TrimSpace(lemmaKey) == "" || strings.TrimSpace(model) == "" {
		return fmt.Errorf("lemmaKey and model are required")
	}
	if r.schema == "" {
		return fmt.Errorf("schema is required")
	}
	q := fmt.Sprintf(`
		INSERT INTO %s.%s (lemma_key, model, reason)
		VALUES ($1, $2, COALESCE($3, 'unknown'))
		ON CONFLICT (lemma_key, model) DO UPDATE SET
			reason = EXCLUDED.reason,
			next_run_at = LEAST(%s.%s.next_run_at, now()),
			updated_at = now()
	`, r.schema, senseTasksTable, r.schema, senseTasksTable)
	_, err := r.pool.Exec(ctx, q, lemmaKey, model, reason)
	return err
}

// FetchReady returns up to limit tasks ready to run now, and bumps
// next_run_at forward by lockAhead to reduce duplicate work across workers.
// A non-empty model restricts the pick to that model's tasks.
func (r *Repo) FetchReady(ctx context.Context, model string, limit int, lockAhead time.Duration) ([]Task, error) {
	if limit <= 0 {
		return nil, nil
	}
	if lockAhead <= 0 {
		lockAhead = 30 * time.Second
	}
	if r.schema == "" {
		return nil, fmt.Errorf("schema is required")
	}

	now := time.Now().UTC()
	next := now.Add(lockAhead)

	q := fmt.Sprintf(`
		WITH picked AS (
			SELECT lemma_key, model
			FROM %s.%s
			WHERE next_run_at <= $1 AND ($4 = '' OR model = $4)
			ORDER BY next_run_at ASC, lemma_key ASC, model ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE %s.%s t
		SET next_run_at = $3,
		    started_at = COALESCE(t.started_at, $1),
		    updated_at = $1
		FROM picked p
		WHERE t.lemma_key = p.lemma_key
		  AND t.model = p.model
		RETURNING
			t.lemma_key, t.model, t.reason, t.attempts, t.next_run_at, t.started_at, t.created_at, t.updated_at
	`, r.schema, senseTasksTable, r.schema, senseTasksTable)

	rows, err := r.pool.Query(ctx, q, now, limit, next, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(
			&t.LemmaKey,
			&t.Model,
			&t.Reason,
			&t.Attempts,
			&t.NextRunAt,
			&t.StartedAt,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) Complete(ctx context.Context, lemmaKey string, model string, leaseUntil time.Time) error {
	if r.schema == "" {
		return fmt.Errorf("schema is required")
	}
	if strings.TrimSpace(lemmaKey) == "" || strings.TrimSpace(model) == "" {
		return nil
	}
	q := fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE lemma_key = $1 AND model = $2 AND next_run_at = $3
	`, r.schema, senseTasksTable)
	_, err := r.pool.Exec(ctx, q, lemmaKey, model, leaseUntil.UTC())
	return err
}

func (r *Repo) Fail(ctx context.Context, lemmaKey string, model string, leaseUntil time.Time, backoff time.Duration) error {
	if backoff <= 0 {
		backoff = 30 * time.Second
	}
	if r.schema == "" {
		return fmt.Errorf("schema is required")
	}
	if strings.TrimSpace(lemmaKey) == "" || strings.TrimSpace(model) == "" {
		return nil
	}
	secs := int64(backoff / time.Second)
	if secs < 1 {
		secs = 1
	}
	q := fmt.Sprintf(`
		UPDATE %s.%s
		SET attempts = attempts + 1,
		    next_run_at = now() + make_interval(secs => $1),
		    updated_at = now()
		WHERE lemma_key = $2 AND model = $3 AND next_run_at = $4
	`, r.schema, senseTasksTable)
	_, err := r.pool.Exec(ctx, q, secs, lemmaKey, model, leaseUntil.UTC())
	return err
}

// DeadLetter moves a task into the dead-letter table and deletes it from the
// runnable queue. Lease-safe: the task is deleted only if next_run_at still
// matches leaseUntil.
func (r *Repo) DeadLetter(ctx context.Context, t Task, leaseUntil time.Time, err error) error {
	if r.schema == "" {
		return fmt.Errorf("schema is required")
	}
	if strings.TrimSpace(t.LemmaKey) == "" || strings.TrimSpace(t.Model) == "" {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("unknown error")
	}

	tx, txErr := r.pool.Begin(ctx)
	if txErr != nil {
		return txErr
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q1 := fmt.Sprintf(`
		INSERT INTO %s.%s (lemma_key, model, reason, error, attempts, failed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now(), now())
		ON CONFLICT (lemma_key, model) DO UPDATE SET
			reason = EXCLUDED.reason,
			error = EXCLUDED.error,
			attempts = EXCLUDED.attempts,
			failed_at = EXCLUDED.failed_at,
			updated_at = now()
	`, r.schema, senseDeadLettersTable)
	attempts := t.Attempts
	if attempts < 0 {
		attempts = 0
	}
	if _, execErr := tx.Exec(ctx, q1, t.LemmaKey, t.Model, t.Reason, err.Error(), attempts); execErr != nil {
		return execErr
	}

	q2 := fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE lemma_key = $1 AND model = $2 AND next_run_at = $3
	`, r.schema, senseTasksTable)
	if _, execErr := tx.Exec(ctx, q2, t.LemmaKey, t.Model, leaseUntil.UTC()); execErr != nil {
		return execErr
	}

	return tx.Commit(ctx)
}
