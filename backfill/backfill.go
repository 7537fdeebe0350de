// Package backfill enqueues gloss-embedding tasks for every lemma-sense key
// a model is still missing a stored vector for, in bounded increments so a
// full-inventory backfill never blocks startup.
package backfill

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/open-wsd/wsdkit/pg"
	"github.com/open-wsd/wsdkit/sense"
	"github.com/open-wsd/wsdkit/tasks"
)

// ListLemmaKeysPage returns a page of lemma-sense keys to backfill.
//
// cursor is an opaque string (interpreted only by the lister).
// nextCursor is the cursor to resume from on the next page.
// done indicates there are no more keys after this page.
type ListLemmaKeysPage func(ctx context.Context, cursor string, limit int) (keys []string, nextCursor string, done bool, err error)

// IndexLister pages through every lemma-sense key of an in-memory sense
// graph in sorted order, using the last key of each page as the cursor.
func IndexLister(idx *sense.Index) ListLemmaKeysPage {
	var all []string
	for _, synsetID := range idx.SynsetIDs() {
		keys, err := idx.LemmaKeys(synsetID)
		if err != nil {
			continue
		}
		all = append(all, keys...)
	}
	sort.Strings(all)

	return func(ctx context.Context, cursor string, limit int) ([]string, string, bool, error) {
		start := 0
		if cursor != "" {
			start = sort.SearchStrings(all, cursor)
			for start < len(all) && all[start] == cursor {
				start++
			}
		}
		if start >= len(all) {
			return nil, cursor, true, nil
		}
		end := start + limit
		if end >= len(all) {
			return all[start:], all[len(all)-1], true, nil
		}
		return all[start:end], all[end-1], false, nil
	}
}

type Options struct {
	// Defaults are chosen to be "fast but safe" without overwhelming providers.
	PageSize       int
	MaxTasksPerRun int
	MaxRuntime     time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.PageSize <= 0 {
		out.PageSize = 1000
	}
	if out.MaxTasksPerRun <= 0 {
		out.MaxTasksPerRun = 50_000
	}
	if out.MaxRuntime <= 0 {
		out.MaxRuntime = 30 * time.Second
	}
	return out
}

func quoteIdent(ident string) (string, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return "", fmt.Errorf("empty identifier")
	}
	for _, r := range ident {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			continue
		}
		return "", fmt.Errorf("invalid identifier %q", ident)
	}
	return `"` + ident + `"`, nil
}

// RunOnce performs a bounded amount of backfill work for the given models.
//
// It is designed to be called periodically (e.g. in a background loop) so
// large backfills (hundreds of thousands of sense keys) resume where the
// previous run left off.
func RunOnce(ctx context.Context, pool *pgxpool.Pool, schema string, repo *tasks.Repo, models []pg.ModelSpec, list ListLemmaKeysPage, opts Options) (int, error) {
	if pool == nil {
		return 0, fmt.Errorf("pool is required")
	}
	if repo == nil {
		return 0, fmt.Errorf("task repo is required")
	}
	if strings.TrimSpace(schema) == "" {
		return 0, fmt.Errorf("schema is required")
	}
	if list == nil {
		return 0, fmt.Errorf("ListLemmaKeysPage is required")
	}
	if len(models) == 0 {
		return 0, nil
	}

	cfg := opts.withDefaults()
	start := time.Now()

	qs, err := quoteIdent(schema)
	if err != nil {
		return 0, fmt.Errorf("invalid schema: %w", err)
	}

	enqueued := 0

	for _, m := range models {
		model := strings.TrimSpace(m.Name)
		if model == "" {
			continue
		}
		if time.Since(start) > cfg.MaxRuntime || enqueued >= cfg.MaxTasksPerRun {
			return enqueued, nil
		}

		// Ensure state row exists.
		_, _ = pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s.sense_backfill_state (model, cursor, state, updated_at)
			VALUES ($1, '', 'running', now())
			ON CONFLICT (model) DO NOTHING
		`, qs), model)

		var cursor string
		var state string
		if err := pool.QueryRow(ctx, fmt.Sprintf(`
			SELECT cursor, state
			FROM %s.sense_backfill_state
			WHERE model = $1
			LIMIT 1
		`, qs), model).Scan(&cursor, &state); err != nil {
			return enqueued, err
		}
		if state == "done" {
			continue
		}

		keys, nextCursor, done, err := list(ctx, cursor, cfg.PageSize)
		if err != nil {
			_, _ = pool.Exec(ctx, fmt.Sprintf(`
				UPDATE %s.sense_backfill_state
				SET last_error = $2, updated_at = now()
				WHERE model = $1
			`, qs), model, err.Error())
			return enqueued, err
		}

		for _, key := range keys {
			if time.Since(start) > cfg.MaxRuntime || enqueued >= cfg.MaxTasksPerRun {
				break
			}
			if strings.TrimSpace(key) == "" {
				continue
			}
			if err := repo.Enqueue(ctx, key, model, "model_backfill"); err != nil {
				return enqueued, err
			}
			enqueued++
		}

		if done {
			_, _ = pool.Exec(ctx, fmt.Sprintf(`
				UPDATE %s.sense_backfill_state
				SET cursor = $2, state = 'done', last_error = NULL, updated_at = now()
				WHERE model = $1
			`, qs), model, nextCursor)
		} else {
			_, _ = pool.Exec(ctx, fmt.Sprintf(`
				UPDATE %s.sense_backfill_state
				SET cursor = $2, last_error = NULL, updated_at = now()
				WHERE model = $1
			`, qs), model, nextCursor)
		}
	}

	return enqueued, nil
}
