// Package tasks is a small Postgres-backed queue of gloss-embedding work:
// one task per (lemma_key, model) pair still missing a stored sense vector.
package tasks

import "time"

type Task struct {
	LemmaKey  string
	Model     string
	Reason    string
	Attempts  int
	NextRunAt time.Time
	StartedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
