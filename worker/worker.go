// Package worker drains the gloss-embedding task queue: it builds a text
// document for each pending lemma key, embeds the documents in batches, and
// stores the resulting sense vectors.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/open-wsd/wsdkit/embedder"
	"github.com/open-wsd/wsdkit/sense"
	"github.com/open-wsd/wsdkit/tasks"
)

// GlossBuilder returns the text document to embed for each requested lemma
// key. Keys absent from the returned map are treated as gone (their tasks are
// completed without storing a vector).
type GlossBuilder func(ctx context.Context, lemmaKeys []string) (map[string]string, error)

// IndexGlossBuilder builds documents from an in-memory sense graph: the
// synset gloss prefixed with the lemma. Lemma keys the graph does not know
// are skipped.
func IndexGlossBuilder(idx *sense.Index) GlossBuilder {
	return func(ctx context.Context, lemmaKeys []string) (map[string]string, error) {
		out := make(map[string]string, len(lemmaKeys))
		for _, key := range lemmaKeys {
			synsetID, err := idx.SynsetOf(key)
			if errors.Is(err, sense.ErrUnknownLemmaKey) {
				continue
			}
			if err != nil {
				return nil, err
			}
			gloss, err := idx.Gloss(synsetID)
			if err != nil {
				return nil, err
			}
			lk, err := sense.ParseLemmaKey(key)
			if err != nil {
				return nil, err
			}
			out[key] = strings.ReplaceAll(lk.Lemma, "_", " ") + " - " + gloss
		}
		return out, nil
	}
}

// Store persists one sense vector. Satisfied by *pg.Store.
type Store interface {
	UpsertSenseEmbedding(ctx context.Context, lemmaKey string, vec []float32) error
}

type Options struct {
	BatchSize int
	LockAhead time.Duration
	PollEvery time.Duration

	MaxConcurrentEmbeds  int
	MaxRequestsPerSecond float64 // 0 = unlimited

	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

const providerEmbedBatchSize = 25

func (o *Options) withDefaults() Options {
	out := *o
	if out.BatchSize <= 0 {
		out.BatchSize = 250
	}
	if out.LockAhead <= 0 {
		out.LockAhead = 30 * time.Second
	}
	if out.PollEvery <= 0 {
		out.PollEvery = 2 * time.Second
	}
	if out.MaxConcurrentEmbeds <= 0 {
		out.MaxConcurrentEmbeds = 8
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 10
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = 5 * time.Second
	}
	if out.BackoffMax <= 0 {
		out.BackoffMax = 10 * time.Minute
	}
	return out
}

func isRateLimit(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429
	}
	return false
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode == 408 {
			return true
		}
		return apiErr.HTTPStatusCode >= 500 && apiErr.HTTPStatusCode <= 599
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode == 408 {
			return true
		}
		return reqErr.HTTPStatusCode >= 500 && reqErr.HTTPStatusCode <= 599
	}
	return true
}

func expBackoff(base time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := math.Pow(2, float64(attempt-1))
	d := time.Duration(float64(base) * mult)
	if d > max {
		return max
	}
	return d
}

// addJitter adds up to 25% random jitter. It uses the package-level rand
// source because backoffs are computed from concurrent embed goroutines.
func addJitter(d time.Duration) time.Duration {
	quarter := int64(d / 4)
	if quarter <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(quarter))
}

func makeTokenBucket(rps float64, burst int) <-chan struct{} {
	ch := make(chan struct{}, burst)
	for i := 0; i < burst; i++ {
		ch <- struct{}{}
	}
	if rps <= 0 {
		return ch
	}
	interval := time.Duration(float64(time.Second) / rps)
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	t := time.NewTicker(interval)
	go func() {
		for range t.C {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()
	return ch
}

// Worker embeds gloss documents for one model and writes them to one store.
type Worker struct {
	emb   embedder.Embedder
	store Store
	repo  *tasks.Repo
	build GlossBuilder
	cfg   Options
}

func New(emb embedder.Embedder, store Store, repo *tasks.Repo, build GlossBuilder, opts Options) (*Worker, error) {
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("task repo is required")
	}
	if build == nil {
		return nil, fmt.Errorf("gloss builder is required")
	}
	return &Worker{
		emb:   emb,
		store: store,
		repo:  repo,
		build: build,
		cfg:   opts.withDefaults(),
	}, nil
}

func (w *Worker) handleTaskResult(ctx context.Context, task tasks.Task, err error) {
	if err == nil {
		_ = w.repo.Complete(ctx, task.LemmaKey, task.Model, task.NextRunAt)
		return
	}

	log.Printf(
		"wsdkit: task failed lemma_key=%s model=%s attempts=%d err=%T %v",
		task.LemmaKey,
		task.Model,
		task.Attempts,
		err,
		err,
	)

	// This failure counts as the next attempt (tasks.Attempts is prior failures).
	task.Attempts = task.Attempts + 1

	if task.Attempts >= w.cfg.MaxAttempts || !isRetryable(err) {
		_ = w.repo.DeadLetter(ctx, task, task.NextRunAt, err)
		return
	}

	backoff := expBackoff(w.cfg.BackoffBase, task.Attempts, w.cfg.BackoffMax)
	backoff = addJitter(backoff)
	_ = w.repo.Fail(ctx, task.LemmaKey, task.Model, task.NextRunAt, backoff)
}

func (w *Worker) processBatch(ctx context.Context, batch []tasks.Task, docs map[string]string, sem chan struct{}, tokens <-chan struct{}) {
	type workItem struct {
		task tasks.Task
		doc  string
	}

	items := make([]workItem, 0, len(batch))
	for _, task := range batch {
		doc := docs[task.LemmaKey]
		if strings.TrimSpace(doc) == "" {
			// Lemma key unknown to the sense graph: nothing to embed.
			_ = w.repo.Complete(ctx, task.LemmaKey, task.Model, task.NextRunAt)
			continue
		}
		items = append(items, workItem{task: task, doc: doc})
	}

	var wg sync.WaitGroup

	for start := 0; start < len(items); start += providerEmbedBatchSize {
		end := start + providerEmbedBatchSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()

			if tokens != nil {
				select {
				case <-ctx.Done():
					return
				case <-tokens:
				}
			}

			texts := make([]string, len(chunk))
			for i, it := range chunk {
				texts[i] = it.doc
			}

			vecs, batchErr := w.emb.EmbedTexts(ctx, texts)
			if batchErr != nil {
				for _, it := range chunk {
					w.handleTaskResult(ctx, it.task, batchErr)
				}
				return
			}
			if len(vecs) != len(chunk) {
				err := fmt.Errorf("expected %d embeddings, got %d", len(chunk), len(vecs))
				for _, it := range chunk {
					w.handleTaskResult(ctx, it.task, err)
				}
				return
			}

			for i, it := range chunk {
				err := w.store.UpsertSenseEmbedding(ctx, it.task.LemmaKey, vecs[i])
				w.handleTaskResult(ctx, it.task, err)
			}
		}()
	}

	wg.Wait()
}

func (w *Worker) drain(ctx context.Context, sem chan struct{}, tokens <-chan struct{}) error {
	batch, err := w.repo.FetchReady(ctx, w.emb.Model(), w.cfg.BatchSize, w.cfg.LockAhead)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	keys := make([]string, 0, len(batch))
	seen := map[string]struct{}{}
	for _, t := range batch {
		if _, ok := seen[t.LemmaKey]; ok {
			continue
		}
		seen[t.LemmaKey] = struct{}{}
		keys = append(keys, t.LemmaKey)
	}

	docs, err := w.build(ctx, keys)
	if err != nil {
		return err
	}

	w.processBatch(ctx, batch, docs, sem, tokens)
	return nil
}

// DrainOnce fetches and processes a single batch of ready tasks, then returns.
//
// This is useful for integrating wsdkit into an external job runner where you
// do not want an internal infinite polling loop.
func (w *Worker) DrainOnce(ctx context.Context) error {
	sem := make(chan struct{}, w.cfg.MaxConcurrentEmbeds)
	var tokens <-chan struct{}
	if w.cfg.MaxRequestsPerSecond > 0 {
		tokens = makeTokenBucket(w.cfg.MaxRequestsPerSecond, w.cfg.MaxConcurrentEmbeds)
	}
	return w.drain(ctx, sem, tokens)
}

// Run polls the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	sem := make(chan struct{}, w.cfg.MaxConcurrentEmbeds)
	var tokens <-chan struct{}
	if w.cfg.MaxRequestsPerSecond > 0 {
		tokens = makeTokenBucket(w.cfg.MaxRequestsPerSecond, w.cfg.MaxConcurrentEmbeds)
	}

	ticker := time.NewTicker(w.cfg.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx, sem, tokens); err != nil {
				return err
			}
		}
	}
}
