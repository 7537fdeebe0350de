package worker

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/open-wsd/wsdkit/sense"
)

func TestExpBackoff(t *testing.T) {
	base := 5 * time.Second
	max := time.Minute
	if d := expBackoff(base, 1, max); d != 5*time.Second {
		t.Fatalf("attempt 1 = %v", d)
	}
	if d := expBackoff(base, 3, max); d != 20*time.Second {
		t.Fatalf("attempt 3 = %v", d)
	}
	if d := expBackoff(base, 10, max); d != max {
		t.Fatalf("attempt 10 = %v, want cap %v", d, max)
	}
	if d := expBackoff(base, 0, max); d != 5*time.Second {
		t.Fatalf("attempt 0 = %v", d)
	}
}

func TestAddJitter(t *testing.T) {
	d := 40 * time.Second
	for i := 0; i < 100; i++ {
		j := addJitter(d)
		if j < d || j > d+d/4 {
			t.Fatalf("jittered %v outside [%v, %v]", j, d, d+d/4)
		}
	}

	// Durations too small to carry jitter pass through unchanged instead of
	// panicking on an empty random interval.
	for _, small := range []time.Duration{0, time.Nanosecond, 3 * time.Nanosecond} {
		if j := addJitter(small); j != small {
			t.Fatalf("addJitter(%v) = %v, want unchanged", small, j)
		}
	}
}

func TestAddJitter_Concurrent(t *testing.T) {
	// Backoffs are jittered from concurrent embed goroutines; this must be
	// safe under the race detector.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				addJitter(time.Second)
			}
		}()
	}
	wg.Wait()
}

func TestIsRetryable(t *testing.T) {
	if isRetryable(&openai.APIError{HTTPStatusCode: 400}) {
		t.Fatalf("400 should be permanent")
	}
	if !isRetryable(&openai.APIError{HTTPStatusCode: 429}) {
		t.Fatalf("429 should be retryable")
	}
	if !isRetryable(&openai.APIError{HTTPStatusCode: 503}) {
		t.Fatalf("503 should be retryable")
	}
	// Unknown error types (network, context) default to retryable.
	if !isRetryable(context.DeadlineExceeded) {
		t.Fatalf("unknown errors should be retryable")
	}
}

func TestIsRateLimit(t *testing.T) {
	if !isRateLimit(&openai.APIError{HTTPStatusCode: 429}) {
		t.Fatalf("429 APIError should be rate limit")
	}
	if isRateLimit(&openai.APIError{HTTPStatusCode: 500}) {
		t.Fatalf("500 is not a rate limit")
	}
	if isRateLimit(context.Canceled) {
		t.Fatalf("non-API errors are not rate limits")
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	cfg := (&Options{}).withDefaults()
	if cfg.BatchSize != 250 || cfg.MaxAttempts != 10 || cfg.MaxConcurrentEmbeds != 8 {
		t.Fatalf("defaults = %+v", cfg)
	}
	custom := (&Options{BatchSize: 10}).withDefaults()
	if custom.BatchSize != 10 {
		t.Fatalf("explicit batch size overridden: %+v", custom)
	}
}

func TestIndexGlossBuilder(t *testing.T) {
	x := sense.NewIndex()
	if err := x.Add(sense.Synset{
		ID:        "100-n",
		Lexname:   "noun.animal",
		LemmaKeys: []string{"domestic_dog%1:05:00::"},
		Gloss:     "a member of the genus Canis",
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	build := IndexGlossBuilder(x)
	docs, err := build(context.Background(), []string{"domestic_dog%1:05:00::", "cat%1:05:00::"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, ok := docs["domestic_dog%1:05:00::"]
	if !ok {
		t.Fatalf("missing doc: %v", docs)
	}
	if !strings.Contains(doc, "domestic dog") || !strings.Contains(doc, "genus Canis") {
		t.Fatalf("doc = %q", doc)
	}

	// Unknown keys are skipped, not failed: their tasks complete without a
	// stored vector.
	if _, ok := docs["cat%1:05:00::"]; ok {
		t.Fatalf("unknown key should be absent: %v", docs)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, nil, nil, nil, Options{}); err == nil {
		t.Fatalf("expected error for nil embedder")
	}
}
