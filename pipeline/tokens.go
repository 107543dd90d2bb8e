package pipeline

import (
	"context"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// tokenEncoding approximates the provider tokenizer; the count is only a hint in the trace
const tokenEncoding = "cl100k_base"

// tokenWait bounds how long a submission waits for the encoding to load
const tokenWait = 2 * time.Second

var defaultEstimator = newTokenEstimator(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.GetEncoding(tokenEncoding)
}, tokenWait)

// tokenEstimator loads the encoding once in the background. Callers never
// block on the load for longer than their context or wait allows.
type tokenEstimator struct {
	load  func() (*tiktoken.Tiktoken, error)
	wait  time.Duration
	once  sync.Once
	ready chan struct{}
	enc   *tiktoken.Tiktoken
	err   error
}

func newTokenEstimator(load func() (*tiktoken.Tiktoken, error), wait time.Duration) *tokenEstimator {
	return &tokenEstimator{load: load, wait: wait, ready: make(chan struct{})}
}

func (e *tokenEstimator) start() {
	e.once.Do(func() {
		go func() {
			defer close(e.ready)
			e.enc, e.err = e.load()
			if e.err != nil {
				log.Printf("[PIPELINE] tiktoken unavailable, using rough estimate: %v", e.err)
			}
		}()
	})
}

func (e *tokenEstimator) estimate(ctx context.Context, text string) int {
	e.start()

	timer := time.NewTimer(e.wait)
	defer timer.Stop()

	select {
	case <-e.ready:
	case <-ctx.Done():
		return roughTokens(text)
	case <-timer.C:
		return roughTokens(text)
	}
	if e.err != nil || e.enc == nil {
		return roughTokens(text)
	}
	return len(e.enc.Encode(text, nil, nil))
}

// EstimateTokens counts tokens with tiktoken. While the encoding is still
// loading, or when it cannot be loaded, it falls back to a rough
// four-characters-per-token estimate.
func EstimateTokens(ctx context.Context, text string) int {
	return defaultEstimator.estimate(ctx, text)
}

func roughTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
