// Package registry guarantees at most one live instance of each heavyweight
// model client per process.
//
// The reranker model is on the order of gigabytes; constructing it per
// request exhausts memory within tens of concurrent requests. Every
// component borrows the singletons from here and never constructs its own.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lexviet/bidrag/internal/embeddings"
	"github.com/lexviet/bidrag/internal/rerank"
)

// ErrModelUnavailable indicates a model could not be loaded. Without the
// reranker the pipeline degrades to its non-reranking equivalent; without
// the embedder the request fails.
var ErrModelUnavailable = errors.New("model unavailable")

// RerankerLoader constructs the reranker client. Called at most once per
// back-off window.
type RerankerLoader func() (rerank.Reranker, error)

// EmbedderLoader constructs the embedding client.
type EmbedderLoader func() (embeddings.Embedder, error)

// slot holds one lazily-constructed singleton with failure caching. The
// mutex synchronizes first construction: concurrent first callers block and
// exactly one performs the load.
type slot[T any] struct {
	mu       sync.Mutex
	value    T
	loaded   bool
	lastErr  error
	failedAt time.Time
}

func (s *slot[T]) get(backoff time.Duration, load func() (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.value, nil
	}
	if s.lastErr != nil && time.Since(s.failedAt) < backoff {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrModelUnavailable, s.lastErr)
	}

	value, err := load()
	if err != nil {
		s.lastErr = err
		s.failedAt = time.Now()
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	s.value = value
	s.loaded = true
	s.lastErr = nil
	return value, nil
}

func (s *slot[T]) snapshot() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.loaded
}

// Registry owns the reranker and embedder for the process lifetime.
type Registry struct {
	loadReranker RerankerLoader
	loadEmbedder EmbedderLoader
	backoff      time.Duration
	logger       *zap.Logger

	reranker slot[rerank.Reranker]
	embedder slot[embeddings.Embedder]

	closeOnce sync.Once
}

// Options configures the registry.
type Options struct {
	RerankerLoader RerankerLoader
	EmbedderLoader EmbedderLoader

	// FailureBackoff is how long a failed load is cached before retrying.
	FailureBackoff time.Duration
}

// New creates the registry. Nothing is constructed until first lookup.
func New(opts Options, logger *zap.Logger) *Registry {
	backoff := opts.FailureBackoff
	if backoff <= 0 {
		backoff = 30 * time.Second
	}
	return &Registry{
		loadReranker: opts.RerankerLoader,
		loadEmbedder: opts.EmbedderLoader,
		backoff:      backoff,
		logger:       logger,
	}
}

// Reranker returns the process-wide reranker, constructing it on first
// call. Returns ErrModelUnavailable while a cached failure backs off.
func (r *Registry) Reranker(ctx context.Context) (rerank.Reranker, error) {
	return r.reranker.get(r.backoff, func() (rerank.Reranker, error) {
		r.logger.Info("loading reranker")
		reranker, err := r.loadReranker()
		if err != nil {
			r.logger.Error("reranker load failed", zap.Error(err))
			return nil, err
		}
		return reranker, nil
	})
}

// Embedder returns the process-wide embedding client.
func (r *Registry) Embedder(ctx context.Context) (embeddings.Embedder, error) {
	return r.embedder.get(r.backoff, func() (embeddings.Embedder, error) {
		r.logger.Info("loading embedder")
		embedder, err := r.loadEmbedder()
		if err != nil {
			r.logger.Error("embedder load failed", zap.Error(err))
			return nil, err
		}
		return embedder, nil
	})
}

// Health reports which singletons are live and the reranker's device.
type Health struct {
	RerankerLoaded bool   `json:"reranker_loaded"`
	EmbedderLoaded bool   `json:"embedder_loaded"`
	RerankerDevice string `json:"reranker_device,omitempty"`
}

// Health returns the current singleton state without constructing anything.
func (r *Registry) Health() Health {
	h := Health{}
	if reranker, ok := r.reranker.snapshot(); ok {
		h.RerankerLoaded = true
		if ce, isCE := reranker.(*rerank.CrossEncoder); isCE {
			h.RerankerDevice = ce.Device()
		}
	}
	_, h.EmbedderLoaded = r.embedder.snapshot()
	return h
}

// Close tears down the reranker. Idempotent; safe to call concurrently
// with lookups. The closed reranker stays registered, so lookups after
// Close return the closed instance; call it only at process shutdown.
func (r *Registry) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if reranker, ok := r.reranker.snapshot(); ok {
			err = reranker.Close()
		}
	})
	return err
}
