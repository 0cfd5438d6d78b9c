// Package orchestrator assembles the pipeline: admission, cache lookup,
// enhancement, retrieval, reranking, composition, and cache population,
// under a per-mode total deadline and a process-wide concurrency permit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/lexviet/bidrag/internal/breaker"
	"github.com/lexviet/bidrag/internal/cache"
	"github.com/lexviet/bidrag/internal/compose"
	"github.com/lexviet/bidrag/internal/config"
	"github.com/lexviet/bidrag/internal/embeddings"
	"github.com/lexviet/bidrag/internal/enhance"
	"github.com/lexviet/bidrag/internal/llm"
	"github.com/lexviet/bidrag/internal/logging"
	"github.com/lexviet/bidrag/internal/registry"
	"github.com/lexviet/bidrag/internal/rerank"
	"github.com/lexviet/bidrag/internal/retrieve"
	"github.com/lexviet/bidrag/internal/vectorstore"
)

// adaptiveMinK is the lower end of the adaptive k ramp.
const adaptiveMinK = 3

// bestEffortComposeTimeout bounds the LLM call when the total deadline
// already expired after retrieval completed.
const bestEffortComposeTimeout = 1500 * time.Millisecond

// Options carries the orchestrator's collaborators.
type Options struct {
	Store    vectorstore.Store
	Cache    *cache.Tier
	Registry *registry.Registry
	Chat     llm.Client
}

// Service is the pipeline orchestrator. One instance serves all requests.
type Service struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    vectorstore.Store
	cache    *cache.Tier
	registry *registry.Registry
	chat     llm.Client
	composer *compose.Composer
	enhancer *enhance.Enhancer

	strategies map[string]enhance.Strategy

	sem      *semaphore.Weighted
	inflight atomic.Int64

	storeBreaker *breaker.Breaker
	llmBreaker   *breaker.Breaker
	rerankBreaker *breaker.Breaker

	storeDim int
	tracer   trace.Tracer
}

// New wires the orchestrator and enforces the startup invariant: the
// store's vector dimension must equal the configured embedding dimension.
func New(ctx context.Context, cfg *config.Config, opts Options, logger *zap.Logger) (*Service, error) {
	dim, err := opts.Store.Dimension(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading store dimension: %w", err)
	}
	if dim != cfg.Embeddings.Dimension {
		return nil, fmt.Errorf("%w: store has %d, embeddings configured for %d",
			vectorstore.ErrDimensionMismatch, dim, cfg.Embeddings.Dimension)
	}

	breakerOpts := []breaker.Option{
		breaker.WithWindow(cfg.Breaker.Window.Std()),
		breaker.WithThreshold(cfg.Breaker.Threshold),
		breaker.WithMinSamples(cfg.Breaker.MinSamples),
		breaker.WithCooloff(cfg.Breaker.Cooloff.Std()),
	}

	s := &Service{
		cfg:           cfg,
		logger:        logger,
		store:         opts.Store,
		cache:         opts.Cache,
		registry:      opts.Registry,
		chat:          opts.Chat,
		composer:      compose.New(opts.Chat, logger.Named("compose")),
		enhancer:      enhance.NewEnhancer(cfg.Enhance.Deadline.Std(), logger.Named("enhance")),
		sem:           semaphore.NewWeighted(int64(cfg.Pipeline.ConcurrencyLimit)),
		storeBreaker:  breaker.New("vectorstore", breakerOpts...),
		llmBreaker:    breaker.New("llm", breakerOpts...),
		rerankBreaker: breaker.New("reranker", breakerOpts...),
		storeDim:      dim,
		tracer:        otel.Tracer("bidrag/orchestrator"),
	}

	s.strategies = map[string]enhance.Strategy{
		enhance.StrategyMultiQuery: enhance.NewMultiQuery(opts.Chat),
		enhance.StrategyHyDE:       enhance.NewHyDE(opts.Chat),
		enhance.StrategyStepBack:   enhance.NewStepBack(opts.Chat),
		enhance.StrategyDecompose:  enhance.NewDecompose(opts.Chat),
	}
	return s, nil
}

// Ask runs the full pipeline. Every outcome is a structured Answer or a
// structured *Error; no other error type escapes.
func (s *Service) Ask(ctx context.Context, req Request) (*Answer, error) {
	start := time.Now()
	var warnings []string

	// Input validation happens before any external call.
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, newError(KindInputInvalid, StageAdmission, "empty query", nil, nil)
	}
	mode := req.Mode
	if mode == "" {
		mode = s.cfg.Pipeline.DefaultMode
	}
	if !config.IsMode(mode) {
		return nil, newError(KindInputInvalid, StageAdmission,
			fmt.Sprintf("unsupported mode %q", mode), nil, nil)
	}

	ctx = logging.WithRequestID(ctx, uuid.NewString())
	ctx, span := s.tracer.Start(ctx, "ask")
	defer span.End()

	// Admission: the bounded permit pool is the primary back-pressure
	// mechanism.
	admCtx, admCancel := context.WithTimeout(ctx, s.cfg.Pipeline.AdmissionDeadline.Std())
	err := s.sem.Acquire(admCtx, 1)
	admCancel()
	if err != nil {
		requestsTotal.WithLabelValues(mode, "overloaded").Inc()
		return nil, newError(KindOverloaded, StageAdmission,
			"concurrency limit reached within admission deadline", err, nil)
	}
	s.inflight.Add(1)
	inflightGauge.Inc()
	defer func() {
		s.inflight.Add(-1)
		inflightGauge.Dec()
		s.sem.Release(1)
	}()

	profile := profileFor(mode, s.cfg)

	// Adaptive mode refines k, enhancement, and reranking per query.
	if mode == ModeAdaptive {
		plan := retrieve.PlanAdaptive(query, adaptiveMinK, profile.K)
		profile.K = plan.K
		profile.Rerank = plan.Rerank
		if plan.Enhance {
			profile.Strategies = []string{enhance.StrategyMultiQuery, enhance.StrategyStepBack}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, profile.Deadline)
	defer cancel()

	filter := req.Filter
	if filter == nil {
		if status := s.cfg.DefaultFilterStatus(); status != "" {
			filter = vectorstore.NewFilter().Where("status", status)
		} else {
			filter = vectorstore.NewFilter()
		}
	}

	fingerprint := cache.Fingerprint(query, profile.K, filter.Canonical())

	answer := &Answer{}

	// Cache lookup: identifiers only; content is re-hydrated and the
	// filter re-applied so status changes are honored.
	passages, layer, cacheWarnings := s.lookupCache(ctx, fingerprint, filter)
	warnings = append(warnings, cacheWarnings...)

	if layer != "" {
		answer.Stages.CacheLayerHit = layer
		answer.Stages.RetrievedN = len(passages)
		answer.Stages.EnhancedN = 1
	} else {
		// Enhancement (skipped in fast mode and below the adaptive
		// threshold).
		variants, enhancedN, enhanceWarnings, enhanceMS := s.stageEnhance(ctx, query, req.ConversationSummary, profile)
		warnings = append(warnings, enhanceWarnings...)
		answer.Stages.EnhancedN = enhancedN
		answer.Latency.EnhanceMS = enhanceMS

		// Retrieval.
		retrieveStart := time.Now()
		retrieved, err := s.stageRetrieve(ctx, variants, profile, filter)
		answer.Latency.RetrieveMS = time.Since(retrieveStart).Milliseconds()
		if err != nil {
			requestsTotal.WithLabelValues(mode, "error").Inc()
			return nil, s.mapRetrieveError(err, warnings)
		}
		answer.Stages.RetrievedN = len(retrieved)

		// Reranking (optional stage: degrades with a warning).
		rerankStart := time.Now()
		reranked, rerankedN, rerankWarnings := s.stageRerank(ctx, query, retrieved, profile)
		answer.Latency.RerankMS = time.Since(rerankStart).Milliseconds()
		warnings = append(warnings, rerankWarnings...)
		answer.Stages.RerankedN = rerankedN
		passages = reranked

		// Cache population: write-after-success only; a cancelled request
		// must not leave a half-written entry.
		if len(passages) > 0 && ctx.Err() == nil && s.cache != nil {
			s.cache.Store(ctx, fingerprint, cache.FromScored(passages), profile.CacheTTL)
		}
	}

	if len(passages) == 0 {
		warnings = append(warnings, "no_context")
	}

	// Composition.
	composeStart := time.Now()
	result, composeErr := s.stageCompose(ctx, query, req.ConversationSummary, passages, &warnings)
	answer.Latency.ComposeMS = time.Since(composeStart).Milliseconds()

	answer.Latency.TotalMS = time.Since(start).Milliseconds()
	answer.Warnings = warnings

	if composeErr != nil {
		// Retrieval succeeded; preserve partial value.
		answer.Warnings = append(answer.Warnings, "generation_failed")
		answer.SupportingContext = result.SupportingContext
		requestsTotal.WithLabelValues(mode, "partial").Inc()
		requestDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		return answer, nil
	}

	answer.AnswerText = result.AnswerText
	answer.Citations = result.Citations
	answer.SupportingContext = result.SupportingContext

	requestsTotal.WithLabelValues(mode, "ok").Inc()
	requestDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	return answer, nil
}

// lookupCache checks L1/L2 and re-hydrates on hit. A hit whose re-hydration
// fails degrades to a miss.
func (s *Service) lookupCache(ctx context.Context, fingerprint string, filter *vectorstore.Filter) ([]vectorstore.ScoredPassage, string, []string) {
	if s.cache == nil {
		return nil, "", nil
	}
	entry, layer := s.cache.Lookup(ctx, fingerprint)
	if entry == nil {
		return nil, "", nil
	}

	fetched, err := s.store.Fetch(ctx, entry.IDs)
	s.storeBreaker.Record(err)
	if err != nil {
		s.logger.Warn("cache re-hydration failed, treating as miss",
			append(logging.ContextFields(ctx), zap.Error(err))...)
		return nil, "", nil
	}

	byID := make(map[string]vectorstore.Passage, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	var warnings []string
	passages := make([]vectorstore.ScoredPassage, 0, len(entry.IDs))
	for i, id := range entry.IDs {
		p, ok := byID[id]
		if !ok || !filter.Matches(&p) {
			continue
		}
		score := float32(0)
		if i < len(entry.Scores) {
			score = entry.Scores[i]
		}
		passages = append(passages, vectorstore.ScoredPassage{Passage: p, Score: score})
	}
	if len(passages) < len(entry.IDs) {
		warnings = append(warnings, "cache_post_filter_shrank")
	}
	return passages, layer, warnings
}

// stageEnhance runs the profile's strategies. The original query is always
// present; failures degrade per strategy.
func (s *Service) stageEnhance(ctx context.Context, query, summary string, profile Profile) ([]string, int, []string, int64) {
	if len(profile.Strategies) == 0 {
		return []string{query}, 1, nil, 0
	}
	if !s.llmBreaker.Allow() {
		return []string{query}, 1, []string{"enhance_skipped_breaker_open"}, 0
	}

	ctx, span := s.tracer.Start(ctx, "enhance")
	defer span.End()

	strategies := make([]enhance.Strategy, 0, len(profile.Strategies))
	for _, name := range profile.Strategies {
		if strategy, ok := s.strategies[name]; ok {
			strategies = append(strategies, strategy)
		}
	}

	start := time.Now()
	set := s.enhancer.Enhance(ctx, enhance.Query{Text: query, ConversationSummary: summary}, strategies)
	elapsed := time.Since(start).Milliseconds()

	// One failed strategy is a degradation; all failing suggests the
	// provider is down.
	if len(set.Warnings) == len(strategies) && len(strategies) > 0 {
		s.llmBreaker.Record(errors.New("all enhancement strategies failed"))
	} else {
		s.llmBreaker.Record(nil)
	}

	return set.Texts(), len(set.Variants), set.Warnings, elapsed
}

// stageRetrieve selects the retriever for the profile and executes it.
func (s *Service) stageRetrieve(ctx context.Context, variants []string, profile Profile, filter *vectorstore.Filter) ([]vectorstore.ScoredPassage, error) {
	if !s.storeBreaker.Allow() {
		return nil, fmt.Errorf("%w: circuit open", vectorstore.ErrStoreUnavailable)
	}

	embedder, err := s.registry.Embedder(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "retrieve")
	defer span.End()

	var retriever retrieve.Retriever
	switch {
	case profile.Fusion:
		retriever = retrieve.NewFusion(embedder, s.store, s.cfg.Enhance.FanOut, s.cfg.Pipeline.RRFC)
	case len(variants) > 1:
		retriever = retrieve.NewEnhanced(embedder, s.store, s.cfg.Enhance.FanOut)
	default:
		retriever = retrieve.NewBase(embedder, s.store)
	}

	passages, err := retriever.Retrieve(ctx, variants, profile.K, filter)
	s.storeBreaker.Record(err)
	return passages, err
}

// stageRerank applies the singleton reranker when the profile asks for it.
// Model load failure or scoring failure degrades to the upstream order.
func (s *Service) stageRerank(ctx context.Context, query string, retrieved []vectorstore.ScoredPassage, profile Profile) ([]vectorstore.ScoredPassage, int, []string) {
	topN := profile.TopN
	if !profile.Rerank || len(retrieved) == 0 {
		return truncatePassages(retrieved, topN), 0, nil
	}
	if !s.rerankBreaker.Allow() {
		return truncatePassages(retrieved, topN), 0, []string{"rerank_skipped_breaker_open"}
	}

	reranker, err := s.registry.Reranker(ctx)
	if err != nil {
		return truncatePassages(retrieved, topN), 0, []string{"reranker_unavailable"}
	}

	ctx, span := s.tracer.Start(ctx, "rerank")
	defer span.End()

	docs := make([]rerank.Document, len(retrieved))
	byID := make(map[string]vectorstore.ScoredPassage, len(retrieved))
	for i, p := range retrieved {
		docs[i] = rerank.Document{ID: p.ID, Content: p.Content, Score: p.Score}
		byID[p.ID] = p
	}

	scored, err := reranker.Rerank(ctx, query, docs, topN)
	s.rerankBreaker.Record(err)
	if err != nil {
		s.logger.Warn("rerank failed, keeping retrieval order",
			append(logging.ContextFields(ctx), zap.Error(err))...)
		return truncatePassages(retrieved, topN), 0, []string{"rerank_failed"}
	}

	out := make([]vectorstore.ScoredPassage, 0, len(scored))
	for _, doc := range scored {
		p := byID[doc.ID]
		rs := doc.RerankScore
		p.RerankScore = &rs
		out = append(out, p)
	}
	return out, len(out), nil
}

// stageCompose invokes the LLM. When the total deadline already expired
// after retrieval, one best-effort attempt runs on a short detached budget.
func (s *Service) stageCompose(ctx context.Context, query, summary string, passages []vectorstore.ScoredPassage, warnings *[]string) (*compose.Result, error) {
	if len(passages) > 0 && !s.llmBreaker.Allow() {
		result := &compose.Result{GenerationFailed: true}
		for _, p := range passages {
			result.SupportingContext = append(result.SupportingContext, compose.Citation{
				PassageID:     p.ID,
				DocumentTitle: p.DocumentTitle,
				HierarchyPath: p.Hierarchy,
			})
		}
		return result, breaker.ErrOpen
	}

	composeCtx := ctx
	timeout := time.Duration(0)
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if ctx.Err() != nil || timeout <= 0 {
		// Deadline hit after retrieval: best-effort composition.
		*warnings = append(*warnings, "deadline_exceeded_best_effort")
		composeCtx = context.WithoutCancel(ctx)
		timeout = bestEffortComposeTimeout
	}

	composeCtx, span := s.tracer.Start(composeCtx, "compose")
	defer span.End()

	result, err := s.composer.Compose(composeCtx, query, summary, passages, timeout)
	if len(passages) > 0 {
		s.llmBreaker.Record(err)
	}
	return result, err
}

// mapRetrieveError converts a retrieval failure into the taxonomy.
func (s *Service) mapRetrieveError(err error, warnings []string) *Error {
	switch {
	case errors.Is(err, registry.ErrModelUnavailable):
		return newError(KindDependencyUnavailable, StageRetrieve, "embedding model unavailable", err, warnings)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindDeadlineExceeded, StageRetrieve, "deadline expired during retrieval", err, warnings)
	case errors.Is(err, vectorstore.ErrStoreUnavailable):
		return newError(KindDependencyUnavailable, StageRetrieve, "vector store unavailable", err, warnings)
	case errors.Is(err, embeddings.ErrEmbeddingFailed):
		return newError(KindDependencyUnavailable, StageRetrieve, "embedding provider failed", err, warnings)
	default:
		return newError(KindInternal, StageRetrieve, "retrieval failed", err, warnings)
	}
}

// InvalidateDocument drops cached entries referencing the document. No
// vector-store write is involved.
func (s *Service) InvalidateDocument(ctx context.Context, documentID string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.InvalidateDocument(ctx, documentID); err != nil {
		return newError(KindDependencyUnavailable, StageCache, "cache invalidation failed", err, nil)
	}
	return nil
}

// Health reports singleton and store state plus the number of admitted
// in-flight requests as QueueDepth.
func (s *Service) Health(ctx context.Context) HealthReport {
	modelHealth := s.registry.Health()
	return HealthReport{
		RerankerLoaded: modelHealth.RerankerLoaded,
		EmbedderLoaded: modelHealth.EmbedderLoaded,
		RerankerDevice: modelHealth.RerankerDevice,
		StoreDimension: s.storeDim,
		QueueDepth:     s.inflight.Load(),
	}
}

func truncatePassages(passages []vectorstore.ScoredPassage, topN int) []vectorstore.ScoredPassage {
	if topN > 0 && len(passages) > topN {
		return passages[:topN]
	}
	return passages
}
