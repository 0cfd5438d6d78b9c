package orchestrator

import (
	"github.com/lexviet/bidrag/internal/compose"
	"github.com/lexviet/bidrag/internal/vectorstore"
)

// Request is the input to Ask.
type Request struct {
	// Query is the raw user question.
	Query string

	// Mode selects the pipeline profile; empty uses the configured default.
	Mode string

	// Filter overrides the default status predicate. Nil applies the
	// configured default.
	Filter *vectorstore.Filter

	// ConversationSummary is the caller-produced transcript summary.
	ConversationSummary string
}

// Stages reports per-stage cardinalities for observability and tests.
type Stages struct {
	RetrievedN   int    `json:"retrieved_n"`
	RerankedN    int    `json:"reranked_n"`
	EnhancedN    int    `json:"enhanced_n"`
	CacheLayerHit string `json:"cache_layer_hit,omitempty"`
}

// Latency is the per-stage latency breakdown in milliseconds.
type Latency struct {
	EnhanceMS  int64 `json:"enhance"`
	RetrieveMS int64 `json:"retrieve"`
	RerankMS   int64 `json:"rerank"`
	ComposeMS  int64 `json:"compose"`
	TotalMS    int64 `json:"total"`
}

// Answer is the structured result of Ask.
type Answer struct {
	AnswerText        string             `json:"answer_text"`
	Citations         []compose.Citation `json:"citations"`
	SupportingContext []compose.Citation `json:"supporting_context"`
	Stages            Stages             `json:"stages"`
	Latency           Latency            `json:"latency_ms_breakdown"`
	Warnings          []string           `json:"warnings,omitempty"`
}

// HealthReport is the health() result.
type HealthReport struct {
	RerankerLoaded bool   `json:"reranker_loaded"`
	EmbedderLoaded bool   `json:"embedder_loaded"`
	RerankerDevice string `json:"reranker_device,omitempty"`
	StoreDimension int    `json:"store_dimension"`
	QueueDepth     int64  `json:"queue_depth"`
}
