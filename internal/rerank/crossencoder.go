package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Batch sizes by device class. An accelerator amortizes transfer overhead
// over larger batches; CPU inference saturates earlier.
const (
	acceleratorBatchSize = 64
	cpuBatchSize         = 16
)

// CrossEncoderConfig configures the cross-encoder client.
type CrossEncoderConfig struct {
	// BaseURL is the scoring service base URL. The service exposes
	// POST /rerank and GET /info.
	BaseURL string

	// Model is the cross-encoder model identifier sent with each request.
	Model string

	// BatchSize overrides the device-derived batch size when positive.
	BatchSize int

	// Timeout bounds each HTTP call.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c CrossEncoderConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	return nil
}

// CrossEncoder scores (query, passage) pairs through a sidecar service
// hosting the cross-encoder model. The sidecar reports its device at
// startup; the client sizes batches accordingly.
//
// The service contract:
//
//	GET  /info   -> {"device": "cuda"|"cpu", "model": "..."}
//	POST /rerank -> {"query": ..., "documents": [...], "model": ...}
//	             <- {"scores": [0.93, 0.12, ...]}
type CrossEncoder struct {
	client    *http.Client
	config    CrossEncoderConfig
	device    string
	batchSize int
	logger    *zap.Logger
	closed    atomic.Bool
}

type serviceInfo struct {
	Device string `json:"device"`
	Model  string `json:"model"`
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Scores []float32 `json:"scores"`
}

// NewCrossEncoder creates the client and probes the service for its device.
// Construction fails when the service is unreachable so the registry can
// cache the failure and degrade.
func NewCrossEncoder(cfg CrossEncoderConfig, logger *zap.Logger) (*CrossEncoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	ce := &CrossEncoder{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
	}

	info, err := ce.fetchInfo()
	if err != nil {
		return nil, fmt.Errorf("%w: probing service: %v", ErrUnavailable, err)
	}
	ce.device = info.Device

	switch {
	case cfg.BatchSize > 0:
		ce.batchSize = cfg.BatchSize
	case info.Device == "cpu":
		ce.batchSize = cpuBatchSize
	default:
		ce.batchSize = acceleratorBatchSize
	}

	logger.Info("cross-encoder ready",
		zap.String("device", ce.device),
		zap.Int("batch_size", ce.batchSize),
		zap.String("model", cfg.Model))

	return ce, nil
}

func (ce *CrossEncoder) fetchInfo() (*serviceInfo, error) {
	resp, err := ce.client.Get(ce.config.BaseURL + "/info")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("info returned %d", resp.StatusCode)
	}
	var info serviceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	if info.Device == "" {
		info.Device = "cpu"
	}
	return &info, nil
}

// Name identifies the backend.
func (ce *CrossEncoder) Name() string { return "cross-encoder" }

// Device returns the device the sidecar selected, for health reporting.
func (ce *CrossEncoder) Device() string { return ce.device }

// Rerank scores docs in device-sized batches. Any batch failure aborts the
// whole rerank with an error; the caller keeps the upstream ordering.
func (ce *CrossEncoder) Rerank(ctx context.Context, query string, docs []Document, topN int) ([]ScoredDocument, error) {
	if ce.closed.Load() {
		return nil, ErrUnavailable
	}
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}

	scored := make([]ScoredDocument, len(docs))
	for start := 0; start < len(docs); start += ce.batchSize {
		end := start + ce.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		scores, err := ce.scoreBatch(ctx, query, docs[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: batch [%d:%d]: %v", ErrUnavailable, start, end, err)
		}
		for i, s := range scores {
			scored[start+i] = ScoredDocument{
				Document:     docs[start+i],
				RerankScore:  s,
				OriginalRank: start + i,
			}
		}
	}

	sortScored(scored)
	return truncate(scored, topN), nil
}

func (ce *CrossEncoder) scoreBatch(ctx context.Context, query string, docs []Document) ([]float32, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	body, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: texts,
		Model:     ce.config.Model,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		ce.config.BaseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ce.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank returned %d: %s", resp.StatusCode, payload)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Scores) != len(docs) {
		return nil, fmt.Errorf("score count %d != document count %d", len(parsed.Scores), len(docs))
	}
	return parsed.Scores, nil
}

// Close marks the client closed. Idempotent.
func (ce *CrossEncoder) Close() error {
	ce.closed.Store(true)
	ce.client.CloseIdleConnections()
	return nil
}
