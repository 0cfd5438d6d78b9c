package rerank

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lexviet/bidrag/internal/llm"
	"go.uber.org/zap"
)

const judgeSystemPrompt = `Bạn là trợ lý đánh giá mức độ liên quan giữa câu hỏi pháp lý và các đoạn văn bản luật.
Cho câu hỏi và danh sách đoạn văn được đánh số, hãy chấm điểm liên quan của từng đoạn từ 0.0 đến 1.0.
Trả lời đúng một dòng cho mỗi đoạn, theo định dạng "<số thứ tự>: <điểm>", không giải thích.`

// LLMJudge scores passages by asking the chat model to grade relevance.
// Slower and noisier than the cross-encoder; used where no scoring sidecar
// is deployed.
type LLMJudge struct {
	client llm.Client
	logger *zap.Logger
}

// NewLLMJudge creates an LLM-backed reranker.
func NewLLMJudge(client llm.Client, logger *zap.Logger) *LLMJudge {
	return &LLMJudge{client: client, logger: logger}
}

// Name identifies the backend.
func (j *LLMJudge) Name() string { return "llm-judge" }

// Rerank asks the model for a score per passage and orders by it. A
// malformed or missing line keeps that passage's prior retrieval score as
// its rerank score instead of dropping it.
func (j *LLMJudge) Rerank(ctx context.Context, query string, docs []Document, topN int) ([]ScoredDocument, error) {
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Câu hỏi: %s\n\n", query)
	for i, doc := range docs {
		content := doc.Content
		if len(content) > 800 {
			content = content[:800]
		}
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, content)
	}

	reply, err := j.client.Chat(ctx, judgeSystemPrompt, b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	scores := parseJudgeScores(reply, len(docs))
	scored := make([]ScoredDocument, len(docs))
	for i, doc := range docs {
		score := doc.Score
		if s, ok := scores[i]; ok {
			score = s
		} else {
			j.logger.Warn("judge returned no score for passage",
				zap.String("id", doc.ID), zap.Int("index", i))
		}
		scored[i] = ScoredDocument{Document: doc, RerankScore: score, OriginalRank: i}
	}

	sortScored(scored)
	return truncate(scored, topN), nil
}

// Close is a no-op.
func (j *LLMJudge) Close() error { return nil }

// parseJudgeScores extracts "<n>: <score>" lines; indices are 1-based in
// the reply.
func parseJudgeScores(reply string, n int) map[int]float32 {
	scores := make(map[int]float32, n)
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		idx, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		i, err := strconv.Atoi(strings.TrimSpace(strings.Trim(idx, "[]")))
		if err != nil || i < 1 || i > n {
			continue
		}
		s, err := strconv.ParseFloat(strings.TrimSpace(rest), 32)
		if err != nil || s < 0 || s > 1 {
			continue
		}
		scores[i-1] = float32(s)
	}
	return scores
}
