package vectorstore

import (
	"sort"
	"time"
)

// Status is the lifecycle state of a legal document.
type Status string

const (
	StatusActive     Status = "active"
	StatusExpired    Status = "expired"
	StatusSuperseded Status = "superseded"
)

// DocType identifies the kind of legal document a passage belongs to.
type DocType string

const (
	DocTypeLaw         DocType = "law"          // Luật
	DocTypeDecree      DocType = "decree"       // Nghị định
	DocTypeCircular    DocType = "circular"     // Thông tư
	DocTypeDecision    DocType = "decision"     // Quyết định
	DocTypeBiddingForm DocType = "bidding_form" // Mẫu hồ sơ mời thầu
)

// Passage is a preprocessed chunk of legal text with structural metadata.
// Passages are owned by the store; the core holds them by ID only.
type Passage struct {
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	DocumentID    string         `json:"document_id"`
	DocumentTitle string         `json:"document_title"`
	// Hierarchy is the structural path, outermost first
	// (e.g., "Chương I" > "Điều 14" > "Khoản 2").
	Hierarchy  []string       `json:"hierarchy"`
	DocType    DocType        `json:"doc_type"`
	Status     Status         `json:"status"`
	ValidUntil *time.Time     `json:"valid_until,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ScoredPassage pairs a passage with its retrieval score and the optional
// rerank and fusion scores added by later pipeline stages.
type ScoredPassage struct {
	Passage
	// Score is the vector similarity reported by the store (higher is better).
	Score float32 `json:"score"`
	// RerankScore is the cross-encoder score, monotonic within one invocation.
	RerankScore *float32 `json:"rerank_score,omitempty"`
	// FusionScore is the reciprocal-rank-fusion weight.
	FusionScore *float32 `json:"fusion_score,omitempty"`
}

// orderKey returns the dominant ordering score: rerank wins over fusion,
// fusion wins over retrieval similarity.
func (p *ScoredPassage) orderKey() float32 {
	if p.RerankScore != nil {
		return *p.RerankScore
	}
	if p.FusionScore != nil {
		return *p.FusionScore
	}
	return p.Score
}

// SortScored orders passages by rerank → fusion → retrieval score descending,
// breaking ties by ID ascending so equal inputs always produce equal output.
func SortScored(passages []ScoredPassage) {
	sort.SliceStable(passages, func(i, j int) bool {
		ki, kj := passages[i].orderKey(), passages[j].orderKey()
		if ki != kj {
			return ki > kj
		}
		return passages[i].ID < passages[j].ID
	})
}

// DedupeByID keeps one entry per ID, at the position of its first
// occurrence, with the highest retrieval score seen for that ID.
func DedupeByID(passages []ScoredPassage) []ScoredPassage {
	seen := make(map[string]int, len(passages))
	out := make([]ScoredPassage, 0, len(passages))
	for _, p := range passages {
		if idx, ok := seen[p.ID]; ok {
			if p.Score > out[idx].Score {
				out[idx].Score = p.Score
			}
			continue
		}
		seen[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}
