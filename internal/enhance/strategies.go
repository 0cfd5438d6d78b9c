package enhance

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexviet/bidrag/internal/llm"
)

// Strategy names double as provenance tags on variants.
const (
	StrategyMultiQuery = "multi_query"
	StrategyHyDE       = "hyde"
	StrategyStepBack   = "step_back"
	StrategyDecompose  = "decompose"
)

const multiQuerySystem = `Bạn là trợ lý tìm kiếm văn bản pháp luật đấu thầu Việt Nam.
Hãy viết lại câu hỏi của người dùng thành các cách diễn đạt khác nhau nhưng giữ nguyên ý định,
dùng thuật ngữ pháp lý chính thức khi có thể. Mỗi dòng một câu, không đánh số, không giải thích.`

const hydeSystem = `Bạn là chuyên gia pháp luật đấu thầu Việt Nam.
Hãy viết một đoạn văn ngắn (3-5 câu) như thể trích từ văn bản pháp luật, trả lời trực tiếp câu hỏi dưới đây.
Viết bằng văn phong pháp lý, không nói rằng đây là giả định, không trích nguồn.`

const stepBackSystem = `Bạn là trợ lý tìm kiếm văn bản pháp luật đấu thầu Việt Nam.
Hãy khái quát hóa câu hỏi cụ thể dưới đây thành một câu hỏi rộng hơn về cùng chủ đề pháp lý.
Trả lời đúng một câu hỏi, không giải thích.`

const decomposeSystem = `Bạn là trợ lý tìm kiếm văn bản pháp luật đấu thầu Việt Nam.
Nếu câu hỏi dưới đây gồm nhiều ý, hãy tách thành 2-4 câu hỏi con độc lập, mỗi dòng một câu, không đánh số.
Nếu câu hỏi chỉ có một ý, trả lời lại đúng câu hỏi đó.`

// MultiQuery produces 3-5 intent-preserving paraphrases.
type MultiQuery struct {
	client llm.Client
}

// NewMultiQuery creates the paraphrase strategy.
func NewMultiQuery(client llm.Client) *MultiQuery {
	return &MultiQuery{client: client}
}

// Name returns the provenance tag.
func (s *MultiQuery) Name() string { return StrategyMultiQuery }

// Variants returns up to five paraphrases.
func (s *MultiQuery) Variants(ctx context.Context, q Query) ([]string, error) {
	user := fmt.Sprintf("Viết lại câu hỏi sau thành 3 đến 5 cách diễn đạt khác nhau:\n\n%s", q.Text)
	reply, err := s.client.Chat(ctx, multiQuerySystem, user)
	if err != nil {
		return nil, err
	}
	return splitLines(reply, 5), nil
}

// HyDE produces one hypothetical answer passage to embed as a document
// surrogate.
type HyDE struct {
	client llm.Client
}

// NewHyDE creates the hypothetical-document strategy.
func NewHyDE(client llm.Client) *HyDE {
	return &HyDE{client: client}
}

// Name returns the provenance tag.
func (s *HyDE) Name() string { return StrategyHyDE }

// Variants returns the single hypothetical passage.
func (s *HyDE) Variants(ctx context.Context, q Query) ([]string, error) {
	reply, err := s.client.Chat(ctx, hydeSystem, q.Text)
	if err != nil {
		return nil, err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, nil
	}
	return []string{reply}, nil
}

// StepBack produces one generalized question to broaden context.
type StepBack struct {
	client llm.Client
}

// NewStepBack creates the generalization strategy.
func NewStepBack(client llm.Client) *StepBack {
	return &StepBack{client: client}
}

// Name returns the provenance tag.
func (s *StepBack) Name() string { return StrategyStepBack }

// Variants returns the single generalized question.
func (s *StepBack) Variants(ctx context.Context, q Query) ([]string, error) {
	reply, err := s.client.Chat(ctx, stepBackSystem, q.Text)
	if err != nil {
		return nil, err
	}
	lines := splitLines(reply, 1)
	return lines, nil
}

// Decompose produces 2-4 sub-questions for compound queries.
type Decompose struct {
	client llm.Client
}

// NewDecompose creates the decomposition strategy.
func NewDecompose(client llm.Client) *Decompose {
	return &Decompose{client: client}
}

// Name returns the provenance tag.
func (s *Decompose) Name() string { return StrategyDecompose }

// Variants returns the sub-questions.
func (s *Decompose) Variants(ctx context.Context, q Query) ([]string, error) {
	reply, err := s.client.Chat(ctx, decomposeSystem, q.Text)
	if err != nil {
		return nil, err
	}
	return splitLines(reply, 4), nil
}

// splitLines extracts non-empty lines, stripping list markers the model
// sometimes adds despite instructions, capped at max.
func splitLines(reply string, max int) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	return out
}
