// Package compose formats retrieved passages into a citation-marked prompt,
// invokes the chat model, and parses the citations back out of the answer.
package compose

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexviet/bidrag/internal/llm"
	"github.com/lexviet/bidrag/internal/vectorstore"
)

const systemPrompt = `Bạn là trợ lý pháp lý chuyên về pháp luật đấu thầu Việt Nam.
Chỉ trả lời dựa trên các đoạn văn bản được cung cấp trong phần NGỮ CẢNH; không suy đoán ngoài ngữ cảnh.
Khi sử dụng thông tin từ đoạn nào, hãy trích dẫn bằng ký hiệu [n] tương ứng.
Nếu ngữ cảnh không đủ để trả lời, hãy nói rõ là chưa tìm thấy quy định liên quan.
Trả lời bằng tiếng Việt, ngắn gọn và chính xác.`

// noContextAnswer is returned without an LLM call when retrieval found
// nothing: the composer refuses to speculate.
const noContextAnswer = `Tôi chưa tìm thấy quy định liên quan trong các văn bản hiện có, nên không thể trả lời câu hỏi này một cách có căn cứ.`

// Citation points at a passage referenced by the answer.
type Citation struct {
	PassageID     string   `json:"passage_id"`
	DocumentTitle string   `json:"document_title"`
	HierarchyPath []string `json:"hierarchy_path"`
}

// Result is the composition outcome. When GenerationFailed is set the
// retrieved passages are still carried so the caller preserves partial
// value.
type Result struct {
	AnswerText        string     `json:"answer_text"`
	Citations         []Citation `json:"citations"`
	SupportingContext []Citation `json:"supporting_context"`
	GenerationFailed  bool       `json:"generation_failed,omitempty"`
}

// Composer builds prompts and invokes the chat model.
type Composer struct {
	client llm.Client
	logger *zap.Logger
}

// New creates a composer.
func New(client llm.Client, logger *zap.Logger) *Composer {
	return &Composer{client: client, logger: logger}
}

var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// Compose answers the query from the passages. timeout bounds the LLM call;
// pass the remaining request deadline. With zero passages no LLM call is
// made and the fixed refusal is returned.
func (c *Composer) Compose(ctx context.Context, query, conversationSummary string, passages []vectorstore.ScoredPassage, timeout time.Duration) (*Result, error) {
	if len(passages) == 0 {
		return &Result{AnswerText: noContextAnswer}, nil
	}

	user := buildUserPrompt(query, conversationSummary, passages)

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	answer, err := c.client.Chat(callCtx, systemPrompt, user)
	if err != nil {
		c.logger.Warn("answer generation failed", zap.Error(err))
		result := &Result{GenerationFailed: true}
		for _, p := range passages {
			result.SupportingContext = append(result.SupportingContext, toCitation(p))
		}
		return result, err
	}

	cited := citedIndices(answer, len(passages))
	result := &Result{AnswerText: answer}
	for i, p := range passages {
		if cited[i] {
			result.Citations = append(result.Citations, toCitation(p))
		} else {
			result.SupportingContext = append(result.SupportingContext, toCitation(p))
		}
	}
	return result, nil
}

// buildUserPrompt renders the context block with [n] markers and the
// question. Hierarchy paths anchor each marker to its place in the law.
func buildUserPrompt(query, conversationSummary string, passages []vectorstore.ScoredPassage) string {
	var b strings.Builder

	b.WriteString("NGỮ CẢNH:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] (%s", i+1, p.DocumentTitle)
		if len(p.Hierarchy) > 0 {
			fmt.Fprintf(&b, ", %s", strings.Join(p.Hierarchy, " > "))
		}
		fmt.Fprintf(&b, ")\n%s\n\n", p.Content)
	}

	if conversationSummary != "" {
		fmt.Fprintf(&b, "TÓM TẮT HỘI THOẠI TRƯỚC:\n%s\n\n", conversationSummary)
	}

	fmt.Fprintf(&b, "CÂU HỎI: %s", query)
	return b.String()
}

// citedIndices parses [n] markers out of the answer; n is 1-based.
func citedIndices(answer string, n int) map[int]bool {
	cited := make(map[int]bool)
	for _, match := range markerPattern.FindAllStringSubmatch(answer, -1) {
		idx, err := strconv.Atoi(match[1])
		if err != nil || idx < 1 || idx > n {
			continue
		}
		cited[idx-1] = true
	}
	return cited
}

func toCitation(p vectorstore.ScoredPassage) Citation {
	return Citation{
		PassageID:     p.ID,
		DocumentTitle: p.DocumentTitle,
		HierarchyPath: p.Hierarchy,
	}
}
