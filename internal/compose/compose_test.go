package compose

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexviet/bidrag/internal/vectorstore"
)

type chatFunc func(ctx context.Context, system, user string) (string, error)

func (f chatFunc) Chat(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

func fixturePassages() []vectorstore.ScoredPassage {
	return []vectorstore.ScoredPassage{
		{Passage: vectorstore.Passage{
			ID:            "p1",
			Content:       "Thời hạn hiệu lực của bảo đảm dự thầu được quy định trong hồ sơ mời thầu.",
			DocumentTitle: "Luật Đấu thầu 2023",
			Hierarchy:     []string{"Chương II", "Điều 14", "Khoản 4"},
		}, Score: 0.9},
		{Passage: vectorstore.Passage{
			ID:            "p2",
			Content:       "Bảo đảm dự thầu không được hoàn trả trong các trường hợp sau.",
			DocumentTitle: "Luật Đấu thầu 2023",
			Hierarchy:     []string{"Chương II", "Điều 14", "Khoản 9"},
		}, Score: 0.7},
	}
}

func TestComposeCitationsParsedBack(t *testing.T) {
	var capturedUser string
	client := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		capturedUser = user
		return "Theo quy định [1], thời hạn hiệu lực do hồ sơ mời thầu quy định.", nil
	})
	c := New(client, zap.NewNop())

	result, err := c.Compose(context.Background(), "Thời hạn hiệu lực bảo đảm dự thầu?", "", fixturePassages(), time.Second)
	require.NoError(t, err)

	require.Len(t, result.Citations, 1)
	assert.Equal(t, "p1", result.Citations[0].PassageID)
	assert.Equal(t, []string{"Chương II", "Điều 14", "Khoản 4"}, result.Citations[0].HierarchyPath)

	require.Len(t, result.SupportingContext, 1)
	assert.Equal(t, "p2", result.SupportingContext[0].PassageID)

	// Prompt carries markers and hierarchy anchors.
	assert.Contains(t, capturedUser, "[1] (Luật Đấu thầu 2023, Chương II > Điều 14 > Khoản 4)")
	assert.Contains(t, capturedUser, "[2]")
	assert.Contains(t, capturedUser, "CÂU HỎI:")
}

func TestComposeConversationSummaryIncluded(t *testing.T) {
	var capturedUser string
	client := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		capturedUser = user
		return "trả lời [1]", nil
	})
	c := New(client, zap.NewNop())

	_, err := c.Compose(context.Background(), "câu hỏi tiếp theo", "người dùng đã hỏi về Điều 14", fixturePassages(), time.Second)
	require.NoError(t, err)
	assert.Contains(t, capturedUser, "TÓM TẮT HỘI THOẠI TRƯỚC")
	assert.Contains(t, capturedUser, "Điều 14")
}

func TestComposeOutOfRangeMarkersIgnored(t *testing.T) {
	client := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		return "Xem [1] và [7] và [0].", nil
	})
	c := New(client, zap.NewNop())

	result, err := c.Compose(context.Background(), "q", "", fixturePassages(), time.Second)
	require.NoError(t, err)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "p1", result.Citations[0].PassageID)
}

func TestComposeNoContextRefuses(t *testing.T) {
	called := false
	client := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		called = true
		return "", nil
	})
	c := New(client, zap.NewNop())

	result, err := c.Compose(context.Background(), "q", "", nil, time.Second)
	require.NoError(t, err)
	assert.False(t, called, "no LLM call without context")
	assert.Contains(t, result.AnswerText, "chưa tìm thấy quy định")
	assert.Empty(t, result.Citations)
}

func TestComposeGenerationFailureKeepsPassages(t *testing.T) {
	client := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		return "", errors.New("llm down")
	})
	c := New(client, zap.NewNop())

	result, err := c.Compose(context.Background(), "q", "", fixturePassages(), time.Second)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.True(t, result.GenerationFailed)
	assert.Len(t, result.SupportingContext, 2)
}

func TestComposeTimeoutApplied(t *testing.T) {
	client := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		select {
		case <-time.After(2 * time.Second):
			return "muộn", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	c := New(client, zap.NewNop())

	start := time.Now()
	result, err := c.Compose(context.Background(), "q", "", fixturePassages(), 50*time.Millisecond)
	assert.Error(t, err)
	assert.True(t, result.GenerationFailed)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBuildUserPromptOrdersPassages(t *testing.T) {
	prompt := buildUserPrompt("q", "", fixturePassages())
	first := strings.Index(prompt, "[1]")
	second := strings.Index(prompt, "[2]")
	assert.Greater(t, second, first)
}
