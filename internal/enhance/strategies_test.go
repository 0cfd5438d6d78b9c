package enhance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatFunc adapts a function to llm.Client for tests.
type chatFunc func(ctx context.Context, system, user string) (string, error)

func (f chatFunc) Chat(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

func TestMultiQueryParsesLines(t *testing.T) {
	client := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		return "1. Thời hạn bảo đảm dự thầu là bao lâu?\n- Bảo đảm dự thầu có hiệu lực trong bao lâu?\n\nHiệu lực của bảo đảm dự thầu kéo dài bao lâu?", nil
	})

	s := NewMultiQuery(client)
	variants, err := s.Variants(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Thời hạn bảo đảm dự thầu là bao lâu?",
		"Bảo đảm dự thầu có hiệu lực trong bao lâu?",
		"Hiệu lực của bảo đảm dự thầu kéo dài bao lâu?",
	}, variants, "list markers must be stripped and blank lines dropped")
}

func TestMultiQueryCapsAtFive(t *testing.T) {
	client := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		return "a\nb\nc\nd\ne\nf\ng", nil
	})
	variants, err := NewMultiQuery(client).Variants(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	assert.Len(t, variants, 5)
}

func TestHyDEReturnsSinglePassage(t *testing.T) {
	client := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		return "Theo quy định, thời hạn hiệu lực của bảo đảm dự thầu...\nđược tính từ ngày đóng thầu.", nil
	})
	variants, err := NewHyDE(client).Variants(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Contains(t, variants[0], "bảo đảm dự thầu")
}

func TestStepBackReturnsOneQuestion(t *testing.T) {
	client := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		return "Quy định chung về bảo đảm dự thầu là gì?\nDòng thừa bị bỏ.", nil
	})
	variants, err := NewStepBack(client).Variants(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Quy định chung về bảo đảm dự thầu là gì?"}, variants)
}

func TestDecomposeCapsAtFour(t *testing.T) {
	client := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		return "một?\nhai?\nba?\nbốn?\nnăm?", nil
	})
	variants, err := NewDecompose(client).Variants(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	assert.Len(t, variants, 4)
}

func TestStrategyNames(t *testing.T) {
	client := chatFunc(func(ctx context.Context, system, user string) (string, error) { return "", nil })
	assert.Equal(t, StrategyMultiQuery, NewMultiQuery(client).Name())
	assert.Equal(t, StrategyHyDE, NewHyDE(client).Name())
	assert.Equal(t, StrategyStepBack, NewStepBack(client).Name())
	assert.Equal(t, StrategyDecompose, NewDecompose(client).Name())
}
