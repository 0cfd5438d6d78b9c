package retrieve

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexviet/bidrag/internal/vectorstore"
)

// stubEmbedder returns a deterministic vector per text.
type stubEmbedder struct {
	err error
}

func (e *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text))}, nil
}

func (e *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *stubEmbedder) Dimension() int { return 1 }

// stubStore returns canned results keyed by the query vector's first value
// (i.e., by variant length), or the default list.
type stubStore struct {
	mu       sync.Mutex
	results  map[float32][]vectorstore.ScoredPassage
	fallback []vectorstore.ScoredPassage
	err      error
	calls    int
}

func (s *stubStore) Search(ctx context.Context, embedding []float32, k int, filter *vectorstore.Filter) ([]vectorstore.ScoredPassage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if list, ok := s.results[embedding[0]]; ok {
		if len(list) > k {
			list = list[:k]
		}
		return list, nil
	}
	list := s.fallback
	if len(list) > k {
		list = list[:k]
	}
	return list, nil
}

func (s *stubStore) Fetch(ctx context.Context, ids []string) ([]vectorstore.Passage, error) {
	return nil, nil
}

func (s *stubStore) Dimension(ctx context.Context) (int, error) { return 1, nil }

func (s *stubStore) Close() error { return nil }

func sp(id string, score float32) vectorstore.ScoredPassage {
	return vectorstore.ScoredPassage{Passage: vectorstore.Passage{ID: id}, Score: score}
}

func TestBaseRetrieve(t *testing.T) {
	store := &stubStore{fallback: []vectorstore.ScoredPassage{sp("a", 0.9), sp("b", 0.8)}}
	r := NewBase(&stubEmbedder{}, store)

	out, err := r.Retrieve(context.Background(), []string{"câu hỏi"}, 5, nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, store.calls)

	_, err = r.Retrieve(context.Background(), nil, 5, nil)
	assert.ErrorIs(t, err, ErrNoQuery)
}

func TestEnhancedUnionDedupesAndTruncates(t *testing.T) {
	// Variant "ab" (len 2) and "abcd" (len 4) hit different lists.
	store := &stubStore{results: map[float32][]vectorstore.ScoredPassage{
		2: {sp("x", 0.9), sp("y", 0.5)},
		4: {sp("y", 0.8), sp("z", 0.7)},
	}}
	r := NewEnhanced(&stubEmbedder{}, store, 2)

	out, err := r.Retrieve(context.Background(), []string{"ab", "abcd"}, 3, nil)
	require.NoError(t, err)

	require.Len(t, out, 3)
	// y keeps its max score 0.8 and sorts after x.
	assert.Equal(t, "x", out[0].ID)
	assert.Equal(t, "y", out[1].ID)
	assert.Equal(t, float32(0.8), out[1].Score)
	assert.Equal(t, "z", out[2].ID)

	seen := map[string]bool{}
	for _, p := range out {
		assert.False(t, seen[p.ID], "duplicate passage %s", p.ID)
		seen[p.ID] = true
	}
}

func TestEnhancedAllVariantsFailing(t *testing.T) {
	store := &stubStore{err: errors.New("store down")}
	r := NewEnhanced(&stubEmbedder{}, store, 2)
	_, err := r.Retrieve(context.Background(), []string{"a", "b"}, 3, nil)
	assert.Error(t, err)
}

func TestFusionRRFMath(t *testing.T) {
	lists := [][]vectorstore.ScoredPassage{
		{sp("a", 0.9), sp("b", 0.8)},
		{sp("b", 0.7), sp("c", 0.6)},
	}
	fused := rrf(lists, 60)

	require.Len(t, fused, 3)
	// b appears in both lists: 1/62 + 1/61 beats a's 1/61 and c's 1/62.
	assert.Equal(t, "b", fused[0].ID)
	assert.Equal(t, "a", fused[1].ID)
	assert.Equal(t, "c", fused[2].ID)

	require.NotNil(t, fused[0].FusionScore)
	expected := float32(1.0/62.0 + 1.0/61.0)
	assert.InDelta(t, expected, *fused[0].FusionScore, 1e-6)
	// b keeps its max similarity across lists.
	assert.Equal(t, float32(0.8), fused[0].Score)
}

func TestFusionTieBreaks(t *testing.T) {
	// a and b have identical ranks in symmetric lists: equal fusion weight,
	// equal max score, so ID ascending decides.
	lists := [][]vectorstore.ScoredPassage{
		{sp("b", 0.5)},
		{sp("a", 0.5)},
	}
	fused := rrf(lists, 60)
	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].ID)
}

func TestFusionRetrieve(t *testing.T) {
	store := &stubStore{results: map[float32][]vectorstore.ScoredPassage{
		2: {sp("x", 0.9), sp("y", 0.5)},
		4: {sp("y", 0.8), sp("z", 0.7)},
	}}
	r := NewFusion(&stubEmbedder{}, store, 2, 0) // 0 selects the default C

	out, err := r.Retrieve(context.Background(), []string{"ab", "abcd"}, 2, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "y", out[0].ID, "passage in both lists wins")
}

func TestPlanAdaptive(t *testing.T) {
	trivial := PlanAdaptive("bảo đảm dự thầu", 3, 10)
	assert.LessOrEqual(t, trivial.K, 5)
	assert.False(t, trivial.Enhance)

	complex := PlanAdaptive(
		"So sánh điều kiện tham gia đấu thầu và các trường hợp nào bị cấm thầu theo Luật Đấu Thầu và Nghị Định 24, liệt kê từng bước quy trình xử lý khi nhà thầu vi phạm",
		3, 10)
	assert.Greater(t, complex.Complexity, trivial.Complexity)
	assert.GreaterOrEqual(t, complex.K, 8)
	assert.True(t, complex.Enhance)
	assert.True(t, complex.Rerank)
}

func TestComplexityBounds(t *testing.T) {
	assert.Equal(t, 0.0, Complexity(""))
	assert.Equal(t, 0.0, Complexity("   "))

	long := Complexity("so sánh và liệt kê các loại bảo đảm dự thầu bảo đảm thực hiện hợp đồng theo Luật Đấu Thầu Nghị Định hướng dẫn chi tiết thi hành một số điều về lựa chọn nhà thầu")
	assert.LessOrEqual(t, long, 1.0)
	assert.Greater(t, long, 0.5)
}
