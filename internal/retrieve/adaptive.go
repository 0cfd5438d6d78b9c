package retrieve

import (
	"strings"
	"unicode"
)

// Complexity scoring weights. Length, comparison/enumeration cues, and
// named entities each contribute a bounded share.
const (
	lengthWeight = 0.4
	cueWeight    = 0.4
	entityWeight = 0.2

	// EnhanceThreshold is the complexity above which enhancement pays for
	// itself; below it a direct search is both faster and as accurate.
	EnhanceThreshold = 0.4
)

// comparisonCues are Vietnamese markers of comparative or enumerative
// questions, which need wider retrieval.
var comparisonCues = []string{
	"so sánh", "khác nhau", "khác gì", "giống nhau", "phân biệt",
	"liệt kê", "các loại", "những loại", "bao gồm", "gồm những",
	"trường hợp nào", "điều kiện nào", "và", "hoặc", "đối chiếu",
	"ưu điểm", "nhược điểm", "lần lượt", "từng bước", "quy trình",
}

// AdaptivePlan is the outcome of complexity scoring: how many candidates to
// retrieve and whether enhancement and reranking are worth their latency.
type AdaptivePlan struct {
	Complexity float64
	K          int
	Enhance    bool
	Rerank     bool
}

// PlanAdaptive scores the query's complexity in [0,1] and interpolates k on
// the [minK, maxK] ramp. Enhancement engages above EnhanceThreshold;
// reranking whenever k reaches 5.
func PlanAdaptive(query string, minK, maxK int) AdaptivePlan {
	c := Complexity(query)
	k := minK + int(c*float64(maxK-minK)+0.5)
	if k < minK {
		k = minK
	}
	if k > maxK {
		k = maxK
	}
	return AdaptivePlan{
		Complexity: c,
		K:          k,
		Enhance:    c >= EnhanceThreshold,
		Rerank:     k >= 5,
	}
}

// Complexity estimates query complexity in [0,1] from normalized length,
// comparison/enumeration cues, and a naive named-entity count. Vietnamese
// syllables are space-separated, so word count approximates syllable count.
func Complexity(query string) float64 {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0
	}
	lower := strings.ToLower(query)
	words := strings.Fields(query)

	// 25+ syllables saturates the length signal.
	lengthScore := float64(len(words)) / 25.0
	if lengthScore > 1 {
		lengthScore = 1
	}

	cueCount := 0
	for _, cue := range comparisonCues {
		if strings.Contains(lower, cue) {
			cueCount++
		}
	}
	cueScore := float64(cueCount) / 3.0
	if cueScore > 1 {
		cueScore = 1
	}

	entityScore := float64(countEntities(words)) / 3.0
	if entityScore > 1 {
		entityScore = 1
	}

	return lengthWeight*lengthScore + cueWeight*cueScore + entityWeight*entityScore
}

// countEntities counts capitalized tokens past the first word. Vietnamese
// proper nouns (law names, agencies) capitalize each syllable, so runs of
// capitalized tokens count once.
func countEntities(words []string) int {
	count := 0
	inRun := false
	for i, w := range words {
		r := []rune(w)
		capitalized := len(r) > 0 && unicode.IsUpper(r[0])
		if capitalized && i > 0 {
			if !inRun {
				count++
				inRun = true
			}
		} else {
			inRun = false
		}
	}
	return count
}
