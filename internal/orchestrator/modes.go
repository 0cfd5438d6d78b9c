package orchestrator

import (
	"time"

	"github.com/lexviet/bidrag/internal/config"
	"github.com/lexviet/bidrag/internal/enhance"
)

// Pipeline modes.
const (
	ModeFast     = "fast"
	ModeBalanced = "balanced"
	ModeQuality  = "quality"
	ModeAdaptive = "adaptive"
)

// Profile is the resolved per-request pipeline shape: which strategies run,
// whether fusion and reranking apply, the candidate count, and the budgets.
type Profile struct {
	Mode       string
	Strategies []string
	Fusion     bool
	Rerank     bool
	K          int
	TopN       int
	Deadline   time.Duration
	CacheTTL   time.Duration
}

// profileFor resolves the static mode table. Adaptive starts from this and
// is refined per query by the complexity plan.
func profileFor(mode string, cfg *config.Config) Profile {
	p := Profile{
		Mode:     mode,
		K:        cfg.ModeRetrieveK(mode),
		TopN:     cfg.Pipeline.TopN,
		Deadline: cfg.ModeDeadline(mode),
		CacheTTL: cfg.ModeTTL(mode),
	}
	switch mode {
	case ModeFast:
		// no enhancement, no rerank
	case ModeBalanced:
		p.Strategies = []string{enhance.StrategyMultiQuery, enhance.StrategyStepBack}
		p.Rerank = true
	case ModeQuality:
		p.Strategies = []string{
			enhance.StrategyMultiQuery,
			enhance.StrategyHyDE,
			enhance.StrategyStepBack,
			enhance.StrategyDecompose,
		}
		p.Fusion = true
		p.Rerank = true
	case ModeAdaptive:
		// refined by PlanAdaptive at request time
		p.Rerank = true
	}
	return p
}
