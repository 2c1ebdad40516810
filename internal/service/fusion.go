package service

import (
	"fmt"

	"github.com/Harshitk-cp/psychograph/internal/domain"
)

// LLMConfidenceFloor is the minimum effective confidence of an LLM indicator
// on a contested key.
const LLMConfidenceFloor = 0.7

// LLMAnalysis is a validated model answer.
type LLMAnalysis struct {
	Indicators  domain.IndicatorSet
	Motivations []string
	Reasoning   string
}

type FusionInput struct {
	Heuristic    domain.IndicatorSet
	ML           domain.IndicatorSet
	LLM          *LLMAnalysis
	Signals      Signals
	Degradations []string
	// Contested keys are the ones the LLM was called to settle.
	Contested []domain.IndicatorKey
}

type FusionEngine struct{}

type fusionLayer struct {
	set   domain.IndicatorSet
	isLLM bool
}

// Fuse picks the highest-confidence indicator per key across layers, with
// earlier layers winning ties. On contested keys the LLM indicator is ranked
// at no less than LLMConfidenceFloor and wins ties. Winners keep their raw
// confidence. The result has no tenant, user or cycle set.
func (FusionEngine) Fuse(in FusionInput) *domain.FusedProfile {
	layers := []fusionLayer{{set: in.Heuristic}, {set: in.ML}}
	if in.LLM != nil {
		layers = append(layers, fusionLayer{set: in.LLM.Indicators, isLLM: true})
	}

	contested := make(map[domain.IndicatorKey]bool, len(in.Contested))
	for _, key := range in.Contested {
		contested[key] = true
	}

	winners := make(map[domain.IndicatorKey]domain.Indicator)
	winnerLayer := make(map[domain.IndicatorKey]int)

	for _, key := range domain.AllIndicatorKeys() {
		found := false
		var best domain.Indicator
		var bestRank float64
		bestLayer := -1

		for i, l := range layers {
			ind, ok := l.set.Get(key)
			if !ok {
				continue
			}
			rank := ind.Confidence
			favored := l.isLLM && contested[key]
			if favored && rank < LLMConfidenceFloor {
				rank = LLMConfidenceFloor
			}
			if !found || rank > bestRank || (favored && rank == bestRank) {
				best, bestRank, bestLayer, found = ind, rank, i, true
			}
		}
		if found {
			winners[key] = best
			winnerLayer[key] = bestLayer
		}
	}

	p := &domain.FusedProfile{
		Indicators:   winners,
		Confidence:   meanConfidence(winners),
		Provenance:   provenance(layers, winnerLayer),
		Degradations: in.Degradations,
	}

	if in.LLM != nil && in.LLM.Reasoning != "" {
		p.Evidence = in.LLM.Reasoning
		p.Motivations = in.LLM.Motivations
	} else {
		if in.LLM != nil {
			p.Motivations = in.LLM.Motivations
		}
		p.Evidence = describeSignals(in.Signals, !in.ML.IsEmpty())
	}
	return p
}

func meanConfidence(winners map[domain.IndicatorKey]domain.Indicator) float64 {
	if len(winners) == 0 {
		return 0
	}
	var sum float64
	for _, ind := range winners {
		sum += ind.Confidence
	}
	return clamp(sum/float64(len(winners)), 0, 1)
}

func provenance(layers []fusionLayer, winnerLayer map[domain.IndicatorKey]int) []string {
	used := make(map[int]bool, len(winnerLayer))
	for _, i := range winnerLayer {
		used[i] = true
	}

	var out []string
	seen := make(map[string]bool)
	for i, l := range layers {
		if !used[i] || seen[l.set.Model] {
			continue
		}
		seen[l.set.Model] = true
		out = append(out, l.set.Model)
	}
	return out
}

func describeSignals(s Signals, withML bool) string {
	source := "heuristic rules"
	if withML {
		source = "heuristic rules and ML scoring"
	}
	return fmt.Sprintf(
		"Derived from %s over %d events: %d clicks, %d hovers, %d scrolls, %d pricing views, %d checkout starts, %d completions, average dwell %.1fs.",
		source, s.Events, s.Clicks, s.Hovers, s.Scrolls, s.PricingViews, s.CheckoutStarts, s.CheckoutCompletions, s.AvgDwellSeconds,
	)
}
