// Package risk aggregates per-clause comparisons into one contract-level
// assessment.
package risk

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"lexanalyzer/logic/chat"
	"lexanalyzer/pkg/logger"
	"lexanalyzer/types"
	"lexanalyzer/vars"
)

const (
	promptComparisons = 10
	risksPerClause    = 2
	maxListItems      = 5
)

// Unknown is the neutral prior used when there is nothing to assess.
func Unknown() types.RiskAssessment {
	return types.RiskAssessment{
		OverallRisk:      types.RiskUnknown,
		RiskScore:        0.5,
		TopRisks:         []string{},
		Recommendations:  []string{},
		ExecutiveSummary: "No data available for risk assessment",
	}
}

// Stats are the precursors computed over the full comparison set.
type Stats struct {
	Total           int
	HighRisk        int
	HighRiskRatio   float64
	AvgFavorability float64
}

func ComputeStats(comparisons []types.Comparison) Stats {
	s := Stats{Total: len(comparisons)}
	if s.Total == 0 {
		return s
	}
	var sum float64
	for _, c := range comparisons {
		if c.Clause.RiskLevel == types.RiskHigh {
			s.HighRisk++
		}
		sum += favorability(c.Comparison.FavorabilityScore)
	}
	s.HighRiskRatio = float64(s.HighRisk) / float64(s.Total)
	s.AvgFavorability = sum / float64(s.Total)
	return s
}

// FallbackLevel: high at >=40% high-risk clauses, medium at >=20%.
func FallbackLevel(s Stats) types.RiskLevel {
	switch {
	case s.Total == 0:
		return types.RiskUnknown
	case s.HighRiskRatio >= 0.4:
		return types.RiskHigh
	case s.HighRiskRatio >= 0.2:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// FallbackScore blends the high-risk ratio (0.6) with favorability mapped
// from [-1,1] onto [0,1] (0.4), clamped to [0,1].
func FallbackScore(s Stats) float64 {
	if s.Total == 0 {
		return 0.5
	}
	score := 0.6*s.HighRiskRatio + 0.4*((1-s.AvgFavorability)/2)
	return clamp01(score)
}

type Aggregator struct {
	llm chat.Completer
}

func New(llm chat.Completer) *Aggregator {
	return &Aggregator{llm: llm}
}

func (a *Aggregator) Assess(ctx context.Context, comparisons []types.Comparison, opts ...chat.Option) types.RiskAssessment {
	if len(comparisons) == 0 {
		return Unknown()
	}
	stats := ComputeStats(comparisons)

	prompt, err := vars.Render(vars.ASSESS_RISK, map[string]any{
		"Total":           stats.Total,
		"HighRisk":        stats.HighRisk,
		"HighRiskRatio":   stats.HighRiskRatio,
		"AvgFavorability": stats.AvgFavorability,
		"Details":         FormatComparisons(comparisons),
	})
	if err != nil {
		logger.WithContext(ctx).Error("render risk prompt", zap.Error(err))
		return Merge(nil, stats)
	}

	opts = append(opts, chat.WithTemperature(0.3), chat.WithMaxTokens(1500))
	raw := a.llm.Complete(ctx, prompt, opts...)
	obj := chat.ExtractJSON(raw)
	if obj == nil {
		logger.WithContext(ctx).Warn("risk output unusable, using computed assessment",
			zap.Float64("high_risk_ratio", stats.HighRiskRatio), zap.Float64("avg_favorability", stats.AvgFavorability))
	}
	return Merge(obj, stats)
}

// Merge overlays parsed fields on the values computed from stats.
func Merge(obj chat.Object, stats Stats) types.RiskAssessment {
	res := types.RiskAssessment{
		OverallRisk:      FallbackLevel(stats),
		RiskScore:        FallbackScore(stats),
		TopRisks:         []string{},
		Recommendations:  []string{},
		ExecutiveSummary: "Risk assessment completed",
	}
	if obj == nil {
		return res
	}
	if s, ok := obj.String("overall_risk"); ok {
		if lvl, ok := types.ParseRiskLevel(s); ok {
			res.OverallRisk = lvl
		}
	}
	if f, ok := obj.Float("risk_score"); ok && !math.IsNaN(f) {
		res.RiskScore = clamp01(f)
	}
	if l, ok := obj.Strings("top_risks"); ok {
		res.TopRisks = capList(l)
	}
	if l, ok := obj.Strings("recommendations"); ok {
		res.Recommendations = capList(l)
	}
	if s, ok := obj.String("executive_summary"); ok && strings.TrimSpace(s) != "" {
		res.ExecutiveSummary = s
	}
	return res
}

// FormatComparisons renders at most the first ten comparisons for the prompt.
func FormatComparisons(comparisons []types.Comparison) string {
	if len(comparisons) > promptComparisons {
		comparisons = comparisons[:promptComparisons]
	}
	blocks := make([]string, 0, len(comparisons))
	for i, c := range comparisons {
		issues := c.Comparison.Risks
		if len(issues) > risksPerClause {
			issues = issues[:risksPerClause]
		}
		blocks = append(blocks, fmt.Sprintf("\n%d. Clause Type: %s\n   Risk Level: %s\n   Favorability: %.2f\n   Key Issues: %s\n",
			i+1, c.Clause.Type, c.Clause.RiskLevel, c.Comparison.FavorabilityScore, strings.Join(issues, ", ")))
	}
	return strings.Join(blocks, "\n")
}

func capList(l []string) []string {
	if len(l) > maxListItems {
		return l[:maxListItems]
	}
	return l
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) {
		return 0.5
	}
	return math.Max(0, math.Min(1, f))
}

// favorability clamps a per-clause score to [-1,1]; NaN counts as neutral.
func favorability(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(-1, math.Min(1, f))
}
