package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexanalyzer/logic/chat/chattest"
	"lexanalyzer/types"
)

func comparisons(n, high int, scores ...float64) []types.Comparison {
	out := make([]types.Comparison, n)
	for i := range out {
		lvl := types.RiskLow
		if i < high {
			lvl = types.RiskHigh
		}
		out[i] = types.Comparison{
			Clause: types.Clause{Type: types.ClausePayment, Text: fmt.Sprintf("clause %d", i), RiskLevel: lvl},
		}
		if i < len(scores) {
			out[i].Comparison.FavorabilityScore = scores[i]
		}
		out[i].Comparison.Risks = []string{fmt.Sprintf("risk-%d-a", i), fmt.Sprintf("risk-%d-b", i), fmt.Sprintf("risk-%d-c", i)}
	}
	return out
}

func TestAssessEmpty(t *testing.T) {
	llm := chattest.Reply(`{"overall_risk": "low"}`)
	got := New(llm).Assess(context.Background(), nil)
	assert.Equal(t, Unknown(), got)
	assert.Equal(t, 0.5, got.RiskScore)
	assert.Zero(t, llm.CallCount())
}

// Ten comparisons, five high risk, average favorability -0.2.
func TestAssessFallbackFormula(t *testing.T) {
	comps := comparisons(10, 5, -0.2, -0.2, -0.2, -0.2, -0.2, -0.2, -0.2, -0.2, -0.2, -0.2)

	stats := ComputeStats(comps)
	assert.Equal(t, 5, stats.HighRisk)
	assert.InDelta(t, 0.5, stats.HighRiskRatio, 1e-9)
	assert.InDelta(t, -0.2, stats.AvgFavorability, 1e-9)

	got := New(chattest.Reply("Error: ollama request failed: connection refused")).Assess(context.Background(), comps)
	assert.Equal(t, types.RiskHigh, got.OverallRisk)
	assert.InDelta(t, 0.54, got.RiskScore, 1e-9)
	assert.Equal(t, "Risk assessment completed", got.ExecutiveSummary)
	assert.Equal(t, []string{}, got.TopRisks)
}

func TestFallbackLevelThresholds(t *testing.T) {
	assert.Equal(t, types.RiskUnknown, FallbackLevel(Stats{}))
	assert.Equal(t, types.RiskHigh, FallbackLevel(Stats{Total: 5, HighRiskRatio: 0.4}))
	assert.Equal(t, types.RiskMedium, FallbackLevel(Stats{Total: 5, HighRiskRatio: 0.2}))
	assert.Equal(t, types.RiskLow, FallbackLevel(Stats{Total: 5, HighRiskRatio: 0.19}))
}

func TestRiskScoreAlwaysInUnitInterval(t *testing.T) {
	for _, fav := range []float64{-50, -1, 0, 1, 50, math.Inf(1), math.Inf(-1)} {
		for _, high := range []int{0, 2, 4} {
			comps := comparisons(4, high, fav, fav, fav, fav)
			score := FallbackScore(ComputeStats(comps))
			assert.GreaterOrEqual(t, score, 0.0, "fav=%v high=%d", fav, high)
			assert.LessOrEqual(t, score, 1.0, "fav=%v high=%d", fav, high)
		}
	}

	mixed := [][]float64{
		{math.Inf(1), math.Inf(-1)},
		{math.NaN(), math.NaN()},
		{math.NaN(), 1},
		{math.Inf(-1), math.NaN(), 0.5},
	}
	for _, favs := range mixed {
		stats := ComputeStats(comparisons(len(favs), 1, favs...))
		assert.False(t, math.IsNaN(stats.AvgFavorability), "favs=%v", favs)
		assert.GreaterOrEqual(t, stats.AvgFavorability, -1.0, "favs=%v", favs)
		assert.LessOrEqual(t, stats.AvgFavorability, 1.0, "favs=%v", favs)
		score := FallbackScore(stats)
		assert.False(t, math.IsNaN(score), "favs=%v", favs)
		assert.GreaterOrEqual(t, score, 0.0, "favs=%v", favs)
		assert.LessOrEqual(t, score, 1.0, "favs=%v", favs)
	}
	assert.InDelta(t, 0.0, ComputeStats(comparisons(2, 0, math.Inf(1), math.Inf(-1))).AvgFavorability, 1e-9)
	assert.Equal(t, 0.5, clamp01(math.NaN()))

	// a backend failure on top of non-finite clause scores still yields a finite, encodable result
	got := New(chattest.Reply("Error: model unavailable")).Assess(context.Background(), comparisons(2, 1, math.Inf(1), math.NaN()))
	assert.False(t, math.IsNaN(got.RiskScore))
	assert.GreaterOrEqual(t, got.RiskScore, 0.0)
	assert.LessOrEqual(t, got.RiskScore, 1.0)
	_, err := json.Marshal(got)
	assert.NoError(t, err)

	for _, reply := range []string{`{"risk_score": 3.5}`, `{"risk_score": -2}`, `{"risk_score": "0.7"}`} {
		got := New(chattest.Reply(reply)).Assess(context.Background(), comparisons(2, 1))
		assert.GreaterOrEqual(t, got.RiskScore, 0.0, reply)
		assert.LessOrEqual(t, got.RiskScore, 1.0, reply)
	}
}

func TestAssessUsesModelFields(t *testing.T) {
	llm := chattest.Reply(`{"overall_risk": "Medium", "risk_score": 0.61,
		"top_risks": ["a","b","c","d","e","f","g"],
		"recommendations": ["r1"],
		"executive_summary": "Moderate exposure."}`)
	got := New(llm).Assess(context.Background(), comparisons(3, 0))

	assert.Equal(t, types.RiskMedium, got.OverallRisk)
	assert.InDelta(t, 0.61, got.RiskScore, 1e-9)
	assert.Len(t, got.TopRisks, 5)
	assert.Equal(t, []string{"r1"}, got.Recommendations)
	assert.Equal(t, "Moderate exposure.", got.ExecutiveSummary)

	calls := llm.Calls()
	require.Len(t, calls, 1)
	assert.InDelta(t, 0.3, calls[0].Options.Temperature, 1e-6)
	assert.Equal(t, 1500, calls[0].Options.MaxTokens)
}

func TestAssessNullFieldsKeepComputedValues(t *testing.T) {
	comps := comparisons(5, 2, -0.5)
	stats := ComputeStats(comps)
	got := New(chattest.Reply(`{"overall_risk": null, "risk_score": null, "top_risks": null, "executive_summary": null}`)).
		Assess(context.Background(), comps)

	assert.Equal(t, FallbackLevel(stats), got.OverallRisk)
	assert.InDelta(t, FallbackScore(stats), got.RiskScore, 1e-9)
	assert.NotZero(t, got.RiskScore)
	assert.Equal(t, []string{}, got.TopRisks)
	assert.Equal(t, "Risk assessment completed", got.ExecutiveSummary)
}

func TestAssessUnrecognisedLevelFallsBack(t *testing.T) {
	got := New(chattest.Reply(`{"overall_risk": "catastrophic"}`)).Assess(context.Background(), comparisons(5, 5))
	assert.Equal(t, types.RiskHigh, got.OverallRisk)
}

func TestFormatComparisonsCapsContext(t *testing.T) {
	out := FormatComparisons(comparisons(12, 0))
	assert.Contains(t, out, "10. Clause Type: payment")
	assert.NotContains(t, out, "11. Clause Type")
	assert.Contains(t, out, "Key Issues: risk-0-a, risk-0-b\n")
	assert.NotContains(t, out, "risk-0-c")
}
