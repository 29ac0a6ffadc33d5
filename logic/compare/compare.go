// Package compare judges one new clause against its nearest historical clauses.
package compare

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

// MaxMatches is the number of historical clauses shown to the model.
const MaxMatches = 3

const matchTextLimit = 300

// NoHistory is returned when there is nothing to compare against.
func NoHistory() types.ComparisonResult {
	return types.ComparisonResult{
		FavorabilityScore: 0.0,
		Comparison:        "No historical data available for comparison",
		KeyDifferences:    []string{},
		Risks:             []string{},
		Recommendation:    "First contract of this type",
	}
}

// noClause is returned for an empty clause.
func noClause() types.ComparisonResult {
	return types.ComparisonResult{
		FavorabilityScore: 0.0,
		Comparison:        "No similar clauses found for comparison",
		KeyDifferences:    []string{},
		Risks:             []string{},
		Recommendation:    "Unable to compare",
	}
}

// Defaults fills fields the model did not return.
func Defaults() types.ComparisonResult {
	return types.ComparisonResult{
		FavorabilityScore: 0.0,
		Comparison:        "Analysis unavailable",
		KeyDifferences:    []string{},
		Risks:             []string{},
		Recommendation:    "Review carefully",
	}
}

type Comparator struct {
	llm chat.Completer
}

func New(llm chat.Completer) *Comparator {
	return &Comparator{llm: llm}
}

// Compare never calls the model when clause or similar is empty.
func (c *Comparator) Compare(ctx context.Context, clause types.Clause, similar []types.HistoricalMatch, opts ...chat.Option) types.ComparisonResult {
	if strings.TrimSpace(clause.Text) == "" {
		return noClause()
	}
	if len(similar) == 0 {
		return NoHistory()
	}
	if len(similar) > MaxMatches {
		similar = similar[:MaxMatches]
	}

	prompt, err := vars.Render(vars.COMPARE_CLAUSE, map[string]string{
		"Type":      string(clause.Type),
		"Text":      clause.Text,
		"RiskLevel": string(clause.RiskLevel),
		"Similar":   FormatSimilar(similar),
	})
	if err != nil {
		logger.WithContext(ctx).Error("render comparison prompt", zap.Error(err))
		return Defaults()
	}

	opts = append(opts, chat.WithTemperature(0.4))
	raw := c.llm.Complete(ctx, prompt, opts...)
	obj := chat.ExtractJSON(raw)
	if obj == nil {
		logger.WithContext(ctx).Warn("comparison output unusable, using defaults",
			zap.String("clause_type", string(clause.Type)), zap.Bool("backend_error", chat.IsError(raw)))
	}
	return Merge(obj)
}

// Merge overlays parsed fields on Defaults. A nil obj yields Defaults.
// The score is clamped to [-1, 1].
func Merge(obj chat.Object) types.ComparisonResult {
	res := Defaults()
	if obj == nil {
		return res
	}
	if f, ok := obj.Float("favorability_score"); ok && !math.IsNaN(f) {
		res.FavorabilityScore = math.Max(-1, math.Min(1, f))
	}
	if s, ok := obj.String("comparison"); ok {
		res.Comparison = s
	}
	if l, ok := obj.Strings("key_differences"); ok {
		res.KeyDifferences = l
	}
	if l, ok := obj.Strings("risks"); ok {
		res.Risks = l
	}
	if s, ok := obj.String("recommendation"); ok {
		res.Recommendation = s
	}
	return res
}

// FormatSimilar renders matches as a numbered block for the prompt.
func FormatSimilar(similar []types.HistoricalMatch) string {
	if len(similar) == 0 {
		return "No similar clauses found."
	}
	if len(similar) > MaxMatches {
		similar = similar[:MaxMatches]
	}
	blocks := make([]string, 0, len(similar))
	for i, m := range similar {
		blocks = append(blocks, fmt.Sprintf("\n%d. Contract: %s\n   Similarity: %.1f%%\n   Type: %s\n   Risk Level: %s\n   Text: %s\n",
			i+1,
			orDefault(m.Metadata.ContractName, "Unknown"),
			m.Similarity*100,
			orDefault(m.Metadata.ClauseType, "unknown"),
			orDefault(m.Metadata.RiskLevel, "unknown"),
			truncate(m.Text, matchTextLimit),
		))
	}
	return strings.Join(blocks, "\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
