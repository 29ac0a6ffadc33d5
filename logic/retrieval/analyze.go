package retrieval

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"lexanalyzer/logic/chat"
	"lexanalyzer/pkg/logger"
	"lexanalyzer/types"
	"lexanalyzer/vars"
)

// AnalyzeQuery 意图识别: rewrites a free-text question into a semantic query,
// BM25 keywords and optional clause filters. Any model failure degrades to
// searching with the raw query.
func AnalyzeQuery(ctx context.Context, llm chat.Completer, query string) *types.QueryIntent {
	fallback := &types.QueryIntent{SemanticQuery: query, Keywords: strings.Fields(query)}

	prompt := vars.ANALYZE_QUERY + "\nUser question: " + query + "\n"
	raw := llm.Complete(ctx, prompt, chat.WithTemperature(0.1), chat.WithMaxTokens(300))
	obj := chat.ExtractJSON(raw)
	if obj == nil {
		logger.WithContext(ctx).Warn("query analysis failed, using raw query", zap.String("raw", truncate(raw, 200)))
		return fallback
	}

	intent := &types.QueryIntent{SemanticQuery: query, Keywords: fallback.Keywords}
	if s, ok := obj.String("semantic_query"); ok && strings.TrimSpace(s) != "" {
		intent.SemanticQuery = strings.TrimSpace(s)
	}
	if kw, ok := obj.Strings("keywords"); ok && len(kw) > 0 {
		intent.Keywords = kw
	}
	if s, ok := obj.String("clause_type"); ok && strings.TrimSpace(s) != "" {
		if ct := types.ParseClauseType(s); ct != types.ClauseOther {
			intent.ClauseType = ct
		}
	}
	if s, ok := obj.String("risk_level"); ok {
		if lvl, ok := types.ParseRiskLevel(s); ok && lvl != types.RiskUnknown {
			intent.RiskLevel = lvl
		}
	}
	return intent
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
