// Package retrieval is the boundary between the analysis pipeline and the
// historical clause corpus.
package retrieval

import (
	"context"

	"lexanalyzer/types"
)

const (
	// SearchTopK is how many neighbours are requested per clause before the
	// current contract is filtered out.
	SearchTopK = 5
	KeepTopK   = 3
)

// ClauseIndex persists clauses and answers similarity queries. Both calls
// report failures through the Status field instead of an error.
type ClauseIndex interface {
	IndexContract(ctx context.Context, contractID, contractName, knowledgeBaseID string, clauses []types.Clause) types.IndexResult
	SearchSimilarClauses(ctx context.Context, query string, topK int, filter *types.SearchFilter) types.SearchResult
}

// Similar returns up to KeepTopK matches for clause text, never including
// clauses of contractID. A failed search yields no matches.
func Similar(ctx context.Context, idx ClauseIndex, text, contractID, knowledgeBaseID string) []types.HistoricalMatch {
	res := idx.SearchSimilarClauses(ctx, text, SearchTopK, &types.SearchFilter{
		ExcludeContractID: contractID,
		KnowledgeBaseID:   knowledgeBaseID,
	})
	if res.Status != types.OpSuccess {
		return nil
	}
	return Exclude(res.Results, contractID, KeepTopK)
}

// Exclude drops matches belonging to contractID and keeps the first limit
// of the rest, preserving order.
func Exclude(matches []types.HistoricalMatch, contractID string, limit int) []types.HistoricalMatch {
	out := make([]types.HistoricalMatch, 0, limit)
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		if contractID != "" && m.Metadata.ContractID == contractID {
			continue
		}
		out = append(out, m)
	}
	return out
}
