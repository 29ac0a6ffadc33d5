package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"lexanalyzer/logic/chat"
	"lexanalyzer/logic/ingestion/transform/score"
	"lexanalyzer/logic/retrieval"
	"lexanalyzer/metrics"
	"lexanalyzer/pkg/logger"
	"lexanalyzer/storage/milvus"
	"lexanalyzer/types"
	"lexanalyzer/vars"
)

const (
	DefaultTopK = 5
	MaxTopK     = 20
)

// VectorStore is the authoritative clause corpus.
type VectorStore interface {
	Store(ctx context.Context, docs []*schema.Document) ([]string, error)
	Search(ctx context.Context, query string, topK int, expr string) ([]*schema.Document, error)
	Query(ctx context.Context, expr string) ([]*schema.Document, error)
	Delete(ctx context.Context, expr string) (int, error)
	Count(ctx context.Context) (int64, error)
	Collection() string
}

// KeywordStore is the optional BM25 mirror.
type KeywordStore interface {
	Store(ctx context.Context, docs []*schema.Document) error
	Search(ctx context.Context, query string, keywords []string, filter *types.SearchFilter, topK int) ([]*schema.Document, error)
	DeleteByContractID(ctx context.Context, contractID string) error
}

// IndexService implements retrieval.ClauseIndex over Milvus, mirroring to
// Elasticsearch when configured.
type IndexService struct {
	vectors  VectorStore
	keywords KeywordStore
	llm      chat.Completer
	metrics  *metrics.Metrics
}

var _ retrieval.ClauseIndex = (*IndexService)(nil)

// NewIndexService wires the stores. keywords and llm may be nil; hybrid
// search then degrades to vector search on the raw query.
func NewIndexService(vectors VectorStore, keywords KeywordStore, llm chat.Completer, m *metrics.Metrics) *IndexService {
	return &IndexService{vectors: vectors, keywords: keywords, llm: llm, metrics: m}
}

// ClampTopK maps non-positive values to the default and caps at MaxTopK.
func ClampTopK(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	return min(k, MaxTopK)
}

func ClauseID(contractID string, i int) string {
	return fmt.Sprintf("%s_clause_%d", contractID, i)
}

func clauseDocs(contractID, contractName, kbID string, clauses []types.Clause) []*schema.Document {
	docs := make([]*schema.Document, 0, len(clauses))
	for i, c := range clauses {
		risk := string(c.RiskLevel)
		if risk == "" {
			risk = string(types.RiskMedium)
		}
		clauseType := string(c.Type)
		if clauseType == "" {
			clauseType = string(types.ClauseOther)
		}
		meta := map[string]any{
			vars.FIELD_CONTRACT_ID:   contractID,
			vars.FIELD_CONTRACT_NAME: contractName,
			vars.FIELD_CLAUSE_TYPE:   clauseType,
			vars.FIELD_RISK_LEVEL:    risk,
			vars.FIELD_POSITION:      i,
		}
		if kbID != "" {
			meta[vars.FIELD_KNOWLEDGE_BASE_ID] = kbID
		}
		docs = append(docs, &schema.Document{ID: ClauseID(contractID, i), Content: c.Text, MetaData: meta})
	}
	return docs
}

func (s *IndexService) IndexContract(ctx context.Context, contractID, contractName, kbID string, clauses []types.Clause) types.IndexResult {
	log := logger.WithContext(ctx)
	if len(clauses) == 0 {
		return types.IndexResult{Status: types.OpSuccess, Message: "no clauses to index"}
	}

	docs := clauseDocs(contractID, contractName, kbID, clauses)
	// 重新索引时先清掉旧条款，否则多出来的旧位置会残留
	if _, err := s.vectors.Delete(ctx, milvus.Eq(vars.FIELD_CONTRACT_ID, contractID)); err != nil {
		s.metrics.ObserveRetrieval("index", types.OpError)
		log.Error("clear previous clauses failed", zap.Error(err))
		return types.IndexResult{Status: types.OpError, Message: err.Error()}
	}
	if _, err := s.vectors.Store(ctx, docs); err != nil {
		s.metrics.ObserveRetrieval("index", types.OpError)
		log.Error("index contract failed", zap.Error(err))
		return types.IndexResult{Status: types.OpError, Message: err.Error()}
	}
	s.metrics.ObserveRetrieval("index", types.OpSuccess)

	if s.keywords != nil {
		if err := s.keywords.DeleteByContractID(ctx, contractID); err != nil {
			log.Warn("es clear failed", zap.Error(err))
		}
		if err := s.keywords.Store(ctx, docs); err != nil {
			log.Warn("es mirror failed", zap.Error(err))
		}
	}
	log.Info("contract indexed", zap.Int("clauses", len(docs)))
	return types.IndexResult{Status: types.OpSuccess, ClausesIndexed: len(docs)}
}

// SearchSimilarClauses returns matches ordered by ascending distance.
// exclude_contract_id is enforced on the results as well as in the query.
func (s *IndexService) SearchSimilarClauses(ctx context.Context, query string, topK int, filter *types.SearchFilter) types.SearchResult {
	topK = ClampTopK(topK)
	if strings.TrimSpace(query) == "" {
		return types.SearchResult{Status: types.OpError, Results: []types.HistoricalMatch{}, Message: "query is empty"}
	}

	docs, err := s.vectors.Search(ctx, query, topK, milvus.BuildExpr(filter))
	if err != nil {
		s.metrics.ObserveRetrieval("search", types.OpError)
		logger.WithContext(ctx).Warn("similarity search failed", zap.Error(err))
		return types.SearchResult{Status: types.OpError, Results: []types.HistoricalMatch{}, Message: err.Error()}
	}
	s.metrics.ObserveRetrieval("search", types.OpSuccess)

	matches := make([]types.HistoricalMatch, 0, len(docs))
	for _, d := range docs {
		matches = append(matches, DocToMatch(d, d.Score()))
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if filter != nil && filter.ExcludeContractID != "" {
		matches = retrieval.Exclude(matches, filter.ExcludeContractID, len(matches))
	}
	return types.SearchResult{Status: types.OpSuccess, Results: matches, Count: len(matches)}
}

// HybridSearch rewrites the query, runs vector and keyword search and fuses
// both lists.
func (s *IndexService) HybridSearch(ctx context.Context, query string, topK int, filter *types.SearchFilter) types.SearchResult {
	topK = ClampTopK(topK)
	if strings.TrimSpace(query) == "" {
		return types.SearchResult{Status: types.OpError, Results: []types.HistoricalMatch{}, Message: "query is empty"}
	}
	log := logger.WithContext(ctx)

	intent := &types.QueryIntent{SemanticQuery: query, Keywords: strings.Fields(query)}
	if s.llm != nil {
		intent = retrieval.AnalyzeQuery(ctx, s.llm, query)
	}
	f := types.SearchFilter{}
	if filter != nil {
		f = *filter
	}
	if f.ClauseType == "" {
		f.ClauseType = string(intent.ClauseType)
	}
	if f.RiskLevel == "" {
		f.RiskLevel = string(intent.RiskLevel)
	}

	milvusDocs, err := s.vectors.Search(ctx, intent.SemanticQuery, topK*2, milvus.BuildExpr(&f))
	if err != nil {
		s.metrics.ObserveRetrieval("hybrid", types.OpError)
		log.Warn("hybrid vector search failed", zap.Error(err))
		return types.SearchResult{Status: types.OpError, Results: []types.HistoricalMatch{}, Message: err.Error()}
	}
	var esDocs []*schema.Document
	if s.keywords != nil {
		esDocs, err = s.keywords.Search(ctx, intent.SemanticQuery, intent.Keywords, &f, topK*2)
		if err != nil {
			log.Warn("hybrid keyword search failed, using vector results only", zap.Error(err))
			esDocs = nil
		}
	}
	s.metrics.ObserveRetrieval("hybrid", types.OpSuccess)

	fused := score.HybridReranker(ctx, milvusDocs, esDocs, &score.HybridRerankerConfig{
		MilvusWeight: 0.6,
		ESWeight:     0.4,
		TopK:         topK * 2,
	})
	matches := make([]types.HistoricalMatch, 0, topK)
	for _, d := range fused {
		m := DocToMatch(d.Document, d.FinalScore)
		if f.ExcludeContractID != "" && m.Metadata.ContractID == f.ExcludeContractID {
			continue
		}
		matches = append(matches, m)
		if len(matches) == topK {
			break
		}
	}
	return types.SearchResult{Status: types.OpSuccess, Results: matches, Count: len(matches)}
}

// GetClauses lists a contract's indexed clauses in extraction order.
func (s *IndexService) GetClauses(ctx context.Context, contractID string) types.SearchResult {
	docs, err := s.vectors.Query(ctx, milvus.Eq(vars.FIELD_CONTRACT_ID, contractID))
	if err != nil {
		s.metrics.ObserveRetrieval("get", types.OpError)
		return types.SearchResult{Status: types.OpError, Results: []types.HistoricalMatch{}, Message: err.Error()}
	}
	s.metrics.ObserveRetrieval("get", types.OpSuccess)
	matches := make([]types.HistoricalMatch, 0, len(docs))
	for _, d := range docs {
		m := DocToMatch(d, 1)
		m.Distance, m.Similarity = 0, 0
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Metadata.Position < matches[j].Metadata.Position })
	if len(matches) == 0 {
		return types.SearchResult{Status: types.OpNotFound, Results: matches, Message: "contract not found"}
	}
	return types.SearchResult{Status: types.OpSuccess, Results: matches, Count: len(matches)}
}

func (s *IndexService) DeleteContract(ctx context.Context, contractID string) types.DeleteResult {
	n, err := s.vectors.Delete(ctx, milvus.Eq(vars.FIELD_CONTRACT_ID, contractID))
	if err != nil {
		s.metrics.ObserveRetrieval("delete", types.OpError)
		return types.DeleteResult{Status: types.OpError, Message: err.Error()}
	}
	s.metrics.ObserveRetrieval("delete", types.OpSuccess)
	if s.keywords != nil {
		if err := s.keywords.DeleteByContractID(ctx, contractID); err != nil {
			logger.WithContext(ctx).Warn("es delete failed", zap.String("contract_id", contractID), zap.Error(err))
		}
	}
	if n == 0 {
		return types.DeleteResult{Status: types.OpNotFound, Message: "contract not found"}
	}
	return types.DeleteResult{Status: types.OpSuccess, Deleted: n}
}

func (s *IndexService) Stats(ctx context.Context) types.StatsResult {
	n, err := s.vectors.Count(ctx)
	if err != nil {
		return types.StatsResult{Status: types.OpError, CollectionName: s.vectors.Collection(), Message: err.Error()}
	}
	return types.StatsResult{Status: types.OpHealthy, TotalClauses: n, CollectionName: s.vectors.Collection()}
}

// DocToMatch converts a stored clause document; score is a cosine
// similarity and distance is 1-score floored at 0.
func DocToMatch(d *schema.Document, similarity float64) types.HistoricalMatch {
	meta := types.ClauseMetadata{}
	if d.MetaData != nil {
		meta.ContractID, _ = d.MetaData[vars.FIELD_CONTRACT_ID].(string)
		meta.ContractName, _ = d.MetaData[vars.FIELD_CONTRACT_NAME].(string)
		meta.ClauseType, _ = d.MetaData[vars.FIELD_CLAUSE_TYPE].(string)
		meta.RiskLevel, _ = d.MetaData[vars.FIELD_RISK_LEVEL].(string)
		meta.KnowledgeBaseID, _ = d.MetaData[vars.FIELD_KNOWLEDGE_BASE_ID].(string)
		switch p := d.MetaData[vars.FIELD_POSITION].(type) {
		case int64:
			meta.Position = int(p)
		case int:
			meta.Position = p
		case float64:
			meta.Position = int(p)
		}
	}
	return types.HistoricalMatch{
		ID:         d.ID,
		Text:       d.Content,
		Metadata:   meta,
		Distance:   max(0, 1-similarity),
		Similarity: similarity,
	}
}
