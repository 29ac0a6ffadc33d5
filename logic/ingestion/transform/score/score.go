// Package score fuses vector and keyword search results.
package score

import (
	"context"
	"sort"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"lexanalyzer/pkg/logger"
)

const (
	SourceMilvus = "milvus"
	SourceES     = "es"
)

// HybridRerankerConfig 混合检索重排配置
type HybridRerankerConfig struct {
	MilvusWeight float64
	ESWeight     float64
	TopK         int
}

func DefaultHybridRerankerConfig() *HybridRerankerConfig {
	return &HybridRerankerConfig{
		MilvusWeight: 0.6,
		ESWeight:     0.4,
		TopK:         10,
	}
}

// RerankedDocument 重新排序后的文档（带来源标记）
type RerankedDocument struct {
	*schema.Document
	FinalScore float64
	Sources    []string
}

// HybridReranker merges Milvus and ES hits:
//  1. min-max normalise each list to [0,1]
//  2. dedupe by document ID, summing weighted scores
//  3. sort by final score, then ID
//  4. keep TopK
//
// Input scores are overwritten with their normalised values.
func HybridReranker(ctx context.Context, milvusDocs, esDocs []*schema.Document, config *HybridRerankerConfig) []*RerankedDocument {
	if config == nil {
		config = DefaultHybridRerankerConfig()
	}

	normalizeScores(milvusDocs)
	normalizeScores(esDocs)

	docMap := make(map[string]*RerankedDocument)
	add := func(docs []*schema.Document, weight float64, source string) {
		for _, doc := range docs {
			if doc == nil {
				continue
			}
			if existing, ok := docMap[doc.ID]; ok {
				existing.FinalScore += doc.Score() * weight
				existing.Sources = append(existing.Sources, source)
				continue
			}
			docMap[doc.ID] = &RerankedDocument{
				Document:   doc,
				FinalScore: doc.Score() * weight,
				Sources:    []string{source},
			}
		}
	}
	add(milvusDocs, config.MilvusWeight, SourceMilvus)
	add(esDocs, config.ESWeight, SourceES)

	results := make([]*RerankedDocument, 0, len(docMap))
	for _, doc := range docMap {
		results = append(results, doc)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].ID < results[j].ID
	})
	if config.TopK > 0 && len(results) > config.TopK {
		results = results[:config.TopK]
	}

	log := logger.WithContext(ctx)
	for i, doc := range results {
		log.Debug("reranked", zap.Int("rank", i+1), zap.String("id", doc.ID), zap.Float64("final_score", doc.FinalScore), zap.Strings("sources", doc.Sources))
	}
	return results
}

// normalizeScores Min-Max 归一化到 [0, 1] 区间
func normalizeScores(docs []*schema.Document) {
	var present []*schema.Document
	for _, d := range docs {
		if d != nil {
			present = append(present, d)
		}
	}
	if len(present) == 0 {
		return
	}

	maxScore, minScore := present[0].Score(), present[0].Score()
	for _, doc := range present {
		s := doc.Score()
		maxScore = max(maxScore, s)
		minScore = min(minScore, s)
	}

	// 所有分数相同
	if maxScore == minScore {
		for _, doc := range present {
			doc.WithScore(1.0)
		}
		return
	}
	for _, doc := range present {
		doc.WithScore((doc.Score() - minScore) / (maxScore - minScore))
	}
}
