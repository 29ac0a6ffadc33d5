package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"lexanalyzer/pkg/logger"
	"lexanalyzer/types"
	"lexanalyzer/vars"
)

// Search runs a BM25 query over clause content. keywords, when present,
// are added as an extra should clause.
func (m *ClauseMirror) Search(ctx context.Context, query string, keywords []string, filter *types.SearchFilter, topK int) ([]*schema.Document, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildESQuery(query, keywords, filter, topK)); err != nil {
		return nil, fmt.Errorf("encode es query: %w", err)
	}
	logger.WithContext(ctx).Debug("es query", zap.String("body", buf.String()))

	req := esapi.SearchRequest{
		Index: []string{m.index},
		Body:  &buf,
	}
	res, err := req.Do(ctx, m.client)
	if err != nil {
		return nil, fmt.Errorf("es search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("es search response: %s", res.String())
	}
	return parseHits(res.Body)
}

// buildESQuery 构建 ES 查询语句（BM25 + 过滤）
func buildESQuery(query string, keywords []string, filter *types.SearchFilter, topK int) map[string]any {
	boolQuery := map[string]any{
		"must": []map[string]any{
			{"match": map[string]any{vars.FIELD_CONTENT: map[string]any{"query": query}}},
		},
	}
	if len(keywords) > 0 {
		boolQuery["should"] = []map[string]any{
			{"match": map[string]any{vars.FIELD_CONTENT: map[string]any{"query": strings.Join(keywords, " "), "boost": 0.5}}},
		}
	}
	if f := buildFilterQueries(filter); len(f) > 0 {
		boolQuery["filter"] = f
	}
	if filter != nil && filter.ExcludeContractID != "" {
		boolQuery["must_not"] = []map[string]any{
			{"term": map[string]any{vars.FIELD_CONTRACT_ID: filter.ExcludeContractID}},
		}
	}
	return map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"size":  topK,
	}
}

func buildFilterQueries(filter *types.SearchFilter) []map[string]any {
	if filter == nil {
		return nil
	}
	var out []map[string]any
	term := func(field, value string) {
		if value != "" {
			out = append(out, map[string]any{"term": map[string]any{field: value}})
		}
	}
	term(vars.FIELD_CONTRACT_ID, filter.ContractID)
	term(vars.FIELD_KNOWLEDGE_BASE_ID, filter.KnowledgeBaseID)
	term(vars.FIELD_CLAUSE_TYPE, filter.ClauseType)
	term(vars.FIELD_RISK_LEVEL, filter.RiskLevel)
	return out
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func parseHits(r io.Reader) ([]*schema.Document, error) {
	var resp searchResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode es response: %w", err)
	}
	docs := make([]*schema.Document, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		doc := &schema.Document{
			ID:       hit.ID,
			Content:  toString(hit.Source[vars.FIELD_CONTENT]),
			MetaData: map[string]any{},
		}
		doc.WithScore(hit.Score)
		for _, k := range []string{vars.FIELD_CONTRACT_ID, vars.FIELD_CONTRACT_NAME, vars.FIELD_CLAUSE_TYPE,
			vars.FIELD_RISK_LEVEL, vars.FIELD_KNOWLEDGE_BASE_ID} {
			if v, ok := hit.Source[k]; ok {
				doc.MetaData[k] = toString(v)
			}
		}
		// JSON 数字解码为 float64
		if v, ok := hit.Source[vars.FIELD_POSITION].(float64); ok {
			doc.MetaData[vars.FIELD_POSITION] = int64(v)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// toString 安全地将任意类型转为 string
func toString(v any) string {
	if v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", v)
}
