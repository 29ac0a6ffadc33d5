package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"go.uber.org/zap"

	"lexanalyzer/pkg/logger"
	"lexanalyzer/vars"
)

// ClauseMirror keeps a BM25-searchable copy of indexed clauses. Milvus stays
// authoritative; callers treat mirror failures as warnings.
type ClauseMirror struct {
	client *elasticsearch.Client
	index  string
}

// NewClauseMirror 初始化 ES 客户端并确保索引存在
func NewClauseMirror(ctx context.Context, addresses []string, indexName string) (*ClauseMirror, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("create es client: %w", err)
	}
	m := &ClauseMirror{client: client, index: indexName}
	if err := m.initMapping(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

const clauseMapping = `
{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "contract_id":       { "type": "keyword" },
      "contract_name":     { "type": "text", "fields": { "keyword": { "type": "keyword" } } },
      "clause_id":         { "type": "keyword" },
      "clause_type":       { "type": "keyword" },
      "risk_level":        { "type": "keyword" },
      "knowledge_base_id": { "type": "keyword" },
      "position":          { "type": "integer" },
      "content":           { "type": "text", "analyzer": "english" },
      "indexed_at":        { "type": "date" }
    }
  }
}`

func (m *ClauseMirror) initMapping(ctx context.Context) error {
	res, err := m.client.Indices.Exists([]string{m.index}, m.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check es index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	logger.Info("creating es index", zap.String("index", m.index))
	res, err = m.client.Indices.Create(
		m.index,
		m.client.Indices.Create.WithBody(strings.NewReader(clauseMapping)),
		m.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create es index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create es index: %s", res.String())
	}
	return nil
}

func clauseSource(doc *schema.Document, now time.Time) map[string]any {
	src := map[string]any{
		"clause_id":  doc.ID,
		"content":    doc.Content,
		"indexed_at": now.UTC().Format(time.RFC3339),
	}
	for _, k := range []string{vars.FIELD_CONTRACT_ID, vars.FIELD_CONTRACT_NAME, vars.FIELD_CLAUSE_TYPE,
		vars.FIELD_RISK_LEVEL, vars.FIELD_KNOWLEDGE_BASE_ID, vars.FIELD_POSITION} {
		if v, ok := doc.MetaData[k]; ok {
			src[k] = v
		}
	}
	return src
}

// Store 批量存储, keyed by clause id so re-indexing overwrites.
func (m *ClauseMirror) Store(ctx context.Context, docs []*schema.Document) error {
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         m.index,
		Client:        m.client,
		FlushInterval: time.Second,
		Refresh:       "wait_for",
	})
	if err != nil {
		return fmt.Errorf("new bulk indexer: %w", err)
	}

	now := time.Now()
	for _, doc := range docs {
		data, err := json.Marshal(clauseSource(doc, now))
		if err != nil {
			return fmt.Errorf("encode clause %s: %w", doc.ID, err)
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.ID,
			Body:       bytes.NewReader(data),
		})
		if err != nil {
			return fmt.Errorf("queue clause %s: %w", doc.ID, err)
		}
	}
	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("flush bulk indexer: %w", err)
	}
	if st := bi.Stats(); st.NumFailed > 0 {
		return fmt.Errorf("es bulk: %d of %d clauses failed", st.NumFailed, st.NumAdded)
	}
	return nil
}

func (m *ClauseMirror) DeleteByContractID(ctx context.Context, contractID string) error {
	query := map[string]any{
		"query": map[string]any{
			"term": map[string]any{vars.FIELD_CONTRACT_ID: contractID},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return fmt.Errorf("encode delete query: %w", err)
	}

	res, err := m.client.DeleteByQuery(
		[]string{m.index},
		&buf,
		m.client.DeleteByQuery.WithContext(ctx),
		m.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("es delete request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("es delete response: %s", res.String())
	}
	logger.WithContext(ctx).Info("es clauses deleted", zap.String("contract_id", contractID))
	return nil
}
