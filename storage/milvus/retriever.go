package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cloudwego/eino-ext/components/retriever/milvus"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"lexanalyzer/pkg/logger"
	"lexanalyzer/vars"
)

var outputFields = []string{
	vars.FIELD_CONTENT,
	vars.FIELD_CONTRACT_ID,
	vars.FIELD_CONTRACT_NAME,
	vars.FIELD_CLAUSE_TYPE,
	vars.FIELD_RISK_LEVEL,
	vars.FIELD_KNOWLEDGE_BASE_ID,
	vars.FIELD_POSITION,
}

// ClauseStore is the authoritative clause corpus in Milvus.
type ClauseStore struct {
	cli        client.Client
	collection string
	indexer    indexer.Indexer
	retriever  retriever.Retriever
}

func NewClauseStore(ctx context.Context, cli client.Client, embedder embedding.Embedder, collection string) (*ClauseStore, error) {
	idx, err := NewClauseIndexer(ctx, cli, embedder, collection)
	if err != nil {
		return nil, err
	}
	retr, err := milvus.NewRetriever(ctx, &milvus.RetrieverConfig{
		Client:            cli,
		Collection:        collection,
		VectorField:       vars.FIELD_VECTOR,
		OutputFields:      outputFields,
		DocumentConverter: searchConverter,
		VectorConverter:   floatVectors,
		MetricType:        entity.COSINE,
		TopK:              5,
		Embedding:         embedder,
	})
	if err != nil {
		return nil, fmt.Errorf("init milvus retriever: %w", err)
	}
	return &ClauseStore{cli: cli, collection: collection, indexer: idx, retriever: retr}, nil
}

func (s *ClauseStore) Collection() string { return s.collection }

// Store embeds and inserts clause documents. The indexer flushes after
// insert, so they are searchable on return.
func (s *ClauseStore) Store(ctx context.Context, docs []*schema.Document) ([]string, error) {
	ids, err := s.indexer.Store(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("milvus store: %w", err)
	}
	return ids, nil
}

// Search returns the topK nearest clauses to query; score is the cosine
// similarity.
func (s *ClauseStore) Search(ctx context.Context, query string, topK int, expr string) ([]*schema.Document, error) {
	opts := []retriever.Option{retriever.WithTopK(topK)}
	if expr != "" {
		opts = append(opts, milvus.WithFilter(expr))
	}
	docs, err := s.retriever.Retrieve(ctx, query, opts...)
	if err != nil {
		return nil, fmt.Errorf("milvus retrieve: %w", err)
	}
	logger.WithContext(ctx).Debug("milvus search", zap.String("expr", expr), zap.Int("hits", len(docs)))
	return docs, nil
}

// Query returns every clause matching expr, without vectors.
func (s *ClauseStore) Query(ctx context.Context, expr string) ([]*schema.Document, error) {
	rs, err := s.cli.Query(ctx, s.collection, nil, expr, append([]string{vars.FIELD_ID}, outputFields...))
	if err != nil {
		return nil, fmt.Errorf("milvus query: %w", err)
	}
	idCol := rs.GetColumn(vars.FIELD_ID)
	if idCol == nil {
		return nil, nil
	}
	docs := make([]*schema.Document, idCol.Len())
	for i := range docs {
		id, err := idCol.GetAsString(i)
		if err != nil {
			return nil, fmt.Errorf("read id: %w", err)
		}
		doc := &schema.Document{ID: id, MetaData: map[string]any{}}
		for _, col := range rs {
			fillField(doc, col.Name(), col, i)
		}
		docs[i] = doc
	}
	return docs, nil
}

// Delete removes every clause matching expr and reports how many matched.
func (s *ClauseStore) Delete(ctx context.Context, expr string) (int, error) {
	docs, err := s.Query(ctx, expr)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if err := s.cli.Delete(ctx, s.collection, "", expr); err != nil {
		return 0, fmt.Errorf("milvus delete: %w", err)
	}
	if err := s.cli.Flush(ctx, s.collection, false); err != nil {
		logger.WithContext(ctx).Warn("milvus flush failed", zap.Error(err))
	}
	return len(docs), nil
}

func (s *ClauseStore) Count(ctx context.Context) (int64, error) {
	stats, err := s.cli.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("milvus statistics: %w", err)
	}
	n, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse row_count %q: %w", stats["row_count"], err)
	}
	return n, nil
}

func (s *ClauseStore) Close() error {
	return s.cli.Close()
}

// column is the read side shared by search result fields and query columns.
type column interface {
	GetAsString(idx int) (string, error)
	GetAsInt64(idx int) (int64, error)
}

func fillField(doc *schema.Document, name string, col column, i int) {
	switch name {
	case vars.FIELD_CONTENT:
		if v, err := col.GetAsString(i); err == nil {
			doc.Content = v
		}
	case vars.FIELD_CONTRACT_ID, vars.FIELD_CONTRACT_NAME, vars.FIELD_CLAUSE_TYPE,
		vars.FIELD_RISK_LEVEL, vars.FIELD_KNOWLEDGE_BASE_ID:
		if v, err := col.GetAsString(i); err == nil {
			doc.MetaData[name] = v
		}
	case vars.FIELD_POSITION:
		if v, err := col.GetAsInt64(i); err == nil {
			doc.MetaData[name] = v
		}
	}
}

func searchConverter(ctx context.Context, result client.SearchResult) ([]*schema.Document, error) {
	docs := make([]*schema.Document, result.IDs.Len())
	for i := range docs {
		id, err := result.IDs.GetAsString(i)
		if err != nil {
			return nil, fmt.Errorf("failed to get id: %w", err)
		}
		doc := &schema.Document{ID: id, MetaData: map[string]any{}}
		if len(result.Scores) > i {
			doc.WithScore(float64(result.Scores[i]))
		}
		for _, field := range result.Fields {
			fillField(doc, field.Name(), field, i)
		}
		docs[i] = doc
	}
	return docs, nil
}

// floatVectors 查询向量转 FloatVector，与集合的向量列类型一致
func floatVectors(ctx context.Context, vectors [][]float64) ([]entity.Vector, error) {
	out := make([]entity.Vector, 0, len(vectors))
	for _, v := range vectors {
		f := make([]float32, len(v))
		for i, x := range v {
			f[i] = float32(x)
		}
		out = append(out, entity.FloatVector(f))
	}
	return out, nil
}
