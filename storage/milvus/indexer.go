package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/indexer/milvus"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"lexanalyzer/pkg/logger"
	"lexanalyzer/vars"
)

// Connect dials Milvus with a bounded handshake.
func Connect(ctx context.Context, addr string) (client.Client, error) {
	logger.Info("connecting to milvus", zap.String("addr", addr))
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	cli, err := client.NewClient(connectCtx, client.Config{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("connect milvus %s: %w", addr, err)
	}
	return cli, nil
}

func clauseFields(dim int) []*entity.Field {
	varchar := func(name, maxLen string) *entity.Field {
		return &entity.Field{Name: name, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": maxLen}}
	}
	id := varchar(vars.FIELD_ID, "128")
	id.PrimaryKey = true
	return []*entity.Field{
		id,
		{
			Name:       vars.FIELD_VECTOR,
			DataType:   entity.FieldTypeFloatVector,
			TypeParams: map[string]string{"dim": fmt.Sprintf("%d", dim)},
		},
		varchar(vars.FIELD_CONTENT, "65535"),
		varchar(vars.FIELD_CONTRACT_ID, "128"),
		varchar(vars.FIELD_CONTRACT_NAME, "512"),
		varchar(vars.FIELD_CLAUSE_TYPE, "64"),
		varchar(vars.FIELD_RISK_LEVEL, "16"),
		varchar(vars.FIELD_KNOWLEDGE_BASE_ID, "128"),
		{Name: vars.FIELD_POSITION, DataType: entity.FieldTypeInt64},
		{Name: "metadata", DataType: entity.FieldTypeJSON},
	}
}

// scalar columns that get an inverted index for filter expressions
var scalarIndexed = []string{
	vars.FIELD_CONTRACT_ID,
	vars.FIELD_CLAUSE_TYPE,
	vars.FIELD_RISK_LEVEL,
	vars.FIELD_KNOWLEDGE_BASE_ID,
}

// clauseRow maps one clause document onto a collection row.
func clauseRow(doc *schema.Document, vector []float64) map[string]interface{} {
	vec32 := make([]float32, len(vector))
	for j, v := range vector {
		vec32[j] = float32(v)
	}
	meta := doc.MetaData
	if meta == nil {
		meta = map[string]any{}
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		metaBytes = []byte("{}")
	}
	return map[string]interface{}{
		vars.FIELD_ID:                doc.ID,
		vars.FIELD_VECTOR:            vec32,
		vars.FIELD_CONTENT:           doc.Content,
		vars.FIELD_CONTRACT_ID:       metaString(meta, vars.FIELD_CONTRACT_ID),
		vars.FIELD_CONTRACT_NAME:     metaString(meta, vars.FIELD_CONTRACT_NAME),
		vars.FIELD_CLAUSE_TYPE:       metaString(meta, vars.FIELD_CLAUSE_TYPE),
		vars.FIELD_RISK_LEVEL:        metaString(meta, vars.FIELD_RISK_LEVEL),
		vars.FIELD_KNOWLEDGE_BASE_ID: metaString(meta, vars.FIELD_KNOWLEDGE_BASE_ID),
		vars.FIELD_POSITION:          metaInt64(meta, vars.FIELD_POSITION),
		"metadata":                   metaBytes,
	}
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func metaInt64(meta map[string]any, key string) int64 {
	switch v := meta[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// NewClauseIndexer creates (or opens) the clause collection, makes sure the
// vector index is HNSW/COSINE and loads it.
func NewClauseIndexer(ctx context.Context, cli client.Client, embedder embedding.Embedder, collection string) (indexer.Indexer, error) {
	// 探测向量维度
	vecs, err := embedder.EmbedStrings(ctx, []string{"dimension probe"})
	if err != nil {
		return nil, fmt.Errorf("probe embedding dimension: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("probe embedding dimension: empty vector")
	}
	dim := len(vecs[0])
	logger.Info("milvus clause collection", zap.String("collection", collection), zap.Int("dim", dim))

	converter := func(ctx context.Context, docs []*schema.Document, vectors [][]float64) ([]interface{}, error) {
		if len(docs) != len(vectors) {
			return nil, fmt.Errorf("got %d vectors for %d documents", len(vectors), len(docs))
		}
		rows := make([]interface{}, len(docs))
		for i, doc := range docs {
			rows[i] = clauseRow(doc, vectors[i])
		}
		return rows, nil
	}
	idx, err := milvus.NewIndexer(ctx, &milvus.IndexerConfig{
		Client:            cli,
		Collection:        collection,
		Embedding:         embedder,
		Fields:            clauseFields(dim),
		DocumentConverter: converter,
		MetricType:        milvus.L2,
	})
	if err != nil {
		return nil, fmt.Errorf("new milvus indexer: %w", err)
	}

	if err := ensureIndexes(ctx, cli, collection); err != nil {
		return nil, err
	}
	if err := cli.LoadCollection(ctx, collection, false); err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	return idx, nil
}

// ensureIndexes swaps the indexer's default vector index for HNSW/COSINE and
// adds the scalar indexes. Indexes already in the right shape are left alone.
func ensureIndexes(ctx context.Context, cli client.Client, collection string) error {
	vecIdxs, err := cli.DescribeIndex(ctx, collection, vars.FIELD_VECTOR)
	if err != nil {
		logger.Debug("describe vector index", zap.Error(err))
	}
	if needsVectorIndex(vecIdxs) {
		// 先 Release 才能操作索引
		_ = cli.ReleaseCollection(ctx, collection)
		if len(vecIdxs) > 0 {
			if err := cli.DropIndex(ctx, collection, vars.FIELD_VECTOR); err != nil {
				logger.Debug("drop default vector index", zap.Error(err))
			}
		}
		hnswIdx, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
		if err != nil {
			return fmt.Errorf("build hnsw index: %w", err)
		}
		if err := cli.CreateIndex(ctx, collection, vars.FIELD_VECTOR, hnswIdx, false); err != nil {
			return fmt.Errorf("create hnsw index: %w", err)
		}
		logger.Info("milvus hnsw index created", zap.String("collection", collection))
	}
	for _, field := range scalarIndexed {
		if idxs, err := cli.DescribeIndex(ctx, collection, field); err == nil && len(idxs) > 0 {
			continue
		}
		if err := cli.CreateIndex(ctx, collection, field, entity.NewScalarIndex(), false); err != nil {
			return fmt.Errorf("create %s index: %w", field, err)
		}
	}
	return nil
}

// needsVectorIndex reports whether the described vector indexes lack an
// HNSW index with cosine metric.
func needsVectorIndex(idxs []entity.Index) bool {
	for _, idx := range idxs {
		if idx == nil {
			continue
		}
		if idx.IndexType() == entity.HNSW && strings.EqualFold(idx.Params()["metric_type"], string(entity.COSINE)) {
			return false
		}
	}
	return true
}
