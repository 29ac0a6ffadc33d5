package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"lexanalyzer/config"
	"lexanalyzer/logic/analysis"
	"lexanalyzer/logic/chat"
	"lexanalyzer/logic/ingestion/transform"
	"lexanalyzer/metrics"
	"lexanalyzer/pkg/logger"
	"lexanalyzer/service"
	"lexanalyzer/storage/es"
	"lexanalyzer/storage/milvus"
	"lexanalyzer/storage/postgres"
)

// backend holds the shared components of serve and analyze.
type backend struct {
	gateway  *chat.Gateway
	vectors  *milvus.ClauseStore
	index    *service.IndexService
	analyzer *analysis.Analyzer
	db       *gorm.DB
	repo     *postgres.AnalysisRepo
}

func newGateway(ctx context.Context, c config.LLMConfig, m *metrics.Metrics) (*chat.Gateway, error) {
	gw, err := chat.NewGateway(ctx, chat.Config{
		Provider:       chat.Provider(c.Provider),
		APIKey:         c.GroqAPIKey,
		GroqBaseURL:    c.GroqBaseURL,
		OllamaBaseURL:  c.OllamaBaseURL,
		BaseModel:      c.BaseModel,
		FinetunedModel: c.FinetunedModel,
		Timeout:        c.Timeout,
		ProbeTimeout:   c.ProbeTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm gateway: %w", err)
	}
	gw.OnComplete(m.ObserveCompletion)
	return gw, nil
}

// newBackend connects Milvus (required), Elasticsearch and Postgres (both
// optional) and builds the analysis pipeline on top of them.
func newBackend(ctx context.Context, c *config.Config, m *metrics.Metrics, withHistory bool) (*backend, error) {
	gw, err := newGateway(ctx, c.LLM, m)
	if err != nil {
		return nil, err
	}

	embedder, err := transform.NewEmbedder(ctx, c.LLM.OllamaBaseURL, c.Embedding.Model, c.Embedding.Timeout)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	cli, err := milvus.Connect(ctx, c.Milvus.Addr)
	if err != nil {
		return nil, err
	}
	vectors, err := milvus.NewClauseStore(ctx, cli, embedder, c.Milvus.Collection)
	if err != nil {
		_ = cli.Close()
		return nil, err
	}
	logger.Info("milvus ready", zap.String("addr", c.Milvus.Addr), zap.String("collection", c.Milvus.Collection))

	var keywords service.KeywordStore
	if c.Elasticsearch.Enabled {
		mirror, err := es.NewClauseMirror(ctx, []string{c.Elasticsearch.Addr}, c.Elasticsearch.Index)
		if err != nil {
			// BM25 镜像可选, 失败不影响主流程
			logger.Warn("elasticsearch unavailable, hybrid search falls back to vectors", zap.Error(err))
		} else {
			keywords = mirror
		}
	}

	b := &backend{gateway: gw, vectors: vectors}
	b.index = service.NewIndexService(vectors, keywords, gw, m)
	b.analyzer = analysis.New(gw, b.index, analysis.Options{
		CompareWorkers:   c.Analysis.CompareWorkers,
		RetrievalTimeout: c.Analysis.RetrievalTimeout,
		IndexTimeout:     c.Analysis.IndexTimeout,
		MaxChars:         c.Analysis.MaxChars,
	})

	if withHistory && c.Postgres.Enabled {
		db, err := postgres.InitDB(c.Postgres.ConnString(), c.Log.Level == "debug")
		if err != nil {
			logger.Warn("postgres unavailable, analysis history disabled", zap.Error(err))
		} else {
			b.db = db
			b.repo = postgres.NewAnalysisRepo(db)
		}
	}
	return b, nil
}

// history returns the repo as a HistoryStore, nil when disabled.
func (b *backend) history() service.HistoryStore {
	if b.repo == nil {
		return nil
	}
	return b.repo
}

func (b *backend) Close() {
	if b.db != nil {
		if sqlDB, err := b.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := b.vectors.Close(); err != nil {
		logger.Warn("close milvus", zap.Error(err))
	}
}
