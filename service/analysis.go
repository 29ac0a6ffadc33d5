package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"lexanalyzer/metrics"
	"lexanalyzer/pkg/logger"
	"lexanalyzer/storage/postgres"
	"lexanalyzer/types"
)

var ErrHistoryDisabled = errors.New("analysis history is disabled")

type Analyzer interface {
	Analyze(ctx context.Context, req *types.AnalyzeRequest) *types.AnalysisResult
}

// HistoryStore persists finished runs; *postgres.AnalysisRepo implements it.
type HistoryStore interface {
	Save(ctx context.Context, rec *postgres.AnalysisRecord) error
	Get(ctx context.Context, contractID string) (*postgres.AnalysisRecord, error)
	List(ctx context.Context, limit int) ([]postgres.RunSummary, error)
}

type AnalysisService struct {
	analyzer Analyzer
	history  HistoryStore
	metrics  *metrics.Metrics
}

// NewAnalysisService wires the pipeline. history may be nil.
func NewAnalysisService(analyzer Analyzer, history HistoryStore, m *metrics.Metrics) *AnalysisService {
	return &AnalysisService{analyzer: analyzer, history: history, metrics: m}
}

func (s *AnalysisService) HistoryEnabled() bool { return s.history != nil }

// Analyze runs one analysis and records it. History failures are logged and
// never change the result.
func (s *AnalysisService) Analyze(ctx context.Context, req *types.AnalyzeRequest) *types.AnalysisResult {
	start := time.Now()
	res := s.analyzer.Analyze(ctx, req)
	s.metrics.ObserveRun(string(res.Status), time.Since(start), len(res.Clauses))
	s.save(ctx, res)
	return res
}

func (s *AnalysisService) save(ctx context.Context, res *types.AnalysisResult) {
	if s.history == nil {
		return
	}
	log := logger.WithContext(ctx).With(zap.String("contract_id", res.ContractID))
	rec, err := postgres.NewAnalysisRecord(res)
	if err != nil {
		log.Warn("encode analysis history", zap.Error(err))
		return
	}
	// 请求取消后仍然落库
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.history.Save(ctx, rec); err != nil {
		log.Warn("save analysis history", zap.Error(err))
	}
}

func (s *AnalysisService) GetAnalysis(ctx context.Context, contractID string) (*types.AnalysisResult, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	rec, err := s.history.Get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return rec.Decode()
}

func (s *AnalysisService) ListAnalyses(ctx context.Context, limit int) ([]postgres.RunSummary, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.List(ctx, postgres.ClampLimit(limit))
}
