package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexanalyzer/metrics"
	"lexanalyzer/storage/postgres"
	"lexanalyzer/types"
)

type stubAnalyzer struct {
	res *types.AnalysisResult
}

func (s stubAnalyzer) Analyze(ctx context.Context, req *types.AnalyzeRequest) *types.AnalysisResult {
	return s.res
}

type memHistory struct {
	recs    map[string]*postgres.AnalysisRecord
	saveErr error
	ctxErr  error
}

func (m *memHistory) Save(ctx context.Context, rec *postgres.AnalysisRecord) error {
	m.ctxErr = ctx.Err()
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.recs == nil {
		m.recs = map[string]*postgres.AnalysisRecord{}
	}
	m.recs[rec.ContractID] = rec
	return nil
}

func (m *memHistory) Get(ctx context.Context, id string) (*postgres.AnalysisRecord, error) {
	rec, ok := m.recs[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return rec, nil
}

func (m *memHistory) List(ctx context.Context, limit int) ([]postgres.RunSummary, error) {
	var out []postgres.RunSummary
	for _, r := range m.recs {
		out = append(out, r.Summary())
	}
	return out, nil
}

func completedRun() *types.AnalysisResult {
	return &types.AnalysisResult{
		ContractID:  "contract_aaaabbbbcccc",
		Status:      types.RunCompleted,
		Clauses:     []types.Clause{{Type: types.ClausePayment, Text: "Net 30", RiskLevel: types.RiskLow}},
		Comparisons: []types.Comparison{},
	}
}

func TestAnalysisServiceRecordsRun(t *testing.T) {
	hist := &memHistory{}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewAnalysisService(stubAnalyzer{res: completedRun()}, hist, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := svc.Analyze(ctx, &types.AnalyzeRequest{ContractText: "x"})
	assert.Equal(t, types.RunCompleted, res.Status)
	assert.NoError(t, hist.ctxErr, "history save should not inherit request cancellation")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysisRuns.WithLabelValues("completed")))

	got, err := svc.GetAnalysis(context.Background(), "contract_aaaabbbbcccc")
	require.NoError(t, err)
	assert.Equal(t, res, got)

	list, err := svc.ListAnalyses(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.GetAnalysis(context.Background(), "nope")
	assert.ErrorIs(t, err, postgres.ErrNotFound)
}

func TestAnalysisServiceHistoryFailureIsSilent(t *testing.T) {
	svc := NewAnalysisService(stubAnalyzer{res: completedRun()}, &memHistory{saveErr: errors.New("db down")}, nil)
	res := svc.Analyze(context.Background(), &types.AnalyzeRequest{ContractText: "x"})
	assert.Equal(t, types.RunCompleted, res.Status)
}

func TestAnalysisServiceWithoutHistory(t *testing.T) {
	svc := NewAnalysisService(stubAnalyzer{res: completedRun()}, nil, nil)
	assert.False(t, svc.HistoryEnabled())
	svc.Analyze(context.Background(), &types.AnalyzeRequest{ContractText: "x"})

	_, err := svc.GetAnalysis(context.Background(), "contract_aaaabbbbcccc")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = svc.ListAnalyses(context.Background(), 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}
