package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexanalyzer/api/response"
	"lexanalyzer/logic/chat"
	"lexanalyzer/service"
	"lexanalyzer/storage/postgres"
	"lexanalyzer/types"
	"lexanalyzer/vars"
)

type fakeAnalysis struct {
	last    *types.AnalyzeRequest
	result  *types.AnalysisResult
	history map[string]*types.AnalysisResult
	limit   int
	enabled bool
}

func (f *fakeAnalysis) Analyze(_ context.Context, req *types.AnalyzeRequest) *types.AnalysisResult {
	f.last = req
	if f.result != nil {
		return f.result
	}
	return &types.AnalysisResult{ContractID: "contract_x", ContractName: req.ContractName, Status: types.RunCompleted}
}

func (f *fakeAnalysis) GetAnalysis(_ context.Context, id string) (*types.AnalysisResult, error) {
	if !f.enabled {
		return nil, service.ErrHistoryDisabled
	}
	res, ok := f.history[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return res, nil
}

func (f *fakeAnalysis) ListAnalyses(_ context.Context, limit int) ([]postgres.RunSummary, error) {
	if !f.enabled {
		return nil, service.ErrHistoryDisabled
	}
	f.limit = limit
	return []postgres.RunSummary{{ContractID: "c1", Status: "completed"}}, nil
}

func (f *fakeAnalysis) HistoryEnabled() bool { return f.enabled }

type fakeIndex struct {
	mode    string
	topK    int
	filter  *types.SearchFilter
	indexed []types.Clause
	clauses map[string][]types.HistoricalMatch
	stats   types.StatsResult
}

func (f *fakeIndex) IndexContract(_ context.Context, _, _, _ string, clauses []types.Clause) types.IndexResult {
	f.indexed = clauses
	return types.IndexResult{Status: types.OpSuccess, ClausesIndexed: len(clauses)}
}

func (f *fakeIndex) SearchSimilarClauses(_ context.Context, _ string, topK int, filter *types.SearchFilter) types.SearchResult {
	f.mode, f.topK, f.filter = vars.SEMANTIC, topK, filter
	return types.SearchResult{Status: types.OpSuccess, Results: []types.HistoricalMatch{}}
}

func (f *fakeIndex) HybridSearch(_ context.Context, _ string, topK int, filter *types.SearchFilter) types.SearchResult {
	f.mode, f.topK, f.filter = vars.HYBRID, topK, filter
	return types.SearchResult{Status: types.OpSuccess, Results: []types.HistoricalMatch{}}
}

func (f *fakeIndex) GetClauses(_ context.Context, id string) types.SearchResult {
	m, ok := f.clauses[id]
	if !ok {
		return types.SearchResult{Status: types.OpNotFound, Results: []types.HistoricalMatch{}}
	}
	return types.SearchResult{Status: types.OpSuccess, Results: m, Count: len(m)}
}

func (f *fakeIndex) DeleteContract(_ context.Context, id string) types.DeleteResult {
	m, ok := f.clauses[id]
	if !ok {
		return types.DeleteResult{Status: types.OpNotFound}
	}
	delete(f.clauses, id)
	return types.DeleteResult{Status: types.OpSuccess, Deleted: len(m)}
}

func (f *fakeIndex) Stats(context.Context) types.StatsResult { return f.stats }

type fakeUploader struct {
	text string
	err  error
}

func (f fakeUploader) ExtractText(_ context.Context, r io.Reader, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	_, _ = io.Copy(io.Discard, r)
	return f.text, nil
}

type fakeModels struct{}

func (fakeModels) Info(context.Context) chat.Info {
	return chat.Info{Provider: "groq", BaseModel: "llama-3.1-8b-instant", Available: true}
}

func (fakeModels) ListModels(context.Context) []string { return []string{"llama-3.1-8b-instant"} }

type fixture struct {
	analysis *fakeAnalysis
	index    *fakeIndex
	engine   *gin.Engine
}

func newFixture(up fakeUploader) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		analysis: &fakeAnalysis{enabled: true, history: map[string]*types.AnalysisResult{}},
		index: &fakeIndex{
			clauses: map[string][]types.HistoricalMatch{},
			stats:   types.StatsResult{Status: types.OpHealthy, CollectionName: "contract_clauses", TotalClauses: 3},
		},
	}
	h := NewContractHandler(f.analysis, f.index, up, fakeModels{})
	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/health", h.Health)
	api.GET("/models", h.Models)
	api.GET("/stats", h.Stats)
	api.POST("/analyze", h.Analyze)
	api.POST("/analyze/upload", h.AnalyzeUpload)
	api.POST("/search", h.Search)
	api.POST("/index", h.Index)
	api.GET("/contracts/:id/clauses", h.GetClauses)
	api.DELETE("/contracts/:id", h.DeleteContract)
	api.GET("/analyses", h.ListAnalyses)
	api.GET("/analyses/:id", h.GetAnalysis)
	f.engine = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	return f.serve(t, req)
}

func (f *fixture) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	var env response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestHealth(t *testing.T) {
	f := newFixture(fakeUploader{})
	w, env := f.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, env.Code)
	data := env.Data.(map[string]any)
	assert.Equal(t, types.OpHealthy, data["status"])
	assert.Equal(t, true, data["history_enabled"])

	f.index.stats = types.StatsResult{Status: types.OpError, Message: "milvus down"}
	_, env = f.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, "degraded", env.Data.(map[string]any)["status"])
}

func TestModelsAndStats(t *testing.T) {
	f := newFixture(fakeUploader{})
	_, env := f.do(t, http.MethodGet, "/api/v1/models", nil)
	data := env.Data.(map[string]any)
	assert.Equal(t, "groq", data["provider"])
	assert.Equal(t, []any{"llama-3.1-8b-instant"}, data["models"])

	w, env := f.do(t, http.MethodGet, "/api/v1/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, env.Data.(map[string]any)["total_clauses"])

	f.index.stats = types.StatsResult{Status: types.OpError, Message: "milvus down"}
	w, env = f.do(t, http.MethodGet, "/api/v1/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "milvus down", env.Msg)
}

func TestAnalyze(t *testing.T) {
	f := newFixture(fakeUploader{})
	w, env := f.do(t, http.MethodPost, "/api/v1/analyze", map[string]any{
		"contract_text":     "The Supplier shall indemnify the Buyer.",
		"contract_name":     "MSA",
		"use_finetuned":     false,
		"knowledge_base_id": "kb1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, env.Code)
	require.NotNil(t, f.analysis.last)
	assert.Equal(t, "MSA", f.analysis.last.ContractName)
	assert.Equal(t, "kb1", f.analysis.last.KnowledgeBaseID)
	assert.False(t, f.analysis.last.Finetuned())
}

func TestAnalyzeRejectsEmptyText(t *testing.T) {
	f := newFixture(fakeUploader{})
	w, env := f.do(t, http.MethodPost, "/api/v1/analyze", map[string]any{"contract_text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeFail, env.Code)
	assert.Nil(t, f.analysis.last)
}

func TestAnalyzeErrorStatusIs500(t *testing.T) {
	f := newFixture(fakeUploader{})
	f.analysis.result = &types.AnalysisResult{
		ContractID: "contract_x",
		Status:     types.RunError,
		Error:      "clause extraction: invalid JSON",
	}
	w, env := f.do(t, http.MethodPost, "/api/v1/analyze", map[string]any{"contract_text": "text"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "clause extraction: invalid JSON", env.Msg)
	assert.Equal(t, "error", env.Data.(map[string]any)["status"])
}

func uploadRequest(t *testing.T, filename string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, _ = fw.Write([]byte("%PDF-1.4 fake"))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAnalyzeUpload(t *testing.T) {
	f := newFixture(fakeUploader{text: "Either party may terminate."})
	w, _ := f.serve(t, uploadRequest(t, "lease.pdf", map[string]string{
		"contract_id":   "contract_abc",
		"use_finetuned": "false",
		"model_name":    "llama-3.1-8b-instant",
	}))
	require.Equal(t, http.StatusOK, w.Code)
	req := f.analysis.last
	require.NotNil(t, req)
	assert.Equal(t, "Either party may terminate.", req.ContractText)
	assert.Equal(t, "lease.pdf", req.ContractName)
	assert.Equal(t, "contract_abc", req.ContractID)
	assert.Equal(t, "llama-3.1-8b-instant", req.ModelName)
	assert.False(t, req.Finetuned())
}

func TestAnalyzeUploadErrors(t *testing.T) {
	f := newFixture(fakeUploader{})
	w, _ := f.serve(t, uploadRequest(t, "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f = newFixture(fakeUploader{err: service.ErrUnsupportedFile})
	w, _ = f.serve(t, uploadRequest(t, "x.docx", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f = newFixture(fakeUploader{err: errors.New("corrupt xref table")})
	w, _ = f.serve(t, uploadRequest(t, "x.pdf", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	f = newFixture(fakeUploader{text: "ok"})
	w, _ = f.serve(t, uploadRequest(t, "x.txt", map[string]string{"use_finetuned": "maybe"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, f.analysis.last)
}

func TestSearch(t *testing.T) {
	f := newFixture(fakeUploader{})

	w, _ := f.do(t, http.MethodPost, "/api/v1/search", map[string]any{"query": "termination"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, vars.SEMANTIC, f.index.mode)
	assert.Equal(t, service.DefaultTopK, f.index.topK)

	w, _ = f.do(t, http.MethodPost, "/api/v1/search", map[string]any{
		"query":   "termination",
		"top_k":   50,
		"mode":    "hybrid",
		"filters": map[string]any{"clause_type": "termination"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, vars.HYBRID, f.index.mode)
	assert.Equal(t, service.MaxTopK, f.index.topK)
	require.NotNil(t, f.index.filter)
	assert.Equal(t, "termination", f.index.filter.ClauseType)

	w, _ = f.do(t, http.MethodPost, "/api/v1/search", map[string]any{"query": "x", "mode": "fuzzy"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/v1/search", map[string]any{"top_k": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIndex(t *testing.T) {
	f := newFixture(fakeUploader{})
	w, env := f.do(t, http.MethodPost, "/api/v1/index", map[string]any{
		"contract_id":   "c1",
		"contract_name": "MSA",
		"clauses": []map[string]any{
			{"type": "payment", "text": "Net 30.", "risk_level": "low"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, env.Data.(map[string]any)["clauses_indexed"])
	require.Len(t, f.index.indexed, 1)
	assert.Equal(t, types.ClauseType("payment"), f.index.indexed[0].Type)

	w, _ = f.do(t, http.MethodPost, "/api/v1/index", map[string]any{"contract_name": "no id"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClausesAndDelete(t *testing.T) {
	f := newFixture(fakeUploader{})
	f.index.clauses["c1"] = []types.HistoricalMatch{{ID: "c1_clause_0"}, {ID: "c1_clause_1"}}

	w, env := f.do(t, http.MethodGet, "/api/v1/contracts/c1/clauses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, env.Data.(map[string]any)["count"])

	w, _ = f.do(t, http.MethodGet, "/api/v1/contracts/nope/clauses", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = f.do(t, http.MethodDelete, "/api/v1/contracts/c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, env.Data.(map[string]any)["deleted"])

	w, _ = f.do(t, http.MethodDelete, "/api/v1/contracts/c1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalysesHistory(t *testing.T) {
	f := newFixture(fakeUploader{})
	f.analysis.history["c1"] = &types.AnalysisResult{ContractID: "c1", Status: types.RunCompleted}

	w, env := f.do(t, http.MethodGet, "/api/v1/analyses?limit=7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, f.analysis.limit)
	assert.EqualValues(t, 1, env.Data.(map[string]any)["count"])

	_, _ = f.do(t, http.MethodGet, "/api/v1/analyses", nil)
	assert.Equal(t, postgres.DefaultListLimit, f.analysis.limit)

	w, _ = f.do(t, http.MethodGet, "/api/v1/analyses?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = f.do(t, http.MethodGet, "/api/v1/analyses/c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", env.Data.(map[string]any)["contract_id"])

	w, _ = f.do(t, http.MethodGet, "/api/v1/analyses/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalysesHistoryDisabled(t *testing.T) {
	f := newFixture(fakeUploader{})
	f.analysis.enabled = false

	w, _ := f.do(t, http.MethodGet, "/api/v1/analyses", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w, _ = f.do(t, http.MethodGet, "/api/v1/analyses/c1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
