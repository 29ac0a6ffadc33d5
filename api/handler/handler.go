package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lexanalyzer/api/response"
	"lexanalyzer/logic/chat"
	"lexanalyzer/pkg/logger"
	"lexanalyzer/service"
	"lexanalyzer/storage/postgres"
	"lexanalyzer/types"
	"lexanalyzer/vars"
)

type AnalysisService interface {
	Analyze(ctx context.Context, req *types.AnalyzeRequest) *types.AnalysisResult
	GetAnalysis(ctx context.Context, contractID string) (*types.AnalysisResult, error)
	ListAnalyses(ctx context.Context, limit int) ([]postgres.RunSummary, error)
	HistoryEnabled() bool
}

type IndexService interface {
	IndexContract(ctx context.Context, contractID, contractName, kbID string, clauses []types.Clause) types.IndexResult
	SearchSimilarClauses(ctx context.Context, query string, topK int, filter *types.SearchFilter) types.SearchResult
	HybridSearch(ctx context.Context, query string, topK int, filter *types.SearchFilter) types.SearchResult
	GetClauses(ctx context.Context, contractID string) types.SearchResult
	DeleteContract(ctx context.Context, contractID string) types.DeleteResult
	Stats(ctx context.Context) types.StatsResult
}

type Uploader interface {
	ExtractText(ctx context.Context, r io.Reader, filename string) (string, error)
}

// ModelInfo is the part of the completion gateway the API exposes.
type ModelInfo interface {
	Info(ctx context.Context) chat.Info
	ListModels(ctx context.Context) []string
}

type ContractHandler struct {
	analysisSvc AnalysisService
	indexSvc    IndexService
	uploader    Uploader
	models      ModelInfo
}

func NewContractHandler(analysisSvc AnalysisService, indexSvc IndexService, uploader Uploader, models ModelInfo) *ContractHandler {
	return &ContractHandler{
		analysisSvc: analysisSvc,
		indexSvc:    indexSvc,
		uploader:    uploader,
		models:      models,
	}
}

// Health 服务健康状态
func (h *ContractHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	info := h.models.Info(ctx)
	stats := h.indexSvc.Stats(ctx)

	status := types.OpHealthy
	if !info.Available || stats.Status != types.OpHealthy {
		status = "degraded"
	}
	response.Success(c, gin.H{
		"status":          status,
		"llm":             info,
		"index":           stats,
		"history_enabled": h.analysisSvc.HistoryEnabled(),
	})
}

func (h *ContractHandler) Models(c *gin.Context) {
	ctx := c.Request.Context()
	info := h.models.Info(ctx)
	response.Success(c, gin.H{
		"provider":        info.Provider,
		"base_model":      info.BaseModel,
		"finetuned_model": info.FinetunedModel,
		"available":       info.Available,
		"models":          h.models.ListModels(ctx),
	})
}

func (h *ContractHandler) Stats(c *gin.Context) {
	stats := h.indexSvc.Stats(c.Request.Context())
	if stats.Status != types.OpHealthy {
		response.FailWithData(c, http.StatusInternalServerError, stats.Message, stats)
		return
	}
	response.Success(c, stats)
}

// Search 检索相似条款, semantic by default, hybrid fuses Milvus and ES.
func (h *ContractHandler) Search(c *gin.Context) {
	var req types.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		response.FailWithStatus(c, http.StatusBadRequest, "invalid request: query is required")
		return
	}
	req.TopK = service.ClampTopK(req.TopK)

	ctx := c.Request.Context()
	var res types.SearchResult
	switch strings.ToLower(req.Mode) {
	case "", vars.SEMANTIC:
		res = h.indexSvc.SearchSimilarClauses(ctx, req.Query, req.TopK, req.Filters)
	case vars.HYBRID:
		res = h.indexSvc.HybridSearch(ctx, req.Query, req.TopK, req.Filters)
	default:
		response.FailWithStatus(c, http.StatusBadRequest, "invalid mode: expected semantic or hybrid")
		return
	}
	if res.Status != types.OpSuccess {
		response.FailWithData(c, http.StatusInternalServerError, res.Message, res)
		return
	}
	response.Success(c, res)
}

// Index 直接写入已抽取的条款
func (h *ContractHandler) Index(c *gin.Context) {
	var req types.IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWithStatus(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	res := h.indexSvc.IndexContract(c.Request.Context(), req.ContractID, req.ContractName, req.KnowledgeBaseID, req.Clauses)
	if res.Status != types.OpSuccess {
		response.FailWithData(c, http.StatusInternalServerError, res.Message, res)
		return
	}
	response.Success(c, res)
}

func (h *ContractHandler) GetClauses(c *gin.Context) {
	res := h.indexSvc.GetClauses(c.Request.Context(), c.Param("id"))
	switch res.Status {
	case types.OpSuccess:
		response.Success(c, res)
	case types.OpNotFound:
		response.FailWithData(c, http.StatusNotFound, "contract not found", res)
	default:
		response.FailWithData(c, http.StatusInternalServerError, res.Message, res)
	}
}

func (h *ContractHandler) DeleteContract(c *gin.Context) {
	id := c.Param("id")
	res := h.indexSvc.DeleteContract(c.Request.Context(), id)
	switch res.Status {
	case types.OpSuccess:
		logger.WithContext(c.Request.Context()).Info("contract deleted", zap.String("contract_id", id), zap.Int("deleted", res.Deleted))
		response.Success(c, res)
	case types.OpNotFound:
		response.FailWithData(c, http.StatusNotFound, "contract not found", res)
	default:
		response.FailWithData(c, http.StatusInternalServerError, res.Message, res)
	}
}
