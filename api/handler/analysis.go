package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lexanalyzer/api/response"
	"lexanalyzer/pkg/logger"
	"lexanalyzer/service"
	"lexanalyzer/storage/postgres"
	"lexanalyzer/types"
)

// Analyze 分析合同文本
func (h *ContractHandler) Analyze(c *gin.Context) {
	var req types.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWithStatus(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ContractText) == "" {
		response.FailWithStatus(c, http.StatusBadRequest, "invalid request: contract_text is required")
		return
	}
	h.runAnalysis(c, &req)
}

// AnalyzeUpload 上传合同文件 (pdf/txt/md) 并分析
func (h *ContractHandler) AnalyzeUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.FailWithStatus(c, http.StatusBadRequest, "no file received, expected form field 'file'")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.FailWithStatus(c, http.StatusBadRequest, "cannot open uploaded file")
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	text, err := h.uploader.ExtractText(ctx, f, fh.Filename)
	switch {
	case errors.Is(err, service.ErrUnsupportedFile), errors.Is(err, service.ErrEmptyDocument):
		response.FailWithStatus(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logger.WithContext(ctx).Error("extract upload text", zap.String("file", fh.Filename), zap.Error(err))
		response.FailWithStatus(c, http.StatusUnprocessableEntity, "failed to read document: "+err.Error())
		return
	}

	req := types.AnalyzeRequest{
		ContractText:    text,
		ContractName:    c.PostForm("contract_name"),
		ContractID:      c.PostForm("contract_id"),
		KnowledgeBaseID: c.PostForm("knowledge_base_id"),
		ModelName:       c.PostForm("model_name"),
	}
	if req.ContractName == "" {
		req.ContractName = fh.Filename
	}
	if v := c.PostForm("use_finetuned"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.FailWithStatus(c, http.StatusBadRequest, "invalid use_finetuned: "+v)
			return
		}
		req.UseFinetuned = &b
	}
	h.runAnalysis(c, &req)
}

func (h *ContractHandler) runAnalysis(c *gin.Context, req *types.AnalyzeRequest) {
	res := h.analysisSvc.Analyze(c.Request.Context(), req)
	if res.Status == types.RunError {
		response.FailWithData(c, http.StatusInternalServerError, res.Error, res)
		return
	}
	response.Success(c, res)
}

func (h *ContractHandler) ListAnalyses(c *gin.Context) {
	limit := postgres.DefaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.FailWithStatus(c, http.StatusBadRequest, "invalid limit: "+v)
			return
		}
		limit = n
	}
	runs, err := h.analysisSvc.ListAnalyses(c.Request.Context(), limit)
	if err != nil {
		h.historyError(c, err)
		return
	}
	response.Success(c, gin.H{"results": runs, "count": len(runs)})
}

func (h *ContractHandler) GetAnalysis(c *gin.Context) {
	res, err := h.analysisSvc.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.historyError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *ContractHandler) historyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrHistoryDisabled):
		response.FailWithStatus(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, postgres.ErrNotFound):
		response.FailWithStatus(c, http.StatusNotFound, err.Error())
	default:
		logger.WithContext(c.Request.Context()).Error("analysis history", zap.Error(err))
		response.FailWithStatus(c, http.StatusInternalServerError, "analysis history unavailable")
	}
}
