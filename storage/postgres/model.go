package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"lexanalyzer/types"
)

// AnalysisRecord 对应 analysis_runs 表, one row per finished run.
type AnalysisRecord struct {
	ContractID      string         `gorm:"column:contract_id;primaryKey;type:varchar(64)"`
	ContractName    string         `gorm:"column:contract_name;type:varchar(255)"`
	KnowledgeBaseID string         `gorm:"column:knowledge_base_id;type:varchar(128);index"`
	ModelUsed       string         `gorm:"column:model_used;type:varchar(128)"`
	Status          string         `gorm:"column:status;type:varchar(16);index"`
	OverallRisk     string         `gorm:"column:overall_risk;type:varchar(16);index"`
	RiskScore       float64        `gorm:"column:risk_score"`
	ClausesFound    int            `gorm:"column:clauses_found"`
	ProcessingTime  float64        `gorm:"column:processing_time"`
	Error           string         `gorm:"column:error;type:text"`
	Result          datatypes.JSON `gorm:"column:result;type:jsonb"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (AnalysisRecord) TableName() string {
	return "analysis_runs"
}

// RunSummary is the list view of a stored run; it omits the result body.
type RunSummary struct {
	ContractID      string    `json:"contract_id"`
	ContractName    string    `json:"contract_name"`
	KnowledgeBaseID string    `json:"knowledge_base_id,omitempty"`
	ModelUsed       string    `json:"model_used"`
	Status          string    `json:"status"`
	OverallRisk     string    `json:"overall_risk,omitempty"`
	RiskScore       float64   `json:"risk_score"`
	ClausesFound    int       `json:"clauses_found"`
	ProcessingTime  float64   `json:"processing_time"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewAnalysisRecord(res *types.AnalysisResult) (*AnalysisRecord, error) {
	body, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode analysis result: %w", err)
	}
	rec := &AnalysisRecord{
		ContractID:      res.ContractID,
		ContractName:    res.ContractName,
		KnowledgeBaseID: res.KnowledgeBaseID,
		ModelUsed:       res.ModelUsed,
		Status:          string(res.Status),
		ClausesFound:    len(res.Clauses),
		ProcessingTime:  res.ProcessingTime,
		Error:           res.Error,
		Result:          datatypes.JSON(body),
	}
	if res.RiskAssessment != nil {
		rec.OverallRisk = string(res.RiskAssessment.OverallRisk)
		rec.RiskScore = res.RiskAssessment.RiskScore
	}
	return rec, nil
}

func (r *AnalysisRecord) Decode() (*types.AnalysisResult, error) {
	if len(r.Result) == 0 {
		return nil, fmt.Errorf("decode analysis %s: empty result", r.ContractID)
	}
	var res types.AnalysisResult
	if err := json.Unmarshal(r.Result, &res); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", r.ContractID, err)
	}
	return &res, nil
}

func (r *AnalysisRecord) Summary() RunSummary {
	return RunSummary{
		ContractID:      r.ContractID,
		ContractName:    r.ContractName,
		KnowledgeBaseID: r.KnowledgeBaseID,
		ModelUsed:       r.ModelUsed,
		Status:          r.Status,
		OverallRisk:     r.OverallRisk,
		RiskScore:       r.RiskScore,
		ClausesFound:    r.ClausesFound,
		ProcessingTime:  r.ProcessingTime,
		Error:           r.Error,
		CreatedAt:       r.CreatedAt,
	}
}
