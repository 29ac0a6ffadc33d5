package types

// RunStatus 分析任务状态
type RunStatus string

const (
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunError      RunStatus = "error"
)

// step and backend operation statuses
const (
	StepCompleted = "completed"
	StepFailed    = "failed"

	OpSuccess  = "success"
	OpError    = "error"
	OpNotFound = "not_found"
	OpHealthy  = "healthy"
)

type AnalyzeRequest struct {
	ContractText    string `json:"contract_text"`
	ContractName    string `json:"contract_name"`
	ContractID      string `json:"contract_id,omitempty"`
	KnowledgeBaseID string `json:"knowledge_base_id,omitempty"`
	UseFinetuned    *bool  `json:"use_finetuned,omitempty"`
	ModelName       string `json:"model_name,omitempty"`
}

// Finetuned defaults to true when the caller did not say.
func (r *AnalyzeRequest) Finetuned() bool {
	return r.UseFinetuned == nil || *r.UseFinetuned
}

type ComparisonResult struct {
	FavorabilityScore float64  `json:"favorability_score"`
	Comparison        string   `json:"comparison"`
	KeyDifferences    []string `json:"key_differences"`
	Risks             []string `json:"risks"`
	Recommendation    string   `json:"recommendation"`
}

type Comparison struct {
	Clause         Clause            `json:"clause"`
	SimilarClauses []HistoricalMatch `json:"similar_clauses"`
	Comparison     ComparisonResult  `json:"comparison"`
}

type RiskAssessment struct {
	OverallRisk      RiskLevel `json:"overall_risk"`
	RiskScore        float64   `json:"risk_score"`
	TopRisks         []string  `json:"top_risks"`
	Recommendations  []string  `json:"recommendations"`
	ExecutiveSummary string    `json:"executive_summary"`
}

type Summary struct {
	TotalClauses     int       `json:"total_clauses"`
	HighRiskCount    int       `json:"high_risk_count"`
	UnfavorableCount int       `json:"unfavorable_count"`
	OverallRisk      RiskLevel `json:"overall_risk"`
	RiskScore        float64   `json:"risk_score"`
	KeyFindings      []string  `json:"key_findings"`
	ExecutiveSummary string    `json:"executive_summary"`
}

type ExtractionStep struct {
	Status         string `json:"status"`
	ClausesFound   int    `json:"clauses_found"`
	ClausesDropped int    `json:"clauses_dropped"`
}

type ComparisonStep struct {
	Status          string `json:"status"`
	ComparisonsMade int    `json:"comparisons_made"`
	Failures        int    `json:"failures"`
}

type StepStatus struct {
	Status string `json:"status"`
}

// Steps records per-step bookkeeping. A nil step never started.
type Steps struct {
	Extraction     *ExtractionStep `json:"extraction,omitempty"`
	Indexing       *IndexResult    `json:"indexing,omitempty"`
	Comparison     *ComparisonStep `json:"comparison,omitempty"`
	RiskAssessment *StepStatus     `json:"risk_assessment,omitempty"`
}

// AnalysisResult is the root aggregate of one analysis run.
type AnalysisResult struct {
	ContractID      string          `json:"contract_id"`
	ContractName    string          `json:"contract_name"`
	KnowledgeBaseID string          `json:"knowledge_base_id,omitempty"`
	ModelUsed       string          `json:"model_used"`
	Status          RunStatus       `json:"status"`
	Steps           Steps           `json:"steps"`
	Clauses         []Clause        `json:"clauses"`
	Comparisons     []Comparison    `json:"comparisons"`
	RiskAssessment  *RiskAssessment `json:"risk_assessment,omitempty"`
	Summary         *Summary        `json:"summary,omitempty"`
	ProcessingTime  float64         `json:"processing_time"`
	Error           string          `json:"error,omitempty"`
	Traceback       string          `json:"traceback,omitempty"`
}
