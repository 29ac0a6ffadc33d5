package types

import "strings"

// ClauseType is the closed clause taxonomy the extractor asks the model for.
type ClauseType string

const (
	ClauseIndemnification      ClauseType = "indemnification"
	ClausePayment              ClauseType = "payment"
	ClauseTermination          ClauseType = "termination"
	ClauseLiability            ClauseType = "liability"
	ClauseConfidentiality      ClauseType = "confidentiality"
	ClauseWarranty             ClauseType = "warranty"
	ClauseDisputeResolution    ClauseType = "dispute_resolution"
	ClauseIntellectualProperty ClauseType = "intellectual_property"
	ClauseOther                ClauseType = "other"
)

var clauseTypes = map[string]ClauseType{
	"indemnification":       ClauseIndemnification,
	"payment":               ClausePayment,
	"termination":           ClauseTermination,
	"liability":             ClauseLiability,
	"confidentiality":       ClauseConfidentiality,
	"warranty":              ClauseWarranty,
	"dispute_resolution":    ClauseDisputeResolution,
	"intellectual_property": ClauseIntellectualProperty,
	"other":                 ClauseOther,
}

// ParseClauseType maps free-form model text onto the taxonomy.
// Anything unrecognised becomes ClauseOther.
func ParseClauseType(s string) ClauseType {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if t, ok := clauseTypes[key]; ok {
		return t
	}
	return ClauseOther
}

type RiskLevel string

const (
	RiskHigh    RiskLevel = "high"
	RiskMedium  RiskLevel = "medium"
	RiskLow     RiskLevel = "low"
	RiskUnknown RiskLevel = "unknown"
)

// ParseRiskLevel returns RiskUnknown and false for anything that is not
// high, medium or low.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskHigh:
		return RiskHigh, true
	case RiskMedium:
		return RiskMedium, true
	case RiskLow:
		return RiskLow, true
	}
	return RiskUnknown, false
}

// Clause 合同条款. Every clause leaving the extractor has Type, Text and RiskLevel set.
type Clause struct {
	Type      ClauseType `json:"type"`
	Text      string     `json:"text"`
	RiskLevel RiskLevel  `json:"risk_level"`
	Reasoning string     `json:"reasoning"`
}

// ClauseMetadata is what the vector store keeps next to each indexed clause.
type ClauseMetadata struct {
	ContractID      string `json:"contract_id"`
	ContractName    string `json:"contract_name"`
	ClauseType      string `json:"clause_type"`
	RiskLevel       string `json:"risk_level"`
	Position        int    `json:"position"`
	KnowledgeBaseID string `json:"knowledge_base_id,omitempty"`
}

// HistoricalMatch is one previously indexed clause returned by similarity search.
type HistoricalMatch struct {
	ID         string         `json:"id,omitempty"`
	Text       string         `json:"text"`
	Metadata   ClauseMetadata `json:"metadata"`
	Distance   float64        `json:"distance"`
	Similarity float64        `json:"similarity"`
}
