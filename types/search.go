package types

type SearchRequest struct {
	Query   string        `json:"query" binding:"required"`
	TopK    int           `json:"top_k"`
	Filters *SearchFilter `json:"filters,omitempty"`
	Mode    string        `json:"mode"` // semantic | hybrid
}

// SearchFilter 标量过滤条件, translated to a Milvus expression.
type SearchFilter struct {
	ContractID        string `json:"contract_id,omitempty"`
	ExcludeContractID string `json:"exclude_contract_id,omitempty"`
	KnowledgeBaseID   string `json:"knowledge_base_id,omitempty"`
	ClauseType        string `json:"clause_type,omitempty"`
	RiskLevel         string `json:"risk_level,omitempty"`
}

type SearchResult struct {
	Status  string            `json:"status"`
	Results []HistoricalMatch `json:"results"`
	Count   int               `json:"count"`
	Message string            `json:"message,omitempty"`
}

type IndexRequest struct {
	ContractID      string   `json:"contract_id" binding:"required"`
	ContractName    string   `json:"contract_name"`
	KnowledgeBaseID string   `json:"knowledge_base_id,omitempty"`
	Clauses         []Clause `json:"clauses" binding:"required"`
}

type IndexResult struct {
	Status         string `json:"status"`
	ClausesIndexed int    `json:"clauses_indexed"`
	Message        string `json:"message,omitempty"`
}

type DeleteResult struct {
	Status  string `json:"status"`
	Deleted int    `json:"deleted"`
	Message string `json:"message,omitempty"`
}

type StatsResult struct {
	TotalClauses   int64  `json:"total_clauses"`
	CollectionName string `json:"collection_name"`
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
}

// QueryIntent is a free-text search question rewritten for retrieval.
type QueryIntent struct {
	SemanticQuery string     `json:"semantic_query"`
	Keywords      []string   `json:"keywords"`
	ClauseType    ClauseType `json:"clause_type,omitempty"`
	RiskLevel     RiskLevel  `json:"risk_level,omitempty"`
}
