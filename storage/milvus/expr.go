package milvus

import (
	"fmt"
	"strings"

	"lexanalyzer/types"
	"lexanalyzer/vars"
)

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(s string) string {
	return "'" + literalEscaper.Replace(s) + "'"
}

// Eq builds `field == 'value'`.
func Eq(field, value string) string {
	return fmt.Sprintf("%s == %s", field, quote(value))
}

// BuildExpr 构建过滤表达式; conditions are joined with &&. A nil or empty
// filter yields "".
func BuildExpr(f *types.SearchFilter) string {
	if f == nil {
		return ""
	}
	var exprs []string
	if f.ContractID != "" {
		exprs = append(exprs, Eq(vars.FIELD_CONTRACT_ID, f.ContractID))
	}
	if f.ExcludeContractID != "" {
		exprs = append(exprs, fmt.Sprintf("%s != %s", vars.FIELD_CONTRACT_ID, quote(f.ExcludeContractID)))
	}
	if f.KnowledgeBaseID != "" {
		exprs = append(exprs, Eq(vars.FIELD_KNOWLEDGE_BASE_ID, f.KnowledgeBaseID))
	}
	if f.ClauseType != "" {
		exprs = append(exprs, Eq(vars.FIELD_CLAUSE_TYPE, f.ClauseType))
	}
	if f.RiskLevel != "" {
		exprs = append(exprs, Eq(vars.FIELD_RISK_LEVEL, f.RiskLevel))
	}
	return strings.Join(exprs, " && ")
}
