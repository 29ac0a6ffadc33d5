package vars

import (
	"bytes"
	"text/template"
)

// Render fills a prompt template.
func Render(tmpl string, data any) (string, error) {
	t, err := template.New("p").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	LEGAL_SYSTEM_PROMPT = "You are a legal contract analysis expert specialized in identifying clauses, risks, and obligations in legal documents. Analyze contracts carefully and provide detailed, accurate information."

	// 条款抽取
	EXTRACT_CLAUSES = `
You are a legal contract analyzer. Extract key clauses from this contract.

For each clause, identify:
1. Type (indemnification, payment, termination, liability, confidentiality, warranty, dispute_resolution, intellectual_property, or other)
2. Full text of the clause (keep it concise, max 200 words)
3. Risk level (high, medium, or low)
4. Brief reasoning for the risk level

Contract text:
{{.Content}}

Return ONLY valid JSON in this exact format (no markdown, no extra text):
{
    "clauses": [
        {
            "type": "indemnification",
            "text": "The full clause text here...",
            "risk_level": "high",
            "reasoning": "Why this is high risk..."
        }
    ]
}
`

	// 历史条款对比
	COMPARE_CLAUSE = `
You are a legal contract analyst. Compare this new clause with similar clauses from past contracts.

NEW CLAUSE:
Type: {{.Type}}
Text: {{.Text}}
Current Risk Level: {{.RiskLevel}}

SIMILAR HISTORICAL CLAUSES:
{{.Similar}}

Provide analysis in JSON format:
1. favorability_score: Float from -1 to 1 where:
   - 1.0 = Very favorable (better than historical)
   - 0.0 = Neutral (similar to historical)
   - -1.0 = Very unfavorable (worse than historical)

2. comparison: Brief text comparing the clauses (2-3 sentences)

3. key_differences: List of 2-3 main differences

4. risks: List of 1-3 potential risks or red flags

5. recommendation: Brief recommendation (1 sentence)

Return ONLY valid JSON (no markdown):
{
    "favorability_score": 0.5,
    "comparison": "...",
    "key_differences": ["...", "..."],
    "risks": ["...", "..."],
    "recommendation": "..."
}
`

	// 整体风险评估
	ASSESS_RISK = `
You are a senior legal risk analyst. Assess the overall risk of this contract based on clause-by-clause analysis.

ANALYSIS SUMMARY:
- Total clauses analyzed: {{.Total}}
- High-risk clauses: {{.HighRisk}}
- High-risk ratio: {{printf "%.2f" .HighRiskRatio}}
- Average favorability score: {{printf "%.2f" .AvgFavorability}} (scale: -1 to 1)

DETAILED CLAUSE ANALYSIS:
{{.Details}}

Provide comprehensive risk assessment in JSON format:

1. overall_risk: "high", "medium", or "low"
2. risk_score: Float from 0 to 1 (0=low risk, 1=high risk)
3. top_risks: List of 3-5 most critical risk factors
4. recommendations: List of 3-5 recommended actions
5. executive_summary: 2-3 sentence summary for executives

Return ONLY valid JSON (no markdown):
{
    "overall_risk": "medium",
    "risk_score": 0.6,
    "top_risks": ["...", "...", "..."],
    "recommendations": ["...", "...", "..."],
    "executive_summary": "..."
}
`

	// 检索意图识别
	ANALYZE_QUERY = `
You are a contract clause search assistant.
Rewrite the user's question for clause retrieval and return JSON only.

Rules:
1. semantic_query: the question rewritten as a concise description of the clause being looked for, without party names, dates or amounts.
2. keywords: 2-6 terms for keyword (BM25) search.
3. clause_type: one of indemnification, payment, termination, liability, confidentiality, warranty, dispute_resolution, intellectual_property, or "" when the question is not about one type.
4. risk_level: "high", "medium", "low", or "" when not mentioned.

Output JSON format example:
{
  "semantic_query": "termination for convenience notice period",
  "keywords": ["termination", "notice", "convenience"],
  "clause_type": "termination",
  "risk_level": ""
}

Output JSON only. No markdown.
`
)
