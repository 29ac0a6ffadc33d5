package vars

const (
	// 模型名称
	NOMIC = "nomic-embed-text"

	GROQ_BASE_MODEL        = "llama-3.2-3b-preview"
	GROQ_FINETUNED_MODEL   = "llama-3.2-3b-preview"
	OLLAMA_BASE_MODEL      = "llama3.2:3b"
	OLLAMA_FINETUNED_MODEL = "legal-contract-analyzer"

	GROQ_BASE_URL   = "https://api.groq.com/openai/v1"
	OLLAMA_BASE_URL = "http://localhost:11434"

	// Milvus Collection / ES index
	COLLECTION = "contract_clauses"
	ES_INDEX   = "contract_clauses_v1"

	// 检索方式
	SEMANTIC = "semantic"
	HYBRID   = "hybrid"

	// 生成参数默认值
	DEFAULT_TEMPERATURE = 0.7
	DEFAULT_MAX_TOKENS  = 2000
)

// GROQ_MODELS is the static model list advertised for the remote provider.
var GROQ_MODELS = []string{
	"llama-3.2-3b-preview",
	"llama-3.2-1b-preview",
	"llama-3.1-8b-instant",
	"mixtral-8x7b-32768",
}

// 条款元数据字段 (Milvus 列名 / ES 字段名)
const (
	FIELD_ID                = "id"
	FIELD_VECTOR            = "vector"
	FIELD_CONTENT           = "content"
	FIELD_CONTRACT_ID       = "contract_id"
	FIELD_CONTRACT_NAME     = "contract_name"
	FIELD_CLAUSE_TYPE       = "clause_type"
	FIELD_RISK_LEVEL        = "risk_level"
	FIELD_POSITION          = "position"
	FIELD_KNOWLEDGE_BASE_ID = "knowledge_base_id"
)
