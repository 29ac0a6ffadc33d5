// Package analysis runs the full contract analysis pipeline: extraction,
// indexing, per-clause comparison, risk assessment and summary.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lexanalyzer/logic/chat"
	"lexanalyzer/logic/compare"
	"lexanalyzer/logic/ingestion/extract"
	"lexanalyzer/logic/retrieval"
	"lexanalyzer/logic/risk"
	"lexanalyzer/pkg/logger"
	"lexanalyzer/types"
)

const (
	DefaultContractName = "New Contract"
	unfavorableBelow    = -0.3
	keyFindings         = 3
)

var ErrCanceled = errors.New("analysis canceled")

type Options struct {
	CompareWorkers   int
	RetrievalTimeout time.Duration
	IndexTimeout     time.Duration
	MaxChars         int
}

func (o Options) withDefaults() Options {
	if o.CompareWorkers <= 0 {
		o.CompareWorkers = 4
	}
	if o.RetrievalTimeout <= 0 {
		o.RetrievalTimeout = 30 * time.Second
	}
	if o.IndexTimeout <= 0 {
		o.IndexTimeout = 60 * time.Second
	}
	return o
}

// Analyzer owns one pipeline configuration. Analyze may be called
// concurrently; each run owns its own result.
type Analyzer struct {
	index      retrieval.ClauseIndex
	extractor  *extract.Extractor
	comparator *compare.Comparator
	risk       *risk.Aggregator
	opts       Options
}

func New(llm chat.Completer, index retrieval.ClauseIndex, opts Options) *Analyzer {
	opts = opts.withDefaults()
	return &Analyzer{
		index:      index,
		extractor:  extract.New(llm, opts.MaxChars),
		comparator: compare.New(llm),
		risk:       risk.New(llm),
		opts:       opts,
	}
}

// NewContractID returns "contract_" followed by 12 random hex digits.
func NewContractID() string {
	return "contract_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Analyze always returns a result in a terminal state. Failures are carried
// in Status, Error and Traceback alongside whatever steps already finished.
func (a *Analyzer) Analyze(ctx context.Context, req *types.AnalyzeRequest) (res *types.AnalysisResult) {
	start := time.Now()

	id := req.ContractID
	if id == "" {
		id = NewContractID()
	}
	name := req.ContractName
	if name == "" {
		name = DefaultContractName
	}
	res = &types.AnalysisResult{
		ContractID:      id,
		ContractName:    name,
		KnowledgeBaseID: req.KnowledgeBaseID,
		ModelUsed:       modelUsed(req),
		Status:          types.RunProcessing,
		Clauses:         []types.Clause{},
		Comparisons:     []types.Comparison{},
	}

	ctx = logger.WithContractID(ctx, id)
	log := logger.WithContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			res.Status = types.RunError
			res.Error = fmt.Sprintf("panic: %v", r)
			res.Traceback = string(debug.Stack())
		}
		res.ProcessingTime = math.Round(time.Since(start).Seconds()*100) / 100
		if res.Status == types.RunError {
			log.Error("analysis failed", zap.String("error", res.Error), zap.Float64("processing_time", res.ProcessingTime))
		} else {
			log.Info("analysis completed", zap.Int("clauses", len(res.Clauses)), zap.Float64("processing_time", res.ProcessingTime))
		}
	}()

	opts := []chat.Option{chat.WithFinetuned(req.Finetuned())}
	if req.ModelName != "" {
		opts = append(opts, chat.WithModel(req.ModelName))
	}

	if err := a.run(ctx, log, res, req.ContractText, opts); err != nil {
		res.Status = types.RunError
		res.Error = err.Error()
		res.Traceback = Trace(err)
		return res
	}
	res.Status = types.RunCompleted
	return res
}

func (a *Analyzer) run(ctx context.Context, log *zap.Logger, res *types.AnalysisResult, text string, opts []chat.Option) error {
	// Step 1: 条款抽取
	if err := checkpoint(ctx, "extraction"); err != nil {
		return err
	}
	log.Info("step 1: extracting clauses", zap.String("model", res.ModelUsed))
	ext, err := a.extractor.ExtractAndClean(ctx, text, opts...)
	if err != nil {
		res.Steps.Extraction = &types.ExtractionStep{Status: types.StepFailed}
		return fmt.Errorf("clause extraction: %w", err)
	}
	res.Steps.Extraction = &types.ExtractionStep{
		Status:         types.StepCompleted,
		ClausesFound:   len(ext.Clauses),
		ClausesDropped: ext.Dropped,
	}
	if len(ext.Clauses) == 0 {
		ra := risk.Unknown()
		ra.ExecutiveSummary = "No clauses extracted"
		res.RiskAssessment = &ra
		sum := Summarize(nil, nil, ra)
		res.Summary = &sum
		return nil
	}
	res.Clauses = ext.Clauses

	// Step 2: 入库
	if err := checkpoint(ctx, "indexing"); err != nil {
		return err
	}
	log.Info("step 2: indexing clauses", zap.Int("count", len(ext.Clauses)))
	ictx, cancel := context.WithTimeout(ctx, a.opts.IndexTimeout)
	idx := a.index.IndexContract(ictx, res.ContractID, res.ContractName, res.KnowledgeBaseID, ext.Clauses)
	cancel()
	res.Steps.Indexing = &idx
	if idx.Status != types.OpSuccess {
		log.Warn("indexing failed, continuing", zap.String("message", idx.Message))
	}

	// Step 3: 历史对比
	if err := checkpoint(ctx, "comparison"); err != nil {
		return err
	}
	log.Info("step 3: comparing clauses")
	comps, failures := a.compareAll(ctx, res.ContractID, res.KnowledgeBaseID, ext.Clauses, opts)
	res.Comparisons = comps
	res.Steps.Comparison = &types.ComparisonStep{
		Status:          types.StepCompleted,
		ComparisonsMade: len(comps),
		Failures:        failures,
	}

	// Step 4: 风险评估
	if err := checkpoint(ctx, "risk assessment"); err != nil {
		return err
	}
	log.Info("step 4: assessing overall risk")
	ra := a.risk.Assess(ctx, comps, opts...)
	res.RiskAssessment = &ra
	res.Steps.RiskAssessment = &types.StepStatus{Status: types.StepCompleted}

	// Step 5
	sum := Summarize(res.Clauses, comps, ra)
	res.Summary = &sum
	return nil
}

// compareAll fans clause comparisons out over a bounded worker group.
// comparisons[i] always belongs to clauses[i].
func (a *Analyzer) compareAll(ctx context.Context, contractID, kbID string, clauses []types.Clause, opts []chat.Option) ([]types.Comparison, int) {
	out := make([]types.Comparison, len(clauses))
	var failures atomic.Int64

	var g errgroup.Group
	g.SetLimit(a.opts.CompareWorkers)
	for i, clause := range clauses {
		g.Go(func() error {
			out[i] = a.compareOne(ctx, contractID, kbID, i, clause, opts, &failures)
			return nil
		})
	}
	_ = g.Wait()
	return out, int(failures.Load())
}

func (a *Analyzer) compareOne(ctx context.Context, contractID, kbID string, i int, clause types.Clause, opts []chat.Option, failures *atomic.Int64) (c types.Comparison) {
	log := logger.WithContext(ctx).With(zap.Int("clause", i+1), zap.String("type", string(clause.Type)))
	c = types.Comparison{Clause: clause, SimilarClauses: []types.HistoricalMatch{}}

	defer func() {
		if r := recover(); r != nil {
			log.Error("clause comparison panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			failures.Add(1)
			c.SimilarClauses = []types.HistoricalMatch{}
			c.Comparison = compare.NoHistory()
		}
	}()

	rctx, cancel := context.WithTimeout(ctx, a.opts.RetrievalTimeout)
	similar := retrieval.Similar(rctx, a.index, clause.Text, contractID, kbID)
	timedOut := errors.Is(rctx.Err(), context.DeadlineExceeded)
	cancel()
	if timedOut {
		log.Warn("similarity search timed out")
		failures.Add(1)
		c.Comparison = compare.NoHistory()
		return c
	}
	if similar != nil {
		c.SimilarClauses = similar
	}

	log.Debug("comparing clause", zap.Int("similar", len(c.SimilarClauses)))
	c.Comparison = a.comparator.Compare(ctx, clause, c.SimilarClauses, opts...)
	return c
}

// Summarize derives the report summary without any model call.
func Summarize(clauses []types.Clause, comparisons []types.Comparison, ra types.RiskAssessment) types.Summary {
	s := types.Summary{
		TotalClauses:     len(clauses),
		OverallRisk:      ra.OverallRisk,
		RiskScore:        ra.RiskScore,
		KeyFindings:      []string{},
		ExecutiveSummary: ra.ExecutiveSummary,
	}
	if s.OverallRisk == "" {
		s.OverallRisk = types.RiskUnknown
	}
	for _, c := range clauses {
		if c.RiskLevel == types.RiskHigh {
			s.HighRiskCount++
		}
	}
	for _, c := range comparisons {
		if c.Comparison.FavorabilityScore < unfavorableBelow {
			s.UnfavorableCount++
		}
	}
	findings := ra.TopRisks
	if len(findings) > keyFindings {
		findings = findings[:keyFindings]
	}
	s.KeyFindings = append(s.KeyFindings, findings...)
	return s
}

// Trace renders the cause chain of err, one cause per line, plus the raw
// model output when extraction failed on it.
func Trace(err error) string {
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "%T: %s\n", e, e.Error())
	}
	var xe *extract.Error
	if errors.As(err, &xe) && xe.RawResponse != "" {
		fmt.Fprintf(&b, "raw response: %s\n", xe.RawResponse)
	}
	return b.String()
}

func modelUsed(req *types.AnalyzeRequest) string {
	switch {
	case req.ModelName != "":
		return req.ModelName
	case req.Finetuned():
		return "fine-tuned"
	default:
		return "base"
	}
}

func checkpoint(ctx context.Context, step string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w before %s: %w", ErrCanceled, step, err)
	}
	return nil
}
