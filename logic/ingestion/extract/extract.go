package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"lexanalyzer/logic/chat"
	"lexanalyzer/pkg/logger"
	"lexanalyzer/types"
	"lexanalyzer/vars"
)

const DefaultMaxChars = 4000

var (
	ErrEmptyText      = errors.New("no contract text provided")
	ErrUnparseable    = errors.New("failed to parse extraction response")
	ErrMissingClauses = errors.New("extraction response has no clauses list")
)

// Error keeps the raw model output next to the cause for diagnostics.
type Error struct {
	Err         error
	RawResponse string
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

type Result struct {
	Clauses []types.Clause
	// Dropped counts clause objects discarded for missing or invalid fields.
	Dropped int
}

type Extractor struct {
	llm      chat.Completer
	maxChars int
}

func New(llm chat.Completer, maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Extractor{llm: llm, maxChars: maxChars}
}

// ExtractAndClean asks the model for clauses in the leading maxChars of
// content and keeps only well-formed ones. An empty but valid list is not an
// error.
func (e *Extractor) ExtractAndClean(ctx context.Context, content string, opts ...chat.Option) (*Result, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyText
	}
	if r := []rune(content); len(r) > e.maxChars {
		content = string(r[:e.maxChars])
	}

	prompt, err := vars.Render(vars.EXTRACT_CLAUSES, map[string]string{"Content": content})
	if err != nil {
		return nil, fmt.Errorf("render extraction prompt: %w", err)
	}

	opts = append(opts, chat.WithTemperature(0.3))
	raw := e.llm.Complete(ctx, prompt, opts...)

	obj := chat.ExtractJSON(raw)
	if obj == nil {
		return nil, &Error{Err: ErrUnparseable, RawResponse: raw}
	}
	items, ok := obj.Objects("clauses")
	if !ok {
		return nil, &Error{Err: ErrMissingClauses, RawResponse: raw}
	}

	res := &Result{Clauses: make([]types.Clause, 0, len(items))}
	for _, item := range items {
		clause, ok := toClause(item)
		if !ok {
			res.Dropped++
			continue
		}
		res.Clauses = append(res.Clauses, clause)
	}
	if res.Dropped > 0 {
		logger.WithContext(ctx).Warn("dropped malformed clauses", zap.Int("dropped", res.Dropped), zap.Int("kept", len(res.Clauses)))
	}
	return res, nil
}

func toClause(obj chat.Object) (types.Clause, bool) {
	if obj == nil {
		return types.Clause{}, false
	}
	typ, _ := obj.String("type")
	text, _ := obj.String("text")
	level, _ := obj.String("risk_level")
	if strings.TrimSpace(typ) == "" || strings.TrimSpace(text) == "" {
		return types.Clause{}, false
	}
	risk, ok := types.ParseRiskLevel(level)
	if !ok {
		return types.Clause{}, false
	}
	reasoning, _ := obj.String("reasoning")
	return types.Clause{
		Type:      types.ParseClauseType(typ),
		Text:      strings.TrimSpace(text),
		RiskLevel: risk,
		Reasoning: reasoning,
	}, true
}
