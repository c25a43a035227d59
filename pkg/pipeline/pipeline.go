// Package pipeline answers tariff questions with a four-stage workflow:
// analyze the question, retrieve context, expand table references, and
// generate a grounded answer.
//
// Only retrieval may abort a request. Every other stage degrades to a
// deterministic fallback and the orchestrator logs it.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Pipeline runs the stages in order. It holds no per-request state and is
// safe for concurrent use if its collaborators are.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// New wires the standard workflow:
// analyze_query -> retrieve_context -> expand_references -> generate_answer.
func New(analyzer *Analyzer, retriever *Retriever, expander *Expander, generator *Generator, logger *slog.Logger) *Pipeline {
	return NewWithStages(logger, analyzer, retriever, expander, generator)
}

// NewWithStages builds a pipeline from arbitrary stages.
func NewWithStages(logger *slog.Logger, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{stages: stages, logger: logger}
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// AnswerQuestion returns the answer to question. It returns an error only for
// a blank question or a fatal stage failure such as a missing index
// (rag.ErrIndexNotInitialized, returned unwrapped).
func (p *Pipeline) AnswerQuestion(ctx context.Context, question string) (string, error) {
	st, err := p.Run(ctx, question)
	if err != nil {
		return "", err
	}
	return *st.Answer, nil
}

// Run executes every stage and returns the final state.
func (p *Pipeline) Run(ctx context.Context, question string) (State, error) {
	if strings.TrimSpace(question) == "" {
		return State{}, ErrEmptyQuestion
	}

	st := NewState(question)
	logger := p.logger.With("request_id", st.RequestID)
	logger.Info("processing question", "question", question)
	start := time.Now()

	for _, stage := range p.stages {
		res := stage.Run(ctx, st)
		switch res.Outcome {
		case OutcomeFatal:
			logger.Error("stage failed", "stage", stage.Name(), "error", res.Err)
			return res.State, res.Err
		case OutcomeDegraded:
			logger.Warn("stage degraded", "stage", stage.Name(), "error", res.Err)
		default:
			logger.Debug("stage complete", "stage", stage.Name())
		}
		st = res.State
	}

	if st.Answer == nil {
		return st, errors.New("pipeline finished without an answer")
	}

	logger.Info("question answered",
		"search_query", st.SearchQuery(),
		"context_chunks", len(st.Context),
		"duration", time.Since(start),
	)
	return st, nil
}
