package pipeline

import "errors"

var (
	// ErrEmptyQuestion is returned when AnswerQuestion is called with a blank question.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrAnalysisDegraded marks a query analysis that fell back to the raw
	// question. It is logged, never returned to callers of AnswerQuestion.
	ErrAnalysisDegraded = errors.New("query analysis degraded")

	// ErrExpansion wraps unexpected failures while following references.
	ErrExpansion = errors.New("reference expansion failed")

	// ErrGeneration marks an unusable model response during answer
	// generation. It is absorbed into the apology message.
	ErrGeneration = errors.New("answer generation failed")
)
