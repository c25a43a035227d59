package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/perbu/tariffrag/pkg/llm"
)

// Analyzer turns a raw question into a SearchIntent using the language model.
type Analyzer struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewAnalyzer creates a query analyzer.
func NewAnalyzer(client llm.Client, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{llm: client, logger: logger}
}

// analysisResponse keeps every field raw. Only search_query is required; the
// other fields are best effort and dropped when they have an unexpected type.
type analysisResponse struct {
	IsTariffRelated json.RawMessage `json:"is_tariff_related"`
	IsTopicRelated  json.RawMessage `json:"is_topic_related"`
	TariffName      json.RawMessage `json:"tariff_name"`
	EntityName      json.RawMessage `json:"entity_name"`
	SearchQuery     json.RawMessage `json:"search_query"`
}

// Name implements Stage.
func (a *Analyzer) Name() string { return "analyze_query" }

// Run implements Stage. It never fails: on any error the intent falls back to
// the question as asked.
func (a *Analyzer) Run(ctx context.Context, st State) Result {
	intent, err := a.Analyze(ctx, st.Question)
	next := st.WithIntent(intent)
	if err != nil {
		return degraded(next, err)
	}
	return ok(next)
}

// Analyze returns the search intent for question. When err is non-nil it
// wraps ErrAnalysisDegraded and the returned intent is FallbackIntent.
func (a *Analyzer) Analyze(ctx context.Context, question string) (SearchIntent, error) {
	resp, err := a.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: analysisSystemPrompt},
			{Role: llm.RoleUser, Content: question},
		},
		JSON: true,
	})
	if err != nil {
		a.logger.Error("error analyzing query", "error", err)
		return FallbackIntent(question), fmt.Errorf("%w: %w", ErrAnalysisDegraded, err)
	}
	if resp == nil || resp.Content == nil {
		a.logger.Error("query analysis returned no content")
		return FallbackIntent(question), fmt.Errorf("%w: empty model response", ErrAnalysisDegraded)
	}

	intent, err := parseIntent(*resp.Content)
	if err != nil {
		a.logger.Error("failed to parse query analysis as JSON", "error", err, "raw", *resp.Content)
		return FallbackIntent(question), fmt.Errorf("%w: %w", ErrAnalysisDegraded, err)
	}

	attrs := []any{"search_query", intent.RewrittenQuery, "tariff_related", intent.IsTopicRelated}
	if intent.EntityName != nil {
		attrs = append(attrs, "tariff_name", *intent.EntityName)
	}
	a.logger.Info("query analysis", attrs...)
	return intent, nil
}

func parseIntent(raw string) (SearchIntent, error) {
	var resp analysisResponse
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &resp); err != nil {
		return SearchIntent{}, err
	}
	query, ok := rawString(resp.SearchQuery)
	if !ok {
		return SearchIntent{}, errors.New("search_query missing or not a string")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchIntent{}, errors.New("search_query empty")
	}

	intent := SearchIntent{RewrittenQuery: query}
	if related, ok := rawBool(resp.IsTariffRelated); ok {
		intent.IsTopicRelated = related
	} else if related, ok := rawBool(resp.IsTopicRelated); ok {
		intent.IsTopicRelated = related
	}

	name, ok := rawString(resp.TariffName)
	if !ok {
		name, _ = rawString(resp.EntityName)
	}
	if n := strings.TrimSpace(name); n != "" {
		intent.EntityName = &n
	}
	return intent, nil
}

// rawString decodes a JSON string. Absent, null and non-string values report false.
func rawString(raw json.RawMessage) (string, bool) {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

// rawBool decodes a JSON boolean, also accepting a quoted "true" or "false".
func rawBool(raw json.RawMessage) (bool, bool) {
	var b bool
	if len(raw) == 0 {
		return false, false
	}
	if json.Unmarshal(raw, &b) == nil {
		return b, true
	}
	if s, ok := rawString(raw); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// stripCodeFence removes a surrounding ```json ... ``` block, which some
// models emit despite being told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
