package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/perbu/tariffrag/pkg/llm"
	"github.com/perbu/tariffrag/pkg/rag"
)

// Generator composes the final answer from the question and its context.
type Generator struct {
	llm      llm.Client
	logger   *slog.Logger
	dumpPath string
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithContextDump writes the assembled context to path before every model
// call, for inspecting what the model was shown.
func WithContextDump(path string) GeneratorOption {
	return func(g *Generator) { g.dumpPath = path }
}

// NewGenerator creates an answer generator.
func NewGenerator(client llm.Client, logger *slog.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{llm: client, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements Stage.
func (g *Generator) Name() string { return "generate_answer" }

// Run implements Stage. It always writes an answer.
func (g *Generator) Run(ctx context.Context, st State) Result {
	answer, err := g.Generate(ctx, st.Question, st.Context)
	next := st.WithAnswer(answer)
	if err != nil {
		return degraded(next, err)
	}
	return ok(next)
}

// FormatContext joins chunk texts with blank lines.
func FormatContext(chunks []rag.Chunk) string {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	return strings.Join(texts, "\n\n")
}

// Generate returns a non-empty answer. A non-nil error means the answer is a
// fallback message and err explains why.
func (g *Generator) Generate(ctx context.Context, question string, chunks []rag.Chunk) (string, error) {
	formatted := FormatContext(chunks)
	if g.dumpPath != "" {
		if err := dumpContext(g.dumpPath, question, chunks, formatted); err != nil {
			g.logger.Warn("failed to dump context", "path", g.dumpPath, "error", err)
		} else {
			g.logger.Debug("context dumped", "path", g.dumpPath)
		}
	}

	g.logger.Debug("sending answer request", "chunks", len(chunks), "context_len", len(formatted))
	resp, err := g.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: answerSystemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf(answerUserPrompt, formatted, question)},
		},
	})
	if err != nil {
		g.logger.Error("error generating response", "error", err)
		return ErrorFallbackMessage, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	answer, err := validateResponse(resp)
	if err != nil {
		g.logger.Error("error generating response", "error", err)
		return ErrorFallbackMessage, err
	}
	if answer == "" {
		g.logger.Warn("model returned empty content, using insufficient-information message")
		return InsufficientInfoMessage, nil
	}
	return answer, nil
}

func validateResponse(resp *llm.Response) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: no response object received from the model", ErrGeneration)
	}
	if resp.Content == nil {
		return "", fmt.Errorf("%w: response is missing content", ErrGeneration)
	}
	return *resp.Content, nil
}

func dumpContext(path, question string, chunks []rag.Chunk, formatted string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString("Context chunks:\n")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "\nChunk %d (%s", i+1, c.SourceID)
		if len(c.SectionPath) > 0 {
			fmt.Fprintf(&b, " > %s", strings.Join(c.SectionPath, " > "))
		}
		b.WriteString("):\n")
		b.WriteString(strings.Repeat("-", 40) + "\n")
		b.WriteString(c.Text)
		b.WriteString("\n" + strings.Repeat("-", 40) + "\n")
	}
	fmt.Fprintf(&b, "\nTotal context length: %d characters\n", len(formatted))
	return os.WriteFile(path, []byte(b.String()), 0644)
}
