package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/perbu/tariffrag/pkg/rag"
)

// RunLines is the plain prompt loop used when input is not a terminal: one
// question per line, answers written to out, until "exit" or end of input.
func RunLines(ctx context.Context, in io.Reader, out io.Writer, asker Asker) error {
	fmt.Fprintln(out, "Enter your questions (type 'exit' to quit):")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "\nQuestion: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(q, "exit") {
			return nil
		}
		if q == "" {
			continue
		}

		answer, err := asker.AnswerQuestion(ctx, q)
		switch {
		case errors.Is(err, rag.ErrIndexNotInitialized):
			fmt.Fprintln(out, indexMissingMessage)
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			fmt.Fprintf(out, "Error: %v\n", err)
		default:
			fmt.Fprintf(out, "\nResponse:\n%s\n", answer)
		}
	}
}
