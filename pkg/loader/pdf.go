package loader

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// maxHeadingLen is the longest all-caps line still treated as a heading.
const maxHeadingLen = 100

// PDFToMarkdown extracts the text of a PDF page by page and marks all-caps
// lines as top-level headings, which is how section titles appear in the
// tariff documents.
func PDFToMarkdown(raw []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, TextToMarkdown(text))
	}
	return strings.Join(pages, "\n\n\n"), nil
}

// TextToMarkdown prefixes every short all-caps line with "# ".
func TextToMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if len(line) < maxHeadingLen && isUpper(line) {
			lines[i] = "# " + line
		}
	}
	return strings.Join(lines, "\n")
}

// isUpper reports whether s has at least one cased letter and no lower-case
// ones. Digits and punctuation are ignored, so "TABLE 1" counts.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			return false
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			cased = true
		}
	}
	return cased
}
