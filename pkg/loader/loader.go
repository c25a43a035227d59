// Package loader turns tariff documents (PDF or markdown) into chunks split
// along markdown headings.
package loader

import (
	"bufio"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/perbu/tariffrag/pkg/rag"
)

// MaxHeadingLevel is the deepest heading that starts a new section. Deeper
// headings stay in the chunk text.
const MaxHeadingLevel = 3

// Document is one source file converted to markdown.
type Document struct {
	SourceID string // file name relative to the docs root
	Content  string
}

// Skipped is a file that could not be converted and was left out.
type Skipped struct {
	SourceID string
	Err      error
}

// LoadDocuments reads every .pdf and .md file under root, converting PDFs to
// markdown. Documents are returned sorted by SourceID so that chunk order,
// and therefore index insertion order, is stable across runs. A PDF that
// fails to convert is reported in skipped and does not stop the walk; read
// errors do.
func LoadDocuments(fsys fs.FS, root string) (docs []Document, skipped []Skipped, err error) {

	err = fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(path.Ext(p))
		if ext != ".md" && ext != ".pdf" {
			return nil
		}

		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}

		rel := p
		if root != "." {
			rel = strings.TrimPrefix(p, root+"/")
		}

		content := string(raw)
		if ext == ".pdf" {
			content, err = PDFToMarkdown(raw)
			if err != nil {
				skipped = append(skipped, Skipped{SourceID: rel, Err: fmt.Errorf("converting %s: %w", p, err)})
				return nil
			}
		}

		docs = append(docs, Document{SourceID: rel, Content: content})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].SourceID < docs[j].SourceID })
	return docs, skipped, nil
}

// headingLevel returns the level of a markdown ATX heading and its text, or
// 0 if line is not a heading up to MaxHeadingLevel.
func headingLevel(line string) (int, string) {
	trimmed := strings.TrimLeft(line, " ")
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > MaxHeadingLevel {
		return 0, ""
	}
	rest := trimmed[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return 0, ""
	}
	return level, strings.TrimSpace(rest)
}

// ChunkDocument splits a markdown document into one chunk per section. Each
// chunk records the heading path leading to it; heading lines themselves are
// not part of the chunk text. Sections with no text are dropped.
func ChunkDocument(sourceID, content string) []rag.Chunk {
	var chunks []rag.Chunk

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var headings [MaxHeadingLevel]string
	depth := 0
	var current strings.Builder

	flushChunk := func() {
		text := strings.TrimSpace(current.String())
		current.Reset()
		if text == "" {
			return
		}
		var section []string
		for _, h := range headings[:depth] {
			if h != "" {
				section = append(section, h)
			}
		}
		chunks = append(chunks, rag.Chunk{
			Text:        text,
			SourceID:    sourceID,
			SectionPath: section,
			IsTable:     LooksLikeTable(text),
		})
	}

	for scanner.Scan() {
		line := scanner.Text()

		if level, title := headingLevel(line); level > 0 {
			flushChunk()
			headings[level-1] = title
			for i := level; i < MaxHeadingLevel; i++ {
				headings[i] = ""
			}
			depth = level
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}

	flushChunk()
	return chunks
}

// LooksLikeTable reports whether text is, or introduces, tabular content:
// a markdown table row, or a line starting with "Table".
func LooksLikeTable(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "|") && strings.Count(line, "|") >= 2 {
			return true
		}
		if len(line) >= 5 && strings.EqualFold(line[:5], "table") {
			return true
		}
	}
	return false
}

// LoadAndChunkAll loads all documents and chunks them
func LoadAndChunkAll(fsys fs.FS, root string) ([]rag.Chunk, []Skipped, error) {
	docs, skipped, err := LoadDocuments(fsys, root)
	if err != nil {
		return nil, nil, err
	}

	var allChunks []rag.Chunk
	for _, doc := range docs {
		allChunks = append(allChunks, ChunkDocument(doc.SourceID, doc.Content)...)
	}

	return allChunks, skipped, nil
}
