package rag

// Dedupe returns chunks with structural duplicates removed, keeping the first
// occurrence of each. The input slice is not modified.
func Dedupe(chunks []Chunk) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		k := c.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
