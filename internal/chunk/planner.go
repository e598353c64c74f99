// Package chunk splits long transcripts into context-sized pieces and
// reassembles the per-piece summaries in order.
package chunk

import "unicode"

// Chunk is the half-open character range [Start, End) of a transcript.
// Offsets count characters (runes), not bytes.
type Chunk struct {
	Ordinal int `json:"ordinal"`
	Start   int `json:"start"`
	End     int `json:"end"`
}

// Len returns the number of characters in the chunk.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Plan partitions text into ordered, contiguous chunks of at most contextLength
// characters. A contextLength of 0, or text that already fits, yields one chunk
// spanning the whole text.
//
// Split points are pulled back to the latest paragraph break anywhere in the
// window, failing that the latest sentence end, failing that the latest
// whitespace. Without any of those the chunk is cut at exactly contextLength
// characters.
func Plan(text string, contextLength int) []Chunk {
	return planRunes([]rune(text), contextLength)
}

// Texts returns the text of each chunk, in chunk order.
func Texts(text string, chunks []Chunk) []string {
	runes := []rune(text)
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = string(runes[c.Start:c.End])
	}
	return out
}

func planRunes(runes []rune, limit int) []Chunk {
	n := len(runes)
	if limit <= 0 || n <= limit {
		return []Chunk{{Ordinal: 1, Start: 0, End: n}}
	}

	chunks := make([]Chunk, 0, n/limit+1)
	start := 0
	for start < n {
		end := start + limit
		if end >= n {
			end = n
		} else {
			end = splitPoint(runes, start, end)
		}
		chunks = append(chunks, Chunk{Ordinal: len(chunks) + 1, Start: start, End: end})
		start = end
	}
	return chunks
}

// splitPoint picks the cut for a chunk starting at start whose hard limit is target.
// The result is always in (start, target].
func splitPoint(runes []rune, start, target int) int {
	lo := start + 1

	for i := target; i >= lo; i-- {
		if paragraphBreakAt(runes, start, i) {
			return i
		}
	}
	for i := target; i >= lo; i-- {
		if sentenceEndAt(runes, i) {
			return i
		}
	}
	for i := target; i >= lo; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return target
}

// paragraphBreakAt reports whether position i directly follows a blank line.
func paragraphBreakAt(runes []rune, start, i int) bool {
	if runes[i-1] != '\n' {
		return false
	}
	for j := i - 2; j >= start; j-- {
		switch runes[j] {
		case '\n':
			return true
		case ' ', '\t', '\r':
			continue
		default:
			return false
		}
	}
	return false
}

// sentenceEndAt reports whether position i directly follows sentence-ending
// punctuation. ASCII punctuation must be followed by whitespace.
func sentenceEndAt(runes []rune, i int) bool {
	switch runes[i-1] {
	case '。', '！', '？':
		return true
	case '.', '!', '?':
		return i < len(runes) && unicode.IsSpace(runes[i])
	}
	return false
}
