// Package chunker splits document text into overlapping windows for indexing.
package chunker

import (
	"errors"
	"strings"
)

// ErrEmptyInput is returned when there is no text to split. Callers must
// treat zero chunks as an ingestion failure, not a silent no-op.
var ErrEmptyInput = errors.New("no text to split")

// separators are tried largest-first; a piece only falls through to the
// next separator when it still exceeds the chunk size.
var separators = []string{"\n\n", "\n", " "}

// Splitter produces chunks of at most ChunkSize characters, each chunk
// after the first seeded with the trailing Overlap characters of the
// previous one.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

// NewSplitter clamps overlap below chunk size and rejects non-positive sizes
// by falling back to defaults matching the ingestion configuration.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

// Split joins the given text blocks and cuts them into chunks. Splitting is
// deterministic: the same input always yields the same chunks.
func (s *Splitter) Split(blocks []string) ([]string, error) {
	var nonEmpty []string
	for _, b := range blocks {
		if strings.TrimSpace(b) != "" {
			nonEmpty = append(nonEmpty, b)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, ErrEmptyInput
	}

	text := strings.Join(nonEmpty, "\n\n")
	pieces := s.fragments(text, separators)
	return s.assemble(pieces), nil
}

// fragments recursively breaks text until every piece fits in ChunkSize.
// Separators are retained on the piece they terminate (SplitAfter), so the
// concatenation of all pieces reproduces the input exactly.
func (s *Splitter) fragments(text string, seps []string) []string {
	if runeLen(text) <= s.ChunkSize {
		return []string{text}
	}
	if len(seps) == 0 {
		return s.hardSplit(text)
	}

	sep := seps[0]
	if !strings.Contains(text, sep) {
		return s.fragments(text, seps[1:])
	}

	var out []string
	for _, p := range strings.SplitAfter(text, sep) {
		if p == "" {
			continue
		}
		if runeLen(p) <= s.ChunkSize {
			out = append(out, p)
		} else {
			out = append(out, s.fragments(p, seps[1:])...)
		}
	}
	return out
}

// hardSplit cuts at raw character boundaries, the last-resort separator.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > s.ChunkSize {
		out = append(out, string(runes[:s.ChunkSize]))
		runes = runes[s.ChunkSize:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// assemble merges pieces greedily into chunks of at most ChunkSize
// characters. Each flush carries the previous chunk's tail forward as the
// overlap seed, shrunk when the next piece leaves less room so the bound
// holds even right after a flush.
func (s *Splitter) assemble(pieces []string) []string {
	var chunks []string
	var cur string
	for _, p := range pieces {
		if cur != "" && runeLen(cur)+runeLen(p) > s.ChunkSize {
			chunks = append(chunks, cur)
			seed := s.Overlap
			if room := s.ChunkSize - runeLen(p); room < seed {
				seed = room
			}
			cur = tail(cur, seed)
		}
		cur += p
	}
	if strings.TrimSpace(cur) != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

// tail returns the last n characters of text.
func tail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}

func runeLen(s string) int {
	return len([]rune(s))
}
