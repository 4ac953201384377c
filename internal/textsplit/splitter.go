// Package textsplit splits oversized input into overlapping chunks at
// natural text boundaries and reassembles the translated pieces.
package textsplit

import (
	"strings"
	"unicode"
)

// OverlapRunes is how many runes each continuation chunk shares with the
// end of the previous chunk's source text. The overlap gives the model
// cross-boundary context; merge strips it back out.
const OverlapRunes = 50

// Chunk is one bounded piece of the source text. Index is 0-based and
// contiguous; OverlapLen is the count of leading runes shared with the
// previous chunk.
type Chunk struct {
	Index          int
	Text           string
	IsContinuation bool
	OverlapLen     int
}

// TranslatedChunk carries a chunk's translation back to Merge, keeping
// the source-side overlap length.
type TranslatedChunk struct {
	Index      int
	Text       string
	OverlapLen int
}

type Splitter struct {
	maxChunkRunes int
	overlap       int
}

func New(maxChunkRunes int) *Splitter {
	if maxChunkRunes <= 0 {
		maxChunkRunes = 1500
	}
	return &Splitter{maxChunkRunes: maxChunkRunes, overlap: OverlapRunes}
}

// Split walks the text forward producing chunks of at most maxChunkRunes
// runes. Each chunk after the first starts overlap runes before the point
// where the previous one ended. All indexing is rune-based so a boundary
// never lands inside a multi-byte character.
func (s *Splitter) Split(text string) []Chunk {
	runes := []rune(text)
	total := len(runes)

	if total <= s.maxChunkRunes {
		return []Chunk{{Index: 0, Text: text}}
	}

	var chunks []Chunk
	pos := 0 // end of the previous chunk
	index := 0

	for pos < total {
		start := pos
		if index > 0 {
			start = pos - s.overlap
			if start < 0 {
				start = 0
			}
		}

		// the naive cut advances maxChunkRunes past the previous end;
		// the boundary search must stay above pos so every chunk makes
		// forward progress
		end := pos + s.maxChunkRunes
		if end >= total {
			end = total
		} else if b, ok := findBoundary(runes, pos, end); ok {
			end = b
		}

		// actual overlap can be shorter than the constant when the
		// start clamps at the beginning of the text
		overlapLen := pos - start
		chunks = append(chunks, Chunk{
			Index:          index,
			Text:           string(runes[start:end]),
			IsContinuation: index > 0,
			OverlapLen:     overlapLen,
		})

		pos = end
		index++
	}

	return chunks
}

var (
	sentenceEnders = []rune{'.', '!', '?', '。', '！', '？'}
	softBoundaries = []rune{',', ';', ':', '、', '；', '：'}
)

func runeIn(set []rune, r rune) bool {
	for _, c := range set {
		if c == r {
			return true
		}
	}
	return false
}

// findBoundary searches backward from the naive cut point for a natural
// split, preferring sentence endings, then paragraph breaks, then soft
// punctuation, then plain word boundaries.
func findBoundary(runes []rune, start, target int) (int, bool) {
	// sentence terminator followed by whitespace or end of text
	for i := target; i > start; i-- {
		if runeIn(sentenceEnders, runes[i-1]) {
			if i >= len(runes) || unicode.IsSpace(runes[i]) {
				return i, true
			}
		}
	}

	// paragraph break
	for i := target; i > start; i-- {
		if runes[i-1] == '\n' {
			return i, true
		}
	}

	// soft punctuation
	for i := target; i > start; i-- {
		if runeIn(softBoundaries, runes[i-1]) {
			return i, true
		}
	}

	// word boundary
	for i := target; i > start; i-- {
		if i < len(runes) && unicode.IsSpace(runes[i]) && !unicode.IsSpace(runes[i-1]) {
			return i, true
		}
	}

	return 0, false
}

// Merge concatenates translated chunks, stripping each continuation
// chunk's leading OverlapLen runes before appending. Translation is not
// rune-preserving, so the strip is a best-effort heuristic: good enough
// for fluent output, not an exact dedup.
func (s *Splitter) Merge(chunks []TranslatedChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	if len(chunks) == 1 {
		return chunks[0].Text
	}

	var b strings.Builder
	for i, chunk := range chunks {
		text := chunk.Text
		if i > 0 && chunk.OverlapLen > 0 {
			runes := []rune(text)
			if len(runes) > chunk.OverlapLen {
				text = string(runes[chunk.OverlapLen:])
			}
		}
		if i > 0 {
			if !endsWithSpace(b.String()) && !startsWithSpace(text) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(text)
	}
	return b.String()
}

func endsWithSpace(s string) bool {
	runes := []rune(s)
	return len(runes) > 0 && unicode.IsSpace(runes[len(runes)-1])
}

func startsWithSpace(s string) bool {
	for _, r := range s {
		return unicode.IsSpace(r)
	}
	return false
}
