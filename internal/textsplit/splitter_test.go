package textsplit

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	s := New(1000)
	text := "Hello, world!"

	chunks := s.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Fatalf("chunk text = %q, want %q", chunks[0].Text, text)
	}
	if chunks[0].IsContinuation || chunks[0].OverlapLen != 0 {
		t.Fatalf("single chunk should not be a continuation")
	}
}

func TestSplit_SingleChunkRoundTrip(t *testing.T) {
	s := New(100)
	text := "Short enough to stay whole."

	chunks := s.Split(text)
	translated := make([]TranslatedChunk, len(chunks))
	for i, c := range chunks {
		translated[i] = TranslatedChunk{Index: c.Index, Text: c.Text, OverlapLen: c.OverlapLen}
	}
	if got := s.Merge(translated); got != text {
		t.Fatalf("round trip = %q, want %q", got, text)
	}
}

func TestSplit_UniformTextChunkCount(t *testing.T) {
	s := New(100)
	text := strings.Repeat("A", 250)

	chunks := s.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
	}
	if chunks[0].IsContinuation {
		t.Errorf("chunk 0 flagged as continuation")
	}
	for _, c := range chunks[1:] {
		if !c.IsContinuation {
			t.Errorf("chunk %d not flagged as continuation", c.Index)
		}
		if c.OverlapLen != OverlapRunes {
			t.Errorf("chunk %d overlap = %d, want %d", c.Index, c.OverlapLen, OverlapRunes)
		}
	}
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	s := New(50)
	text := "This is the first sentence. This is the second sentence. This is the third."

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	first := strings.TrimRight(chunks[0].Text, " ")
	if !strings.HasSuffix(first, ".") {
		t.Fatalf("first chunk should end at a sentence boundary, got %q", chunks[0].Text)
	}
}

func TestSplit_NeverBreaksRunes(t *testing.T) {
	s := New(10)
	text := "Привет, мир! Как дела? 你好世界！🙂🙃😀 emoji tail"

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Fatalf("chunk %d contains a broken rune: %q", c.Index, c.Text)
		}
	}
}

func TestSplit_CoversWholeText(t *testing.T) {
	s := New(40)
	text := "One two three four five six seven eight nine ten. Eleven twelve thirteen fourteen fifteen sixteen."

	chunks := s.Split(text)
	// stripping each continuation's source overlap must reproduce the input
	var b strings.Builder
	for i, c := range chunks {
		runes := []rune(c.Text)
		if i > 0 {
			runes = runes[c.OverlapLen:]
		}
		b.WriteString(string(runes))
	}
	if b.String() != text {
		t.Fatalf("reassembled source = %q, want %q", b.String(), text)
	}
}

func TestMerge_StripsOverlap(t *testing.T) {
	s := New(100)

	chunks := []TranslatedChunk{
		{Index: 0, Text: "Первая часть текста."},
		{Index: 1, Text: "текста. Вторая часть текста.", OverlapLen: 8},
	}

	merged := s.Merge(chunks)
	if !strings.Contains(merged, "Первая часть текста.") {
		t.Fatalf("merged lost first chunk: %q", merged)
	}
	if !strings.Contains(merged, "Вторая часть текста.") {
		t.Fatalf("merged lost second chunk: %q", merged)
	}
}

func TestMerge_InsertsSpaceBetweenChunks(t *testing.T) {
	s := New(100)

	merged := s.Merge([]TranslatedChunk{
		{Index: 0, Text: "left"},
		{Index: 1, Text: "right", OverlapLen: 0},
	})
	if merged != "left right" {
		t.Fatalf("merged = %q, want %q", merged, "left right")
	}

	merged = s.Merge([]TranslatedChunk{
		{Index: 0, Text: "left "},
		{Index: 1, Text: "right", OverlapLen: 0},
	})
	if merged != "left right" {
		t.Fatalf("merged = %q, want %q", merged, "left right")
	}
}

func TestMerge_Empty(t *testing.T) {
	s := New(100)
	if got := s.Merge(nil); got != "" {
		t.Fatalf("merge of nothing = %q", got)
	}
}
