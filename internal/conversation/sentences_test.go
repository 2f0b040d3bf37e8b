package conversation

import "testing"

func TestSplitSentences_RetainsPunctuation(t *testing.T) {
	got := SplitSentences("Hello there. How are you? Fine!")
	want := []string{"Hello there.", "How are you?", "Fine!"}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSplitSentences_NewlinesAndEmpty(t *testing.T) {
	if got := SplitSentences("   "); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
	got := SplitSentences("first line\nsecond line.")
	if len(got) != 2 || got[0] != "first line" || got[1] != "second line." {
		t.Fatalf("unexpected chunks: %v", got)
	}
}

func TestFirstBlock_CutsAtBlankLine(t *testing.T) {
	text := "Sven, would you like to ask your question?\n\nPanelist B: I think..."
	if got := FirstBlock(text); got != "Sven, would you like to ask your question?" {
		t.Fatalf("unexpected block: %q", got)
	}
}

func TestFirstBlock_NoBlankLine(t *testing.T) {
	if got := FirstBlock("  single block\nstill same block  "); got != "single block\nstill same block" {
		t.Fatalf("unexpected block: %q", got)
	}
}

func TestTimedSentences_ProportionalAndBounded(t *testing.T) {
	chunks := []string{"aaaa", "bb", "bb"}
	got := TimedSentences(chunks, 8)
	if len(got) != 3 {
		t.Fatalf("expected 3 sentences, got %d", len(got))
	}
	if got[0].Start != 0 || got[0].End != 4 {
		t.Fatalf("unexpected first sentence timing: %+v", got[0])
	}
	if got[1].Start != 4 || got[1].End != 6 {
		t.Fatalf("unexpected second sentence timing: %+v", got[1])
	}
	if got[2].Start != 6 || got[2].End != 8 {
		t.Fatalf("unexpected last sentence timing: %+v", got[2])
	}
	for i := 1; i < len(got); i++ {
		if got[i].Start < got[i-1].Start {
			t.Fatalf("starts must be non-decreasing: %+v", got)
		}
	}
}

func TestTimedSentences_Empty(t *testing.T) {
	if got := TimedSentences(nil, 5); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestDropTrailingPlaceholders(t *testing.T) {
	transcript := []Message{
		{ID: "a", Type: TypeTurn},
		{ID: "b", Type: TypeInvitation},
		{ID: "c", Type: TypeAwaitingHumanQuestion},
		{ID: "d", Type: TypeAwaitingHumanPanelist},
	}
	got := DropTrailingPlaceholders(transcript)
	if len(got) != 2 || got[1].ID != "b" {
		t.Fatalf("unexpected transcript after drop: %+v", got)
	}
}

func TestTruncate_Clamps(t *testing.T) {
	transcript := []Message{{ID: "a"}, {ID: "b"}}
	if got := Truncate(transcript, 5); len(got) != 2 {
		t.Fatalf("expected unchanged transcript, got %d entries", len(got))
	}
	if got := Truncate(transcript, -1); len(got) != 0 {
		t.Fatalf("expected empty transcript, got %d entries", len(got))
	}
	if got := Truncate(transcript, 1); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected truncation: %+v", got)
	}
}
