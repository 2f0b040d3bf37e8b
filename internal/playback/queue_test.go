package playback

import (
	"testing"

	"github.com/foxseedlab/zadankai/internal/conversation"
)

type recordingHandle struct {
	played  int
	stopped int
}

func (h *recordingHandle) Play() { h.played++ }
func (h *recordingHandle) Stop() { h.stopped++ }

func queueTranscript(n int) []conversation.Message {
	msgs := make([]conversation.Message, n)
	for i := range msgs {
		msgs[i] = conversation.Message{ID: string(rune('a' + i)), Type: conversation.TypeTurn}
	}
	return msgs
}

func TestDeliveryQueue_OutOfOrderArrival(t *testing.T) {
	q := NewDeliveryQueue()
	transcript := queueTranscript(3)
	h2 := &recordingHandle{}
	q.Put("c", h2)

	// Slot 0 is still missing: playing it is a no-op.
	if _, ok := q.Play(transcript, 0); ok {
		t.Fatal("expected no-op while slot 0 is missing")
	}

	h0 := &recordingHandle{}
	q.Put("a", h0)
	idx, ok := q.Play(transcript, 0)
	if !ok || idx != 0 || h0.played != 1 {
		t.Fatalf("expected slot 0 to play: idx=%d ok=%v played=%d", idx, ok, h0.played)
	}
	if h2.played != 0 {
		t.Fatal("later arrival must not have played yet")
	}
}

func TestDeliveryQueue_SkipEntriesAdvance(t *testing.T) {
	q := NewDeliveryQueue()
	transcript := queueTranscript(4)
	h := &recordingHandle{}
	q.PutSkip("a")
	q.PutSkip("b")
	q.Put("c", h)

	idx, ok := q.Play(transcript, 0)
	if !ok || idx != 2 || h.played != 1 {
		t.Fatalf("expected skip run to land on slot 2: idx=%d ok=%v", idx, ok)
	}
}

func TestDeliveryQueue_SkipRunWithMissingTailIsNoop(t *testing.T) {
	q := NewDeliveryQueue()
	transcript := queueTranscript(3)
	q.PutSkip("a")
	// Slot "b" missing behind the skip.
	if _, ok := q.Play(transcript, 0); ok {
		t.Fatal("expected no-op when the slot behind a skip run is missing")
	}
}

func TestDeliveryQueue_Stop(t *testing.T) {
	q := NewDeliveryQueue()
	h := &recordingHandle{}
	q.Put("a", h)
	q.Stop("a")
	q.Stop("missing")
	if h.stopped != 1 {
		t.Fatalf("expected one stop, got %d", h.stopped)
	}
}
