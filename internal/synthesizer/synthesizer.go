package synthesizer

import (
	"context"

	"github.com/foxseedlab/zadankai/internal/conversation"
)

type Request struct {
	// Sentences are synthesized one by one so the clip carries exact
	// per-sentence boundaries for the subtitle clock.
	Sentences []string
	Language  string
	Speaker   string
}

// Clip is one synthesized spoken turn.
type Clip struct {
	PCM        []int16
	SampleRate int
	Sentences  []conversation.Sentence
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.PCM)) / float64(c.SampleRate)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*Clip, error)
}
