package playback

import "github.com/foxseedlab/zadankai/internal/conversation"

// Artifact is one decoded audio clip correlated to a transcript entry by a
// shared id. Artifacts arrive asynchronously and in arbitrary order relative
// to their transcript entries.
type Artifact struct {
	ID         string
	PCM        []int16
	SampleRate int
	Sentences  []conversation.Sentence
}

// Duration returns the clip length in seconds.
func (a *Artifact) Duration() float64 {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.PCM)) / float64(a.SampleRate)
}

// Ready reports whether the transcript entry at index is playable: the entry
// exists and an artifact sharing its id has arrived. Pure predicate with no
// ordering assumption on the artifact set; safe to call on every state
// transition.
func Ready(transcript []conversation.Message, artifacts map[string]*Artifact, index int) bool {
	if index < 0 || index >= len(transcript) {
		return false
	}
	_, ok := artifacts[transcript[index].ID]
	return ok
}
