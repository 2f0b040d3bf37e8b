package playback

import "github.com/foxseedlab/zadankai/internal/conversation"

// ActiveIndex returns the index of the sentence active at play time t (in
// seconds): the greatest i such that sentences[i].Start <= t and, when a
// successor exists, t < sentences[i+1].Start. Once t passes the final
// sentence's start, that sentence stays active for the rest of the clip.
// Times before the first sentence's start resolve to index 0.
//
// cursor is the index returned by the previous call. Over a monotonically
// increasing t the search resumes from it, so a full rescan only happens on a
// discontinuous t (for example after a reset or a backward seek).
//
// Returns -1 for an empty sentence list.
func ActiveIndex(sentences []conversation.Sentence, t float64, cursor int) int {
	n := len(sentences)
	if n == 0 {
		return -1
	}
	if cursor < 0 || cursor >= n {
		cursor = 0
	}
	i := cursor
	if t < sentences[i].Start {
		i = 0
	}
	for i+1 < n && sentences[i+1].Start <= t {
		i++
	}
	return i
}
