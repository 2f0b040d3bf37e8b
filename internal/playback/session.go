package playback

import (
	"time"

	"github.com/foxseedlab/zadankai/internal/conversation"
)

// Session owns the per-clip timing state of the subtitle synchronizer. Time
// is banked: while playing, elapsed wall clock accrues against the clip; while
// paused, nothing does. Resuming therefore continues exactly from the
// accumulated audio time regardless of how long the pause lasted.
//
// All methods take the current time explicitly so the session is testable
// without a real clock. The session is reset whenever the active artifact
// changes; stale ticks for a replaced clip must never reach it.
type Session struct {
	sentences   []conversation.Sentence
	accumulated time.Duration
	startedAt   time.Time
	running     bool
	cursor      int
	lastEmitted int
}

// NewSession returns an empty session with no clip loaded.
func NewSession() *Session {
	return &Session{lastEmitted: -1}
}

// Load resets the session for a new clip and returns the text to display
// immediately together with the clip's sentence count. A nil artifact or one
// without sentences yields empty text and count 0. When playingNow is true
// the clip's clock starts at now.
func (s *Session) Load(artifact *Artifact, playingNow bool, now time.Time) (text string, count int) {
	s.accumulated = 0
	s.cursor = 0
	s.lastEmitted = -1
	s.running = false
	s.sentences = nil
	if artifact != nil {
		s.sentences = artifact.Sentences
	}
	if playingNow {
		s.startedAt = now
		s.running = true
	}
	if len(s.sentences) == 0 {
		return "", 0
	}
	s.lastEmitted = 0
	return s.sentences[0].Text, len(s.sentences)
}

// SetPaused banks elapsed time on pause and restarts the clock on resume.
// Redundant calls are no-ops.
func (s *Session) SetPaused(paused bool, now time.Time) {
	if paused {
		if s.running {
			s.accumulated += now.Sub(s.startedAt)
			s.running = false
		}
		return
	}
	if !s.running {
		s.startedAt = now
		s.running = true
	}
}

// Playing reports whether the clip clock is currently advancing.
func (s *Session) Playing() bool {
	return s.running
}

// Elapsed returns the banked play time of the current clip.
func (s *Session) Elapsed(now time.Time) time.Duration {
	if s.running {
		return s.accumulated + now.Sub(s.startedAt)
	}
	return s.accumulated
}

// Tick maps the current banked time onto a sentence index. It reports a
// change only when the active index differs from the last emitted one, so a
// per-frame caller can drive the display without redundant updates. Ticks
// while paused or without a loaded clip report no change.
func (s *Session) Tick(now time.Time) (index int, text string, changed bool) {
	if !s.running || len(s.sentences) == 0 {
		return s.lastEmitted, "", false
	}
	t := s.Elapsed(now).Seconds()
	idx := ActiveIndex(s.sentences, t, s.cursor)
	s.cursor = idx
	if idx == s.lastEmitted {
		return idx, "", false
	}
	s.lastEmitted = idx
	return idx, s.sentences[idx].Text, true
}

// Finished reports whether the banked time has passed the end of the clip.
func (s *Session) Finished(now time.Time, clipSeconds float64) bool {
	if clipSeconds <= 0 {
		return true
	}
	return s.Elapsed(now).Seconds() >= clipSeconds
}
