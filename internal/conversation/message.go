package conversation

// MessageType classifies an entry in a meeting transcript.
type MessageType string

const (
	// TypeTurn is an ordinary spoken panelist turn.
	TypeTurn MessageType = "turn"
	// TypeInvitation is a chair-authored turn inviting a human to speak.
	TypeInvitation MessageType = "invitation"
	// TypeAwaitingHumanQuestion is a placeholder entry holding the floor
	// open for a human question. It carries no text.
	TypeAwaitingHumanQuestion MessageType = "awaiting_human_question"
	// TypeAwaitingHumanPanelist is a placeholder entry holding the floor
	// open for a human panelist statement.
	TypeAwaitingHumanPanelist MessageType = "awaiting_human_panelist"
	// TypeSummary is the closing summary turn.
	TypeSummary MessageType = "summary"
	// TypeSkipped marks a moderation-skipped turn that playback steps over.
	TypeSkipped MessageType = "skipped"
)

// Sentence is one spoken sentence with its timing in seconds relative to the
// start of the clip it belongs to. Start values are non-decreasing within one
// clip; the last sentence has no upper bound and extends to the clip end.
type Sentence struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Message is one entry of a meeting transcript. The transcript is an ordered,
// append/truncate-only sequence; a message's position in that sequence is its
// index and is referenced by playback state and by raise-hand requests.
type Message struct {
	ID        string      `json:"id"`
	Speaker   string      `json:"speaker"`
	Text      string      `json:"text"`
	Type      MessageType `json:"type"`
	Sentences []Sentence  `json:"sentences,omitempty"`
}

// IsPlaceholder reports whether the message is a floor-holding sentinel
// rather than a spoken turn.
func (m Message) IsPlaceholder() bool {
	return m.Type == TypeAwaitingHumanQuestion || m.Type == TypeAwaitingHumanPanelist
}

// Truncate returns the transcript cut to at most n entries. It never extends
// the slice.
func Truncate(transcript []Message, n int) []Message {
	if n < 0 {
		n = 0
	}
	if n >= len(transcript) {
		return transcript
	}
	return transcript[:n]
}

// DropTrailingPlaceholders removes floor-holding sentinel entries from the
// tail of the transcript. Applied after a human submission so a stale
// awaiting entry never replays; spoken turns are never removed.
func DropTrailingPlaceholders(transcript []Message) []Message {
	end := len(transcript)
	for end > 0 && transcript[end-1].IsPlaceholder() {
		end--
	}
	return transcript[:end]
}
