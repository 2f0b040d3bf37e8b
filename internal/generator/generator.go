package generator

import (
	"context"

	"github.com/foxseedlab/zadankai/internal/conversation"
)

// Turn is one generated panelist statement before it becomes a transcript
// message.
type Turn struct {
	Speaker string
	Text    string
}

type TurnsRequest struct {
	Topic      string
	Language   string
	Characters []string
	History    []conversation.Message
	Count      int
	// DirectTo names the panelist the next turn should be addressed to, when
	// the human asked a particular participant. Empty means no preference.
	DirectTo string
}

type InterjectionRequest struct {
	Topic     string
	Language  string
	Chair     string
	HumanName string
	History   []conversation.Message
}

type SummaryRequest struct {
	Topic    string
	Language string
	Chair    string
	Date     string
	History  []conversation.Message
}

// Generator produces dialogue for a meeting. Implementations are expected to
// be safe for concurrent use across meetings.
type Generator interface {
	// OpeningTurns produces the first turns of a fresh conversation.
	OpeningTurns(ctx context.Context, req TurnsRequest) ([]Turn, error)
	// NextTurns extends an existing conversation past its current tail.
	NextTurns(ctx context.Context, req TurnsRequest) ([]Turn, error)
	// Interjection produces one short chair line addressing the named human
	// and handing them the floor. Callers cut the result at the first
	// blank-line boundary; generators sometimes keep going.
	Interjection(ctx context.Context, req InterjectionRequest) (string, error)
	// Summary produces the chair's closing summary of the conversation.
	Summary(ctx context.Context, req SummaryRequest) (string, error)
}
