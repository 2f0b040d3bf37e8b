package repository

import (
	"context"
	"errors"

	"github.com/foxseedlab/zadankai/internal/conversation"
)

// ErrRevisionConflict is returned by SaveMeeting when the stored revision no
// longer matches the caller's snapshot. The caller reloads and reapplies its
// mutation instead of overwriting a concurrent write.
var ErrRevisionConflict = errors.New("meeting revision conflict")

type CreateMeetingInput struct {
	Topic      string
	Language   string
	Characters []string
}

type SaveMeetingInput struct {
	MeetingID        string
	ExpectedRevision int64
	Conversation     []conversation.Message
	HandRaised       bool
	HumanName        string
	AlreadyInvited   bool
}

type CompleteMeetingInput struct {
	MeetingID string
}

type Repository interface {
	CreateMeeting(ctx context.Context, input CreateMeetingInput) (*Meeting, error)
	GetMeeting(ctx context.Context, meetingID string) (*Meeting, error)
	// SaveMeeting persists the transcript and protocol state, returning the
	// new revision. Returns ErrRevisionConflict when ExpectedRevision is
	// stale.
	SaveMeeting(ctx context.Context, input SaveMeetingInput) (int64, error)
	UpdateMeetingCompleted(ctx context.Context, input CompleteMeetingInput) error
}
