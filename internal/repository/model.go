package repository

import (
	"time"

	"github.com/foxseedlab/zadankai/internal/conversation"
)

type MeetingStatus string

const (
	MeetingStatusRunning   MeetingStatus = "running"
	MeetingStatusCompleted MeetingStatus = "completed"
)

// Meeting is the durable form of one live meeting: the authoritative
// transcript plus the raise-hand protocol state. Revision increments on every
// successful save and guards a truncation or an appended turn against being
// clobbered by a concurrent writer.
type Meeting struct {
	ID             string
	Topic          string
	Language       string
	Characters     []string
	Status         MeetingStatus
	Conversation   []conversation.Message
	HandRaised     bool
	HumanName      string
	AlreadyInvited bool
	Revision       int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Chair returns the meeting's moderator: the first participant.
func (m *Meeting) Chair() string {
	if len(m.Characters) == 0 {
		return ""
	}
	return m.Characters[0]
}
