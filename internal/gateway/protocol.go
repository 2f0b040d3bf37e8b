package gateway

import (
	"encoding/json"

	"github.com/foxseedlab/zadankai/internal/conversation"
)

// Client to server events.
const (
	EventStartConversation    = "start_conversation"
	EventRaiseHand            = "raise_hand"
	EventSubmitHumanMessage   = "submit_human_message"
	EventSubmitHumanPanelist  = "submit_human_panelist"
	EventContinueConversation = "continue_conversation"
	EventWrapUpMeeting        = "wrap_up_meeting"
	EventAttemptReconnection  = "attempt_reconnection"
	EventRemoveLastMessage    = "remove_last_message"
)

// Server to client events.
const (
	EventMeetingStarted     = "meeting_started"
	EventConversationUpdate = "conversation_update"
	EventAudioUpdate        = "audio_update"
	EventConversationError  = "conversation_error"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type StartConversationPayload struct {
	Topic      string   `json:"topic"`
	Characters []string `json:"characters"`
	Language   string   `json:"language"`
}

type MeetingStartedPayload struct {
	MeetingID string `json:"meeting_id"`
}

// ConversationUpdatePayload is a full transcript snapshot; the client
// replaces its copy rather than merging.
type ConversationUpdatePayload struct {
	Conversation []conversation.Message `json:"conversation"`
}

// AudioUpdatePayload carries one synthesized clip. Frames are transport
// frames in the negotiated codec and Sentences give the exact subtitle
// timings measured during synthesis.
type AudioUpdatePayload struct {
	ID         string                  `json:"id"`
	Frames     [][]byte                `json:"frames"`
	SampleRate int                     `json:"sample_rate"`
	Sentences  []conversation.Sentence `json:"sentences"`
}

type ConversationErrorPayload struct {
	Message string `json:"message"`
}

type RaiseHandPayload struct {
	HumanName string `json:"humanName"`
	Index     int    `json:"index"`
}

type SubmitHumanMessagePayload struct {
	Text          string `json:"text"`
	Speaker       string `json:"speaker"`
	AskParticular string `json:"askParticular,omitempty"`
}

type SubmitHumanPanelistPayload struct {
	Text    string `json:"text"`
	Speaker string `json:"speaker"`
}

type WrapUpMeetingPayload struct {
	Date string `json:"date"`
}

type AttemptReconnectionPayload struct {
	MeetingID             string `json:"meetingId"`
	HandRaised            bool   `json:"handRaised"`
	ConversationMaxLength int    `json:"conversationMaxLength"`
}

// Pusher delivers server events to the viewer connection bound to a meeting.
type Pusher interface {
	Push(event string, payload any) error
}

func Encode(event string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: event, Payload: raw}, nil
}
