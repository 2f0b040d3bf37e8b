package meeting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/foxseedlab/zadankai/internal/audio"
	"github.com/foxseedlab/zadankai/internal/config"
	"github.com/foxseedlab/zadankai/internal/conversation"
	"github.com/foxseedlab/zadankai/internal/gateway"
	"github.com/foxseedlab/zadankai/internal/generator"
	"github.com/foxseedlab/zadankai/internal/repository"
	"github.com/foxseedlab/zadankai/internal/synthesizer"
	"github.com/foxseedlab/zadankai/internal/webhook"
	"github.com/google/uuid"
)

// Manager owns every live meeting. All mutations for one meeting run under
// that meeting's own mutex, so handlers for the same meeting are serialized
// while different meetings proceed concurrently.
type Manager struct {
	cfg     *config.Config
	repo    repository.Repository
	gen     generator.Generator
	synth   synthesizer.Synthesizer
	encoder audio.Encoder
	webhook webhook.Sender

	mu       sync.Mutex
	meetings map[string]*liveMeeting
}

type liveMeeting struct {
	mu     sync.Mutex
	record *repository.Meeting
	pusher gateway.Pusher
	// artifacts are retained for the life of the meeting so a reconnecting
	// viewer can be replayed everything it may have missed.
	artifacts map[string]*gateway.AudioUpdatePayload
}

func NewManager(cfg *config.Config, repo repository.Repository, gen generator.Generator, synth synthesizer.Synthesizer, encoder audio.Encoder, wh webhook.Sender) *Manager {
	return &Manager{
		cfg:      cfg,
		repo:     repo,
		gen:      gen,
		synth:    synth,
		encoder:  encoder,
		webhook:  wh,
		meetings: make(map[string]*liveMeeting),
	}
}

// StartConversation creates a meeting, generates its opening turns, and
// starts synthesis for each of them. Returns the new meeting id.
func (m *Manager) StartConversation(ctx context.Context, pusher gateway.Pusher, p gateway.StartConversationPayload) (string, error) {
	if p.Topic == "" || len(p.Characters) == 0 {
		return "", fmt.Errorf("start_conversation requires a topic and at least one character")
	}
	language := p.Language
	if language == "" {
		language = m.cfg.DefaultLanguage
	}

	record, err := m.repo.CreateMeeting(ctx, repository.CreateMeetingInput{
		Topic:      p.Topic,
		Language:   language,
		Characters: p.Characters,
	})
	if err != nil {
		return "", fmt.Errorf("create meeting: %w", err)
	}
	lm := &liveMeeting{
		record:    record,
		pusher:    pusher,
		artifacts: make(map[string]*gateway.AudioUpdatePayload),
	}
	m.mu.Lock()
	m.meetings[record.ID] = lm
	m.mu.Unlock()
	slog.Info("meeting started", "meeting_id", record.ID, "topic", p.Topic, "characters", len(p.Characters))

	lm.mu.Lock()
	defer lm.mu.Unlock()
	m.push(lm, gateway.EventMeetingStarted, gateway.MeetingStartedPayload{MeetingID: record.ID})

	turns, err := m.gen.OpeningTurns(ctx, generator.TurnsRequest{
		Topic:      record.Topic,
		Language:   record.Language,
		Characters: record.Characters,
		Count:      m.cfg.OpeningTurnCount,
	})
	if err != nil {
		m.pushError(lm, "failed to open the conversation")
		return record.ID, fmt.Errorf("generate opening turns: %w", err)
	}
	m.appendTurns(lm, turns)
	if err := m.save(ctx, lm); err != nil {
		slog.Error("failed to persist opening turns", "error", err, "meeting_id", record.ID)
	}
	m.pushTranscript(lm)
	return record.ID, nil
}

// RaiseHand runs the interjection protocol: truncate the transcript to the
// viewer's snapshot, have the chair invite the human once, then hold the
// floor open with an awaiting sentinel.
func (m *Manager) RaiseHand(ctx context.Context, meetingID string, p gateway.RaiseHandPayload) error {
	lm, err := m.live(meetingID)
	if err != nil {
		return err
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	rec := lm.record

	// Drops any turns the generator produced after the viewer's last read.
	rec.Conversation = conversation.Truncate(rec.Conversation, p.Index)
	rec.HandRaised = true
	rec.HumanName = p.HumanName

	if !rec.AlreadyInvited {
		text, genErr := m.gen.Interjection(ctx, generator.InterjectionRequest{
			Topic:     rec.Topic,
			Language:  rec.Language,
			Chair:     rec.Chair(),
			HumanName: p.HumanName,
			History:   rec.Conversation,
		})
		if genErr != nil {
			// AlreadyInvited stays false: the next raise_hand retries the
			// invitation instead of silently skipping it.
			if saveErr := m.save(ctx, lm); saveErr != nil {
				slog.Error("failed to persist truncation", "error", saveErr, "meeting_id", meetingID)
			}
			m.pushTranscript(lm)
			return fmt.Errorf("generate invitation: %w", genErr)
		}
		invitation := m.appendMessage(lm, rec.Chair(), conversation.FirstBlock(text), conversation.TypeInvitation)
		rec.AlreadyInvited = true
		m.synthesizeMessage(meetingID, invitation, rec.Language)
	}

	rec.Conversation = append(rec.Conversation, conversation.Message{
		ID:      uuid.NewString(),
		Speaker: p.HumanName,
		Type:    conversation.TypeAwaitingHumanQuestion,
	})
	if err := m.save(ctx, lm); err != nil {
		slog.Error("failed to persist raised hand", "error", err, "meeting_id", meetingID)
	}
	m.pushTranscript(lm)
	slog.Info("hand raised", "meeting_id", meetingID, "human", p.HumanName, "index", p.Index)
	return nil
}

// SubmitHumanMessage takes the human's question, closes the open floor, and
// resumes generation with the panelists answering.
func (m *Manager) SubmitHumanMessage(ctx context.Context, meetingID string, p gateway.SubmitHumanMessagePayload) error {
	return m.submitHuman(ctx, meetingID, p.Speaker, p.Text, p.AskParticular)
}

// SubmitHumanPanelist takes a statement the human makes as a panelist.
func (m *Manager) SubmitHumanPanelist(ctx context.Context, meetingID string, p gateway.SubmitHumanPanelistPayload) error {
	return m.submitHuman(ctx, meetingID, p.Speaker, p.Text, "")
}

func (m *Manager) submitHuman(ctx context.Context, meetingID, speaker, text, askParticular string) error {
	if text == "" {
		return fmt.Errorf("human submission requires text")
	}
	lm, err := m.live(meetingID)
	if err != nil {
		return err
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	rec := lm.record

	rec.Conversation = conversation.DropTrailingPlaceholders(rec.Conversation)
	human := m.appendMessage(lm, speaker, text, conversation.TypeTurn)
	rec.HandRaised = false
	rec.HumanName = ""
	rec.AlreadyInvited = false
	m.synthesizeMessage(meetingID, human, rec.Language)

	turns, genErr := m.gen.NextTurns(ctx, generator.TurnsRequest{
		Topic:      rec.Topic,
		Language:   rec.Language,
		Characters: rec.Characters,
		History:    rec.Conversation,
		Count:      m.cfg.ContinuationTurnCount,
		DirectTo:   askParticular,
	})
	if genErr != nil {
		m.pushError(lm, "failed to continue the conversation")
		if saveErr := m.save(ctx, lm); saveErr != nil {
			slog.Error("failed to persist human turn", "error", saveErr, "meeting_id", meetingID)
		}
		m.pushTranscript(lm)
		return fmt.Errorf("generate next turns: %w", genErr)
	}
	m.appendTurns(lm, turns)
	if err := m.save(ctx, lm); err != nil {
		slog.Error("failed to persist human turn", "error", err, "meeting_id", meetingID)
	}
	m.pushTranscript(lm)
	return nil
}

// ContinueConversation extends the transcript past its current tail, up to
// the configured maximum length.
func (m *Manager) ContinueConversation(ctx context.Context, meetingID string) error {
	lm, err := m.live(meetingID)
	if err != nil {
		return err
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	rec := lm.record

	if len(rec.Conversation) >= m.cfg.MaxConversationTurns {
		slog.Info("conversation at maximum length", "meeting_id", meetingID, "length", len(rec.Conversation))
		return nil
	}
	turns, genErr := m.gen.NextTurns(ctx, generator.TurnsRequest{
		Topic:      rec.Topic,
		Language:   rec.Language,
		Characters: rec.Characters,
		History:    rec.Conversation,
		Count:      m.cfg.ContinuationTurnCount,
	})
	if genErr != nil {
		m.pushError(lm, "failed to continue the conversation")
		return fmt.Errorf("generate next turns: %w", genErr)
	}
	m.appendTurns(lm, turns)
	if err := m.save(ctx, lm); err != nil {
		slog.Error("failed to persist continuation", "error", err, "meeting_id", meetingID)
	}
	m.pushTranscript(lm)
	return nil
}

// WrapUpMeeting appends the chair's closing summary, completes the meeting,
// and posts the summary report.
func (m *Manager) WrapUpMeeting(ctx context.Context, meetingID string, p gateway.WrapUpMeetingPayload) error {
	lm, err := m.live(meetingID)
	if err != nil {
		return err
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	rec := lm.record

	text, genErr := m.gen.Summary(ctx, generator.SummaryRequest{
		Topic:    rec.Topic,
		Language: rec.Language,
		Chair:    rec.Chair(),
		Date:     p.Date,
		History:  rec.Conversation,
	})
	if genErr != nil {
		m.pushError(lm, "failed to summarize the conversation")
		return fmt.Errorf("generate summary: %w", genErr)
	}
	summary := m.appendMessage(lm, rec.Chair(), text, conversation.TypeSummary)
	m.synthesizeMessage(meetingID, summary, rec.Language)
	if err := m.save(ctx, lm); err != nil {
		slog.Error("failed to persist summary", "error", err, "meeting_id", meetingID)
	}
	m.pushTranscript(lm)

	if err := m.repo.UpdateMeetingCompleted(ctx, repository.CompleteMeetingInput{MeetingID: meetingID}); err != nil {
		slog.Error("failed to complete meeting", "error", err, "meeting_id", meetingID)
	}
	rec.Status = repository.MeetingStatusCompleted
	if err := m.webhook.SendSummary(ctx, webhook.SummaryReport{
		MeetingID: meetingID,
		Topic:     rec.Topic,
		Language:  rec.Language,
		Date:      p.Date,
		Summary:   text,
	}); err != nil {
		slog.Error("failed to send summary report", "error", err, "meeting_id", meetingID)
	}
	slog.Info("meeting wrapped up", "meeting_id", meetingID, "date", p.Date)
	return nil
}

// RemoveLastMessage truncates the transcript tail by one entry.
func (m *Manager) RemoveLastMessage(ctx context.Context, meetingID string) error {
	lm, err := m.live(meetingID)
	if err != nil {
		return err
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	rec := lm.record

	if len(rec.Conversation) == 0 {
		return nil
	}
	rec.Conversation = conversation.Truncate(rec.Conversation, len(rec.Conversation)-1)
	if err := m.save(ctx, lm); err != nil {
		slog.Error("failed to persist removal", "error", err, "meeting_id", meetingID)
	}
	m.pushTranscript(lm)
	return nil
}

// AttemptReconnection re-attaches a viewer to a live meeting and replays the
// transcript snapshot plus every retained artifact.
func (m *Manager) AttemptReconnection(ctx context.Context, pusher gateway.Pusher, p gateway.AttemptReconnectionPayload) error {
	m.mu.Lock()
	lm, ok := m.meetings[p.MeetingID]
	m.mu.Unlock()
	if !ok {
		record, err := m.repo.GetMeeting(ctx, p.MeetingID)
		if err != nil {
			return fmt.Errorf("reload meeting %s: %w", p.MeetingID, err)
		}
		if record == nil {
			return fmt.Errorf("unknown meeting %s", p.MeetingID)
		}
		lm = &liveMeeting{
			record:    record,
			artifacts: make(map[string]*gateway.AudioUpdatePayload),
		}
		m.mu.Lock()
		m.meetings[p.MeetingID] = lm
		m.mu.Unlock()
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.pusher = pusher
	if lm.record.HandRaised != p.HandRaised {
		slog.Warn("reconnection hand state mismatch",
			"meeting_id", p.MeetingID, "server", lm.record.HandRaised, "client", p.HandRaised)
	}
	if p.ConversationMaxLength > len(lm.record.Conversation) {
		slog.Warn("reconnecting client ahead of server transcript",
			"meeting_id", p.MeetingID, "client_length", p.ConversationMaxLength, "server_length", len(lm.record.Conversation))
	}
	m.pushTranscript(lm)
	for _, msg := range lm.record.Conversation {
		if artifact, ok := lm.artifacts[msg.ID]; ok {
			m.push(lm, gateway.EventAudioUpdate, artifact)
		}
	}
	slog.Info("viewer reattached", "meeting_id", p.MeetingID)
	return nil
}

// Detach drops the meeting's pusher when its viewer connection closes. The
// meeting itself stays live for a later reconnection.
func (m *Manager) Detach(meetingID string) {
	lm, err := m.live(meetingID)
	if err != nil {
		return
	}
	lm.mu.Lock()
	lm.pusher = nil
	lm.mu.Unlock()
	slog.Info("viewer detached", "meeting_id", meetingID)
}

func (m *Manager) live(meetingID string) (*liveMeeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lm, ok := m.meetings[meetingID]
	if !ok {
		return nil, fmt.Errorf("unknown meeting %s", meetingID)
	}
	return lm, nil
}

// appendMessage appends one spoken entry to the transcript. Caller holds the
// meeting lock.
func (m *Manager) appendMessage(lm *liveMeeting, speaker, text string, typ conversation.MessageType) conversation.Message {
	msg := conversation.Message{
		ID:      uuid.NewString(),
		Speaker: speaker,
		Text:    text,
		Type:    typ,
	}
	lm.record.Conversation = append(lm.record.Conversation, msg)
	return msg
}

func (m *Manager) appendTurns(lm *liveMeeting, turns []generator.Turn) {
	for _, turn := range turns {
		msg := m.appendMessage(lm, turn.Speaker, turn.Text, conversation.TypeTurn)
		m.synthesizeMessage(lm.record.ID, msg, lm.record.Language)
	}
}

// save persists the transcript and protocol state under the record's
// revision. On a conflict it adopts the stored revision and retries once;
// the in-memory record is authoritative under the per-meeting lock.
func (m *Manager) save(ctx context.Context, lm *liveMeeting) error {
	input := repository.SaveMeetingInput{
		MeetingID:        lm.record.ID,
		ExpectedRevision: lm.record.Revision,
		Conversation:     lm.record.Conversation,
		HandRaised:       lm.record.HandRaised,
		HumanName:        lm.record.HumanName,
		AlreadyInvited:   lm.record.AlreadyInvited,
	}
	rev, err := m.repo.SaveMeeting(ctx, input)
	if errors.Is(err, repository.ErrRevisionConflict) {
		stored, getErr := m.repo.GetMeeting(ctx, lm.record.ID)
		if getErr != nil {
			return fmt.Errorf("reload after revision conflict: %w", getErr)
		}
		if stored == nil {
			return fmt.Errorf("meeting %s vanished during save", lm.record.ID)
		}
		input.ExpectedRevision = stored.Revision
		rev, err = m.repo.SaveMeeting(ctx, input)
	}
	if err != nil {
		return err
	}
	lm.record.Revision = rev
	return nil
}

// synthesizeMessage synthesizes one message in the background and delivers
// the artifact when it is done. Arrival order across messages is arbitrary.
func (m *Manager) synthesizeMessage(meetingID string, msg conversation.Message, language string) {
	if msg.Text == "" {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("synthesis worker panic", "meeting_id", meetingID, "message_id", msg.ID, "panic", r)
			}
		}()
		ctx := context.Background()
		clip, err := m.synth.Synthesize(ctx, synthesizer.Request{
			Sentences: conversation.SplitSentences(msg.Text),
			Language:  language,
			Speaker:   msg.Speaker,
		})
		if err != nil {
			slog.Error("synthesis failed", "error", err, "meeting_id", meetingID, "message_id", msg.ID)
			return
		}
		frames, err := m.encoder.Encode(clip.PCM, clip.SampleRate)
		if err != nil {
			slog.Error("audio encoding failed", "error", err, "meeting_id", meetingID, "message_id", msg.ID)
			return
		}
		m.deliverArtifact(ctx, meetingID, &gateway.AudioUpdatePayload{
			ID:         msg.ID,
			Frames:     frames,
			SampleRate: clip.SampleRate,
			Sentences:  clip.Sentences,
		})
	}()
}

func (m *Manager) deliverArtifact(ctx context.Context, meetingID string, artifact *gateway.AudioUpdatePayload) {
	lm, err := m.live(meetingID)
	if err != nil {
		return
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	idx := indexOfMessage(lm.record.Conversation, artifact.ID)
	if idx < 0 {
		// The message was truncated away while synthesis ran. Orphaned
		// artifacts are never matched again.
		slog.Debug("dropping artifact for removed message", "meeting_id", meetingID, "message_id", artifact.ID)
		return
	}
	lm.record.Conversation[idx].Sentences = artifact.Sentences
	lm.artifacts[artifact.ID] = artifact
	if err := m.save(ctx, lm); err != nil {
		slog.Error("failed to persist sentence timings", "error", err, "meeting_id", meetingID)
	}
	m.pushTranscript(lm)
	m.push(lm, gateway.EventAudioUpdate, artifact)
}

func indexOfMessage(transcript []conversation.Message, id string) int {
	for i, msg := range transcript {
		if msg.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) pushTranscript(lm *liveMeeting) {
	m.push(lm, gateway.EventConversationUpdate, gateway.ConversationUpdatePayload{
		Conversation: lm.record.Conversation,
	})
}

func (m *Manager) pushError(lm *liveMeeting, message string) {
	m.push(lm, gateway.EventConversationError, gateway.ConversationErrorPayload{Message: message})
}

func (m *Manager) push(lm *liveMeeting, event string, payload any) {
	if lm.pusher == nil {
		return
	}
	if err := lm.pusher.Push(event, payload); err != nil {
		slog.Warn("push failed", "event", event, "error", err)
	}
}
