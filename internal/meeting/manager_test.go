package meeting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/zadankai/internal/config"
	"github.com/foxseedlab/zadankai/internal/conversation"
	"github.com/foxseedlab/zadankai/internal/gateway"
	"github.com/foxseedlab/zadankai/internal/generator"
	"github.com/foxseedlab/zadankai/internal/repository"
	"github.com/foxseedlab/zadankai/internal/synthesizer"
	"github.com/foxseedlab/zadankai/internal/webhook"
)

type mockRepository struct {
	mu           sync.Mutex
	createCount  int
	stored       map[string]*repository.Meeting
	saveCalls    []repository.SaveMeetingInput
	conflictOnce bool
	completed    []string
}

func newMockRepository() *mockRepository {
	return &mockRepository{stored: make(map[string]*repository.Meeting)}
}

func (m *mockRepository) CreateMeeting(_ context.Context, input repository.CreateMeetingInput) (*repository.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCount++
	meeting := &repository.Meeting{
		ID:         fmt.Sprintf("meeting-%d", m.createCount),
		Topic:      input.Topic,
		Language:   input.Language,
		Characters: input.Characters,
		Status:     repository.MeetingStatusRunning,
	}
	m.stored[meeting.ID] = meeting
	return meeting, nil
}

func (m *mockRepository) GetMeeting(_ context.Context, meetingID string) (*repository.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meeting, ok := m.stored[meetingID]
	if !ok {
		return nil, fmt.Errorf("meeting %s not found", meetingID)
	}
	copied := *meeting
	return &copied, nil
}

func (m *mockRepository) SaveMeeting(_ context.Context, input repository.SaveMeetingInput) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls = append(m.saveCalls, input)
	if m.conflictOnce {
		m.conflictOnce = false
		meeting := m.stored[input.MeetingID]
		meeting.Revision++
		return 0, repository.ErrRevisionConflict
	}
	meeting, ok := m.stored[input.MeetingID]
	if !ok {
		return 0, fmt.Errorf("meeting %s not found", input.MeetingID)
	}
	if meeting.Revision != input.ExpectedRevision {
		return 0, repository.ErrRevisionConflict
	}
	meeting.Conversation = input.Conversation
	meeting.HandRaised = input.HandRaised
	meeting.HumanName = input.HumanName
	meeting.AlreadyInvited = input.AlreadyInvited
	meeting.Revision++
	return meeting.Revision, nil
}

func (m *mockRepository) UpdateMeetingCompleted(_ context.Context, input repository.CompleteMeetingInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, input.MeetingID)
	return nil
}

func (m *mockRepository) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saveCalls)
}

type mockGenerator struct {
	mu              sync.Mutex
	interjectionErr error
	nextTurnsCalls  []generator.TurnsRequest
	summaryText     string
}

func (g *mockGenerator) OpeningTurns(_ context.Context, req generator.TurnsRequest) ([]generator.Turn, error) {
	return makeTurns(req.Characters, req.Count), nil
}

func (g *mockGenerator) NextTurns(_ context.Context, req generator.TurnsRequest) ([]generator.Turn, error) {
	g.mu.Lock()
	g.nextTurnsCalls = append(g.nextTurnsCalls, req)
	g.mu.Unlock()
	return makeTurns(req.Characters, req.Count), nil
}

func (g *mockGenerator) Interjection(_ context.Context, req generator.InterjectionRequest) (string, error) {
	if g.interjectionErr != nil {
		return "", g.interjectionErr
	}
	return fmt.Sprintf("Please go ahead, %s.\n\nExtra turn that must be cut.", req.HumanName), nil
}

func (g *mockGenerator) Summary(_ context.Context, _ generator.SummaryRequest) (string, error) {
	if g.summaryText != "" {
		return g.summaryText, nil
	}
	return "We covered a lot of ground today.", nil
}

func makeTurns(characters []string, count int) []generator.Turn {
	turns := make([]generator.Turn, 0, count)
	for i := 0; i < count; i++ {
		turns = append(turns, generator.Turn{
			Speaker: characters[i%len(characters)],
			Text:    fmt.Sprintf("Statement %d.", i),
		})
	}
	return turns
}

// mockSynthesizer produces one second of audio per sentence at a tiny sample
// rate so tests stay fast.
type mockSynthesizer struct{}

func (s *mockSynthesizer) Synthesize(_ context.Context, req synthesizer.Request) (*synthesizer.Clip, error) {
	clip := &synthesizer.Clip{SampleRate: 100}
	for i, text := range req.Sentences {
		clip.PCM = append(clip.PCM, make([]int16, 100)...)
		clip.Sentences = append(clip.Sentences, conversation.Sentence{
			Text:  text,
			Start: float64(i),
			End:   float64(i + 1),
		})
	}
	return clip, nil
}

type mockEncoder struct{}

func (e *mockEncoder) Encode(pcm []int16, _ int) ([][]byte, error) {
	return [][]byte{make([]byte, len(pcm)*2)}, nil
}

type mockWebhookSender struct {
	mu      sync.Mutex
	reports []webhook.SummaryReport
}

func (s *mockWebhookSender) SendSummary(_ context.Context, report webhook.SummaryReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

type pushedEvent struct {
	event   string
	payload any
}

type mockPusher struct {
	mu     sync.Mutex
	pushed []pushedEvent
}

func (p *mockPusher) Push(event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, pushedEvent{event: event, payload: payload})
	return nil
}

func (p *mockPusher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.pushed {
		if e.event == event {
			n++
		}
	}
	return n
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                   "test",
		DefaultLanguage:       "en-US",
		OpeningTurnCount:      4,
		ContinuationTurnCount: 2,
		MaxConversationTurns:  10,
	}
}

func newTestManager(repo *mockRepository, gen *mockGenerator, wh *mockWebhookSender) *Manager {
	return NewManager(testConfig(), repo, gen, &mockSynthesizer{}, &mockEncoder{}, wh)
}

func startMeeting(t *testing.T, m *Manager, pusher *mockPusher) string {
	t.Helper()
	meetingID, err := m.StartConversation(context.Background(), pusher, gateway.StartConversationPayload{
		Topic:      "the future of tests",
		Characters: []string{"Ada", "Brahe", "Curie"},
	})
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}
	return meetingID
}

func transcriptOf(t *testing.T, m *Manager, meetingID string) []conversation.Message {
	t.Helper()
	lm, err := m.live(meetingID)
	if err != nil {
		t.Fatalf("live meeting: %v", err)
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	out := make([]conversation.Message, len(lm.record.Conversation))
	copy(out, lm.record.Conversation)
	return out
}

func recordOf(t *testing.T, m *Manager, meetingID string) repository.Meeting {
	t.Helper()
	lm, err := m.live(meetingID)
	if err != nil {
		t.Fatalf("live meeting: %v", err)
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return *lm.record
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(message)
}

func TestStartConversation_GeneratesOpeningTurnsAndAudio(t *testing.T) {
	repo := newMockRepository()
	pusher := &mockPusher{}
	manager := newTestManager(repo, &mockGenerator{}, &mockWebhookSender{})

	meetingID := startMeeting(t, manager, pusher)

	if pusher.count(gateway.EventMeetingStarted) != 1 {
		t.Fatal("expected meeting_started to be pushed")
	}
	transcript := transcriptOf(t, manager, meetingID)
	if len(transcript) != 4 {
		t.Fatalf("expected 4 opening turns, got %d", len(transcript))
	}
	for i, msg := range transcript {
		if msg.Type != conversation.TypeTurn {
			t.Fatalf("turn %d has type %s", i, msg.Type)
		}
		if msg.ID == "" {
			t.Fatalf("turn %d has no id", i)
		}
	}
	waitUntil(t, time.Second, func() bool {
		return pusher.count(gateway.EventAudioUpdate) == 4
	}, "expected one audio_update per opening turn")

	lm, _ := manager.live(meetingID)
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for _, msg := range lm.record.Conversation {
		artifact, ok := lm.artifacts[msg.ID]
		if !ok {
			t.Fatalf("missing artifact for %s", msg.ID)
		}
		if len(artifact.Sentences) == 0 {
			t.Fatalf("artifact %s has no sentence timings", msg.ID)
		}
	}
}

func TestRaiseHand_InterjectionTranscriptShape(t *testing.T) {
	repo := newMockRepository()
	pusher := &mockPusher{}
	manager := newTestManager(repo, &mockGenerator{}, &mockWebhookSender{})
	meetingID := startMeeting(t, manager, pusher)

	if err := manager.RaiseHand(context.Background(), meetingID, gateway.RaiseHandPayload{
		HumanName: "Sven",
		Index:     3,
	}); err != nil {
		t.Fatalf("raise hand: %v", err)
	}

	transcript := transcriptOf(t, manager, meetingID)
	if len(transcript) < 4 {
		t.Fatalf("expected at least 4 entries, got %d", len(transcript))
	}
	if transcript[3].Type != conversation.TypeInvitation {
		t.Fatalf("entry 3 has type %s, want invitation", transcript[3].Type)
	}
	if strings.Contains(transcript[3].Text, "Extra turn") {
		t.Fatalf("invitation was not cut at the blank line: %q", transcript[3].Text)
	}
	if transcript[3].Speaker != "Ada" {
		t.Fatalf("invitation speaker is %s, want the chair", transcript[3].Speaker)
	}
	sentinels := 0
	for _, msg := range transcript {
		if msg.Type == conversation.TypeAwaitingHumanQuestion {
			sentinels++
			if msg.Speaker != "Sven" {
				t.Fatalf("sentinel speaker is %s, want Sven", msg.Speaker)
			}
			if msg.Text != "" {
				t.Fatalf("sentinel carries text: %q", msg.Text)
			}
		}
	}
	if sentinels != 1 {
		t.Fatalf("expected exactly one awaiting sentinel, got %d", sentinels)
	}
	if last := transcript[len(transcript)-1]; last.Type != conversation.TypeAwaitingHumanQuestion {
		t.Fatalf("last entry has type %s, want awaiting sentinel", last.Type)
	}
	if rec := recordOf(t, manager, meetingID); !rec.HandRaised || !rec.AlreadyInvited {
		t.Fatalf("expected handRaised and alreadyInvited, got %+v", rec)
	}
}

func TestRaiseHand_GeneratorFailureLeavesInviteUnset(t *testing.T) {
	repo := newMockRepository()
	gen := &mockGenerator{interjectionErr: errors.New("model unavailable")}
	manager := newTestManager(repo, gen, &mockWebhookSender{})
	meetingID := startMeeting(t, manager, &mockPusher{})

	err := manager.RaiseHand(context.Background(), meetingID, gateway.RaiseHandPayload{HumanName: "Sven", Index: 2})
	if err == nil {
		t.Fatal("expected error from failed invitation")
	}
	rec := recordOf(t, manager, meetingID)
	if rec.AlreadyInvited {
		t.Fatal("alreadyInvited must stay false when no invitation was appended")
	}
	if len(rec.Conversation) != 2 {
		t.Fatalf("expected transcript truncated to 2 entries, got %d", len(rec.Conversation))
	}

	// The next raise retries the invitation.
	gen.interjectionErr = nil
	if err := manager.RaiseHand(context.Background(), meetingID, gateway.RaiseHandPayload{HumanName: "Sven", Index: 2}); err != nil {
		t.Fatalf("retry raise hand: %v", err)
	}
	if rec := recordOf(t, manager, meetingID); !rec.AlreadyInvited {
		t.Fatal("expected alreadyInvited after successful invitation")
	}
}

func TestRaiseHand_SecondRaiseDoesNotReinvite(t *testing.T) {
	repo := newMockRepository()
	manager := newTestManager(repo, &mockGenerator{}, &mockWebhookSender{})
	meetingID := startMeeting(t, manager, &mockPusher{})

	if err := manager.RaiseHand(context.Background(), meetingID, gateway.RaiseHandPayload{HumanName: "Sven", Index: 3}); err != nil {
		t.Fatalf("raise hand: %v", err)
	}
	first := transcriptOf(t, manager, meetingID)
	if err := manager.RaiseHand(context.Background(), meetingID, gateway.RaiseHandPayload{HumanName: "Sven", Index: len(first)}); err != nil {
		t.Fatalf("second raise hand: %v", err)
	}

	invitations := 0
	for _, msg := range transcriptOf(t, manager, meetingID) {
		if msg.Type == conversation.TypeInvitation {
			invitations++
		}
	}
	if invitations != 1 {
		t.Fatalf("expected a single invitation, got %d", invitations)
	}
}

func TestSubmitHumanMessage_DropsSentinelAndContinues(t *testing.T) {
	repo := newMockRepository()
	gen := &mockGenerator{}
	manager := newTestManager(repo, gen, &mockWebhookSender{})
	meetingID := startMeeting(t, manager, &mockPusher{})

	if err := manager.RaiseHand(context.Background(), meetingID, gateway.RaiseHandPayload{HumanName: "Sven", Index: 3}); err != nil {
		t.Fatalf("raise hand: %v", err)
	}
	if err := manager.SubmitHumanMessage(context.Background(), meetingID, gateway.SubmitHumanMessagePayload{
		Text:          "What about error budgets?",
		Speaker:       "Sven",
		AskParticular: "Curie",
	}); err != nil {
		t.Fatalf("submit human message: %v", err)
	}

	transcript := transcriptOf(t, manager, meetingID)
	for i, msg := range transcript {
		if msg.IsPlaceholder() {
			t.Fatalf("entry %d is still a placeholder", i)
		}
	}
	humanIndex := -1
	for i, msg := range transcript {
		if msg.Speaker == "Sven" {
			humanIndex = i
		}
	}
	if humanIndex < 0 {
		t.Fatal("human turn missing from transcript")
	}
	if got := len(transcript) - humanIndex - 1; got != 2 {
		t.Fatalf("expected 2 continuation turns after the human, got %d", got)
	}
	rec := recordOf(t, manager, meetingID)
	if rec.HandRaised || rec.AlreadyInvited || rec.HumanName != "" {
		t.Fatalf("expected cleared hand state, got %+v", rec)
	}
	gen.mu.Lock()
	defer gen.mu.Unlock()
	if len(gen.nextTurnsCalls) != 1 || gen.nextTurnsCalls[0].DirectTo != "Curie" {
		t.Fatalf("expected continuation directed to Curie, got %+v", gen.nextTurnsCalls)
	}
}

func TestSaveMeeting_RetriesOnRevisionConflict(t *testing.T) {
	repo := newMockRepository()
	manager := newTestManager(repo, &mockGenerator{}, &mockWebhookSender{})
	pusher := &mockPusher{}
	meetingID := startMeeting(t, manager, pusher)
	waitUntil(t, time.Second, func() bool {
		return pusher.count(gateway.EventAudioUpdate) == 4
	}, "opening synthesis should finish")

	before := repo.saveCount()
	repo.mu.Lock()
	repo.conflictOnce = true
	repo.mu.Unlock()

	if err := manager.RemoveLastMessage(context.Background(), meetingID); err != nil {
		t.Fatalf("remove last message: %v", err)
	}
	if got := repo.saveCount() - before; got != 2 {
		t.Fatalf("expected a retried save after the conflict, got %d calls", got)
	}
	stored, err := repo.GetMeeting(context.Background(), meetingID)
	if err != nil {
		t.Fatalf("get meeting: %v", err)
	}
	if len(stored.Conversation) != 3 {
		t.Fatalf("expected 3 entries after removal, got %d", len(stored.Conversation))
	}
	if rec := recordOf(t, manager, meetingID); rec.Revision != stored.Revision {
		t.Fatalf("in-memory revision %d does not match stored %d", rec.Revision, stored.Revision)
	}
}

func TestContinueConversation_StopsAtMaximumLength(t *testing.T) {
	repo := newMockRepository()
	gen := &mockGenerator{}
	manager := newTestManager(repo, gen, &mockWebhookSender{})
	manager.cfg.MaxConversationTurns = 4
	meetingID := startMeeting(t, manager, &mockPusher{})

	if err := manager.ContinueConversation(context.Background(), meetingID); err != nil {
		t.Fatalf("continue conversation: %v", err)
	}
	if got := len(transcriptOf(t, manager, meetingID)); got != 4 {
		t.Fatalf("expected transcript capped at 4, got %d", got)
	}
	gen.mu.Lock()
	defer gen.mu.Unlock()
	if len(gen.nextTurnsCalls) != 0 {
		t.Fatal("generator must not be called past the maximum length")
	}
}

func TestWrapUpMeeting_SendsSummaryReport(t *testing.T) {
	repo := newMockRepository()
	wh := &mockWebhookSender{}
	manager := newTestManager(repo, &mockGenerator{summaryText: "A fine discussion."}, wh)
	meetingID := startMeeting(t, manager, &mockPusher{})

	if err := manager.WrapUpMeeting(context.Background(), meetingID, gateway.WrapUpMeetingPayload{Date: "2026-08-28"}); err != nil {
		t.Fatalf("wrap up: %v", err)
	}
	transcript := transcriptOf(t, manager, meetingID)
	last := transcript[len(transcript)-1]
	if last.Type != conversation.TypeSummary || last.Speaker != "Ada" {
		t.Fatalf("unexpected summary entry: %+v", last)
	}
	repo.mu.Lock()
	completed := len(repo.completed)
	repo.mu.Unlock()
	if completed != 1 {
		t.Fatal("expected the meeting to be marked completed")
	}
	wh.mu.Lock()
	defer wh.mu.Unlock()
	if len(wh.reports) != 1 || wh.reports[0].Summary != "A fine discussion." || wh.reports[0].Date != "2026-08-28" {
		t.Fatalf("unexpected summary report: %+v", wh.reports)
	}
}

func TestDeliverArtifact_DropsOrphanAfterTruncation(t *testing.T) {
	repo := newMockRepository()
	manager := newTestManager(repo, &mockGenerator{}, &mockWebhookSender{})
	pusher := &mockPusher{}
	meetingID := startMeeting(t, manager, pusher)
	waitUntil(t, time.Second, func() bool {
		return pusher.count(gateway.EventAudioUpdate) == 4
	}, "opening synthesis should finish")

	before := pusher.count(gateway.EventAudioUpdate)
	manager.deliverArtifact(context.Background(), meetingID, &gateway.AudioUpdatePayload{ID: "ghost"})
	if pusher.count(gateway.EventAudioUpdate) != before {
		t.Fatal("orphaned artifact must not be pushed")
	}
	lm, _ := manager.live(meetingID)
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, ok := lm.artifacts["ghost"]; ok {
		t.Fatal("orphaned artifact must not be retained")
	}
}

func TestAttemptReconnection_ReplaysTranscriptAndArtifacts(t *testing.T) {
	repo := newMockRepository()
	manager := newTestManager(repo, &mockGenerator{}, &mockWebhookSender{})
	pusher := &mockPusher{}
	meetingID := startMeeting(t, manager, pusher)
	waitUntil(t, time.Second, func() bool {
		return pusher.count(gateway.EventAudioUpdate) == 4
	}, "opening synthesis should finish")

	manager.Detach(meetingID)
	reattached := &mockPusher{}
	if err := manager.AttemptReconnection(context.Background(), reattached, gateway.AttemptReconnectionPayload{
		MeetingID:             meetingID,
		HandRaised:            false,
		ConversationMaxLength: 4,
	}); err != nil {
		t.Fatalf("attempt reconnection: %v", err)
	}
	if reattached.count(gateway.EventConversationUpdate) != 1 {
		t.Fatal("expected a transcript snapshot on reconnection")
	}
	if reattached.count(gateway.EventAudioUpdate) != 4 {
		t.Fatalf("expected all artifacts replayed, got %d", reattached.count(gateway.EventAudioUpdate))
	}
}
