package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/zadankai/internal/audio"
	"github.com/foxseedlab/zadankai/internal/conversation"
	"github.com/foxseedlab/zadankai/internal/gateway"
	"github.com/foxseedlab/zadankai/internal/playback"
)

const (
	frameInterval    = 50 * time.Millisecond
	waitDebounce     = time.Second
	reconnectBackoff = 2 * time.Second
)

// Conn is the push-channel connection as seen by the viewer.
type Conn interface {
	Read() (gateway.Envelope, error)
	Send(event string, payload any) error
	Close() error
}

// Dialer opens a fresh connection; the viewer redials it on transport loss.
type Dialer func(ctx context.Context) (Conn, error)

type frame struct {
	env gateway.Envelope
	err error
}

// Viewer runs the playback side of a meeting as one cooperative event loop:
// socket frames, the subtitle frame ticker, the advance debounce timer, and
// console input are all serviced by a single goroutine, so no playback state
// needs locking.
type Viewer struct {
	dial      Dialer
	conn      Conn
	sink      Sink
	decoder   audio.Decoder
	out       io.Writer
	humanName string

	orch    *playback.Orchestrator
	session *playback.Session
	queue   *playback.DeliveryQueue

	meetingID   string
	handRaised  bool
	maxLength   int
	suspended   bool
	currentClip *playback.Artifact

	frames    chan frame
	inputs    chan string
	waitTimer *time.Timer
}

func New(dial Dialer, sink Sink, decoder audio.Decoder, humanName string, out io.Writer) *Viewer {
	v := &Viewer{
		dial:      dial,
		sink:      sink,
		decoder:   decoder,
		out:       out,
		humanName: humanName,
		orch:      playback.NewOrchestrator(),
		session:   playback.NewSession(),
		queue:     playback.NewDeliveryQueue(),
		frames:    make(chan frame, 64),
		inputs:    make(chan string, 8),
		waitTimer: time.NewTimer(waitDebounce),
	}
	if !v.waitTimer.Stop() {
		v.drainWaitTimer()
	}
	return v
}

// Inputs returns the channel console lines are fed into.
func (v *Viewer) Inputs() chan<- string { return v.inputs }

// Connect dials the backend and starts the socket reader.
func (v *Viewer) Connect(ctx context.Context) error {
	conn, err := v.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial backend: %w", err)
	}
	v.conn = conn
	v.startReader(conn)
	return nil
}

// Start asks the backend to create a meeting and begin the conversation.
func (v *Viewer) Start(topic string, characters []string, language string) error {
	return v.conn.Send(gateway.EventStartConversation, gateway.StartConversationPayload{
		Topic:      topic,
		Characters: characters,
		Language:   language,
	})
}

// Run services the event loop until the meeting ends, a fatal error arrives,
// or the context is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			v.shutdown()
			return ctx.Err()
		case f := <-v.frames:
			if f.err != nil {
				if err := v.reconnect(ctx); err != nil {
					return err
				}
				continue
			}
			if err := v.handleFrame(f.env); err != nil {
				return err
			}
		case <-ticker.C:
			v.tick(time.Now())
		case <-v.waitTimer.C:
			v.execute(v.orch.Apply(playback.WaitTimerFired{}))
		case line := <-v.inputs:
			if quit := v.handleInput(line); quit {
				v.shutdown()
				return nil
			}
		}
	}
}

func (v *Viewer) startReader(conn Conn) {
	go func() {
		for {
			env, err := conn.Read()
			if err != nil {
				v.frames <- frame{err: err}
				return
			}
			v.frames <- frame{env: env}
		}
	}()
}

// reconnect redials with backoff and re-attaches to the server-side session.
// While it runs the loop is blocked, so no local state advances.
func (v *Viewer) reconnect(ctx context.Context) error {
	fmt.Fprintln(v.out, "-- connection lost, reconnecting --")
	_ = v.conn.Close()
	for {
		conn, err := v.dial(ctx)
		if err == nil {
			// The reader starts only once the re-attach is accepted; a
			// connection discarded here must never feed frames into the loop.
			if err := conn.Send(gateway.EventAttemptReconnection, gateway.AttemptReconnectionPayload{
				MeetingID:             v.meetingID,
				HandRaised:            v.handRaised,
				ConversationMaxLength: v.maxLength,
			}); err == nil {
				v.conn = conn
				v.startReader(conn)
				fmt.Fprintln(v.out, "-- reconnected --")
				return nil
			}
			_ = conn.Close()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
	}
}

func (v *Viewer) handleFrame(env gateway.Envelope) error {
	switch env.Event {
	case gateway.EventMeetingStarted:
		var p gateway.MeetingStartedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil
		}
		v.meetingID = p.MeetingID
		fmt.Fprintf(v.out, "-- meeting %s --\n", p.MeetingID)

	case gateway.EventConversationUpdate:
		var p gateway.ConversationUpdatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			slog.Warn("malformed conversation_update", "error", err)
			return nil
		}
		if len(p.Conversation) > v.maxLength {
			v.maxLength = len(p.Conversation)
		}
		for _, msg := range p.Conversation {
			if msg.Type == conversation.TypeSkipped && !v.queue.Has(msg.ID) {
				v.queue.PutSkip(msg.ID)
			}
		}
		v.execute(v.orch.Apply(playback.TranscriptUpdated{Messages: p.Conversation}))
		v.renderState()

	case gateway.EventAudioUpdate:
		var p gateway.AudioUpdatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			slog.Warn("malformed audio_update", "error", err)
			return nil
		}
		pcm, err := v.decoder.Decode(p.Frames, p.SampleRate)
		if err != nil {
			slog.Error("artifact decode failed", "error", err, "message_id", p.ID)
			return nil
		}
		artifact := &playback.Artifact{
			ID:         p.ID,
			PCM:        pcm,
			SampleRate: p.SampleRate,
			Sentences:  p.Sentences,
		}
		v.queue.Put(artifact.ID, &clipHandle{viewer: v, artifact: artifact})
		v.execute(v.orch.Apply(playback.ArtifactArrived{Artifact: artifact}))

	case gateway.EventConversationError:
		var p gateway.ConversationErrorPayload
		_ = json.Unmarshal(env.Payload, &p)
		fmt.Fprintf(v.out, "-- conversation failed: %s --\n", p.Message)
		return fmt.Errorf("conversation error: %s", p.Message)
	}
	return nil
}

// tick advances the subtitle clock one frame and detects clip completion.
func (v *Viewer) tick(now time.Time) {
	if _, text, changed := v.session.Tick(now); changed {
		v.renderSubtitle(text)
	}
	if v.currentClip != nil && v.session.Playing() && v.session.Finished(now, v.currentClip.Duration()) {
		v.currentClip = nil
		v.session.Load(nil, false, now)
		v.execute(v.orch.Apply(playback.PlaybackFinished{}))
	}
}

func (v *Viewer) handleInput(line string) (quit bool) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "quit":
		return true
	case "pause":
		v.execute(v.orch.Apply(playback.PauseToggled{}))
	case "mute":
		v.execute(v.orch.Apply(playback.MuteToggled{}))
	case "skip":
		v.execute(v.orch.Apply(playback.SkipForward{}))
	case "back":
		v.execute(v.orch.Apply(playback.SkipBackward{}))
	case "hand":
		v.execute(v.orch.Apply(playback.RaiseHandRequested{}))
	case "continue":
		v.send(gateway.EventContinueConversation, struct{}{})
		v.execute(v.orch.Apply(playback.OverlayClosed{}))
	case "wrapup":
		v.send(gateway.EventWrapUpMeeting, gateway.WrapUpMeetingPayload{
			Date: time.Now().Format("2006-01-02"),
		})
		v.execute(v.orch.Apply(playback.OverlayClosed{}))
	case "undo":
		v.send(gateway.EventRemoveLastMessage, struct{}{})
	default:
		v.submitHumanText(line)
	}
	return false
}

// submitHumanText sends free text while the floor is open. An "@Name "
// prefix directs the question to that panelist.
func (v *Viewer) submitHumanText(line string) {
	switch v.orch.State() {
	case playback.StateHumanInput:
		askParticular := ""
		if strings.HasPrefix(line, "@") {
			if name, rest, ok := strings.Cut(line[1:], " "); ok {
				askParticular = name
				line = rest
			}
		}
		v.send(gateway.EventSubmitHumanMessage, gateway.SubmitHumanMessagePayload{
			Text:          line,
			Speaker:       v.humanName,
			AskParticular: askParticular,
		})
		v.handRaised = false
		v.execute(v.orch.Apply(playback.HumanMessageSubmitted{}))
	case playback.StateHumanPanelist:
		v.send(gateway.EventSubmitHumanPanelist, gateway.SubmitHumanPanelistPayload{
			Text:    line,
			Speaker: v.humanName,
		})
		v.handRaised = false
		v.execute(v.orch.Apply(playback.HumanMessageSubmitted{}))
	default:
		fmt.Fprintln(v.out, "-- the floor is not open; raise your hand first --")
	}
}

// execute performs the orchestrator's effects. This is the only place where
// transitions touch timers, the socket, or the audio device.
func (v *Viewer) execute(cmds []playback.Command) {
	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case playback.StartClip:
			v.startClip(c.Index)
		case playback.StopClip:
			v.stopClip()
		case playback.ArmWaitTimer:
			v.waitTimer.Reset(waitDebounce)
		case playback.CancelWaitTimer:
			if !v.waitTimer.Stop() {
				v.drainWaitTimer()
			}
		case playback.SendRaiseHand:
			v.handRaised = true
			v.send(gateway.EventRaiseHand, gateway.RaiseHandPayload{
				HumanName: v.humanName,
				Index:     c.Index,
			})
			fmt.Fprintln(v.out, "-- hand raised --")
		case playback.SetPaused:
			v.setPaused(c.Paused)
		case playback.SetMuted:
			v.sink.SetMuted(c.Muted)
		case playback.ShowCompletedPrompt:
			fmt.Fprintln(v.out, "-- end of conversation: type 'continue' or 'wrapup' --")
		}
	}
}

func (v *Viewer) startClip(index int) {
	played, ok := v.queue.Play(v.orch.Transcript(), index)
	if !ok {
		return
	}
	artifact := v.orch.Artifact(played)
	v.currentClip = artifact
	text, count := v.session.Load(artifact, !v.orch.Paused(), time.Now())
	if count > 0 {
		v.renderSubtitle(text)
	}
}

func (v *Viewer) stopClip() {
	if v.currentClip != nil {
		v.queue.Stop(v.currentClip.ID)
		v.currentClip = nil
	}
	v.session.Load(nil, false, time.Now())
}

// setPaused banks the clip clock and suspends the device, guarded so the
// device is suspended and resumed at most once per cycle.
func (v *Viewer) setPaused(paused bool) {
	v.session.SetPaused(paused, time.Now())
	if paused {
		if !v.suspended {
			v.sink.Suspend()
			v.suspended = true
		}
		return
	}
	if v.suspended {
		v.sink.Resume()
		v.suspended = false
	}
}

func (v *Viewer) send(event string, payload any) {
	if err := v.conn.Send(event, payload); err != nil {
		slog.Warn("send failed", "event", event, "error", err)
	}
}

func (v *Viewer) drainWaitTimer() {
	select {
	case <-v.waitTimer.C:
	default:
	}
}

func (v *Viewer) renderSubtitle(text string) {
	speaker := ""
	transcript := v.orch.Transcript()
	if i := v.orch.PlayingNow(); i >= 0 && i < len(transcript) {
		speaker = transcript[i].Speaker
	}
	fmt.Fprintf(v.out, "%s: %s\n", speaker, text)
}

func (v *Viewer) renderState() {
	switch v.orch.State() {
	case playback.StateHumanInput:
		fmt.Fprintln(v.out, "-- your question (prefix '@Name ' to ask a particular panelist): --")
	case playback.StateHumanPanelist:
		fmt.Fprintln(v.out, "-- your statement: --")
	case playback.StateSummary:
		transcript := v.orch.Transcript()
		if i := v.orch.PlayNext(); i >= 0 && i < len(transcript) {
			fmt.Fprintf(v.out, "-- summary --\n%s\n", transcript[i].Text)
		}
	}
}

// shutdown releases the server-held session on exit.
func (v *Viewer) shutdown() {
	v.sink.Stop()
	if v.conn != nil {
		_ = v.conn.Close()
	}
}

type clipHandle struct {
	viewer   *Viewer
	artifact *playback.Artifact
}

func (h *clipHandle) Play() {
	h.viewer.sink.Play(h.artifact.PCM, h.artifact.SampleRate)
}

func (h *clipHandle) Stop() {
	h.viewer.sink.Stop()
}
