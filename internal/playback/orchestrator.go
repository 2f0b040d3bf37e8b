package playback

import "github.com/foxseedlab/zadankai/internal/conversation"

// State is the playback orchestrator's current mode.
type State string

const (
	// StateLoading waits for the entry at playNext to become playable.
	StateLoading State = "loading"
	// StatePlaying plays the clip at playingNow.
	StatePlaying State = "playing"
	// StateWaiting is the fixed debounce between consecutive auto-advances.
	StateWaiting State = "waiting"
	// StateHumanInput holds the floor open for a human question.
	StateHumanInput State = "human_input"
	// StateHumanPanelist holds the floor open for a human panelist turn.
	StateHumanPanelist State = "human_panelist"
	// StateSummary shows the closing summary surface.
	StateSummary State = "summary"
	// StateMaxReached marks the playback frontier with no further turns.
	StateMaxReached State = "max_reached"
)

// Event is one input to the orchestrator: a network arrival, a playback
// signal, or a user control.
type Event interface{ isEvent() }

type (
	// TranscriptUpdated replaces the local transcript with a full snapshot.
	TranscriptUpdated struct{ Messages []conversation.Message }
	// ArtifactArrived stores one decoded audio artifact.
	ArtifactArrived struct{ Artifact *Artifact }
	// PlaybackFinished signals that the current clip played to its end.
	PlaybackFinished struct{}
	// SkipForward advances to the next playable index.
	SkipForward struct{}
	// SkipBackward steps back one index, clamped at zero.
	SkipBackward struct{}
	// RaiseHandRequested asks for the floor at the current position.
	RaiseHandRequested struct{}
	// HumanMessageSubmitted reports that the human's text was sent upstream.
	HumanMessageSubmitted struct{}
	// PauseToggled flips the pause state.
	PauseToggled struct{}
	// MuteToggled flips the local mute state.
	MuteToggled struct{}
	// WaitTimerFired reports expiry of the advance debounce timer.
	WaitTimerFired struct{}
	// OverlayClosed dismisses the current decision surface.
	OverlayClosed struct{}
)

func (TranscriptUpdated) isEvent()     {}
func (ArtifactArrived) isEvent()       {}
func (PlaybackFinished) isEvent()      {}
func (SkipForward) isEvent()           {}
func (SkipBackward) isEvent()          {}
func (RaiseHandRequested) isEvent()    {}
func (HumanMessageSubmitted) isEvent() {}
func (PauseToggled) isEvent()          {}
func (MuteToggled) isEvent()           {}
func (WaitTimerFired) isEvent()        {}
func (OverlayClosed) isEvent()         {}

// Command is an effect the caller must perform after a transition. The
// orchestrator itself never touches timers, sockets, or audio devices.
type Command interface{ isCommand() }

type (
	// StartClip loads and plays the artifact for the transcript entry.
	StartClip struct{ Index int }
	// StopClip stops whatever clip is currently audible.
	StopClip struct{}
	// ArmWaitTimer starts the 1000 ms advance debounce timer.
	ArmWaitTimer struct{}
	// CancelWaitTimer stops a pending debounce timer.
	CancelWaitTimer struct{}
	// SendRaiseHand forwards a raise-hand request for the given index.
	SendRaiseHand struct{ Index int }
	// SetPaused suspends or resumes the clip clock and the output device.
	SetPaused struct{ Paused bool }
	// SetMuted mutes or unmutes the output device without touching timing.
	SetMuted struct{ Muted bool }
	// ShowCompletedPrompt opens the continue-or-summarize decision surface.
	ShowCompletedPrompt struct{}
)

func (StartClip) isCommand()           {}
func (StopClip) isCommand()            {}
func (ArmWaitTimer) isCommand()        {}
func (CancelWaitTimer) isCommand()     {}
func (SendRaiseHand) isCommand()       {}
func (SetPaused) isCommand()           {}
func (SetMuted) isCommand()            {}
func (ShowCompletedPrompt) isCommand() {}

// Orchestrator is the finite state machine deciding what is currently
// audible and which index plays next. It consumes transcript snapshots,
// artifact arrivals, playback signals, and user controls; every decision is
// taken inside Apply so the full (state, event) matrix lives in one place.
type Orchestrator struct {
	transcript []conversation.Message
	artifacts  map[string]*Artifact

	state      State
	playNext   int
	playingNow int
	maxPlayed  int
	paused     bool
	muted      bool
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		artifacts: make(map[string]*Artifact),
		state:     StateLoading,
	}
}

// State returns the current mode.
func (o *Orchestrator) State() State { return o.state }

// PlayingNow returns the index of the entry currently audible.
func (o *Orchestrator) PlayingNow() int { return o.playingNow }

// PlayNext returns the candidate index considered for playback.
func (o *Orchestrator) PlayNext() int { return o.playNext }

// MaximumPlayedIndex is the playback frontier: the furthest index ever
// reached. It never decreases, including after backward skips.
func (o *Orchestrator) MaximumPlayedIndex() int { return o.maxPlayed }

// Paused reports the pause state.
func (o *Orchestrator) Paused() bool { return o.paused }

// Artifact returns the stored artifact for a transcript index, or nil.
func (o *Orchestrator) Artifact(index int) *Artifact {
	if index < 0 || index >= len(o.transcript) {
		return nil
	}
	return o.artifacts[o.transcript[index].ID]
}

// Transcript returns the current local transcript snapshot.
func (o *Orchestrator) Transcript() []conversation.Message { return o.transcript }

func (o *Orchestrator) lastIndex() int { return len(o.transcript) - 1 }

// CanRaiseHand reports whether the raise-hand control is available: only at
// the playback frontier, not at the final index, and only while playing or
// waiting.
func (o *Orchestrator) CanRaiseHand() bool {
	if o.state != StatePlaying && o.state != StateWaiting {
		return false
	}
	return o.playingNow == o.maxPlayed && o.playingNow != o.lastIndex()
}

// CanGoForward reports whether a forward skip can move anywhere.
func (o *Orchestrator) CanGoForward() bool { return o.playingNow < o.lastIndex() }

// CanGoBack reports whether a backward skip can move anywhere.
func (o *Orchestrator) CanGoBack() bool { return o.playingNow != 0 }

// Apply runs one transition and returns the effects the caller must perform.
func (o *Orchestrator) Apply(ev Event) []Command {
	switch e := ev.(type) {
	case TranscriptUpdated:
		return o.onTranscript(e.Messages)
	case ArtifactArrived:
		return o.onArtifact(e.Artifact)
	case PlaybackFinished:
		return o.onPlaybackFinished()
	case SkipForward:
		return o.onSkipForward()
	case SkipBackward:
		return o.onSkipBackward()
	case RaiseHandRequested:
		if !o.CanRaiseHand() {
			return nil
		}
		return []Command{SendRaiseHand{Index: o.playingNow + 1}}
	case HumanMessageSubmitted:
		return o.onHumanSubmitted()
	case PauseToggled:
		return o.onPauseToggled()
	case MuteToggled:
		o.muted = !o.muted
		return []Command{SetMuted{Muted: o.muted}}
	case WaitTimerFired:
		return o.onWaitTimerFired()
	case OverlayClosed:
		if o.state == StateMaxReached {
			// Wait at the frontier for the conversation to grow.
			o.state = StateLoading
			o.playNext = o.playingNow + 1
			return o.evaluate()
		}
		return nil
	}
	return nil
}

func (o *Orchestrator) onTranscript(messages []conversation.Message) []Command {
	o.transcript = messages
	if o.playingNow >= len(o.transcript) && o.state == StatePlaying {
		// The audible entry was truncated away under us. Stop and wait for
		// the transcript to grow back past the frontier.
		o.state = StateLoading
		o.playNext = len(o.transcript)
		return append([]Command{StopClip{}}, o.evaluate()...)
	}
	return o.evaluate()
}

func (o *Orchestrator) onArtifact(artifact *Artifact) []Command {
	if artifact == nil || artifact.ID == "" {
		return nil
	}
	o.artifacts[artifact.ID] = artifact
	return o.evaluate()
}

// evaluate recomputes the state from the candidate index. Entry-type
// overrides come first: a summary or awaiting entry at playNext takes the
// machine there from any state.
func (o *Orchestrator) evaluate() []Command {
	if o.playNext >= 0 && o.playNext < len(o.transcript) {
		switch o.transcript[o.playNext].Type {
		case conversation.TypeSummary:
			return o.enterOverride(StateSummary)
		case conversation.TypeAwaitingHumanQuestion:
			return o.enterOverride(StateHumanInput)
		case conversation.TypeAwaitingHumanPanelist:
			return o.enterOverride(StateHumanPanelist)
		}
	}
	if o.state == StateLoading && Ready(o.transcript, o.artifacts, o.playNext) {
		return o.startPlaying(o.playNext)
	}
	return nil
}

func (o *Orchestrator) enterOverride(s State) []Command {
	var cmds []Command
	if o.state == StateWaiting {
		cmds = append(cmds, CancelWaitTimer{})
	}
	if o.state == StatePlaying {
		cmds = append(cmds, StopClip{})
	}
	o.state = s
	return cmds
}

func (o *Orchestrator) startPlaying(index int) []Command {
	o.playNext = index
	o.playingNow = index
	if index > o.maxPlayed {
		o.maxPlayed = index
	}
	o.state = StatePlaying
	return []Command{StartClip{Index: index}}
}

// nextIndex returns the next index past from, stepping over skipped entries.
// Returns -1 when the frontier is reached.
func (o *Orchestrator) nextIndex(from int) int {
	i := from + 1
	for i < len(o.transcript) && o.transcript[i].Type == conversation.TypeSkipped {
		i++
	}
	if i >= len(o.transcript) {
		return -1
	}
	return i
}

// prevIndex returns the previous index before from, stepping over skipped
// entries symmetrically, clamped at the lowest non-skipped index.
func (o *Orchestrator) prevIndex(from int) int {
	i := from - 1
	for i >= 0 && i < len(o.transcript) && o.transcript[i].Type == conversation.TypeSkipped {
		i--
	}
	if i < 0 {
		return from
	}
	return i
}

func (o *Orchestrator) onPlaybackFinished() []Command {
	if o.state != StatePlaying {
		return nil
	}
	next := o.nextIndex(o.playingNow)
	if next < 0 {
		o.state = StateMaxReached
		return []Command{ShowCompletedPrompt{}}
	}
	o.playNext = next
	if cmds := o.evaluate(); o.state != StatePlaying && o.state != StateLoading {
		// An override (summary, awaiting) claimed the candidate.
		return cmds
	}
	// Debounce between consecutive auto-advances.
	o.state = StateWaiting
	return []Command{ArmWaitTimer{}}
}

func (o *Orchestrator) onSkipForward() []Command {
	if o.state != StatePlaying && o.state != StateWaiting {
		return nil
	}
	var cmds []Command
	if o.state == StateWaiting {
		cmds = append(cmds, CancelWaitTimer{})
	}
	next := o.nextIndex(o.playingNow)
	if next < 0 {
		cmds = append(cmds, StopClip{})
		o.state = StateMaxReached
		return append(cmds, ShowCompletedPrompt{})
	}
	cmds = append(cmds, StopClip{})
	o.playNext = next
	return append(cmds, o.advanceToCandidate()...)
}

func (o *Orchestrator) onSkipBackward() []Command {
	if o.state != StatePlaying && o.state != StateWaiting {
		return nil
	}
	var cmds []Command
	if o.state == StateWaiting {
		cmds = append(cmds, CancelWaitTimer{})
	}
	prev := o.prevIndex(o.playingNow)
	cmds = append(cmds, StopClip{})
	o.playNext = prev
	return append(cmds, o.advanceToCandidate()...)
}

// advanceToCandidate moves to playNext without a debounce: straight to
// playing when ready, otherwise loading. Overrides still win.
func (o *Orchestrator) advanceToCandidate() []Command {
	o.state = StateLoading
	if cmds := o.evaluate(); len(cmds) > 0 || o.state != StateLoading {
		return cmds
	}
	return nil
}

func (o *Orchestrator) onHumanSubmitted() []Command {
	if o.state != StateHumanInput && o.state != StateHumanPanelist {
		return nil
	}
	o.transcript = conversation.DropTrailingPlaceholders(o.transcript)
	o.playNext = len(o.transcript)
	o.state = StateLoading
	return o.evaluate()
}

func (o *Orchestrator) onPauseToggled() []Command {
	o.paused = !o.paused
	cmds := []Command{SetPaused{Paused: o.paused}}
	if o.state == StateWaiting {
		if o.paused {
			cmds = append(cmds, CancelWaitTimer{})
		} else {
			cmds = append(cmds, ArmWaitTimer{})
		}
	}
	return cmds
}

func (o *Orchestrator) onWaitTimerFired() []Command {
	// Stale fires after a state change or while paused are ignored; state
	// re-entry thereby clears any timer that outlived its arming.
	if o.state != StateWaiting || o.paused {
		return nil
	}
	if Ready(o.transcript, o.artifacts, o.playNext) {
		return o.startPlaying(o.playNext)
	}
	o.state = StateLoading
	return nil
}
