package viewer

// Sink is the audio output device as seen by the viewer. Suspend and Resume
// are called at most once per pause cycle; the viewer guards redundant calls.
type Sink interface {
	Play(pcm []int16, sampleRate int)
	Stop()
	Suspend()
	Resume()
	SetMuted(muted bool)
}

// NullSink discards audio. Playback timing is driven by the subtitle clock,
// so a viewer without an output device still runs a correct session.
type NullSink struct{}

func (NullSink) Play(_ []int16, _ int) {}
func (NullSink) Stop()                 {}
func (NullSink) Suspend()              {}
func (NullSink) Resume()               {}
func (NullSink) SetMuted(_ bool)       {}
