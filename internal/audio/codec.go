package audio

// Encoder splits a synthesized clip into transport frames. With the opus
// build tag the frames are Opus packets; otherwise they carry raw
// little-endian PCM.
type Encoder interface {
	Encode(pcm []int16, sampleRate int) ([][]byte, error)
}

// Decoder reassembles transport frames into playable PCM.
type Decoder interface {
	Decode(frames [][]byte, sampleRate int) ([]int16, error)
}
