//go:build opus

package audio

import (
	"fmt"

	"github.com/foxseedlab/zadankai/internal/audio"
	"github.com/hraban/opus"
)

const (
	channels        = 1
	frameSizeMs     = 20
	maxPacketBytes  = 4000
	maxFrameSamples = 48000 * frameSizeMs / 1000
)

func frameSamples(sampleRate int) int {
	return sampleRate * frameSizeMs / 1000
}

type opusEncoder struct{}

func NewEncoder() audio.Encoder {
	return &opusEncoder{}
}

func (e *opusEncoder) Encode(pcm []int16, sampleRate int) ([][]byte, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	samples := frameSamples(sampleRate)
	var frames [][]byte
	for off := 0; off < len(pcm); off += samples {
		frame := make([]int16, samples)
		copy(frame, pcm[off:min(off+samples, len(pcm))])
		packet := make([]byte, maxPacketBytes)
		n, err := enc.Encode(frame, packet)
		if err != nil {
			return nil, fmt.Errorf("encode frame: %w", err)
		}
		frames = append(frames, packet[:n])
	}
	return frames, nil
}

type opusDecoder struct{}

func NewDecoder() audio.Decoder {
	return &opusDecoder{}
}

func (d *opusDecoder) Decode(frames [][]byte, sampleRate int) ([]int16, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	pcm := make([]int16, 0, len(frames)*frameSamples(sampleRate))
	buf := make([]int16, maxFrameSamples)
	for _, frame := range frames {
		n, err := dec.Decode(frame, buf)
		if err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		pcm = append(pcm, buf[:n*channels]...)
	}
	return pcm, nil
}
