//go:build !opus

package audio

import (
	"encoding/binary"

	"github.com/foxseedlab/zadankai/internal/audio"
)

const frameSizeMs = 20

func frameSamples(sampleRate int) int {
	return sampleRate * frameSizeMs / 1000
}

type pcmEncoder struct{}

func NewEncoder() audio.Encoder {
	return &pcmEncoder{}
}

func (e *pcmEncoder) Encode(pcm []int16, sampleRate int) ([][]byte, error) {
	samples := frameSamples(sampleRate)
	var frames [][]byte
	for off := 0; off < len(pcm); off += samples {
		end := off + samples
		if end > len(pcm) {
			end = len(pcm)
		}
		frame := make([]byte, (end-off)*2)
		for i, s := range pcm[off:end] {
			binary.LittleEndian.PutUint16(frame[i*2:], uint16(s))
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

type pcmDecoder struct{}

func NewDecoder() audio.Decoder {
	return &pcmDecoder{}
}

func (d *pcmDecoder) Decode(frames [][]byte, _ int) ([]int16, error) {
	var total int
	for _, f := range frames {
		total += len(f) / 2
	}
	pcm := make([]int16, 0, total)
	for _, frame := range frames {
		for i := 0; i+1 < len(frame); i += 2 {
			pcm = append(pcm, int16(binary.LittleEndian.Uint16(frame[i:i+2])))
		}
	}
	return pcm, nil
}
