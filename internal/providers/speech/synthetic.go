package speech

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
)

const (
	syntheticSampleRate = 8000
	// samples of silence per word of input
	syntheticSamplesPerWord = syntheticSampleRate / 4
	syntheticMaxSamples     = syntheticSampleRate * 60
)

// Synthetic produces silent WAV clips sized to the input text. It keeps the
// pipeline usable offline when no speech credentials are configured.
type Synthetic struct{}

func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

func (s *Synthetic) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := len(strings.Fields(req.Text))
	if words == 0 {
		return nil, errors.New("synthetic: text is required")
	}
	samples := words * syntheticSamplesPerWord
	if samples > syntheticMaxSamples {
		samples = syntheticMaxSamples
	}
	return &Audio{Data: silentWAV(samples), ContentType: "audio/wav", Extension: "wav"}, nil
}

// silentWAV encodes 8-bit mono PCM silence.
func silentWAV(samples int) []byte {
	buf := make([]byte, 44+samples)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+samples))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], syntheticSampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], syntheticSampleRate)
	binary.LittleEndian.PutUint16(buf[32:34], 1)
	binary.LittleEndian.PutUint16(buf[34:36], 8)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(samples))
	for i := 44; i < len(buf); i++ {
		buf[i] = 0x80
	}
	return buf
}

var _ Synthesizer = (*Synthetic)(nil)
