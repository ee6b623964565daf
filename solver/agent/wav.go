package agent

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

var ErrNotWAV = errors.New("not a PCM wav file")

// DecodeWAV reads PCM audio as mono float32 samples in [-1, 1], averaging
// channels, and returns them with the sample rate.
func DecodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, 0, ErrNotWAV
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	channels := 1
	rate := int(d.SampleRate)
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		rate = buf.Format.SampleRate
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(d.BitDepth)
	}
	if depth <= 0 || depth > 32 {
		return nil, 0, fmt.Errorf("%w: bit depth %d", ErrNotWAV, depth)
	}
	scale := float32(int64(1) << uint(depth-1))
	// 8-bit PCM is unsigned with silence at 128.
	offset := 0
	if depth == 8 {
		offset = 128
	}
	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c] - offset
		}
		out[i] = float32(sum) / float32(channels) / scale
	}
	return out, rate, nil
}
