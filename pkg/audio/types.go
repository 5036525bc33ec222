// Package audio defines the mono audio segment that flows through the
// recognition pipeline, sample format conversions, WAV encoding and the
// ephemeral on-disk artifact store used by file-based speech engines.
//
// Audio is carried as float32 samples in the range [-1, 1]. Engines that need
// 16-bit PCM or a WAV container convert on demand with [Buffer.PCM16] or
// [EncodeWAV].
package audio

import (
	"math"
	"time"
)

// DefaultSampleRate is the sample rate most speech engines expect.
const DefaultSampleRate = 16000

// Buffer is a fixed-length mono audio segment. A Buffer is created fresh for
// every capture and owned by the iteration that produced it.
type Buffer struct {
	// Samples holds mono float32 samples in the range [-1, 1].
	Samples []float32

	// SampleRate in Hz (e.g. 16000).
	SampleRate int
}

// Len returns the number of samples.
func (b Buffer) Len() int { return len(b.Samples) }

// Duration returns the playback length of the buffer. Returns 0 when the
// sample rate is not positive.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// RMS returns the root-mean-square energy of the buffer in the same units as
// the samples (0 for silence, around 0.7 for a full-scale sine).
func (b Buffer) RMS() float64 {
	if len(b.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b.Samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(b.Samples)))
}

// PCM16 returns the samples as 16-bit signed little-endian PCM. Samples
// outside [-1, 1] are clamped.
func (b Buffer) PCM16() []byte {
	return Float32ToPCM16(b.Samples)
}

// SamplesForDuration returns how many samples make up d at sampleRate.
func SamplesForDuration(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}
