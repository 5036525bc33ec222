package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

const (
	// wavBitDepth is fixed at 16 for the signed PCM WAV files that speech
	// engines accept.
	wavBitDepth = 16

	// wavFormatPCM is the WAVE_FORMAT_PCM audio format tag.
	wavFormatPCM = 1
)

// ErrInvalidWAV is returned by [DecodeWAV] when the input is not a RIFF/WAVE
// file.
var ErrInvalidWAV = errors.New("audio: not a valid WAV file")

// EncodeWAV writes buf as a mono 16-bit PCM WAV file to w. The writer must
// support seeking so that the RIFF header sizes can be patched on close.
func EncodeWAV(w io.WriteSeeker, buf Buffer) error {
	if buf.SampleRate <= 0 {
		return fmt.Errorf("audio: encode wav: invalid sample rate %d", buf.SampleRate)
	}
	enc := wav.NewEncoder(w, buf.SampleRate, wavBitDepth, 1, wavFormatPCM)
	ib := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  buf.SampleRate,
		},
		Data:           Float32ToInt(buf.Samples),
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(ib); err != nil {
		_ = enc.Close()
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: encode wav: close: %w", err)
	}
	return nil
}

// WAVBytes encodes buf as an in-memory WAV file. It is used by engines that
// upload audio when no on-disk artifact was written for the utterance.
func WAVBytes(buf Buffer) ([]byte, error) {
	fs := afero.NewMemMapFs()
	f, err := fs.Create("utterance.wav")
	if err != nil {
		return nil, fmt.Errorf("audio: wav bytes: %w", err)
	}
	if err := EncodeWAV(f, buf); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("audio: wav bytes: %w", err)
	}
	return afero.ReadFile(fs, "utterance.wav")
}

// DecodeWAV reads a PCM WAV file and returns its content as a mono float32
// buffer at the file's native sample rate. Multi-channel files are
// down-mixed by averaging.
func DecodeWAV(r io.ReadSeeker) (Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Buffer{}, ErrInvalidWAV
	}
	ib, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	channels := int(dec.NumChans)
	samples := IntToFloat32(ib.Data, int(dec.BitDepth))
	return Buffer{
		Samples:    DownmixToMono(samples, channels),
		SampleRate: int(dec.SampleRate),
	}, nil
}
