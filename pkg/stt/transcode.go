package stt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Transcoder converts browser audio into a canonical encoding before
// transcription. Conversion is best-effort: callers fall back to the
// original bytes when it fails.
type Transcoder interface {
	Convert(ctx context.Context, audio []byte) ([]byte, error)
}

// FFmpeg transcodes via the ffmpeg binary: 16kHz mono PCM WAV, which
// the transcription service handles most reliably.
type FFmpeg struct {
	// Binary is the ffmpeg executable, "ffmpeg" by default.
	Binary string

	// Timeout bounds one conversion, 10 seconds by default.
	Timeout time.Duration

	Logger *slog.Logger
}

// NewFFmpeg creates a transcoder with defaults.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{
		Binary:  "ffmpeg",
		Timeout: 10 * time.Second,
		Logger:  slog.Default().With("component", "stt.ffmpeg"),
	}
}

// Convert pipes the audio through ffmpeg. The input container is
// auto-detected from the stream.
func (f *FFmpeg) Convert(ctx context.Context, audio []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.Binary,
		"-i", "pipe:0",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-f", "wav",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(audio)

	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("stt: ffmpeg: %w: %s", err, lastLine(errOut.Bytes()))
	}
	if out.Len() < MinAudioBytes {
		return nil, fmt.Errorf("stt: ffmpeg produced %d bytes", out.Len())
	}

	f.Logger.Debug("transcoded utterance", "in_bytes", len(audio), "out_bytes", out.Len())
	return out.Bytes(), nil
}

// ConvertBestEffort returns the converted audio and its content type,
// or the original bytes with the given hint when conversion fails.
func ConvertBestEffort(ctx context.Context, t Transcoder, audio []byte, hint string) ([]byte, string, bool) {
	if t == nil {
		return audio, hint, true
	}
	converted, err := t.Convert(ctx, audio)
	if err != nil {
		slog.Warn("audio conversion failed, using original format",
			"component", "stt", "error", err)
		return audio, hint, false
	}
	return converted, "audio/wav", true
}

func lastLine(b []byte) []byte {
	b = bytes.TrimRight(b, "\n")
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		return b[i+1:]
	}
	return b
}

var _ Transcoder = (*FFmpeg)(nil)
