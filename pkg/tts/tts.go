// Package tts converts assistant replies to audio for the voice
// gateway. Providers return complete audio buffers; the gateway treats
// synthesis failure as "no audio" rather than an error, so callers that
// need that behavior should use SynthesizeBestEffort.
package tts

import (
	"context"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding.
	Format AudioFormat

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request round-trip in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// Encoding represents audio output formats, named after the ElevenLabs
// output format options.
type Encoding string

const (
	EncodingMP3   Encoding = "mp3_44100_128"
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM24 Encoding = "pcm_24000"
)

// VoiceSettings controls voice characteristics for providers that
// support them.
type VoiceSettings struct {
	// Stability controls voice consistency (0.0-1.0).
	Stability float64

	// SimilarityBoost controls how closely the voice matches the
	// original sample (0.0-1.0).
	SimilarityBoost float64
}

// DefaultVoiceSettings returns the settings used for patient-facing
// speech: steady and close to the reference voice.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
	}
}

// SynthesizeBestEffort returns the synthesized audio, or empty bytes
// when synthesis fails. The voice protocol delivers an empty audio
// payload instead of dropping the connection.
func SynthesizeBestEffort(ctx context.Context, p Provider, text string) []byte {
	if p == nil {
		return nil
	}
	result, err := p.Synthesize(ctx, text)
	if err != nil {
		return nil
	}
	return result.Audio
}

// sampleRateFromEncoding extracts the sample rate from an encoding.
func sampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM24:
		return 24000
	default:
		return 44100
	}
}
