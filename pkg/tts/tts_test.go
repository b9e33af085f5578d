package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewElevenLabsRequiresCredentials(t *testing.T) {
	if _, err := NewElevenLabs(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
	if _, err := NewElevenLabs(WithAPIKey("key")); !errors.Is(err, ErrNoVoiceID) {
		t.Errorf("expected ErrNoVoiceID, got %v", err)
	}
}

func TestElevenLabsSynthesize(t *testing.T) {
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/voice-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "key" {
			t.Error("missing API key header")
		}
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	p, err := NewElevenLabs(
		WithAPIKey("key"),
		WithVoice("voice-1"),
		WithBaseURL(srv.URL),
	)
	if err != nil {
		t.Fatalf("NewElevenLabs failed: %v", err)
	}
	defer p.Close()

	result, err := p.Synthesize(context.Background(), "Take your medication with food")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(result.Audio) != "mp3-bytes" {
		t.Errorf("unexpected audio: %q", result.Audio)
	}
	if result.Format.Encoding != EncodingMP3 {
		t.Errorf("expected MP3 output, got %s", result.Format.Encoding)
	}

	if gotPayload["model_id"] != ModelMonolingualV1 {
		t.Errorf("expected default model %s, got %v", ModelMonolingualV1, gotPayload["model_id"])
	}
	settings, _ := gotPayload["voice_settings"].(map[string]interface{})
	if settings["stability"] != 0.5 || settings["similarity_boost"] != 0.75 {
		t.Errorf("unexpected voice settings: %v", settings)
	}
}

func TestElevenLabsRetryOnServerError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	p, err := NewElevenLabs(
		WithAPIKey("key"),
		WithVoice("voice-1"),
		WithBaseURL(srv.URL),
		WithRetry(3, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewElevenLabs failed: %v", err)
	}

	result, err := p.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize failed after retries: %v", err)
	}
	if string(result.Audio) != "ok" {
		t.Errorf("unexpected audio: %q", result.Audio)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestElevenLabsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"detail": map[string]interface{}{
				"message": "Invalid API key",
				"status":  "invalid_api_key",
			},
		})
	}))
	defer srv.Close()

	p, _ := NewElevenLabs(WithAPIKey("bad"), WithVoice("voice-1"), WithBaseURL(srv.URL))

	_, err := p.Synthesize(context.Background(), "hello")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsUnauthorized() || apiErr.Message != "Invalid API key" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestOpenAISynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["voice"] != VoiceShimmer {
			t.Errorf("expected default voice, got %v", payload["voice"])
		}
		w.Write([]byte("openai-mp3"))
	}))
	defer srv.Close()

	p, err := NewOpenAI(WithAPIKey("key"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewOpenAI failed: %v", err)
	}

	result, err := p.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(result.Audio) != "openai-mp3" {
		t.Errorf("unexpected audio: %q", result.Audio)
	}
}

func TestFallbackUsesSecondProvider(t *testing.T) {
	broken := WithError(WrapError("elevenlabs", ErrProviderUnavailable))
	working := NewMock()

	chain, err := NewFallback(nil, broken, working)
	if err != nil {
		t.Fatalf("NewFallback failed: %v", err)
	}

	result, err := chain.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(result.Audio) == 0 {
		t.Error("expected audio from fallback provider")
	}
	if working.CallCount("Synthesize") != 1 {
		t.Errorf("expected fallback provider call, got %d", working.CallCount("Synthesize"))
	}
}

func TestSynthesizeBestEffort(t *testing.T) {
	if audio := SynthesizeBestEffort(context.Background(), NewMock(), "hi"); len(audio) == 0 {
		t.Error("expected audio from healthy provider")
	}

	broken := WithError(WrapError("mock", ErrProviderUnavailable))
	if audio := SynthesizeBestEffort(context.Background(), broken, "hi"); audio != nil {
		t.Errorf("expected nil audio on failure, got %d bytes", len(audio))
	}
}
