package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	whisperURL      = "https://api.openai.com/v1/audio/transcriptions"
	providerWhisper = "whisper"
)

// Config holds Whisper client configuration.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option configures the Whisper client.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the transcription endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithLanguage sets the expected spoken language.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns the defaults for voice turns: whisper-1 with an
// English language hint and a 30 second bound.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    whisperURL,
		Model:      "whisper-1",
		Language:   "en",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 100 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Whisper implements Transcriber against the OpenAI transcription API.
type Whisper struct {
	config *Config
	client *http.Client
	logger *slog.Logger
}

// NewWhisper creates a Whisper transcriber.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("stt: API key required")
	}

	return &Whisper{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger.With("component", "stt.whisper"),
	}, nil
}

// Transcribe uploads the audio as a multipart form and returns the
// transcript text.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, hint string) (string, error) {
	if hint == "" {
		hint = "audio/wav"
	}

	body, contentType, err := w.buildForm(audio, hint)
	if err != nil {
		return "", fmt.Errorf("stt: build form: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		text, retryable, err := w.post(ctx, body, contentType)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		w.logger.Warn("retrying transcription", "attempt", attempt+1, "error", err)
	}
	return "", lastErr
}

// Close releases idle connections.
func (w *Whisper) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

func (w *Whisper) post(ctx context.Context, body []byte, contentType string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", w.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("stt: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.config.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("stt: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("stt: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == 429 || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("stt [%s]: API error %d: %s", providerWhisper, resp.StatusCode, raw)
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", false, fmt.Errorf("stt: decode response: %w", err)
	}
	return decoded.Text, false, nil
}

// buildForm assembles the multipart upload: the audio file plus model
// and language fields.
func (w *Whisper) buildForm(audio []byte, hint string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", fileNameForHint(hint))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("model", w.config.Model); err != nil {
		return nil, "", err
	}
	if w.config.Language != "" {
		if err := mw.WriteField("language", w.config.Language); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func fileNameForHint(hint string) string {
	switch hint {
	case "audio/webm":
		return "utterance.webm"
	case "audio/mp3", "audio/mpeg":
		return "utterance.mp3"
	default:
		return "utterance.wav"
	}
}

var _ Transcriber = (*Whisper)(nil)
