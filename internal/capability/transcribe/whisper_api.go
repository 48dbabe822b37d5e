package transcribe

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"assistant/internal/capability"

	openai "github.com/sashabaranov/go-openai"
)

// APIOptions 远端 Whisper 接口配置
// APIOptions configures the hosted Whisper engine
type APIOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// WhisperAPI 通过 OpenAI 兼容的 /audio/transcriptions 接口转写
// WhisperAPI transcribes through an OpenAI-compatible /audio/transcriptions endpoint
type WhisperAPI struct {
	client *openai.Client
	model  string
	ready  bool
}

// NewWhisperAPI 创建远端转写引擎
// NewWhisperAPI creates the hosted transcription engine
func NewWhisperAPI(opts APIOptions) *WhisperAPI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if strings.TrimSpace(opts.BaseURL) != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperAPI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		ready:  strings.TrimSpace(opts.APIKey) != "",
	}
}

func (w *WhisperAPI) Name() string { return "whisper-api" }

func (w *WhisperAPI) IsReady() bool { return w != nil && w.ready }

func (w *WhisperAPI) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if !w.IsReady() {
		return "", &capability.TranscriptionError{Engine: w.Name(), Err: capability.ErrNotConfigured}
	}
	if len(audio) == 0 {
		return "", &capability.TranscriptionError{Engine: w.Name(), Err: errors.New("empty audio")}
	}
	name := "audio.ogg"
	if IsWAV(audio) {
		name = "audio.wav"
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: name,
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", &capability.TranscriptionError{Engine: w.Name(), Err: err}
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", &capability.TranscriptionError{Engine: w.Name(), Err: errors.New("empty transcription")}
	}
	return text, nil
}
