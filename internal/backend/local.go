package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"assistant/internal/chat"
)

// LocalConfig 本地 Ollama 后端配置
// LocalConfig configures the local Ollama backend
type LocalConfig struct {
	BaseURL   string
	Model     string
	TimeoutMS int
}

// LocalBackend 通过 Ollama 原生 HTTP API 调用本地模型
// LocalBackend calls a local model through the native Ollama HTTP API
type LocalBackend struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewLocal 创建离线后端
// NewLocal creates the offline backend
func NewLocal(cfg LocalConfig) *LocalBackend {
	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	return &LocalBackend{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      strings.TrimSpace(cfg.Model),
		httpClient: httpClient,
	}
}

func (l *LocalBackend) Kind() Kind    { return Local }
func (l *LocalBackend) Name() string  { return "ollama" }
func (l *LocalBackend) Model() string { return l.model }

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []chat.Message `json:"messages"`
	Stream   bool           `json:"stream"`
}

type ollamaChatResponse struct {
	Model     string       `json:"model"`
	Message   chat.Message `json:"message"`
	Done      bool         `json:"done"`
	EvalCount int          `json:"eval_count"`
	Error     string       `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

func (l *LocalBackend) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    l.model,
		Messages: BuildMessages(req),
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama chat: %w", &StatusError{Code: resp.StatusCode, Body: string(data)})
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w: %w", ErrMalformed, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama chat: %s", out.Error)
	}
	content := strings.TrimSpace(out.Message.Content)
	if content == "" {
		return "", fmt.Errorf("ollama chat: empty message: %w", ErrMalformed)
	}
	return content, nil
}

// Probe 请求 /api/tags，并确认配置的模型已拉取
// Probe requests /api/tags and checks the configured model has been pulled
func (l *LocalBackend) Probe(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama probe: %w", &StatusError{Code: resp.StatusCode})
	}
	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode ollama tags: %w: %w", ErrMalformed, err)
	}
	if l.model == "" {
		return nil
	}
	for _, m := range tags.Models {
		if modelMatches(m.Name, l.model) || modelMatches(m.Model, l.model) {
			return nil
		}
	}
	return fmt.Errorf("ollama probe: model %q not pulled: %w", l.model, &StatusError{Code: http.StatusNotFound})
}

// modelMatches 允许省略 ":latest" 标签
// modelMatches tolerates an omitted ":latest" tag
func modelMatches(have, want string) bool {
	have = strings.TrimSpace(have)
	if have == want {
		return true
	}
	if !strings.Contains(want, ":") {
		return have == want+":latest"
	}
	return false
}
