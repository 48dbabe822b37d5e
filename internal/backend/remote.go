package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"assistant/internal/chat"

	openai "github.com/sashabaranov/go-openai"
)

// RemoteConfig 远端 OpenAI 兼容后端配置
// RemoteConfig configures the OpenAI-compatible remote backend
type RemoteConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	TimeoutMS  int
	MaxRetries int
}

// RemoteBackend 使用 go-openai SDK 的在线后端
// RemoteBackend is the online backend built on the go-openai SDK
type RemoteBackend struct {
	client *openai.Client
	cfg    RemoteConfig
}

// NewRemote 创建在线后端；MaxRetries 为 0 时不在后端内部重试
// NewRemote creates the online backend; MaxRetries of 0 disables in-backend retries
func NewRemote(cfg RemoteConfig) *RemoteBackend {
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	config.HTTPClient = httpClient

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &RemoteBackend{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
	}
}

func (r *RemoteBackend) Kind() Kind    { return Remote }
func (r *RemoteBackend) Name() string  { return "openai" }
func (r *RemoteBackend) Model() string { return r.cfg.Model }

// Probe 通过 ListModels 检查服务可达
// Probe checks reachability via ListModels
func (r *RemoteBackend) Probe(ctx context.Context) error {
	if _, err := r.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (r *RemoteBackend) Complete(ctx context.Context, req Request) (string, error) {
	messages := convertMessages(BuildMessages(req))

	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(150*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    r.cfg.Model,
			Messages: messages,
		})
		if err == nil {
			return parseCompletion(resp)
		}
		lastErr = err

		// 不可重试的错误 / Non-retryable errors
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
	}
	if r.cfg.MaxRetries == 0 {
		return "", fmt.Errorf("remote chat: %w", lastErr)
	}
	return "", fmt.Errorf("remote chat failed after %d retries: %w", r.cfg.MaxRetries, lastErr)
}

func parseCompletion(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("remote chat: no choices: %w", ErrMalformed)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("remote chat: empty content: %w", ErrMalformed)
	}
	return content, nil
}

func convertMessages(messages []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}
