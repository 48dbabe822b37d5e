package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"assistant/internal/chat"
)

// Kind 标识两个可互换的推理后端
// Kind identifies one of the two interchangeable reasoning backends
type Kind int

const (
	// Remote 远端 API 后端（在线模式）
	// Remote is the hosted API backend (online mode)
	Remote Kind = iota
	// Local 本地模型后端（离线模式）
	// Local is the locally-run model backend (offline mode)
	Local
)

func (k Kind) String() string {
	switch k {
	case Remote:
		return "remote"
	case Local:
		return "local"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ModeName 返回面向用户的模式名：online / offline
// ModeName returns the user-facing mode name: online / offline
func (k Kind) ModeName() string {
	if k == Local {
		return "offline"
	}
	return "online"
}

// Other 返回另一个后端
// Other returns the opposite backend
func (k Kind) Other() Kind {
	if k == Local {
		return Remote
	}
	return Local
}

// ParseKind 解析模式或后端名称
// ParseKind parses a mode or backend name
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online", "remote", "cloud", "api":
		return Remote, nil
	case "offline", "local", "ollama":
		return Local, nil
	default:
		return Remote, fmt.Errorf("unknown mode %q", s)
	}
}

// Request 一次补全请求
// Request is a single completion request
type Request struct {
	System  string
	History []chat.Message
	Prompt  string
}

// Backend 推理后端接口：把 prompt 变成文本补全
// Backend turns a prompt into a text completion
type Backend interface {
	// Kind 返回后端类别
	// Kind returns the backend class
	Kind() Kind

	// Name 返回实现名称（openai / ollama）
	// Name returns the implementation name (openai / ollama)
	Name() string

	// Model 返回当前模型标识
	// Model returns the configured model identifier
	Model() string

	// Complete 发送请求并返回完整文本
	// Complete sends the request and returns the full text
	Complete(ctx context.Context, req Request) (string, error)

	// Probe 轻量级存活探测
	// Probe is a lightweight liveness check
	Probe(ctx context.Context) error
}

// ErrMalformed 后端返回了无法使用的响应
// ErrMalformed reports an unusable backend response
var ErrMalformed = errors.New("malformed backend response")

// StatusError 后端返回的非 2xx 状态
// StatusError is a non-2xx status returned by a backend
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, body)
}

// BuildMessages 组装发送给模型的消息：system、历史、当前 prompt
// BuildMessages assembles the messages sent to a model: system, history, prompt
func BuildMessages(req Request) []chat.Message {
	out := make([]chat.Message, 0, len(req.History)+2)
	if s := strings.TrimSpace(req.System); s != "" {
		out = append(out, chat.System(s))
	}
	for _, m := range req.History {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, m)
	}
	out = append(out, chat.User(req.Prompt))
	return out
}
