package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assistant/internal/intent"
)

// Capability names used in errors, logs and status output.
const (
	NameFiles       = "files"
	NameMail        = "mail"
	NameTranscriber = "transcriber"
)

// ErrNotConfigured 能力未配置或依赖缺失
// ErrNotConfigured reports a capability whose configuration or dependencies are missing
var ErrNotConfigured = errors.New("not configured")

// FileEntry 一条文件搜索结果
// FileEntry is one file search hit
type FileEntry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Envelope 一封邮件的摘要
// Envelope summarizes one message
type Envelope struct {
	From    string
	Subject string
	Date    time.Time
	Snippet string
	Unread  bool
}

// FileSearcher 按文件名搜索本地文件；无匹配时返回空切片而不是错误
// FileSearcher looks up local files by name; no match is an empty slice, never an error
type FileSearcher interface {
	Search(ctx context.Context, query string) ([]FileEntry, error)
	IsReady() bool
}

// Mailbox 读取与发送邮件
// Mailbox lists and sends mail
type Mailbox interface {
	List(ctx context.Context, filter intent.EmailFilter) ([]Envelope, error)
	// Send 失败时返回 *SendError
	// Send returns a *SendError on failure
	Send(ctx context.Context, recipient, subject, body string) error
	IsReady() bool
}

// Transcriber 把音频转成文字
// Transcriber turns recorded audio into text
type Transcriber interface {
	// Transcribe 失败时返回 *TranscriptionError
	// Transcribe returns a *TranscriptionError on failure
	Transcribe(ctx context.Context, audio []byte) (string, error)
	IsReady() bool
}

// AdapterError 能力适配器的通用错误
// AdapterError is the generic capability adapter failure
type AdapterError struct {
	Capability string
	Op         string
	Err        error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Capability, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// SendError 邮件发送失败
// SendError is a failed mail delivery
type SendError struct {
	Recipient string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send mail to %s: %v", e.Recipient, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// TranscriptionError 转写失败
// TranscriptionError is a failed transcription
type TranscriptionError struct {
	Engine string
	Err    error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription (%s): %v", e.Engine, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// IsReady nil 安全的就绪检查
// IsReady is a nil-safe readiness check
func IsReady(c interface{ IsReady() bool }) bool {
	if c == nil {
		return false
	}
	return c.IsReady()
}
