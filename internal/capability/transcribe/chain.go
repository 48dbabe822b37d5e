package transcribe

import (
	"context"
	"errors"

	"assistant/internal/capability"
)

// Chain 依次尝试多个转写引擎，跳过未就绪的
// Chain tries its engines in order and skips the ones that are not ready
type Chain struct {
	engines []capability.Transcriber
}

// NewChain 丢弃 nil 引擎
// NewChain drops nil engines
func NewChain(engines ...capability.Transcriber) *Chain {
	c := &Chain{}
	for _, e := range engines {
		if e != nil {
			c.engines = append(c.engines, e)
		}
	}
	return c
}

func (c *Chain) IsReady() bool {
	if c == nil {
		return false
	}
	for _, e := range c.engines {
		if e.IsReady() {
			return true
		}
	}
	return false
}

// Transcribe 返回第一个成功的结果；全部失败时返回最后一个错误
// Transcribe returns the first success, or the last error when every ready engine fails
func (c *Chain) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var errs []error
	if c != nil {
		for _, e := range c.engines {
			if !e.IsReady() {
				continue
			}
			text, err := e.Transcribe(ctx, audio)
			if err == nil {
				return text, nil
			}
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	if len(errs) == 0 {
		return "", &capability.TranscriptionError{Engine: "chain", Err: capability.ErrNotConfigured}
	}
	last := errs[len(errs)-1]
	var te *capability.TranscriptionError
	if errors.As(last, &te) {
		return "", last
	}
	return "", &capability.TranscriptionError{Engine: "chain", Err: last}
}
