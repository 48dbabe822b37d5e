// Package channel 定义聊天渠道（Telegram、Web、热键等）与输入复用器之间的接口。
// Package channel defines how chat transports hand inputs to the multiplexer.
package channel

import (
	"context"

	"assistant/internal/mux"
	"assistant/internal/session"
)

// Submitter 渠道需要的 Multiplexer 子集
// Submitter is the subset of mux.Multiplexer that sources need
type Submitter interface {
	Submit(ev mux.Event) error
	Ask(ctx context.Context, sessionID, text string, origin session.Origin) (string, error)
}

// Source 一个输入渠道；Run 阻塞直到 ctx 结束或出现不可恢复的错误
// Source is one input channel; Run blocks until ctx ends or a fatal error occurs
type Source interface {
	Name() string
	Run(ctx context.Context, sub Submitter) error
}

var _ Submitter = (*mux.Multiplexer)(nil)
