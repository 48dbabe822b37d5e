package router

import (
	"context"

	"assistant/internal/backend"
	"assistant/internal/mode"
	"assistant/internal/session"
)

// Modes 路由层使用的 Mode Manager 能力
// Modes is the slice of the mode manager the router depends on
type Modes interface {
	Current() mode.Handle
	Snapshot() mode.Snapshot
	Switch(ctx context.Context, target backend.Kind) (mode.Handle, error)
	Invoke(ctx context.Context, req backend.Request) (mode.Reply, error)
	InvokeOn(ctx context.Context, kind backend.Kind, req backend.Request) (mode.Reply, error)
}

// TurnJournal 对话轮日志的写入端
// TurnJournal is the write side of the turn journal
type TurnJournal interface {
	AppendTurn(ctx context.Context, sessionID string, turn session.Turn) error
}

// FallbackPolicy 后端失败时是否改用另一个后端重试一次
// FallbackPolicy decides whether a failed chat call is retried once on the other backend
type FallbackPolicy struct {
	Enabled bool
	// On 触发回退的失败类别；为空时使用 backend.AllReasons
	// On lists the failure classes that trigger a fallback; empty means backend.AllReasons
	On []backend.Reason
}

func (p FallbackPolicy) applies(reason backend.Reason) bool {
	if !p.Enabled || reason == backend.ReasonCanceled {
		return false
	}
	on := p.On
	if len(on) == 0 {
		on = backend.AllReasons
	}
	for _, r := range on {
		if r == reason {
			return true
		}
	}
	return false
}

// Feature 状态页中的开关项（如热键、Telegram）
// Feature is an on/off line in the status report, such as the hotkey or Telegram
type Feature struct {
	Name    string
	Enabled bool
}

type result struct {
	text    string
	backend string
}
