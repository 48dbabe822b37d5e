package storage

import (
	"context"

	"assistant/internal/session"
)

// Journal 对话轮日志接口；内存中的会话表是权威状态，日志只用于重建与审计
// Journal records turns; the in-memory registry is authoritative and the journal only rebuilds and audits it
type Journal interface {
	// Session 操作 / Session operations
	EnsureSession(ctx context.Context, id string, origin session.Origin) error
	ListSessions(ctx context.Context) ([]SessionMeta, error)

	// Turn 操作 / Turn operations
	AppendTurn(ctx context.Context, sessionID string, turn session.Turn) error
	LoadTurns(ctx context.Context, sessionID string, limit int) ([]session.Turn, error)

	// 生命周期 / Lifecycle
	Close() error
}
