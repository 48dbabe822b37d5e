package mode

import (
	"time"

	"assistant/internal/backend"
)

// Health 后端健康状态，仅用于状态展示，不限制后续调用
// Health is advisory backend state for reporting; it never gates later calls
type Health int

const (
	// Unknown 尚未观测到任何调用
	// Unknown means no call has been observed yet
	Unknown Health = iota
	Available
	Degraded
	Unavailable
)

func (h Health) String() string {
	switch h {
	case Available:
		return "available"
	case Degraded:
		return "degraded"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Handle 标识一个后端及其最近观测到的健康状态
// Handle identifies a backend and its last observed health
type Handle struct {
	Kind      backend.Kind
	Name      string
	Model     string
	Health    Health
	LastError string
	CheckedAt time.Time
}

// Snapshot 当前模式与两个后端健康状态的值拷贝
// Snapshot is a value copy of the current mode and both handles
type Snapshot struct {
	Current backend.Kind
	Remote  Handle
	Local   Handle
}

// Handle 返回指定后端的句柄
// Handle returns the handle for kind
func (s Snapshot) Handle(kind backend.Kind) Handle {
	if kind == backend.Local {
		return s.Local
	}
	return s.Remote
}

// Observer 接收健康状态变化与调用结果（用于指标）
// Observer receives health transitions and call outcomes (used for metrics)
type Observer interface {
	HealthChanged(kind backend.Kind, h Health)
	CallFinished(kind backend.Kind, op string, reason backend.Reason, elapsed time.Duration)
}
