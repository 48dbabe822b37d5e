package mode

import (
	"errors"
	"fmt"

	"assistant/internal/backend"
)

// ErrUnreachable 切换目标未通过存活探测
// ErrUnreachable reports a switch target that failed its liveness probe
var ErrUnreachable = errors.New("backend unreachable")

// ErrUnknownBackend 请求了未注册的后端
// ErrUnknownBackend reports a backend kind that was never registered
var ErrUnknownBackend = errors.New("unknown backend")

// ModeError 切换被拒绝，当前模式保持不变
// ModeError reports a rejected switch; the current mode is unchanged
type ModeError struct {
	Target backend.Kind
	Reason backend.Reason
	Err    error
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("switch to %s mode: %s backend %s: %v", e.Target.ModeName(), e.Target, e.Reason, e.Err)
}

func (e *ModeError) Unwrap() []error { return []error{ErrUnreachable, e.Err} }

// BackendError 一次后端调用失败，Reason 为失败类别
// BackendError is a failed backend call; Reason is the failure class
type BackendError struct {
	Backend backend.Kind
	Reason  backend.Reason
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend failed: %s", e.Backend, e.Reason)
}

func (e *BackendError) Unwrap() error { return e.Err }
