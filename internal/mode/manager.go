package mode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"assistant/internal/backend"

	"github.com/rs/zerolog"
)

// Options Mode Manager 配置
// Options configures a Manager
type Options struct {
	Default       backend.Kind
	CallTimeout   time.Duration
	ProbeTimeout  time.Duration
	SlowThreshold time.Duration
	Logger        zerolog.Logger
	Observer      Observer
}

// Reply 一次成功调用的结果
// Reply is the result of a successful call
type Reply struct {
	Text    string
	Backend backend.Kind
	Elapsed time.Duration
}

// Manager 持有当前激活的后端与两个后端的健康状态
// Manager owns the active backend and the health of both backends
type Manager struct {
	mu       sync.RWMutex
	current  backend.Kind
	backends map[backend.Kind]backend.Backend
	handles  map[backend.Kind]Handle

	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New 创建 Manager；需要同时提供 Remote 与 Local 两个后端
// New creates a Manager; both a Remote and a Local backend are required
func New(backends []backend.Backend, opts Options) (*Manager, error) {
	m := &Manager{
		current:  opts.Default,
		backends: make(map[backend.Kind]backend.Backend, 2),
		handles:  make(map[backend.Kind]Handle, 2),
		opts:     opts,
		logger:   opts.Logger.With().Str("component", "mode").Logger(),
		now:      time.Now,
	}
	for _, b := range backends {
		if b == nil {
			continue
		}
		if _, dup := m.backends[b.Kind()]; dup {
			return nil, fmt.Errorf("duplicate %s backend", b.Kind())
		}
		m.backends[b.Kind()] = b
		m.handles[b.Kind()] = Handle{Kind: b.Kind(), Name: b.Name(), Model: b.Model()}
	}
	for _, k := range []backend.Kind{backend.Remote, backend.Local} {
		if _, ok := m.backends[k]; !ok {
			return nil, fmt.Errorf("%s backend: %w", k, ErrUnknownBackend)
		}
	}
	if _, ok := m.backends[m.current]; !ok {
		return nil, fmt.Errorf("default mode %v: %w", m.current, ErrUnknownBackend)
	}
	return m, nil
}

// Current 返回当前激活后端的句柄
// Current returns the handle of the active backend
func (m *Manager) Current() Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handles[m.current]
}

// Snapshot 返回当前模式与两个后端健康状态的拷贝
// Snapshot returns a copy of the current mode and both handles
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Current: m.current,
		Remote:  m.handles[backend.Remote],
		Local:   m.handles[backend.Local],
	}
}

// Switch 先探测目标后端，成功后才切换；失败时模式保持不变并返回 *ModeError
// Switch probes the target first and commits only on success; on failure the mode is unchanged and a *ModeError is returned
func (m *Manager) Switch(ctx context.Context, target backend.Kind) (Handle, error) {
	if _, ok := m.backends[target]; !ok {
		return m.Current(), fmt.Errorf("switch to %v: %w", target, ErrUnknownBackend)
	}
	if m.Current().Kind == target {
		return m.Current(), nil
	}

	if err := m.Probe(ctx, target); err != nil {
		reason := backend.Classify(err)
		m.logger.Warn().Str("target", target.String()).Str("reason", string(reason)).Err(err).Msg("mode switch rejected")
		return m.Current(), &ModeError{Target: target, Reason: reason, Err: err}
	}

	m.mu.Lock()
	prev := m.current
	m.current = target
	h := m.handles[target]
	m.mu.Unlock()

	m.logger.Info().Str("from", prev.String()).Str("to", target.String()).Msg("mode switched")
	return h, nil
}

// Invoke 调用当前后端；失败时只记录健康状态，不会自动切换后端
// Invoke calls the current backend; failures only update health and never switch backends
func (m *Manager) Invoke(ctx context.Context, req backend.Request) (Reply, error) {
	m.mu.RLock()
	kind := m.current
	m.mu.RUnlock()
	return m.InvokeOn(ctx, kind, req)
}

// InvokeOn 调用指定后端，语义与 Invoke 相同；供路由层的单次回退使用
// InvokeOn calls a specific backend with Invoke's semantics; used by the router's single fallback
func (m *Manager) InvokeOn(ctx context.Context, kind backend.Kind, req backend.Request) (Reply, error) {
	b, ok := m.backends[kind]
	if !ok {
		return Reply{Backend: kind}, &BackendError{Backend: kind, Reason: backend.ReasonError, Err: ErrUnknownBackend}
	}

	callCtx, cancel := withTimeout(ctx, m.opts.CallTimeout)
	defer cancel()

	start := m.now()
	text, err := b.Complete(callCtx, req)
	elapsed := m.now().Sub(start)

	if err != nil {
		reason := failureReason(ctx, callCtx, err)
		m.observeCall(kind, "invoke", reason, elapsed)
		if reason != backend.ReasonCanceled {
			m.record(kind, Unavailable, err)
		}
		m.logger.Warn().Str("backend", kind.String()).Str("reason", string(reason)).Dur("elapsed", elapsed).Err(err).Msg("backend call failed")
		return Reply{Backend: kind, Elapsed: elapsed}, &BackendError{Backend: kind, Reason: reason, Err: err}
	}

	h := Available
	if m.opts.SlowThreshold > 0 && elapsed > m.opts.SlowThreshold {
		h = Degraded
	}
	m.observeCall(kind, "invoke", "", elapsed)
	m.record(kind, h, nil)
	return Reply{Text: text, Backend: kind, Elapsed: elapsed}, nil
}

// Probe 对指定后端执行一次存活探测并记录结果
// Probe runs one liveness check against kind and records the outcome
func (m *Manager) Probe(ctx context.Context, kind backend.Kind) error {
	b, ok := m.backends[kind]
	if !ok {
		return fmt.Errorf("probe %v: %w", kind, ErrUnknownBackend)
	}
	probeCtx, cancel := withTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()

	start := m.now()
	err := b.Probe(probeCtx)
	elapsed := m.now().Sub(start)
	if err != nil {
		reason := failureReason(ctx, probeCtx, err)
		m.observeCall(kind, "probe", reason, elapsed)
		if reason != backend.ReasonCanceled {
			m.record(kind, Unavailable, err)
		}
		return err
	}
	m.observeCall(kind, "probe", "", elapsed)
	m.record(kind, Available, nil)
	return nil
}

func (m *Manager) record(kind backend.Kind, h Health, err error) {
	m.mu.Lock()
	handle := m.handles[kind]
	changed := handle.Health != h
	handle.Health = h
	handle.CheckedAt = m.now()
	handle.LastError = ""
	if err != nil {
		handle.LastError = err.Error()
	}
	m.handles[kind] = handle
	m.mu.Unlock()

	if changed {
		m.logger.Debug().Str("backend", kind.String()).Str("health", h.String()).Msg("health changed")
		if m.opts.Observer != nil {
			m.opts.Observer.HealthChanged(kind, h)
		}
	}
}

func (m *Manager) observeCall(kind backend.Kind, op string, reason backend.Reason, elapsed time.Duration) {
	if m.opts.Observer != nil {
		m.opts.Observer.CallFinished(kind, op, reason, elapsed)
	}
}

// failureReason 调用自身的截止时间到期时一律归为 timeout
// failureReason maps an expired per-call deadline to timeout regardless of the transport error
func failureReason(parent, call context.Context, err error) backend.Reason {
	if parent.Err() == nil && errors.Is(call.Err(), context.DeadlineExceeded) {
		return backend.ReasonTimeout
	}
	if errors.Is(parent.Err(), context.DeadlineExceeded) {
		return backend.ReasonTimeout
	}
	return backend.Classify(err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
