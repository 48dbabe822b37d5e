package mode

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"assistant/internal/backend"
)

type fakeBackend struct {
	kind     backend.Kind
	complete func(ctx context.Context, req backend.Request) (string, error)
	probeErr error

	calls  atomic.Int32
	probes atomic.Int32
}

func (f *fakeBackend) Kind() backend.Kind { return f.kind }
func (f *fakeBackend) Name() string       { return "fake-" + f.kind.String() }
func (f *fakeBackend) Model() string      { return "model-" + f.kind.String() }

func (f *fakeBackend) Complete(ctx context.Context, req backend.Request) (string, error) {
	f.calls.Add(1)
	if f.complete == nil {
		return f.kind.String() + ": " + req.Prompt, nil
	}
	return f.complete(ctx, req)
}

func (f *fakeBackend) Probe(ctx context.Context) error {
	f.probes.Add(1)
	return f.probeErr
}

func newTestManager(t *testing.T, remote, local *fakeBackend, opts Options) *Manager {
	t.Helper()
	m, err := New([]backend.Backend{remote, local}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestNew_RequiresBothBackends(t *testing.T) {
	_, err := New([]backend.Backend{&fakeBackend{kind: backend.Remote}}, Options{})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
	_, err = New([]backend.Backend{&fakeBackend{kind: backend.Remote}, &fakeBackend{kind: backend.Remote}}, Options{})
	if err == nil {
		t.Fatalf("expected duplicate backend error")
	}
}

func TestSwitch_UnreachableLeavesModeUnchanged(t *testing.T) {
	remote := &fakeBackend{kind: backend.Remote}
	local := &fakeBackend{kind: backend.Local, probeErr: errors.New("connection refused")}
	m := newTestManager(t, remote, local, Options{Default: backend.Remote})

	h, err := m.Switch(context.Background(), backend.Local)
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	var modeErr *ModeError
	if !errors.As(err, &modeErr) || modeErr.Target != backend.Local {
		t.Fatalf("expected *ModeError for local, got %#v", err)
	}
	if h.Kind != backend.Remote || m.Current().Kind != backend.Remote {
		t.Fatalf("mode changed after failed switch: handle=%v current=%v", h.Kind, m.Current().Kind)
	}
	if got := m.Snapshot().Local.Health; got != Unavailable {
		t.Fatalf("local health=%v, want unavailable", got)
	}
}

func TestSwitch_Success(t *testing.T) {
	remote := &fakeBackend{kind: backend.Remote}
	local := &fakeBackend{kind: backend.Local}
	m := newTestManager(t, remote, local, Options{Default: backend.Remote})

	h, err := m.Switch(context.Background(), backend.Local)
	if err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if h.Kind != backend.Local || m.Current().Kind != backend.Local {
		t.Fatalf("expected local mode, got %v", m.Current().Kind)
	}
	if h.Health != Available {
		t.Fatalf("probe success should mark available, got %v", h.Health)
	}

	if _, err := m.Switch(context.Background(), backend.Local); err != nil {
		t.Fatalf("switch to current mode: %v", err)
	}
	if local.probes.Load() != 1 {
		t.Fatalf("switching to the active mode should not probe again, probes=%d", local.probes.Load())
	}
}

func TestInvoke_FailureDoesNotSwitch(t *testing.T) {
	remote := &fakeBackend{kind: backend.Remote, complete: func(ctx context.Context, req backend.Request) (string, error) {
		return "", &backend.StatusError{Code: 503}
	}}
	local := &fakeBackend{kind: backend.Local}
	m := newTestManager(t, remote, local, Options{Default: backend.Remote})

	_, err := m.Invoke(context.Background(), backend.Request{Prompt: "hi"})
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BackendError, got %v", err)
	}
	if be.Backend != backend.Remote || be.Reason != backend.ReasonUnreachable {
		t.Fatalf("unexpected error: %+v", be)
	}
	if m.Current().Kind != backend.Remote {
		t.Fatalf("manager switched backends on failure")
	}
	if local.calls.Load() != 0 {
		t.Fatalf("manager called local backend: %d", local.calls.Load())
	}
	if m.Snapshot().Remote.Health != Unavailable {
		t.Fatalf("remote health=%v, want unavailable", m.Snapshot().Remote.Health)
	}
}

func TestInvoke_TimeoutMapsToTimeout(t *testing.T) {
	waitThenOpaque := func(ctx context.Context, req backend.Request) (string, error) {
		<-ctx.Done()
		return "", errors.New("transport closed")
	}
	remote := &fakeBackend{kind: backend.Remote, complete: waitThenOpaque}
	local := &fakeBackend{kind: backend.Local}
	m := newTestManager(t, remote, local, Options{Default: backend.Remote, CallTimeout: 20 * time.Millisecond})

	_, err := m.Invoke(context.Background(), backend.Request{Prompt: "hi"})
	var be *BackendError
	if !errors.As(err, &be) || be.Reason != backend.ReasonTimeout {
		t.Fatalf("expected timeout BackendError, got %v", err)
	}
}

func TestInvoke_HealthIsAdvisory(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	remote := &fakeBackend{kind: backend.Remote, complete: func(ctx context.Context, req backend.Request) (string, error) {
		if fail.Load() {
			return "", errors.New("boom")
		}
		return "ok", nil
	}}
	m := newTestManager(t, remote, &fakeBackend{kind: backend.Local}, Options{Default: backend.Remote})

	if _, err := m.Invoke(context.Background(), backend.Request{Prompt: "a"}); err == nil {
		t.Fatalf("expected failure")
	}
	fail.Store(false)
	reply, err := m.Invoke(context.Background(), backend.Request{Prompt: "b"})
	if err != nil {
		t.Fatalf("unavailable health must not gate calls: %v", err)
	}
	if reply.Text != "ok" || reply.Backend != backend.Remote {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if remote.calls.Load() != 2 {
		t.Fatalf("calls=%d, want 2", remote.calls.Load())
	}
	if h := m.Snapshot().Remote; h.Health != Available || h.LastError != "" {
		t.Fatalf("health should recover: %+v", h)
	}
}

func TestInvoke_SlowSuccessIsDegraded(t *testing.T) {
	remote := &fakeBackend{kind: backend.Remote, complete: func(ctx context.Context, req backend.Request) (string, error) {
		time.Sleep(5 * time.Millisecond)
		return "slow", nil
	}}
	m := newTestManager(t, remote, &fakeBackend{kind: backend.Local}, Options{Default: backend.Remote, SlowThreshold: time.Millisecond})
	if _, err := m.Invoke(context.Background(), backend.Request{Prompt: "x"}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := m.Snapshot().Remote.Health; got != Degraded {
		t.Fatalf("health=%v, want degraded", got)
	}
}

func TestInvoke_CanceledKeepsHealth(t *testing.T) {
	remote := &fakeBackend{kind: backend.Remote, complete: func(ctx context.Context, req backend.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	m := newTestManager(t, remote, &fakeBackend{kind: backend.Local}, Options{Default: backend.Remote})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Invoke(ctx, backend.Request{Prompt: "x"})
	var be *BackendError
	if !errors.As(err, &be) || be.Reason != backend.ReasonCanceled {
		t.Fatalf("expected canceled BackendError, got %v", err)
	}
	if got := m.Snapshot().Remote.Health; got != Unknown {
		t.Fatalf("canceled call changed health to %v", got)
	}
}

func TestSnapshot_Idempotent(t *testing.T) {
	m := newTestManager(t, &fakeBackend{kind: backend.Remote}, &fakeBackend{kind: backend.Local}, Options{Default: backend.Local})
	if _, err := m.Invoke(context.Background(), backend.Request{Prompt: "x"}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	first := m.Snapshot()
	second := m.Snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("snapshots differ without state change:\n%+v\n%+v", first, second)
	}
	if first.Current != backend.Local || first.Local.Health != Available || first.Remote.Health != Unknown {
		t.Fatalf("unexpected snapshot: %+v", first)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	changes []Health
	calls   int
}

func (o *recordingObserver) HealthChanged(kind backend.Kind, h Health) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes = append(o.changes, h)
}

func (o *recordingObserver) CallFinished(kind backend.Kind, op string, reason backend.Reason, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
}

func TestObserverSeesTransitions(t *testing.T) {
	obs := &recordingObserver{}
	m := newTestManager(t, &fakeBackend{kind: backend.Remote}, &fakeBackend{kind: backend.Local}, Options{Default: backend.Remote, Observer: obs})
	for i := 0; i < 3; i++ {
		if _, err := m.Invoke(context.Background(), backend.Request{Prompt: "x"}); err != nil {
			t.Fatalf("Invoke: %v", err)
		}
	}
	if len(obs.changes) != 1 || obs.changes[0] != Available {
		t.Fatalf("expected a single transition to available, got %v", obs.changes)
	}
	if obs.calls != 3 {
		t.Fatalf("calls=%d, want 3", obs.calls)
	}
}
