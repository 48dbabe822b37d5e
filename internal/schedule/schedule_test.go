package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"assistant/internal/backend"
	"assistant/internal/mux"
	"assistant/internal/session"

	"github.com/rs/zerolog"
)

type recordingSubmitter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingSubmitter) Submit(ev mux.Event) error { return nil }

func (r *recordingSubmitter) Ask(ctx context.Context, sessionID, text string, origin session.Origin) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, sessionID+"|"+text+"|"+string(origin))
	if r.err != nil {
		return "", r.err
	}
	return "Mode: online\nRemote: available", nil
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type countingProber struct {
	mu    sync.Mutex
	kinds []backend.Kind
}

func (p *countingProber) Probe(ctx context.Context, kind backend.Kind) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
	if kind == backend.Remote {
		return errors.New("unreachable")
	}
	return nil
}

func (p *countingProber) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.kinds)
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("empty spec should fail")
	}
	if _, err := New(Options{StatusSpec: "every five minutes"}); err == nil {
		t.Fatal("invalid spec should fail")
	}
	for _, spec := range []string{"@every 5m", "*/10 * * * *", "@hourly"} {
		if _, err := New(Options{StatusSpec: spec}); err != nil {
			t.Fatalf("spec %q: %v", spec, err)
		}
	}
}

func TestStatusJob(t *testing.T) {
	s, err := New(Options{StatusSpec: "@every 5m", Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	sub := &recordingSubmitter{}
	s.status(context.Background(), sub)

	if len(sub.calls) != 1 || sub.calls[0] != "scheduler|status|schedule" {
		t.Fatalf("calls=%v", sub.calls)
	}
	reply, at := s.Last()
	if reply != "Mode: online\nRemote: available" || at.IsZero() {
		t.Fatalf("Last()=%q, %v", reply, at)
	}

	sub.err = mux.ErrSessionBusy
	s.status(context.Background(), sub)
	if reply, _ := s.Last(); reply != "Mode: online\nRemote: available" {
		t.Fatal("a failed run should keep the previous status")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.status(ctx, sub)
	if sub.count() != 2 {
		t.Fatalf("canceled context should skip the job, calls=%d", sub.count())
	}
}

func TestProbeJob(t *testing.T) {
	p := &countingProber{}
	s, err := New(Options{StatusSpec: "@every 5m", Prober: p, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	s.probe(context.Background())
	if len(p.kinds) != 2 || p.kinds[0] != backend.Remote || p.kinds[1] != backend.Local {
		t.Fatalf("probed=%v, want both backends even after a failure", p.kinds)
	}
}

func TestRun_FiresAndStops(t *testing.T) {
	p := &countingProber{}
	s, err := New(Options{StatusSpec: "@every 1s", Prober: p, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	sub := &recordingSubmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, sub) }()

	deadline := time.Now().Add(5 * time.Second)
	for sub.count() == 0 || p.count() == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("jobs did not fire: status=%d probe=%d", sub.count(), p.count())
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if s.Name() != "schedule" {
		t.Fatalf("Name()=%q", s.Name())
	}
}
