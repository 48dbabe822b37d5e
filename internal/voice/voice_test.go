package voice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"assistant/internal/capability"
	"assistant/internal/mux"
	"assistant/internal/session"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedRecorder 在 release 关闭或 ctx 结束前阻塞
type gatedRecorder struct {
	started chan struct{}
	release chan struct{}
	err     error
}

func newGatedRecorder() *gatedRecorder {
	return &gatedRecorder{started: make(chan struct{}, 4), release: make(chan struct{})}
}

func (r *gatedRecorder) Record(ctx context.Context, d time.Duration) ([]byte, error) {
	r.started <- struct{}{}
	select {
	case <-r.release:
		return []byte("RIFF....WAVE"), r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeTranscriber struct {
	ready   bool
	text    string
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeTranscriber) IsReady() bool { return f.ready }

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	return f.text, f.err
}

func TestCapture_Trigger(t *testing.T) {
	rec := newGatedRecorder()
	close(rec.release)
	c := NewCapture(rec, &fakeTranscriber{ready: true, text: "hello"}, 0, zerolog.Nop())

	assert.Equal(t, DefaultDuration, c.Duration())
	got, err := c.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.False(t, c.Active())
}

func TestCapture_NotReady(t *testing.T) {
	c := NewCapture(newGatedRecorder(), &fakeTranscriber{}, time.Second, zerolog.Nop())
	_, err := c.Trigger(context.Background())
	assert.ErrorIs(t, err, capability.ErrNotConfigured)
}

func TestCapture_SecondTriggerIsRejected(t *testing.T) {
	rec := newGatedRecorder()
	c := NewCapture(rec, &fakeTranscriber{ready: true, text: "x"}, time.Second, zerolog.Nop())

	errc := make(chan error, 1)
	go func() {
		_, err := c.Trigger(context.Background())
		errc <- err
	}()
	<-rec.started

	_, err := c.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrCaptureActive)

	close(rec.release)
	assert.NoError(t, <-errc)
}

func TestCapture_CancelBeforeTranscription(t *testing.T) {
	rec := newGatedRecorder()
	c := NewCapture(rec, &fakeTranscriber{ready: true, text: "x"}, time.Second, zerolog.Nop())
	assert.False(t, c.Cancel(), "nothing to cancel yet")

	errc := make(chan error, 1)
	go func() {
		_, err := c.Trigger(context.Background())
		errc <- err
	}()
	<-rec.started

	assert.True(t, c.Cancel())
	assert.False(t, c.Cancel(), "second cancel is a no-op")
	assert.ErrorIs(t, <-errc, ErrCancelled)
	assert.False(t, c.Active())
}

func TestCapture_CancelDuringTranscriptionIsIgnored(t *testing.T) {
	rec := newGatedRecorder()
	close(rec.release)
	tr := &fakeTranscriber{ready: true, text: "kept", started: make(chan struct{}, 1), release: make(chan struct{})}
	c := NewCapture(rec, tr, time.Second, zerolog.Nop())

	type out struct {
		text string
		err  error
	}
	res := make(chan out, 1)
	go func() {
		text, err := c.Trigger(context.Background())
		res <- out{text, err}
	}()
	<-tr.started

	assert.False(t, c.Cancel())
	close(tr.release)
	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, "kept", r.text)
}

func TestCapture_RecorderError(t *testing.T) {
	rec := newGatedRecorder()
	rec.err = errors.New("no input device")
	close(rec.release)
	c := NewCapture(rec, &fakeTranscriber{ready: true}, time.Second, zerolog.Nop())

	_, err := c.Trigger(context.Background())
	assert.ErrorContains(t, err, "no input device")
}

func TestCommandRecorder(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "rec")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nprintf 'RIFF%s' \"$2\"\n"), 0o755))

	r := NewCommandRecorder(script + " -d {seconds}")
	audio, err := r.Record(context.Background(), 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "RIFF3", string(audio))

	assert.Equal(t, DefaultRecordCommand, NewCommandRecorder(" ").Command)
	assert.Contains(t, NewCommandRecorder("").args(10*time.Second), "10")
}

func TestCommandRecorder_Failure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "rec")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'device busy' >&2\nexit 1\n"), 0o755))

	_, err := NewCommandRecorder(script).Record(context.Background(), time.Second)
	assert.ErrorContains(t, err, "device busy")
}

type fakeSubmitter struct {
	mu     sync.Mutex
	events []mux.Event
}

func (f *fakeSubmitter) Submit(ev mux.Event) error {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	if ev.Reply != nil {
		ev.Reply("reply to " + ev.Text)
	}
	return nil
}

func (f *fakeSubmitter) Ask(ctx context.Context, id, text string, origin session.Origin) (string, error) {
	return "", errors.New("not used")
}

func TestHotkey_SubmitsTranscript(t *testing.T) {
	rec := newGatedRecorder()
	close(rec.release)
	c := NewCapture(rec, &fakeTranscriber{ready: true, text: " what's the weather "}, time.Second, zerolog.Nop())
	h := NewHotkey(c, zerolog.Nop())
	replies := make(chan string, 1)
	h.OnReply = func(transcript, reply string) { replies <- transcript + " => " + reply }

	sub := &fakeSubmitter{}
	sigs := make(chan os.Signal, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.serve(ctx, sub, sigs) }()

	sigs <- syscall.SIGUSR1
	select {
	case got := <-replies:
		assert.Equal(t, "what's the weather => reply to what's the weather", got)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
	}
	cancel()
	require.NoError(t, <-done)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	require.Len(t, sub.events, 1)
	assert.Equal(t, HotkeySession, sub.events[0].SessionID)
	assert.Equal(t, session.OriginHotkey, sub.events[0].Origin)
	assert.Equal(t, "hotkey", h.Name())
}

func TestHotkey_CancelSignal(t *testing.T) {
	rec := newGatedRecorder()
	c := NewCapture(rec, &fakeTranscriber{ready: true, text: "x"}, time.Second, zerolog.Nop())
	h := NewHotkey(c, zerolog.Nop())
	sub := &fakeSubmitter{}

	sigs := make(chan os.Signal, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.serve(ctx, sub, sigs) }()

	sigs <- syscall.SIGUSR1
	<-rec.started
	sigs <- syscall.SIGUSR2
	assert.Eventually(t, func() bool { return !c.Active() }, 5*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Empty(t, sub.events)
}
