package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"assistant/internal/capability"
)

var wavHeader = []byte("RIFF\x24\x00\x00\x00WAVEfmt ")

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// fakeWhisper 按 whisper.cpp 的参数约定写出 <of>.txt
const fakeWhisper = `
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -of) out="$2"; shift ;;
  esac
  shift
done
printf '  hello   from\nwhisper \n' > "$out.txt"
`

func newCLI(t *testing.T, script string, ffmpeg string) *WhisperCLI {
	t.Helper()
	dir := t.TempDir()
	exe := writeScript(t, dir, "whisper", script)
	model := filepath.Join(dir, "ggml-base.en.bin")
	if err := os.WriteFile(model, []byte("model"), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewWhisperCLI(CLIOptions{Executable: exe, Model: model, Threads: 2, FFmpeg: ffmpeg})
}

func TestWhisperCLI_Transcribe(t *testing.T) {
	w := newCLI(t, fakeWhisper, "")
	if !w.IsReady() {
		t.Fatal("expected ready")
	}
	got, err := w.Transcribe(context.Background(), wavHeader)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hello from whisper" {
		t.Fatalf("got %q", got)
	}
}

func TestWhisperCLI_NonWAVNeedsFFmpeg(t *testing.T) {
	w := newCLI(t, fakeWhisper, "")
	_, err := w.Transcribe(context.Background(), []byte("OggS...."))
	var te *capability.TranscriptionError
	if !errors.As(err, &te) || !strings.Contains(err.Error(), "ffmpeg") {
		t.Fatalf("expected ffmpeg TranscriptionError, got %v", err)
	}
}

func TestWhisperCLI_ConvertsWithFFmpeg(t *testing.T) {
	ffmpeg := writeScript(t, t.TempDir(), "ffmpeg", `
for last; do :; done
printf 'RIFF0000WAVE' > "$last"
`)
	w := newCLI(t, fakeWhisper, ffmpeg)
	got, err := w.Transcribe(context.Background(), []byte("OggS voice note"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hello from whisper" {
		t.Fatalf("got %q", got)
	}
}

func TestWhisperCLI_CommandFailure(t *testing.T) {
	w := newCLI(t, "echo 'model load failed' >&2\nexit 3\n", "")
	_, err := w.Transcribe(context.Background(), wavHeader)
	var te *capability.TranscriptionError
	if !errors.As(err, &te) || te.Engine != "whisper-cli" {
		t.Fatalf("expected whisper-cli TranscriptionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "model load failed") {
		t.Fatalf("stderr should be surfaced: %v", err)
	}
}

func TestWhisperCLI_NotReady(t *testing.T) {
	w := NewWhisperCLI(CLIOptions{Executable: "/nonexistent/whisper", Model: "/nonexistent/model"})
	if w.IsReady() {
		t.Fatal("missing executable should not be ready")
	}
	if _, err := w.Transcribe(context.Background(), wavHeader); !errors.Is(err, capability.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestIsWAV(t *testing.T) {
	if !IsWAV(wavHeader) || IsWAV([]byte("OggS")) || IsWAV(nil) {
		t.Fatal("IsWAV misclassified input")
	}
}

func TestWhisperAPI_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "audio.wav" || len(data) != len(wavHeader) {
			http.Error(w, "unexpected upload", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " remote words "})
	}))
	defer srv.Close()

	w := NewWhisperAPI(APIOptions{BaseURL: srv.URL + "/v1", APIKey: "k"})
	got, err := w.Transcribe(context.Background(), wavHeader)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "remote words" {
		t.Fatalf("got %q", got)
	}
	if NewWhisperAPI(APIOptions{}).IsReady() {
		t.Fatal("no API key should not be ready")
	}
}

type stubEngine struct {
	ready bool
	text  string
	err   error
	calls int
}

func (s *stubEngine) IsReady() bool { return s.ready }

func (s *stubEngine) Transcribe(ctx context.Context, audio []byte) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestChain(t *testing.T) {
	unready := &stubEngine{}
	failing := &stubEngine{ready: true, err: &capability.TranscriptionError{Engine: "a", Err: errors.New("boom")}}
	working := &stubEngine{ready: true, text: "ok"}

	got, err := NewChain(unready, failing, working).Transcribe(context.Background(), wavHeader)
	if err != nil || got != "ok" {
		t.Fatalf("got %q, %v", got, err)
	}
	if unready.calls != 0 || failing.calls != 1 {
		t.Fatalf("unexpected calls: unready=%d failing=%d", unready.calls, failing.calls)
	}

	_, err = NewChain(unready, nil).Transcribe(context.Background(), wavHeader)
	if !errors.Is(err, capability.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if NewChain(unready).IsReady() || !NewChain(unready, working).IsReady() {
		t.Fatal("chain readiness should follow its engines")
	}

	_, err = NewChain(failing).Transcribe(context.Background(), wavHeader)
	var te *capability.TranscriptionError
	if !errors.As(err, &te) || te.Engine != "a" {
		t.Fatalf("expected the engine's own error, got %v", err)
	}
}
