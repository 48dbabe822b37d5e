package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"assistant/internal/chat"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"online", Remote, true},
		{"Remote", Remote, true},
		{" offline ", Local, true},
		{"local", Local, true},
		{"ollama", Local, true},
		{"sideways", Remote, false},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("ParseKind(%q) err=%v, ok=%v", tt.in, err, tt.ok)
		}
		if tt.ok && got != tt.want {
			t.Fatalf("ParseKind(%q)=%v, want %v", tt.in, got, tt.want)
		}
	}
	if Remote.Other() != Local || Local.Other() != Remote {
		t.Fatalf("Other() should flip the backend")
	}
	if Local.ModeName() != "offline" || Remote.ModeName() != "online" {
		t.Fatalf("unexpected mode names")
	}
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages(Request{
		System:  "be brief",
		History: []chat.Message{chat.User("hi"), chat.Assistant(""), chat.Assistant("hello")},
		Prompt:  "how are you",
	})
	if len(msgs) != 4 {
		t.Fatalf("len=%d, want 4: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != chat.RoleSystem || msgs[3].Content != "how are you" {
		t.Fatalf("unexpected order: %+v", msgs)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), ReasonTimeout},
		{"canceled", context.Canceled, ReasonCanceled},
		{"malformed", fmt.Errorf("x: %w", ErrMalformed), ReasonMalformed},
		{"5xx", &StatusError{Code: 503}, ReasonUnreachable},
		{"404", &StatusError{Code: 404}, ReasonUnreachable},
		{"504", &StatusError{Code: 504}, ReasonTimeout},
		{"401", &StatusError{Code: 401}, ReasonError},
		{"json", &json.SyntaxError{}, ReasonMalformed},
		{"other", errors.New("boom"), ReasonError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v)=%q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	local := NewLocal(LocalConfig{BaseURL: url, Model: "mistral:7b", TimeoutMS: 2000})
	err := local.Probe(context.Background())
	if err == nil {
		t.Fatalf("expected probe error against closed server")
	}
	if got := Classify(err); got != ReasonUnreachable {
		t.Fatalf("Classify=%q, want unreachable (err=%v)", got, err)
	}
}

func newOllamaServer(t *testing.T, chatHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"mistral:7b","model":"mistral:7b"},{"name":"llama3:latest"}]}`))
	})
	mux.HandleFunc("/api/chat", chatHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLocalComplete(t *testing.T) {
	var got ollamaChatRequest
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"model":"mistral:7b","message":{"role":"assistant","content":" offline answer "},"done":true}`))
	})

	local := NewLocal(LocalConfig{BaseURL: srv.URL + "/", Model: "mistral:7b"})
	out, err := local.Complete(context.Background(), Request{System: "sys", Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "offline answer" {
		t.Fatalf("out=%q", out)
	}
	if got.Stream || got.Model != "mistral:7b" || len(got.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestLocalComplete_Malformed(t *testing.T) {
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	local := NewLocal(LocalConfig{BaseURL: srv.URL, Model: "mistral:7b"})
	_, err := local.Complete(context.Background(), Request{Prompt: "hello"})
	if Classify(err) != ReasonMalformed {
		t.Fatalf("Classify=%q, want malformed (err=%v)", Classify(err), err)
	}
}

func TestLocalComplete_Timeout(t *testing.T) {
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	local := NewLocal(LocalConfig{BaseURL: srv.URL, Model: "mistral:7b"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := local.Complete(ctx, Request{Prompt: "hello"})
	if Classify(err) != ReasonTimeout {
		t.Fatalf("Classify=%q, want timeout (err=%v)", Classify(err), err)
	}
}

func TestLocalProbe(t *testing.T) {
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {})

	if err := NewLocal(LocalConfig{BaseURL: srv.URL, Model: "mistral:7b"}).Probe(context.Background()); err != nil {
		t.Fatalf("probe with pulled model: %v", err)
	}
	if err := NewLocal(LocalConfig{BaseURL: srv.URL, Model: "llama3"}).Probe(context.Background()); err != nil {
		t.Fatalf("probe should accept implicit :latest: %v", err)
	}
	err := NewLocal(LocalConfig{BaseURL: srv.URL, Model: "phi3"}).Probe(context.Background())
	if err == nil || !strings.Contains(err.Error(), "not pulled") {
		t.Fatalf("expected missing model error, got %v", err)
	}
}

func newOpenAIServer(t *testing.T, completion string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gemini-1.5-flash","object":"model","owned_by":"google"}]}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteComplete(t *testing.T) {
	srv := newOpenAIServer(t, `{"id":"c1","object":"chat.completion","model":"gemini-1.5-flash","choices":[{"index":0,"message":{"role":"assistant","content":"remote answer"},"finish_reason":"stop"}]}`)
	remote := NewRemote(RemoteConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "gemini-1.5-flash"})

	if err := remote.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	out, err := remote.Complete(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "remote answer" {
		t.Fatalf("out=%q", out)
	}
}

func TestRemoteComplete_NoChoices(t *testing.T) {
	srv := newOpenAIServer(t, `{"id":"c1","object":"chat.completion","choices":[]}`)
	remote := NewRemote(RemoteConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "m"})
	_, err := remote.Complete(context.Background(), Request{Prompt: "hi"})
	if Classify(err) != ReasonMalformed {
		t.Fatalf("Classify=%q, want malformed (err=%v)", Classify(err), err)
	}
}

func TestRemoteComplete_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	var calls atomic.Int32
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	remote := NewRemote(RemoteConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "m", MaxRetries: 1})
	_, err := remote.Complete(context.Background(), Request{Prompt: "hi"})
	if Classify(err) != ReasonUnreachable {
		t.Fatalf("Classify=%q, want unreachable (err=%v)", Classify(err), err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls=%d, want 2 with MaxRetries=1", calls.Load())
	}
}
