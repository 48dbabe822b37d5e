package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"assistant/internal/backend"
	"assistant/internal/i18n"
	"assistant/internal/logging"
	"assistant/internal/mode"

	tea "github.com/charmbracelet/bubbletea"
)

func testSnapshot() mode.Snapshot {
	return mode.Snapshot{
		Current: backend.Remote,
		Remote:  mode.Handle{Kind: backend.Remote, Model: "gemini-1.5-flash", Health: mode.Available},
		Local:   mode.Handle{Kind: backend.Local, Model: "mistral:7b", Health: mode.Unknown},
	}
}

func newTestApp(ask AskFunc) App {
	app := NewApp(Options{
		SessionID: "console",
		Ask:       ask,
		Snapshot:  testSnapshot,
		I18n:      i18n.New("en"),
	})
	app.width, app.height = 100, 30
	app.relayout()
	return app
}

func typeText(t *testing.T, app App, text string) App {
	t.Helper()
	m, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m.(App)
}

func TestAppUpdate_PanelSwitchAndQuit(t *testing.T) {
	app := newTestApp(nil)

	m, _ := app.Update(tea.KeyMsg{Type: tea.KeyTab})
	updated := m.(App)
	if updated.activePanel != PanelLogs {
		t.Fatalf("expected logs panel, got %v", updated.activePanel)
	}
	m, _ = updated.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.(App).activePanel != PanelChat {
		t.Fatal("tab should wrap back to chat")
	}

	_, cmd := updated.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("ctrl+c should quit")
	}
}

func TestAppUpdate_SubmitAndReply(t *testing.T) {
	var asked string
	app := newTestApp(func(ctx context.Context, text string) (string, error) {
		asked = text
		return "Found 1 files:", nil
	})
	app = typeText(t, app, "  search for resume ")

	m, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	updated := m.(App)
	if !updated.waiting {
		t.Fatal("expected waiting after submit")
	}
	if updated.input.Value() != "" {
		t.Fatalf("input should be cleared, got %q", updated.input.Value())
	}
	if !strings.Contains(strings.Join(updated.chatLines, "\n"), "search for resume") {
		t.Fatalf("user line missing: %q", updated.chatLines)
	}
	if cmd == nil {
		t.Fatal("submit should return the ask command")
	}
	msg := cmd()
	if asked != "search for resume" {
		t.Fatalf("asked %q", asked)
	}

	m, _ = updated.Update(msg)
	updated = m.(App)
	if updated.waiting {
		t.Fatal("reply should clear waiting")
	}
	if !strings.Contains(strings.Join(updated.chatLines, "\n"), "Found 1 files:") {
		t.Fatalf("reply missing: %q", updated.chatLines)
	}
}

func TestAppUpdate_EmptyAndQuitCommand(t *testing.T) {
	app := newTestApp(func(ctx context.Context, text string) (string, error) {
		t.Fatal("nothing should be asked")
		return "", nil
	})
	m, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || len(m.(App).chatLines) != 0 {
		t.Fatal("empty input should be ignored")
	}

	app = typeText(t, m.(App), "/quit")
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("/quit should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("/quit should quit")
	}
}

func TestAppUpdate_ErrorsAndBusy(t *testing.T) {
	app := newTestApp(nil)

	m, _ := app.Update(ReplyMsg{Err: errors.New("boom")})
	updated := m.(App)
	if updated.lastError != "boom" {
		t.Fatalf("unexpected last error: %q", updated.lastError)
	}

	m, _ = updated.Update(ReplyMsg{Text: "I'm still working on your previous request.", Err: errors.New("session busy")})
	updated = m.(App)
	if !strings.Contains(strings.Join(updated.chatLines, "\n"), "still working") {
		t.Fatal("busy text should be shown as a reply")
	}
}

func TestAppUpdate_LogsAndSnapshot(t *testing.T) {
	app := newTestApp(nil)
	m, _ := app.Update(LogMsg{Entry: logging.Entry{Time: time.Now(), Level: "warn", Component: "mode", Message: "probe failed"}})
	updated := m.(App)
	if len(updated.logLines) != 1 || !strings.Contains(updated.logLines[0], "[mode] probe failed") {
		t.Fatalf("log lines: %q", updated.logLines)
	}

	snap := testSnapshot()
	snap.Current = backend.Local
	snap.Remote.Health = mode.Unavailable
	m, _ = updated.Update(SnapshotMsg{Snapshot: snap})
	updated = m.(App)
	view := updated.View()
	for _, want := range []string{"offline (local)", "unavailable", "mistral:7b", "console"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q", want)
		}
	}
}

func TestAppUpdate_ClearScreen(t *testing.T) {
	app := newTestApp(nil)
	m, _ := app.Update(ReplyMsg{Text: "hello"})
	m, _ = m.(App).Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	if len(m.(App).chatLines) != 0 {
		t.Fatal("ctrl+l should clear the chat")
	}
}

func TestAppView_Initializing(t *testing.T) {
	app := NewApp(Options{I18n: i18n.New("en")})
	if app.View() != "Initializing..." {
		t.Fatalf("view before size: %q", app.View())
	}
}
