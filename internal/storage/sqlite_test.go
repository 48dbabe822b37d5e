package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"assistant/internal/intent"
	"assistant/internal/session"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLiteJournal(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteJournal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestSQLiteJournal_SessionLifecycle(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	if err := j.EnsureSession(ctx, "telegram:42", session.OriginChat); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	// 重复调用不报错 / Idempotent
	if err := j.EnsureSession(ctx, "telegram:42", session.OriginVoice); err != nil {
		t.Fatalf("EnsureSession again: %v", err)
	}
	if err := j.EnsureSession(ctx, "  ", session.OriginChat); err == nil {
		t.Fatal("expected error for empty id")
	}

	metas, err := j.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(metas) != 1 || metas[0].ID != "telegram:42" || metas[0].Origin != "chat" || metas[0].Turns != 0 {
		t.Fatalf("unexpected sessions: %+v", metas)
	}
}

func TestSQLiteJournal_AppendAndLoadTurns(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := 0; i < 5; i++ {
		turn := session.Turn{
			ID:       fmt.Sprintf("t%d", i),
			Input:    fmt.Sprintf("question %d", i),
			Origin:   session.OriginConsole,
			At:       base.Add(time.Duration(i) * time.Second),
			Action:   intent.KindChat,
			Response: fmt.Sprintf("answer %d", i),
			Backend:  "local",
		}
		if i == 4 {
			turn.Action = intent.KindFileSearch
			turn.Backend = ""
			turn.Truncated = true
		}
		if err := j.AppendTurn(ctx, "console", turn); err != nil {
			t.Fatalf("AppendTurn %d: %v", i, err)
		}
	}

	turns, err := j.LoadTurns(ctx, "console", 3)
	if err != nil {
		t.Fatalf("LoadTurns: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("LoadTurns count=%d, want 3", len(turns))
	}
	if turns[0].ID != "t2" || turns[2].ID != "t4" {
		t.Fatalf("expected newest three oldest-first, got %s..%s", turns[0].ID, turns[2].ID)
	}
	last := turns[2]
	if last.Action != intent.KindFileSearch || !last.Truncated || last.Backend != "" || last.Origin != session.OriginConsole {
		t.Fatalf("turn fields not preserved: %+v", last)
	}
	if !turns[0].At.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("At=%v, want %v", turns[0].At, base.Add(2*time.Second))
	}

	all, err := j.LoadTurns(ctx, "console", 0)
	if err != nil || len(all) != 5 {
		t.Fatalf("LoadTurns all: len=%d err=%v", len(all), err)
	}

	metas, _ := j.ListSessions(ctx)
	if len(metas) != 1 || metas[0].Turns != 5 {
		t.Fatalf("turn count not tracked: %+v", metas)
	}
}

func TestSQLiteJournal_LoadUnknownSession(t *testing.T) {
	j := newTestJournal(t)
	turns, err := j.LoadTurns(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("LoadTurns: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected no turns, got %d", len(turns))
	}
}

func TestSQLiteJournal_ExportJSONL(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	_ = j.AppendTurn(ctx, "web_1", session.Turn{ID: "a", Input: "hi", Origin: session.OriginWeb, Action: intent.KindChat, Response: "hello", Backend: "remote"})
	_ = j.AppendTurn(ctx, "web_1", session.Turn{ID: "b", Input: "status", Origin: session.OriginWeb, Action: intent.KindStatusQuery, Response: "Mode: online"})

	var buf bytes.Buffer
	n, err := j.ExportJSONL(ctx, &buf, "web_1")
	if err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported %d, want 2", n)
	}
	sc := bufio.NewScanner(&buf)
	var records []TurnRecord
	for sc.Scan() {
		var r TurnRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		records = append(records, r)
	}
	if len(records) != 2 || records[1].Action != "status_query" || records[0].Backend != "remote" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestLayout(t *testing.T) {
	base := filepath.Join(t.TempDir(), "data")
	l, err := NewLayout(base)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if _, err := os.Stat(l.LogsDir()); err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}
	if filepath.Dir(l.JournalPath()) != filepath.Join(base, "state") {
		t.Fatalf("JournalPath=%q", l.JournalPath())
	}
	if _, err := NewLayout(" "); err == nil {
		t.Fatal("expected error for empty base dir")
	}
}
