package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assistant/internal/intent"
	"assistant/internal/session"

	_ "modernc.org/sqlite"
)

// SQLiteJournal 基于 SQLite (WAL 模式) 的对话轮日志
// SQLiteJournal implements Journal using SQLite with WAL mode
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

var _ Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal 创建并初始化 SQLite 数据库
// NewSQLiteJournal creates and initializes a SQLite database
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	j := &SQLiteJournal{db: db, path: dbPath}
	if err := j.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		origin     TEXT NOT NULL DEFAULT 'chat',
		turn_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		origin     TEXT NOT NULL,
		action     TEXT NOT NULL,
		input      TEXT NOT NULL DEFAULT '',
		response   TEXT NOT NULL DEFAULT '',
		backend    TEXT NOT NULL DEFAULT '',
		truncated  INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, seq);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (j *SQLiteJournal) Path() string { return j.path }

// Close 关闭数据库连接 / Close the database connection
func (j *SQLiteJournal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// --- Session Operations ---

func (j *SQLiteJournal) EnsureSession(ctx context.Context, id string, origin session.Origin) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is empty")
	}
	now := nowUTC()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, origin, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, string(origin), now, now)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) ListSessions(ctx context.Context) ([]SessionMeta, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, origin, turn_count, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var metas []SessionMeta
	for rows.Next() {
		var meta SessionMeta
		if err := rows.Scan(&meta.ID, &meta.Origin, &meta.Turns, &meta.CreatedAt, &meta.UpdatedAt); err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// --- Turn Operations ---

func (j *SQLiteJournal) AppendTurn(ctx context.Context, sessionID string, turn session.Turn) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is empty")
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := nowUTC()
	at := now
	if !turn.At.IsZero() {
		at = turn.At.UTC().Format(time.RFC3339Nano)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, origin, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		sessionID, string(turn.Origin), now, now); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (id, session_id, origin, action, input, response, backend, truncated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, sessionID, string(turn.Origin), turn.Action.String(), turn.Input, turn.Response,
		turn.Backend, boolToInt(turn.Truncated), at); err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	// 更新 session 计数与时间戳 / Update session counters and timestamp
	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET turn_count=turn_count+1, updated_at=? WHERE id=?", now, sessionID); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return tx.Commit()
}

// LoadTurns 返回最近 limit 轮（limit<=0 返回全部），最旧的在前
// LoadTurns returns the newest limit turns (all when limit<=0), oldest first
func (j *SQLiteJournal) LoadTurns(ctx context.Context, sessionID string, limit int) ([]session.Turn, error) {
	records, err := j.loadRecords(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	turns := make([]session.Turn, 0, len(records))
	for _, r := range records {
		at, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
		turns = append(turns, session.Turn{
			ID:        r.ID,
			Input:     r.Input,
			Origin:    session.ParseOrigin(r.Origin),
			At:        at,
			Action:    intent.ParseKind(r.Action),
			Response:  r.Response,
			Backend:   r.Backend,
			Truncated: r.Truncated,
		})
	}
	return turns, nil
}

func (j *SQLiteJournal) loadRecords(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, id, session_id, origin, action, input, response, backend, truncated, created_at
		FROM (SELECT * FROM turns WHERE session_id=? ORDER BY seq DESC LIMIT ?)
		ORDER BY seq`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var records []TurnRecord
	for rows.Next() {
		var r TurnRecord
		var truncated int
		if err := rows.Scan(&r.Seq, &r.ID, &r.SessionID, &r.Origin, &r.Action, &r.Input,
			&r.Response, &r.Backend, &truncated, &r.CreatedAt); err != nil {
			continue
		}
		r.Truncated = truncated != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// --- Helpers ---

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
