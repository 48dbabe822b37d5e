// Package logging 基于 zerolog 构建进程日志：控制台或 JSON 输出、可选追加写入的日志文件，
// 以及供 TUI 日志面板读取的内存历史。
// Package logging builds the process logger on zerolog: console or JSON output,
// an optional append-only log file, and an in-memory history for the TUI logs panel.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"assistant/internal/config"

	"github.com/rs/zerolog"
)

// DefaultMaxHistory 内存中保留的日志条数
// DefaultMaxHistory is the number of entries kept in memory
const DefaultMaxHistory = 500

// Entry 一条日志的精简视图
// Entry is a condensed view of one log line
type Entry struct {
	Time      time.Time
	Level     string
	Component string
	Message   string
	Error     string
}

// Options 日志构建参数
// Options configures New
type Options struct {
	Level  string
	Format string
	File   string
	// Console 为 nil 时只写文件（TUI 占用终端时）
	// Console nil means file-only output, used while the TUI owns the terminal
	Console    io.Writer
	MaxHistory int
}

// FromConfig 由配置段生成 Options
// FromConfig maps the logging config section onto Options
func FromConfig(cfg config.LoggingConfig, console io.Writer) Options {
	return Options{Level: cfg.Level, Format: cfg.Format, File: cfg.File, Console: console}
}

// Logger 包装 zerolog，附带日志文件与历史
// Logger wraps zerolog with its log file and history
type Logger struct {
	zl      zerolog.Logger
	file    *os.File
	path    string
	history *history
}

// New 创建日志器
// New builds a Logger
func New(opts Options) (*Logger, error) {
	levelName := strings.TrimSpace(opts.Level)
	if levelName == "" {
		levelName = "info"
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	maxHist := opts.MaxHistory
	if maxHist <= 0 {
		maxHist = DefaultMaxHistory
	}

	l := &Logger{history: newHistory(maxHist)}
	writers := []io.Writer{l.history}

	if opts.Console != nil {
		if strings.EqualFold(opts.Format, "json") {
			writers = append(writers, opts.Console)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: "15:04:05"})
		}
	}

	if path := strings.TrimSpace(opts.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		l.path = path
		writers = append(writers, f)
	}

	l.zl = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	return l, nil
}

// Nop 丢弃所有输出的日志器
// Nop returns a Logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), history: newHistory(1)}
}

// Zerolog 返回底层 zerolog.Logger
// Zerolog returns the underlying zerolog.Logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Component 返回带 component 字段的子日志器
// Component returns a child logger tagged with the component name
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zl.With().Str("component", name).Logger()
}

func (l *Logger) Path() string {
	return l.path
}

// History 返回最近 limit 条日志，limit<=0 表示全部
// History returns the most recent entries; limit<=0 returns all of them
func (l *Logger) History(limit int) []Entry {
	return l.history.last(limit)
}

// OnEntry 注册实时回调；回调在写日志的 goroutine 中执行，必须不阻塞
// OnEntry registers a live callback. It runs on the logging goroutine and must not block.
func (l *Logger) OnEntry(fn func(Entry)) {
	l.history.setListener(fn)
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// history 环形缓冲，解析 zerolog 的 JSON 行
type history struct {
	mu       sync.Mutex
	entries  []Entry
	next     int
	full     bool
	listener func(Entry)
}

func newHistory(n int) *history {
	return &history{entries: make([]Entry, n)}
}

func (h *history) Write(p []byte) (int, error) {
	var raw struct {
		Time      string `json:"time"`
		Level     string `json:"level"`
		Component string `json:"component"`
		Message   string `json:"message"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(p, &raw); err != nil {
		return len(p), nil
	}
	e := Entry{Level: raw.Level, Component: raw.Component, Message: raw.Message, Error: raw.Error}
	if ts, err := time.Parse(time.RFC3339, raw.Time); err == nil {
		e.Time = ts
	}

	h.mu.Lock()
	h.entries[h.next] = e
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.full = true
	}
	fn := h.listener
	h.mu.Unlock()

	if fn != nil {
		fn(e)
	}
	return len(p), nil
}

func (h *history) setListener(fn func(Entry)) {
	h.mu.Lock()
	h.listener = fn
	h.mu.Unlock()
}

func (h *history) last(limit int) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ordered []Entry
	if h.full {
		ordered = append(ordered, h.entries[h.next:]...)
	}
	ordered = append(ordered, h.entries[:h.next]...)
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}
