package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layout 数据目录布局：journal 数据库、日志与状态文件
// Layout is the on-disk data directory: the journal database, logs and state
type Layout struct {
	baseDir  string
	logsDir  string
	stateDir string
}

// NewLayout 创建数据目录及其子目录
// NewLayout creates the data directory and its subdirectories
func NewLayout(baseDir string) (*Layout, error) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		return nil, fmt.Errorf("storage base dir is empty")
	}
	l := &Layout{
		baseDir:  baseDir,
		logsDir:  filepath.Join(baseDir, "logs"),
		stateDir: filepath.Join(baseDir, "state"),
	}
	for _, dir := range []string{l.baseDir, l.logsDir, l.stateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return l, nil
}

func (l *Layout) BaseDir() string { return l.baseDir }

func (l *Layout) LogsDir() string { return l.logsDir }

// JournalPath 返回默认 journal 数据库路径
// JournalPath returns the default journal database path
func (l *Layout) JournalPath() string { return filepath.Join(l.stateDir, "journal.db") }

// LogFile 返回默认日志文件路径
// LogFile returns the default log file path
func (l *Layout) LogFile() string { return filepath.Join(l.logsDir, "assistant.log") }
