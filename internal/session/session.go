package session

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"assistant/internal/chat"
	"assistant/internal/intent"
)

// Origin 输入来源
// Origin identifies where an input came from
type Origin string

const (
	OriginChat     Origin = "chat"
	OriginVoice    Origin = "voice"
	OriginHotkey   Origin = "hotkey"
	OriginSchedule Origin = "schedule"
	OriginConsole  Origin = "console"
	OriginWeb      Origin = "web"
)

// ParseOrigin 未知来源按 chat 处理
// ParseOrigin maps unknown names to OriginChat
func ParseOrigin(s string) Origin {
	switch o := Origin(strings.ToLower(strings.TrimSpace(s))); o {
	case OriginVoice, OriginHotkey, OriginSchedule, OriginConsole, OriginWeb:
		return o
	default:
		return OriginChat
	}
}

// Turn 一次输入及其回复，写入后不再修改
// Turn is one input and its reply; it is never mutated after append
type Turn struct {
	ID        string
	Input     string
	Origin    Origin
	At        time.Time
	Action    intent.Kind
	Response  string
	Backend   string
	Truncated bool
}

// Session 单个会话的历史与忙碌标记
// Session holds one conversation's history and its busy flag
type Session struct {
	id         string
	maxHistory int

	busy atomic.Bool

	mu      sync.RWMutex
	history []Turn
	mode    string
}

func newSession(id string, maxHistory int) *Session {
	return &Session{id: id, maxHistory: maxHistory}
}

func (s *Session) ID() string { return s.id }

// TryAcquire 抢占忙碌标记；已被占用时返回 false
// TryAcquire claims the busy flag and reports false when it is already held
func (s *Session) TryAcquire() bool { return s.busy.CompareAndSwap(false, true) }

// Release 释放忙碌标记
// Release clears the busy flag
func (s *Session) Release() { s.busy.Store(false) }

func (s *Session) Busy() bool { return s.busy.Load() }

// History 返回历史的副本，最旧的在前
// History returns a copy of the history, oldest first
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn(nil), s.history...)
}

// Len returns the number of retained turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Append 追加一轮；超过上限时丢弃最旧的
// Append adds a turn and drops the oldest ones beyond the history limit
func (s *Session) Append(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, t)
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		drop := len(s.history) - s.maxHistory
		s.history = append(s.history[:0:0], s.history[drop:]...)
	}
	if t.Backend != "" {
		s.mode = t.Backend
	}
}

// Mode 最近一次回答对话的后端；尚未回答过时为空
// Mode is the backend that most recently answered a chat turn, empty before the first one
func (s *Session) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Messages 把已回答的对话轮转换成提示词历史
// Messages converts answered chat turns into prompt history
func (s *Session) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Message, 0, len(s.history)*2)
	for _, t := range s.history {
		if t.Action != intent.KindChat || t.Backend == "" {
			continue
		}
		out = append(out, chat.User(t.Input), chat.Assistant(t.Response))
	}
	return out
}
