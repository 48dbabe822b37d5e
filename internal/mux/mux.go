package mux

import (
	"context"
	"errors"
	"strings"
	"sync"

	"assistant/internal/metrics"
	"assistant/internal/session"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	defaultQueueDepth    = 4
	defaultMaxConcurrent = 8
)

// ErrSessionBusy 会话队列已满，输入被拒绝
// ErrSessionBusy reports a full per-session queue; the input was rejected
var ErrSessionBusy = errors.New("session busy")

// ErrClosed Multiplexer 已关闭
// ErrClosed reports a submission after Close
var ErrClosed = errors.New("multiplexer closed")

// Handler 处理一条输入（由 router.Router 实现）
// Handler processes one input; router.Router implements it
type Handler interface {
	Handle(ctx context.Context, sessionID, text string, origin session.Origin) string
}

// Event 一条待处理的输入；Reply 在处理完成后被调用一次
// Event is one pending input; Reply is called once with the response
type Event struct {
	SessionID string
	Text      string
	Origin    session.Origin
	Reply     func(string)
}

// Options Multiplexer 配置
// Options configures a Multiplexer
type Options struct {
	// QueueDepth 每个会话最多排队的输入数
	// QueueDepth bounds the queued inputs per session
	QueueDepth int
	// MaxConcurrent 同时处理的会话数上限
	// MaxConcurrent bounds how many sessions are processed at once
	MaxConcurrent int
	// BusyText 队列满时回复的文本
	// BusyText is replied when a lane is full
	BusyText string
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Multiplexer 把各渠道的输入按会话串行化，不同会话并发处理
// Multiplexer serializes inputs per session and runs different sessions concurrently
type Multiplexer struct {
	handler Handler
	opts    Options
	sem     *semaphore.Weighted
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	lanes  map[string]chan Event
	closed bool
	wg     sync.WaitGroup
}

// New 创建 Multiplexer
// New creates a Multiplexer around handler
func New(handler Handler, opts Options) *Multiplexer {
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = defaultQueueDepth
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Multiplexer{
		handler: handler,
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		logger:  opts.Logger.With().Str("component", "mux").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		lanes:   make(map[string]chan Event),
	}
}

// Submit 把输入放入会话队列；队列满时回复忙碌文本并返回 ErrSessionBusy
// Submit enqueues ev on its session lane; a full lane replies the busy text and returns ErrSessionBusy
func (m *Multiplexer) Submit(ev Event) error {
	ev.SessionID = strings.TrimSpace(ev.SessionID)
	if ev.SessionID == "" {
		return errors.New("mux: empty session id")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	lane, ok := m.lanes[ev.SessionID]
	if !ok {
		lane = make(chan Event, m.opts.QueueDepth)
		m.lanes[ev.SessionID] = lane
		m.wg.Add(1)
		go m.drain(ev.SessionID, lane)
	}
	select {
	case lane <- ev:
		m.mu.Unlock()
		return nil
	default:
		m.mu.Unlock()
	}

	m.opts.Metrics.Busy(string(ev.Origin))
	m.logger.Debug().Str("session", ev.SessionID).Str("origin", string(ev.Origin)).Msg("lane full")
	if ev.Reply != nil {
		ev.Reply(m.opts.BusyText)
	}
	return ErrSessionBusy
}

// Ask 同步提交并等待回复
// Ask submits synchronously and waits for the reply
func (m *Multiplexer) Ask(ctx context.Context, sessionID, text string, origin session.Origin) (string, error) {
	ch := make(chan string, 1)
	err := m.Submit(Event{SessionID: sessionID, Text: text, Origin: origin, Reply: func(s string) { ch <- s }})
	if errors.Is(err, ErrSessionBusy) {
		return <-ch, err
	}
	if err != nil {
		return "", err
	}
	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-m.ctx.Done():
		return "", ErrClosed
	}
}

// Close 停止接收输入，取消进行中的处理并等待所有 worker 退出
// Close stops intake, cancels in-flight work and waits for every worker
func (m *Multiplexer) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

// Lanes 当前活跃的会话队列数
// Lanes returns the number of live session lanes
func (m *Multiplexer) Lanes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lanes)
}

// drain 逐个处理会话队列；队列清空后删除该队列并退出
// drain processes a lane in order and removes it once empty
func (m *Multiplexer) drain(id string, lane chan Event) {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		var ev Event
		select {
		case ev = <-lane:
			m.mu.Unlock()
		default:
			delete(m.lanes, id)
			m.mu.Unlock()
			return
		}
		m.process(ev)
	}
}

func (m *Multiplexer) process(ev Event) {
	if err := m.sem.Acquire(m.ctx, 1); err != nil {
		return
	}
	defer m.sem.Release(1)
	if m.ctx.Err() != nil {
		return
	}
	reply := m.handler.Handle(m.ctx, ev.SessionID, ev.Text, ev.Origin)
	if ev.Reply != nil {
		ev.Reply(reply)
	}
}
