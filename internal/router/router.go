package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"assistant/internal/capability"
	"assistant/internal/contextmgr"
	"assistant/internal/i18n"
	"assistant/internal/intent"
	"assistant/internal/metrics"
	"assistant/internal/session"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultMaxInputChars      = 2000
	defaultHistoryTokenBudget = 3000
	journalTimeout            = 2 * time.Second
)

// Options Router 依赖与限制
// Options wires the router's dependencies and limits
type Options struct {
	Modes       Modes
	Sessions    *session.Registry
	Files       capability.FileSearcher
	Mail        capability.Mailbox
	Transcriber capability.Transcriber
	Journal     TurnJournal
	I18n        *i18n.I18n
	Tokenizer   *contextmgr.Tokenizer
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger

	Fallback           FallbackPolicy
	MaxInputChars      int
	HistoryTokenBudget int
	SystemPrompt       string
	Features           []Feature
}

// Router 把一条输入变成一条回复：分类、分派、记录
// Router turns one input into one reply: classify, dispatch, record
type Router struct {
	opts   Options
	modes  Modes
	reg    *session.Registry
	loc    *i18n.I18n
	tok    *contextmgr.Tokenizer
	logger zerolog.Logger
	now    func() time.Time
}

// New 创建 Router；Modes 与 Sessions 必填
// New creates a Router; Modes and Sessions are required
func New(opts Options) (*Router, error) {
	if opts.Modes == nil {
		return nil, errors.New("router: mode manager is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("router: session registry is required")
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = defaultMaxInputChars
	}
	if opts.HistoryTokenBudget <= 0 {
		opts.HistoryTokenBudget = defaultHistoryTokenBudget
	}
	loc := opts.I18n
	if loc == nil {
		loc = i18n.New("en")
	}
	tok := opts.Tokenizer
	if tok == nil {
		tok = contextmgr.NewHeuristicTokenizer()
	}
	return &Router{
		opts:   opts,
		modes:  opts.Modes,
		reg:    opts.Sessions,
		loc:    loc,
		tok:    tok,
		logger: opts.Logger.With().Str("component", "router").Logger(),
		now:    time.Now,
	}, nil
}

// Handle 处理一条输入并返回回复文本；任何失败都会变成可读的文本
// Handle processes one input and returns the reply; every failure becomes readable text
func (r *Router) Handle(ctx context.Context, sessionID, rawText string, origin session.Origin) string {
	s := r.reg.GetOrCreate(ctx, sessionID)
	if !s.TryAcquire() {
		r.opts.Metrics.Busy(string(origin))
		r.logger.Debug().Str("session", sessionID).Str("origin", string(origin)).Msg("session busy")
		return r.loc.T("router.busy")
	}
	defer s.Release()

	start := r.now()
	text, truncated := truncateRunes(strings.TrimSpace(rawText), r.opts.MaxInputChars)
	action := intent.Classify(text)
	res := r.dispatch(ctx, s, action)

	reply := res.text
	if truncated {
		reply += "\n\n" + r.loc.T("router.truncated", r.opts.MaxInputChars)
	}

	turn := session.Turn{
		ID:        uuid.NewString(),
		Input:     text,
		Origin:    origin,
		At:        start,
		Action:    action.Kind(),
		Response:  reply,
		Backend:   res.backend,
		Truncated: truncated,
	}
	s.Append(turn)
	r.reg.Touch(s)
	r.journal(ctx, sessionID, turn)

	r.opts.Metrics.Turn(action.Kind().String(), string(origin))
	r.opts.Metrics.SetActiveSessions(r.reg.Len())
	r.logger.Info().
		Str("session", sessionID).
		Str("origin", string(origin)).
		Str("action", action.Kind().String()).
		Str("backend", res.backend).
		Bool("truncated", truncated).
		Dur("elapsed", r.now().Sub(start)).
		Msg("turn handled")
	return reply
}

// dispatch 按动作类型分派；任何 panic 都会被恢复为错误文本
// dispatch routes by action type and recovers any panic into error text
func (r *Router) dispatch(ctx context.Context, s *session.Session, a intent.Action) (res result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("session", s.ID()).Str("action", a.Kind().String()).Interface("panic", p).Msg("handler panicked")
			res = result{text: r.loc.T("router.internal", fmt.Sprint(p))}
		}
	}()

	if intent.Incomplete(a) {
		return result{text: r.clarify(a)}
	}
	switch act := a.(type) {
	case intent.FileSearch:
		return r.searchFiles(ctx, act)
	case intent.EmailRead:
		return r.readMail(ctx, act)
	case intent.EmailSend:
		return r.sendMail(ctx, act)
	case intent.ModeSwitch:
		return r.switchMode(ctx, act)
	case intent.StatusQuery:
		return result{text: r.Status()}
	case intent.Chat:
		return r.chat(ctx, s, act)
	default:
		return result{text: r.loc.T("help.text")}
	}
}

func (r *Router) journal(ctx context.Context, sessionID string, turn session.Turn) {
	if r.opts.Journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := r.opts.Journal.AppendTurn(jctx, sessionID, turn); err != nil {
		r.logger.Warn().Str("session", sessionID).Err(err).Msg("journal append failed")
	}
}

// truncateRunes 按字符（rune）截断
// truncateRunes cuts s to at most max runes
func truncateRunes(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return strings.TrimSpace(s[:i]), true
		}
		n++
	}
	return s, false
}
