package tui

import (
	"context"
	"errors"

	"assistant/internal/channel"
	"assistant/internal/i18n"
	"assistant/internal/logging"
	"assistant/internal/mode"
	"assistant/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

const logBuffer = 256

// SessionID TUI 与控制台共用的会话
// SessionID is the session shared with the console
const SessionID = "console"

// SnapshotSource 提供模式快照
// SnapshotSource yields the current mode snapshot
type SnapshotSource interface {
	Snapshot() mode.Snapshot
}

type SourceOptions struct {
	Modes SnapshotSource
	// Logs 不为 nil 时日志会显示在日志面板
	// Logs, when set, feeds the logs panel
	Logs     *logging.Logger
	I18n     *i18n.I18n
	Markdown bool
}

// Source 以 TUI 作为输入源运行
// Source runs the TUI as an input source
type Source struct {
	opts SourceOptions
}

func NewSource(opts SourceOptions) *Source {
	return &Source{opts: opts}
}

func (s *Source) Name() string { return "tui" }

// Run 阻塞到用户退出或 ctx 结束
// Run blocks until the user quits or ctx ends
func (s *Source) Run(ctx context.Context, sub channel.Submitter) error {
	appOpts := Options{
		SessionID: SessionID,
		Markdown:  s.opts.Markdown,
		I18n:      s.opts.I18n,
		Ask: func(_ context.Context, text string) (string, error) {
			return sub.Ask(ctx, SessionID, text, session.OriginConsole)
		},
	}
	if s.opts.Modes != nil {
		appOpts.Snapshot = s.opts.Modes.Snapshot
	}

	p := tea.NewProgram(NewApp(appOpts), tea.WithAltScreen(), tea.WithContext(ctx))

	if s.opts.Logs != nil {
		entries := make(chan logging.Entry, logBuffer)
		s.opts.Logs.OnEntry(func(e logging.Entry) {
			select {
			case entries <- e:
			default:
			}
		})
		defer s.opts.Logs.OnEntry(nil)
		forwardCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			for {
				select {
				case e := <-entries:
					p.Send(LogMsg{Entry: e})
				case <-forwardCtx.Done():
					return
				}
			}
		}()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
