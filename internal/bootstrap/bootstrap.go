package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"assistant/internal/capability"
	"assistant/internal/channel"
	"assistant/internal/config"
	"assistant/internal/i18n"
	"assistant/internal/logging"
	"assistant/internal/metrics"
	"assistant/internal/mode"
	"assistant/internal/mux"
	"assistant/internal/router"
	"assistant/internal/session"
	"assistant/internal/storage"
	"assistant/internal/voice"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// 终端前端 / Interactive front ends
const (
	InteractiveNone    = ""
	InteractiveConsole = "console"
	InteractiveTUI     = "tui"
)

// BuildOptions 与 UI 相关的构建选项
// BuildOptions carries the UI-facing choices made by the caller
type BuildOptions struct {
	// Interactive 选择终端前端：console、tui 或空
	// Interactive picks the terminal front end: console, tui or none
	Interactive string
	// Console 日志的终端输出；nil 时为 os.Stderr，TUI 下始终只写文件
	// Console receives terminal logs; nil means os.Stderr, the TUI always logs to file only
	Console io.Writer
	// In/Out 仅用于 console 前端，nil 时使用终端
	// In and Out feed the console front end; nil uses the terminal
	In  io.Reader
	Out io.Writer
}

// App 组装完成的助手；调用方负责 defer app.Close()
// App is the assembled assistant; callers must defer app.Close()
type App struct {
	Config      config.Config
	Layout      *storage.Layout
	Logger      *logging.Logger
	Metrics     *metrics.Metrics
	I18n        *i18n.I18n
	Modes       *mode.Manager
	Sessions    *session.Registry
	Journal     *storage.SQLiteJournal
	Router      *router.Router
	Mux         *mux.Multiplexer
	Capture     *voice.Capture
	Transcriber capability.Transcriber
	Sources     []channel.Source

	log zerolog.Logger
}

// Build 按依赖顺序初始化：目录、日志、指标、journal、后端、能力、路由、输入源
// Build initializes in dependency order: layout, logging, metrics, journal, backends, capabilities, router, sources
func Build(cfg config.Config, opts BuildOptions) (*App, error) {
	switch opts.Interactive {
	case InteractiveNone, InteractiveConsole, InteractiveTUI:
	default:
		return nil, fmt.Errorf("unknown interactive front end %q", opts.Interactive)
	}

	layout, err := storage.NewLayout(cfg.Storage.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	logger, err := logging.New(loggingOptions(cfg, layout, opts))
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	app := &App{
		Config:  cfg,
		Layout:  layout,
		Logger:  logger,
		Metrics: metrics.New(),
		I18n:    i18n.New(cfg.Router.Locale),
		log:     logger.Component("bootstrap"),
	}
	if err := app.build(opts); err != nil {
		_ = app.Close()
		return nil, err
	}
	app.log.Info().
		Str("mode", app.Modes.Current().Kind.ModeName()).
		Str("base_dir", layout.BaseDir()).
		Strs("sources", app.SourceNames()).
		Msg("assistant ready")
	return app, nil
}

func (a *App) build(opts BuildOptions) error {
	cfg := a.Config
	if cfg.Storage.Journal {
		j, err := storage.NewSQLiteJournal(a.Layout.JournalPath())
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		a.Journal = j
	}

	regOpts := session.RegistryOptions{
		TTL:        minutes(cfg.Router.SessionTTLMinutes),
		MaxHistory: cfg.Router.MaxHistory,
		Logger:     a.Logger.Zerolog(),
		OnEvict: func(string) {
			if a.Sessions != nil {
				a.Metrics.SetActiveSessions(a.Sessions.Len())
			}
		},
	}
	if a.Journal != nil {
		regOpts.Journal = a.Journal
	}
	a.Sessions = session.NewRegistry(regOpts)

	modes, err := buildModes(cfg, a.Metrics, a.Logger.Zerolog())
	if err != nil {
		return err
	}
	a.Modes = modes

	caps := buildCapabilities(cfg, a.Logger.Zerolog())
	a.Transcriber = caps.transcriber
	a.Capture = voice.NewCapture(voice.NewCommandRecorder(cfg.Voice.RecordCommand), caps.transcriber,
		seconds(cfg.Voice.RecordSeconds), a.Logger.Zerolog())

	r, err := buildRouter(cfg, a, caps)
	if err != nil {
		return err
	}
	a.Router = r
	a.Mux = mux.New(r, mux.Options{
		QueueDepth:    cfg.Router.QueueDepth,
		MaxConcurrent: cfg.Router.MaxConcurrent,
		BusyText:      a.I18n.T("router.busy"),
		Metrics:       a.Metrics,
		Logger:        a.Logger.Zerolog(),
	})

	sources, err := buildSources(cfg, a, opts)
	if err != nil {
		return err
	}
	a.Sources = sources
	return nil
}

// Ask 同步提交一条输入，供单次命令使用
// Ask submits one input and waits for the reply; used by one-shot commands
func (a *App) Ask(ctx context.Context, sessionID, text string, origin session.Origin) (string, error) {
	return a.Mux.Ask(ctx, sessionID, text, origin)
}

// SourceNames 返回已启用输入源的名字
// SourceNames lists the enabled sources
func (a *App) SourceNames() []string {
	names := make([]string, 0, len(a.Sources))
	for _, s := range a.Sources {
		names = append(names, s.Name())
	}
	return names
}

// Run 并发运行所有输入源；任一输入源结束时其余的随之停止
// Run supervises every source; when one returns the others are stopped
func (a *App) Run(ctx context.Context) error {
	if len(a.Sources) == 0 {
		return errors.New("no input sources enabled")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range a.Sources {
		g.Go(func() error {
			defer cancel()
			a.log.Debug().Str("source", src.Name()).Msg("source started")
			err := src.Run(gctx, a.Mux)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			if err != nil {
				a.log.Error().Err(err).Str("source", src.Name()).Msg("source failed")
				return fmt.Errorf("%s: %w", src.Name(), err)
			}
			a.log.Debug().Str("source", src.Name()).Msg("source stopped")
			return nil
		})
	}
	return g.Wait()
}

// Close 释放 mux、journal 与日志文件；可重复调用
// Close releases the multiplexer, the journal and the log file; safe to call twice
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.Mux != nil {
		a.Mux.Close()
	}
	var errs []error
	if a.Journal != nil {
		errs = append(errs, a.Journal.Close())
		a.Journal = nil
	}
	if a.Logger != nil {
		errs = append(errs, a.Logger.Close())
	}
	return errors.Join(errs...)
}

func loggingOptions(cfg config.Config, layout *storage.Layout, opts BuildOptions) logging.Options {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	if opts.Interactive == InteractiveTUI {
		// TUI 占用终端 / The TUI owns the terminal
		console = nil
		if strings.TrimSpace(cfg.Logging.File) == "" {
			cfg.Logging.File = layout.LogFile()
		}
	}
	return logging.FromConfig(cfg.Logging, console)
}
