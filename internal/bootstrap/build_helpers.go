package bootstrap

import (
	"fmt"
	"path/filepath"
	"time"

	"assistant/internal/backend"
	"assistant/internal/capability"
	"assistant/internal/capability/filesearch"
	"assistant/internal/capability/mailbox"
	"assistant/internal/capability/transcribe"
	"assistant/internal/channel"
	"assistant/internal/channel/telegram"
	"assistant/internal/config"
	"assistant/internal/contextmgr"
	"assistant/internal/defaults"
	"assistant/internal/metrics"
	"assistant/internal/mode"
	"assistant/internal/repl"
	"assistant/internal/router"
	"assistant/internal/schedule"
	"assistant/internal/server"
	"assistant/internal/tui"
	"assistant/internal/voice"

	"github.com/rs/zerolog"
)

const mailTimeout = 30 * time.Second

func buildModes(cfg config.Config, m *metrics.Metrics, logger zerolog.Logger) (*mode.Manager, error) {
	def, err := backend.ParseKind(cfg.Mode.Default)
	if err != nil {
		return nil, fmt.Errorf("mode.default: %w", err)
	}
	remote := backend.NewRemote(backend.RemoteConfig{
		BaseURL:    cfg.Remote.BaseURL,
		APIKey:     cfg.Remote.APIKey,
		Model:      cfg.Remote.Model,
		TimeoutMS:  cfg.Remote.TimeoutMS,
		MaxRetries: cfg.Remote.MaxRetries,
	})
	local := backend.NewLocal(backend.LocalConfig{
		BaseURL:   cfg.Local.BaseURL,
		Model:     cfg.Local.Model,
		TimeoutMS: cfg.Local.TimeoutMS,
	})
	mgr, err := mode.New([]backend.Backend{remote, local}, mode.Options{
		Default:       def,
		CallTimeout:   millis(cfg.Mode.CallTimeoutMS),
		ProbeTimeout:  millis(cfg.Mode.ProbeTimeoutMS),
		SlowThreshold: millis(cfg.Mode.SlowThresholdMS),
		Logger:        logger,
		Observer:      m,
	})
	if err != nil {
		return nil, fmt.Errorf("init modes: %w", err)
	}
	return mgr, nil
}

type capabilities struct {
	files       *filesearch.Searcher
	mail        *mailbox.Client
	transcriber capability.Transcriber
}

func buildCapabilities(cfg config.Config, logger zerolog.Logger) capabilities {
	files := filesearch.New(filesearch.Options{
		Roots:         cfg.Files.SearchPaths,
		MaxResults:    cfg.Files.MaxResults,
		IncludeHidden: cfg.Files.IncludeHidden,
		Logger:        logger,
	})
	mail := mailbox.New(mailbox.Options{
		IMAPAddr:   cfg.Mail.IMAPAddr,
		SMTPAddr:   cfg.Mail.SMTPAddr,
		Username:   cfg.Mail.Username,
		Password:   cfg.Mail.Password,
		From:       cfg.Mail.From,
		Mailbox:    cfg.Mail.Mailbox,
		MaxResults: cfg.Mail.MaxResults,
		Timeout:    mailTimeout,
		Logger:     logger,
	})
	// 本地 whisper 优先，API 兜底 / Local whisper first, the API as backup
	tr := transcribe.NewChain(
		transcribe.NewWhisperCLI(transcribe.CLIOptions{
			Executable: cfg.Voice.WhisperExecutable,
			Model:      cfg.Voice.WhisperModel,
			Threads:    cfg.Voice.Threads,
			Timeout:    millis(cfg.Voice.TimeoutMS),
			FFmpeg:     cfg.Voice.FFmpeg,
			Logger:     logger,
		}),
		transcribe.NewWhisperAPI(transcribe.APIOptions{
			BaseURL: cfg.Voice.APIBaseURL,
			APIKey:  cfg.Voice.APIKey,
			Model:   cfg.Voice.APIModel,
			Timeout: millis(cfg.Voice.TimeoutMS),
		}),
	)
	return capabilities{files: files, mail: mail, transcriber: tr}
}

func buildRouter(cfg config.Config, a *App, caps capabilities) (*router.Router, error) {
	reasons := make([]backend.Reason, 0, len(cfg.Fallback.On))
	for _, r := range cfg.Fallback.On {
		reasons = append(reasons, backend.Reason(r))
	}
	prompt := cfg.Router.SystemPrompt
	if prompt == "" {
		prompt = defaults.DefaultSystemPrompt
	}
	tok := contextmgr.NewTokenizerForModel(cfg.Remote.Model)
	a.log.Debug().
		Str("encoding", tok.EncodingName()).
		Bool("precise", tok.IsPrecise()).
		Msg("history tokenizer ready")
	opts := router.Options{
		Modes:       a.Modes,
		Sessions:    a.Sessions,
		Files:       caps.files,
		Mail:        caps.mail,
		Transcriber: caps.transcriber,
		I18n:        a.I18n,
		Tokenizer:   tok,
		Metrics:     a.Metrics,
		Logger:      a.Logger.Zerolog(),
		Fallback: router.FallbackPolicy{
			Enabled: cfg.Fallback.Enabled,
			On:      reasons,
		},
		MaxInputChars:      cfg.Router.MaxInputChars,
		HistoryTokenBudget: cfg.Router.HistoryTokenBudget,
		SystemPrompt:       prompt,
		Features: []router.Feature{
			{Name: "Voice", Enabled: caps.transcriber.IsReady()},
			{Name: "Hotkey", Enabled: cfg.Voice.Hotkey},
			{Name: "Telegram", Enabled: cfg.Telegram.Enabled},
			{Name: "Web", Enabled: cfg.Web.Enabled},
			{Name: "Journal", Enabled: a.Journal != nil},
		},
	}
	if a.Journal != nil {
		opts.Journal = a.Journal
	}
	r, err := router.New(opts)
	if err != nil {
		return nil, fmt.Errorf("init router: %w", err)
	}
	return r, nil
}

func buildSources(cfg config.Config, a *App, opts BuildOptions) ([]channel.Source, error) {
	var sources []channel.Source
	logger := a.Logger.Zerolog()

	switch opts.Interactive {
	case InteractiveConsole:
		sources = append(sources, repl.New(repl.Options{
			In:          opts.In,
			Out:         opts.Out,
			HistoryFile: filepath.Join(a.Layout.BaseDir(), "history"),
			Capture:     a.Capture,
			Modes:       a.Modes,
			I18n:        a.I18n,
			Logger:      logger,
		}))
	case InteractiveTUI:
		sources = append(sources, tui.NewSource(tui.SourceOptions{
			Modes:    a.Modes,
			Logs:     a.Logger,
			I18n:     a.I18n,
			Markdown: true,
		}))
	}

	if cfg.Voice.Hotkey {
		if !a.Capture.IsReady() {
			a.log.Warn().Msg("hotkey enabled but no transcriber is ready")
		}
		sources = append(sources, voice.NewHotkey(a.Capture, logger))
	}

	if cfg.Telegram.Enabled {
		bot, err := telegram.New(telegram.Options{
			Token:          cfg.Telegram.Token,
			AllowedChatIDs: cfg.Telegram.AllowedChatIDs,
			Transcriber:    a.Transcriber,
			I18n:           a.I18n,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init telegram: %w", err)
		}
		sources = append(sources, bot)
	}

	if cfg.Web.Enabled {
		sources = append(sources, server.New(server.Options{
			Addr:    cfg.Web.Addr,
			Modes:   a.Modes,
			Metrics: a.Metrics,
			Logger:  logger,
		}))
	}

	if cfg.Schedule.StatusCron != "" {
		schedOpts := schedule.Options{StatusSpec: cfg.Schedule.StatusCron, Logger: logger}
		if cfg.Schedule.ProbeBackends {
			schedOpts.Prober = a.Modes
		}
		sched, err := schedule.New(schedOpts)
		if err != nil {
			return nil, fmt.Errorf("init scheduler: %w", err)
		}
		sources = append(sources, sched)
	}
	return sources, nil
}

func millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

func seconds(s int) time.Duration { return time.Duration(s) * time.Second }

func minutes(m int) time.Duration { return time.Duration(m) * time.Minute }
