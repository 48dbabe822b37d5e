package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"assistant/internal/backend"
	"assistant/internal/bootstrap"
	"assistant/internal/config"
	"assistant/internal/session"
	"assistant/internal/storage"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

const (
	defaultAskSession = "cli"
	probeTimeout      = 15 * time.Second
)

type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "assistant",
		Short: "Personal assistant with online and offline language models",
		Long: `assistant routes chat, voice and scheduled inputs to file search,
email and a language model that runs either online (OpenAI-compatible API)
or offline (a local Ollama server).

Configuration is layered: defaults, ~/.assistant/config.{json,jsonc,yaml},
the project file (assistant.config.* or .assistant/config.json), .env and
finally environment variables such as GEMINI_API_KEY or ASSISTANT_MODE.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssistant(cmd, flags, bootstrap.InteractiveConsole)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (JSON, JSONC or YAML)")

	root.AddCommand(
		newRunCmd(flags),
		newAskCmd(flags),
		newStatusCmd(flags),
		newInitCmd(),
		newSessionsCmd(flags),
	)
	return root
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var useTUI, headless bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the assistant with every enabled input source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if useTUI && headless {
				return fmt.Errorf("--tui and --headless are mutually exclusive")
			}
			front := bootstrap.InteractiveConsole
			switch {
			case useTUI:
				front = bootstrap.InteractiveTUI
			case headless:
				front = bootstrap.InteractiveNone
			}
			return runAssistant(cmd, flags, front)
		},
	}
	cmd.Flags().BoolVar(&useTUI, "tui", false, "use the full-screen terminal UI")
	cmd.Flags().BoolVar(&headless, "headless", false, "no terminal input; serve Telegram, web, hotkey and schedule only")
	return cmd
}

func runAssistant(cmd *cobra.Command, flags *rootFlags, front string) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	app, err := bootstrap.Build(cfg, bootstrap.BuildOptions{
		Interactive: front,
		Console:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Run(cmd.Context())
}

func newAskCmd(flags *rootFlags) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "ask [text...]",
		Short: "Send one input and print the reply",
		Long:  "Send one input and print the reply. Without arguments the text is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				data, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = strings.TrimSpace(string(data))
			}
			if text == "" {
				return fmt.Errorf("nothing to ask")
			}
			app, err := buildOneShot(cmd, flags)
			if err != nil {
				return err
			}
			defer app.Close()

			reply, err := app.Ask(cmd.Context(), sessionID, text, session.OriginConsole)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", defaultAskSession, "session id; reuse it to continue a conversation")
	return cmd
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the mode, backend health and capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildOneShot(cmd, flags)
			if err != nil {
				return err
			}
			defer app.Close()

			if probe {
				ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
				defer cancel()
				for _, kind := range []backend.Kind{backend.Remote, backend.Local} {
					// 探测失败已记录在健康状态里 / Failures are recorded in the health state
					_ = app.Modes.Probe(ctx, kind)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), app.Router.Status())
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "probe both backends before reporting")
	return cmd
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a project config scaffold to ./.assistant/config.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.InitProjectConfigScaffold()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newSessionsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect the conversation journal",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List journaled sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(flags)
			if err != nil {
				return err
			}
			defer j.Close()

			metas, err := j.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(metas) == 0 {
				fmt.Fprintln(out, "no sessions")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tORIGIN\tTURNS\tUPDATED")
			for _, m := range metas {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.ID, m.Origin, m.Turns, ago(m.UpdatedAt))
			}
			return tw.Flush()
		},
	}

	var output string
	export := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export one session's turns as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(flags)
			if err != nil {
				return err
			}
			defer j.Close()

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			n, err := j.ExportJSONL(cmd.Context(), w, args[0])
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("session %q has no turns", args[0])
			}
			if output != "" && output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d turns to %s\n", n, output)
			}
			return nil
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	cmd.AddCommand(list, export)
	return cmd
}

// buildOneShot 构建不带输入源的应用，给单次命令用
// buildOneShot builds an app with no sources for one-shot commands
func buildOneShot(cmd *cobra.Command, flags *rootFlags) (*bootstrap.App, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return bootstrap.Build(cfg, bootstrap.BuildOptions{Console: cmd.ErrOrStderr()})
}

func openJournal(flags *rootFlags) (*storage.SQLiteJournal, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	layout, err := storage.NewLayout(cfg.Storage.BaseDir)
	if err != nil {
		return nil, err
	}
	return storage.NewSQLiteJournal(layout.JournalPath())
}

func ago(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}
