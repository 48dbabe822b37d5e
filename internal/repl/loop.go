// Package repl 终端交互式控制台：逐行读取输入并通过 Multiplexer 提交。
// Package repl is the interactive terminal console: it reads lines and submits them through the multiplexer.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"assistant/internal/channel"
	"assistant/internal/i18n"
	"assistant/internal/mode"
	"assistant/internal/mux"
	"assistant/internal/session"
	"assistant/internal/voice"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// SessionID 控制台与 TUI 共用的会话
// SessionID is the session shared by the console and the TUI
const SessionID = "console"

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[90m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
)

// ModeReader 提供当前模式，用于提示符
// ModeReader yields the active mode for the prompt
type ModeReader interface {
	Current() mode.Handle
}

type Options struct {
	// In/Out 为 nil 时使用终端；终端可用时启用 readline
	// In and Out default to the terminal, where readline is used
	In          io.Reader
	Out         io.Writer
	HistoryFile string
	Capture     *voice.Capture
	Modes       ModeReader
	I18n        *i18n.I18n
	Logger      zerolog.Logger
}

// Console 控制台输入源
// Console is the console input source
type Console struct {
	opts   Options
	i18n   *i18n.I18n
	logger zerolog.Logger
	color  bool
	wg     sync.WaitGroup
}

func New(opts Options) *Console {
	tr := opts.I18n
	if tr == nil {
		tr = i18n.New("")
	}
	return &Console{
		opts:   opts,
		i18n:   tr,
		logger: opts.Logger.With().Str("component", "repl").Logger(),
	}
}

func (c *Console) Name() string { return "console" }

type readResult struct {
	line string
	err  error
}

// Run 读取输入直到 /quit、EOF 或 ctx 结束
// Run reads input until /quit, EOF or ctx ends
func (c *Console) Run(ctx context.Context, sub channel.Submitter) error {
	in, err := c.openInput()
	if err != nil {
		c.logger.Warn().Err(err).Msg("readline unavailable, using plain input")
	}
	defer in.Close()
	defer c.wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	out := in.Writer()

	c.println(out, ansiDim, c.i18n.T("startup.welcome", c.modeName()))

	done := ctx.Done()
	lines := make(chan readResult)
	next := make(chan struct{})
	go func() {
		defer close(lines)
		for {
			line, err := in.ReadLine(c.prompt())
			select {
			case lines <- readResult{line, err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
			select {
			case <-next:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case r, ok := <-lines:
			if !ok {
				return nil
			}
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					c.println(out, ansiDim, c.i18n.T("startup.bye"))
					return nil
				}
				return fmt.Errorf("read input: %w", r.err)
			}
			if quit := c.handleLine(ctx, sub, out, r.line); quit {
				c.println(out, ansiDim, c.i18n.T("startup.bye"))
				return nil
			}
			select {
			case next <- struct{}{}:
			case <-done:
				return nil
			}
		}
	}
}

func (c *Console) openInput() (lineInput, error) {
	if c.opts.In == nil && term.IsTerminal(int(os.Stdin.Fd())) {
		c.color = useColor()
		return newLineInput(c.opts.HistoryFile)
	}
	in, out := c.opts.In, c.opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return newBasicLineInput(in, out), nil
}

// handleLine 处理一行输入；返回 true 表示退出
// handleLine processes one line and reports whether the console should exit
func (c *Console) handleLine(ctx context.Context, sub channel.Submitter, out io.Writer, line string) bool {
	text := strings.TrimSpace(line)
	switch strings.ToLower(text) {
	case "":
		return false
	case "/quit", "/exit", "quit", "exit":
		return true
	case "/voice":
		c.startVoice(ctx, sub, out)
		return false
	case "/cancel":
		if c.opts.Capture != nil && c.opts.Capture.Cancel() {
			c.println(out, ansiYellow, c.i18n.T("voice.cancelled"))
		} else {
			c.println(out, ansiDim, c.i18n.T("voice.not_active"))
		}
		return false
	}

	reply, err := sub.Ask(ctx, SessionID, text, session.OriginConsole)
	c.printReply(out, reply, err)
	return false
}

// startVoice 在后台录音与转写，使 /cancel 仍可输入
// startVoice records and transcribes in the background so /cancel can still be typed
func (c *Console) startVoice(ctx context.Context, sub channel.Submitter, out io.Writer) {
	capture := c.opts.Capture
	if !capture.IsReady() {
		c.println(out, ansiRed, c.i18n.T("voice.failed", c.i18n.T("status.not_configured")))
		return
	}
	if capture.Active() {
		c.println(out, ansiYellow, c.i18n.T("voice.busy"))
		return
	}
	c.println(out, ansiDim, c.i18n.T("voice.recording", int(capture.Duration().Seconds())))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		transcript, err := capture.Trigger(ctx)
		switch {
		case errors.Is(err, voice.ErrCancelled):
			return
		case errors.Is(err, voice.ErrCaptureActive):
			c.println(out, ansiYellow, c.i18n.T("voice.busy"))
			return
		case err != nil:
			if ctx.Err() == nil {
				c.println(out, ansiRed, c.i18n.T("voice.failed", err.Error()))
			}
			return
		}
		c.println(out, ansiDim, c.i18n.T("voice.transcription", transcript))
		reply, err := sub.Ask(ctx, SessionID, transcript, session.OriginVoice)
		c.printReply(out, reply, err)
	}()
}

func (c *Console) printReply(out io.Writer, reply string, err error) {
	switch {
	case err == nil:
		c.println(out, "", reply)
	case errors.Is(err, mux.ErrSessionBusy) && reply != "":
		c.println(out, ansiYellow, reply)
	case errors.Is(err, context.Canceled), errors.Is(err, mux.ErrClosed):
	default:
		c.println(out, ansiRed, "error: "+err.Error())
	}
}

func (c *Console) println(out io.Writer, color, text string) {
	if c.color && color != "" {
		_, _ = fmt.Fprintf(out, "%s%s%s\n", color, text, ansiReset)
		return
	}
	_, _ = fmt.Fprintln(out, text)
}

func (c *Console) modeName() string {
	if c.opts.Modes == nil {
		return "online"
	}
	return c.opts.Modes.Current().Kind.ModeName()
}

func (c *Console) prompt() string {
	p := fmt.Sprintf("[%s] > ", c.modeName())
	if c.color {
		return ansiGreen + p + ansiReset
	}
	return p
}

func useColor() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(os.Getenv("TERM"))) != "dumb"
}
