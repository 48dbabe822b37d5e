package voice

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"assistant/internal/channel"
	"assistant/internal/mux"
	"assistant/internal/session"

	"github.com/rs/zerolog"
)

// HotkeySession 热键输入使用的会话
// HotkeySession is the session hotkey transcripts are submitted on
const HotkeySession = "hotkey"

// Hotkey 通过进程信号触发录音：SIGUSR1 开始，SIGUSR2 取消。
// 桌面热键工具只需执行 `pkill -USR1 assistant`。
//
// Hotkey drives captures from process signals: SIGUSR1 starts one, SIGUSR2 cancels it.
// A desktop shortcut only needs to run `pkill -USR1 assistant`.
type Hotkey struct {
	capture *Capture
	logger  zerolog.Logger
	// OnReply 收到转写与回复后调用；为空时只写日志
	// OnReply receives the transcript and reply; nil only logs them
	OnReply func(transcript, reply string)
}

// NewHotkey 创建热键输入源
// NewHotkey creates the hotkey source
func NewHotkey(capture *Capture, logger zerolog.Logger) *Hotkey {
	return &Hotkey{capture: capture, logger: logger.With().Str("component", "hotkey").Logger()}
}

func (h *Hotkey) Name() string { return "hotkey" }

func (h *Hotkey) Run(ctx context.Context, sub channel.Submitter) error {
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)
	h.logger.Info().Int("pid", os.Getpid()).Msg("hotkey listening (SIGUSR1 record, SIGUSR2 cancel)")
	return h.serve(ctx, sub, sigs)
}

func (h *Hotkey) serve(ctx context.Context, sub channel.Submitter, sigs <-chan os.Signal) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			h.capture.Cancel()
			return nil
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				if h.capture.Active() {
					h.logger.Debug().Msg("capture already active")
					continue
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					h.activate(ctx, sub)
				}()
			case syscall.SIGUSR2:
				if !h.capture.Cancel() {
					h.logger.Debug().Msg("nothing to cancel")
				}
			}
		}
	}
}

func (h *Hotkey) activate(ctx context.Context, sub channel.Submitter) {
	text, err := h.capture.Trigger(ctx)
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, ErrCaptureActive):
		return
	case err != nil:
		h.logger.Warn().Err(err).Msg("hotkey capture failed")
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	h.logger.Info().Str("transcript", text).Msg("hotkey transcript")
	done := make(chan struct{})
	err = sub.Submit(mux.Event{
		SessionID: HotkeySession,
		Text:      text,
		Origin:    session.OriginHotkey,
		Reply: func(reply string) {
			defer close(done)
			if h.OnReply != nil {
				h.OnReply(text, reply)
				return
			}
			h.logger.Info().Str("reply", reply).Msg("hotkey reply")
		},
	})
	if err != nil && !errors.Is(err, mux.ErrSessionBusy) {
		h.logger.Warn().Err(err).Msg("hotkey submit failed")
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}
