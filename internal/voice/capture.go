package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"assistant/internal/capability"

	"github.com/rs/zerolog"
)

// DefaultDuration 默认录音时长
// DefaultDuration is the default recording length
const DefaultDuration = 10 * time.Second

var (
	// ErrCancelled 转写开始前录音被取消
	// ErrCancelled reports a capture cancelled before transcription started
	ErrCancelled = errors.New("capture cancelled")
	// ErrCaptureActive 已有一次录音在进行
	// ErrCaptureActive reports a trigger while another capture is running
	ErrCaptureActive = errors.New("capture already active")
)

// Capture 一次只允许一个“录音→转写”过程
// Capture runs at most one record-then-transcribe cycle at a time
type Capture struct {
	rec      Recorder
	tr       capability.Transcriber
	duration time.Duration
	logger   zerolog.Logger

	mu           sync.Mutex
	active       bool
	transcribing bool
	cancelled    bool
	cancel       context.CancelFunc
}

// NewCapture duration<=0 时使用 DefaultDuration
// NewCapture uses DefaultDuration when duration is not positive
func NewCapture(rec Recorder, tr capability.Transcriber, duration time.Duration, logger zerolog.Logger) *Capture {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Capture{rec: rec, tr: tr, duration: duration, logger: logger.With().Str("component", "voice").Logger()}
}

// Duration 返回录音时长
// Duration returns the recording length
func (c *Capture) Duration() time.Duration { return c.duration }

// IsReady 转写引擎可用时为 true
// IsReady reports whether a transcriber is available
func (c *Capture) IsReady() bool {
	return c != nil && c.rec != nil && capability.IsReady(c.tr)
}

// Active 是否有录音在进行
// Active reports whether a capture is running
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Trigger 录音并转写；进行中再次触发返回 ErrCaptureActive
// Trigger records then transcribes; a second trigger while active returns ErrCaptureActive
func (c *Capture) Trigger(ctx context.Context) (string, error) {
	if !c.IsReady() {
		return "", &capability.TranscriptionError{Engine: "capture", Err: capability.ErrNotConfigured}
	}
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return "", ErrCaptureActive
	}
	rctx, cancel := context.WithCancel(ctx)
	c.active, c.transcribing, c.cancelled, c.cancel = true, false, false, cancel
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.active, c.transcribing, c.cancel = false, false, nil
		c.mu.Unlock()
	}()

	c.logger.Info().Dur("duration", c.duration).Msg("recording")
	audio, err := c.rec.Record(rctx, c.duration)

	c.mu.Lock()
	cancelled := c.cancelled
	if !cancelled && err == nil {
		c.transcribing = true
	}
	c.mu.Unlock()

	if cancelled {
		c.logger.Info().Msg("recording cancelled")
		return "", ErrCancelled
	}
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	text, err := c.tr.Transcribe(ctx, audio)
	if err != nil {
		return "", err
	}
	c.logger.Debug().Int("chars", len(text)).Msg("transcribed")
	return text, nil
}

// Cancel 仅在转写开始前有效；返回是否取消成功
// Cancel aborts a capture that has not reached transcription and reports whether it did
func (c *Capture) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.transcribing || c.cancelled {
		return false
	}
	c.cancelled = true
	if c.cancel != nil {
		c.cancel()
	}
	return true
}
