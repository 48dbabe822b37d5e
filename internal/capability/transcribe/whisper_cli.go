package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"assistant/internal/capability"

	"github.com/rs/zerolog"
)

// DefaultTimeout 单次转写的默认超时
// DefaultTimeout bounds one transcription when CLIOptions.Timeout is unset
const DefaultTimeout = 2 * time.Minute

// CLIOptions whisper.cpp 命令行配置
// CLIOptions configures the whisper.cpp command-line engine
type CLIOptions struct {
	Executable string
	Model      string
	Threads    int
	Timeout    time.Duration
	// FFmpeg 非 WAV 音频（如 Telegram OGG 语音）转换用；为空时只接受 WAV
	// FFmpeg converts non-WAV audio such as Telegram OGG notes; empty accepts WAV only
	FFmpeg string
	Logger zerolog.Logger
}

// WhisperCLI 调用本地 whisper.cpp 可执行文件
// WhisperCLI runs a local whisper.cpp executable
type WhisperCLI struct {
	opts   CLIOptions
	logger zerolog.Logger
}

// NewWhisperCLI 创建本地转写引擎
// NewWhisperCLI creates the local transcription engine
func NewWhisperCLI(opts CLIOptions) *WhisperCLI {
	if opts.Threads <= 0 {
		opts.Threads = min(runtime.NumCPU(), 4)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &WhisperCLI{opts: opts, logger: opts.Logger.With().Str("component", "whisper-cli").Logger()}
}

func (w *WhisperCLI) Name() string { return "whisper-cli" }

// IsReady 可执行文件与模型都存在时为 true
// IsReady reports whether both the executable and the model exist
func (w *WhisperCLI) IsReady() bool {
	if w == nil || strings.TrimSpace(w.opts.Executable) == "" || strings.TrimSpace(w.opts.Model) == "" {
		return false
	}
	if _, err := exec.LookPath(w.opts.Executable); err != nil {
		return false
	}
	_, err := os.Stat(w.opts.Model)
	return err == nil
}

func (w *WhisperCLI) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if !w.IsReady() {
		return "", w.fail(capability.ErrNotConfigured)
	}
	if len(audio) == 0 {
		return "", w.fail(errors.New("empty audio"))
	}
	ctx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "assistant-whisper-")
	if err != nil {
		return "", w.fail(fmt.Errorf("temp dir: %w", err))
	}
	defer os.RemoveAll(dir)

	wavPath := filepath.Join(dir, "input.wav")
	if IsWAV(audio) {
		if err := os.WriteFile(wavPath, audio, 0o600); err != nil {
			return "", w.fail(fmt.Errorf("write audio: %w", err))
		}
	} else {
		if strings.TrimSpace(w.opts.FFmpeg) == "" {
			return "", w.fail(errors.New("audio is not WAV and ffmpeg is not configured"))
		}
		rawPath := filepath.Join(dir, "input.raw")
		if err := os.WriteFile(rawPath, audio, 0o600); err != nil {
			return "", w.fail(fmt.Errorf("write audio: %w", err))
		}
		if err := w.run(ctx, w.opts.FFmpeg, "-y", "-loglevel", "error", "-i", rawPath, "-ar", "16000", "-ac", "1", wavPath); err != nil {
			return "", w.fail(fmt.Errorf("convert audio: %w", err))
		}
	}

	base := filepath.Join(dir, "transcript")
	start := time.Now()
	if err := w.run(ctx, w.opts.Executable,
		"-m", w.opts.Model,
		"-f", wavPath,
		"-otxt",
		"-of", base,
		"-t", strconv.Itoa(w.opts.Threads),
	); err != nil {
		return "", w.fail(err)
	}
	data, err := os.ReadFile(base + ".txt")
	if err != nil {
		return "", w.fail(fmt.Errorf("read transcript: %w", err))
	}
	text := strings.Join(strings.Fields(string(data)), " ")
	if text == "" {
		return "", w.fail(errors.New("empty transcription"))
	}
	w.logger.Debug().Dur("elapsed", time.Since(start)).Int("chars", len(text)).Msg("transcribed")
	return text, nil
}

func (w *WhisperCLI) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", filepath.Base(name), ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[:300]
		}
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", filepath.Base(name), err, msg)
		}
		return fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	return nil
}

func (w *WhisperCLI) fail(err error) error {
	return &capability.TranscriptionError{Engine: w.Name(), Err: err}
}

// IsWAV 检查 RIFF/WAVE 文件头
// IsWAV checks for a RIFF/WAVE header
func IsWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}
