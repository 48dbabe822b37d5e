package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultRecordCommand 默认录音命令；{seconds} 会被替换为录音时长
// DefaultRecordCommand is the default recorder; {seconds} is replaced by the duration
const DefaultRecordCommand = "arecord -q -f S16_LE -r 16000 -c 1 -t wav -d {seconds} -"

const secondsPlaceholder = "{seconds}"

// Recorder 录制一段固定时长的音频
// Recorder captures a fixed-length clip of audio
type Recorder interface {
	Record(ctx context.Context, d time.Duration) ([]byte, error)
}

// CommandRecorder 调用外部录音程序，从 stdout 读取 WAV
// CommandRecorder runs an external recorder and reads WAV from its stdout
type CommandRecorder struct {
	Command string
}

// NewCommandRecorder 空命令使用 DefaultRecordCommand
// NewCommandRecorder falls back to DefaultRecordCommand for an empty command
func NewCommandRecorder(command string) *CommandRecorder {
	if strings.TrimSpace(command) == "" {
		command = DefaultRecordCommand
	}
	return &CommandRecorder{Command: command}
}

func (r *CommandRecorder) Record(ctx context.Context, d time.Duration) ([]byte, error) {
	args := r.args(d)
	if len(args) == 0 {
		return nil, errors.New("record: empty command")
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("record: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("record: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, errors.New("record: recorder produced no audio")
	}
	return stdout.Bytes(), nil
}

func (r *CommandRecorder) args(d time.Duration) []string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	fields := strings.Fields(r.Command)
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, secondsPlaceholder, strconv.Itoa(secs))
	}
	return fields
}
