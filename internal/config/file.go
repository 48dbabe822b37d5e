package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// 文件中的布尔值使用指针，以区分“未设置”与 false
// Booleans are pointers in the file structs so that unset differs from false.

type fileFallbackConfig struct {
	Enabled *bool     `json:"enabled" yaml:"enabled"`
	On      *[]string `json:"on" yaml:"on"`
}

type fileFilesConfig struct {
	SearchPaths   *[]string `json:"search_paths" yaml:"search_paths"`
	MaxResults    int       `json:"max_results" yaml:"max_results"`
	IncludeHidden *bool     `json:"include_hidden" yaml:"include_hidden"`
}

type fileVoiceConfig struct {
	WhisperExecutable string `json:"whisper_executable" yaml:"whisper_executable"`
	WhisperModel      string `json:"whisper_model" yaml:"whisper_model"`
	Threads           int    `json:"threads" yaml:"threads"`
	TimeoutMS         int    `json:"timeout_ms" yaml:"timeout_ms"`
	FFmpeg            string `json:"ffmpeg" yaml:"ffmpeg"`
	APIBaseURL        string `json:"api_base_url" yaml:"api_base_url"`
	APIKey            string `json:"api_key" yaml:"api_key"`
	APIModel          string `json:"api_model" yaml:"api_model"`
	RecordCommand     string `json:"record_command" yaml:"record_command"`
	RecordSeconds     int    `json:"record_seconds" yaml:"record_seconds"`
	Hotkey            *bool  `json:"hotkey" yaml:"hotkey"`
}

type fileTelegramConfig struct {
	Enabled        *bool    `json:"enabled" yaml:"enabled"`
	Token          string   `json:"token" yaml:"token"`
	AllowedChatIDs *[]int64 `json:"allowed_chat_ids" yaml:"allowed_chat_ids"`
}

type fileWebConfig struct {
	Enabled *bool  `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type fileScheduleConfig struct {
	StatusCron    string `json:"status_cron" yaml:"status_cron"`
	ProbeBackends *bool  `json:"probe_backends" yaml:"probe_backends"`
}

type fileStorageConfig struct {
	BaseDir string `json:"base_dir" yaml:"base_dir"`
	Journal *bool  `json:"journal" yaml:"journal"`
}

type fileConfig struct {
	Mode     *ModeConfig         `json:"mode" yaml:"mode"`
	Remote   *RemoteConfig       `json:"remote" yaml:"remote"`
	Local    *LocalConfig        `json:"local" yaml:"local"`
	Fallback *fileFallbackConfig `json:"fallback" yaml:"fallback"`
	Router   *RouterConfig       `json:"router" yaml:"router"`
	Files    *fileFilesConfig    `json:"files" yaml:"files"`
	Mail     *MailConfig         `json:"mail" yaml:"mail"`
	Voice    *fileVoiceConfig    `json:"voice" yaml:"voice"`
	Telegram *fileTelegramConfig `json:"telegram" yaml:"telegram"`
	Web      *fileWebConfig      `json:"web" yaml:"web"`
	Schedule *fileScheduleConfig `json:"schedule" yaml:"schedule"`
	Logging  *LoggingConfig      `json:"logging" yaml:"logging"`
	Storage  *fileStorageConfig  `json:"storage" yaml:"storage"`
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	var fileCfg fileConfig
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return fmt.Errorf("parse config %q: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(stripJSONComments(data), &fileCfg); err != nil {
			return fmt.Errorf("parse config %q: %w", resolved, err)
		}
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Mode != nil {
		cfg.Mode = mergeMode(cfg.Mode, *fc.Mode)
	}
	if fc.Remote != nil {
		cfg.Remote = mergeRemote(cfg.Remote, *fc.Remote)
	}
	if fc.Local != nil {
		cfg.Local = mergeLocal(cfg.Local, *fc.Local)
	}
	if fc.Fallback != nil {
		if fc.Fallback.Enabled != nil {
			cfg.Fallback.Enabled = *fc.Fallback.Enabled
		}
		if fc.Fallback.On != nil {
			cfg.Fallback.On = append([]string(nil), (*fc.Fallback.On)...)
		}
	}
	if fc.Router != nil {
		cfg.Router = mergeRouter(cfg.Router, *fc.Router)
	}
	if fc.Files != nil {
		if fc.Files.SearchPaths != nil {
			cfg.Files.SearchPaths = append([]string(nil), (*fc.Files.SearchPaths)...)
		}
		if fc.Files.MaxResults > 0 {
			cfg.Files.MaxResults = fc.Files.MaxResults
		}
		if fc.Files.IncludeHidden != nil {
			cfg.Files.IncludeHidden = *fc.Files.IncludeHidden
		}
	}
	if fc.Mail != nil {
		cfg.Mail = mergeMail(cfg.Mail, *fc.Mail)
	}
	if fc.Voice != nil {
		cfg.Voice = mergeVoice(cfg.Voice, *fc.Voice)
	}
	if fc.Telegram != nil {
		if fc.Telegram.Enabled != nil {
			cfg.Telegram.Enabled = *fc.Telegram.Enabled
		}
		if strings.TrimSpace(fc.Telegram.Token) != "" {
			cfg.Telegram.Token = fc.Telegram.Token
		}
		if fc.Telegram.AllowedChatIDs != nil {
			cfg.Telegram.AllowedChatIDs = append([]int64(nil), (*fc.Telegram.AllowedChatIDs)...)
		}
	}
	if fc.Web != nil {
		if fc.Web.Enabled != nil {
			cfg.Web.Enabled = *fc.Web.Enabled
		}
		if strings.TrimSpace(fc.Web.Addr) != "" {
			cfg.Web.Addr = fc.Web.Addr
		}
	}
	if fc.Schedule != nil {
		if strings.TrimSpace(fc.Schedule.StatusCron) != "" {
			cfg.Schedule.StatusCron = fc.Schedule.StatusCron
		}
		if fc.Schedule.ProbeBackends != nil {
			cfg.Schedule.ProbeBackends = *fc.Schedule.ProbeBackends
		}
	}
	if fc.Logging != nil {
		cfg.Logging = mergeLogging(cfg.Logging, *fc.Logging)
	}
	if fc.Storage != nil {
		if strings.TrimSpace(fc.Storage.BaseDir) != "" {
			cfg.Storage.BaseDir = fc.Storage.BaseDir
		}
		if fc.Storage.Journal != nil {
			cfg.Storage.Journal = *fc.Storage.Journal
		}
	}
}

func mergeMode(base, override ModeConfig) ModeConfig {
	if strings.TrimSpace(override.Default) != "" {
		base.Default = override.Default
	}
	if override.CallTimeoutMS > 0 {
		base.CallTimeoutMS = override.CallTimeoutMS
	}
	if override.ProbeTimeoutMS > 0 {
		base.ProbeTimeoutMS = override.ProbeTimeoutMS
	}
	if override.SlowThresholdMS > 0 {
		base.SlowThresholdMS = override.SlowThresholdMS
	}
	return base
}

func mergeRemote(base, override RemoteConfig) RemoteConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	if override.MaxRetries > 0 {
		base.MaxRetries = override.MaxRetries
	}
	return base
}

func mergeLocal(base, override LocalConfig) LocalConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	return base
}

func mergeRouter(base, override RouterConfig) RouterConfig {
	if override.MaxHistory > 0 {
		base.MaxHistory = override.MaxHistory
	}
	if override.MaxInputChars > 0 {
		base.MaxInputChars = override.MaxInputChars
	}
	if override.HistoryTokenBudget > 0 {
		base.HistoryTokenBudget = override.HistoryTokenBudget
	}
	if override.SessionTTLMinutes > 0 {
		base.SessionTTLMinutes = override.SessionTTLMinutes
	}
	if override.QueueDepth > 0 {
		base.QueueDepth = override.QueueDepth
	}
	if override.MaxConcurrent > 0 {
		base.MaxConcurrent = override.MaxConcurrent
	}
	if strings.TrimSpace(override.Locale) != "" {
		base.Locale = override.Locale
	}
	if strings.TrimSpace(override.SystemPrompt) != "" {
		base.SystemPrompt = override.SystemPrompt
	}
	return base
}

func mergeMail(base, override MailConfig) MailConfig {
	if strings.TrimSpace(override.IMAPAddr) != "" {
		base.IMAPAddr = override.IMAPAddr
	}
	if strings.TrimSpace(override.SMTPAddr) != "" {
		base.SMTPAddr = override.SMTPAddr
	}
	if strings.TrimSpace(override.Username) != "" {
		base.Username = override.Username
	}
	if override.Password != "" {
		base.Password = override.Password
	}
	if strings.TrimSpace(override.From) != "" {
		base.From = override.From
	}
	if strings.TrimSpace(override.Mailbox) != "" {
		base.Mailbox = override.Mailbox
	}
	if override.MaxResults > 0 {
		base.MaxResults = override.MaxResults
	}
	return base
}

func mergeVoice(base VoiceConfig, override fileVoiceConfig) VoiceConfig {
	if strings.TrimSpace(override.WhisperExecutable) != "" {
		base.WhisperExecutable = override.WhisperExecutable
	}
	if strings.TrimSpace(override.WhisperModel) != "" {
		base.WhisperModel = override.WhisperModel
	}
	if override.Threads > 0 {
		base.Threads = override.Threads
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	if strings.TrimSpace(override.FFmpeg) != "" {
		base.FFmpeg = override.FFmpeg
	}
	if strings.TrimSpace(override.APIBaseURL) != "" {
		base.APIBaseURL = override.APIBaseURL
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if strings.TrimSpace(override.APIModel) != "" {
		base.APIModel = override.APIModel
	}
	if strings.TrimSpace(override.RecordCommand) != "" {
		base.RecordCommand = override.RecordCommand
	}
	if override.RecordSeconds > 0 {
		base.RecordSeconds = override.RecordSeconds
	}
	if override.Hotkey != nil {
		base.Hotkey = *override.Hotkey
	}
	return base
}

func mergeLogging(base, override LoggingConfig) LoggingConfig {
	if strings.TrimSpace(override.Level) != "" {
		base.Level = override.Level
	}
	if strings.TrimSpace(override.Format) != "" {
		base.Format = override.Format
	}
	if strings.TrimSpace(override.File) != "" {
		base.File = override.File
	}
	return base
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}
