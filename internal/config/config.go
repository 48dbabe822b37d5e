package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ModeConfig struct {
	Default         string `json:"default" yaml:"default"`
	CallTimeoutMS   int    `json:"call_timeout_ms" yaml:"call_timeout_ms"`
	ProbeTimeoutMS  int    `json:"probe_timeout_ms" yaml:"probe_timeout_ms"`
	SlowThresholdMS int    `json:"slow_threshold_ms" yaml:"slow_threshold_ms"`
}

type RemoteConfig struct {
	BaseURL    string `json:"base_url" yaml:"base_url"`
	Model      string `json:"model" yaml:"model"`
	APIKey     string `json:"api_key" yaml:"api_key"`
	TimeoutMS  int    `json:"timeout_ms" yaml:"timeout_ms"`
	MaxRetries int    `json:"max_retries" yaml:"max_retries"`
}

type LocalConfig struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	Model     string `json:"model" yaml:"model"`
	TimeoutMS int    `json:"timeout_ms" yaml:"timeout_ms"`
}

type FallbackConfig struct {
	// Enabled 主后端失败时是否在另一个后端重试一次
	// Enabled retries a failed chat call once on the other backend
	Enabled bool     `json:"enabled" yaml:"enabled"`
	On      []string `json:"on" yaml:"on"`
}

type RouterConfig struct {
	MaxHistory         int    `json:"max_history" yaml:"max_history"`
	MaxInputChars      int    `json:"max_input_chars" yaml:"max_input_chars"`
	HistoryTokenBudget int    `json:"history_token_budget" yaml:"history_token_budget"`
	SessionTTLMinutes  int    `json:"session_ttl_minutes" yaml:"session_ttl_minutes"`
	QueueDepth         int    `json:"queue_depth" yaml:"queue_depth"`
	MaxConcurrent      int    `json:"max_concurrent" yaml:"max_concurrent"`
	Locale             string `json:"locale" yaml:"locale"`
	SystemPrompt       string `json:"system_prompt" yaml:"system_prompt"`
}

type FilesConfig struct {
	SearchPaths   []string `json:"search_paths" yaml:"search_paths"`
	MaxResults    int      `json:"max_results" yaml:"max_results"`
	IncludeHidden bool     `json:"include_hidden" yaml:"include_hidden"`
}

type MailConfig struct {
	IMAPAddr   string `json:"imap_addr" yaml:"imap_addr"`
	SMTPAddr   string `json:"smtp_addr" yaml:"smtp_addr"`
	Username   string `json:"username" yaml:"username"`
	Password   string `json:"password" yaml:"password"`
	From       string `json:"from" yaml:"from"`
	Mailbox    string `json:"mailbox" yaml:"mailbox"`
	MaxResults int    `json:"max_results" yaml:"max_results"`
}

type VoiceConfig struct {
	WhisperExecutable string `json:"whisper_executable" yaml:"whisper_executable"`
	WhisperModel      string `json:"whisper_model" yaml:"whisper_model"`
	Threads           int    `json:"threads" yaml:"threads"`
	TimeoutMS         int    `json:"timeout_ms" yaml:"timeout_ms"`
	FFmpeg            string `json:"ffmpeg" yaml:"ffmpeg"`
	// APIBaseURL/APIKey 配置后使用 OpenAI 兼容的转写接口作为备选
	// APIBaseURL and APIKey enable an OpenAI-compatible transcription endpoint as a second engine
	APIBaseURL    string `json:"api_base_url" yaml:"api_base_url"`
	APIKey        string `json:"api_key" yaml:"api_key"`
	APIModel      string `json:"api_model" yaml:"api_model"`
	RecordCommand string `json:"record_command" yaml:"record_command"`
	RecordSeconds int    `json:"record_seconds" yaml:"record_seconds"`
	Hotkey        bool   `json:"hotkey" yaml:"hotkey"`
}

type TelegramConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	Token          string  `json:"token" yaml:"token"`
	AllowedChatIDs []int64 `json:"allowed_chat_ids" yaml:"allowed_chat_ids"`
}

type WebConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type ScheduleConfig struct {
	StatusCron    string `json:"status_cron" yaml:"status_cron"`
	ProbeBackends bool   `json:"probe_backends" yaml:"probe_backends"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	File   string `json:"file" yaml:"file"`
}

type StorageConfig struct {
	BaseDir string `json:"base_dir" yaml:"base_dir"`
	Journal bool   `json:"journal" yaml:"journal"`
}

type Config struct {
	Mode     ModeConfig     `json:"mode" yaml:"mode"`
	Remote   RemoteConfig   `json:"remote" yaml:"remote"`
	Local    LocalConfig    `json:"local" yaml:"local"`
	Fallback FallbackConfig `json:"fallback" yaml:"fallback"`
	Router   RouterConfig   `json:"router" yaml:"router"`
	Files    FilesConfig    `json:"files" yaml:"files"`
	Mail     MailConfig     `json:"mail" yaml:"mail"`
	Voice    VoiceConfig    `json:"voice" yaml:"voice"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Web      WebConfig      `json:"web" yaml:"web"`
	Schedule ScheduleConfig `json:"schedule" yaml:"schedule"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
}

func Default() Config {
	return Config{
		Mode: ModeConfig{
			Default:         ModeOnline,
			CallTimeoutMS:   DefaultCallTimeoutMS,
			ProbeTimeoutMS:  DefaultProbeTimeoutMS,
			SlowThresholdMS: DefaultSlowThresholdMS,
		},
		Remote: RemoteConfig{
			BaseURL:   "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:     "gemini-1.5-flash",
			TimeoutMS: DefaultCallTimeoutMS,
		},
		Local: LocalConfig{
			BaseURL:   "http://localhost:11434",
			Model:     "mistral:7b",
			TimeoutMS: DefaultCallTimeoutMS,
		},
		Fallback: FallbackConfig{
			Enabled: true,
			On:      append([]string(nil), FallbackReasons...),
		},
		Router: RouterConfig{
			MaxHistory:         DefaultMaxHistory,
			MaxInputChars:      DefaultMaxInputChars,
			HistoryTokenBudget: DefaultHistoryTokenBudget,
			SessionTTLMinutes:  DefaultSessionTTLMinutes,
			QueueDepth:         DefaultQueueDepth,
			MaxConcurrent:      DefaultMaxConcurrent,
		},
		Files: FilesConfig{
			SearchPaths: []string{"~/Documents", "~/Downloads", "~/Desktop", "~/Pictures", "~/Music", "~/Videos"},
			MaxResults:  DefaultFileMaxResults,
		},
		Mail: MailConfig{
			IMAPAddr:   "imap.gmail.com:993",
			SMTPAddr:   "smtp.gmail.com:587",
			Mailbox:    "INBOX",
			MaxResults: DefaultMailMaxResults,
		},
		Voice: VoiceConfig{
			WhisperExecutable: "./whisper.cpp/build/bin/whisper-cli",
			WhisperModel:      "models/ggml-large-v3-turbo-q5_0.bin",
			Threads:           4,
			TimeoutMS:         DefaultWhisperTimeMS,
			FFmpeg:            "ffmpeg",
			RecordSeconds:     DefaultRecordSeconds,
		},
		Web: WebConfig{Addr: DefaultWebAddr},
		Schedule: ScheduleConfig{
			StatusCron: DefaultStatusCron,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			BaseDir: "~/.assistant",
			Journal: true,
		},
	}
}

// Load 按层合并配置：默认值 → 全局文件 → 项目文件 → .env → 环境变量
// Load layers configuration: defaults, global file, project file, .env, then environment
func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("ASSISTANT_CONFIG_PATH")); envPath != "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	cfg, err := applyEnv(cfg)
	if err != nil {
		return Config{}, err
	}
	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var configExtensions = []string{".json", ".jsonc", ".yaml", ".yml"}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	dir := filepath.Join(home, ".assistant")
	out := make([]string, 0, len(configExtensions))
	for _, ext := range configExtensions {
		out = append(out, filepath.Join(dir, "config"+ext))
	}
	return out
}

func findProjectConfigPath() string {
	candidates := make([]string, 0, len(configExtensions)+1)
	for _, ext := range configExtensions {
		candidates = append(candidates, "assistant.config"+ext)
	}
	candidates = append(candidates, filepath.Join(".assistant", "config.json"))
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func normalize(cfg *Config) error {
	def := Default()

	mode, err := normalizeMode(cfg.Mode.Default)
	if err != nil {
		return err
	}
	cfg.Mode.Default = mode
	if cfg.Mode.CallTimeoutMS <= 0 {
		cfg.Mode.CallTimeoutMS = def.Mode.CallTimeoutMS
	}
	if cfg.Mode.ProbeTimeoutMS <= 0 {
		cfg.Mode.ProbeTimeoutMS = def.Mode.ProbeTimeoutMS
	}
	if cfg.Mode.SlowThresholdMS <= 0 {
		cfg.Mode.SlowThresholdMS = def.Mode.SlowThresholdMS
	}

	cfg.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Remote.BaseURL), "/")
	if cfg.Remote.BaseURL == "" {
		cfg.Remote.BaseURL = def.Remote.BaseURL
	}
	if strings.TrimSpace(cfg.Remote.Model) == "" {
		cfg.Remote.Model = def.Remote.Model
	}
	if cfg.Remote.TimeoutMS <= 0 {
		cfg.Remote.TimeoutMS = def.Remote.TimeoutMS
	}
	if cfg.Remote.MaxRetries < 0 {
		cfg.Remote.MaxRetries = 0
	}
	cfg.Local.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Local.BaseURL), "/")
	if cfg.Local.BaseURL == "" {
		cfg.Local.BaseURL = def.Local.BaseURL
	}
	if strings.TrimSpace(cfg.Local.Model) == "" {
		cfg.Local.Model = def.Local.Model
	}
	if cfg.Local.TimeoutMS <= 0 {
		cfg.Local.TimeoutMS = def.Local.TimeoutMS
	}

	reasons, err := normalizeReasons(cfg.Fallback.On)
	if err != nil {
		return err
	}
	cfg.Fallback.On = reasons

	r := &cfg.Router
	if r.MaxHistory <= 0 {
		r.MaxHistory = def.Router.MaxHistory
	}
	if r.MaxInputChars <= 0 {
		r.MaxInputChars = def.Router.MaxInputChars
	}
	if r.HistoryTokenBudget <= 0 {
		r.HistoryTokenBudget = def.Router.HistoryTokenBudget
	}
	if r.SessionTTLMinutes <= 0 {
		r.SessionTTLMinutes = def.Router.SessionTTLMinutes
	}
	if r.QueueDepth <= 0 {
		r.QueueDepth = def.Router.QueueDepth
	}
	if r.MaxConcurrent <= 0 {
		r.MaxConcurrent = def.Router.MaxConcurrent
	}
	r.Locale = strings.TrimSpace(r.Locale)

	cfg.Files.SearchPaths = normalizePaths(cfg.Files.SearchPaths)
	if len(cfg.Files.SearchPaths) == 0 {
		cfg.Files.SearchPaths = normalizePaths(def.Files.SearchPaths)
	}
	if cfg.Files.MaxResults <= 0 {
		cfg.Files.MaxResults = def.Files.MaxResults
	}
	if strings.TrimSpace(cfg.Mail.Mailbox) == "" {
		cfg.Mail.Mailbox = def.Mail.Mailbox
	}
	if cfg.Mail.MaxResults <= 0 {
		cfg.Mail.MaxResults = def.Mail.MaxResults
	}

	if cfg.Voice.Threads <= 0 {
		cfg.Voice.Threads = def.Voice.Threads
	}
	if cfg.Voice.TimeoutMS <= 0 {
		cfg.Voice.TimeoutMS = def.Voice.TimeoutMS
	}
	if cfg.Voice.RecordSeconds <= 0 {
		cfg.Voice.RecordSeconds = def.Voice.RecordSeconds
	}

	if strings.TrimSpace(cfg.Web.Addr) == "" {
		cfg.Web.Addr = def.Web.Addr
	}
	switch spec := strings.TrimSpace(cfg.Schedule.StatusCron); strings.ToLower(spec) {
	case "":
		cfg.Schedule.StatusCron = def.Schedule.StatusCron
	case "off", "none", "disabled":
		// 空字符串表示不运行定时状态任务 / Empty disables the scheduled status job
		cfg.Schedule.StatusCron = ""
	default:
		cfg.Schedule.StatusCron = spec
	}

	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	switch f := strings.ToLower(strings.TrimSpace(cfg.Logging.Format)); f {
	case "", "console", "text":
		cfg.Logging.Format = "console"
	case "json":
		cfg.Logging.Format = f
	default:
		return fmt.Errorf("invalid logging.format %q (want console or json)", cfg.Logging.Format)
	}

	baseDir := cfg.Storage.BaseDir
	if strings.TrimSpace(baseDir) == "" {
		baseDir = def.Storage.BaseDir
	}
	storageDir, err := expandPath(baseDir)
	if err != nil {
		return err
	}
	cfg.Storage.BaseDir = storageDir
	if f := strings.TrimSpace(cfg.Logging.File); f != "" {
		if cfg.Logging.File, err = expandPath(f); err != nil {
			return err
		}
	}
	return nil
}

func normalizeMode(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "online", "remote", "cloud", "gemini":
		return ModeOnline, nil
	case "offline", "local", "ollama":
		return ModeOffline, nil
	default:
		return "", fmt.Errorf("invalid mode %q (want online or offline)", s)
	}
}

func normalizeReasons(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		r := strings.ToLower(strings.TrimSpace(raw))
		if r == "" {
			continue
		}
		if !containsString(FallbackReasons, r) {
			return nil, fmt.Errorf("invalid fallback reason %q (want one of %s)", raw, strings.Join(FallbackReasons, ", "))
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

func normalizePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := map[string]struct{}{}
	for _, p := range paths {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			continue
		}
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		out = append(out, expanded)
	}
	return out
}

func containsString(items []string, needle string) bool {
	for _, item := range items {
		if item == needle {
			return true
		}
	}
	return false
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}
