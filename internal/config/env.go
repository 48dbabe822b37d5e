package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv 读取 .env；已存在的环境变量不会被覆盖，文件缺失不算错误
// loadDotEnv reads a .env file without overriding variables already set; a missing file is fine
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := env("ASSISTANT_MODE"); v != "" {
		cfg.Mode.Default = v
	}
	if v := env("ASSISTANT_REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := env("ASSISTANT_REMOTE_MODEL"); v != "" {
		cfg.Remote.Model = v
	} else if v := env("GEMINI_MODEL"); v != "" {
		cfg.Remote.Model = v
	}
	if v := firstEnv("ASSISTANT_REMOTE_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
	}
	if v := env("OLLAMA_BASE_URL"); v != "" {
		cfg.Local.BaseURL = v
	}
	if v := env("OLLAMA_MODEL"); v != "" {
		cfg.Local.Model = v
	}

	if v := env("ASSISTANT_FALLBACK"); v != "" {
		if b, ok := parseSwitch(v); ok {
			cfg.Fallback.Enabled = b
		} else {
			cfg.Fallback.Enabled = true
			cfg.Fallback.On = splitList(v)
		}
	}
	if err := envInt("ASSISTANT_MAX_HISTORY", &cfg.Router.MaxHistory); err != nil {
		return Config{}, err
	}
	if err := envInt("ASSISTANT_MAX_INPUT", &cfg.Router.MaxInputChars); err != nil {
		return Config{}, err
	}
	if err := envInt("ASSISTANT_CALL_TIMEOUT_MS", &cfg.Mode.CallTimeoutMS); err != nil {
		return Config{}, err
	}

	if v := env("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
		cfg.Telegram.Enabled = true
	}
	if v := env("TELEGRAM_CHAT_ID"); v != "" {
		ids := make([]int64, 0, 1)
		for _, part := range splitList(v) {
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return Config{}, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %q", part)
			}
			ids = append(ids, id)
		}
		cfg.Telegram.AllowedChatIDs = ids
	}

	if v := env("WHISPER_EXECUTABLE"); v != "" {
		cfg.Voice.WhisperExecutable = v
	}
	if v := env("WHISPER_MODEL_PATH"); v != "" {
		cfg.Voice.WhisperModel = v
	}
	if v := env("MAIL_USERNAME"); v != "" {
		cfg.Mail.Username = v
	}
	if v := os.Getenv("MAIL_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
	if v := env("ASSISTANT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := env("ASSISTANT_HOME"); v != "" {
		cfg.Storage.BaseDir = v
	}
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := env(k); v != "" {
			return v
		}
	}
	return ""
}

// parseSwitch 识别 on/off 一类的开关写法（大小写不敏感）
// parseSwitch recognizes on/off style flags, case-insensitively
func parseSwitch(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "on", "yes", "y", "enabled", "enable":
		return true, true
	case "0", "f", "false", "off", "no", "n", "disabled", "disable", "none":
		return false, true
	}
	return false, false
}

func envInt(key string, dst *int) error {
	v := env(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid %s: %q", key, v)
	}
	*dst = n
	return nil
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
