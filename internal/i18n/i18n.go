package i18n

import (
	"fmt"
	"maps"
	"os"
	"strings"
)

// Locale 支持的语言 / Supported locales
const (
	LocaleEN   = "en"
	LocaleZhCN = "zh-CN"
)

// I18n 一个 locale 的消息目录；创建后只读，可并发使用
// I18n is the message catalog of one locale; read-only after New and safe for concurrent use
type I18n struct {
	locale   string
	messages map[string]string
}

// New 创建目录；locale 为空时从环境变量检测。缺失的键回退到英文
// New builds the catalog, detecting the locale from the environment when empty.
// Keys missing from a translation fall back to English.
func New(locale string) *I18n {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		locale = DetectLocale()
	}
	locale = normalizeLocale(locale)

	messages := maps.Clone(EnMessages)
	if locale == LocaleZhCN {
		maps.Copy(messages, ZhCNMessages)
	}
	return &I18n{locale: locale, messages: messages}
}

// T 按键取文本，args 非空时按 fmt 格式化；未知键原样返回
// T looks up key and formats it with args; unknown keys are returned as-is
func (i *I18n) T(key string, args ...any) string {
	tmpl, ok := i.messages[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

func (i *I18n) Locale() string {
	return i.locale
}

// DetectLocale 依次读取 ASSISTANT_LANG、LANG、LC_ALL、LC_MESSAGES
// DetectLocale reads ASSISTANT_LANG, LANG, LC_ALL and LC_MESSAGES in that order
func DetectLocale() string {
	for _, key := range []string{"ASSISTANT_LANG", "LANG", "LC_ALL", "LC_MESSAGES"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return normalizeLocale(v)
		}
	}
	return LocaleEN
}

// normalizeLocale 把 zh_CN.UTF-8 之类的写法归一为目录名
func normalizeLocale(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return LocaleEN
	}
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.ReplaceAll(s, "_", "-")
	switch lower := strings.ToLower(s); {
	case strings.HasPrefix(lower, "zh"):
		return LocaleZhCN
	case strings.HasPrefix(lower, "en"):
		return LocaleEN
	}
	return s
}
