package tui

import (
	"fmt"
	"strings"

	"assistant/internal/logging"
	"assistant/internal/mode"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
)

// RenderMarkdown 使用 Glamour 渲染 markdown 文本
// RenderMarkdown renders markdown text using Glamour
func RenderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimRight(rendered, "\n")
}

// RenderLogEntry 一行日志：时间 级别 [组件] 消息
// RenderLogEntry formats one log line as time, level, component, message
func RenderLogEntry(e logging.Entry, theme Theme) string {
	level := strings.ToUpper(e.Level)
	if len(level) > 4 {
		level = level[:4]
	}
	switch e.Level {
	case "error", "fatal", "panic":
		level = theme.ErrorStyle.Render(level)
	case "warn":
		level = theme.WarnStyle.Render(level)
	default:
		level = theme.MutedStyle.Render(level)
	}
	line := fmt.Sprintf("%s %s", e.Time.Format("15:04:05"), level)
	if e.Component != "" {
		line += " [" + e.Component + "]"
	}
	line += " " + e.Message
	if e.Error != "" {
		line += ": " + e.Error
	}
	return line
}

// renderBackendLine 侧边栏中的一个后端：名称 健康 模型
func renderBackendLine(h mode.Handle, active bool, width int, theme Theme) []string {
	marker := "  "
	if active {
		marker = "▸ "
	}
	head := marker + h.Kind.String() + " " + theme.HealthStyle(h.Health).Render("● "+h.Health.String())
	model := "    " + runewidth.Truncate(h.Model, max(width-6, 4), "…")
	return []string{head, theme.MutedStyle.Render(model)}
}
