// Package tui 全屏终端界面：对话面板、日志面板与模式/后端健康侧边栏。
// Package tui is the full-screen terminal UI with chat and logs panels and a mode/health sidebar.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"assistant/internal/i18n"
	"assistant/internal/logging"
	"assistant/internal/mode"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PanelID 面板标识
// PanelID identifies a panel
type PanelID int

const (
	PanelChat PanelID = iota
	PanelLogs
)

const (
	panelCount      = 2
	maxLogLines     = 1000
	refreshInterval = 2 * time.Second
)

// AskFunc 同步提交一条输入并返回回复
// AskFunc submits one input and returns the reply
type AskFunc func(ctx context.Context, text string) (string, error)

// --- Tea Messages ---

// ReplyMsg 一次提交的回复
// ReplyMsg carries the reply to one submission
type ReplyMsg struct {
	Text string
	Err  error
}

// SnapshotMsg 模式与后端健康快照
// SnapshotMsg carries a mode and health snapshot
type SnapshotMsg struct{ Snapshot mode.Snapshot }

// LogMsg 一条日志
// LogMsg carries one log entry
type LogMsg struct{ Entry logging.Entry }

type refreshMsg struct{}

// App Bubble Tea 主 Model
// App is the main Bubble Tea model
type App struct {
	// 布局 / Layout
	width  int
	height int

	// 面板 / Panels
	activePanel PanelID
	chatView    viewport.Model
	logsView    viewport.Model

	input textarea.Model

	// 内容 / Content
	chatLines []string
	logLines  []string

	// 侧边栏数据 / Sidebar data
	sessionID string
	snapshot  mode.Snapshot
	haveSnap  bool

	waiting   bool
	lastError string

	ask        AskFunc
	snapshotFn func() mode.Snapshot
	markdown   bool

	theme  Theme
	keys   KeyMap
	locale *i18n.I18n
}

// Options 构建 App 所需依赖
// Options carries what the App needs
type Options struct {
	SessionID string
	Ask       AskFunc
	// Snapshot 为 nil 时侧边栏不显示后端
	// Snapshot nil hides the backends in the sidebar
	Snapshot func() mode.Snapshot
	// Markdown 使用 glamour 渲染回复
	// Markdown renders replies with glamour
	Markdown bool
	I18n     *i18n.I18n
}

// NewApp 创建 TUI 应用
// NewApp creates a new TUI application
func NewApp(opts Options) App {
	locale := opts.I18n
	if locale == nil {
		locale = i18n.New("")
	}
	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = locale.T("input.placeholder")
	ta.CharLimit = 8192
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	a := App{
		activePanel: PanelChat,
		input:       ta,
		sessionID:   opts.SessionID,
		ask:         opts.Ask,
		snapshotFn:  opts.Snapshot,
		markdown:    opts.Markdown,
		theme:       DarkTheme(),
		keys:        keys,
		locale:      locale,
	}
	if a.snapshotFn != nil {
		a.snapshot = a.snapshotFn()
		a.haveSnap = true
	}
	return a
}

func (a App) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, a.scheduleRefresh())
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.SwitchPanel):
			a.activePanel = (a.activePanel + 1) % panelCount
			return a, nil
		case key.Matches(msg, a.keys.ClearScreen):
			a.chatLines = nil
			a.chatView.SetContent("")
			return a, nil
		case key.Matches(msg, a.keys.PageUp), key.Matches(msg, a.keys.PageDown):
			var cmd tea.Cmd
			if a.activePanel == PanelLogs {
				a.logsView, cmd = a.logsView.Update(msg)
			} else {
				a.chatView, cmd = a.chatView.Update(msg)
			}
			return a, cmd
		case key.Matches(msg, a.keys.Submit):
			return a.submit()
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case ReplyMsg:
		a.waiting = false
		if msg.Err != nil && msg.Text == "" {
			a.lastError = msg.Err.Error()
			a.appendChat(a.theme.ErrorStyle.Render("❌ " + msg.Err.Error()))
		} else {
			a.appendChat(a.renderReply(msg.Text))
		}
		return a, a.refreshNow()

	case SnapshotMsg:
		a.snapshot = msg.Snapshot
		a.haveSnap = true
		return a, nil

	case refreshMsg:
		return a, tea.Batch(a.refreshNow(), a.scheduleRefresh())

	case LogMsg:
		a.appendLog(RenderLogEntry(msg.Entry, a.theme))
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit 发送输入框内容；/quit 退出
// submit sends the input box content; /quit exits
func (a App) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(a.input.Value())
	if text == "" {
		return a, nil
	}
	a.input.Reset()
	switch strings.ToLower(text) {
	case "/quit", "/exit":
		return a, tea.Quit
	}
	a.activePanel = PanelChat
	a.appendChat(a.theme.UserStyle.Render("👤 " + text))
	if a.ask == nil {
		return a, nil
	}
	a.waiting = true
	ask := a.ask
	return a, func() tea.Msg {
		reply, err := ask(context.Background(), text)
		return ReplyMsg{Text: reply, Err: err}
	}
}

func (a App) scheduleRefresh() tea.Cmd {
	if a.snapshotFn == nil {
		return nil
	}
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (a App) refreshNow() tea.Cmd {
	fn := a.snapshotFn
	if fn == nil {
		return nil
	}
	return func() tea.Msg { return SnapshotMsg{Snapshot: fn()} }
}

func (a App) renderReply(text string) string {
	if a.markdown {
		if out := RenderMarkdown(text, a.chatView.Width-2); out != "" {
			return out
		}
	}
	return text
}

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	sidebarWidth := a.sidebarWidth()
	mainWidth := a.width - sidebarWidth
	if sidebarWidth > 0 {
		mainWidth-- // border
	}

	inputHeight := 5
	statusHeight := 1
	tabHeight := 1
	panelHeight := a.height - inputHeight - statusHeight - tabHeight
	if panelHeight < 3 {
		panelHeight = 3
	}

	tabs := a.renderTabs()
	panel := a.renderActivePanel(mainWidth, panelHeight)
	inputBox := a.theme.InputStyle.Width(mainWidth).Render(a.input.View())
	statusBar := a.renderStatusBar(a.width)

	main := lipgloss.JoinVertical(lipgloss.Left, tabs, panel, inputBox)
	if sidebarWidth > 0 {
		sidebar := a.renderSidebar(sidebarWidth, a.height-statusHeight)
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, sidebar)
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, statusBar)
}

// --- 内部方法 / Internal methods ---

func (a App) sidebarWidth() int {
	if a.width < 80 {
		return 0
	}
	w := a.width * 25 / 100
	if w < 24 {
		w = 24
	}
	if w > 40 {
		w = 40
	}
	return w
}

func (a *App) relayout() {
	mainWidth := a.width - a.sidebarWidth()
	panelHeight := a.height - 8
	if panelHeight < 3 {
		panelHeight = 3
	}

	a.chatView = viewport.New(mainWidth, panelHeight)
	a.chatView.SetContent(strings.Join(a.chatLines, "\n"))
	a.chatView.GotoBottom()

	a.logsView = viewport.New(mainWidth, panelHeight)
	a.logsView.SetContent(strings.Join(a.logLines, "\n"))
	a.logsView.GotoBottom()

	a.input.SetWidth(mainWidth - 4)
}

func (a *App) appendChat(text string) {
	a.chatLines = append(a.chatLines, text, "")
	a.chatView.SetContent(strings.Join(a.chatLines, "\n"))
	a.chatView.GotoBottom()
}

func (a *App) appendLog(text string) {
	a.logLines = append(a.logLines, text)
	if len(a.logLines) > maxLogLines {
		a.logLines = a.logLines[len(a.logLines)-maxLogLines:]
	}
	a.logsView.SetContent(strings.Join(a.logLines, "\n"))
	a.logsView.GotoBottom()
}

// --- 渲染方法 / Render methods ---

func (a App) renderTabs() string {
	tabs := []struct {
		id   PanelID
		name string
	}{
		{PanelChat, a.locale.T("panel.chat")},
		{PanelLogs, a.locale.T("panel.logs")},
	}

	var parts []string
	for _, tab := range tabs {
		style := a.theme.InactiveTabStyle
		if tab.id == a.activePanel {
			style = a.theme.ActiveTabStyle
		}
		parts = append(parts, style.Render(tab.name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (a App) renderActivePanel(width, height int) string {
	style := lipgloss.NewStyle().Width(width).Height(height)

	var content string
	switch a.activePanel {
	case PanelChat:
		content = a.chatView.View()
	case PanelLogs:
		if len(a.logLines) == 0 {
			content = a.theme.MutedStyle.Render("  No logs yet")
		} else {
			content = a.logsView.View()
		}
	}
	return style.Render(content)
}

func (a App) renderSidebar(width, height int) string {
	parts := []string{a.theme.TitleStyle.Render(" Assistant"), ""}

	if a.haveSnap {
		current := a.snapshot.Handle(a.snapshot.Current)
		parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.mode")))
		parts = append(parts, fmt.Sprintf("  %s (%s)", a.snapshot.Current.ModeName(), current.Kind.String()))
		parts = append(parts, "")

		parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.backends")))
		for _, h := range []mode.Handle{a.snapshot.Remote, a.snapshot.Local} {
			parts = append(parts, renderBackendLine(h, h.Kind == a.snapshot.Current, width, a.theme)...)
		}
		parts = append(parts, "")
	}

	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.session")))
	parts = append(parts, "  "+a.sessionID)

	style := a.theme.SidebarStyle.Width(width).Height(height)
	return style.Render(strings.Join(parts, "\n"))
}

func (a App) renderStatusBar(width int) string {
	status := a.locale.T("status.ready")
	if a.waiting {
		status = a.locale.T("status.thinking")
	}
	left := " " + status
	if a.haveSnap {
		h := a.snapshot.Handle(a.snapshot.Current)
		left = fmt.Sprintf(" %s · %s · %s", a.snapshot.Current.ModeName(), h.Model, status)
	}
	right := fmt.Sprintf("%s · %s  ", a.locale.T("keys.tab"), a.locale.T("keys.ctrl_c"))

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	bar := left + strings.Repeat(" ", gap) + right
	return a.theme.StatusBarStyle.Width(width).Render(bar)
}
