package intent

import "assistant/internal/backend"

// Kind 动作类别
// Kind is the action category
type Kind int

const (
	KindChat Kind = iota
	KindFileSearch
	KindEmailRead
	KindEmailSend
	KindModeSwitch
	KindStatusQuery
	KindHelp
)

func (k Kind) String() string {
	switch k {
	case KindFileSearch:
		return "file_search"
	case KindEmailRead:
		return "email_read"
	case KindEmailSend:
		return "email_send"
	case KindModeSwitch:
		return "mode_switch"
	case KindStatusQuery:
		return "status_query"
	case KindHelp:
		return "help"
	default:
		return "chat"
	}
}

// Action 分类结果；每个变体是一个具体类型，路由层按类型分派
// Action is a classification result; each variant is a concrete type the router switches on
type Action interface {
	Kind() Kind
	// MissingParams 返回缺失的必需参数；为空表示动作完整
	// MissingParams returns required parameters that could not be extracted; empty means complete
	MissingParams() []string
}

// Missing parameter names.
const (
	ParamQuery     = "query"
	ParamRecipient = "recipient"
	ParamBody      = "body"
	ParamTarget    = "target"
)

// Incomplete 报告动作是否缺少必需参数
// Incomplete reports whether the action lacks required parameters
func Incomplete(a Action) bool {
	return a != nil && len(a.MissingParams()) > 0
}

// FileSearch 按文件名搜索本地文件
// FileSearch looks up local files by name
type FileSearch struct {
	Query   string
	Missing []string
}

// EmailFilter 邮件列表过滤条件；Limit 为 0 时使用适配器默认值
// EmailFilter narrows a mailbox listing; a zero Limit uses the adapter default
type EmailFilter struct {
	Query      string
	From       string
	UnreadOnly bool
	Limit      int
}

// EmailRead 列出或搜索邮件
// EmailRead lists or searches mail
type EmailRead struct {
	Filter EmailFilter
}

// EmailSend 发送一封邮件
// EmailSend sends one message
type EmailSend struct {
	Recipient string
	Subject   string
	Body      string
	Missing   []string
}

// ModeSwitch 切换在线/离线模式
// ModeSwitch changes between online and offline mode
type ModeSwitch struct {
	Target  backend.Kind
	Missing []string
}

// StatusQuery 查询模式与健康状态
// StatusQuery reports mode and health
type StatusQuery struct{}

// Help 展示可用命令
// Help lists available commands
type Help struct{}

// Chat 自由对话，交给当前后端
// Chat is free-form input handed to the active backend
type Chat struct {
	Text string
}

func (FileSearch) Kind() Kind  { return KindFileSearch }
func (EmailRead) Kind() Kind   { return KindEmailRead }
func (EmailSend) Kind() Kind   { return KindEmailSend }
func (ModeSwitch) Kind() Kind  { return KindModeSwitch }
func (StatusQuery) Kind() Kind { return KindStatusQuery }
func (Help) Kind() Kind        { return KindHelp }
func (Chat) Kind() Kind        { return KindChat }

func (a FileSearch) MissingParams() []string { return a.Missing }
func (EmailRead) MissingParams() []string    { return nil }
func (a EmailSend) MissingParams() []string  { return a.Missing }
func (a ModeSwitch) MissingParams() []string { return a.Missing }
func (StatusQuery) MissingParams() []string  { return nil }
func (Help) MissingParams() []string         { return nil }
func (Chat) MissingParams() []string         { return nil }

// ParseKind 解析 Kind.String 的输出；未知名称视为 chat
// ParseKind reverses Kind.String; unknown names map to KindChat
func ParseKind(s string) Kind {
	for k := KindChat; k <= KindHelp; k++ {
		if k.String() == s {
			return k
		}
	}
	return KindChat
}
