package i18n

// ZhCNMessages 简体中文消息目录
// ZhCNMessages Simplified Chinese message catalog
var ZhCNMessages = map[string]string{
	// 路由 - 忙碌 / 截断
	"router.busy":      "上一个请求还在处理中，请稍候。",
	"router.truncated": "（提示：输入已截断为 %d 个字符。）",
	"router.internal":  "处理时出错：%s",

	// 路由 - 缺参澄清
	"clarify.query":     "要搜索什么？例如：search for <文件名>",
	"clarify.recipient": "发给谁？请包含邮箱地址，例如：send email to bob@example.com saying <内容>",
	"clarify.body":      "发给 %s 的邮件内容是什么？例如：send email to %s saying <内容>",
	"clarify.body_any":  "邮件内容是什么？例如：send email to <地址> saying <内容>",
	"clarify.target":    "切换到哪个模式？请说 'switch to online' 或 'switch to offline'。",

	// 文件搜索
	"files.not_configured": "文件搜索未配置。",
	"files.none":           "没有找到匹配 '%s' 的文件",
	"files.header":         "找到 %d 个文件：",
	"files.error":          "文件搜索失败：%s",

	// 邮件
	"mail.not_configured": "邮箱未配置。",
	"mail.none":           "没有找到邮件。",
	"mail.recent":         "最近的 %d 封邮件：",
	"mail.found":          "找到 %d 封邮件：",
	"mail.error":          "读取邮件失败：%s",
	"mail.sent":           "邮件已发送给 %s。",
	"mail.send_error":     "发送给 %s 失败：%s",
	"mail.entry_from":     "发件人：%s",
	"mail.entry_subject":  "主题：%s",
	"mail.entry_date":     "日期：%s",
	"mail.entry_snippet":  "摘要：%s",
	"mail.no_subject":     "（无主题）",

	// 模式
	"mode.switched":    "已切换到%s模式（%s）。",
	"mode.already":     "当前已是%s模式。",
	"mode.unreachable": "无法切换到%s模式：%s 后端%s。保持%s模式。",

	// 对话
	"chat.failed":      "%s 后端调用失败（%s）。请重试，或说 'switch to %s'。",
	"chat.both_failed": "两个后端都失败了：%s（%s），%s（%s）。请稍后再试。",

	// 状态
	"status.title":          "助手状态",
	"status.mode":           "LLM 模式：%s（%s 后端）",
	"status.backend":        "%s 后端：%s，模型 %s",
	"status.capability":     "%s：%s",
	"status.ready":          "就绪",
	"status.not_configured": "未配置",
	"status.enabled":        "已启用",
	"status.disabled":       "未启用",
	"status.files":          "文件搜索",
	"status.mail":           "邮箱",
	"status.transcriber":    "语音转写",
	"status.thinking":       "思考中...",

	// 帮助
	"help.text": "我可以帮你：\n" +
		"• 文件搜索：\"search for resume\"、\"find all pdf files\"\n" +
		"• 邮件：\"check my email\"、\"unread emails from alice\"、\"send email to bob@example.com saying hi\"\n" +
		"• 模式：\"switch to online\"、\"switch to offline\"、/mode <online|offline>\n" +
		"• 状态：\"status\" 或 /status\n" +
		"• 其他问题由当前语言模型回答。",

	// 语音
	"voice.transcription": "🎤 转写：%s",
	"voice.failed":        "语音转写失败：%s",
	"voice.too_large":     "语音消息过大。",
	"voice.recording":     "正在录音 %d 秒...（/cancel 取消）",
	"voice.cancelled":     "录音已取消。",
	"voice.not_active":    "当前没有录音。",
	"voice.busy":          "已有录音在进行中。",

	// 渠道
	"channel.unauthorized": "未授权访问",

	// TUI - 面板标题
	"panel.chat": "对话",
	"panel.logs": "日志",

	// TUI - 侧边栏
	"sidebar.mode":     "模式",
	"sidebar.backends": "后端",
	"sidebar.session":  "会话",

	// TUI - 输入
	"input.placeholder": "输入消息... (Alt+Enter 换行)",
	"input.submit_hint": "回车发送",

	// TUI - 快捷键提示
	"keys.tab":    "tab 切换面板",
	"keys.ctrl_c": "ctrl+c 退出",

	// 启动
	"startup.welcome": "助手已就绪，当前为%s模式。输入 /help 查看命令，/quit 退出。",
	"startup.bye":     "再见。",
}
