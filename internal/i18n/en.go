package i18n

// EnMessages English message catalog
var EnMessages = map[string]string{
	// Router - busy / truncation
	"router.busy":      "I'm still working on your previous request. Please wait a moment.",
	"router.truncated": "(Note: your message was truncated to %d characters.)",
	"router.internal":  "Something went wrong while handling that: %s",

	// Router - clarification for incomplete actions
	"clarify.query":     "What should I search for? Try: search for <file name>",
	"clarify.recipient": "Who should I send the email to? Try: send email to bob@example.com saying <message>",
	"clarify.body":      "What should the email to %s say? Try: send email to %s saying <message>",
	"clarify.body_any":  "What should the email say? Try: send email to <address> saying <message>",
	"clarify.target":    "Which mode? Say 'switch to online' or 'switch to offline'.",

	// File search
	"files.not_configured": "File search is not configured.",
	"files.none":           "No files found matching '%s'",
	"files.header":         "Found %d files:",
	"files.error":          "File search failed: %s",

	// Mail
	"mail.not_configured": "Email is not configured.",
	"mail.none":           "No emails found.",
	"mail.recent":         "Your %d most recent emails:",
	"mail.found":          "Found %d emails:",
	"mail.error":          "Could not read email: %s",
	"mail.sent":           "Email sent to %s.",
	"mail.send_error":     "Failed to send email to %s: %s",
	"mail.entry_from":     "From: %s",
	"mail.entry_subject":  "Subject: %s",
	"mail.entry_date":     "Date: %s",
	"mail.entry_snippet":  "Snippet: %s",
	"mail.no_subject":     "(no subject)",

	// Mode
	"mode.switched":    "Switched to %s mode (%s).",
	"mode.already":     "Already in %s mode.",
	"mode.unreachable": "Cannot switch to %s mode: the %s backend is %s. Staying in %s mode.",

	// Chat
	"chat.failed":      "The %s backend failed (%s). Try again, or say 'switch to %s'.",
	"chat.both_failed": "Both backends failed: %s (%s), %s (%s). Please try again later.",

	// Status
	"status.title":          "Assistant status",
	"status.mode":           "LLM mode: %s (%s backend)",
	"status.backend":        "%s backend: %s, model %s",
	"status.capability":     "%s: %s",
	"status.ready":          "ready",
	"status.not_configured": "not configured",
	"status.enabled":        "enabled",
	"status.disabled":       "disabled",
	"status.files":          "File search",
	"status.mail":           "Email",
	"status.transcriber":    "Transcriber",
	"status.thinking":       "Thinking...",

	// Help
	"help.text": "I can help with:\n" +
		"• File search: \"search for resume\", \"find all pdf files\"\n" +
		"• Email: \"check my email\", \"unread emails from alice\", \"send email to bob@example.com saying hi\"\n" +
		"• Modes: \"switch to online\", \"switch to offline\", /mode <online|offline>\n" +
		"• Status: \"status\" or /status\n" +
		"• Anything else is answered by the current language model.",

	// Voice
	"voice.transcription": "🎤 Transcription: %s",
	"voice.failed":        "Could not transcribe audio: %s",
	"voice.too_large":     "Voice message is too large.",
	"voice.recording":     "Recording for %d seconds... (/cancel to abort)",
	"voice.cancelled":     "Recording cancelled.",
	"voice.not_active":    "No recording in progress.",
	"voice.busy":          "A recording is already in progress.",

	// Channels
	"channel.unauthorized": "Unauthorized access",

	// UI (TUI/REPL) - Panel titles
	"panel.chat": "Chat",
	"panel.logs": "Logs",

	// UI (TUI sidebar)
	"sidebar.mode":     "Mode",
	"sidebar.backends": "Backends",
	"sidebar.session":  "Session",

	// UI - Input
	"input.placeholder": "Type a message... (Alt+Enter for newline)",
	"input.submit_hint": "Enter to send",

	// UI - Keybindings (TUI)
	"keys.tab":    "tab switch",
	"keys.ctrl_c": "ctrl+c quit",

	// Startup
	"startup.welcome": "Assistant ready in %s mode. Type /help for commands, /quit to exit.",
	"startup.bye":     "Bye.",
}
