package intent

import (
	"regexp"
	"strconv"
	"strings"

	"assistant/internal/backend"
)

var (
	botSuffixRe = regexp.MustCompile(`^(/\w+)@\w+`)

	modeCmdRe    = regexp.MustCompile(`(?i)^/mode(?:\s+(\S+))?\s*$`)
	modeSwitchRe = regexp.MustCompile(`(?i)\b(?:switch|change|go|set|turn|put|use)\b(?:\s+(?:to|into|the|back|over|mode|me|it|on|my))*\s+(online|offline|remote|local|cloud)(?:\s+(?:mode|model|backend|llm))?(?:[\s,]+(?:please|pls|now|right now|thanks|thank you|for me))*\s*[.!?]*$`)
	modeBareRe   = regexp.MustCompile(`(?i)^(?:please\s+)?(?:switch|change|toggle)\s+(?:the\s+)?mode\s*[.!?]*$`)

	emailSendRe    = regexp.MustCompile(`(?i)\b(?:send|compose|write)\s+(?:an?\s+)?(?:e-?mail|mail)\b|\be-?mail\s+to\b`)
	emailAddrRe    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	emailSubjectRe = regexp.MustCompile(`(?is)\bsubject\s*[:=]?\s*(.+?)(?:\s*[,;]?\s*\b(?:body|saying|message)\b|$)`)
	emailBodyRe    = regexp.MustCompile(`(?is)\b(?:body|saying|message)\b\s*[:=]?\s*(.+)$`)
	emailTailRe    = regexp.MustCompile(`(?s)^\s*[:\-]\s*(.+)$`)

	emailReadRe   = regexp.MustCompile(`(?i)\b(?:e-?mails?|inbox|mail|gmail|mailbox)\b`)
	emailQueryRe  = regexp.MustCompile(`(?i)\b(?:search|find|look\s+for)\s+(?:in\s+)?(?:my\s+)?(?:e-?mails?|mail|inbox|gmail)\s+(?:for\s+|about\s+)?(.+)$`)
	emailAboutRe  = regexp.MustCompile(`(?i)\b(?:e-?mails?|mail)\s+(?:about|regarding|mentioning)\s+(.+)$`)
	emailFromRe   = regexp.MustCompile(`(?i)\b(?:e-?mails?|mail|messages?)\s+from\s+(\S+)`)
	emailUnreadRe = regexp.MustCompile(`(?i)\bunread\b|\bnew\s+(?:e-?mails?|mail)\b`)
	emailLimitRe  = regexp.MustCompile(`(?i)\b(?:last|latest|recent)\s+(\d{1,2})\b`)

	fileTriggerRe = regexp.MustCompile(`(?i)\b(?:search|find|look\s+for|locate|where\s+is)\b`)
	fileQueryRes  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bfind\s+all\s+(.+?)\s+files?\b`),
		regexp.MustCompile(`(?i)\bsearch\s+for\s+(.+)`),
		regexp.MustCompile(`(?i)\blook\s+for\s+(.+)`),
		regexp.MustCompile(`(?i)\bfind\s+(.+)`),
		regexp.MustCompile(`(?i)\bsearch\s+(.+)`),
		regexp.MustCompile(`(?i)\blocate\s+(.+)`),
		regexp.MustCompile(`(?i)\bwhere\s+is\s+(.+)`),
	}
	fileLeadRe  = regexp.MustCompile(`(?i)^(?:(?:me|my|the|a|an|all|for|files?\s+(?:named|called)|documents?\s+(?:named|called))\s+)+`)
	fileTrailRe = regexp.MustCompile(`(?i)\s+(?:files?|documents?|docs?)$`)

	statusRe = regexp.MustCompile(`(?i)^/status\b|\bstatus\b|\bhealth\b|\b(?:what|which|current)\s+mode\b`)
	helpRe   = regexp.MustCompile(`(?i)^/(?:help|start)\b|\bhelp\b|\bwhat\s+can\s+you\s+do\b|\bcommands\b`)
)

// Classify 把原始文本映射为一个动作。纯函数：相同输入得到相同结果，无法识别时回落为 Chat
// Classify maps raw text to an Action. It is pure and deterministic and falls back to Chat
func Classify(text string) Action {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Help{}
	}
	normalized := botSuffixRe.ReplaceAllString(trimmed, "$1")

	if a, ok := classifyMode(normalized); ok {
		return a
	}
	if emailSendRe.MatchString(normalized) {
		return parseEmailSend(normalized)
	}
	if emailReadRe.MatchString(normalized) {
		return parseEmailRead(normalized)
	}
	if fileTriggerRe.MatchString(normalized) {
		return parseFileSearch(normalized)
	}
	if statusRe.MatchString(normalized) {
		return StatusQuery{}
	}
	if helpRe.MatchString(normalized) {
		return Help{}
	}
	return Chat{Text: trimmed}
}

func classifyMode(text string) (Action, bool) {
	if m := modeCmdRe.FindStringSubmatch(text); m != nil {
		if m[1] == "" {
			return StatusQuery{}, true
		}
		target, err := backend.ParseKind(m[1])
		if err != nil {
			return ModeSwitch{Missing: []string{ParamTarget}}, true
		}
		return ModeSwitch{Target: target}, true
	}
	if m := modeSwitchRe.FindStringSubmatch(text); m != nil {
		target, err := backend.ParseKind(m[1])
		if err != nil {
			return ModeSwitch{Missing: []string{ParamTarget}}, true
		}
		return ModeSwitch{Target: target}, true
	}
	if modeBareRe.MatchString(text) {
		return ModeSwitch{Missing: []string{ParamTarget}}, true
	}
	return nil, false
}

func parseEmailSend(text string) Action {
	a := EmailSend{}
	if loc := emailAddrRe.FindStringIndex(text); loc != nil {
		a.Recipient = text[loc[0]:loc[1]]
	}
	if m := emailSubjectRe.FindStringSubmatch(text); m != nil {
		a.Subject = cleanPhrase(m[1])
	}
	if m := emailBodyRe.FindStringSubmatch(text); m != nil {
		a.Body = cleanPhrase(m[1])
	} else if loc := emailAddrRe.FindStringIndex(text); loc != nil && a.Subject == "" {
		if m := emailTailRe.FindStringSubmatch(text[loc[1]:]); m != nil {
			a.Body = cleanPhrase(m[1])
		}
	}
	if a.Recipient == "" {
		a.Missing = append(a.Missing, ParamRecipient)
	}
	if a.Body == "" {
		a.Missing = append(a.Missing, ParamBody)
	}
	return a
}

func parseEmailRead(text string) Action {
	f := EmailFilter{}
	if m := emailQueryRe.FindStringSubmatch(text); m != nil {
		f.Query = cleanPhrase(m[1])
	} else if m := emailAboutRe.FindStringSubmatch(text); m != nil {
		f.Query = cleanPhrase(m[1])
	}
	if m := emailFromRe.FindStringSubmatch(text); m != nil {
		f.From = cleanPhrase(m[1])
		if strings.EqualFold(f.Query, "from "+f.From) {
			f.Query = ""
		}
	}
	f.UnreadOnly = emailUnreadRe.MatchString(text)
	if m := emailLimitRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			f.Limit = n
		}
	}
	return EmailRead{Filter: f}
}

func parseFileSearch(text string) Action {
	for _, re := range fileQueryRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		q := cleanPhrase(m[1])
		q = strings.TrimSpace(fileLeadRe.ReplaceAllString(q, ""))
		q = strings.TrimSpace(fileTrailRe.ReplaceAllString(q, ""))
		q = cleanPhrase(q)
		if q != "" {
			return FileSearch{Query: q}
		}
	}
	return FileSearch{Missing: []string{ParamQuery}}
}

// cleanPhrase 去掉首尾空白、引号与句末标点
// cleanPhrase strips surrounding whitespace, quotes and trailing punctuation
func cleanPhrase(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".!?,;: ")
	s = strings.Trim(s, `"'“”‘’`+"`")
	return strings.TrimSpace(s)
}
