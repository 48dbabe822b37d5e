package router

import (
	"fmt"
	"strings"

	"assistant/internal/capability"
	"assistant/internal/intent"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

const (
	fileNameWidth = 48
	snippetRunes  = 100
	mailDateFmt   = "2006-01-02 15:04"
)

func (r *Router) renderFiles(entries []capability.FileEntry) string {
	var b strings.Builder
	b.WriteString(r.loc.T("files.header", len(entries)))
	b.WriteString("\n\n")
	for i, e := range entries {
		name := runewidth.Truncate(e.Name, fileNameWidth, "…")
		fmt.Fprintf(&b, "%d. %s (%s) - %s", i+1, name, humanize.Bytes(uint64(max(e.Size, 0))), e.Path)
		if i < len(entries)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (r *Router) renderMail(filter intent.EmailFilter, envs []capability.Envelope) string {
	var b strings.Builder
	if filter.Query != "" || filter.From != "" || filter.UnreadOnly {
		b.WriteString(r.loc.T("mail.found", len(envs)))
	} else {
		b.WriteString(r.loc.T("mail.recent", len(envs)))
	}
	b.WriteString("\n\n")
	for i, e := range envs {
		subject := e.Subject
		if strings.TrimSpace(subject) == "" {
			subject = r.loc.T("mail.no_subject")
		}
		date := ""
		if !e.Date.IsZero() {
			date = e.Date.Format(mailDateFmt)
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.loc.T("mail.entry_from", e.From))
		fmt.Fprintf(&b, "   %s\n", r.loc.T("mail.entry_subject", subject))
		fmt.Fprintf(&b, "   %s\n", r.loc.T("mail.entry_date", date))
		fmt.Fprintf(&b, "   %s", r.loc.T("mail.entry_snippet", snippet(e.Snippet)))
		if i < len(envs)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// snippet 取前 100 个字符并追加省略号
// snippet keeps the first 100 runes followed by an ellipsis
func snippet(s string) string {
	rs := []rune(strings.TrimSpace(s))
	if len(rs) > snippetRunes {
		rs = rs[:snippetRunes]
	}
	return string(rs) + "..."
}
