package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"assistant/internal/capability"
	"assistant/internal/intent"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"
)

// DefaultMaxResults 默认列出的邮件数
// DefaultMaxResults is the listing size when neither the filter nor Options set one
const DefaultMaxResults = 5

const snippetPeekBytes = 200

// Options 邮箱配置
// Options configures a Client
type Options struct {
	IMAPAddr   string
	SMTPAddr   string
	Username   string
	Password   string
	From       string
	Mailbox    string
	MaxResults int
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// Client IMAP 读取 + SMTP 发送
// Client lists mail over IMAP and sends over SMTP
type Client struct {
	opts   Options
	logger zerolog.Logger
}

// New 创建邮箱客户端，不做网络连接
// New creates a mailbox client without touching the network
func New(opts Options) *Client {
	if strings.TrimSpace(opts.Mailbox) == "" {
		opts.Mailbox = "INBOX"
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if strings.TrimSpace(opts.From) == "" {
		opts.From = opts.Username
	}
	return &Client{opts: opts, logger: opts.Logger.With().Str("component", "mailbox").Logger()}
}

// IsReady 服务器地址与凭据齐全时为 true
// IsReady reports whether server addresses and credentials are configured
func (c *Client) IsReady() bool {
	if c == nil {
		return false
	}
	o := c.opts
	return strings.TrimSpace(o.IMAPAddr) != "" && strings.TrimSpace(o.SMTPAddr) != "" &&
		strings.TrimSpace(o.Username) != "" && o.Password != ""
}

// List 按条件搜索收件箱，最新的在前
// List searches the mailbox and returns the newest matches first
func (c *Client) List(ctx context.Context, filter intent.EmailFilter) ([]capability.Envelope, error) {
	if !c.IsReady() {
		return nil, listErr(capability.ErrNotConfigured)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	conn, err := c.dialIMAP(ctx)
	if err != nil {
		return nil, listErr(err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Terminate() })
	defer stop()
	defer func() { _ = conn.Logout() }()

	if err := conn.Login(c.opts.Username, c.opts.Password); err != nil {
		return nil, listErr(fmt.Errorf("login: %w", err))
	}
	if _, err := conn.Select(c.opts.Mailbox, true); err != nil {
		return nil, listErr(fmt.Errorf("select %s: %w", c.opts.Mailbox, err))
	}
	ids, err := conn.Search(searchCriteria(filter))
	if err != nil {
		return nil, listErr(fmt.Errorf("search: %w", err))
	}
	ids = newest(ids, limitFor(filter, c.opts.MaxResults))
	if len(ids) == 0 {
		return []capability.Envelope{}, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)
	section := snippetSection()
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, section.FetchItem()}

	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() { done <- conn.Fetch(seqset, items, messages) }()

	bySeq := make(map[uint32]capability.Envelope, len(ids))
	for msg := range messages {
		bySeq[msg.SeqNum] = toEnvelope(msg, section)
	}
	if err := <-done; err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, listErr(fmt.Errorf("fetch: %w", err))
	}

	out := make([]capability.Envelope, 0, len(ids))
	for _, id := range ids {
		if env, ok := bySeq[id]; ok {
			out = append(out, env)
		}
	}
	c.logger.Debug().Int("count", len(out)).Msg("mail listed")
	return out, nil
}

// Send 通过 SMTP 发送纯文本邮件；失败时返回 *SendError
// Send delivers a plain-text message over SMTP and returns a *SendError on failure
func (c *Client) Send(ctx context.Context, recipient, subject, body string) error {
	to, err := mail.ParseAddress(strings.TrimSpace(recipient))
	if err != nil {
		return &capability.SendError{Recipient: recipient, Err: fmt.Errorf("invalid recipient: %w", err)}
	}
	if !c.IsReady() {
		return &capability.SendError{Recipient: to.Address, Err: capability.ErrNotConfigured}
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	msg := buildMessage(c.opts.From, to.Address, subject, body, time.Now())
	if err := c.deliver(ctx, to.Address, msg); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return &capability.SendError{Recipient: to.Address, Err: err}
	}
	c.logger.Info().Str("to", to.Address).Msg("mail sent")
	return nil
}

func (c *Client) deliver(ctx context.Context, to string, msg []byte) error {
	host, port, err := net.SplitHostPort(c.opts.SMTPAddr)
	if err != nil {
		return fmt.Errorf("smtp addr: %w", err)
	}
	var conn net.Conn
	if port == "465" {
		d := &tls.Dialer{Config: &tls.Config{ServerName: host}}
		conn, err = d.DialContext(ctx, "tcp", c.opts.SMTPAddr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", c.opts.SMTPAddr)
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sc, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	defer sc.Close()

	if ok, _ := sc.Extension("STARTTLS"); ok {
		if err := sc.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if ok, _ := sc.Extension("AUTH"); ok {
		if err := sc.Auth(smtp.PlainAuth("", c.opts.Username, c.opts.Password, host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := sc.Mail(addressOnly(c.opts.From)); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := sc.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := sc.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish body: %w", err)
	}
	return sc.Quit()
}

func (c *Client) dialIMAP(ctx context.Context) (*client.Client, error) {
	type result struct {
		conn *client.Client
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := client.DialTLS(c.opts.IMAPAddr, nil)
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("dial %s: %w", c.opts.IMAPAddr, r.err)
		}
		return r.conn, nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				_ = r.conn.Terminate()
			}
		}()
		return nil, ctx.Err()
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.Timeout)
}

func listErr(err error) error {
	return &capability.AdapterError{Capability: capability.NameMail, Op: "list", Err: err}
}

func searchCriteria(f intent.EmailFilter) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	if q := strings.TrimSpace(f.Query); q != "" {
		criteria.Text = []string{q}
	}
	if from := strings.TrimSpace(f.From); from != "" {
		criteria.Header.Add("From", from)
	}
	if f.UnreadOnly {
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}
	return criteria
}

func limitFor(f intent.EmailFilter, fallback int) int {
	if f.Limit > 0 {
		return f.Limit
	}
	return fallback
}

// newest 返回序号最大的 n 个，降序
// newest returns the n highest sequence numbers in descending order
func newest(ids []uint32, n int) []uint32 {
	out := append([]uint32(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func snippetSection() *imap.BodySectionName {
	return &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.TextSpecifier},
		Peek:         true,
		Partial:      []int{0, snippetPeekBytes},
	}
}

func toEnvelope(msg *imap.Message, section *imap.BodySectionName) capability.Envelope {
	env := capability.Envelope{Unread: true}
	for _, f := range msg.Flags {
		if f == imap.SeenFlag {
			env.Unread = false
		}
	}
	if e := msg.Envelope; e != nil {
		env.Subject = e.Subject
		env.Date = e.Date
		env.From = formatFrom(e.From)
	}
	if r := msg.GetBody(section); r != nil {
		data, _ := io.ReadAll(io.LimitReader(r, snippetPeekBytes))
		env.Snippet = cleanSnippet(string(data))
	}
	return env
}

func formatFrom(addrs []*imap.Address) string {
	if len(addrs) == 0 || addrs[0] == nil {
		return ""
	}
	a := addrs[0]
	if a.PersonalName != "" {
		return fmt.Sprintf("%s <%s>", a.PersonalName, a.Address())
	}
	return a.Address()
}

func cleanSnippet(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func addressOnly(s string) string {
	if a, err := mail.ParseAddress(s); err == nil {
		return a.Address
	}
	return strings.TrimSpace(s)
}

// buildMessage 构造 RFC 5322 纯文本邮件
// buildMessage renders an RFC 5322 plain-text message
func buildMessage(from, to, subject, body string, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + encodeHeader(subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func encodeHeader(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	return mime.QEncoding.Encode("utf-8", s)
}
