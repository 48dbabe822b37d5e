// Package telegram 通过长轮询把 Telegram 聊天接入助手。
// Package telegram connects Telegram chats to the assistant over long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"assistant/internal/capability"
	"assistant/internal/channel"
	"assistant/internal/i18n"
	"assistant/internal/mux"
	"assistant/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxVoiceBytes Telegram Bot API 的下载上限
	// DefaultMaxVoiceBytes matches the Bot API download limit
	DefaultMaxVoiceBytes = 20 << 20
	maxMessageRunes      = 4096
	pollTimeoutSeconds   = 60
)

// botAPI tgbotapi.BotAPI 中用到的方法
// botAPI is the part of tgbotapi.BotAPI the bot uses
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Options Telegram 渠道配置
// Options configures the Telegram source
type Options struct {
	Token string
	// AllowedChatIDs 为空时允许所有会话
	// AllowedChatIDs empty allows every chat
	AllowedChatIDs []int64
	MaxVoiceBytes  int64
	Transcriber    capability.Transcriber
	I18n           *i18n.I18n
	HTTPClient     *http.Client
	Logger         zerolog.Logger
}

// Bot Telegram 输入源
// Bot is the Telegram input source
type Bot struct {
	api     botAPI
	opts    Options
	allowed map[int64]struct{}
	loc     *i18n.I18n
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// New 创建 Bot；网络连接在 Run 时建立
// New creates a Bot; the API connection is made in Run
func New(opts Options) (*Bot, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram: token is required")
	}
	return newBot(nil, opts), nil
}

func newBot(api botAPI, opts Options) *Bot {
	if opts.MaxVoiceBytes <= 0 {
		opts.MaxVoiceBytes = DefaultMaxVoiceBytes
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: time.Minute}
	}
	loc := opts.I18n
	if loc == nil {
		loc = i18n.New("en")
	}
	allowed := make(map[int64]struct{}, len(opts.AllowedChatIDs))
	for _, id := range opts.AllowedChatIDs {
		allowed[id] = struct{}{}
	}
	return &Bot{
		api:     api,
		opts:    opts,
		allowed: allowed,
		loc:     loc,
		logger:  opts.Logger.With().Str("component", "telegram").Logger(),
	}
}

func (b *Bot) Name() string { return "telegram" }

// SessionID Telegram 会话 ID
// SessionID returns the session id for a chat
func SessionID(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) Run(ctx context.Context, sub channel.Submitter) error {
	if b.api == nil {
		api, err := tgbotapi.NewBotAPI(b.opts.Token)
		if err != nil {
			return fmt.Errorf("telegram: connect: %w", err)
		}
		b.logger.Info().Str("bot", api.Self.UserName).Msg("telegram connected")
		b.api = api
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				b.handleMessage(ctx, sub, update.Message)
			}
		}
	}
}

func (b *Bot) authorized(chatID int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[chatID]
	return ok
}

func (b *Bot) handleMessage(ctx context.Context, sub channel.Submitter, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	if !b.authorized(chatID) {
		b.logger.Warn().Int64("chat", chatID).Msg("unauthorized chat")
		b.send(chatID, b.loc.T("channel.unauthorized"))
		return
	}

	if msg.Voice != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.handleVoice(ctx, sub, chatID, msg.Voice)
		}()
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	b.submit(sub, chatID, text, session.OriginChat)
}

func (b *Bot) handleVoice(ctx context.Context, sub channel.Submitter, chatID int64, voice *tgbotapi.Voice) {
	if voice.FileSize > 0 && int64(voice.FileSize) > b.opts.MaxVoiceBytes {
		b.send(chatID, b.loc.T("voice.too_large"))
		return
	}
	if !capability.IsReady(b.opts.Transcriber) {
		b.send(chatID, b.loc.T("voice.failed", capability.ErrNotConfigured.Error()))
		return
	}
	audio, err := b.download(ctx, voice.FileID)
	if errors.Is(err, errTooLarge) {
		b.send(chatID, b.loc.T("voice.too_large"))
		return
	}
	if err != nil {
		b.logger.Warn().Int64("chat", chatID).Err(err).Msg("voice download failed")
		b.send(chatID, b.loc.T("voice.failed", err.Error()))
		return
	}
	text, err := b.opts.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		b.logger.Warn().Int64("chat", chatID).Err(err).Msg("transcription failed")
		b.send(chatID, b.loc.T("voice.failed", err.Error()))
		return
	}
	text = strings.TrimSpace(text)
	b.send(chatID, b.loc.T("voice.transcription", text))
	if text != "" {
		b.submit(sub, chatID, text, session.OriginVoice)
	}
}

var errTooLarge = errors.New("file too large")

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, b.opts.MaxVoiceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if int64(len(data)) > b.opts.MaxVoiceBytes {
		return nil, errTooLarge
	}
	return data, nil
}

func (b *Bot) submit(sub channel.Submitter, chatID int64, text string, origin session.Origin) {
	err := sub.Submit(mux.Event{
		SessionID: SessionID(chatID),
		Text:      text,
		Origin:    origin,
		Reply:     func(reply string) { b.send(chatID, reply) },
	})
	if err != nil && !errors.Is(err, mux.ErrSessionBusy) {
		b.logger.Warn().Int64("chat", chatID).Err(err).Msg("submit failed")
	}
}

func (b *Bot) send(chatID int64, text string) {
	for _, part := range splitMessage(text, maxMessageRunes) {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			b.logger.Warn().Int64("chat", chatID).Err(err).Msg("send failed")
			return
		}
	}
}

// splitMessage 按行切分超长消息，单行过长时按字符切
// splitMessage splits on line breaks and hard-cuts lines that are still too long
func splitMessage(text string, limit int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len([]rune(text)) <= limit {
		return []string{text}
	}
	var parts []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, string(cur))
			cur = cur[:0]
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		rs := []rune(line)
		if len(cur)+len(rs) > limit {
			flush()
		}
		for len(rs) > limit {
			parts = append(parts, string(rs[:limit]))
			rs = rs[limit:]
		}
		cur = append(cur, rs...)
	}
	flush()
	return parts
}
