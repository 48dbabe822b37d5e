package router

import (
	"context"
	"errors"
	"strings"

	"assistant/internal/backend"
	"assistant/internal/capability"
	"assistant/internal/contextmgr"
	"assistant/internal/intent"
	"assistant/internal/mode"
	"assistant/internal/session"
)

const (
	outcomeOK            = "ok"
	outcomeError         = "error"
	outcomeNotConfigured = "not_configured"
)

// clarify 为缺参的动作生成追问，只提第一个缺失的参数
// clarify asks for the first missing parameter of an incomplete action
func (r *Router) clarify(a intent.Action) string {
	missing := a.MissingParams()
	if len(missing) == 0 {
		return r.loc.T("help.text")
	}
	switch missing[0] {
	case intent.ParamQuery:
		return r.loc.T("clarify.query")
	case intent.ParamRecipient:
		return r.loc.T("clarify.recipient")
	case intent.ParamBody:
		if send, ok := a.(intent.EmailSend); ok && send.Recipient != "" {
			return r.loc.T("clarify.body", send.Recipient, send.Recipient)
		}
		return r.loc.T("clarify.body_any")
	case intent.ParamTarget:
		return r.loc.T("clarify.target")
	default:
		return r.loc.T("help.text")
	}
}

func (r *Router) searchFiles(ctx context.Context, act intent.FileSearch) result {
	if !capability.IsReady(r.opts.Files) {
		r.opts.Metrics.Capability(capability.NameFiles, outcomeNotConfigured)
		return result{text: r.loc.T("files.not_configured")}
	}
	entries, err := r.opts.Files.Search(ctx, act.Query)
	if err != nil {
		r.opts.Metrics.Capability(capability.NameFiles, outcomeError)
		r.logger.Warn().Str("query", act.Query).Err(err).Msg("file search failed")
		if errors.Is(err, capability.ErrNotConfigured) {
			return result{text: r.loc.T("files.not_configured")}
		}
		return result{text: r.loc.T("files.error", err.Error())}
	}
	r.opts.Metrics.Capability(capability.NameFiles, outcomeOK)
	if len(entries) == 0 {
		return result{text: r.loc.T("files.none", act.Query)}
	}
	return result{text: r.renderFiles(entries)}
}

func (r *Router) readMail(ctx context.Context, act intent.EmailRead) result {
	if !capability.IsReady(r.opts.Mail) {
		r.opts.Metrics.Capability(capability.NameMail, outcomeNotConfigured)
		return result{text: r.loc.T("mail.not_configured")}
	}
	envs, err := r.opts.Mail.List(ctx, act.Filter)
	if err != nil {
		r.opts.Metrics.Capability(capability.NameMail, outcomeError)
		r.logger.Warn().Err(err).Msg("mail list failed")
		if errors.Is(err, capability.ErrNotConfigured) {
			return result{text: r.loc.T("mail.not_configured")}
		}
		return result{text: r.loc.T("mail.error", err.Error())}
	}
	r.opts.Metrics.Capability(capability.NameMail, outcomeOK)
	if len(envs) == 0 {
		return result{text: r.loc.T("mail.none")}
	}
	return result{text: r.renderMail(act.Filter, envs)}
}

func (r *Router) sendMail(ctx context.Context, act intent.EmailSend) result {
	if !capability.IsReady(r.opts.Mail) {
		r.opts.Metrics.Capability(capability.NameMail, outcomeNotConfigured)
		return result{text: r.loc.T("mail.not_configured")}
	}
	if err := r.opts.Mail.Send(ctx, act.Recipient, act.Subject, act.Body); err != nil {
		r.opts.Metrics.Capability(capability.NameMail, outcomeError)
		r.logger.Warn().Str("to", act.Recipient).Err(err).Msg("mail send failed")
		cause := err
		var se *capability.SendError
		if errors.As(err, &se) && se.Err != nil {
			cause = se.Err
		}
		return result{text: r.loc.T("mail.send_error", act.Recipient, cause.Error())}
	}
	r.opts.Metrics.Capability(capability.NameMail, outcomeOK)
	return result{text: r.loc.T("mail.sent", act.Recipient)}
}

func (r *Router) switchMode(ctx context.Context, act intent.ModeSwitch) result {
	before := r.modes.Current()
	if before.Kind == act.Target {
		return result{text: r.loc.T("mode.already", act.Target.ModeName())}
	}
	h, err := r.modes.Switch(ctx, act.Target)
	if err != nil {
		reason := backend.Classify(err)
		var me *mode.ModeError
		if errors.As(err, &me) {
			reason = me.Reason
		}
		return result{text: r.loc.T("mode.unreachable",
			act.Target.ModeName(), act.Target.String(), string(reason), r.modes.Current().Kind.ModeName())}
	}
	return result{text: r.loc.T("mode.switched", h.Kind.ModeName(), h.Model)}
}

// chat 调用当前后端；失败且策略允许时只在另一个后端重试一次
// chat calls the current backend and, when policy allows, retries exactly once on the other backend
func (r *Router) chat(ctx context.Context, s *session.Session, act intent.Chat) result {
	req := backend.Request{
		System:  r.opts.SystemPrompt,
		History: contextmgr.FitHistory(r.tok, s.Messages(), r.opts.HistoryTokenBudget),
		Prompt:  act.Text,
	}
	reply, err := r.modes.Invoke(ctx, req)
	if err == nil {
		return result{text: reply.Text, backend: reply.Backend.String()}
	}

	first, firstReason := failedBackend(reply.Backend, err)
	if !r.opts.Fallback.applies(firstReason) {
		return result{text: r.loc.T("chat.failed", first.String(), string(firstReason), first.Other().ModeName())}
	}

	second := first.Other()
	r.logger.Info().Str("from", first.String()).Str("to", second.String()).Str("reason", string(firstReason)).Msg("falling back")
	fb, err := r.modes.InvokeOn(ctx, second, req)
	if err == nil {
		r.opts.Metrics.Fallback(first, second, outcomeOK)
		return result{text: fb.Text, backend: fb.Backend.String()}
	}
	r.opts.Metrics.Fallback(first, second, "failed")
	_, secondReason := failedBackend(second, err)
	return result{text: r.loc.T("chat.both_failed",
		first.String(), string(firstReason), second.String(), string(secondReason))}
}

func failedBackend(kind backend.Kind, err error) (backend.Kind, backend.Reason) {
	var be *mode.BackendError
	if errors.As(err, &be) {
		return be.Backend, be.Reason
	}
	return kind, backend.Classify(err)
}

// Status 渲染当前模式、两个后端健康状态与各能力是否就绪；不含时间戳
// Status renders the mode, both backends' health and each capability's readiness, without timestamps
func (r *Router) Status() string {
	snap := r.modes.Snapshot()
	cur := snap.Handle(snap.Current)

	lines := []string{
		r.loc.T("status.title"),
		r.loc.T("status.mode", snap.Current.ModeName(), cur.Kind.String()),
	}
	for _, h := range []mode.Handle{snap.Remote, snap.Local} {
		lines = append(lines, r.loc.T("status.backend", h.Kind.String(), h.Health.String(), h.Model))
	}
	lines = append(lines,
		r.loc.T("status.capability", r.loc.T("status.files"), r.readiness(capability.IsReady(r.opts.Files))),
		r.loc.T("status.capability", r.loc.T("status.mail"), r.readiness(capability.IsReady(r.opts.Mail))),
		r.loc.T("status.capability", r.loc.T("status.transcriber"), r.readiness(capability.IsReady(r.opts.Transcriber))),
	)
	for _, f := range r.opts.Features {
		state := r.loc.T("status.disabled")
		if f.Enabled {
			state = r.loc.T("status.enabled")
		}
		lines = append(lines, r.loc.T("status.capability", f.Name, state))
	}
	return strings.Join(lines, "\n")
}

func (r *Router) readiness(ready bool) string {
	if ready {
		return r.loc.T("status.ready")
	}
	return r.loc.T("status.not_configured")
}
