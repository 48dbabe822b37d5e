package contextmgr

import "assistant/internal/chat"

// FitHistory 从最新消息向前保留，直到超出 token 预算；返回的消息保持原有顺序
// FitHistory keeps the newest messages that fit into budget tokens, preserving order
func FitHistory(tok *Tokenizer, history []chat.Message, budget int) []chat.Message {
	if len(history) == 0 || budget <= 0 {
		return nil
	}
	if tok == nil {
		tok = NewHeuristicTokenizer()
	}
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := tok.countMessage(history[i])
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	// 不以 assistant 消息开头，避免模型看到没有提问的回答
	// never start on an assistant message
	for start < len(history) && history[start].Role == chat.RoleAssistant {
		start++
	}
	if start >= len(history) {
		return nil
	}
	out := make([]chat.Message, len(history)-start)
	copy(out, history[start:])
	return out
}
