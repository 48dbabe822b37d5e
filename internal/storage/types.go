package storage

// SessionMeta 会话元数据
// SessionMeta holds session metadata
type SessionMeta struct {
	ID        string `json:"id"`
	Origin    string `json:"origin"`
	Turns     int    `json:"turns"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// TurnRecord 导出用的对话轮记录
// TurnRecord is the exported form of a journaled turn
type TurnRecord struct {
	SessionID string `json:"session_id"`
	Seq       int    `json:"seq"`
	ID        string `json:"id"`
	Origin    string `json:"origin"`
	Action    string `json:"action"`
	Input     string `json:"input"`
	Response  string `json:"response"`
	Backend   string `json:"backend,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	CreatedAt string `json:"created_at"`
}
