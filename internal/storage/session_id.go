package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// NewSessionID 生成新的会话 ID，prefix 为空时使用 sess / Generates a new session ID; an empty prefix means "sess"
func NewSessionID(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "sess"
	}
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UTC().Unix(), hex.EncodeToString(buf))
}
