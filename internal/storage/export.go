package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ExportJSONL 把一个会话的全部对话轮逐行写成 JSON
// ExportJSONL writes every journaled turn of a session as one JSON object per line
func (j *SQLiteJournal) ExportJSONL(ctx context.Context, w io.Writer, sessionID string) (int, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return 0, fmt.Errorf("session id is empty")
	}
	records, err := j.loadRecords(ctx, sessionID, 0)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	for i, r := range records {
		if err := enc.Encode(r); err != nil {
			return i, fmt.Errorf("write turn %d: %w", r.Seq, err)
		}
	}
	return len(records), nil
}
