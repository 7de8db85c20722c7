package client

import "sync"

// DefaultHistoryLimit 聊天窗口显示的最大条数
const DefaultHistoryLimit = 50

// History 保存完整的聊天记录，View 只返回最近 limit 条
type History struct {
	mu      sync.RWMutex
	entries []string
	limit   int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

func (h *History) Append(msgs ...string) {
	h.mu.Lock()
	h.entries = append(h.entries, msgs...)
	h.mu.Unlock()
}

// View 返回最近的 limit 条记录的副本
func (h *History) View() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	start := 0
	if len(h.entries) > h.limit {
		start = len(h.entries) - h.limit
	}
	view := make([]string, len(h.entries)-start)
	copy(view, h.entries[start:])
	return view
}

// Len 是保存的总条数，可能大于 View 的长度
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
