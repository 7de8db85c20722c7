package client

import (
	"sync"

	"github.com/gammazero/deque"
)

// Inbox 是监听 goroutine 和渲染循环之间唯一共享的状态，先进先出
type Inbox struct {
	mu sync.Mutex
	q  deque.Deque[string]
}

func NewInbox() *Inbox {
	return &Inbox{}
}

func (b *Inbox) Push(msg string) {
	b.mu.Lock()
	b.q.PushBack(msg)
	b.mu.Unlock()
}

// DrainAll 取出当前所有消息，保持到达顺序
func (b *Inbox) DrainAll() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.q.Len() == 0 {
		return nil
	}
	out := make([]string, 0, b.q.Len())
	for b.q.Len() > 0 {
		out = append(out, b.q.PopFront())
	}
	return out
}

func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.q.Len()
}
