package repo

import "github.com/cloudwego/eino/schema"

// HistoryRing is a fixed-capacity FIFO of messages. Appending to a full ring
// evicts the oldest message. It is not safe for concurrent use.
type HistoryRing struct {
	buf   []*schema.Message
	start int
	size  int
}

// NewHistoryRing returns a ring holding at most capacity messages. A
// non-positive capacity yields a ring that stores nothing.
func NewHistoryRing(capacity int) *HistoryRing {
	if capacity < 0 {
		capacity = 0
	}
	return &HistoryRing{buf: make([]*schema.Message, capacity)}
}

func (r *HistoryRing) Cap() int { return len(r.buf) }

func (r *HistoryRing) Len() int { return r.size }

func (r *HistoryRing) Append(msgs ...*schema.Message) {
	if len(r.buf) == 0 {
		return
	}
	for _, m := range msgs {
		if r.size < len(r.buf) {
			r.buf[(r.start+r.size)%len(r.buf)] = m
			r.size++
			continue
		}
		r.buf[r.start] = m
		r.start = (r.start + 1) % len(r.buf)
	}
}

// Snapshot copies the messages out, oldest first.
func (r *HistoryRing) Snapshot() []*schema.Message {
	out := make([]*schema.Message, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *HistoryRing) Reset() {
	clear(r.buf)
	r.start, r.size = 0, 0
}
