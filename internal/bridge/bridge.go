// Package bridge decouples slow network operations from their callers.
// Work is submitted to a bounded worker pool and outcomes land in an
// inbox the caller drains at its own pace, so no API handler or UI
// loop ever blocks on a device.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/jeffmoIA/netdesk/pkg/common"
)

// Label tags a message with the kind of operation that produced it.
type Label string

const (
	LabelProbe       Label = "probe"
	LabelBulkProbe   Label = "bulk_probe"
	LabelQueueList   Label = "queue_list"
	LabelQueueUpdate Label = "queue_update"
	LabelExport      Label = "export"
	LabelIdentity    Label = "identity"
)

// Message is one completed operation delivered through the inbox.
type Message struct {
	ID      int64       `json:"id,string"`
	Topic   Label       `json:"topic"`
	OK      bool        `json:"ok"`
	Text    string      `json:"text"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`

	gen uint64
}

// Task produces one outcome. It receives the bridge's base context and
// must honor cancellation.
type Task func(ctx context.Context) (ok bool, text string, payload interface{})

var ErrClosed = errors.New("bridge closed")

// Bridge runs tasks on a bounded pool and buffers their outcomes.
// Invalidate bumps a topic's generation so results submitted before the
// bump are silently dropped instead of being shown against newer state.
type Bridge struct {
	pool  *ants.Pool
	inbox chan Message

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	gens   map[Label]uint64
	closed bool
}

func New(workers, depth int) (*Bridge, error) {
	if workers <= 0 {
		workers = 16
	}
	if depth <= 0 {
		depth = 256
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		pool:   pool,
		inbox:  make(chan Message, depth),
		ctx:    ctx,
		cancel: cancel,
		gens:   map[Label]uint64{},
	}, nil
}

// Submit schedules a task and returns its correlation id immediately.
// The outcome shows up later in the inbox under the given topic.
func (b *Bridge) Submit(topic Label, task Task) (int64, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, ErrClosed
	}
	gen := b.gens[topic]
	b.mu.Unlock()

	id := common.UUIDint64()
	err := b.pool.Submit(func() {
		ok, text, payload := runTask(b.ctx, task)
		b.deliver(Message{
			ID:      id,
			Topic:   topic,
			OK:      ok,
			Text:    text,
			Payload: payload,
			At:      time.Now(),
			gen:     gen,
		})
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// runTask isolates panics so a misbehaving task surfaces as a failed
// message instead of killing a pool worker.
func runTask(ctx context.Context, task Task) (ok bool, text string, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			text = "internal error"
			payload = nil
			zap.L().Error("bridge task recovered", zap.Any("panic", r))
		}
	}()
	return task(ctx)
}

func (b *Bridge) deliver(msg Message) {
	for {
		select {
		case b.inbox <- msg:
			return
		default:
		}
		// Inbox full: evict the oldest message to keep fresh results
		// flowing.
		select {
		case old := <-b.inbox:
			zap.L().Warn("inbox full, dropping oldest message",
				zap.String("topic", string(old.Topic)),
				zap.Int64("id", old.ID))
		default:
		}
	}
}

// Poll returns the next fresh message without blocking. Stale messages
// (submitted before their topic was invalidated) are consumed and
// discarded.
func (b *Bridge) Poll() (Message, bool) {
	for {
		select {
		case msg := <-b.inbox:
			if b.stale(msg) {
				continue
			}
			return msg, true
		default:
			return Message{}, false
		}
	}
}

// Drain returns up to max pending fresh messages without blocking.
func (b *Bridge) Drain(max int) []Message {
	if max <= 0 {
		max = cap(b.inbox)
	}
	var out []Message
	for len(out) < max {
		msg, ok := b.Poll()
		if !ok {
			break
		}
		out = append(out, msg)
	}
	return out
}

// Invalidate marks all in-flight and queued results for a topic as
// stale. Use it when the state a pending result refers to has changed,
// e.g. a device was removed while its probe was still running.
func (b *Bridge) Invalidate(topic Label) {
	b.mu.Lock()
	b.gens[topic]++
	b.mu.Unlock()
}

func (b *Bridge) stale(msg Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return msg.gen < b.gens[msg.Topic]
}

// Pending reports how many messages are buffered, stale ones included.
func (b *Bridge) Pending() int {
	return len(b.inbox)
}

// Close stops accepting work, cancels running tasks and releases the
// pool. Buffered messages remain drainable.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.pool.Release()
}
