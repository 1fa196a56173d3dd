package badge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPortFull is returned by ChannelPort when the receiver is not keeping up.
var ErrPortFull = errors.New("badge port full")

// Port is the active service-worker controller as seen from the app.
type Port interface {
	Post(ctx context.Context, m Message) error
}

// Notifier posts badge signals to an optional Port. It never waits for an
// answer and never returns an error: failures are logged and dropped.
type Notifier struct {
	mu        sync.Mutex
	port      Port
	lastCount int
	posted    bool
}

// NewNotifier accepts a nil port; signals are then discarded until SetPort.
func NewNotifier(port Port) *Notifier {
	return &Notifier{port: port}
}

// SetPort swaps the controller, e.g. after a service-worker update.
func (n *Notifier) SetPort(port Port) {
	n.mu.Lock()
	n.port = port
	n.posted = false
	n.mu.Unlock()
}

// UpdateBadge posts UPDATE_BADGE when count differs from the last value posted.
func (n *Notifier) UpdateBadge(ctx context.Context, count int) {
	n.mu.Lock()
	if n.port == nil || (n.posted && n.lastCount == count) {
		n.mu.Unlock()
		return
	}
	port := n.port
	n.lastCount, n.posted = count, true
	n.mu.Unlock()

	n.post(ctx, port, UpdateBadge{Count: count})
}

func (n *Notifier) NotificationRead(ctx context.Context) {
	n.mu.Lock()
	port := n.port
	n.mu.Unlock()
	if port == nil {
		return
	}
	n.post(ctx, port, NotificationRead{})
}

func (n *Notifier) post(ctx context.Context, port Port, m Message) {
	if err := port.Post(ctx, m); err != nil {
		slog.Warn("badge message not delivered", "type", m.Type(), "error", err)
	}
}

// ChannelPort is an in-process Port backed by a buffered channel.
type ChannelPort struct {
	ch chan Message
}

func NewChannelPort(size int) *ChannelPort {
	return &ChannelPort{ch: make(chan Message, size)}
}

// Post never blocks; a full buffer drops the message.
func (p *ChannelPort) Post(_ context.Context, m Message) error {
	select {
	case p.ch <- m:
		return nil
	default:
		return ErrPortFull
	}
}

// C is the receiving end, consumed by the service worker.
func (p *ChannelPort) C() <-chan Message {
	return p.ch
}
