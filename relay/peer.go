package relay

import (
	"sync"
	"sync/atomic"
	"time"
)

// Peer is one connected client. Frames queued for it are written by its own
// writer, so a slow socket only ever delays itself.
type Peer struct {
	id          string
	label       string
	connectedAt time.Time
	out         chan Frame
	done        chan struct{}
	closeOnce   sync.Once
	dropped     atomic.Int64
}

func NewPeer(id, label string, queueSize int) *Peer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Peer{
		id:          id,
		label:       label,
		connectedAt: time.Now(),
		out:         make(chan Frame, queueSize),
		done:        make(chan struct{}),
	}
}

func (p *Peer) ID() string    { return p.id }
func (p *Peer) Label() string { return p.label }

// Outbound is the queue the peer's writer drains.
func (p *Peer) Outbound() <-chan Frame { return p.out }

// Done is closed once the peer has been closed.
func (p *Peer) Done() <-chan struct{} { return p.done }

// Send queues f without blocking. It reports false when the peer is closed
// or its queue is full, in which case the frame is dropped.
func (p *Peer) Send(f Frame) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.out <- f:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

func (p *Peer) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// PeerStats is a point in time view of a peer for the admin endpoint.
type PeerStats struct {
	ID          string    `json:"id"`
	Label       string    `json:"label,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
	Queued      int       `json:"queued"`
	Dropped     int64     `json:"dropped"`
}

func (p *Peer) Stats() PeerStats {
	return PeerStats{
		ID:          p.id,
		Label:       p.label,
		ConnectedAt: p.connectedAt,
		Queued:      len(p.out),
		Dropped:     p.dropped.Load(),
	}
}
