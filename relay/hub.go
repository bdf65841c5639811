// Package relay fans edit events out to every other connected peer.
package relay

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

const DefaultQueueSize = 64

// Hub is the set of connected peers. It is created once at start up and
// shared by every connection handler.
type Hub struct {
	mu        sync.RWMutex
	peers     map[string]*Peer
	queueSize int
}

type HubOption func(*Hub)

// WithQueueSize bounds the number of frames buffered per peer.
func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

func NewHub(options ...HubOption) *Hub {
	h := &Hub{peers: make(map[string]*Peer), queueSize: DefaultQueueSize}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// NewPeer creates a peer using the hub's queue size. It is not registered.
func (h *Hub) NewPeer(id, label string) *Peer {
	return NewPeer(id, label, h.queueSize)
}

func (h *Hub) Register(p *Peer) {
	h.mu.Lock()
	h.peers[p.id] = p
	n := len(h.peers)
	h.mu.Unlock()

	log.Debug().Str("peer", p.id).Str("label", p.label).Int("peers", n).Msg("relay peer connected")
}

// Unregister removes and closes p. Calling it more than once is harmless.
func (h *Hub) Unregister(p *Peer) {
	h.mu.Lock()
	if current, ok := h.peers[p.id]; ok && current == p {
		delete(h.peers, p.id)
	}
	n := len(h.peers)
	h.mu.Unlock()

	p.Close()
	log.Debug().Str("peer", p.id).Int("peers", n).Msg("relay peer disconnected")
}

// Broadcast queues f for every peer except from and returns how many peers
// accepted it. A peer that cannot take the frame is skipped and logged.
func (h *Hub) Broadcast(from *Peer, f Frame) int {
	h.mu.RLock()
	targets := make([]*Peer, 0, len(h.peers))
	for _, p := range h.peers {
		if p != from {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, p := range targets {
		if p.Send(f) {
			delivered++
			continue
		}
		log.Warn().Str("peer", p.id).Str("event", f.Event).Msg("relay dropped frame for slow or closed peer")
	}
	return delivered
}

// CloseAll unregisters and closes every peer, which ends their
// connections. It returns how many peers were closed.
func (h *Hub) CloseAll() int {
	h.mu.Lock()
	peers := make([]*Peer, 0, len(h.peers))
	for id, p := range h.peers {
		peers = append(peers, p)
		delete(h.peers, id)
	}
	h.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
	return len(peers)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Stats lists connected peers ordered by connection time.
func (h *Hub) Stats() []PeerStats {
	h.mu.RLock()
	stats := make([]PeerStats, 0, len(h.peers))
	for _, p := range h.peers {
		stats = append(stats, p.Stats())
	}
	h.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].ConnectedAt.Before(stats[j].ConnectedAt) })
	return stats
}
