package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/websocket"
)

const (
	maxMessageBytes = 1 << 20
	writeTimeout    = 10 * time.Second
)

type handlerOptions struct {
	allowOrigin func(origin string) bool
	peerLabel   func(r *http.Request) string
}

type HandlerOption func(*handlerOptions)

// WithOriginCheck rejects the websocket handshake when allow returns false
// for the request's Origin header.
func WithOriginCheck(allow func(origin string) bool) HandlerOption {
	return func(o *handlerOptions) {
		o.allowOrigin = allow
	}
}

// WithPeerLabel names peers, typically after the admitted identity.
func WithPeerLabel(label func(r *http.Request) string) HandlerOption {
	return func(o *handlerOptions) {
		o.peerLabel = label
	}
}

// Handler upgrades requests to websocket connections served by hub.
func Handler(hub *Hub, options ...HandlerOption) http.Handler {
	opts := handlerOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	return websocket.Server{
		Handshake: func(cfg *websocket.Config, r *http.Request) error {
			origin := r.Header.Get("Origin")
			if opts.allowOrigin != nil && !opts.allowOrigin(strings.TrimSuffix(origin, "/")) {
				log.Warn().Str("origin", origin).Str("remote", r.RemoteAddr).Msg("relay rejected websocket origin")
				return fmt.Errorf("origin %q not allowed", origin)
			}
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			label := ""
			if opts.peerLabel != nil {
				label = opts.peerLabel(conn.Request())
			}
			hub.serve(conn, label)
		},
	}
}

func (h *Hub) serve(conn *websocket.Conn, label string) {
	conn.MaxPayloadBytes = maxMessageBytes
	peer := h.NewPeer(uuid.NewString(), label)
	h.Register(peer)
	defer func() {
		h.Unregister(peer)
		_ = conn.Close()
	}()

	go writeLoop(conn, peer)

	for {
		var msg []byte
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("peer", peer.id).Msg("relay read ended")
			}
			return
		}
		h.handleMessage(peer, msg)
	}
}

func (h *Hub) handleMessage(peer *Peer, msg []byte) {
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		log.Debug().Err(err).Str("peer", peer.id).Msg("relay ignored undecodable frame")
		return
	}

	switch f.Event {
	case EventEdit:
		var edit EditPayload
		if err := json.Unmarshal(f.Data, &edit); err != nil || edit.FileID == "" {
			log.Debug().Str("peer", peer.id).Msg("relay ignored edit without fileId")
			return
		}
		update, err := NewFrame(EventUpdate, edit)
		if err != nil {
			log.Err(err).Str("peer", peer.id).Msg("relay failed to encode update")
			return
		}
		h.Broadcast(peer, update)
	default:
		log.Debug().Str("peer", peer.id).Str("event", f.Event).Msg("relay ignored unknown event")
	}
}

// writeLoop drains the peer's queue onto the socket until the peer is
// closed or a write fails. Closing the peer closes the socket, which also
// ends the read loop.
func writeLoop(conn *websocket.Conn, peer *Peer) {
	for {
		select {
		case <-peer.Done():
			_ = conn.Close()
			return
		case f := <-peer.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := websocket.JSON.Send(conn, f); err != nil {
				log.Warn().Err(err).Str("peer", peer.id).Msg("relay write failed, closing peer")
				peer.Close()
				_ = conn.Close()
				return
			}
		}
	}
}
