package chat

import (
	"context"
	"io"
	"log"

	"github.com/google/uuid"

	"github.com/omochice/presence-relay/internal/crypto"
	"github.com/omochice/presence-relay/pkg/protocol"
)

// Session drives one accepted connection: it registers the connection,
// replays the current presence snapshot, then reads and dispatches
// frames until the peer disconnects. The transport runs Run in one
// goroutine and drains Outgoing in another, so a stalled peer never
// blocks the shared broadcast path.
type Session struct {
	id       string
	conn     Conn
	outgoing chan []byte
	core     *Core
	codec    *crypto.Codec
}

// NewSession creates a session for an accepted connection. queueSize
// bounds the outbound delivery queue; sends beyond it are dropped by the
// registry rather than blocking the sender.
func NewSession(conn Conn, core *Core, codec *crypto.Codec, queueSize int) *Session {
	return &Session{
		id:       uuid.NewString(),
		conn:     conn,
		outgoing: make(chan []byte, queueSize),
		core:     core,
		codec:    codec,
	}
}

// ID returns the session's connection identifier.
func (s *Session) ID() string {
	return s.id
}

// Outgoing returns the outbound delivery queue for the writer goroutine.
// The channel is closed when Run returns.
func (s *Session) Outgoing() <-chan []byte {
	return s.outgoing
}

// Run processes the connection until it closes, then performs the
// disconnect transition. Closing the outgoing queue on return is what
// terminates the paired writer.
func (s *Session) Run(ctx context.Context) {
	addr := s.conn.RemoteAddr()

	s.core.Registry.Register(s.id, s.outgoing)
	s.sendSnapshot()
	log.Printf("Connection registered: %s", addr)

	for {
		data, err := s.conn.Read(ctx)
		if err != nil {
			if err != io.EOF {
				log.Printf("Read error from %s: %v", addr, err)
			}
			break
		}
		s.dispatch(data)
	}

	s.disconnect()
	close(s.outgoing)
	log.Printf("Connection closed: %s", addr)
}

// sendSnapshot replays the current presence state to this connection
// only, immediately after registration.
func (s *Session) sendSnapshot() {
	frame, err := protocol.Snapshot{Users: s.core.Presence.Snapshot()}.Encode()
	if err != nil {
		log.Printf("Failed to encode presence snapshot: %v", err)
		return
	}
	s.core.Registry.SendTo(s.id, frame)
}

func (s *Session) dispatch(data []byte) {
	msg, err := protocol.DecodeInbound(data)
	if err != nil {
		// Older clients sent bare ciphertext instead of a JSON frame;
		// try that before giving up so the payload still reaches the
		// logs. Presence state is never touched on this path.
		if text, derr := s.codec.Decrypt(string(data)); derr == nil {
			log.Printf("Decrypted legacy frame from %s: %s", s.conn.RemoteAddr(), text)
		} else {
			log.Printf("Unhandled frame from %s: %v", s.conn.RemoteAddr(), err)
		}
		return
	}

	switch msg.Kind {
	case protocol.KindPresenceUpdate:
		s.handleAnnounce(msg.User)
	case protocol.KindPresenceStatus:
		s.handleStatusChange(msg.UserID, msg.Status)
	case protocol.KindChatMessage:
		s.handleChat(msg.Ciphertext)
	}
}

func (s *Session) handleAnnounce(user protocol.PresenceUser) {
	// A freshly connecting client cannot declare itself offline.
	if user.Status == protocol.StatusOffline {
		user.Status = protocol.StatusOnline
	}

	if s.core.Registry.BindUser(s.id, user.ID) {
		s.core.Counter.Increment(user.ID)
	}
	s.core.Presence.Upsert(user)
	s.broadcastUpdate(user)
}

func (s *Session) handleStatusChange(userID string, status protocol.Status) {
	user, ok := s.core.Presence.SetStatus(userID, status)
	if !ok {
		return
	}
	s.broadcastUpdate(user)
}

// handleChat decrypts the payload for logging. The relay carries chat
// through the presence protocol only; the decrypted text is not
// forwarded further.
func (s *Session) handleChat(ciphertext string) {
	text, err := s.codec.Decrypt(ciphertext)
	if err != nil {
		log.Printf("Chat decryption error from %s: %v", s.conn.RemoteAddr(), err)
		return
	}
	log.Printf("[chat] %s: %s", s.conn.RemoteAddr(), text)
}

// disconnect runs once the read loop exits. The user goes offline only
// when its last bound connection departs; a missing counter entry is
// treated as the last connection.
func (s *Session) disconnect() {
	userID, ok := s.core.Registry.Unregister(s.id)
	if !ok {
		return
	}
	if s.core.Counter.Decrement(userID) > 0 {
		return
	}

	user, ok := s.core.Presence.SetStatus(userID, protocol.StatusOffline)
	if !ok {
		return
	}
	s.broadcastUpdate(user)
}

func (s *Session) broadcastUpdate(user protocol.PresenceUser) {
	frame, err := protocol.Update{User: user}.Encode()
	if err != nil {
		log.Printf("Failed to encode presence update: %v", err)
		return
	}
	s.core.Registry.Broadcast(frame)
}
