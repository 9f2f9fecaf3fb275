package ws

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	gobwas "github.com/gobwas/ws"

	"github.com/omochice/presence-relay/internal/chat"
	"github.com/omochice/presence-relay/internal/crypto"
)

// Server accepts WebSocket connections and runs a chat session for each.
type Server struct {
	address   string
	listener  net.Listener
	core      *chat.Core
	codec     *crypto.Codec
	queueSize int
	quit      chan struct{}
	wg        sync.WaitGroup
}

// New creates a relay server around the shared core state.
func New(address string, core *chat.Core, codec *crypto.Codec, queueSize int) *Server {
	return &Server{
		address:   address,
		core:      core,
		codec:     codec,
		queueSize: queueSize,
		quit:      make(chan struct{}),
	}
}

// Start starts accepting WebSocket connections. It blocks until Stop is
// called and returns nil on a clean shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start relay server: %w", err)
	}
	s.listener = listener

	log.Printf("Relay server started on %s", listener.Addr().String())

	for {
		select {
		case <-s.quit:
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.quit:
					return nil
				default:
					log.Printf("Failed to accept connection: %v", err)
					continue
				}
			}

			s.wg.Add(1)
			go s.handleConn(conn)
		}
	}
}

// Stop stops the server and waits for per-connection goroutines.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleConn upgrades the socket and runs the session until the peer
// disconnects. A failure here is fatal to this connection only.
func (s *Server) handleConn(netConn net.Conn) {
	defer s.wg.Done()

	if _, err := gobwas.Upgrade(netConn); err != nil {
		log.Printf("WebSocket handshake failed with %s: %v", netConn.RemoteAddr(), err)
		netConn.Close()
		return
	}

	conn := NewConn(netConn)
	session := chat.NewSession(conn, s.core, s.codec, s.queueSize)

	s.wg.Add(1)
	go s.writeLoop(conn, session)

	session.Run(context.Background())
	conn.Close()
}

// writeLoop drains the session's outbound queue onto the socket. It
// exits when the session closes the queue or a write fails.
func (s *Server) writeLoop(conn *Conn, session *chat.Session) {
	defer s.wg.Done()
	for frame := range session.Outgoing() {
		if err := conn.Write(context.Background(), frame); err != nil {
			log.Printf("Failed to write to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}
