// Package ws provides a WebSocket client for the presence relay.
package ws

import (
	"context"
	"fmt"
	"log"
	"sync"

	"nhooyr.io/websocket"

	"github.com/omochice/presence-relay/internal/crypto"
	"github.com/omochice/presence-relay/pkg/protocol"
)

// Client represents a relay client connection. Chat payloads are
// encrypted with the shared codec before they leave the process.
type Client struct {
	address string
	conn    *websocket.Conn
	codec   *crypto.Codec
	events    chan protocol.Event
	mu        sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a new Client for the given ws:// address.
func New(address string) *Client {
	return &Client{
		address: address,
		codec:   crypto.NewCodec(),
		events:  make(chan protocol.Event, 10),
		done:    make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts receiving
// server events.
func (c *Client) Connect() error {
	conn, _, err := websocket.Dial(context.Background(), c.address, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveEvents()

	return nil
}

// Disconnect closes the connection and stops the receive loop. Calling
// it again is a no-op.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "")
		c.conn = nil
	}
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })
	c.wg.Wait()
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Announce sends a presence_update frame introducing user.
func (c *Client) Announce(user protocol.PresenceUser) error {
	frame, err := protocol.EncodePresenceUpdate(user)
	if err != nil {
		return fmt.Errorf("failed to encode presence update: %w", err)
	}
	return c.send(frame)
}

// SetStatus sends a presence_status frame for userID.
func (c *Client) SetStatus(userID string, status protocol.Status) error {
	frame, err := protocol.EncodePresenceStatus(userID, status)
	if err != nil {
		return fmt.Errorf("failed to encode presence status: %w", err)
	}
	return c.send(frame)
}

// SendChat encrypts plaintext and sends it as a chat_message frame.
func (c *Client) SendChat(plaintext string) error {
	ciphertext, err := c.codec.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt chat message: %w", err)
	}
	frame, err := protocol.EncodeChatMessage(ciphertext)
	if err != nil {
		return fmt.Errorf("failed to encode chat message: %w", err)
	}
	return c.send(frame)
}

// Events returns the channel of decoded server frames.
func (c *Client) Events() <-chan protocol.Event {
	return c.events
}

func (c *Client) send(frame []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected to server")
	}
	if err := conn.Write(context.Background(), websocket.MessageText, frame); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

func (c *Client) receiveEvents() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			if conn == nil {
				return
			}

			_, data, err := conn.Read(context.Background())
			if err != nil {
				select {
				case <-c.done:
					return
				default:
					log.Printf("Error reading from server: %v", err)
					return
				}
			}

			event, err := protocol.DecodeEvent(data)
			if err != nil {
				log.Printf("Failed to decode server frame: %v", err)
				continue
			}

			select {
			case c.events <- event:
			case <-c.done:
				return
			}
		}
	}
}
