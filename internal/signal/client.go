package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// ErrClosed is returned by Receive after the connection ends.
var ErrClosed = errors.New("signal: connection closed")

// Client is one peer's connection to a relay. Send and Receive may be
// called from different goroutines.
type Client struct {
	conn *websocket.Conn

	writeMu  sync.Mutex
	incoming chan Message
	readErr  error

	closeOnce sync.Once
}

// Dial connects to a relay room URL such as ws://host/ws/lobby.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("signal: dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("signal: dial %s: %w", url, err)
	}
	c := &Client{
		conn:     conn,
		incoming: make(chan Message, 16),
	}
	go c.readLoop()
	log.Debug().Str("module", "signal").Str("url", url).Msg("connected")
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.incoming)
	for {
		var m Message
		if err := c.conn.ReadJSON(&m); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.readErr = ErrClosed
			} else {
				c.readErr = fmt.Errorf("%w: %v", ErrClosed, err)
			}
			return
		}
		c.incoming <- m
	}
}

// Send writes m to the relay.
func (c *Client) Send(m Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(m)
}

// Receive waits for the next message.
func (c *Client) Receive(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case m, ok := <-c.incoming:
		if !ok {
			return Message{}, c.readErr
		}
		return m, nil
	}
}

// Close says goodbye to the relay and closes the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
