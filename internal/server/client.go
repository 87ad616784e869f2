package server

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Wavecall/internal/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP bodies fit comfortably.
	maxMessageSize = 64 * 1024
)

// Client is a wrapper for a single websocket connection (one participant).
type Client struct {
	// Hub is the hub that manages this client.
	Hub *Hub

	// Conn is the websocket connection.
	Conn *websocket.Conn

	// Name is the participant name, set once the client joins a room.
	Name string

	// RoomID is the room the client is in, empty before joining.
	RoomID string

	// Send is a buffered channel for all outbound events. The hub writes to
	// this channel; WritePump drains it onto the socket.
	Send chan *signaling.Event
}

// ReadPump pumps events from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine, keeping at
// most one reader on the connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev signaling.Event
		if err := c.Conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("read", "addr", c.Conn.RemoteAddr(), "err", err)
			}
			break
		}
		c.Hub.Inbound <- &inbound{event: &ev, client: c}
	}
}

// WritePump pumps events from the hub to the websocket connection.
//
// One WritePump goroutine runs per connection, keeping at most one writer on
// the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(ev); err != nil {
				slog.Warn("write", "addr", c.Conn.RemoteAddr(), "err", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
