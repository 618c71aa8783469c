/**
 * @description
 * This file implements the WebSocket transport for one audit-stream
 * subscriber: connection upgrade, registration with the Hub, and the
 * read/write pumps that keep the connection alive.
 *
 * Key features:
 * - Ping/Pong Keepalive: writePump pings on pingPeriod; readPump resets
 *   its deadline on every pong, so a dead TCP connection is detected
 *   within pongWait instead of hanging forever.
 *
 * @dependencies
 * - github.com/gorilla/websocket: WebSocket upgrade and framing.
 */
package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one subscriber connected to the audit WebSocket stream.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	Send   chan []byte
	logger *slog.Logger
}

/**
 * @description
 * Serve upgrades an HTTP request to a WebSocket, registers the client
 * with the hub and starts its read and write pumps in goroutines, then
 * returns; the pumps run until the connection closes, and readPump
 * unregisters the client when it exits.
 *
 * @param hub The Hub to register this client with.
 * @param w The ResponseWriter to upgrade; must support hijacking.
 * @param r The originating request.
 * @param logger A structured logger for this client's write failures.
 * @returns An error if the WebSocket upgrade itself fails.
 */
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, logger *slog.Logger) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &Client{hub: hub, conn: conn, Send: make(chan []byte, sendBuffer), logger: logger}
	hub.Register <- client

	go client.writePump()
	go client.readPump()
	return nil
}

// readPump drains and discards inbound frames; the stream is
// one-directional, but the read loop is what detects client
// disconnects and pongs.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("audit client write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
