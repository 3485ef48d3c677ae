package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bryan-buckman/watchdeck/internal/hub"
	"github.com/gorilla/websocket"
)

const (
	// wsWriteWait bounds a single event write; a peer slower than this
	// is disconnected rather than awaited.
	wsWriteWait = 5 * time.Second
	// wsSendBuffer is the per-client event queue. A client that falls
	// this far behind is dropped.
	wsSendBuffer = 32
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard overlay is served same-host; the API carries no
	// credentials, so cross-origin dev setups are allowed through.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var (
	errSubscriberClosed = errors.New("subscriber closed")
	errSubscriberStall  = errors.New("subscriber queue full")
)

// wsClient adapts a websocket connection to the hub's Subscriber
// interface. Events are queued on a buffered channel and written by a
// single pump goroutine, so Broadcast never blocks on a slow peer.
type wsClient struct {
	conn *websocket.Conn
	send chan hub.Event
	done chan struct{}
	once sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan hub.Event, wsSendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues an event for delivery. It fails, without blocking, when
// the client is gone or its queue is full; the hub treats either as a
// disconnect.
func (c *wsClient) Send(evt hub.Event) error {
	select {
	case <-c.done:
		return errSubscriberClosed
	default:
	}
	select {
	case c.send <- evt:
		return nil
	default:
		return errSubscriberStall
	}
}

// writePump drains the queue onto the wire until the client closes.
func (c *wsClient) writePump() {
	for {
		select {
		case evt := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// handleWebSocket upgrades the connection and registers it with the
// hub. The client is read-only from the server's perspective: the
// read loop exists to observe disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	client := newWSClient(conn)
	s.hub.Subscribe(client)
	go client.writePump()

	go func() {
		defer func() {
			s.hub.Unsubscribe(client)
			client.close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
