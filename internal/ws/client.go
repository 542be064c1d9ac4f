package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// pushFrame is the wire shape of a server->client push. Request/response
// envelopes are written as realtime.Envelope instead.
type pushFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// client binds one websocket to the realtime engine. It implements
// realtime.Pusher.
//
// The send channel is never closed: an in-flight broadcast may have resolved
// this client from a membership snapshot taken just before teardown, and its
// Push must stay safe. Teardown is signalled through done instead.
type client struct {
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	gateway *Gateway
	conn    *realtime.Connection
	once    sync.Once
}

// Push queues a server push without blocking. A client that cannot drain its
// buffer loses pushes rather than stalling the broadcaster; a torn-down
// client swallows them.
func (c *client) Push(event string, data any) {
	frame, err := json.Marshal(pushFrame{Event: event, Data: data})
	if err != nil {
		log.Printf("ws: failed to marshal push %s: %v", event, err)
		return
	}
	select {
	case <-c.done:
	case c.send <- frame:
	default:
		log.Printf("ws: send buffer full, dropping %s push", event)
	}
}

// writeEnvelope queues a request's response. Unlike pushes, responses are
// never silently dropped: if the client cannot drain its buffer within the
// write deadline, the connection is closed so the client sees the failure.
func (c *client) writeEnvelope(env realtime.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		log.Printf("ws: failed to marshal envelope: %v", err)
		return
	}
	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case c.send <- frame:
	case <-c.done:
	case <-timer.C:
		log.Printf("ws: response backlog for %s, closing connection", c.conn.UserID)
		c.ws.Close()
	}
}

func (c *client) readPump() {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("ws: failed to set read deadline: %v", err)
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error for %s: %v", c.conn.UserID, err)
			}
			return
		}

		var req realtime.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.writeEnvelope(realtime.Envelope{Success: false, Message: "malformed frame"})
			continue
		}

		env := c.gateway.dispatcher.Dispatch(context.Background(), c.conn, req)
		c.writeEnvelope(env)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close tears the connection down exactly once: leave every room, deregister
// (firing the offline transition when this was the last connection), and
// clear typing state. The send channel stays open for stragglers resolved
// from pre-teardown broadcast snapshots.
func (c *client) close() {
	c.once.Do(func() {
		ctx := context.Background()
		c.gateway.rooms.LeaveAll(c.conn.ID)
		last := c.gateway.registry.Deregister(ctx, c.conn.ID)
		if last {
			c.gateway.typing.ClearOnDisconnect(ctx, c.conn.UserID)
		}
		close(c.done)
		c.ws.Close()
	})
}
