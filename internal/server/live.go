package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/realtime"
)

const (
	readTimeout   = 60 * time.Second
	maxFrameBytes = 64 << 10
)

var heartbeatPeriod = 15 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Identity comes from proxy headers, not cookies.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents streams routed messages of one conversation as SSE.
func handleEvents(m *chat.Mediator, hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationID")
		if err := m.AuthorizeRead(conversationID, senderFrom(c)); err != nil {
			writeError(c, err)
			return
		}

		stream := realtime.NewStream(0)
		hub.Attach(stream)
		defer hub.Detach(stream)
		hub.Join(conversationID, stream)

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		connected, _ := json.Marshal(realtime.Event{Type: "connected", ConversationID: conversationID})
		if err := realtime.WriteSSE(c.Writer, "connected", connected); err != nil {
			return
		}
		c.Writer.Flush()

		heartbeat := time.NewTicker(heartbeatPeriod)
		defer heartbeat.Stop()
		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				if err := realtime.WriteSSE(c.Writer, "heartbeat", []byte(`{"type":"heartbeat"}`)); err != nil {
					return
				}
				c.Writer.Flush()
			case payload, ok := <-stream.Events():
				if !ok {
					return
				}
				if err := realtime.WriteSSE(c.Writer, "message", payload); err != nil {
					return
				}
				c.Writer.Flush()
			}
		}
	}
}

// socketFrame is a client frame. A frame with Subscribe set joins that
// channel; any other frame is a message to route.
type socketFrame struct {
	Subscribe      string `json:"subscribe,omitempty"`
	ConversationID string `json:"chat_user_id,omitempty"`
	Message        string `json:"message,omitempty"`
}

// handleSocket upgrades to a websocket that both routes messages and
// receives the channels it subscribed to.
func handleSocket(m *chat.Mediator, hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		sender := senderFrom(c)
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		conn := realtime.NewConnection(sender.ID, sender.Role, ws)
		hub.Attach(conn)
		conn.Start()
		defer func() {
			hub.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(maxFrameBytes)
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(readTimeout))
		})
		reply(conn, realtime.Event{Type: "connected"})

		ctx := c.Request.Context()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
					!errors.Is(err, websocket.ErrCloseSent) {
					log.Printf("server: socket %s read: %v", conn.ID, err)
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

			var frame socketFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				reply(conn, realtime.Event{Type: "error", Error: "invalid frame"})
				continue
			}

			if frame.Subscribe != "" {
				if err := m.AuthorizeRead(frame.Subscribe, sender); err != nil {
					reply(conn, realtime.Event{Type: "error", ConversationID: frame.Subscribe, Error: err.Error()})
					continue
				}
				hub.Join(frame.Subscribe, conn)
				reply(conn, realtime.Event{Type: "subscribed", ConversationID: frame.Subscribe})
				continue
			}

			msg, err := m.RouteMessage(ctx, chat.Inbound{ConversationID: frame.ConversationID, Content: frame.Message}, sender)
			if err != nil {
				reply(conn, realtime.Event{Type: "error", ConversationID: frame.ConversationID, Error: err.Error()})
				continue
			}
			reply(conn, realtime.Event{Type: "sent", ConversationID: msg.ConversationID, Message: msg})
		}
	}
}

func reply(conn *realtime.Connection, evt realtime.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	_ = conn.Send(payload)
}
