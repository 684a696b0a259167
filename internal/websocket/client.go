package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scythe504/botornot-backend/internal"
	"github.com/scythe504/botornot-backend/internal/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendBufferSize = 64
)

// Frame types that are not session events.
const (
	FrameWelcome    = "welcome"
	FrameJoin       = "join"
	FrameJoinResult = "join_result"
	FrameVote       = "vote"
	FrameMessage    = "message"
	FrameError      = "error"
)

// Client is one player's socket. Only writePump writes to conn.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity internal.Identity
	send     chan []byte
	done     chan struct{}

	closeOnce sync.Once

	mu     sync.Mutex
	roomID string
}

func newClient(h *Hub, conn *websocket.Conn, identity internal.Identity) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		identity: identity,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

func (c *Client) room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Client) setRoom(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

func (c *Client) clearRoom(roomID string) {
	c.mu.Lock()
	if c.roomID == roomID {
		c.roomID = ""
	}
	c.mu.Unlock()
}

// enqueue never blocks the hub. A client that cannot keep up loses frames.
func (c *Client) enqueue(payload []byte) {
	select {
	case <-c.done:
	case c.send <- payload:
	default:
		c.hub.logger.Warn().Str("player", c.identity.PlayerID).Msg("send buffer full, dropping frame")
	}
}

func (c *Client) sendFrame(frameType string, data any) {
	payload, err := json.Marshal(internal.Message[any]{Type: frameType, Data: data})
	if err != nil {
		c.hub.logger.Error().Err(err).Str("type", frameType).Msg("encoding frame failed")
		return
	}
	c.enqueue(payload)
}

func (c *Client) sendError(op string, err error) {
	c.sendFrame(FrameError, internal.ErrorData{Op: op, Message: err.Error()})
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump routes inbound frames until the socket fails, then reports the
// disconnect to the session manager.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		if err := c.hub.sessions.Disconnect(c.identity); err != nil && !errors.Is(err, game.ErrPlayerNotFound) {
			c.hub.logger.Warn().Err(err).Str("player", c.identity.PlayerID).Msg("disconnect reconciliation failed")
		}
		c.close()
		c.hub.logger.Info().Str("player", c.identity.PlayerID).Msg("client disconnected")
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug().Err(err).Str("player", c.identity.PlayerID).Msg("read error")
			}
			return
		}

		var frame internal.Message[json.RawMessage]
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendError("decode", err)
			continue
		}
		c.handle(frame)
	}
}

func (c *Client) handle(frame internal.Message[json.RawMessage]) {
	switch frame.Type {
	case FrameJoin:
		var data internal.JoinData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			c.sendError(FrameJoin, err)
			return
		}
		if data.Kind == "" {
			data.Kind = internal.KindHuman
		}
		c.join(data)

	case FrameVote:
		var data internal.VoteData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			c.sendError(FrameVote, err)
			return
		}
		if err := c.hub.sessions.RecordVote(c.room(), c.identity.PlayerID, data.Target); err != nil {
			c.sendError(FrameVote, err)
		}

	case FrameMessage:
		var data internal.ChatData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			c.sendError(FrameMessage, err)
			return
		}
		if err := c.hub.sessions.PostMessage(c.room(), c.identity.PlayerID, data.Text); err != nil {
			c.sendError(FrameMessage, err)
		}

	default:
		c.hub.logger.Debug().Str("player", c.identity.PlayerID).Str("type", frame.Type).Msg("unknown frame type")
		c.sendFrame(FrameError, internal.ErrorData{Op: frame.Type, Message: "unknown frame type"})
	}
}

func (c *Client) join(data internal.JoinData) {
	res, err := c.hub.sessions.JoinOrCreate(game.JoinRequest{
		Kind:     data.Kind,
		Staked:   data.Staked,
		Identity: c.identity,
	})
	result := internal.JoinResultData{
		RoomID:   res.RoomID,
		PlayerID: c.identity.PlayerID,
		Success:  res.Success,
	}
	if err != nil {
		result.Error = err.Error()
	} else {
		c.hub.attach(res.RoomID, c.identity.PlayerID)
	}
	c.sendFrame(FrameJoinResult, result)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
