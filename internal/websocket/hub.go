package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/scythe504/botornot-backend/internal"
	"github.com/scythe504/botornot-backend/internal/game"
	"github.com/scythe504/botornot-backend/internal/utils"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Sessions is the part of the session manager the transport drives.
type Sessions interface {
	JoinOrCreate(req game.JoinRequest) (game.JoinResult, error)
	RecordVote(roomID, voterID string, targetSeat int) error
	PostMessage(roomID, playerID, text string) error
	Disconnect(identity internal.Identity) error
}

// Hub owns every open connection and forwards session events to the clients
// seated in the affected room.
type Hub struct {
	sessions Sessions
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*Client             // player id -> client
	rooms   map[string]map[string]struct{} // room id -> player ids
}

func NewHub(sessions Sessions, logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: sessions,
		logger:   logger.With().Str("component", "hub").Logger(),
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]struct{}),
	}
}

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

// HandleWebSocket upgrades the request and assigns the caller a player id.
// The wallet query parameter, when present, is bound to that id for life.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}

	client := newClient(h, conn, internal.Identity{
		PlayerID: utils.GenerateID(),
		Wallet:   r.URL.Query().Get("wallet"),
	})
	h.register(client)
	client.sendFrame(FrameWelcome, internal.WelcomeData{PlayerID: client.identity.PlayerID})

	h.logger.Info().Str("player", client.identity.PlayerID).
		Bool("wallet", client.identity.Wallet != "").Msg("client connected")

	go client.writePump()
	go client.readPump()
}

// Run forwards bus events until ctx is cancelled or the channel closes.
func (h *Hub) Run(ctx context.Context, events <-chan internal.Event) error {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			h.route(ev)
		}
	}
}

func (h *Hub) route(ev internal.Event) {
	payload, err := json.Marshal(internal.Message[any]{Type: string(ev.Type), Data: ev.Data})
	if err != nil {
		h.logger.Error().Err(err).Str("room", ev.RoomID).Str("type", string(ev.Type)).Msg("encoding event failed")
		return
	}

	// The last joiner's match_started can overtake its join_result, so seat
	// membership is refreshed from the roster.
	switch data := ev.Data.(type) {
	case internal.MatchStartedData:
		h.attachRoster(ev.RoomID, data.Roster)
	case internal.VotingStartedData:
		h.attachRoster(ev.RoomID, data.Roster)
	}

	h.broadcast(ev.RoomID, payload)

	switch ev.Type {
	case internal.EventMatchFinished, internal.EventRoomClosed:
		h.detachRoom(ev.RoomID)
	case internal.EventPlayerLeft:
		if data, ok := ev.Data.(internal.PlayerLeftData); ok {
			h.detach(ev.RoomID, data.PlayerID)
		}
	}
}

func (h *Hub) broadcast(roomID string, payload []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for playerID := range h.rooms[roomID] {
		if c, ok := h.clients[playerID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(payload)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.identity.PlayerID] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c.identity.PlayerID] == c {
		delete(h.clients, c.identity.PlayerID)
	}
	if roomID := c.room(); roomID != "" {
		h.removeMemberLocked(roomID, c.identity.PlayerID)
	}
	h.mu.Unlock()
}

func (h *Hub) attach(roomID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[playerID]
	if !ok {
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[roomID] = members
	}
	members[playerID] = struct{}{}
	c.setRoom(roomID)
}

func (h *Hub) attachRoster(roomID string, roster []internal.RosterEntry) {
	for _, entry := range roster {
		if !entry.Left {
			h.attach(roomID, entry.PlayerID)
		}
	}
}

func (h *Hub) detach(roomID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeMemberLocked(roomID, playerID)
	if c, ok := h.clients[playerID]; ok {
		c.clearRoom(roomID)
	}
}

func (h *Hub) detachRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for playerID := range h.rooms[roomID] {
		if c, ok := h.clients[playerID]; ok {
			c.clearRoom(roomID)
		}
	}
	delete(h.rooms, roomID)
}

func (h *Hub) removeMemberLocked(roomID, playerID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, playerID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

// ConnectedClients reports the number of open sockets.
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
