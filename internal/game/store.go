package game

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/scythe504/botornot-backend/internal"
	"github.com/scythe504/botornot-backend/internal/utils"
)

// =============================================================================
// ROOM STORE
// =============================================================================

// RoomStore maps room ids to live rooms. Lock order is room.Mu before s.mu:
// the store lock is never held while acquiring a room lock, so a mutation
// running under a room lock may still touch the index.
type RoomStore struct {
	mu      sync.RWMutex
	rooms   map[string]*internal.Room
	order   []string          // creation order, oldest first
	players map[string]string // player id -> room id
	now     func() time.Time
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:   make(map[string]*internal.Room),
		players: make(map[string]string),
		now:     time.Now,
	}
}

// Create registers a new empty waiting room.
func (s *RoomStore) Create(staked bool) *internal.Room {
	ctx, cancel := context.WithCancel(context.Background())
	room := &internal.Room{
		Id:        utils.GenerateID(),
		Players:   make([]*internal.Player, 0, internal.CohortSize),
		IsStaked:  staked,
		Phase:     internal.PhaseWaiting,
		Votes:     make(map[string]string),
		Messages:  make([]internal.ChatMessage, 0),
		CreatedAt: s.now(),
		Context:   ctx,
		Cancel:    cancel,
	}

	s.mu.Lock()
	s.rooms[room.Id] = room
	s.order = append(s.order, room.Id)
	s.mu.Unlock()
	return room
}

func (s *RoomStore) Get(id string) (*internal.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	return room, ok
}

// NewestFirst returns a snapshot of live rooms, most recently created first.
func (s *RoomStore) NewestFirst() []*internal.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]*internal.Room, 0, len(s.order))
	for _, id := range slices.Backward(s.order) {
		if room, ok := s.rooms[id]; ok {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Update applies fn to the room atomically. fn runs with room.Mu held and must
// not block on anything but the room itself.
func (s *RoomStore) Update(id string, fn func(*internal.Room) error) error {
	room, ok := s.Get(id)
	if !ok {
		return ErrRoomNotFound
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()
	if room.Closed {
		return ErrRoomNotFound
	}
	return fn(room)
}

// View runs fn under the room lock without the expectation of mutation.
func (s *RoomStore) View(id string, fn func(*internal.Room)) bool {
	room, ok := s.Get(id)
	if !ok {
		return false
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()
	if room.Closed {
		return false
	}
	fn(room)
	return true
}

func (s *RoomStore) RoomOf(playerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.players[playerID]
	return id, ok
}

// bind and unbind are called with the room lock held.
func (s *RoomStore) bind(playerID, roomID string) {
	s.mu.Lock()
	s.players[playerID] = roomID
	s.mu.Unlock()
}

func (s *RoomStore) unbind(playerID, roomID string) {
	s.mu.Lock()
	if s.players[playerID] == roomID {
		delete(s.players, playerID)
	}
	s.mu.Unlock()
}

// evictLocked removes the room from the store and cancels its context, which
// turns every pending phase timer into a no-op. Caller holds room.Mu.
func (s *RoomStore) evictLocked(room *internal.Room) {
	room.Closed = true
	if room.Cancel != nil {
		room.Cancel()
	}

	s.mu.Lock()
	delete(s.rooms, room.Id)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == room.Id })
	for _, p := range room.Players {
		if s.players[p.Id] == room.Id {
			delete(s.players, p.Id)
		}
	}
	s.mu.Unlock()
}

// CloseAll evicts every room. Used on shutdown.
func (s *RoomStore) CloseAll() {
	for _, room := range s.NewestFirst() {
		room.Mu.Lock()
		if !room.Closed {
			s.evictLocked(room)
		}
		room.Mu.Unlock()
	}
}

// CountByPhase reports live rooms per phase.
func (s *RoomStore) CountByPhase() map[internal.GamePhase]int {
	counts := make(map[internal.GamePhase]int)
	for _, room := range s.NewestFirst() {
		room.Mu.Lock()
		if !room.Closed {
			counts[room.Phase]++
		}
		room.Mu.Unlock()
	}
	return counts
}
