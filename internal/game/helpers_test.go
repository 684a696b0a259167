package game

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scythe504/botornot-backend/internal"
	"github.com/scythe504/botornot-backend/internal/utils"
)

type fakeArchive struct {
	mu        sync.Mutex
	snapshots []internal.MatchSnapshot
}

func (f *fakeArchive) ArchiveMatch(_ context.Context, s internal.MatchSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, s)
	return nil
}

func (f *fakeArchive) all() []internal.MatchSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]internal.MatchSnapshot(nil), f.snapshots...)
}

type settleCall struct {
	roomID  string
	winners []internal.Winner
}

type fakeSettler struct {
	mu    sync.Mutex
	calls []settleCall
}

func (f *fakeSettler) SettlePrizes(_ context.Context, roomID string, winners []internal.Winner) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, settleCall{roomID: roomID, winners: winners})
	return nil
}

func (f *fakeSettler) all() []settleCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]settleCall(nil), f.calls...)
}

type fakeAuditor struct {
	mu      sync.Mutex
	records []internal.PlayerSnapshot
}

func (f *fakeAuditor) RecordStakedDisconnect(_ context.Context, _ string, p internal.PlayerSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, p)
	return nil
}

func (f *fakeAuditor) all() []internal.PlayerSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]internal.PlayerSnapshot(nil), f.records...)
}

type recorder struct {
	mu     sync.Mutex
	events []internal.Event
}

func record(t *testing.T, bus *Bus) *recorder {
	t.Helper()
	r := &recorder{}
	events, cancel := bus.Subscribe()
	t.Cleanup(cancel)
	go func() {
		for ev := range events {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *recorder) ofType(tp internal.EventType) []internal.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []internal.Event
	for _, ev := range r.events {
		if ev.Type == tp {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, tp internal.EventType, n int) []internal.Event {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.ofType(tp)) >= n
	}, 2*time.Second, 5*time.Millisecond, "waiting for %d %s events", n, tp)
	return r.ofType(tp)
}

type harness struct {
	m       *Manager
	events  *recorder
	archive *fakeArchive
	settler *fakeSettler
	auditor *fakeAuditor
}

// newHarness builds a manager with hour-long phases so tests drive the
// transitions themselves, and no opener unless a test asks for one.
func newHarness(t *testing.T, mutate ...func(*Settings)) *harness {
	t.Helper()
	settings := DefaultSettings()
	settings.ConversationDuration = time.Hour
	settings.VotingDuration = time.Hour
	settings.OpenerChance = 0
	for _, fn := range mutate {
		fn(&settings)
	}

	h := &harness{
		archive: &fakeArchive{},
		settler: &fakeSettler{},
		auditor: &fakeAuditor{},
	}
	bus := NewBus()
	h.events = record(t, bus)
	h.m = NewManager(settings, bus,
		WithArchiver(h.archive),
		WithSettler(h.settler),
		WithAuditor(h.auditor),
		WithRand(rand.New(rand.NewSource(42))),
	)
	t.Cleanup(func() {
		h.m.Shutdown()
		bus.Close()
	})
	return h
}

func humanIdentity() internal.Identity {
	return internal.Identity{PlayerID: utils.GenerateID(), Wallet: "0x" + utils.GenerateID()[:8]}
}

func (h *harness) join(t *testing.T, staked bool) (JoinResult, internal.Identity) {
	t.Helper()
	id := humanIdentity()
	res, err := h.m.JoinOrCreate(JoinRequest{Kind: internal.KindHuman, Staked: staked, Identity: id})
	require.NoError(t, err)
	require.True(t, res.Success)
	return res, id
}

// fill joins a full cohort of humans and returns the room and their ids.
func (h *harness) fill(t *testing.T, staked bool) (string, []string) {
	t.Helper()
	var roomID string
	var humans []string
	for i := 0; i < h.m.humanSeats(); i++ {
		res, id := h.join(t, staked)
		if roomID == "" {
			roomID = res.RoomID
		}
		require.Equal(t, roomID, res.RoomID)
		humans = append(humans, id.PlayerID)
	}
	return roomID, humans
}

func (h *harness) room(t *testing.T, roomID string) (phase internal.GamePhase, round int, players []internal.Player, votes map[string]string) {
	t.Helper()
	ok := h.m.store.View(roomID, func(room *internal.Room) {
		phase = room.Phase
		round = room.Round
		for _, p := range room.Players {
			players = append(players, *p)
		}
		votes = make(map[string]string, len(room.Votes))
		for k, v := range room.Votes {
			votes[k] = v
		}
	})
	require.True(t, ok, "room %s not live", roomID)
	return
}

func (h *harness) seat(t *testing.T, roomID, playerID string) int {
	t.Helper()
	_, _, players, _ := h.room(t, roomID)
	for _, p := range players {
		if p.Id == playerID {
			return p.SeatIndex
		}
	}
	t.Fatalf("player %s not in room %s", playerID, roomID)
	return internal.NoSeat
}

func (h *harness) syntheticSeat(t *testing.T, roomID string) int {
	t.Helper()
	_, _, players, _ := h.room(t, roomID)
	for _, p := range players {
		if p.IsSynthetic {
			return p.SeatIndex
		}
	}
	t.Fatalf("room %s has no synthetic participant", roomID)
	return internal.NoSeat
}

func (h *harness) live(roomID string) bool {
	_, ok := h.m.store.Get(roomID)
	return ok
}
