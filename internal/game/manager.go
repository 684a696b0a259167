package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/scythe504/botornot-backend/internal"
)

type Settings struct {
	CohortSize           int
	MaxRounds            int
	ConversationDuration time.Duration
	VotingDuration       time.Duration
	MaxMessageLength     int
	ArchiveTimeout       time.Duration
	AuditTimeout         time.Duration
	OpenerChance         float64
	OpenerMin            time.Duration
	OpenerMax            time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		CohortSize:           internal.CohortSize,
		MaxRounds:            internal.MaxRounds,
		ConversationDuration: internal.ConversationPhaseDuration,
		VotingDuration:       internal.VotingPhaseDuration,
		MaxMessageLength:     internal.MaxMessageLength,
		ArchiveTimeout:       10 * time.Second,
		AuditTimeout:         2 * time.Second,
		OpenerChance:         0.5,
		OpenerMin:            3 * time.Second,
		OpenerMax:            10 * time.Second,
	}
}

// Manager is the game session manager. All room mutations go through
// store.Update so each one is atomic with respect to its room.
type Manager struct {
	settings Settings
	store    *RoomStore
	bus      *Bus
	registry *Registry

	archiver Archiver
	settler  Settler
	auditor  DisconnectAuditor

	logger zerolog.Logger
	now    func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	// handoffs tracks archive and settlement goroutines.
	handoffs sync.WaitGroup
}

type Option func(*Manager)

func WithArchiver(a Archiver) Option { return func(m *Manager) { m.archiver = a } }

func WithSettler(s Settler) Option { return func(m *Manager) { m.settler = s } }

func WithAuditor(a DisconnectAuditor) Option { return func(m *Manager) { m.auditor = a } }

func WithLogger(l zerolog.Logger) Option { return func(m *Manager) { m.logger = l } }

func WithRand(r *rand.Rand) Option { return func(m *Manager) { m.rng = r } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(settings Settings, bus *Bus, opts ...Option) *Manager {
	m := &Manager{
		settings: settings,
		store:    NewRoomStore(),
		bus:      bus,
		archiver: nopCollaborator{},
		settler:  nopCollaborator{},
		auditor:  nopCollaborator{},
		logger:   zerolog.Nop(),
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.store.now = m.now
	m.registry = NewRegistry(m.now)
	m.logger = m.logger.With().Str("component", "session").Logger()
	return m
}

func (m *Manager) Store() *RoomStore { return m.store }

func (m *Manager) Bus() *Bus { return m.bus }

func (m *Manager) Settings() Settings { return m.settings }

// Wait blocks until every archive and settlement hand-off has returned.
func (m *Manager) Wait() { m.handoffs.Wait() }

// Shutdown evicts all live rooms, cancelling their timers.
func (m *Manager) Shutdown() {
	m.store.CloseAll()
	m.handoffs.Wait()
}

func (m *Manager) publish(eventType internal.EventType, roomID string, data any) {
	m.bus.Publish(internal.Event{Type: eventType, RoomID: roomID, Data: data})
}

func (m *Manager) shuffle(n int, swap func(i, j int)) {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	m.rng.Shuffle(n, swap)
}

func (m *Manager) chance(p float64) bool {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Float64() < p
}

// between returns a uniformly random duration in [lo, hi].
func (m *Manager) between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return lo + time.Duration(m.rng.Int63n(int64(hi-lo)+1))
}

// humanSeats is the number of human players in a full cohort.
func (m *Manager) humanSeats() int {
	return m.settings.CohortSize - 1
}
