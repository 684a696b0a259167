package internal

import (
	"context"
	"sync"
	"time"
)

const (
	ConversationPhaseDuration = 120 * time.Second
	VotingPhaseDuration       = 30 * time.Second
	CohortSize                = 4
	MaxRounds                 = 2
	MaxMessageLength          = 280
)

type GamePhase string

const (
	PhaseWaiting  GamePhase = "waiting"
	PhaseActive   GamePhase = "active"
	PhaseVoting   GamePhase = "voting"
	PhaseFinished GamePhase = "finished"
)

type PlayerKind string

const (
	KindHuman PlayerKind = "human"
)

// NoSeat marks a player that has not been seated yet (room still waiting).
const NoSeat = -1

type PhaseTimer struct {
	Phase     GamePhase     `json:"phase"`
	Round     int           `json:"round"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	IsActive  bool          `json:"is_active"`
	Context   context.Context
	Cancel    context.CancelFunc
}

type ChatMessage struct {
	PlayerID    string    `json:"player_id"`
	SeatIndex   int       `json:"seat_index"`
	Text        string    `json:"text"`
	IsSynthetic bool      `json:"is_synthetic"`
	SentAt      time.Time `json:"sent_at"`
}

type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}

type Room struct {
	Id       string
	Players  []*Player
	IsStaked bool `json:"is_staked"`

	// Game State
	Phase GamePhase `json:"phase"`
	Round int       `json:"round"`

	// Votes maps voter id to target id. Only the latest ballot per voter is kept.
	Votes   map[string]string `json:"-"`
	Outcome *MatchOutcome     `json:"outcome,omitempty"`

	// Conversation
	Messages []ChatMessage `json:"messages"`

	// Pending holds human messages the synthetic participant has not seen yet.
	// OpenerDue is the earliest time an unsolicited opener may be requested.
	Pending   []ChatMessage `json:"-"`
	OpenerDue time.Time     `json:"-"`

	// Timer
	Timer *PhaseTimer `json:"timer"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Closed is set once the room has been evicted from the store.
	Closed bool `json:"-"`

	// Concurrency control
	Mu sync.Mutex `json:"-"`

	// Context for cleanup
	Context context.Context    `json:"-"`
	Cancel  context.CancelFunc `json:"-"`
}

type Player struct {
	Id          string    `json:"id"`
	Wallet      string    `json:"-"`
	SeatIndex   int       `json:"seat_index"`
	IsSynthetic bool      `json:"-"`
	Left        bool      `json:"left"`
	Winner      bool      `json:"winner"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Identity is the caller's session as resolved by the transport.
type Identity struct {
	PlayerID string `json:"player_id"`
	Wallet   string `json:"wallet,omitempty"`
}

type RosterEntry struct {
	PlayerID  string `json:"player_id"`
	SeatIndex int    `json:"seat_index"`
	Left      bool   `json:"left"`
}

// PhaseDeadline lets clients compute a drift-corrected deadline: the remaining
// time is DurationMs minus (local receive time - ServerTimeMs) adjusted by the
// client's own clock offset.
type PhaseDeadline struct {
	Phase        GamePhase `json:"phase"`
	Round        int       `json:"round"`
	ServerTimeMs int64     `json:"server_time_ms"`
	DurationMs   int64     `json:"duration_ms"`
	DeadlineMs   int64     `json:"deadline_ms"`
}

type PlayerOutcome struct {
	PlayerID    string `json:"player_id"`
	SeatIndex   int    `json:"seat_index"`
	IsSynthetic bool   `json:"is_synthetic"`
	VotedFor    int    `json:"voted_for"`
	Identified  bool   `json:"identified"`
	Winner      bool   `json:"winner"`
}

type MatchOutcome struct {
	Players       []PlayerOutcome `json:"players"`
	SyntheticSeat int             `json:"synthetic_seat"`
	SyntheticWon  bool            `json:"synthetic_won"`
	VoteCounts    map[int]int     `json:"vote_counts"`
	MostVotedSeat int             `json:"most_voted_seat"`
	Rounds        int             `json:"rounds"`
}

// IdentifiedCount returns how many humans voted for the synthetic participant.
func (o MatchOutcome) IdentifiedCount() int {
	n := 0
	for _, p := range o.Players {
		if p.Identified {
			n++
		}
	}
	return n
}

type Winner struct {
	PlayerID string `json:"player_id"`
	Wallet   string `json:"wallet,omitempty"`
}

// MatchSnapshot is the immutable record handed to the archive once a room finishes.
type MatchSnapshot struct {
	RoomID     string            `json:"room_id"`
	IsStaked   bool              `json:"is_staked"`
	Roster     []PlayerSnapshot  `json:"roster"`
	Votes      map[string]string `json:"votes"`
	Messages   []ChatMessage     `json:"messages"`
	Outcome    MatchOutcome      `json:"outcome"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

type GenerationTurn struct {
	SpeakerSeat int    `json:"speaker_seat"`
	Text        string `json:"text"`
}

type GenerationRequest struct {
	RoomID        string           `json:"room_id"`
	SyntheticSeat int              `json:"synthetic_seat"`
	Turns         []GenerationTurn `json:"turns"`
}

type GenerationResponse struct {
	Text   string `json:"text"`
	Ignore bool   `json:"ignore"`
}
