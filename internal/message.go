package internal

type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

type EventType string

const (
	EventMatchStarted    EventType = "match_started"
	EventVotingStarted   EventType = "voting_started"
	EventRoundStarted    EventType = "round_started"
	EventMessageAppended EventType = "message_appended"
	EventVoteObserved    EventType = "vote_observed"
	EventMatchFinished   EventType = "match_finished"
	EventPlayerLeft      EventType = "player_left"
	EventRoomClosed      EventType = "room_closed"
)

// Event is what the session manager publishes on its bus. Data holds one of
// the *Data payloads below.
type Event struct {
	Type   EventType `json:"type"`
	RoomID string    `json:"room_id"`
	Data   any       `json:"data"`
}

type MatchStartedData struct {
	RoomID   string        `json:"room_id"`
	IsStaked bool          `json:"is_staked"`
	Roster   []RosterEntry `json:"roster"`
	Deadline PhaseDeadline `json:"deadline"`
}

type VotingStartedData struct {
	RoomID   string        `json:"room_id"`
	Roster   []RosterEntry `json:"roster"`
	Deadline PhaseDeadline `json:"deadline"`
}

type RoundStartedData struct {
	RoomID   string        `json:"room_id"`
	Round    int           `json:"round"`
	Deadline PhaseDeadline `json:"deadline"`
}

type MessageAppendedData struct {
	RoomID           string `json:"room_id"`
	SpeakerSeatIndex int    `json:"speaker_seat_index"`
	Text             string `json:"text"`
	SentAtMs         int64  `json:"sent_at_ms"`
}

// VoteObservedData never names the voter.
type VoteObservedData struct {
	RoomID          string `json:"room_id"`
	TargetSeatIndex int    `json:"target_seat_index"`
	BallotCount     int    `json:"ballot_count"`
}

type MatchFinishedData struct {
	RoomID  string       `json:"room_id"`
	Outcome MatchOutcome `json:"outcome"`
}

type PlayerLeftData struct {
	RoomID      string `json:"room_id"`
	PlayerID    string `json:"player_id"`
	SeatIndex   int    `json:"seat_index"`
	PlayerCount int    `json:"player_count"`
}

type RoomClosedData struct {
	RoomID string `json:"room_id"`
}

type JoinResultData struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

type ErrorData struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

type WelcomeData struct {
	PlayerID string `json:"player_id"`
}

// Inbound frame payloads.

type JoinData struct {
	Kind   PlayerKind `json:"kind"`
	Staked bool       `json:"staked"`
}

type VoteData struct {
	Target int `json:"target"`
}

type ChatData struct {
	Text string `json:"text"`
}
