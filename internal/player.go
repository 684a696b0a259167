package internal

import "time"

type PlayerSnapshot struct {
	ID          string    `json:"id"`
	Wallet      string    `json:"wallet,omitempty"`
	SeatIndex   int       `json:"seat_index"`
	IsSynthetic bool      `json:"is_synthetic"`
	Left        bool      `json:"left"`
	Winner      bool      `json:"winner"`
	JoinedAt    time.Time `json:"joined_at"`
}

func (p *Player) ToRosterEntry() RosterEntry {
	return RosterEntry{
		PlayerID:  p.Id,
		SeatIndex: p.SeatIndex,
		Left:      p.Left,
	}
}

func CreatePlayerSnapshot(p *Player) PlayerSnapshot {
	return PlayerSnapshot{
		ID:          p.Id,
		Wallet:      p.Wallet,
		SeatIndex:   p.SeatIndex,
		IsSynthetic: p.IsSynthetic,
		Left:        p.Left,
		Winner:      p.Winner,
		JoinedAt:    p.JoinedAt,
	}
}
