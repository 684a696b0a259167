package internal

import "slices"

// Methods (Room Struct). Callers hold r.Mu.

func (r *Room) GetPlayerByID(id string) *Player {
	for _, p := range r.Players {
		if p.Id == id {
			return p
		}
	}
	return nil
}

func (r *Room) GetPlayerBySeat(seat int) *Player {
	if seat < 0 {
		return nil
	}
	for _, p := range r.Players {
		if p.SeatIndex == seat {
			return p
		}
	}
	return nil
}

func (r *Room) GetSynthetic() *Player {
	for _, p := range r.Players {
		if p.IsSynthetic {
			return p
		}
	}
	return nil
}

func (r *Room) GetHumanCount() int {
	count := 0
	for _, p := range r.Players {
		if !p.IsSynthetic {
			count++
		}
	}
	return count
}

func (r *Room) RemovePlayer(id string) bool {
	before := len(r.Players)
	r.Players = slices.DeleteFunc(r.Players, func(p *Player) bool {
		return p.Id == id
	})
	return len(r.Players) != before
}

// Roster lists players in seat order.
func (r *Room) Roster() []RosterEntry {
	roster := make([]RosterEntry, 0, len(r.Players))
	for _, p := range r.Players {
		roster = append(roster, p.ToRosterEntry())
	}
	slices.SortFunc(roster, func(a, b RosterEntry) int {
		return a.SeatIndex - b.SeatIndex
	})
	return roster
}

// PresentHumans counts humans still connected to the match.
func (r *Room) PresentHumans() int {
	count := 0
	for _, p := range r.Players {
		if !p.IsSynthetic && !p.Left {
			count++
		}
	}
	return count
}

// LeftNonVoters counts humans who lost their connection without casting a ballot.
func (r *Room) LeftNonVoters() int {
	count := 0
	for _, p := range r.Players {
		if p.IsSynthetic || !p.Left {
			continue
		}
		if _, voted := r.Votes[p.Id]; !voted {
			count++
		}
	}
	return count
}

// Snapshot deep-copies everything the archive needs.
func (r *Room) Snapshot() MatchSnapshot {
	roster := make([]PlayerSnapshot, 0, len(r.Players))
	for _, p := range r.Players {
		roster = append(roster, CreatePlayerSnapshot(p))
	}
	slices.SortFunc(roster, func(a, b PlayerSnapshot) int {
		return a.SeatIndex - b.SeatIndex
	})

	votes := make(map[string]string, len(r.Votes))
	for voter, target := range r.Votes {
		votes[voter] = target
	}

	snapshot := MatchSnapshot{
		RoomID:     r.Id,
		IsStaked:   r.IsStaked,
		Roster:     roster,
		Votes:      votes,
		Messages:   slices.Clone(r.Messages),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Outcome != nil {
		snapshot.Outcome = *r.Outcome
	}
	return snapshot
}
