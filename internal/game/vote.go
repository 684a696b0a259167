package game

import (
	"github.com/scythe504/botornot-backend/internal"
)

// =============================================================================
// VOTE TALLY
// =============================================================================

// RecordVote stores voterID's ballot for the player at targetSeat. A later
// ballot from the same voter replaces the earlier one.
func (m *Manager) RecordVote(roomID, voterID string, targetSeat int) error {
	return m.store.Update(roomID, func(room *internal.Room) error {
		if room.Phase != internal.PhaseVoting {
			return ErrWrongPhase
		}
		voter := room.GetPlayerByID(voterID)
		if voter == nil {
			return ErrPlayerNotFound
		}
		if voter.IsSynthetic {
			return ErrNotPermitted
		}
		if voter.Left {
			return ErrPlayerLeft
		}
		target := room.GetPlayerBySeat(targetSeat)
		if target == nil {
			return ErrInvalidTarget
		}
		if target.Id == voter.Id {
			return ErrSelfVote
		}

		_, overwrite := room.Votes[voter.Id]
		room.Votes[voter.Id] = target.Id

		m.logger.Debug().Str("room", roomID).Int("round", room.Round).
			Bool("overwrite", overwrite).Int("ballots", len(room.Votes)).Msg("vote recorded")
		m.publish(internal.EventVoteObserved, roomID, internal.VoteObservedData{
			RoomID:          roomID,
			TargetSeatIndex: targetSeat,
			BallotCount:     len(room.Votes),
		})

		if earlyExitReached(room) {
			m.logger.Info().Str("room", roomID).Int("round", room.Round).Msg("all eligible voters in, resolving early")
			m.resolveLocked(room)
		}
		return nil
	})
}

// ResolveVotes is the voting timer's attempt to close the given round.
func (m *Manager) ResolveVotes(roomID string, round int) bool {
	resolved := false
	_ = m.store.Update(roomID, func(room *internal.Room) error {
		if room.Phase != internal.PhaseVoting || room.Round != round {
			m.logger.Debug().Str("room", roomID).Str("phase", string(room.Phase)).
				Int("round", room.Round).Int("expected_round", round).Msg("vote resolution skipped")
			return nil
		}
		m.resolveLocked(room)
		resolved = true
		return nil
	})
	return resolved
}

// earlyExitReached reports whether every human has either voted or left.
func earlyExitReached(room *internal.Room) bool {
	return len(room.Votes)+room.LeftNonVoters() == len(room.Players)-1
}

// resolveLocked closes the current voting round. An inconclusive first round
// (nobody found the synthetic participant) earns one more conversation round
// while any human is still connected; anything else ends the match. Caller
// holds room.Mu and phase is voting.
func (m *Manager) resolveLocked(room *internal.Room) {
	outcome := Tally(room.Players, room.Votes)
	outcome.Rounds = room.Round

	if outcome.IdentifiedCount() == 0 && room.Round < m.settings.MaxRounds && room.PresentHumans() > 0 {
		m.logger.Info().Str("room", room.Id).Int("round", room.Round).Msg("synthetic participant unanimously missed")
		m.startNextRoundLocked(room)
		return
	}
	m.finishLocked(room, outcome)
}

// Tally derives per-player outcomes from the ballots. It is pure: the same
// players and votes always give the same result.
func Tally(players []*internal.Player, votes map[string]string) internal.MatchOutcome {
	outcome := internal.MatchOutcome{
		Players:       make([]internal.PlayerOutcome, 0, len(players)),
		SyntheticSeat: internal.NoSeat,
		VoteCounts:    make(map[int]int),
		MostVotedSeat: internal.NoSeat,
	}

	var synthetic *internal.Player
	seatOf := make(map[string]int, len(players))
	for _, p := range players {
		seatOf[p.Id] = p.SeatIndex
		if p.IsSynthetic {
			synthetic = p
			outcome.SyntheticSeat = p.SeatIndex
		}
	}

	identified := 0
	for _, p := range players {
		po := internal.PlayerOutcome{
			PlayerID:    p.Id,
			SeatIndex:   p.SeatIndex,
			IsSynthetic: p.IsSynthetic,
			VotedFor:    internal.NoSeat,
		}
		if target, ok := votes[p.Id]; ok {
			po.VotedFor = seatOf[target]
			outcome.VoteCounts[po.VotedFor]++
			po.Identified = synthetic != nil && target == synthetic.Id
		}
		if po.Identified {
			po.Winner = true
			identified++
		}
		outcome.Players = append(outcome.Players, po)
	}

	outcome.SyntheticWon = identified == 0
	for i := range outcome.Players {
		if outcome.Players[i].IsSynthetic {
			outcome.Players[i].Winner = outcome.SyntheticWon
		}
	}

	outcome.MostVotedSeat = mostVoted(outcome.VoteCounts)
	return outcome
}

// mostVoted returns the seat with the most ballots, lowest seat on ties, or
// NoSeat when nobody voted.
func mostVoted(counts map[int]int) int {
	best, bestCount := internal.NoSeat, 0
	for seat, count := range counts {
		if count > bestCount || (count == bestCount && count > 0 && seat < best) {
			best, bestCount = seat, count
		}
	}
	return best
}
