package game

import (
	"context"
	"time"

	"github.com/scythe504/botornot-backend/internal"
)

// =============================================================================
// GAME FLOW - PHASE SCHEDULER
// =============================================================================
//
// waiting -> active -> voting -> active (second round, once) -> voting -> finished
//
// Every transition is an "attempt": it checks the expected phase and round
// under the room lock and does nothing when they no longer match. The voting
// timer and the early-exit path race for the same transition on purpose; the
// loser is a no-op.

// startMatchLocked seats the cohort and opens the first conversation round.
// Caller holds room.Mu and the room is full.
func (m *Manager) startMatchLocked(room *internal.Room) {
	m.shuffle(len(room.Players), func(i, j int) {
		room.Players[i], room.Players[j] = room.Players[j], room.Players[i]
	})
	for i, p := range room.Players {
		p.SeatIndex = i
	}

	room.Phase = internal.PhaseActive
	room.Round = 1
	room.StartedAt = m.now()
	room.Votes = make(map[string]string)

	roomID := room.Id
	round := room.Round
	deadline := m.startPhaseTimerLocked(room, internal.PhaseActive, m.settings.ConversationDuration, func() {
		m.BeginVoting(roomID, round)
	})

	// Even odds of an unsolicited opener, so silence does not give the seat away.
	if m.chance(m.settings.OpenerChance) {
		room.OpenerDue = m.now().Add(m.between(m.settings.OpenerMin, m.settings.OpenerMax))
	}

	m.logger.Info().Str("room", roomID).Int("players", len(room.Players)).
		Bool("opener", !room.OpenerDue.IsZero()).Msg("match started")

	m.publish(internal.EventMatchStarted, roomID, internal.MatchStartedData{
		RoomID:   roomID,
		IsStaked: room.IsStaked,
		Roster:   room.Roster(),
		Deadline: deadline,
	})
}

// BeginVoting moves the room from the given conversation round to voting. It
// reports whether the transition happened.
func (m *Manager) BeginVoting(roomID string, round int) bool {
	advanced := false
	err := m.store.Update(roomID, func(room *internal.Room) error {
		if room.Phase != internal.PhaseActive || room.Round != round {
			m.logger.Debug().Str("room", roomID).Str("phase", string(room.Phase)).
				Int("round", room.Round).Int("expected_round", round).Msg("voting transition skipped")
			return nil
		}

		room.Phase = internal.PhaseVoting
		room.Votes = make(map[string]string)
		room.Pending = nil
		room.OpenerDue = time.Time{}
		advanced = true

		deadline := m.startPhaseTimerLocked(room, internal.PhaseVoting, m.settings.VotingDuration, func() {
			m.ResolveVotes(roomID, round)
		})

		m.logger.Info().Str("room", roomID).Int("round", round).Msg("voting started")
		m.publish(internal.EventVotingStarted, roomID, internal.VotingStartedData{
			RoomID:   roomID,
			Roster:   room.Roster(),
			Deadline: deadline,
		})
		return nil
	})
	if err != nil {
		m.logger.Debug().Str("room", roomID).Err(err).Msg("voting transition on missing room")
	}
	return advanced
}

// startNextRoundLocked reopens conversation after an inconclusive vote.
func (m *Manager) startNextRoundLocked(room *internal.Room) {
	room.Phase = internal.PhaseActive
	room.Round++
	room.Votes = make(map[string]string)

	roomID := room.Id
	round := room.Round
	deadline := m.startPhaseTimerLocked(room, internal.PhaseActive, m.settings.ConversationDuration, func() {
		m.BeginVoting(roomID, round)
	})

	m.logger.Info().Str("room", roomID).Int("round", round).Msg("next conversation round started")
	m.publish(internal.EventRoundStarted, roomID, internal.RoundStartedData{
		RoomID:   roomID,
		Round:    round,
		Deadline: deadline,
	})
}

// finishLocked commits the outcome, notifies observers, hands the snapshot to
// the archive and winners to settlement, then evicts the room.
func (m *Manager) finishLocked(room *internal.Room, outcome internal.MatchOutcome) {
	room.Phase = internal.PhaseFinished
	room.FinishedAt = m.now()
	room.Outcome = &outcome
	for _, po := range outcome.Players {
		if p := room.GetPlayerByID(po.PlayerID); p != nil {
			p.Winner = po.Winner
		}
	}

	m.logger.Info().Str("room", room.Id).Int("identified", outcome.IdentifiedCount()).
		Bool("synthetic_won", outcome.SyntheticWon).Int("rounds", outcome.Rounds).Msg("match finished")
	m.publish(internal.EventMatchFinished, room.Id, internal.MatchFinishedData{
		RoomID:  room.Id,
		Outcome: outcome,
	})

	snapshot := room.Snapshot()
	var winners []internal.Winner
	for _, p := range room.Players {
		if p.Winner && !p.IsSynthetic {
			winners = append(winners, internal.Winner{PlayerID: p.Id, Wallet: p.Wallet})
		}
	}
	m.handOff(snapshot, winners)

	m.store.evictLocked(room)
}

func (m *Manager) handOff(snapshot internal.MatchSnapshot, winners []internal.Winner) {
	m.handoffs.Add(1)
	go func() {
		defer m.handoffs.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.settings.ArchiveTimeout)
		defer cancel()
		if err := m.archiver.ArchiveMatch(ctx, snapshot); err != nil {
			m.logger.Error().Err(err).Str("room", snapshot.RoomID).Msg("archiving match failed")
		}
	}()

	if !snapshot.IsStaked {
		return
	}
	m.handoffs.Add(1)
	go func() {
		defer m.handoffs.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.settings.ArchiveTimeout)
		defer cancel()
		if err := m.settler.SettlePrizes(ctx, snapshot.RoomID, winners); err != nil {
			m.logger.Error().Err(err).Str("room", snapshot.RoomID).Int("winners", len(winners)).
				Msg("prize settlement hand-off failed")
		}
	}()
}
