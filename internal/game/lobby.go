package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scythe504/botornot-backend/internal"
)

// =============================================================================
// MATCHMAKING & JOIN
// =============================================================================

type JoinRequest struct {
	Kind     internal.PlayerKind
	Staked   bool
	Identity internal.Identity
}

type JoinResult struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Success  bool   `json:"success"`
}

func (req JoinRequest) validate() error {
	if req.Kind != internal.KindHuman {
		return fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind)
	}
	if strings.TrimSpace(req.Identity.PlayerID) == "" {
		return ErrInvalidIdentity
	}
	if req.Staked && strings.TrimSpace(req.Identity.Wallet) == "" {
		return ErrWalletRequired
	}
	return nil
}

// JoinOrCreate seats the caller in the newest joinable room of the requested
// kind, creating one when none exists. A failed join returns Success=false and
// the reason; the caller may retry.
func (m *Manager) JoinOrCreate(req JoinRequest) (JoinResult, error) {
	result := JoinResult{PlayerID: req.Identity.PlayerID}
	if err := req.validate(); err != nil {
		return result, err
	}
	if roomID, ok := m.store.RoomOf(req.Identity.PlayerID); ok && m.isSeated(roomID, req.Identity.PlayerID) {
		m.logger.Debug().Str("room", roomID).Str("player", req.Identity.PlayerID).
			Msg("join rejected, player already seated")
		result.RoomID = roomID
		return result, ErrAlreadySeated
	}

	roomID := m.JoinableRoom(req.Staked)
	created := false
	if roomID == "" {
		roomID = m.store.Create(req.Staked).Id
		created = true
		m.logger.Info().Str("room", roomID).Bool("staked", req.Staked).Msg("created room")
	}

	err := m.join(roomID, req)
	if err != nil && !created && lostRace(err) {
		// The candidate filled up or started between scan and join.
		m.logger.Debug().Str("room", roomID).Err(err).Msg("joinable room changed under us, opening a new one")
		roomID = m.store.Create(req.Staked).Id
		created = true
		err = m.join(roomID, req)
	}
	if err != nil {
		if created {
			m.discardIfEmpty(roomID)
		}
		result.RoomID = roomID
		return result, err
	}

	result.RoomID = roomID
	result.Success = true
	return result, nil
}

func lostRace(err error) bool {
	return errors.Is(err, ErrRoomFull) || errors.Is(err, ErrWrongPhase) || errors.Is(err, ErrRoomNotFound)
}

// JoinableRoom returns the id of the newest waiting room of the given kind with
// a free seat, or "". Each room is checked under its own lock only.
func (m *Manager) JoinableRoom(staked bool) string {
	for _, room := range m.store.NewestFirst() {
		room.Mu.Lock()
		joinable := !room.Closed &&
			room.Phase == internal.PhaseWaiting &&
			room.IsStaked == staked &&
			room.GetHumanCount() < m.humanSeats()
		roomID := room.Id
		room.Mu.Unlock()

		if joinable {
			return roomID
		}
	}
	return ""
}

func (m *Manager) isSeated(roomID, playerID string) bool {
	seated := false
	m.store.View(roomID, func(room *internal.Room) {
		if p := room.GetPlayerByID(playerID); p != nil && !p.Left {
			seated = true
		}
	})
	return seated
}

// join seats one human. Filling the last human seat adds the synthetic
// participant and starts the match in the same critical section.
func (m *Manager) join(roomID string, req JoinRequest) error {
	return m.store.Update(roomID, func(room *internal.Room) error {
		if room.Phase != internal.PhaseWaiting {
			return fmt.Errorf("%w: room %s is %s", ErrWrongPhase, room.Id, room.Phase)
		}
		if room.IsStaked != req.Staked {
			return ErrKindMismatch
		}
		if room.GetPlayerByID(req.Identity.PlayerID) != nil {
			return ErrAlreadySeated
		}
		if room.GetHumanCount() >= m.humanSeats() {
			return ErrRoomFull
		}

		player := m.registry.NewHuman(req.Identity)
		room.Players = append(room.Players, player)
		m.store.bind(player.Id, room.Id)

		humans := room.GetHumanCount()
		m.logger.Info().Str("room", room.Id).Str("player", player.Id).
			Int("humans", humans).Int("cohort", m.settings.CohortSize).Msg("player joined")

		if humans == m.humanSeats() {
			room.Players = append(room.Players, m.registry.NewSynthetic())
			m.startMatchLocked(room)
		}
		return nil
	})
}

// discardIfEmpty drops a room this request created but could not use.
func (m *Manager) discardIfEmpty(roomID string) {
	_ = m.store.Update(roomID, func(room *internal.Room) error {
		if room.Phase == internal.PhaseWaiting && len(room.Players) == 0 {
			m.store.evictLocked(room)
		}
		return nil
	})
}
