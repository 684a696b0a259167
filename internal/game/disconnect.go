package game

import (
	"context"

	"github.com/scythe504/botornot-backend/internal"
)

// =============================================================================
// DISCONNECT HANDLING
// =============================================================================

// Disconnect reconciles a lost connection with the caller's current room.
//
// While waiting, the player is removed outright (staked rooms record the
// departure with the auditor first) and an emptied room is destroyed. Once the
// match has started the seat stays, flagged as left.
func (m *Manager) Disconnect(identity internal.Identity) error {
	roomID, ok := m.store.RoomOf(identity.PlayerID)
	if !ok {
		return ErrPlayerNotFound
	}

	// The audit is a collaborator round-trip, so it runs outside the room lock.
	if player, ok := m.stakedWaitingPlayer(roomID, identity.PlayerID); ok {
		m.auditDisconnect(roomID, player)
	}

	return m.store.Update(roomID, func(room *internal.Room) error {
		player := room.GetPlayerByID(identity.PlayerID)
		if player == nil {
			m.store.unbind(identity.PlayerID, roomID)
			return ErrPlayerNotFound
		}

		if room.Phase == internal.PhaseWaiting {
			m.leaveWaitingRoomLocked(room, player)
			return nil
		}

		if player.Left {
			return nil
		}
		player.Left = true
		m.store.unbind(player.Id, room.Id)

		m.logger.Info().Str("room", roomID).Str("player", player.Id).Str("phase", string(room.Phase)).
			Int("seat", player.SeatIndex).Msg("player left mid-match")
		m.publish(internal.EventPlayerLeft, roomID, internal.PlayerLeftData{
			RoomID:      roomID,
			PlayerID:    player.Id,
			SeatIndex:   player.SeatIndex,
			PlayerCount: len(room.Players),
		})

		if room.Phase == internal.PhaseVoting && earlyExitReached(room) {
			m.logger.Info().Str("room", roomID).Msg("last outstanding voter left, resolving early")
			m.resolveLocked(room)
		}
		return nil
	})
}

// stakedWaitingPlayer snapshots playerID when it sits in a staked room that
// has not started yet.
func (m *Manager) stakedWaitingPlayer(roomID, playerID string) (internal.PlayerSnapshot, bool) {
	var snapshot internal.PlayerSnapshot
	found := false
	m.store.View(roomID, func(room *internal.Room) {
		if !room.IsStaked || room.Phase != internal.PhaseWaiting {
			return
		}
		if p := room.GetPlayerByID(playerID); p != nil {
			snapshot = internal.CreatePlayerSnapshot(p)
			found = true
		}
	})
	return snapshot, found
}

func (m *Manager) auditDisconnect(roomID string, player internal.PlayerSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), m.settings.AuditTimeout)
	defer cancel()
	if err := m.auditor.RecordStakedDisconnect(ctx, roomID, player); err != nil {
		m.logger.Error().Err(err).Str("room", roomID).Str("player", player.ID).
			Msg("recording staked disconnect failed")
	}
}

func (m *Manager) leaveWaitingRoomLocked(room *internal.Room, player *internal.Player) {
	room.RemovePlayer(player.Id)
	m.store.unbind(player.Id, room.Id)

	m.logger.Info().Str("room", room.Id).Str("player", player.Id).
		Int("remaining", len(room.Players)).Msg("player left waiting room")
	m.publish(internal.EventPlayerLeft, room.Id, internal.PlayerLeftData{
		RoomID:      room.Id,
		PlayerID:    player.Id,
		SeatIndex:   internal.NoSeat,
		PlayerCount: len(room.Players),
	})

	if len(room.Players) == 0 {
		m.store.evictLocked(room)
		m.logger.Info().Str("room", room.Id).Msg("empty waiting room closed")
		m.publish(internal.EventRoomClosed, room.Id, internal.RoomClosedData{RoomID: room.Id})
	}
}
