package game

import (
	"strings"
	"unicode/utf8"

	"github.com/scythe504/botornot-backend/internal"
)

// =============================================================================
// CONVERSATION
// =============================================================================

// PostMessage appends a human message to the room log and queues it for the
// synthetic participant.
func (m *Manager) PostMessage(roomID, playerID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > m.settings.MaxMessageLength {
		return ErrInvalidText
	}

	return m.store.Update(roomID, func(room *internal.Room) error {
		if room.Phase != internal.PhaseActive {
			return ErrWrongPhase
		}
		player := room.GetPlayerByID(playerID)
		if player == nil {
			return ErrPlayerNotFound
		}
		if player.IsSynthetic {
			return ErrNotPermitted
		}
		if player.Left {
			return ErrPlayerLeft
		}

		msg := m.appendMessageLocked(room, player, text)
		room.Pending = append(room.Pending, msg)
		return nil
	})
}

// postSynthetic is the only path that writes messages attributed to the
// synthetic participant.
func (m *Manager) postSynthetic(roomID, text string) error {
	return m.store.Update(roomID, func(room *internal.Room) error {
		if room.Phase != internal.PhaseActive {
			return ErrWrongPhase
		}
		synthetic := room.GetSynthetic()
		if synthetic == nil {
			return ErrPlayerNotFound
		}
		m.appendMessageLocked(room, synthetic, text)
		return nil
	})
}

func (m *Manager) appendMessageLocked(room *internal.Room, speaker *internal.Player, text string) internal.ChatMessage {
	msg := internal.ChatMessage{
		PlayerID:    speaker.Id,
		SeatIndex:   speaker.SeatIndex,
		Text:        text,
		IsSynthetic: speaker.IsSynthetic,
		SentAt:      m.now(),
	}
	room.Messages = append(room.Messages, msg)

	m.publish(internal.EventMessageAppended, room.Id, internal.MessageAppendedData{
		RoomID:           room.Id,
		SpeakerSeatIndex: msg.SeatIndex,
		Text:             msg.Text,
		SentAtMs:         msg.SentAt.UnixMilli(),
	})
	return msg
}
