package game

import (
	"context"
	"time"

	"github.com/scythe504/botornot-backend/internal"
	"github.com/scythe504/botornot-backend/internal/utils"
)

// =============================================================================
// TIMER MANAGEMENT
// =============================================================================

// startPhaseTimerLocked schedules onExpire after d. The timer goroutine holds
// only the room's context; onExpire must re-resolve the room by id and check
// phase and round itself. Caller holds room.Mu.
//
// At most one timer per (phase, round) is outstanding for a room. Timers from
// earlier phases are not cancelled: when they fire their phase guard fails
// and they do nothing.
func (m *Manager) startPhaseTimerLocked(room *internal.Room, phase internal.GamePhase, d time.Duration, onExpire func()) internal.PhaseDeadline {
	if t := room.Timer; t != nil && t.IsActive && t.Phase == phase && t.Round == room.Round {
		m.logger.Warn().Str("room", room.Id).Str("phase", string(phase)).Int("round", room.Round).
			Msg("timer already pending for phase, not scheduling another")
		return deadlineOf(t)
	}

	ctx, cancel := context.WithTimeout(room.Context, d)
	room.Timer = &internal.PhaseTimer{
		Phase:     phase,
		Round:     room.Round,
		StartTime: m.now(),
		Duration:  d,
		IsActive:  true,
		Context:   ctx,
		Cancel:    cancel,
	}
	timer := room.Timer
	roomID := room.Id

	go func() {
		defer cancel()
		<-ctx.Done()
		if ctx.Err() != context.DeadlineExceeded {
			m.logger.Debug().Str("room", roomID).Str("phase", string(phase)).Msg("timer cancelled with room")
			return
		}
		m.expireTimer(roomID, timer)
		onExpire()
	}()

	m.logger.Debug().Str("room", roomID).Str("phase", string(phase)).Int("round", room.Round).
		Dur("duration", d).Msg("phase timer started")
	return deadlineOf(timer)
}

func (m *Manager) expireTimer(roomID string, timer *internal.PhaseTimer) {
	m.store.View(roomID, func(room *internal.Room) {
		timer.IsActive = false
	})
}

func deadlineOf(t *internal.PhaseTimer) internal.PhaseDeadline {
	return internal.PhaseDeadline{
		Phase:        t.Phase,
		Round:        t.Round,
		ServerTimeMs: t.StartTime.UnixMilli(),
		DurationMs:   t.Duration.Milliseconds(),
		DeadlineMs:   utils.DeadlineMs(t.StartTime, t.Duration),
	}
}
