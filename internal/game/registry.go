package game

import (
	"time"

	"github.com/scythe504/botornot-backend/internal"
	"github.com/scythe504/botornot-backend/internal/utils"
)

// Registry creates player records. Wallets are bound here, from the caller's
// session, and never change for the lifetime of the player.
type Registry struct {
	now func() time.Time
}

func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{now: now}
}

func (r *Registry) NewHuman(identity internal.Identity) *internal.Player {
	return &internal.Player{
		Id:        identity.PlayerID,
		Wallet:    identity.Wallet,
		SeatIndex: internal.NoSeat,
		JoinedAt:  r.now(),
	}
}

// NewSynthetic returns the disguised seat. Its id is drawn from the same space
// as human ids so it cannot be told apart on the wire.
func (r *Registry) NewSynthetic() *internal.Player {
	return &internal.Player{
		Id:          utils.GenerateID(),
		SeatIndex:   internal.NoSeat,
		IsSynthetic: true,
		JoinedAt:    r.now(),
	}
}
