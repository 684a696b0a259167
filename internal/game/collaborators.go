package game

import (
	"context"

	"github.com/scythe504/botornot-backend/internal"
)

// Archiver stores finished matches. Retries are its own concern.
type Archiver interface {
	ArchiveMatch(ctx context.Context, snapshot internal.MatchSnapshot) error
}

// Settler receives the winners of a staked match. The manager never waits on
// settlement completion.
type Settler interface {
	SettlePrizes(ctx context.Context, roomID string, winners []internal.Winner) error
}

// DisconnectAuditor records players who abandon a staked room before it starts.
type DisconnectAuditor interface {
	RecordStakedDisconnect(ctx context.Context, roomID string, player internal.PlayerSnapshot) error
}

// Generator produces the synthetic participant's replies.
type Generator interface {
	Generate(ctx context.Context, req internal.GenerationRequest) (internal.GenerationResponse, error)
}

type nopCollaborator struct{}

func (nopCollaborator) ArchiveMatch(context.Context, internal.MatchSnapshot) error { return nil }

func (nopCollaborator) SettlePrizes(context.Context, string, []internal.Winner) error { return nil }

func (nopCollaborator) RecordStakedDisconnect(context.Context, string, internal.PlayerSnapshot) error {
	return nil
}
