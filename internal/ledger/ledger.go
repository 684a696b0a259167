package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/scythe504/botornot-backend/internal"
)

const (
	DisconnectsKey  = "disconnects:staked"
	SettlementQueue = "settlement:queue"

	// auditTTL bounds how long a per-player disconnect record is kept.
	auditTTL = 30 * 24 * time.Hour
)

// Ledger hands staked-room bookkeeping to redis for the payout workers.
type Ledger struct {
	rdb    *redis.Client
	logger zerolog.Logger
	now    func() time.Time
}

func New(rdb *redis.Client, logger zerolog.Logger) *Ledger {
	return &Ledger{
		rdb:    rdb,
		logger: logger.With().Str("component", "ledger").Logger(),
		now:    time.Now,
	}
}

type DisconnectRecord struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Wallet   string `json:"wallet"`
	LeftAtMs int64  `json:"left_at_ms"`
}

type Settlement struct {
	RoomID     string            `json:"room_id"`
	Winners    []internal.Winner `json:"winners"`
	QueuedAtMs int64             `json:"queued_at_ms"`
}

func disconnectKey(roomID, playerID string) string {
	return fmt.Sprintf("disconnect:%s:%s", roomID, playerID)
}

func (l *Ledger) RecordStakedDisconnect(ctx context.Context, roomID string, player internal.PlayerSnapshot) error {
	record := DisconnectRecord{
		RoomID:   roomID,
		PlayerID: player.ID,
		Wallet:   player.Wallet,
		LeftAtMs: l.now().UnixMilli(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding disconnect record: %w", err)
	}

	key := disconnectKey(roomID, player.ID)
	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "room_id", roomID, "player_id", player.ID, "wallet", player.Wallet, "left_at_ms", record.LeftAtMs)
		pipe.Expire(ctx, key, auditTTL)
		pipe.RPush(ctx, DisconnectsKey, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording disconnect of %s from %s: %w", player.ID, roomID, err)
	}

	l.logger.Info().Str("room", roomID).Str("player", player.ID).Msg("staked disconnect recorded")
	return nil
}

func (l *Ledger) SettlePrizes(ctx context.Context, roomID string, winners []internal.Winner) error {
	if winners == nil {
		winners = []internal.Winner{}
	}
	payload, err := json.Marshal(Settlement{
		RoomID:     roomID,
		Winners:    winners,
		QueuedAtMs: l.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encoding settlement: %w", err)
	}
	if err := l.rdb.LPush(ctx, SettlementQueue, payload).Err(); err != nil {
		return fmt.Errorf("queueing settlement for %s: %w", roomID, err)
	}

	l.logger.Info().Str("room", roomID).Int("winners", len(winners)).Msg("settlement queued")
	return nil
}

func (l *Ledger) Health(ctx context.Context) map[string]string {
	stats := map[string]string{"status": "up"}
	if err := l.rdb.Ping(ctx).Err(); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
	}
	return stats
}
