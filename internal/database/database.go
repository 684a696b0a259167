package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/scythe504/botornot-backend/internal"
	"github.com/scythe504/botornot-backend/internal/config"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health() map[string]string

	// Migrate creates the archive tables when they are missing.
	Migrate(ctx context.Context) error

	// ArchiveMatch stores a finished match in one transaction.
	ArchiveMatch(ctx context.Context, snapshot internal.MatchSnapshot) error

	// Close terminates the database connection pool.
	Close()
}

type service struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func New(ctx context.Context, cfg config.Database, logger zerolog.Logger) (Service, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &service{
		pool:   pool,
		logger: logger.With().Str("component", "archive").Logger(),
	}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	room_id         TEXT PRIMARY KEY,
	is_staked       BOOLEAN     NOT NULL,
	synthetic_seat  INTEGER     NOT NULL,
	synthetic_won   BOOLEAN     NOT NULL,
	most_voted_seat INTEGER     NOT NULL,
	rounds          INTEGER     NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS match_players (
	room_id      TEXT    NOT NULL REFERENCES matches(room_id) ON DELETE CASCADE,
	player_id    TEXT    NOT NULL,
	wallet       TEXT    NOT NULL DEFAULT '',
	seat_index   INTEGER NOT NULL,
	is_synthetic BOOLEAN NOT NULL,
	left_match   BOOLEAN NOT NULL,
	winner       BOOLEAN NOT NULL,
	PRIMARY KEY (room_id, player_id)
);

CREATE TABLE IF NOT EXISTS match_votes (
	room_id   TEXT NOT NULL REFERENCES matches(room_id) ON DELETE CASCADE,
	voter_id  TEXT NOT NULL,
	target_id TEXT NOT NULL,
	PRIMARY KEY (room_id, voter_id)
);

CREATE TABLE IF NOT EXISTS match_messages (
	room_id      TEXT        NOT NULL REFERENCES matches(room_id) ON DELETE CASCADE,
	position     INTEGER     NOT NULL,
	player_id    TEXT        NOT NULL,
	seat_index   INTEGER     NOT NULL,
	is_synthetic BOOLEAN     NOT NULL,
	body         TEXT        NOT NULL,
	sent_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (room_id, position)
);
`

func (s *service) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrating archive schema: %w", err)
	}
	return nil
}

func (s *service) ArchiveMatch(ctx context.Context, snapshot internal.MatchSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback(ctx)

	outcome := snapshot.Outcome
	_, err = tx.Exec(ctx, `
		INSERT INTO matches (room_id, is_staked, synthetic_seat, synthetic_won, most_voted_seat, rounds, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (room_id) DO NOTHING`,
		snapshot.RoomID, snapshot.IsStaked, outcome.SyntheticSeat, outcome.SyntheticWon,
		outcome.MostVotedSeat, outcome.Rounds, snapshot.StartedAt, snapshot.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert match %s: %w", snapshot.RoomID, err)
	}

	batch := &pgx.Batch{}
	for _, p := range snapshot.Roster {
		batch.Queue(`
			INSERT INTO match_players (room_id, player_id, wallet, seat_index, is_synthetic, left_match, winner)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT DO NOTHING`,
			snapshot.RoomID, p.ID, p.Wallet, p.SeatIndex, p.IsSynthetic, p.Left, p.Winner)
	}
	for voter, target := range snapshot.Votes {
		batch.Queue(`
			INSERT INTO match_votes (room_id, voter_id, target_id)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`,
			snapshot.RoomID, voter, target)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert roster and votes for %s: %w", snapshot.RoomID, err)
		}
	}

	if len(snapshot.Messages) > 0 {
		rows := make([][]any, 0, len(snapshot.Messages))
		for i, msg := range snapshot.Messages {
			rows = append(rows, []any{snapshot.RoomID, i, msg.PlayerID, msg.SeatIndex, msg.IsSynthetic, msg.Text, msg.SentAt})
		}
		_, err = tx.Exec(ctx, `DELETE FROM match_messages WHERE room_id = $1`, snapshot.RoomID)
		if err != nil {
			return fmt.Errorf("clear messages for %s: %w", snapshot.RoomID, err)
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"match_messages"},
			[]string{"room_id", "position", "player_id", "seat_index", "is_synthetic", "body", "sent_at"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy messages for %s: %w", snapshot.RoomID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	s.logger.Info().Str("room", snapshot.RoomID).Int("players", len(snapshot.Roster)).
		Int("messages", len(snapshot.Messages)).Msg("match archived")
	return nil
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		s.logger.Error().Err(err).Msg("database ping failed")
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	poolStats := s.pool.Stat()
	stats["total_connections"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["idle_connections"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["acquired_connections"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["acquire_count"] = strconv.FormatInt(poolStats.AcquireCount(), 10)
	stats["empty_acquire_count"] = strconv.FormatInt(poolStats.EmptyAcquireCount(), 10)

	if poolStats.AcquiredConns() >= poolStats.MaxConns()*8/10 {
		stats["message"] = "The database is experiencing heavy load."
	}
	return stats
}

func (s *service) Close() {
	s.logger.Info().Msg("disconnected from database")
	s.pool.Close()
}
