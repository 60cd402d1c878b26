package results

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizrush/go/internal/dbconfig"
	"github.com/mcdev12/quizrush/go/internal/models"
)

// Schema creates the tables PostgresStore writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS games (
    id              UUID PRIMARY KEY,
    room_code       TEXT        NOT NULL,
    total_questions INTEGER     NOT NULL,
    started_at      TIMESTAMPTZ NOT NULL,
    finished_at     TIMESTAMPTZ NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS game_players (
    game_id       UUID             NOT NULL REFERENCES games (id) ON DELETE CASCADE,
    player_id     TEXT             NOT NULL,
    rank          INTEGER          NOT NULL,
    nickname      TEXT             NOT NULL,
    avatar        TEXT             NOT NULL DEFAULT '',
    score         INTEGER          NOT NULL,
    correct_count INTEGER          NOT NULL,
    wrong_count   INTEGER          NOT NULL,
    max_streak    INTEGER          NOT NULL,
    accuracy      DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (game_id, player_id)
);

CREATE INDEX IF NOT EXISTS game_players_player_id_idx ON game_players (player_id);
`

const insertGame = `
INSERT INTO games (id, room_code, total_questions, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`

var playerColumns = []string{
	"game_id", "player_id", "rank", "nickname", "avatar",
	"score", "correct_count", "wrong_count", "max_streak", "accuracy",
}

// PostgresStore writes finished games to Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database described by cfg.
func NewPostgresStore(ctx context.Context, cfg dbconfig.Config) (*PostgresStore, error) {
	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("connected to results database")
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the results tables if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create results schema: %w", err)
	}
	return nil
}

// Record inserts the game and its player rows in one transaction. Recording
// the same game twice is a no-op.
func (s *PostgresStore) Record(ctx context.Context, res models.GameResults) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, insertGame, gameRow(res)...)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", res.GameID, err)
	}
	if tag.RowsAffected() == 0 {
		log.Debug().Str("game_id", res.GameID).Msg("game already recorded")
		return nil
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"game_players"}, playerColumns, pgx.CopyFromRows(playerRows(res)))
	if err != nil {
		return fmt.Errorf("insert players for game %s: %w", res.GameID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit game %s: %w", res.GameID, err)
	}

	log.Info().Str("game_id", res.GameID).Int64("players", n).Msg("stored game results")
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func gameRow(res models.GameResults) []any {
	return []any{res.GameID, res.RoomCode, res.TotalQuestions, res.StartedAt, res.FinishedAt}
}

func playerRows(res models.GameResults) [][]any {
	rows := make([][]any, len(res.Results))
	for i, p := range res.Results {
		rows[i] = []any{
			res.GameID, p.PlayerID, p.Rank, p.Nickname, p.Avatar,
			p.Score, p.CorrectCount, p.WrongCount, p.MaxStreak, p.Accuracy,
		}
	}
	return rows
}
