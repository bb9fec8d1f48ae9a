// Package sqlite provides the SQLite-backed game store, the primary
// persistence backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/storyloom/storyloom/internal/game/domain"
	sqlitemigrate "github.com/storyloom/storyloom/internal/platform/storage/sqlitemigrate"
	"github.com/storyloom/storyloom/internal/storage"
	"github.com/storyloom/storyloom/internal/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides SQLite-backed persistence for games.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.GameStore = (*Store)(nil)

// DB returns the underlying sql.DB instance.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Open opens a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PutGame upserts a game snapshot. History travels through AppendHistory
// and is excluded from the snapshot blob.
func (s *Store) PutGame(ctx context.Context, state *domain.GameState) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return putGame(ctx, s.sqlDB, state)
}

func putGame(ctx context.Context, db execer, state *domain.GameState) error {
	if state == nil || strings.TrimSpace(state.ID) == "" {
		return fmt.Errorf("game id is required")
	}

	snapshot := *state
	snapshot.History = nil
	payload, err := json.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO games (id, user_id, template_id, player_name, status, turn, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			template_id = excluded.template_id,
			player_name = excluded.player_name,
			status = excluded.status,
			turn = excluded.turn,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		state.ID, state.UserID, state.TemplateID, state.PlayerName, string(state.Status),
		state.Turn, string(payload), toMillis(state.CreatedAt), toMillis(state.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put game: %w", err)
	}
	return nil
}

// GetGame fetches a game with its history restored in turn order.
func (s *Store) GetGame(ctx context.Context, id string) (*domain.GameState, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("game id is required")
	}

	var payload string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT state FROM games WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}

	var state domain.GameState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("unmarshal game state: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT entry FROM game_history WHERE game_id = ? ORDER BY turn ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("get game history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entryPayload string
		if err := rows.Scan(&entryPayload); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		var entry domain.HistoryEntry
		if err := json.Unmarshal([]byte(entryPayload), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal history entry: %w", err)
		}
		state.History = append(state.History, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	return &state, nil
}

// ListGames returns summaries of a user's games, most recent first.
func (s *Store) ListGames(ctx context.Context, userID string) ([]storage.GameSummary, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, user_id, template_id, player_name, status, turn, updated_at
		FROM games WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []storage.GameSummary
	for rows.Next() {
		var (
			summary   storage.GameSummary
			status    string
			updatedAt int64
		)
		if err := rows.Scan(&summary.ID, &summary.UserID, &summary.TemplateID, &summary.PlayerName,
			&status, &summary.Turn, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}
		summary.Status = domain.Status(status)
		summary.UpdatedAt = fromMillis(updatedAt)
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game rows: %w", err)
	}
	return out, nil
}

// AppendHistory records one completed turn.
func (s *Store) AppendHistory(ctx context.Context, gameID string, entry domain.HistoryEntry) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return appendHistory(ctx, s.sqlDB, gameID, entry)
}

func appendHistory(ctx context.Context, db execer, gameID string, entry domain.HistoryEntry) error {
	if strings.TrimSpace(gameID) == "" {
		return fmt.Errorf("game id is required")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("history entry id is required")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO game_history (id, game_id, turn, entry, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.ID, gameID, entry.Turn, string(payload), toMillis(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// SaveTurn persists the post-turn snapshot and its history entry in one
// transaction, so a half-written turn never becomes durable.
func (s *Store) SaveTurn(ctx context.Context, state *domain.GameState, entry domain.HistoryEntry) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if state == nil || strings.TrimSpace(state.ID) == "" {
		return fmt.Errorf("game id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin turn transaction: %w", err)
	}
	defer tx.Rollback()

	if err := putGame(ctx, tx, state); err != nil {
		return err
	}
	if err := appendHistory(ctx, tx, state.ID, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit turn transaction: %w", err)
	}
	return nil
}
