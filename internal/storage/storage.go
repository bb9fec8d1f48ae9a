// Package storage defines the persistence contracts for game state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/storyloom/storyloom/internal/game/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// GameSummary is the listing projection of a stored game.
type GameSummary struct {
	ID         string
	UserID     string
	TemplateID string
	PlayerName string
	Status     domain.Status
	Turn       int
	UpdatedAt  time.Time
}

// GameStore persists game state and per-turn history.
//
// PutGame upserts the state snapshot and ignores the History field:
// history is append-only and travels through AppendHistory exclusively.
// GetGame returns the state with its history restored in turn order.
// SaveTurn writes the post-turn snapshot and its history entry in one
// atomic step; either both land or neither does.
type GameStore interface {
	PutGame(ctx context.Context, state *domain.GameState) error
	GetGame(ctx context.Context, id string) (*domain.GameState, error)
	ListGames(ctx context.Context, userID string) ([]GameSummary, error)
	AppendHistory(ctx context.Context, gameID string, entry domain.HistoryEntry) error
	SaveTurn(ctx context.Context, state *domain.GameState, entry domain.HistoryEntry) error
	Close() error
}
