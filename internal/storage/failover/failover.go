// Package failover layers a primary game store over a fallback.
//
// Writes go to the primary first; when the primary errors for any
// reason other than a missing record, the same write is retried on the
// fallback so a turn is never lost to a storage outage. Reads consult
// the primary and fall back only on backend failure, not on not-found.
package failover

import (
	"context"
	"errors"
	"log"

	"github.com/storyloom/storyloom/internal/game/domain"
	"github.com/storyloom/storyloom/internal/storage"
)

// Store is a primary/fallback pair of game stores.
type Store struct {
	primary  storage.GameStore
	fallback storage.GameStore
}

var _ storage.GameStore = (*Store)(nil)

// New wraps primary with fallback.
func New(primary, fallback storage.GameStore) *Store {
	return &Store{primary: primary, fallback: fallback}
}

// Close closes both backends and returns the first error.
func (s *Store) Close() error {
	primaryErr := s.primary.Close()
	fallbackErr := s.fallback.Close()
	if primaryErr != nil {
		return primaryErr
	}
	return fallbackErr
}

// PutGame writes to the primary, falling back on backend failure.
func (s *Store) PutGame(ctx context.Context, state *domain.GameState) error {
	err := s.primary.PutGame(ctx, state)
	if err == nil {
		return nil
	}
	log.Printf("event=storage_failover op=put_game game_id=%s error=%q", state.ID, err)
	return s.fallback.PutGame(ctx, state)
}

// GetGame reads from the primary, falling back on backend failure. A
// not-found from the primary is authoritative.
func (s *Store) GetGame(ctx context.Context, id string) (*domain.GameState, error) {
	state, err := s.primary.GetGame(ctx, id)
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		return state, err
	}
	log.Printf("event=storage_failover op=get_game game_id=%s error=%q", id, err)
	return s.fallback.GetGame(ctx, id)
}

// ListGames lists from the primary, falling back on backend failure.
func (s *Store) ListGames(ctx context.Context, userID string) ([]storage.GameSummary, error) {
	summaries, err := s.primary.ListGames(ctx, userID)
	if err == nil {
		return summaries, nil
	}
	log.Printf("event=storage_failover op=list_games user_id=%s error=%q", userID, err)
	return s.fallback.ListGames(ctx, userID)
}

// SaveTurn writes atomically to the primary, retrying the whole turn on
// the fallback on backend failure so a turn is never split across
// stores.
func (s *Store) SaveTurn(ctx context.Context, state *domain.GameState, entry domain.HistoryEntry) error {
	err := s.primary.SaveTurn(ctx, state, entry)
	if err == nil {
		return nil
	}
	log.Printf("event=storage_failover op=save_turn game_id=%s error=%q", state.ID, err)
	return s.fallback.SaveTurn(ctx, state, entry)
}

// AppendHistory writes to the primary, falling back on backend failure.
func (s *Store) AppendHistory(ctx context.Context, gameID string, entry domain.HistoryEntry) error {
	err := s.primary.AppendHistory(ctx, gameID, entry)
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		return err
	}
	log.Printf("event=storage_failover op=append_history game_id=%s error=%q", gameID, err)
	return s.fallback.AppendHistory(ctx, gameID, entry)
}
