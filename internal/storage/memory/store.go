// Package memory provides an in-memory game store for tests and
// ephemeral runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/storyloom/storyloom/internal/game/domain"
	"github.com/storyloom/storyloom/internal/storage"
)

// Store keeps games in process memory. Records are deep-copied on the
// way in and out so callers cannot alias stored state.
type Store struct {
	mu      sync.RWMutex
	games   map[string]*domain.GameState
	history map[string][]domain.HistoryEntry
}

var _ storage.GameStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		games:   make(map[string]*domain.GameState),
		history: make(map[string][]domain.HistoryEntry),
	}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// PutGame stores a copy of the snapshot. The History field is ignored.
func (s *Store) PutGame(ctx context.Context, state *domain.GameState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil || strings.TrimSpace(state.ID) == "" {
		return fmt.Errorf("game id is required")
	}

	clone, err := cloneState(state)
	if err != nil {
		return err
	}
	clone.History = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[state.ID] = clone
	return nil
}

// GetGame returns a copy of the stored game with its history restored.
func (s *Store) GetGame(ctx context.Context, id string) (*domain.GameState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.games[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone, err := cloneState(stored)
	if err != nil {
		return nil, err
	}
	clone.History = append([]domain.HistoryEntry(nil), s.history[id]...)
	return clone, nil
}

// ListGames returns summaries of a user's games, most recent first.
func (s *Store) ListGames(ctx context.Context, userID string) ([]storage.GameSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.GameSummary
	for _, state := range s.games {
		if state.UserID != userID {
			continue
		}
		out = append(out, storage.GameSummary{
			ID:         state.ID,
			UserID:     state.UserID,
			TemplateID: state.TemplateID,
			PlayerName: state.PlayerName,
			Status:     state.Status,
			Turn:       state.Turn,
			UpdatedAt:  state.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// AppendHistory records one completed turn.
func (s *Store) AppendHistory(ctx context.Context, gameID string, entry domain.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return storage.ErrNotFound
	}
	s.history[gameID] = append(s.history[gameID], entry)
	return nil
}

// SaveTurn stores the snapshot and appends the history entry under one
// lock, so readers never observe one without the other.
func (s *Store) SaveTurn(ctx context.Context, state *domain.GameState, entry domain.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil || strings.TrimSpace(state.ID) == "" {
		return fmt.Errorf("game id is required")
	}

	clone, err := cloneState(state)
	if err != nil {
		return err
	}
	clone.History = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[state.ID] = clone
	s.history[state.ID] = append(s.history[state.ID], entry)
	return nil
}

func cloneState(state *domain.GameState) (*domain.GameState, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal game: %w", err)
	}
	var clone domain.GameState
	if err := json.Unmarshal(payload, &clone); err != nil {
		return nil, fmt.Errorf("unmarshal game: %w", err)
	}
	return &clone, nil
}
