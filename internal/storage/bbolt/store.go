// Package bbolt provides the BoltDB-backed game store, used as the
// fallback persistence backend.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/storyloom/storyloom/internal/game/domain"
	"github.com/storyloom/storyloom/internal/storage"
)

const (
	gameBucket    = "game"
	historyBucket = "history"
)

// Store provides a BoltDB-backed game store. Snapshots live in the game
// bucket as one JSON document per game; history entries live in the
// history bucket keyed by game id and zero-padded turn.
type Store struct {
	db *bbolt.DB
}

var _ storage.GameStore = (*Store)(nil)

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutGame persists a game snapshot. The History field is ignored.
func (s *Store) PutGame(ctx context.Context, state *domain.GameState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if state == nil || strings.TrimSpace(state.ID) == "" {
		return fmt.Errorf("game id is required")
	}

	snapshot := *state
	snapshot.History = nil
	payload, err := json.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("marshal game: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(gameBucket))
		if bucket == nil {
			return fmt.Errorf("game bucket is missing")
		}
		return bucket.Put(gameKey(state.ID), payload)
	})
}

// GetGame fetches a game with its history restored in turn order.
func (s *Store) GetGame(ctx context.Context, id string) (*domain.GameState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("game id is required")
	}

	var state domain.GameState
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(gameBucket))
		if bucket == nil {
			return fmt.Errorf("game bucket is missing")
		}
		payload := bucket.Get(gameKey(id))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &state); err != nil {
			return fmt.Errorf("unmarshal game: %w", err)
		}

		history := tx.Bucket([]byte(historyBucket))
		if history == nil {
			return fmt.Errorf("history bucket is missing")
		}
		prefix := historyPrefix(id)
		cursor := history.Cursor()
		for k, v := cursor.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = cursor.Next() {
			var entry domain.HistoryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshal history entry: %w", err)
			}
			state.History = append(state.History, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// ListGames scans the game bucket for a user's games, most recent first.
func (s *Store) ListGames(ctx context.Context, userID string) ([]storage.GameSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var out []storage.GameSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(gameBucket))
		if bucket == nil {
			return fmt.Errorf("game bucket is missing")
		}
		return bucket.ForEach(func(_, payload []byte) error {
			var state domain.GameState
			if err := json.Unmarshal(payload, &state); err != nil {
				return fmt.Errorf("unmarshal game: %w", err)
			}
			if state.UserID != userID {
				return nil
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
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// AppendHistory records one completed turn.
func (s *Store) AppendHistory(ctx context.Context, gameID string, entry domain.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(gameID) == "" {
		return fmt.Errorf("game id is required")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		games := tx.Bucket([]byte(gameBucket))
		if games == nil {
			return fmt.Errorf("game bucket is missing")
		}
		if games.Get(gameKey(gameID)) == nil {
			return storage.ErrNotFound
		}
		history := tx.Bucket([]byte(historyBucket))
		if history == nil {
			return fmt.Errorf("history bucket is missing")
		}
		return history.Put(historyKey(gameID, entry.Turn, entry.ID), payload)
	})
}

// SaveTurn writes the post-turn snapshot and its history entry in a
// single update transaction; a failure leaves both buckets untouched.
func (s *Store) SaveTurn(ctx context.Context, state *domain.GameState, entry domain.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if state == nil || strings.TrimSpace(state.ID) == "" {
		return fmt.Errorf("game id is required")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("history entry id is required")
	}

	snapshot := *state
	snapshot.History = nil
	gamePayload, err := json.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("marshal game: %w", err)
	}
	entryPayload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		games := tx.Bucket([]byte(gameBucket))
		if games == nil {
			return fmt.Errorf("game bucket is missing")
		}
		if err := games.Put(gameKey(state.ID), gamePayload); err != nil {
			return err
		}
		history := tx.Bucket([]byte(historyBucket))
		if history == nil {
			return fmt.Errorf("history bucket is missing")
		}
		return history.Put(historyKey(state.ID, entry.Turn, entry.ID), entryPayload)
	})
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{gameBucket, historyBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func gameKey(id string) []byte {
	return []byte(id)
}

func historyPrefix(gameID string) []byte {
	return []byte(gameID + "/")
}

// historyKey orders entries by zero-padded turn so a cursor scan yields
// them chronologically.
func historyKey(gameID string, turn int, entryID string) []byte {
	return []byte(fmt.Sprintf("%s/%08d/%s", gameID, turn, entryID))
}
