// Package service orchestrates game sessions: creation, action turns,
// narration, progression and persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/storyloom/storyloom/internal/errors"
	"github.com/storyloom/storyloom/internal/game/delta"
	"github.com/storyloom/storyloom/internal/game/dice"
	"github.com/storyloom/storyloom/internal/game/domain"
	"github.com/storyloom/storyloom/internal/game/progression"
	"github.com/storyloom/storyloom/internal/game/prompt"
	"github.com/storyloom/storyloom/internal/id"
	"github.com/storyloom/storyloom/internal/narrator"
	"github.com/storyloom/storyloom/internal/random"
	"github.com/storyloom/storyloom/internal/storage"
	"github.com/storyloom/storyloom/internal/template"
)

var tracer = otel.Tracer("github.com/storyloom/storyloom/internal/game/service")

// NarrationMaxTokens bounds every narrator call.
const NarrationMaxTokens = 1024

// Config wires the service's collaborators. Store, Templates and
// Narrator are required; the rest default to production behavior.
type Config struct {
	Store     storage.GameStore
	Templates *template.Source
	Narrator  narrator.Narrator
	Retry     narrator.RetryPolicy

	Now         func() time.Time
	IDGenerator func() (string, error)
	// Roll produces one set of dice values. Injectable for tests.
	Roll func() []int
}

// Service coordinates one engine instance. Safe for concurrent use;
// calls for the same game are serialized.
type Service struct {
	store     storage.GameStore
	templates *template.Source
	narrator  narrator.Narrator
	retry     narrator.RetryPolicy

	now   func() time.Time
	newID func() (string, error)
	roll  func() []int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New validates the configuration and builds a service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("game store is required")
	}
	if cfg.Templates == nil {
		return nil, fmt.Errorf("template source is required")
	}
	if cfg.Narrator == nil {
		return nil, fmt.Errorf("narrator is required")
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = narrator.DefaultRetryPolicy
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = id.NewID
	}
	if cfg.Roll == nil {
		seed, err := random.NewSeed()
		if err != nil {
			return nil, fmt.Errorf("seed dice rng: %w", err)
		}
		rng := rand.New(rand.NewSource(seed))
		var rngMu sync.Mutex
		cfg.Roll = func() []int {
			rngMu.Lock()
			defer rngMu.Unlock()
			return dice.RollTriple(rng)
		}
	}

	return &Service{
		store:     cfg.Store,
		templates: cfg.Templates,
		narrator:  cfg.Narrator,
		retry:     cfg.Retry,
		now:       cfg.Now,
		newID:     cfg.IDGenerator,
		roll:      cfg.Roll,
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// lockGame serializes calls per game id and returns the unlock func.
func (s *Service) lockGame(gameID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[gameID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[gameID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// CreateGameInput starts a new game.
type CreateGameInput struct {
	TemplateID     string
	UserID         string
	PlayerName     string
	Customizations map[string]string
}

// CreateGame seeds a game from a template, asks the narrator for the
// opening scene and persists the result. A narrator outage does not
// block creation; the template's starting point stands in.
func (s *Service) CreateGame(ctx context.Context, input CreateGameInput) (*domain.GameState, error) {
	ctx, span := tracer.Start(ctx, "game.create",
		trace.WithAttributes(attribute.String("game.template_id", input.TemplateID)))
	defer span.End()

	tmpl, err := s.templates.Load(input.TemplateID)
	if err != nil {
		return nil, err
	}

	state, err := domain.NewGameState(tmpl, domain.CreateInput{
		UserID:         input.UserID,
		PlayerName:     input.PlayerName,
		Customizations: input.Customizations,
	}, s.now, s.newID)
	if err != nil {
		return nil, err
	}

	opening := tmpl.StartingPoint
	openingPrompt, err := prompt.BuildOpening(state, tmpl)
	if err != nil {
		return nil, err
	}
	var resp narrator.Response
	narrateErr := s.retry.Do(ctx, func() error {
		var err error
		resp, err = s.narrator.Narrate(ctx, narrator.Request{Prompt: openingPrompt, MaxTokens: NarrationMaxTokens})
		return err
	})
	if narrateErr != nil {
		log.Printf("event=opening_narration_failed game_id=%s error=%q", state.ID, narrateErr)
	} else {
		opening = delta.StripBlock(resp.Text)
	}
	state.CurrentScene = opening

	// The opening scene lives in CurrentScene only; history counts
	// action turns and starts empty.
	if err := s.store.PutGame(ctx, state); err != nil {
		return nil, apperrors.Newf(apperrors.CodeStorageWriteFail, "persist new game: %v", err)
	}

	log.Printf("event=game_created game_id=%s template_id=%s user_id=%s", state.ID, state.TemplateID, state.UserID)
	return state, nil
}

// LoadGame returns a stored game with its history.
func (s *Service) LoadGame(ctx context.Context, gameID string) (*domain.GameState, error) {
	state, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.CodeSessionMissing, "game %q not found", gameID)
		}
		return nil, fmt.Errorf("load game %q: %w", gameID, err)
	}
	return state, nil
}

// ListGames returns summaries of a user's games.
func (s *Service) ListGames(ctx context.Context, userID string) ([]storage.GameSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.New(apperrors.CodeUserIDEmpty, "user id is required")
	}
	return s.store.ListGames(ctx, userID)
}

// ListTemplates returns the metadata of every loadable template.
func (s *Service) ListTemplates(_ context.Context) ([]template.Metadata, error) {
	return s.templates.List()
}

// EndGame marks a game abandoned. Ending an already-ended game is a
// no-op returning the stored state.
func (s *Service) EndGame(ctx context.Context, gameID string) (*domain.GameState, error) {
	unlock := s.lockGame(gameID)
	defer unlock()

	state, err := s.LoadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if state.Ended() {
		return state, nil
	}

	tmpl, err := s.templates.Load(state.TemplateID)
	if err != nil {
		return nil, err
	}
	state.EndDefeat(tmpl.DefeatEnding())
	state.UpdatedAt = s.now()

	if err := s.store.PutGame(ctx, state); err != nil {
		return nil, apperrors.Newf(apperrors.CodeStorageWriteFail, "persist ended game: %v", err)
	}
	log.Printf("event=game_ended game_id=%s turn=%d", state.ID, state.Turn)
	return state, nil
}

// RollDice resolves a standalone roll for a game's skill without
// consuming a turn or mutating state.
func (s *Service) RollDice(ctx context.Context, gameID, skillID string) (dice.Outcome, error) {
	state, err := s.LoadGame(ctx, gameID)
	if err != nil {
		return dice.Outcome{}, err
	}
	tmpl, err := s.templates.Load(state.TemplateID)
	if err != nil {
		return dice.Outcome{}, err
	}

	modifier := 0
	var governing string
	var governingValue int
	if skillID != "" {
		skill, ok := tmpl.SkillByID(skillID)
		if !ok {
			return dice.Outcome{}, apperrors.Newf(apperrors.CodeSkillUnknown, "unknown skill %q", skillID)
		}
		governing = skill.Attribute
		governingValue = state.Attributes[skill.Attribute]
		modifier = dice.ModifierFor(governingValue)
	}

	outcome, err := dice.Resolve(s.roll(), modifier, tmpl.SpecialDiceEvents)
	if err != nil {
		return dice.Outcome{}, err
	}
	outcome.Attribute = governing
	outcome.AttributeValue = governingValue
	return outcome, nil
}

// ActionInput is one player turn.
type ActionInput struct {
	GameID  string
	Action  string
	SkillID string
	// DiceValues overrides the roll, for clients that roll client-side.
	DiceValues []int
}

// ActionResult reports everything one turn changed.
type ActionResult struct {
	State       *domain.GameState
	Narrative   string
	Dice        *dice.Outcome
	Deltas      domain.DeltaSet
	Progression progression.Result
}

// PerformAction runs one complete turn.
//
// The narrator call is the only step that can fail after validation;
// when it does, nothing is persisted and the turn is not consumed. The
// snapshot and history entry are saved atomically: a persistence
// failure surfaces the error while the previously stored state remains
// last-known-good.
func (s *Service) PerformAction(ctx context.Context, input ActionInput) (ActionResult, error) {
	ctx, span := tracer.Start(ctx, "game.perform_action",
		trace.WithAttributes(attribute.String("game.id", input.GameID)))
	defer span.End()

	unlock := s.lockGame(input.GameID)
	defer unlock()

	state, err := s.LoadGame(ctx, input.GameID)
	if err != nil {
		return ActionResult{}, err
	}
	if state.Ended() {
		return ActionResult{}, apperrors.Newf(apperrors.CodeSessionEnded, "game %q has ended", input.GameID)
	}
	action := strings.TrimSpace(input.Action)
	if action == "" {
		return ActionResult{}, apperrors.New(apperrors.CodeActionEmpty, "action text is required")
	}

	tmpl, err := s.templates.Load(state.TemplateID)
	if err != nil {
		return ActionResult{}, err
	}

	var outcome *dice.Outcome
	if input.SkillID != "" || len(input.DiceValues) > 0 {
		modifier := 0
		var governing string
		var governingValue int
		if input.SkillID != "" {
			skill, ok := tmpl.SkillByID(input.SkillID)
			if !ok {
				return ActionResult{}, apperrors.Newf(apperrors.CodeSkillUnknown, "unknown skill %q", input.SkillID)
			}
			governing = skill.Attribute
			governingValue = state.Attributes[skill.Attribute]
			modifier = dice.ModifierFor(governingValue)
		}
		values := input.DiceValues
		if len(values) == 0 {
			values = s.roll()
		}
		resolved, err := dice.Resolve(values, modifier, tmpl.SpecialDiceEvents)
		if err != nil {
			return ActionResult{}, err
		}
		resolved.Attribute = governing
		resolved.AttributeValue = governingValue
		outcome = &resolved
	}

	actionPrompt, err := prompt.BuildAction(state, tmpl, prompt.Action{
		Text:    action,
		SkillID: input.SkillID,
		Dice:    outcome,
	})
	if err != nil {
		return ActionResult{}, err
	}

	var resp narrator.Response
	err = s.retry.Do(ctx, func() error {
		var err error
		resp, err = s.narrator.Narrate(ctx, narrator.Request{Prompt: actionPrompt, MaxTokens: NarrationMaxTokens})
		return err
	})
	if err != nil {
		log.Printf("event=narration_failed game_id=%s turn=%d error=%q", state.ID, state.Turn, err)
		return ActionResult{}, err
	}

	narrative := delta.StripBlock(resp.Text)
	deltas := delta.Parse(resp.Text)

	// Special event effects land before the narrator's deltas; both are
	// additive so the order only matters for auditing.
	if outcome != nil && outcome.IsMatch && outcome.SpecialEvent != nil {
		state.ApplyEffect(outcome.SpecialEvent.Effect)
	}
	state.ApplyDeltas(deltas)

	progResult, err := progression.Evaluate(state, tmpl)
	if err != nil {
		return ActionResult{}, err
	}

	state.Turn++
	state.CurrentScene = narrative
	state.UpdatedAt = s.now()

	entryID, err := s.newID()
	if err != nil {
		return ActionResult{}, fmt.Errorf("generate history id: %w", err)
	}
	entry := domain.HistoryEntry{
		ID:                entryID,
		Turn:              state.Turn,
		PlayerAction:      action,
		SkillID:           input.SkillID,
		DiceRoll:          outcome,
		NarrativeText:     narrative,
		Deltas:            deltas,
		StageTransitioned: progResult.AdvancedToStageID != "",
		CreatedAt:         state.UpdatedAt,
	}
	if outcome != nil && outcome.IsMatch && outcome.SpecialEvent != nil {
		entry.IsKeyEvent = true
		entry.EventType = "special_dice_event"
		entry.Impact = outcome.SpecialEvent.Description
	}
	if len(deltas.Relationships) > 0 {
		names := make([]string, 0, len(deltas.Relationships))
		for name := range deltas.Relationships {
			names = append(names, name)
		}
		sort.Strings(names)
		entry.RelatedNPCs = names
	}
	state.AppendHistory(entry)

	if err := s.store.SaveTurn(ctx, state, entry); err != nil {
		return ActionResult{}, apperrors.Newf(apperrors.CodeStorageWriteFail, "persist turn %d: %v", state.Turn, err)
	}

	log.Printf("event=action_performed game_id=%s turn=%d status=%s stage=%s",
		state.ID, state.Turn, state.Status, state.CurrentStageID)
	return ActionResult{
		State:       state,
		Narrative:   narrative,
		Dice:        outcome,
		Deltas:      deltas,
		Progression: progResult,
	}, nil
}
