// Package domain holds the mutable state of a running game and the
// rules for changing it. All mutators operate in memory; persistence is
// the caller's concern.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/storyloom/storyloom/internal/errors"
	"github.com/storyloom/storyloom/internal/game/dice"
	"github.com/storyloom/storyloom/internal/template"
)

// Relationship scores are clamped to this band. Attribute values are
// intentionally unbounded.
const (
	RelationshipMin = -100
	RelationshipMax = 100
)

// BaseAttributeValue seeds every template attribute before customization
// impacts are applied.
const BaseAttributeValue = 5

// Status is the lifecycle state of a game.
type Status string

const (
	StatusActive  Status = "active"
	StatusVictory Status = "victory"
	StatusDefeat  Status = "defeat"
)

// DeltaSet is a batch of attribute and relationship changes, typically
// parsed from a narrator reply.
type DeltaSet struct {
	Attributes    map[string]int `json:"attributes,omitempty"`
	Relationships map[string]int `json:"relationships,omitempty"`
}

// Empty reports whether the set carries no changes.
func (d DeltaSet) Empty() bool {
	return len(d.Attributes) == 0 && len(d.Relationships) == 0
}

// HistoryEntry records one completed turn. Entries are immutable once
// appended.
type HistoryEntry struct {
	ID            string        `json:"id"`
	Turn          int           `json:"turn"`
	PlayerAction  string        `json:"player_action"`
	SkillID       string        `json:"skill_id,omitempty"`
	DiceRoll      *dice.Outcome `json:"dice_roll,omitempty"`
	NarrativeText string        `json:"narrative_text"`
	Deltas        DeltaSet      `json:"deltas"`
	// StageTransitioned marks turns on which the player advanced to a
	// new stage.
	StageTransitioned bool `json:"stage_transitioned,omitempty"`
	// Key-event annotations, set when a turn carried a special dice
	// event.
	IsKeyEvent  bool      `json:"is_key_event,omitempty"`
	EventType   string    `json:"event_type,omitempty"`
	Impact      string    `json:"impact,omitempty"`
	RelatedNPCs []string  `json:"related_npcs,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// GameState is the complete mutable state of one session.
type GameState struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	TemplateID     string            `json:"template_id"`
	PlayerName     string            `json:"player_name"`
	Customizations map[string]string `json:"customizations,omitempty"`

	Attributes    map[string]int `json:"attributes"`
	Relationships map[string]int `json:"relationships"`
	// UnlockedSkills lists skill ids available beyond the template's base
	// skills, granted by stage rewards.
	UnlockedSkills []string `json:"unlocked_skills,omitempty"`

	// CurrentScene is the latest narrative beat shown to the player.
	CurrentScene string `json:"current_scene,omitempty"`

	CurrentStageID string `json:"current_stage_id,omitempty"`
	// CompletedGoals maps stage id to the set of completed goal ids.
	// Entries are never removed; goal completion is monotonic.
	CompletedGoals map[string]map[string]bool `json:"completed_goals,omitempty"`
	// RewardedStages marks stages whose completion rewards were already
	// applied, so rewards fire exactly once.
	RewardedStages map[string]bool `json:"rewarded_stages,omitempty"`

	Turn       int    `json:"turn"`
	Status     Status `json:"status"`
	EndingText string `json:"ending_text,omitempty"`

	History []HistoryEntry `json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput carries everything needed to start a game.
type CreateInput struct {
	UserID         string
	PlayerName     string
	Customizations map[string]string
}

// NewGameState seeds a fresh game from a template.
//
// Every template attribute starts at BaseAttributeValue, then the
// impact of each chosen customization option is added on top. NPC
// relationships start at the template's initial values.
func NewGameState(tmpl *template.Template, input CreateInput, now func() time.Time, idGenerator func() (string, error)) (*GameState, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, apperrors.New(apperrors.CodeUserIDEmpty, "user id is required")
	}
	if strings.TrimSpace(input.PlayerName) == "" {
		return nil, apperrors.New(apperrors.CodePlayerNameEmpty, "player name is required")
	}

	for key, choice := range input.Customizations {
		customization, ok := tmpl.PlayerCustomizations[key]
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeCustomizationBad, "unknown customization %q", key)
		}
		valid := false
		for _, option := range customization.Options {
			if option == choice {
				valid = true
				break
			}
		}
		if !valid {
			return nil, apperrors.Newf(apperrors.CodeCustomizationBad, "customization %q has no option %q", key, choice)
		}
	}

	id, err := idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate game id: %w", err)
	}

	attributes := make(map[string]int, len(tmpl.Attributes))
	for key := range tmpl.Attributes {
		attributes[key] = BaseAttributeValue
	}
	for key, choice := range input.Customizations {
		impact := tmpl.PlayerCustomizations[key].Impact[choice]
		for attr, bonus := range impact {
			attributes[attr] += bonus
		}
	}

	relationships := make(map[string]int)
	for _, group := range tmpl.NPCs {
		for _, npc := range group {
			relationships[npc.Name] = npc.InitialRelationship
		}
	}

	created := now()
	return &GameState{
		ID:             id,
		UserID:         input.UserID,
		TemplateID:     tmpl.Metadata.ID,
		PlayerName:     input.PlayerName,
		Customizations: input.Customizations,
		Attributes:     attributes,
		Relationships:  relationships,
		CurrentStageID: tmpl.StartingStageID(),
		CompletedGoals: make(map[string]map[string]bool),
		RewardedStages: make(map[string]bool),
		Turn:           0,
		Status:         StatusActive,
		CreatedAt:      created,
		UpdatedAt:      created,
	}, nil
}

// Ended reports whether the game reached a terminal status.
func (g *GameState) Ended() bool {
	return g.Status != StatusActive
}

// UpdateAttribute adds delta to an attribute, creating it if the
// narrator introduced a new one. Attribute values are not clamped.
func (g *GameState) UpdateAttribute(key string, delta int) {
	if g.Attributes == nil {
		g.Attributes = make(map[string]int)
	}
	g.Attributes[key] += delta
}

// UpdateRelationship adds delta to an NPC relationship, creating the
// entry if the NPC is new, and clamps the result to the valid band.
func (g *GameState) UpdateRelationship(name string, delta int) {
	if g.Relationships == nil {
		g.Relationships = make(map[string]int)
	}
	value := g.Relationships[name] + delta
	if value > RelationshipMax {
		value = RelationshipMax
	}
	if value < RelationshipMin {
		value = RelationshipMin
	}
	g.Relationships[name] = value
}

// ApplyDeltas applies a parsed delta batch to the state.
func (g *GameState) ApplyDeltas(deltas DeltaSet) {
	for key, delta := range deltas.Attributes {
		g.UpdateAttribute(key, delta)
	}
	for name, delta := range deltas.Relationships {
		g.UpdateRelationship(name, delta)
	}
}

// ApplyEffect applies a special dice event's attribute effect.
func (g *GameState) ApplyEffect(effect map[string]int) {
	for key, delta := range effect {
		g.UpdateAttribute(key, delta)
	}
}

// CompleteGoal marks a stage goal as completed. Completion never
// reverts, even if the qualifying attributes later drop.
func (g *GameState) CompleteGoal(stageID, goalID string) {
	if g.CompletedGoals == nil {
		g.CompletedGoals = make(map[string]map[string]bool)
	}
	goals := g.CompletedGoals[stageID]
	if goals == nil {
		goals = make(map[string]bool)
		g.CompletedGoals[stageID] = goals
	}
	goals[goalID] = true
}

// GoalCompleted reports whether a stage goal was already completed.
func (g *GameState) GoalCompleted(stageID, goalID string) bool {
	return g.CompletedGoals[stageID][goalID]
}

// CompletedGoalCount returns how many goals are completed in a stage.
func (g *GameState) CompletedGoalCount(stageID string) int {
	return len(g.CompletedGoals[stageID])
}

// UnlockSkill grants a skill id, ignoring duplicates.
func (g *GameState) UnlockSkill(id string) {
	for _, existing := range g.UnlockedSkills {
		if existing == id {
			return
		}
	}
	g.UnlockedSkills = append(g.UnlockedSkills, id)
}

// SkillUnlocked reports whether a reward skill was granted.
func (g *GameState) SkillUnlocked(id string) bool {
	for _, existing := range g.UnlockedSkills {
		if existing == id {
			return true
		}
	}
	return false
}

// EndVictory moves the game to its winning terminal state.
func (g *GameState) EndVictory(ending string) {
	g.Status = StatusVictory
	g.EndingText = ending
}

// EndDefeat moves the game to its losing terminal state.
func (g *GameState) EndDefeat(ending string) {
	g.Status = StatusDefeat
	g.EndingText = ending
}

// AppendHistory adds a turn record to the in-memory history.
func (g *GameState) AppendHistory(entry HistoryEntry) {
	g.History = append(g.History, entry)
}

// AttributeKeys returns the state's attribute keys in sorted order, for
// deterministic rendering.
func (g *GameState) AttributeKeys() []string {
	keys := make([]string, 0, len(g.Attributes))
	for key := range g.Attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// RelationshipNames returns NPC names in sorted order.
func (g *GameState) RelationshipNames() []string {
	names := make([]string, 0, len(g.Relationships))
	for name := range g.Relationships {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
