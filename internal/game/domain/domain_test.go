package domain

import (
	"testing"
	"time"

	apperrors "github.com/storyloom/storyloom/internal/errors"
	"github.com/storyloom/storyloom/internal/template"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

func staticID() (string, error) {
	return "game-1", nil
}

func testTemplate() *template.Template {
	return &template.Template{
		Metadata: template.Metadata{ID: "campus"},
		Attributes: map[string]string{
			"intelligence": "Book smarts",
			"stress":       "Accumulated pressure",
			"charm":        "Social ease",
		},
		PlayerCustomizations: map[string]template.Customization{
			"major": {
				Name:    "Major",
				Options: []string{"Physics", "Drama"},
				Impact: map[string]map[string]int{
					"Physics": {"intelligence": 2},
					"Drama":   {"charm": 2, "stress": 1},
				},
			},
		},
		NPCs: map[string][]template.NPC{
			"faculty": {
				{Name: "Professor Okafor", InitialRelationship: 10},
			},
			"students": {
				{Name: "Jamie", InitialRelationship: -5},
			},
		},
		FirstStageID: "semester_one",
		Stages: map[string]template.Stage{
			"semester_one": {Name: "Semester One"},
		},
	}
}

func TestNewGameStateSeedsAttributesAndRelationships(t *testing.T) {
	state, err := NewGameState(testTemplate(), CreateInput{
		UserID:         "user-1",
		PlayerName:     "Alex",
		Customizations: map[string]string{"major": "Drama"},
	}, fixedClock, staticID)
	if err != nil {
		t.Fatalf("new game state: %v", err)
	}

	if state.ID != "game-1" {
		t.Fatalf("expected generated id, got %q", state.ID)
	}
	if state.Attributes["intelligence"] != 5 {
		t.Fatalf("expected base intelligence 5, got %d", state.Attributes["intelligence"])
	}
	if state.Attributes["charm"] != 7 {
		t.Fatalf("expected charm 5+2, got %d", state.Attributes["charm"])
	}
	if state.Attributes["stress"] != 6 {
		t.Fatalf("expected stress 5+1, got %d", state.Attributes["stress"])
	}
	if state.Relationships["Professor Okafor"] != 10 {
		t.Fatalf("expected seeded relationship 10, got %d", state.Relationships["Professor Okafor"])
	}
	if state.Relationships["Jamie"] != -5 {
		t.Fatalf("expected seeded relationship -5, got %d", state.Relationships["Jamie"])
	}
	if state.CurrentStageID != "semester_one" {
		t.Fatalf("expected starting stage, got %q", state.CurrentStageID)
	}
	if state.Turn != 0 {
		t.Fatalf("expected turn 0, got %d", state.Turn)
	}
	if state.Status != StatusActive {
		t.Fatalf("expected active status, got %q", state.Status)
	}
}

func TestNewGameStateValidation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateInput
		code  apperrors.Code
	}{
		{
			name:  "missing user id",
			input: CreateInput{PlayerName: "Alex"},
			code:  apperrors.CodeUserIDEmpty,
		},
		{
			name:  "missing player name",
			input: CreateInput{UserID: "user-1", PlayerName: "  "},
			code:  apperrors.CodePlayerNameEmpty,
		},
		{
			name: "unknown customization key",
			input: CreateInput{
				UserID:         "user-1",
				PlayerName:     "Alex",
				Customizations: map[string]string{"hometown": "North"},
			},
			code: apperrors.CodeCustomizationBad,
		},
		{
			name: "invalid customization option",
			input: CreateInput{
				UserID:         "user-1",
				PlayerName:     "Alex",
				Customizations: map[string]string{"major": "Alchemy"},
			},
			code: apperrors.CodeCustomizationBad,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGameState(testTemplate(), tt.input, fixedClock, staticID)
			if err == nil {
				t.Fatal("expected error")
			}
			if apperrors.CodeOf(err) != tt.code {
				t.Fatalf("expected %v, got %v", tt.code, apperrors.CodeOf(err))
			}
		})
	}
}

func TestApplyDeltasClampsRelationshipsOnly(t *testing.T) {
	state := &GameState{
		Attributes:    map[string]int{"stress": 95},
		Relationships: map[string]int{"Jamie": 80, "Viktor": -90},
	}

	state.ApplyDeltas(DeltaSet{
		Attributes:    map[string]int{"stress": 150},
		Relationships: map[string]int{"Jamie": 150, "Viktor": -400},
	})

	if state.Attributes["stress"] != 245 {
		t.Fatalf("attributes must not clamp, got %d", state.Attributes["stress"])
	}
	if state.Relationships["Jamie"] != RelationshipMax {
		t.Fatalf("expected relationship clamped to %d, got %d", RelationshipMax, state.Relationships["Jamie"])
	}
	if state.Relationships["Viktor"] != RelationshipMin {
		t.Fatalf("expected relationship clamped to %d, got %d", RelationshipMin, state.Relationships["Viktor"])
	}
}

func TestApplyDeltasCreatesUnknownKeys(t *testing.T) {
	state := &GameState{}

	state.ApplyDeltas(DeltaSet{
		Attributes:    map[string]int{"notoriety": 3},
		Relationships: map[string]int{"The Dean": -2},
	})

	if state.Attributes["notoriety"] != 3 {
		t.Fatalf("expected new attribute created, got %v", state.Attributes)
	}
	if state.Relationships["The Dean"] != -2 {
		t.Fatalf("expected new relationship created, got %v", state.Relationships)
	}
}

func TestGoalCompletionIsMonotonic(t *testing.T) {
	state := &GameState{}

	state.CompleteGoal("stage_a", "goal_1")
	state.CompleteGoal("stage_a", "goal_1")
	state.CompleteGoal("stage_a", "goal_2")

	if !state.GoalCompleted("stage_a", "goal_1") {
		t.Fatal("expected goal_1 completed")
	}
	if state.CompletedGoalCount("stage_a") != 2 {
		t.Fatalf("expected 2 completed goals, got %d", state.CompletedGoalCount("stage_a"))
	}
}

func TestUnlockSkillIgnoresDuplicates(t *testing.T) {
	state := &GameState{}

	state.UnlockSkill("improvise")
	state.UnlockSkill("improvise")

	if len(state.UnlockedSkills) != 1 {
		t.Fatalf("expected a single unlocked skill, got %v", state.UnlockedSkills)
	}
	if !state.SkillUnlocked("improvise") {
		t.Fatal("expected improvise unlocked")
	}
}

func TestEndedStatuses(t *testing.T) {
	state := &GameState{Status: StatusActive}
	if state.Ended() {
		t.Fatal("active game must not be ended")
	}

	state.EndVictory("you win")
	if !state.Ended() || state.Status != StatusVictory || state.EndingText != "you win" {
		t.Fatalf("unexpected victory state: %+v", state)
	}

	state = &GameState{Status: StatusActive}
	state.EndDefeat("you lose")
	if !state.Ended() || state.Status != StatusDefeat {
		t.Fatalf("unexpected defeat state: %+v", state)
	}
}

func TestSortedKeyAccessors(t *testing.T) {
	state := &GameState{
		Attributes:    map[string]int{"b": 1, "a": 2, "c": 3},
		Relationships: map[string]int{"Zed": 0, "Ana": 0},
	}

	keys := state.AttributeKeys()
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Fatalf("expected sorted attribute keys, got %v", keys)
	}
	names := state.RelationshipNames()
	if len(names) != 2 || names[0] != "Ana" {
		t.Fatalf("expected sorted relationship names, got %v", names)
	}
}
