// Package prompt renders the narrator prompts. Rendering is
// deterministic for a given state: map-backed sections are emitted in
// sorted key order.
package prompt

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"github.com/storyloom/storyloom/internal/game/dice"
	"github.com/storyloom/storyloom/internal/game/domain"
	scenario "github.com/storyloom/storyloom/internal/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var prompts = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// HistoryWindow bounds how many past turns an action prompt replays.
const HistoryWindow = 5

// Relationship bands shown to the narrator alongside raw scores.
const (
	bandClose    = 75
	bandFriendly = 25
)

// Action is the player input an action prompt narrates.
type Action struct {
	Text    string
	SkillID string
	Dice    *dice.Outcome
}

type attributeLine struct {
	Key   string
	Value int
}

type relationshipLine struct {
	Name  string
	Value int
	Band  string
}

type goalLine struct {
	Name        string
	Description string
	Completed   bool
}

type historyLine struct {
	Turn          int
	PlayerAction  string
	NarrativeText string
}

type customizationLine struct {
	Name   string
	Choice string
}

type actionData struct {
	Scenario         string
	PlayerName       string
	Turn             int
	Attributes       []attributeLine
	Relationships    []relationshipLine
	StageName        string
	StageDescription string
	Goals            []goalLine
	History          []historyLine
	Action           string
	DiceText         string
	LanguageHint     bool
}

type openingData struct {
	Scenario       string
	PlayerName     string
	Customizations []customizationLine
	Attributes     []attributeLine
	Relationships  []relationshipLine
	StartingPoint  string
}

// BuildOpening renders the prompt that asks the narrator for a game's
// opening scene.
func BuildOpening(state *domain.GameState, tmpl *scenario.Template) (string, error) {
	data := openingData{
		Scenario:      tmpl.Scenario,
		PlayerName:    state.PlayerName,
		Attributes:    attributeLines(state),
		Relationships: relationshipLines(state),
		StartingPoint: tmpl.StartingPoint,
	}

	keys := make([]string, 0, len(state.Customizations))
	for key := range state.Customizations {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		name := key
		if c, ok := tmpl.PlayerCustomizations[key]; ok && c.Name != "" {
			name = c.Name
		}
		data.Customizations = append(data.Customizations, customizationLine{
			Name:   name,
			Choice: state.Customizations[key],
		})
	}

	var sb strings.Builder
	if err := prompts.ExecuteTemplate(&sb, "opening.tmpl", data); err != nil {
		return "", fmt.Errorf("render opening prompt: %w", err)
	}
	return sb.String(), nil
}

// BuildAction renders the prompt for one player turn.
func BuildAction(state *domain.GameState, tmpl *scenario.Template, action Action) (string, error) {
	data := actionData{
		Scenario:      tmpl.Scenario,
		PlayerName:    state.PlayerName,
		Turn:          state.Turn + 1,
		Attributes:    attributeLines(state),
		Relationships: relationshipLines(state),
		Action:        action.Text,
		DiceText:      diceText(action.Dice),
		LanguageHint:  usesNonLatinScript(action.Text) || usesNonLatinScript(tmpl.Metadata.Name),
	}

	if stage, ok := tmpl.Stage(state.CurrentStageID); ok {
		data.StageName = stage.Name
		data.StageDescription = stage.Description
		for _, goal := range stage.Goals {
			data.Goals = append(data.Goals, goalLine{
				Name:        goal.Name,
				Description: goal.Description,
				Completed:   state.GoalCompleted(state.CurrentStageID, goal.ID),
			})
		}
	}

	history := state.History
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	for _, entry := range history {
		data.History = append(data.History, historyLine{
			Turn:          entry.Turn,
			PlayerAction:  entry.PlayerAction,
			NarrativeText: entry.NarrativeText,
		})
	}

	var sb strings.Builder
	if err := prompts.ExecuteTemplate(&sb, "action.tmpl", data); err != nil {
		return "", fmt.Errorf("render action prompt: %w", err)
	}
	return sb.String(), nil
}

func attributeLines(state *domain.GameState) []attributeLine {
	var out []attributeLine
	for _, key := range state.AttributeKeys() {
		out = append(out, attributeLine{Key: key, Value: state.Attributes[key]})
	}
	return out
}

func relationshipLines(state *domain.GameState) []relationshipLine {
	var out []relationshipLine
	for _, name := range state.RelationshipNames() {
		value := state.Relationships[name]
		out = append(out, relationshipLine{Name: name, Value: value, Band: RelationshipBand(value)})
	}
	return out
}

// RelationshipBand maps a relationship score to the narrator-facing
// label for it.
func RelationshipBand(value int) string {
	switch {
	case value >= bandClose:
		return "devoted"
	case value >= bandFriendly:
		return "friendly"
	case value > -bandFriendly:
		return "neutral"
	case value > -bandClose:
		return "hostile"
	default:
		return "sworn enemy"
	}
}

func diceText(outcome *dice.Outcome) string {
	if outcome == nil {
		return ""
	}
	if outcome.IsMatch {
		return fmt.Sprintf(
			"The dice came up %s, a triple! Special event: %s. %s Weave this event into the narration as the dominant beat of the turn.",
			joinValues(outcome.Values), outcome.SpecialEvent.Name, outcome.SpecialEvent.Description)
	}
	provenance := ""
	if outcome.Attribute != "" {
		provenance = fmt.Sprintf(" (from %s %d)", outcome.Attribute, outcome.AttributeValue)
	}
	return fmt.Sprintf(
		"Dice roll: %s = %d, modifier %+d%s, total %d. Totals of 10 or less lean toward setbacks, 11 to 14 mixed results, 15 and up clear successes.",
		joinValues(outcome.Values), outcome.Sum, outcome.Modifier, provenance, outcome.Total)
}

func joinValues(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, "+")
}

// usesNonLatinScript reports whether the action contains letters outside
// the Latin script, which cues the narrator to answer in kind.
func usesNonLatinScript(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}
