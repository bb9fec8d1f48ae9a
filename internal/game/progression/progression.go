// Package progression advances a game through its template's stage
// chain after each turn's deltas are applied.
//
// Evaluation order per turn: failure conditions first, then goal
// completion, then stage completion, rewards and advancement. A stage
// with no next stage completes into victory.
package progression

import (
	lua "github.com/Shopify/go-lua"

	apperrors "github.com/storyloom/storyloom/internal/errors"
	"github.com/storyloom/storyloom/internal/game/domain"
	"github.com/storyloom/storyloom/internal/template"
)

// Result reports what a single evaluation changed.
type Result struct {
	// NewlyCompletedGoals lists goal ids completed this evaluation, in
	// template declaration order.
	NewlyCompletedGoals []string
	// CompletedStageID is set when the current stage's completion
	// conditions were met this evaluation.
	CompletedStageID string
	// RewardsApplied is set when stage rewards were applied, which
	// happens at most once per stage per game.
	RewardsApplied *template.Rewards
	// AdvancedToStageID is the stage the game moved into, if any.
	AdvancedToStageID string
	Victory           bool
	Defeat            bool
	// FailedCondition names the failure condition that triggered defeat.
	FailedCondition string
	EndingText      string
}

// Evaluate applies one round of progression to the state, mutating it
// in place. The state must already reflect this turn's deltas.
//
// A failure predicate that does not evaluate returns an error with code
// FAILURE_PREDICATE_BAD and leaves the state untouched; templates are
// authored content and a broken predicate should surface, not silently
// pass.
func Evaluate(state *domain.GameState, tmpl *template.Template) (Result, error) {
	var result Result

	if state.Ended() {
		return result, nil
	}
	stage, ok := tmpl.Stage(state.CurrentStageID)
	if !ok {
		// Free-form template without stages: nothing to evaluate.
		return result, nil
	}

	for _, condition := range stage.FailureConditions {
		if state.Turn < condition.MinTurn {
			continue
		}
		triggered, err := EvalPredicate(condition.When, state.Attributes, state.Relationships, state.Turn)
		if err != nil {
			return Result{}, apperrors.Newf(apperrors.CodeFailurePredicateBad,
				"stage %q failure condition %q: %v", state.CurrentStageID, condition.Name, err)
		}
		if triggered {
			ending := condition.Ending
			if ending == "" {
				ending = tmpl.DefeatEnding()
			}
			state.EndDefeat(ending)
			result.Defeat = true
			result.FailedCondition = condition.Name
			result.EndingText = ending
			return result, nil
		}
	}

	for _, goal := range stage.Goals {
		if state.GoalCompleted(state.CurrentStageID, goal.ID) {
			continue
		}
		if meetsRequirements(state.Attributes, goal.Requirements) {
			state.CompleteGoal(state.CurrentStageID, goal.ID)
			result.NewlyCompletedGoals = append(result.NewlyCompletedGoals, goal.ID)
		}
	}

	if !stageComplete(state, stage) {
		return result, nil
	}
	result.CompletedStageID = state.CurrentStageID

	if !state.RewardedStages[state.CurrentStageID] {
		for attr, bonus := range stage.Rewards.AttributeBonus {
			state.UpdateAttribute(attr, bonus)
		}
		for _, skill := range stage.Rewards.UnlockSkills {
			state.UnlockSkill(skill)
		}
		if state.RewardedStages == nil {
			state.RewardedStages = make(map[string]bool)
		}
		state.RewardedStages[state.CurrentStageID] = true
		rewards := stage.Rewards
		result.RewardsApplied = &rewards
	}

	if stage.NextStageID == "" {
		ending := tmpl.VictoryEnding()
		state.EndVictory(ending)
		result.Victory = true
		result.EndingText = ending
		return result, nil
	}

	state.CurrentStageID = stage.NextStageID
	result.AdvancedToStageID = stage.NextStageID
	return result, nil
}

func meetsRequirements(attributes map[string]int, requirements map[string]int) bool {
	for attr, min := range requirements {
		if attributes[attr] < min {
			return false
		}
	}
	return true
}

func stageComplete(state *domain.GameState, stage template.Stage) bool {
	conditions := stage.CompletionConditions
	if conditions.MinGoalsCompleted > 0 &&
		state.CompletedGoalCount(state.CurrentStageID) < conditions.MinGoalsCompleted {
		return false
	}
	return meetsRequirements(state.Attributes, conditions.MinAttributes)
}

// EvalPredicate runs a failure condition expression in a fresh Lua
// state with the globals `attributes`, `relationships` and `turn`.
func EvalPredicate(expr string, attributes, relationships map[string]int, turn int) (bool, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)

	pushIntTable(l, attributes)
	l.SetGlobal("attributes")
	pushIntTable(l, relationships)
	l.SetGlobal("relationships")
	l.PushInteger(turn)
	l.SetGlobal("turn")

	if err := lua.DoString(l, "return ("+expr+")"); err != nil {
		return false, err
	}
	triggered := l.ToBoolean(-1)
	l.Pop(1)
	return triggered, nil
}

func pushIntTable(l *lua.State, values map[string]int) {
	l.NewTable()
	for key, value := range values {
		l.PushInteger(value)
		l.SetField(-2, key)
	}
}
