// Package dice implements the triple-d6 uncertainty mechanic.
//
// An action roll throws three six-sided dice. When all three land on the
// same face the roll is a match: ordinary resolution is bypassed and the
// matched face selects a template-defined special event instead. Otherwise
// the dice sum plus the skill's attribute modifier forms the roll total.
package dice

import (
	"fmt"
	"math/rand"
	"strconv"

	apperrors "github.com/storyloom/storyloom/internal/errors"
	"github.com/storyloom/storyloom/internal/template"
)

// Sides is the number of faces per die.
const Sides = 6

// Count is the number of dice thrown per roll.
const Count = 3

// Outcome is the fully resolved result of one roll.
//
// For a match, Sum and Total are not meaningful and are left zero; the
// match bypasses ordinary resolution entirely.
type Outcome struct {
	Values       []int
	IsMatch      bool
	MatchedValue int
	Sum          int
	Modifier     int
	Total        int
	// Attribute records the governing attribute the modifier derives
	// from, for prompt provenance. Empty when no skill was used.
	Attribute      string
	AttributeValue int
	SpecialEvent   *template.SpecialDiceEvent
}

// RollTriple throws three dice using the provided random source.
func RollTriple(rng *rand.Rand) []int {
	values := make([]int, Count)
	for i := range values {
		values[i] = rng.Intn(Sides) + 1
	}
	return values
}

// CheckMatch reports whether every die landed on the same face.
func CheckMatch(values []int) bool {
	if len(values) != Count {
		return false
	}
	return values[0] == values[1] && values[1] == values[2]
}

// ModifierFor derives the skill-check modifier from the governing
// attribute's value: every 5 points contribute +1 (floor division, so
// negative attributes floor toward negative modifiers).
func ModifierFor(attributeValue int) int {
	if attributeValue >= 0 {
		return attributeValue / 5
	}
	return -((-attributeValue + 4) / 5)
}

// ValidateValues checks externally supplied dice values.
func ValidateValues(values []int) error {
	if len(values) != Count {
		return apperrors.Newf(apperrors.CodeDiceInvalidValues, "expected %d dice values, got %d", Count, len(values))
	}
	for _, v := range values {
		if v < 1 || v > Sides {
			return apperrors.Newf(apperrors.CodeDiceInvalidValues, "die value %d is not in 1..%d", v, Sides)
		}
	}
	return nil
}

// Resolve computes the outcome for a set of dice values.
//
// On a match the matched face selects the special event from the
// template's table; an unconfigured face yields a generic "Triple N"
// event with no effect, which callers narrate as-is. Resolve is pure
// over its inputs.
func Resolve(values []int, modifier int, specialEvents map[string]template.SpecialDiceEvent) (Outcome, error) {
	if err := ValidateValues(values); err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Values:   append([]int(nil), values...),
		Modifier: modifier,
	}

	if CheckMatch(values) {
		out.IsMatch = true
		out.MatchedValue = values[0]
		if event, ok := specialEvents[strconv.Itoa(out.MatchedValue)]; ok {
			eventCopy := event
			out.SpecialEvent = &eventCopy
		} else {
			out.SpecialEvent = &template.SpecialDiceEvent{
				Name:        fmt.Sprintf("Triple %d", out.MatchedValue),
				Description: fmt.Sprintf("All three dice landed on %d.", out.MatchedValue),
			}
		}
		return out, nil
	}

	for _, v := range values {
		out.Sum += v
	}
	out.Total = out.Sum + modifier
	return out, nil
}
