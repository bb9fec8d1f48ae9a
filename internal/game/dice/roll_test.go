package dice

import (
	"math/rand"
	"testing"

	apperrors "github.com/storyloom/storyloom/internal/errors"
	"github.com/storyloom/storyloom/internal/template"
)

func TestRollTripleBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		values := RollTriple(rng)
		if len(values) != Count {
			t.Fatalf("expected %d dice, got %d", Count, len(values))
		}
		for _, v := range values {
			if v < 1 || v > Sides {
				t.Fatalf("die value %d out of range", v)
			}
		}
	}
}

func TestCheckMatch(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   bool
	}{
		{name: "all equal", values: []int{4, 4, 4}, want: true},
		{name: "two equal", values: []int{4, 4, 5}, want: false},
		{name: "all distinct", values: []int{1, 2, 3}, want: false},
		{name: "wrong count", values: []int{4, 4}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckMatch(tt.values); got != tt.want {
				t.Fatalf("CheckMatch(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestModifierFor(t *testing.T) {
	tests := []struct {
		value int
		want  int
	}{
		{value: 0, want: 0},
		{value: 4, want: 0},
		{value: 5, want: 1},
		{value: 9, want: 1},
		{value: 10, want: 2},
		{value: 14, want: 2},
		{value: -1, want: -1},
		{value: -5, want: -1},
		{value: -6, want: -2},
	}

	for _, tt := range tests {
		if got := ModifierFor(tt.value); got != tt.want {
			t.Errorf("ModifierFor(%d) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestResolveSumsDiceAndModifier(t *testing.T) {
	out, err := Resolve([]int{3, 5, 2}, 2, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.IsMatch {
		t.Fatal("expected no match")
	}
	if out.Sum != 10 {
		t.Fatalf("expected sum 10, got %d", out.Sum)
	}
	if out.Total != 12 {
		t.Fatalf("expected total 12, got %d", out.Total)
	}
	if out.SpecialEvent != nil {
		t.Fatal("expected no special event on a regular roll")
	}
}

func TestResolveMatchSelectsConfiguredEvent(t *testing.T) {
	events := map[string]template.SpecialDiceEvent{
		"4": {Name: "Windfall", Effect: map[string]int{"luck": 2}},
	}

	out, err := Resolve([]int{4, 4, 4}, 3, events)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !out.IsMatch {
		t.Fatal("expected match")
	}
	if out.MatchedValue != 4 {
		t.Fatalf("expected matched value 4, got %d", out.MatchedValue)
	}
	if out.SpecialEvent == nil || out.SpecialEvent.Name != "Windfall" {
		t.Fatalf("expected Windfall event, got %+v", out.SpecialEvent)
	}
	if out.Sum != 0 || out.Total != 0 {
		t.Fatalf("match must bypass sum/total, got sum=%d total=%d", out.Sum, out.Total)
	}
}

func TestResolveMatchFallsBackToGenericEvent(t *testing.T) {
	out, err := Resolve([]int{2, 2, 2}, 0, map[string]template.SpecialDiceEvent{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.SpecialEvent == nil {
		t.Fatal("expected generic event for unconfigured face")
	}
	if out.SpecialEvent.Name != "Triple 2" {
		t.Fatalf("expected Triple 2, got %q", out.SpecialEvent.Name)
	}
	if len(out.SpecialEvent.Effect) != 0 {
		t.Fatalf("generic event must have no effect, got %v", out.SpecialEvent.Effect)
	}
}

func TestResolveRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		values []int
	}{
		{name: "too few", values: []int{1, 2}},
		{name: "too many", values: []int{1, 2, 3, 4}},
		{name: "face too low", values: []int{0, 2, 3}},
		{name: "face too high", values: []int{1, 2, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.values, 0, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if apperrors.CodeOf(err) != apperrors.CodeDiceInvalidValues {
				t.Fatalf("expected DICE_INVALID_VALUES, got %v", apperrors.CodeOf(err))
			}
		})
	}
}
