// Package template defines scenario templates and their loader.
//
// A template is the static definition of a playable scenario: its
// attributes, skills, customizations, NPC roster, special dice events,
// and stage chain. Templates are read-only for the lifetime of the
// process; the engine never mutates them.
package template

// Metadata describes a template for listings.
type Metadata struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
}

// Skill is a rollable base skill governed by an attribute.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Attribute names the governing attribute whose value derives the
	// dice modifier for this skill.
	Attribute string `json:"attributeKey"`
}

// Customization is a character creation choice with per-option attribute impact.
type Customization struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Options     []string                  `json:"options"`
	Impact      map[string]map[string]int `json:"impact,omitempty"`
}

// NPC is a non-player character the player can build a relationship with.
type NPC struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	InitialRelationship int    `json:"initialRelationship,omitempty"`
}

// SpecialDiceEvent fires when a triple match lands on its face value.
type SpecialDiceEvent struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Effect      map[string]int `json:"effect,omitempty"`
}

// Goal is a stage objective gated on minimum attribute values.
type Goal struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	// Requirements maps attribute keys to inclusive minimums; all must be met.
	Requirements map[string]int `json:"requirements"`
}

// CompletionConditions gates stage completion. Both fields are optional;
// an absent field does not constrain completion.
type CompletionConditions struct {
	MinGoalsCompleted int            `json:"min_goals_completed,omitempty"`
	MinAttributes     map[string]int `json:"min_attributes,omitempty"`
}

// Rewards are applied exactly once when a stage completes.
type Rewards struct {
	AttributeBonus map[string]int `json:"attribute_bonus,omitempty"`
	UnlockSkills   []string       `json:"unlock_skills,omitempty"`
}

// FailureCondition is a template-declared defeat predicate.
//
// When is a Lua boolean expression evaluated against the globals
// `attributes` (table of integers), `relationships` (table of integers)
// and `turn` (integer). The condition is only considered once the turn
// counter reaches MinTurn.
type FailureCondition struct {
	Name    string `json:"name"`
	When    string `json:"when"`
	Ending  string `json:"ending"`
	MinTurn int    `json:"min_turn,omitempty"`
}

// Stage is one link in the template's linear stage chain. A stage with
// no NextStageID is the terminal, winning stage.
type Stage struct {
	Name                 string               `json:"name"`
	Description          string               `json:"description"`
	Goals                []Goal               `json:"goals"`
	CompletionConditions CompletionConditions `json:"completion_conditions"`
	Rewards              Rewards              `json:"rewards"`
	NextStageID          string               `json:"nextStageId,omitempty"`
	FailureConditions    []FailureCondition   `json:"failureConditions,omitempty"`
}

// Endings holds template-level ending texts used when no stage-specific
// text applies.
type Endings struct {
	Victory string `json:"victory,omitempty"`
	Defeat  string `json:"defeat,omitempty"`
}

// Template is a complete scenario definition.
type Template struct {
	Metadata             Metadata                    `json:"metadata"`
	Scenario             string                      `json:"scenario"`
	StartingPoint        string                      `json:"startingPoint"`
	Attributes           map[string]string           `json:"attributes"`
	BaseSkills           map[string]Skill            `json:"baseSkills"`
	PlayerCustomizations map[string]Customization    `json:"playerCustomizations"`
	NPCs                 map[string][]NPC            `json:"npcs,omitempty"`
	SpecialDiceEvents    map[string]SpecialDiceEvent `json:"specialDiceEvents,omitempty"`
	FirstStageID         string                      `json:"firstStageId,omitempty"`
	Stages               map[string]Stage            `json:"stages,omitempty"`
	Endings              Endings                     `json:"endings,omitempty"`
}

// StartingStageID resolves the stage the game opens in: FirstStageID when
// set, otherwise unset (templates without stages run free-form).
func (t *Template) StartingStageID() string {
	if t.FirstStageID != "" {
		return t.FirstStageID
	}
	return ""
}

// Stage returns the stage definition for id, if present.
func (t *Template) Stage(id string) (Stage, bool) {
	if t.Stages == nil {
		return Stage{}, false
	}
	stage, ok := t.Stages[id]
	return stage, ok
}

// SkillByID returns the base skill definition for id, if present.
func (t *Template) SkillByID(id string) (Skill, bool) {
	skill, ok := t.BaseSkills[id]
	return skill, ok
}

// VictoryEnding returns the template victory text or a generic default.
func (t *Template) VictoryEnding() string {
	if t.Endings.Victory != "" {
		return t.Endings.Victory
	}
	return "You have successfully completed the scenario!"
}

// DefeatEnding returns the template defeat text or a generic default.
func (t *Template) DefeatEnding() string {
	if t.Endings.Defeat != "" {
		return t.Endings.Defeat
	}
	return "Your journey ends here."
}
