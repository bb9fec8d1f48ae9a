package template

import (
	"errors"
	"testing"
	"testing/fstest"

	apperrors "github.com/storyloom/storyloom/internal/errors"
)

func TestEmbeddedSourceLoadsSampleScenario(t *testing.T) {
	source := NewEmbeddedSource()

	tmpl, err := source.Load("starfall-academy")
	if err != nil {
		t.Fatalf("load embedded template: %v", err)
	}
	if tmpl.Metadata.ID != "starfall-academy" {
		t.Fatalf("expected metadata id starfall-academy, got %q", tmpl.Metadata.ID)
	}
	if tmpl.FirstStageID != "first_term" {
		t.Fatalf("expected first stage first_term, got %q", tmpl.FirstStageID)
	}
	if _, ok := tmpl.Stage("final_debut"); !ok {
		t.Fatal("expected final_debut stage to exist")
	}
	if _, ok := tmpl.SkillByID("perform"); !ok {
		t.Fatal("expected perform skill to exist")
	}
	if len(tmpl.Stages["first_term"].FailureConditions) == 0 {
		t.Fatal("expected first_term to declare a failure condition")
	}
}

func TestLoadCachesTemplates(t *testing.T) {
	source := NewEmbeddedSource()

	first, err := source.Load("starfall-academy")
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := source.Load("starfall-academy")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if first != second {
		t.Fatal("expected cached template pointer on second load")
	}
}

func TestLoadUnknownTemplate(t *testing.T) {
	source := NewEmbeddedSource()

	_, err := source.Load("missing-scenario")
	if err == nil {
		t.Fatal("expected error for unknown template")
	}
	if apperrors.CodeOf(err) != apperrors.CodeTemplateUnknown {
		t.Fatalf("expected TEMPLATE_UNKNOWN, got %v", apperrors.CodeOf(err))
	}
}

func TestListReturnsMetadata(t *testing.T) {
	source := NewEmbeddedSource()

	metas, err := source.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) == 0 {
		t.Fatal("expected at least one embedded template")
	}
	if metas[0].ID == "" {
		t.Fatal("expected metadata id to be populated")
	}
}

func TestValidateRejectsBrokenTemplates(t *testing.T) {
	base := func() *Template {
		return &Template{
			Metadata:             Metadata{ID: "t"},
			Scenario:             "scenario",
			StartingPoint:        "start",
			Attributes:           map[string]string{"wit": "Cleverness"},
			PlayerCustomizations: map[string]Customization{},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Template)
	}{
		{
			name:   "missing scenario",
			mutate: func(t *Template) { t.Scenario = "" },
		},
		{
			name:   "missing starting point",
			mutate: func(t *Template) { t.StartingPoint = "  " },
		},
		{
			name:   "no attributes",
			mutate: func(t *Template) { t.Attributes = nil },
		},
		{
			name: "skill with unknown attribute",
			mutate: func(t *Template) {
				t.BaseSkills = map[string]Skill{"jump": {Name: "Jump", Attribute: "legs"}}
			},
		},
		{
			name: "special event face out of range",
			mutate: func(t *Template) {
				t.SpecialDiceEvents = map[string]SpecialDiceEvent{"7": {Name: "Impossible"}}
			},
		},
		{
			name: "stages without first stage id",
			mutate: func(t *Template) {
				t.Stages = map[string]Stage{"a": {Name: "A"}}
			},
		},
		{
			name: "dangling next stage",
			mutate: func(t *Template) {
				t.FirstStageID = "a"
				t.Stages = map[string]Stage{"a": {Name: "A", NextStageID: "ghost"}}
			},
		},
		{
			name: "failure condition without predicate",
			mutate: func(t *Template) {
				t.FirstStageID = "a"
				t.Stages = map[string]Stage{"a": {
					Name:              "A",
					FailureConditions: []FailureCondition{{Name: "broken"}},
				}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := base()
			tt.mutate(tmpl)
			err := Validate(tmpl)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var structured *apperrors.Error
			if !errors.As(err, &structured) {
				t.Fatalf("expected structured error, got %v", err)
			}
			if structured.Code != apperrors.CodeTemplateInvalid {
				t.Fatalf("expected TEMPLATE_INVALID, got %v", structured.Code)
			}
		})
	}
}

func TestLoadRejectsMismatchedMetadataID(t *testing.T) {
	fsys := fstest.MapFS{
		"other.json": &fstest.MapFile{Data: []byte(`{
			"metadata": {"id": "not-other"},
			"scenario": "s",
			"startingPoint": "p",
			"attributes": {"wit": "Cleverness"},
			"playerCustomizations": {}
		}`)},
	}
	source := NewSource(fsys, ".")

	_, err := source.Load("other")
	if err == nil {
		t.Fatal("expected metadata id mismatch error")
	}
}
