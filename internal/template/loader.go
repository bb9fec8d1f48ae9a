package template

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/storyloom/storyloom/internal/errors"
)

//go:embed templates/*.json
var embeddedFS embed.FS

// Source loads and validates templates from a filesystem of JSON
// documents, one template per <id>.json file. Loaded templates are
// cached; the cache is safe for concurrent readers.
type Source struct {
	fsys fs.FS
	root string

	mu    sync.RWMutex
	cache map[string]*Template
}

// NewSource creates a template source over fsys. Pass "." as root when
// templates sit at the top of fsys.
func NewSource(fsys fs.FS, root string) *Source {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	return &Source{
		fsys:  fsys,
		root:  root,
		cache: make(map[string]*Template),
	}
}

// NewEmbeddedSource creates a source over the scenarios shipped with the
// engine.
func NewEmbeddedSource() *Source {
	return NewSource(embeddedFS, "templates")
}

// Load returns the template with the given id, validating its structure
// on first load.
func (s *Source) Load(id string) (*Template, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.New(apperrors.CodeTemplateUnknown, "template id is required")
	}

	s.mu.RLock()
	cached, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	path := id + ".json"
	if s.root != "." {
		path = s.root + "/" + path
	}
	raw, err := fs.ReadFile(s.fsys, path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.CodeTemplateUnknown, "template %q not found", id)
	}

	var tmpl Template
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return nil, apperrors.Newf(apperrors.CodeTemplateInvalid, "template %q: decode: %v", id, err)
	}
	if err := Validate(&tmpl); err != nil {
		return nil, fmt.Errorf("template %q: %w", id, err)
	}
	if tmpl.Metadata.ID != id {
		return nil, apperrors.Newf(apperrors.CodeTemplateInvalid, "template %q: metadata id %q does not match file name", id, tmpl.Metadata.ID)
	}

	s.mu.Lock()
	s.cache[id] = &tmpl
	s.mu.Unlock()

	return &tmpl, nil
}

// List returns metadata for every template in the source, sorted by id.
func (s *Source) List() ([]Metadata, error) {
	entries, err := fs.ReadDir(s.fsys, s.root)
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}

	var out []Metadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		tmpl, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		out = append(out, tmpl.Metadata)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Validate checks the structural completeness of a template. Validation
// is the loader's responsibility; the engine assumes templates it
// receives are well formed.
func Validate(t *Template) error {
	if t == nil {
		return apperrors.New(apperrors.CodeTemplateInvalid, "template is required")
	}
	if strings.TrimSpace(t.Metadata.ID) == "" {
		return apperrors.New(apperrors.CodeTemplateInvalid, "metadata id is required")
	}
	if strings.TrimSpace(t.Scenario) == "" {
		return apperrors.New(apperrors.CodeTemplateInvalid, "scenario is required")
	}
	if strings.TrimSpace(t.StartingPoint) == "" {
		return apperrors.New(apperrors.CodeTemplateInvalid, "starting point is required")
	}
	if len(t.Attributes) == 0 {
		return apperrors.New(apperrors.CodeTemplateInvalid, "at least one attribute is required")
	}
	if t.PlayerCustomizations == nil {
		return apperrors.New(apperrors.CodeTemplateInvalid, "player customizations are required")
	}

	for skillID, skill := range t.BaseSkills {
		if skill.Attribute == "" {
			return apperrors.Newf(apperrors.CodeTemplateInvalid, "skill %q has no governing attribute", skillID)
		}
		if _, ok := t.Attributes[skill.Attribute]; !ok {
			return apperrors.Newf(apperrors.CodeTemplateInvalid, "skill %q references unknown attribute %q", skillID, skill.Attribute)
		}
	}

	for key, customization := range t.PlayerCustomizations {
		if len(customization.Options) == 0 {
			return apperrors.Newf(apperrors.CodeTemplateInvalid, "customization %q has no options", key)
		}
	}

	for face := range t.SpecialDiceEvents {
		if len(face) != 1 || face[0] < '1' || face[0] > '6' {
			return apperrors.Newf(apperrors.CodeTemplateInvalid, "special dice event face %q is not in 1..6", face)
		}
	}

	if len(t.Stages) > 0 {
		if t.FirstStageID == "" {
			return apperrors.New(apperrors.CodeTemplateInvalid, "firstStageId is required when stages are defined")
		}
		if _, ok := t.Stages[t.FirstStageID]; !ok {
			return apperrors.Newf(apperrors.CodeTemplateInvalid, "firstStageId %q is not a defined stage", t.FirstStageID)
		}
		for stageID, stage := range t.Stages {
			if stage.NextStageID != "" {
				if _, ok := t.Stages[stage.NextStageID]; !ok {
					return apperrors.Newf(apperrors.CodeTemplateInvalid, "stage %q references unknown next stage %q", stageID, stage.NextStageID)
				}
			}
			seen := make(map[string]struct{}, len(stage.Goals))
			for _, goal := range stage.Goals {
				if strings.TrimSpace(goal.ID) == "" {
					return apperrors.Newf(apperrors.CodeTemplateInvalid, "stage %q has a goal without an id", stageID)
				}
				if _, dup := seen[goal.ID]; dup {
					return apperrors.Newf(apperrors.CodeTemplateInvalid, "stage %q has duplicate goal id %q", stageID, goal.ID)
				}
				seen[goal.ID] = struct{}{}
			}
			for _, fc := range stage.FailureConditions {
				if strings.TrimSpace(fc.When) == "" {
					return apperrors.Newf(apperrors.CodeTemplateInvalid, "stage %q failure condition %q has no predicate", stageID, fc.Name)
				}
			}
		}
	}

	return nil
}
