package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"prepcam/internal/domain"
)

// CustomID is the reserved template id populated via BuildCustom.
const CustomID = "custom"

// CustomName is the display name of the ad hoc template.
const CustomName = "Custom Template"

// Template is a named, language-indexed ordered question sequence.
type Template struct {
	ID        string              `yaml:"id"`
	Name      string              `yaml:"name"`
	Questions map[string][]string `yaml:"questions"`
}

// QuestionsFor returns the ordered questions for a language.
func (t Template) QuestionsFor(language string) ([]string, error) {
	questions, ok := t.Questions[language]
	if !ok || len(questions) == 0 {
		return nil, fmt.Errorf("%w: template %q has no questions for language %q", domain.ErrNotFound, t.ID, language)
	}
	return questions, nil
}

// Languages lists the language codes the template supports, sorted.
func (t Template) Languages() []string {
	codes := make([]string, 0, len(t.Questions))
	for code := range t.Questions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Registry holds the named question sets. Built-ins are registered at
// construction and are immutable afterwards; the only later mutation is the
// ad hoc custom template slot.
type Registry struct {
	templates map[string]Template
	order     []string
}

// NewRegistry builds a registry preloaded with the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{templates: map[string]Template{}}
	for _, t := range builtinTemplates() {
		// Built-ins are trusted to satisfy the equal-length invariant;
		// register panics if one does not.
		if err := r.register(t); err != nil {
			panic(fmt.Sprintf("invalid built-in template %q: %v", t.ID, err))
		}
	}
	return r
}

// LoadDir registers extra templates from *.yaml files in dir. A missing
// directory is not an error; an invalid file is.
func (r *Registry) LoadDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read template directory %q: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template file %q: %w", path, err)
		}
		var t Template
		if err := yaml.Unmarshal(contents, &t); err != nil {
			return fmt.Errorf("failed to parse template file %q: %w", path, err)
		}
		if err := r.register(t); err != nil {
			return fmt.Errorf("invalid template file %q: %w", path, err)
		}
	}
	return nil
}

// Get returns the template for id.
func (r *Registry) Get(id string) (Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: template %q", domain.ErrNotFound, id)
	}
	return t, nil
}

// List returns all templates in registration order, custom slot last.
func (r *Registry) List() []Template {
	out := make([]Template, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.templates[id])
	}
	return out
}

// BuildCustom validates the ad hoc question texts and installs them as the
// custom template for the given language only.
func (r *Registry) BuildCustom(language string, questions []string) (Template, error) {
	if strings.TrimSpace(language) == "" {
		return Template{}, fmt.Errorf("%w: language is empty", domain.ErrValidation)
	}
	if len(questions) == 0 {
		return Template{}, fmt.Errorf("%w: a custom template needs at least one question", domain.ErrValidation)
	}
	for i, q := range questions {
		if strings.TrimSpace(q) == "" {
			return Template{}, fmt.Errorf("%w: custom question %d is empty", domain.ErrValidation, i+1)
		}
	}

	t := Template{
		ID:        CustomID,
		Name:      CustomName,
		Questions: map[string][]string{language: append([]string(nil), questions...)},
	}

	if _, exists := r.templates[CustomID]; !exists {
		r.order = append(r.order, CustomID)
	}
	r.templates[CustomID] = t
	return t, nil
}

func (r *Registry) register(t Template) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: template id is empty", domain.ErrValidation)
	}
	if t.ID == CustomID {
		return fmt.Errorf("%w: %q is reserved", domain.ErrValidation, CustomID)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: template %q has no name", domain.ErrValidation, t.ID)
	}
	if _, exists := r.templates[t.ID]; exists {
		return fmt.Errorf("%w: duplicate template id %q", domain.ErrValidation, t.ID)
	}
	if len(t.Questions) == 0 {
		return fmt.Errorf("%w: template %q has no questions", domain.ErrValidation, t.ID)
	}

	// All languages of a registered template must carry the same number of
	// questions so the answer count is language-independent.
	want := -1
	for code, questions := range t.Questions {
		if len(questions) == 0 {
			return fmt.Errorf("%w: template %q has no questions for %q", domain.ErrValidation, t.ID, code)
		}
		for i, q := range questions {
			if strings.TrimSpace(q) == "" {
				return fmt.Errorf("%w: template %q question %d for %q is empty", domain.ErrValidation, t.ID, i+1, code)
			}
		}
		if want == -1 {
			want = len(questions)
			continue
		}
		if len(questions) != want {
			return fmt.Errorf("%w: template %q has unequal question counts across languages", domain.ErrValidation, t.ID)
		}
	}

	r.templates[t.ID] = t
	r.order = append(r.order, t.ID)
	return nil
}
