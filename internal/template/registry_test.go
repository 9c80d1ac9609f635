package template

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"prepcam/internal/domain"
)

func TestBuiltinsHaveEqualQuestionCounts(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, tmpl := range r.List() {
		langs := tmpl.Languages()
		if len(langs) < 2 {
			t.Fatalf("built-in %q supports %d languages", tmpl.ID, len(langs))
		}
		want := len(tmpl.Questions[langs[0]])
		for _, code := range langs {
			if len(tmpl.Questions[code]) != want {
				t.Fatalf("built-in %q has unequal counts for %q", tmpl.ID, code)
			}
		}
	}
}

func TestGetUnknownTemplate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Get("nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuestionsForUnknownLanguage(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	tmpl, err := r.Get("personal")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if _, err := tmpl.QuestionsFor("fr"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildCustomValidation(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	if _, err := r.BuildCustom("en", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for zero questions, got %v", err)
	}
	if _, err := r.BuildCustom("en", []string{"ok", "  "}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for blank question, got %v", err)
	}
	if _, err := r.BuildCustom("", []string{"ok"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty language, got %v", err)
	}
}

func TestBuildCustomInstallsTemplate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	built, err := r.BuildCustom("hi", []string{"प्रश्न एक", "प्रश्न दो"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if built.Name != CustomName {
		t.Fatalf("unexpected name: %q", built.Name)
	}

	got, err := r.Get(CustomID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	questions, err := got.QuestionsFor("hi")
	if err != nil {
		t.Fatalf("questions failed: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("unexpected question count: %d", len(questions))
	}
	if _, err := got.QuestionsFor("en"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("custom template should only serve its own language")
	}

	// Rebuilding replaces the slot instead of growing the list.
	if _, err := r.BuildCustom("en", []string{"only one"}); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	count := 0
	for _, tmpl := range r.List() {
		if tmpl.ID == CustomID {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one custom slot, got %d", count)
	}
}

func TestLoadDirRegistersYAMLTemplates(t *testing.T) {
	dir := t.TempDir()
	contents := `id: technical
name: Technical Interview
questions:
  en:
    - "Describe a system you designed."
    - "How do you debug a flaky test?"
  hi:
    - "आपने डिज़ाइन की गई प्रणाली का वर्णन करें।"
    - "आप एक अस्थिर परीक्षण को कैसे डीबग करते हैं?"
`
	if err := os.WriteFile(filepath.Join(dir, "technical.yaml"), []byte(contents), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	tmpl, err := r.Get("technical")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if tmpl.Name != "Technical Interview" {
		t.Fatalf("unexpected name: %q", tmpl.Name)
	}
}

func TestLoadDirRejectsUnequalCounts(t *testing.T) {
	dir := t.TempDir()
	contents := `id: lopsided
name: Lopsided
questions:
  en: ["one", "two"]
  hi: ["एक"]
`
	if err := os.WriteFile(filepath.Join(dir, "lopsided.yaml"), []byte(contents), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	r := NewRegistry()
	if err := r.LoadDir(dir); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadDirMissingDirectoryIsFine(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.LoadDir(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
