package flow

import (
	"strings"
	"testing"
)

func TestDefaultGraphValidates(t *testing.T) {
	if err := DefaultGraph().Validate(); err != nil {
		t.Fatalf("default graph invalid: %v", err)
	}
}

func TestValidateRejectsMissingEntry(t *testing.T) {
	g := NewGraph("MISSING", &Screen{ID: "A", Kind: KindFixedChoice})
	if err := g.Validate(); err == nil {
		t.Error("expected error for missing entry screen")
	}
}

func TestValidateRejectsDanglingTransition(t *testing.T) {
	g := NewGraph("A", &Screen{
		ID:      "A",
		Options: []string{"Go"},
		Kind:    KindFixedChoice,
		Next:    map[string]string{"Go": "NOWHERE"},
	})
	err := g.Validate()
	if err == nil || !strings.Contains(err.Error(), "unknown screen") {
		t.Errorf("expected dangling transition error, got %v", err)
	}
}

func TestValidateRejectsIncompleteValueMap(t *testing.T) {
	g := NewGraph("A", &Screen{
		ID:       "A",
		Options:  []string{"one", "two"},
		Kind:     KindNumberedChoice,
		StoreKey: "k",
		ValueMap: map[int]string{1: "v1"},
	})
	err := g.Validate()
	if err == nil || !strings.Contains(err.Error(), "value map missing position 2") {
		t.Errorf("expected value map error, got %v", err)
	}
}

func TestValidateRejectsStaticOptionsOnDynamicDate(t *testing.T) {
	g := NewGraph("A", &Screen{
		ID:      "A",
		Options: []string{"Mon"},
		Kind:    KindDynamicDate,
	})
	if err := g.Validate(); err == nil {
		t.Error("expected error for static options on dynamic-date screen")
	}
}

func TestScreenRender(t *testing.T) {
	s := &Screen{
		ID:      "A",
		Prompt:  "Pick one:",
		Options: []string{"Yes", "No"},
		Kind:    KindFixedChoice,
	}
	got := s.Render(nil)
	want := "Pick one:\n\nReply with one option:\n- Yes\n- No"
	if got != want {
		t.Errorf("Render mismatch:\ngot:  %q\nwant: %q", got, want)
	}

	s.Numbered = true
	got = s.Render(nil)
	if !strings.Contains(got, "1. Yes") || !strings.Contains(got, "2. No") {
		t.Errorf("numbered rendering missing positions: %q", got)
	}
}

func TestScreenRenderPromptFunc(t *testing.T) {
	s := &Screen{
		ID:         "A",
		Prompt:     "static ignored",
		PromptFunc: func(answers map[string]string) string { return "hello " + answers["name"] },
		Kind:       KindFreeText,
	}
	got := s.RenderPrompt(map[string]string{"name": "Ada"})
	if got != "hello Ada" {
		t.Errorf("expected computed prompt, got %q", got)
	}
}
