// Package flow implements the declarative screen graph and the dialog engine
// that interprets it.
//
// Screens are immutable nodes: a prompt (static or computed from accumulated
// answers), an ordered option list, an input kind, and a transition table.
// The engine never mutates a screen; all mutable state lives in the session.
package flow

import (
	"fmt"
	"strings"
)

// InputKind classifies what shape of user input a screen expects.
type InputKind string

const (
	// KindFixedChoice matches raw text case-insensitively against Options.
	KindFixedChoice InputKind = "fixed-choice"
	// KindNumberedChoice parses a leading integer into an option position.
	KindNumberedChoice InputKind = "numbered-choice"
	// KindFreeText accepts any non-empty string meeting MinLength.
	KindFreeText InputKind = "free-text"
	// KindNumericIndex parses an integer against the session's cached listings.
	KindNumericIndex InputKind = "numeric-index"
	// KindDynamicDate parses a leading integer against a freshly generated date sequence.
	KindDynamicDate InputKind = "dynamic-date"
)

// IsValidInputKind checks if the given input kind is supported.
func IsValidInputKind(k InputKind) bool {
	switch k {
	case KindFixedChoice, KindNumberedChoice, KindFreeText, KindNumericIndex, KindDynamicDate:
		return true
	default:
		return false
	}
}

// TerminalAction identifies the side effect triggered when a screen is entered.
type TerminalAction string

const (
	// ActionNone marks an ordinary screen with no side effect.
	ActionNone TerminalAction = ""
	// ActionSearch runs the listing search from the accumulated answers.
	ActionSearch TerminalAction = "search"
	// ActionBookInspection persists an inspection appointment.
	ActionBookInspection TerminalAction = "book_inspection"
	// ActionListAppointments renders the user's saved appointments.
	ActionListAppointments TerminalAction = "list_appointments"
)

// PromptFunc renders an answer-dependent prompt. It must be pure: a function
// of the answer map only, never of external state.
type PromptFunc func(answers map[string]string) string

// Screen is one immutable node of the conversation graph.
type Screen struct {
	// ID is the unique screen identifier and state name.
	ID string
	// Prompt is the static prompt text. Ignored when PromptFunc is set.
	Prompt string
	// PromptFunc renders the prompt from accumulated answers.
	PromptFunc PromptFunc
	// Options is the ordered list of human-readable choice labels.
	Options []string
	// Kind selects the input resolver for this screen.
	Kind InputKind
	// StoreKey, when set, names the answer-map key the resolved value is written under.
	StoreKey string
	// ValueMap maps a numbered-choice position (1-based) to the canonical stored value.
	ValueMap map[int]string
	// Next maps a normalized resolved input (option label, or position string
	// for numbered kinds) to the next screen id. Absent entries mean "stay"
	// or are handled by the terminal action.
	Next map[string]string
	// Action is the terminal side effect triggered on entering this screen.
	Action TerminalAction
	// Numbered renders options as "1. ..." instead of "- ...".
	Numbered bool
	// MinLength is the free-text minimum input length. Zero means 1.
	MinLength int
}

// RenderPrompt evaluates the screen prompt against the answer map.
func (s *Screen) RenderPrompt(answers map[string]string) string {
	if s.PromptFunc != nil {
		return s.PromptFunc(answers)
	}
	return s.Prompt
}

// Render produces the full outbound message for the screen: the prompt plus
// its option list, numbered if the screen requests numbering.
func (s *Screen) Render(answers map[string]string) string {
	text := s.RenderPrompt(answers)
	if len(s.Options) == 0 {
		return text
	}
	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n\nReply with one option:")
	for i, opt := range s.Options {
		if s.Numbered {
			sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, opt))
		} else {
			sb.WriteString(fmt.Sprintf("\n- %s", opt))
		}
	}
	return sb.String()
}
