package flow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/findhomeng/yard/internal/models"
)

// Resolution is the outcome of validating raw user text against a screen.
type Resolution struct {
	// Input is the normalized resolved input: the canonical option label for
	// fixed choices, the position string for numbered choices, NextOnResolve
	// for resolver-computed kinds. It keys the screen's transition table.
	Input string
	// StoreValue is the value written under the screen's StoreKey.
	StoreValue string
	// Label is the human-readable form of the selection when it differs from
	// StoreValue (numbered choices, dates). Empty otherwise.
	Label string
	// Index is the 1-based selected position for numeric-index screens.
	Index int
	// Date is the selected calendar date for dynamic-date screens.
	Date *DateOption
}

// Rejection describes why input did not match the screen's expected shape.
// Hint is the corrective line shown above the re-rendered screen.
type Rejection struct {
	Hint string
	// ResetExpired signals that the rejection is state corruption (listing
	// selection with no cached results) rather than bad input, and the
	// session must be reset to the expired screen.
	ResetExpired bool
}

// Resolve classifies and validates raw user text against the active screen.
// cached is the session's cached listing list (numeric-index screens only);
// today anchors the freshly generated date sequence (dynamic-date screens
// only). Exactly one of the returned values is non-nil.
func Resolve(screen *Screen, cached []models.Listing, text string, today time.Time) (*Resolution, *Rejection) {
	trimmed := strings.TrimSpace(text)

	switch screen.Kind {
	case KindFixedChoice:
		return resolveFixedChoice(screen, trimmed)
	case KindNumberedChoice:
		return resolveNumberedChoice(screen, trimmed)
	case KindFreeText:
		return resolveFreeText(screen, trimmed)
	case KindNumericIndex:
		return resolveNumericIndex(cached, trimmed)
	case KindDynamicDate:
		return resolveDynamicDate(trimmed, today)
	default:
		return nil, &Rejection{Hint: "Sorry, I didn't understand that."}
	}
}

func resolveFixedChoice(screen *Screen, text string) (*Resolution, *Rejection) {
	lower := strings.ToLower(text)
	for _, opt := range screen.Options {
		if strings.ToLower(opt) == lower {
			return &Resolution{Input: opt, StoreValue: opt}, nil
		}
	}
	return nil, &Rejection{Hint: "Please reply with one of the listed options."}
}

func resolveNumberedChoice(screen *Screen, text string) (*Resolution, *Rejection) {
	pos, err := parseLeadingInt(text)
	if err != nil || pos < 1 || pos > len(screen.Options) {
		return nil, &Rejection{Hint: fmt.Sprintf("Please reply with a number between 1 and %d.", len(screen.Options))}
	}
	store := screen.Options[pos-1]
	if v, ok := screen.ValueMap[pos]; ok {
		store = v
	}
	return &Resolution{
		Input:      strconv.Itoa(pos),
		StoreValue: store,
		Label:      screen.Options[pos-1],
	}, nil
}

func resolveFreeText(screen *Screen, text string) (*Resolution, *Rejection) {
	min := screen.MinLength
	if min < 1 {
		min = 1
	}
	if len([]rune(text)) < min {
		return nil, &Rejection{Hint: fmt.Sprintf("Please send at least %d characters.", min)}
	}
	return &Resolution{Input: NextOnResolve, StoreValue: text}, nil
}

func resolveNumericIndex(cached []models.Listing, text string) (*Resolution, *Rejection) {
	if len(cached) == 0 {
		return nil, &Rejection{ResetExpired: true}
	}
	idx, err := parseLeadingInt(text)
	if err != nil || idx < 1 || idx > len(cached) {
		return nil, &Rejection{Hint: fmt.Sprintf("Please reply with a number between 1 and %d.", len(cached))}
	}
	return &Resolution{Input: NextOnResolve, Index: idx}, nil
}

func resolveDynamicDate(text string, today time.Time) (*Resolution, *Rejection) {
	dates := NextDates(today, DateOptionCount)
	pos, err := parseLeadingInt(text)
	if err != nil || pos < 1 || pos > len(dates) {
		return nil, &Rejection{Hint: fmt.Sprintf("Please reply with a number between 1 and %d.", len(dates))}
	}
	d := dates[pos-1]
	return &Resolution{
		Input:      NextOnResolve,
		StoreValue: d.Display,
		Label:      d.Display,
		Date:       &d,
	}, nil
}

// parseLeadingInt parses an integer from the start of text, tolerating
// trailing words ("2 please") and a leading option dot ("2.").
func parseLeadingInt(text string) (int, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty input")
	}
	head := strings.TrimSuffix(fields[0], ".")
	return strconv.Atoi(head)
}
