package flow

import (
	"fmt"
	"sort"
)

// Screen identifiers. These double as session state names.
const (
	ScreenRecommend          = "RECOMMEND"
	ScreenLocation           = "LOCATION"
	ScreenPropertyType       = "PROPERTY_TYPE"
	ScreenBedrooms           = "BEDROOMS"
	ScreenBathrooms          = "BATHROOMS"
	ScreenPriceRange         = "PRICE_RANGE"
	ScreenReview             = "REVIEW"
	ScreenSearchResults      = "SEARCH_RESULTS"
	ScreenNoResults          = "NO_RESULTS"
	ScreenSelectListing      = "SELECT_LISTING"
	ScreenBookPrompt         = "BOOK_PROMPT"
	ScreenAppointmentDate    = "APPOINTMENT_DATE"
	ScreenAppointmentTime    = "APPOINTMENT_TIME"
	ScreenAppointmentName    = "APPOINTMENT_NAME"
	ScreenAppointmentConfirm = "APPOINTMENT_CONFIRM"
	ScreenAppointmentSaved   = "APPOINTMENT_SAVED"
	ScreenMyAppointments     = "MY_APPOINTMENTS"
	ScreenSessionExpired     = "SESSION_EXPIRED"
	ScreenEndThanks          = "END_THANKS"
)

// NextOnResolve is the transition key used by screens whose resolver computes
// the selection itself (free text, numeric index, dynamic dates) rather than
// matching one of several labeled options.
const NextOnResolve = "selected"

// Answer-map keys written by the engine outside of screen StoreKeys.
const (
	AnswerListingID      = "listing_id"
	AnswerListingAddress = "listing_address"
	AnswerListingCount   = "listing_count"
)

// Graph is the static screen table plus its entry point.
type Graph struct {
	entry   string
	screens map[string]*Screen
}

// NewGraph builds a graph from the given screens with the given entry id.
func NewGraph(entry string, screens ...*Screen) *Graph {
	g := &Graph{entry: entry, screens: make(map[string]*Screen, len(screens))}
	for _, s := range screens {
		g.screens[s.ID] = s
	}
	return g
}

// Entry returns the entry screen id.
func (g *Graph) Entry() string {
	return g.entry
}

// Screen looks up a screen by id. Lookup never mutates the graph.
func (g *Graph) Screen(id string) (*Screen, bool) {
	s, ok := g.screens[id]
	return s, ok
}

// Validate enforces the graph closure invariants: every transition target and
// value-map position resolves to an existing screen, numbered-choice screens
// with a store key cover every offered position, and dynamic-date screens
// carry no static options.
func (g *Graph) Validate() error {
	if _, ok := g.screens[g.entry]; !ok {
		return fmt.Errorf("entry screen %s does not exist", g.entry)
	}
	ids := make([]string, 0, len(g.screens))
	for id := range g.screens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s := g.screens[id]
		if !IsValidInputKind(s.Kind) {
			return fmt.Errorf("screen %s: invalid input kind %q", id, s.Kind)
		}
		for input, target := range s.Next {
			if _, ok := g.screens[target]; !ok {
				return fmt.Errorf("screen %s: transition %q targets unknown screen %s", id, input, target)
			}
		}
		switch s.Kind {
		case KindNumberedChoice:
			if len(s.Options) == 0 {
				return fmt.Errorf("screen %s: numbered-choice requires options", id)
			}
			if s.StoreKey != "" {
				for i := 1; i <= len(s.Options); i++ {
					if _, ok := s.ValueMap[i]; !ok {
						return fmt.Errorf("screen %s: value map missing position %d", id, i)
					}
				}
			}
		case KindDynamicDate:
			if len(s.Options) != 0 {
				return fmt.Errorf("screen %s: dynamic-date screens must not carry static options", id)
			}
		}
	}
	return nil
}

// DefaultGraph returns the property-search and inspection-booking wizard.
func DefaultGraph() *Graph {
	return NewGraph(ScreenRecommend,
		&Screen{
			ID:      ScreenRecommend,
			Prompt:  "Find your next home 🏠\nAnswer a few questions and I'll show you matching homes.",
			Options: []string{"Start", "My appointments"},
			Kind:    KindFixedChoice,
			Next: map[string]string{
				"Start":           ScreenLocation,
				"My appointments": ScreenMyAppointments,
			},
		},
		&Screen{
			ID:       ScreenLocation,
			Prompt:   "Pick your preferred location:",
			Options:  []string{"Lagos", "Abuja", "Paris", "London"},
			Kind:     KindFixedChoice,
			StoreKey: "location",
			Next: map[string]string{
				"Lagos":  ScreenPropertyType,
				"Abuja":  ScreenPropertyType,
				"Paris":  ScreenPropertyType,
				"London": ScreenPropertyType,
			},
		},
		&Screen{
			ID:       ScreenPropertyType,
			Prompt:   "Choose property type:",
			Options:  []string{"House", "Apartment", "Villa", "Condo", "Duplex", "Other"},
			Kind:     KindFixedChoice,
			StoreKey: "property_type",
			Next: map[string]string{
				"House":     ScreenBedrooms,
				"Apartment": ScreenBedrooms,
				"Villa":     ScreenBedrooms,
				"Condo":     ScreenBedrooms,
				"Duplex":    ScreenBedrooms,
				"Other":     ScreenBedrooms,
			},
		},
		&Screen{
			ID:       ScreenBedrooms,
			Prompt:   "How many bedrooms?",
			Options:  []string{"1", "2", "3", "4+"},
			Kind:     KindFixedChoice,
			StoreKey: "bedrooms",
			Next: map[string]string{
				"1":  ScreenBathrooms,
				"2":  ScreenBathrooms,
				"3":  ScreenBathrooms,
				"4+": ScreenBathrooms,
			},
		},
		&Screen{
			ID:       ScreenBathrooms,
			Prompt:   "How many bathrooms?",
			Options:  []string{"1", "2", "3+", "Any"},
			Kind:     KindFixedChoice,
			StoreKey: "bathrooms",
			Next: map[string]string{
				"1":   ScreenPriceRange,
				"2":   ScreenPriceRange,
				"3+":  ScreenPriceRange,
				"Any": ScreenPriceRange,
			},
		},
		&Screen{
			ID:       ScreenPriceRange,
			Prompt:   "What's your budget?",
			Options:  []string{"Under $100k", "$100k – $250k", "$250k – $500k", "Above $500k", "No budget limit"},
			Kind:     KindNumberedChoice,
			Numbered: true,
			StoreKey: "price_range",
			ValueMap: map[int]string{
				1: "0-100000",
				2: "100000-250000",
				3: "250000-500000",
				4: "500000-0",
				5: "0-0",
			},
			Next: map[string]string{
				"1": ScreenReview,
				"2": ScreenReview,
				"3": ScreenReview,
				"4": ScreenReview,
				"5": ScreenReview,
			},
		},
		&Screen{
			ID: ScreenReview,
			PromptFunc: func(answers map[string]string) string {
				budget := answers["price_range_label"]
				if budget == "" {
					budget = answers["price_range"]
				}
				return fmt.Sprintf("Please review your search details:\nLocation: %s\nProperty Type: %s\nBedrooms: %s\nBathrooms: %s\nBudget: %s",
					answers["location"], answers["property_type"], answers["bedrooms"], answers["bathrooms"], budget)
			},
			Options: []string{"Submit", "Start over"},
			Kind:    KindFixedChoice,
			Next: map[string]string{
				"Submit":     ScreenSearchResults,
				"Start over": ScreenLocation,
			},
		},
		&Screen{
			ID:     ScreenSearchResults,
			Prompt: "Thanks! Searching homes now...",
			Kind:   KindFixedChoice,
			Action: ActionSearch,
		},
		&Screen{
			ID:     ScreenNoResults,
			Prompt: "😕 No homes matched your search.\nTry a different location, a bigger budget, or fewer bedrooms.",
			Kind:   KindFixedChoice,
		},
		&Screen{
			ID: ScreenSelectListing,
			PromptFunc: func(answers map[string]string) string {
				count := answers[AnswerListingCount]
				if count == "" {
					count = "the listings above"
				}
				return fmt.Sprintf("Reply with a number (1-%s) to book an inspection, or type *menu* to start over.", count)
			},
			Kind: KindNumericIndex,
			Next: map[string]string{NextOnResolve: ScreenBookPrompt},
		},
		&Screen{
			ID: ScreenBookPrompt,
			PromptFunc: func(answers map[string]string) string {
				return fmt.Sprintf("Would you like to book an inspection for %s?", answers[AnswerListingAddress])
			},
			Options: []string{"Yes", "No"},
			Kind:    KindFixedChoice,
			Next: map[string]string{
				"Yes": ScreenAppointmentDate,
				"No":  ScreenEndThanks,
			},
		},
		&Screen{
			ID:       ScreenAppointmentDate,
			Prompt:   "Pick a date for your inspection:",
			Kind:     KindDynamicDate,
			Numbered: true,
			StoreKey: "appointment_date",
			Next:     map[string]string{NextOnResolve: ScreenAppointmentTime},
		},
		&Screen{
			ID:       ScreenAppointmentTime,
			Prompt:   "Pick a time slot:",
			Options:  []string{"Morning (9–11 AM)", "Midday (12–2 PM)", "Afternoon (3–5 PM)"},
			Kind:     KindNumberedChoice,
			Numbered: true,
			StoreKey: "appointment_time",
			ValueMap: map[int]string{
				1: "09:00-11:00",
				2: "12:00-14:00",
				3: "15:00-17:00",
			},
			Next: map[string]string{
				"1": ScreenAppointmentName,
				"2": ScreenAppointmentName,
				"3": ScreenAppointmentName,
			},
		},
		&Screen{
			ID:        ScreenAppointmentName,
			Prompt:    "What name should we put on the booking?",
			Kind:      KindFreeText,
			MinLength: 2,
			StoreKey:  "contact_name",
			Next:      map[string]string{NextOnResolve: ScreenAppointmentConfirm},
		},
		&Screen{
			ID: ScreenAppointmentConfirm,
			PromptFunc: func(answers map[string]string) string {
				slot := answers["appointment_time_label"]
				if slot == "" {
					slot = answers["appointment_time"]
				}
				return fmt.Sprintf("Confirm your inspection:\n🏠 %s\n📅 %s\n🕐 %s\n👤 %s",
					answers[AnswerListingAddress], answers["appointment_date"], slot, answers["contact_name"])
			},
			Options: []string{"Confirm", "Cancel"},
			Kind:    KindFixedChoice,
			Next: map[string]string{
				"Confirm": ScreenAppointmentSaved,
				"Cancel":  ScreenRecommend,
			},
		},
		&Screen{
			ID:      ScreenAppointmentSaved,
			Prompt:  "✅ Your inspection is booked! An agent will reach out to confirm.",
			Options: []string{"Menu"},
			Kind:    KindFixedChoice,
			Action:  ActionBookInspection,
			Next:    map[string]string{"Menu": ScreenRecommend},
		},
		&Screen{
			ID:      ScreenMyAppointments,
			Prompt:  "Here are your upcoming inspections:",
			Options: []string{"Menu"},
			Kind:    KindFixedChoice,
			Action:  ActionListAppointments,
			Next:    map[string]string{"Menu": ScreenRecommend},
		},
		&Screen{
			ID:      ScreenSessionExpired,
			Prompt:  "Those results have expired. Let's find you a home again!",
			Options: []string{"Start"},
			Kind:    KindFixedChoice,
			Next:    map[string]string{"Start": ScreenLocation},
		},
		&Screen{
			ID:     ScreenEndThanks,
			Prompt: "Thanks for using Yard! 🏠 Type *menu* anytime to search again.",
			Kind:   KindFixedChoice,
		},
	)
}
