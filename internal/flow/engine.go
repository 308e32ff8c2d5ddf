package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/findhomeng/yard/internal/genai"
	"github.com/findhomeng/yard/internal/messaging"
	"github.com/findhomeng/yard/internal/models"
	"github.com/findhomeng/yard/internal/store"
)

// Outcome summarizes what HandleMessage did with an inbound message.
type Outcome string

const (
	// OutcomeHandled means the message was processed and replied to.
	OutcomeHandled Outcome = "handled"
	// OutcomeDuplicate means the message id was already processed and ignored.
	OutcomeDuplicate Outcome = "duplicate"
)

// Greetings that start a fresh conversation when no session exists.
var greetings = map[string]bool{
	"hi":           true,
	"hello":        true,
	"hey":          true,
	"good day":     true,
	"good morning": true,
	"start":        true,
}

// Global commands honored on every screen.
var globalCommands = map[string]bool{
	"menu":    true,
	"restart": true,
	"reset":   true,
	"cancel":  true,
	"help":    true,
}

const (
	apologyMessage = "⚠️ Sorry, something went wrong on our side. Please try again in a moment."
	nudgeMessage   = "👋 Hi! I'm Yard, your home search assistant. Send *hi* to get started."
	helpMessage    = "You can reply with one of the listed options at any time.\nType *menu* to start over."
)

// Dependencies are the collaborators the dialog engine drives.
type Dependencies struct {
	Sessions     store.SessionRepo
	Dedup        store.DedupRepo
	Listings     store.ListingRepo
	Searches     store.SearchRepo
	Appointments store.AppointmentRepo
	GenAI        genai.ClientInterface
	Sender       messaging.Sender
}

// EngineOpts holds configuration options for the dialog engine.
type EngineOpts struct {
	Now func() time.Time
}

// EngineOption defines a configuration option for the dialog engine.
type EngineOption func(*EngineOpts)

// WithClock overrides the engine's time source. Used by tests.
func WithClock(now func() time.Time) EngineOption {
	return func(o *EngineOpts) { o.Now = now }
}

// Engine interprets the screen graph: it resolves each inbound message against
// the session's current screen, advances the session, runs terminal side
// effects, and sends the next screen's rendering back to the user.
type Engine struct {
	graph *Graph
	deps  Dependencies
	now   func() time.Time
}

// NewEngine builds a dialog engine over the given graph and collaborators.
func NewEngine(graph *Graph, deps Dependencies, opts ...EngineOption) (*Engine, error) {
	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid screen graph: %w", err)
	}
	if deps.Sessions == nil || deps.Dedup == nil {
		return nil, models.ErrStoreNotConfigured
	}
	cfg := EngineOpts{Now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{graph: graph, deps: deps, now: cfg.Now}, nil
}

// HandleMessage processes one inbound message end to end. It is safe to call
// concurrently for different users; per-user ordering is the caller's concern.
func (e *Engine) HandleMessage(ctx context.Context, msg models.IncomingMessage) (Outcome, error) {
	if err := msg.Validate(); err != nil {
		return OutcomeHandled, err
	}

	dup, err := e.deps.Dedup.IsDuplicate(ctx, msg.ID)
	if err != nil {
		return OutcomeHandled, fmt.Errorf("dedup check for %s: %w", msg.ID, err)
	}
	if dup {
		slog.Info("Ignoring duplicate message", "message_id", msg.ID, "user_id", msg.From)
		return OutcomeDuplicate, nil
	}
	// Mark before replying so a crash mid-turn drops the message instead of
	// repeating its side effects on redelivery.
	if err := e.deps.Dedup.MarkProcessed(ctx, msg.ID); err != nil {
		slog.Warn("Failed to mark message processed", "error", err, "message_id", msg.ID)
	}

	text := strings.TrimSpace(msg.Text)
	lower := strings.ToLower(text)

	sess, err := e.deps.Sessions.GetSession(ctx, msg.From)
	if err != nil {
		e.send(ctx, msg.From, apologyMessage)
		return OutcomeHandled, fmt.Errorf("load session for %s: %w", msg.From, err)
	}

	if sess == nil {
		return e.handleNewConversation(ctx, msg.From, lower)
	}

	if globalCommands[lower] {
		return e.handleGlobalCommand(ctx, sess, lower)
	}

	screen, ok := e.graph.Screen(sess.CurrentScreen)
	if !ok {
		slog.Warn("Session references unknown screen, resetting", "user_id", sess.UserID, "screen", sess.CurrentScreen)
		return e.resetToExpired(ctx, sess)
	}

	res, rej := Resolve(screen, sess.CachedListings, text, e.now())
	if rej != nil {
		if rej.ResetExpired {
			return e.resetToExpired(ctx, sess)
		}
		if screen.ID == ScreenRecommend {
			if outcome, handled := e.tryFreeformSearch(ctx, sess, text); handled {
				return outcome, nil
			}
		}
		return OutcomeHandled, e.send(ctx, sess.UserID, rej.Hint+"\n\n"+e.renderScreen(screen, sess.Answers))
	}

	e.applyResolution(sess, screen, res)

	next := screen.Next[res.Input]
	if next == "" {
		next = screen.ID
	}
	nextScreen, ok := e.graph.Screen(next)
	if !ok {
		return OutcomeHandled, fmt.Errorf("%w: %s", models.ErrUnknownScreen, next)
	}

	switch nextScreen.Action {
	case ActionSearch:
		return e.runSearch(ctx, sess, nextScreen)
	case ActionBookInspection:
		return e.bookInspection(ctx, sess, nextScreen)
	case ActionListAppointments:
		return e.listAppointments(ctx, sess, nextScreen)
	}

	sess.CurrentScreen = next
	sess.UpdatedAt = e.now()
	if next == ScreenEndThanks {
		if err := e.deps.Sessions.DeleteSession(ctx, sess.UserID); err != nil {
			slog.Warn("Failed to delete finished session", "error", err, "user_id", sess.UserID)
		}
		return OutcomeHandled, e.send(ctx, sess.UserID, e.renderScreen(nextScreen, sess.Answers))
	}
	if err := e.deps.Sessions.SaveSession(ctx, sess); err != nil {
		e.send(ctx, sess.UserID, apologyMessage)
		return OutcomeHandled, fmt.Errorf("save session for %s: %w", sess.UserID, err)
	}
	return OutcomeHandled, e.send(ctx, sess.UserID, e.renderScreen(nextScreen, sess.Answers))
}

// handleNewConversation greets first contacts. A recognized greeting opens a
// session at the entry screen; anything else gets a nudge and no session.
func (e *Engine) handleNewConversation(ctx context.Context, userID, lower string) (Outcome, error) {
	if !greetings[lower] {
		return OutcomeHandled, e.send(ctx, userID, nudgeMessage)
	}
	sess := models.NewSession(userID, e.graph.Entry())
	if err := e.deps.Sessions.SaveSession(ctx, sess); err != nil {
		e.send(ctx, userID, apologyMessage)
		return OutcomeHandled, fmt.Errorf("create session for %s: %w", userID, err)
	}
	entry, _ := e.graph.Screen(e.graph.Entry())
	return OutcomeHandled, e.send(ctx, userID, e.renderScreen(entry, sess.Answers))
}

// handleGlobalCommand resets the session to the entry screen. "help" prefixes
// a short usage note on top of the entry rendering.
func (e *Engine) handleGlobalCommand(ctx context.Context, sess *models.Session, cmd string) (Outcome, error) {
	sess.Reset(e.graph.Entry())
	if err := e.deps.Sessions.SaveSession(ctx, sess); err != nil {
		e.send(ctx, sess.UserID, apologyMessage)
		return OutcomeHandled, fmt.Errorf("save session for %s: %w", sess.UserID, err)
	}
	entry, _ := e.graph.Screen(e.graph.Entry())
	body := e.renderScreen(entry, sess.Answers)
	if cmd == "help" {
		body = helpMessage + "\n\n" + body
	}
	return OutcomeHandled, e.send(ctx, sess.UserID, body)
}

func (e *Engine) resetToExpired(ctx context.Context, sess *models.Session) (Outcome, error) {
	sess.Reset(ScreenSessionExpired)
	if err := e.deps.Sessions.SaveSession(ctx, sess); err != nil {
		e.send(ctx, sess.UserID, apologyMessage)
		return OutcomeHandled, fmt.Errorf("save session for %s: %w", sess.UserID, err)
	}
	expired, _ := e.graph.Screen(ScreenSessionExpired)
	return OutcomeHandled, e.send(ctx, sess.UserID, e.renderScreen(expired, sess.Answers))
}

// applyResolution writes the resolved value into the session's answer map.
// Numbered choices and dates also record a display label when it differs from
// the stored canonical value, and dates additionally record the ISO form.
func (e *Engine) applyResolution(sess *models.Session, screen *Screen, res *Resolution) {
	if screen.StoreKey != "" && res.StoreValue != "" {
		sess.SetAnswer(screen.StoreKey, res.StoreValue)
		if res.Label != "" && res.Label != res.StoreValue {
			sess.SetAnswer(screen.StoreKey+"_label", res.Label)
		}
		if res.Date != nil {
			sess.SetAnswer(screen.StoreKey+"_iso", res.Date.ISO)
		}
	}
	if screen.Kind == KindNumericIndex && res.Index >= 1 && res.Index <= len(sess.CachedListings) {
		l := sess.CachedListings[res.Index-1]
		sess.SetAnswer(AnswerListingID, l.ListingID)
		sess.SetAnswer(AnswerListingAddress, l.Address)
		sess.CachedListings = nil
	}
}

// tryFreeformSearch is the fallback for unmatched text on the entry screen:
// ask the intent extractor whether the message is itself a search, and if so
// prefill the wizard answers and jump straight to the review screen. Returns
// handled=false when the message is not a usable search.
func (e *Engine) tryFreeformSearch(ctx context.Context, sess *models.Session, text string) (Outcome, bool) {
	if e.deps.GenAI == nil {
		return OutcomeHandled, false
	}
	intent, err := e.deps.GenAI.ExtractIntent(ctx, text)
	if err != nil {
		slog.Debug("Freeform intent extraction failed", "error", err, "user_id", sess.UserID)
		return OutcomeHandled, false
	}
	if !intent.IsSearch || strings.TrimSpace(intent.Location) == "" {
		return OutcomeHandled, false
	}

	sess.SetAnswer("location", intent.Location)
	if intent.PropertyType != "" {
		sess.SetAnswer("property_type", intent.PropertyType)
	}
	if intent.Bedrooms > 0 {
		sess.SetAnswer("bedrooms", strconv.Itoa(intent.Bedrooms))
	}
	if intent.Bathrooms > 0 {
		sess.SetAnswer("bathrooms", strconv.Itoa(intent.Bathrooms))
	}
	if intent.MinPrice > 0 || intent.MaxPrice > 0 {
		sess.SetAnswer("price_range", fmt.Sprintf("%d-%d", intent.MinPrice, intent.MaxPrice))
		sess.SetAnswer("price_range_label", budgetLabel(intent.MinPrice, intent.MaxPrice))
	}
	sess.CurrentScreen = ScreenReview
	sess.UpdatedAt = e.now()
	if err := e.deps.Sessions.SaveSession(ctx, sess); err != nil {
		slog.Error("Failed to save prefilled session", "error", err, "user_id", sess.UserID)
		return OutcomeHandled, false
	}
	review, _ := e.graph.Screen(ScreenReview)
	e.send(ctx, sess.UserID, e.renderScreen(review, sess.Answers))
	return OutcomeHandled, true
}

// runSearch executes the listing search from the accumulated answers, caches
// the results for numeric selection, and replies with the formatted results
// followed by the selection screen.
func (e *Engine) runSearch(ctx context.Context, sess *models.Session, searchScreen *Screen) (Outcome, error) {
	e.send(ctx, sess.UserID, searchScreen.RenderPrompt(sess.Answers))

	criteria := buildCriteria(sess.Answers)
	listings, err := e.deps.Listings.SearchListings(ctx, criteria)
	if err != nil {
		slog.Error("Listing search failed", "error", err, "user_id", sess.UserID, "location", criteria.Location)
		sess.CurrentScreen = ScreenReview
		sess.UpdatedAt = e.now()
		if saveErr := e.deps.Sessions.SaveSession(ctx, sess); saveErr != nil {
			slog.Error("Failed to save session after search error", "error", saveErr, "user_id", sess.UserID)
		}
		e.send(ctx, sess.UserID, apologyMessage)
		return OutcomeHandled, fmt.Errorf("listing search for %s: %w", sess.UserID, err)
	}
	if e.deps.Searches != nil {
		if err := e.deps.Searches.SaveSearch(ctx, sess.UserID, criteria); err != nil {
			slog.Warn("Failed to record search history", "error", err, "user_id", sess.UserID)
		}
	}

	if len(listings) == 0 {
		noResults, _ := e.graph.Screen(ScreenNoResults)
		e.send(ctx, sess.UserID, noResults.RenderPrompt(sess.Answers))
		sess.Reset(ScreenLocation)
		if err := e.deps.Sessions.SaveSession(ctx, sess); err != nil {
			return OutcomeHandled, fmt.Errorf("save session for %s: %w", sess.UserID, err)
		}
		location, _ := e.graph.Screen(ScreenLocation)
		return OutcomeHandled, e.send(ctx, sess.UserID, e.renderScreen(location, sess.Answers))
	}

	sess.CachedListings = listings
	sess.SetAnswer(AnswerListingCount, strconv.Itoa(len(listings)))
	sess.CurrentScreen = ScreenSelectListing
	sess.UpdatedAt = e.now()
	if err := e.deps.Sessions.SaveSession(ctx, sess); err != nil {
		e.send(ctx, sess.UserID, apologyMessage)
		return OutcomeHandled, fmt.Errorf("save session for %s: %w", sess.UserID, err)
	}

	e.send(ctx, sess.UserID, e.formatResults(ctx, sess.Answers, listings))
	selectScreen, _ := e.graph.Screen(ScreenSelectListing)
	return OutcomeHandled, e.send(ctx, sess.UserID, e.renderScreen(selectScreen, sess.Answers))
}

// formatResults asks the GenAI formatter for a conversational rendering and
// falls back to the deterministic summary when the call fails. Either way the
// listing numbering matches the cached order.
func (e *Engine) formatResults(ctx context.Context, answers map[string]string, listings []models.Listing) string {
	summary := genai.SummarizeListings(listings)
	if e.deps.GenAI == nil {
		return summary
	}
	formatted, err := e.deps.GenAI.FormatListings(ctx, buildSearchQueryText(answers), listings)
	if err != nil {
		slog.Debug("Listing formatting fell back to summary", "error", err)
		return summary
	}
	return formatted
}

// bookInspection assembles the appointment from the accumulated answers and
// persists it. On success the booking answers are cleared so a later booking
// starts clean.
func (e *Engine) bookInspection(ctx context.Context, sess *models.Session, savedScreen *Screen) (Outcome, error) {
	appt := models.Appointment{
		UserID:    sess.UserID,
		ListingID: sess.Answer(AnswerListingID),
		Address:   sess.Answer(AnswerListingAddress),
		Date:      sess.Answer("appointment_date"),
		DateISO:   sess.Answer("appointment_date_iso"),
		TimeSlot:  sess.Answer("appointment_time"),
		Name:      sess.Answer("contact_name"),
		CreatedAt: e.now(),
		Status:    models.AppointmentStatusPending,
	}
	if e.deps.Appointments == nil {
		e.send(ctx, sess.UserID, apologyMessage)
		return OutcomeHandled, models.ErrStoreNotConfigured
	}
	if err := e.deps.Appointments.SaveAppointment(ctx, appt); err != nil {
		slog.Error("Failed to save appointment", "error", err, "user_id", sess.UserID)
		e.send(ctx, sess.UserID, apologyMessage)
		confirm, _ := e.graph.Screen(ScreenAppointmentConfirm)
		e.send(ctx, sess.UserID, e.renderScreen(confirm, sess.Answers))
		return OutcomeHandled, fmt.Errorf("save appointment for %s: %w", sess.UserID, err)
	}

	for _, key := range []string{
		AnswerListingID, AnswerListingAddress, AnswerListingCount,
		"appointment_date", "appointment_date_iso",
		"appointment_time", "appointment_time_label", "contact_name",
	} {
		delete(sess.Answers, key)
	}
	sess.CurrentScreen = ScreenAppointmentSaved
	sess.UpdatedAt = e.now()
	if err := e.deps.Sessions.SaveSession(ctx, sess); err != nil {
		e.send(ctx, sess.UserID, apologyMessage)
		return OutcomeHandled, fmt.Errorf("save session for %s: %w", sess.UserID, err)
	}
	slog.Info("Inspection booked", "user_id", sess.UserID, "listing_id", appt.ListingID, "date", appt.DateISO, "address", appt.Address)
	return OutcomeHandled, e.send(ctx, sess.UserID, e.renderScreen(savedScreen, sess.Answers))
}

// listAppointments renders the user's saved appointments, newest first.
func (e *Engine) listAppointments(ctx context.Context, sess *models.Session, screen *Screen) (Outcome, error) {
	if e.deps.Appointments == nil {
		e.send(ctx, sess.UserID, apologyMessage)
		return OutcomeHandled, models.ErrStoreNotConfigured
	}
	appts, err := e.deps.Appointments.GetAppointments(ctx, sess.UserID)
	if err != nil {
		slog.Error("Failed to load appointments", "error", err, "user_id", sess.UserID)
		e.send(ctx, sess.UserID, apologyMessage)
		return OutcomeHandled, fmt.Errorf("load appointments for %s: %w", sess.UserID, err)
	}

	sess.CurrentScreen = screen.ID
	sess.UpdatedAt = e.now()
	if err := e.deps.Sessions.SaveSession(ctx, sess); err != nil {
		e.send(ctx, sess.UserID, apologyMessage)
		return OutcomeHandled, fmt.Errorf("save session for %s: %w", sess.UserID, err)
	}
	return OutcomeHandled, e.send(ctx, sess.UserID, renderAppointments(screen, appts))
}

// renderAppointments composes the appointment list under the screen prompt,
// keeping the screen's option footer so "Menu" still works.
func renderAppointments(screen *Screen, appts []models.Appointment) string {
	var sb strings.Builder
	if len(appts) == 0 {
		sb.WriteString("You have no upcoming inspections yet.")
	} else {
		sb.WriteString(screen.RenderPrompt(nil))
		for i, a := range appts {
			sb.WriteString(fmt.Sprintf("\n\n%d. 🏠 %s\n📅 %s at %s\n👤 %s (%s)",
				i+1, a.Address, a.Date, a.TimeSlot, a.Name, a.Status))
		}
	}
	sb.WriteString("\n\nReply with one option:")
	for _, opt := range screen.Options {
		sb.WriteString("\n- " + opt)
	}
	return sb.String()
}

// renderScreen produces the outbound text for a screen. Dynamic-date screens
// get a freshly generated date list appended since they carry no static options.
func (e *Engine) renderScreen(screen *Screen, answers map[string]string) string {
	if screen.Kind == KindDynamicDate {
		dates := NextDates(e.now(), DateOptionCount)
		return screen.RenderPrompt(answers) + "\n\n" + RenderDateOptions(dates)
	}
	return screen.Render(answers)
}

// send delivers one outbound message, logging failures. Delivery failures are
// not retried here; the channel's own retry semantics apply upstream.
func (e *Engine) send(ctx context.Context, to, body string) error {
	if err := e.deps.Sender.SendMessage(ctx, to, body); err != nil {
		slog.Error("Failed to send message", "error", err, "to", to)
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}

// buildCriteria normalizes the wizard answers into search criteria. "4+"
// coerces to its numeric floor, "Any" to unconstrained, and "Other" property
// types drop the type filter entirely.
func buildCriteria(answers map[string]string) models.SearchCriteria {
	c := models.SearchCriteria{
		Location: answers["location"],
		Bedrooms: models.CoerceCount(answers["bedrooms"]),
		Limit:    models.DefaultSearchLimit,
	}
	if b := answers["bathrooms"]; !strings.EqualFold(b, "any") {
		c.Bathrooms = models.CoerceCount(b)
	}
	if t := strings.ToLower(answers["property_type"]); t != "" && t != "other" {
		c.PropertyType = t
	}
	c.MinPrice, c.MaxPrice = models.ParsePriceRange(answers["price_range"])
	return c
}

// buildSearchQueryText reconstructs a natural-language query from the wizard
// answers for the GenAI formatter.
func buildSearchQueryText(answers map[string]string) string {
	beds := answers["bedrooms"]
	propertyType := answers["property_type"]
	if propertyType == "" {
		propertyType = "homes"
	}
	if beds == "" {
		return fmt.Sprintf("Show me %s in %s", strings.ToLower(propertyType), answers["location"])
	}
	return fmt.Sprintf("Show me %s-bedroom %s in %s", beds, strings.ToLower(propertyType), answers["location"])
}

// budgetLabel renders a price range as display text for the review screen.
func budgetLabel(min, max int64) string {
	switch {
	case min > 0 && max > 0:
		return fmt.Sprintf("$%d – $%d", min, max)
	case max > 0:
		return fmt.Sprintf("Under $%d", max)
	case min > 0:
		return fmt.Sprintf("Above $%d", min)
	default:
		return "No budget limit"
	}
}
