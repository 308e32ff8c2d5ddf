package flow

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/findhomeng/yard/internal/models"
	"github.com/findhomeng/yard/internal/store"
	"github.com/findhomeng/yard/internal/whatsapp"
)

const testUser = "2348012345678"

type stubGenAI struct {
	intent    *models.SearchIntent
	intentErr error
	formatted string
	formatErr error
}

func (s *stubGenAI) ExtractIntent(ctx context.Context, userText string) (*models.SearchIntent, error) {
	if s.intentErr != nil {
		return &models.SearchIntent{}, s.intentErr
	}
	if s.intent == nil {
		return &models.SearchIntent{}, nil
	}
	return s.intent, nil
}

func (s *stubGenAI) FormatListings(ctx context.Context, userQuery string, listings []models.Listing) (string, error) {
	if s.formatErr != nil {
		return "", s.formatErr
	}
	return s.formatted, nil
}

func newTestEngine(t *testing.T, opts ...func(*Dependencies)) (*Engine, *store.InMemoryStore, *whatsapp.MockClient) {
	t.Helper()
	st := store.NewInMemoryStore()
	st.SeedListings([]models.Listing{
		{ListingID: "lg-1", Address: "12 Adeola Odeku", Location: "Lagos", Price: 90000, Beds: 2, Baths: 1, Sqft: 800, PropertyType: "apartment"},
		{ListingID: "lg-2", Address: "7 Lekki Phase 1", Location: "Lagos", Price: 180000, Beds: 3, Baths: 2, Sqft: 1500, PropertyType: "house"},
		{ListingID: "lg-3", Address: "4 Banana Island Rd", Location: "Lagos", Price: 450000, Beds: 4, Baths: 3, Sqft: 3200, PropertyType: "house"},
	})
	sender := whatsapp.NewMockClient()
	deps := Dependencies{
		Sessions:     st,
		Dedup:        st,
		Listings:     st,
		Searches:     st,
		Appointments: st,
		Sender:       sender,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	engine, err := NewEngine(DefaultGraph(), deps, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return engine, st, sender
}

var msgSeq int

func sendText(t *testing.T, e *Engine, text string) Outcome {
	t.Helper()
	msgSeq++
	outcome, err := e.HandleMessage(context.Background(), models.IncomingMessage{
		ID:   fmt.Sprintf("wamid.%d", msgSeq),
		From: testUser,
		Text: text,
	})
	if err != nil {
		t.Fatalf("HandleMessage(%q) failed: %v", text, err)
	}
	return outcome
}

func lastSent(t *testing.T, sender *whatsapp.MockClient) string {
	t.Helper()
	sent := sender.Sent()
	if len(sent) == 0 {
		t.Fatal("no messages sent")
	}
	return sent[len(sent)-1].Body
}

func TestGreetingOpensSession(t *testing.T) {
	engine, st, sender := newTestEngine(t)

	sendText(t, engine, "Hi")

	sess, _ := st.GetSession(context.Background(), testUser)
	if sess == nil || sess.CurrentScreen != ScreenRecommend {
		t.Fatalf("expected session at entry screen, got %+v", sess)
	}
	if !strings.Contains(lastSent(t, sender), "Find your next home") {
		t.Errorf("expected entry prompt, got %q", lastSent(t, sender))
	}
}

func TestNonGreetingWithoutSessionNudges(t *testing.T) {
	engine, st, sender := newTestEngine(t)

	sendText(t, engine, "what is this")

	if sess, _ := st.GetSession(context.Background(), testUser); sess != nil {
		t.Error("no session should be created for a non-greeting")
	}
	if !strings.Contains(lastSent(t, sender), "Send *hi*") {
		t.Errorf("expected nudge, got %q", lastSent(t, sender))
	}
}

func TestDuplicateMessageIgnored(t *testing.T) {
	engine, _, sender := newTestEngine(t)

	msg := models.IncomingMessage{ID: "wamid.dup", From: testUser, Text: "hi"}
	if outcome, err := engine.HandleMessage(context.Background(), msg); err != nil || outcome != OutcomeHandled {
		t.Fatalf("first delivery: outcome=%v err=%v", outcome, err)
	}
	before := len(sender.Sent())

	outcome, err := engine.HandleMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Errorf("expected OutcomeDuplicate, got %v", outcome)
	}
	if len(sender.Sent()) != before {
		t.Error("duplicate delivery must not send messages")
	}
}

func TestInvalidInputRepromptsWithoutAdvancing(t *testing.T) {
	engine, st, sender := newTestEngine(t)
	sendText(t, engine, "hi")
	sendText(t, engine, "Start")

	sendText(t, engine, "Mars")

	sess, _ := st.GetSession(context.Background(), testUser)
	if sess.CurrentScreen != ScreenLocation {
		t.Errorf("screen should not advance on invalid input, got %s", sess.CurrentScreen)
	}
	body := lastSent(t, sender)
	if !strings.Contains(body, "one of the listed options") || !strings.Contains(body, "Pick your preferred location") {
		t.Errorf("expected hint plus re-rendered screen, got %q", body)
	}
}

func TestFullSearchAndBookingFlow(t *testing.T) {
	engine, st, sender := newTestEngine(t)
	ctx := context.Background()

	sendText(t, engine, "hi")
	sendText(t, engine, "Start")
	sendText(t, engine, "Lagos")
	sendText(t, engine, "House")
	sendText(t, engine, "3")
	sendText(t, engine, "2")
	sendText(t, engine, "2") // $100k – $250k

	body := lastSent(t, sender)
	if !strings.Contains(body, "Location: Lagos") || !strings.Contains(body, "Budget: $100k – $250k") {
		t.Fatalf("review should show the label, got %q", body)
	}

	sendText(t, engine, "Submit")

	sess, _ := st.GetSession(ctx, testUser)
	if sess.CurrentScreen != ScreenSelectListing {
		t.Fatalf("expected SELECT_LISTING after search, got %s", sess.CurrentScreen)
	}
	if len(sess.CachedListings) != 1 || sess.CachedListings[0].ListingID != "lg-2" {
		t.Fatalf("expected lg-2 cached, got %+v", sess.CachedListings)
	}
	if st.SearchCount() != 1 {
		t.Errorf("expected 1 recorded search, got %d", st.SearchCount())
	}

	sendText(t, engine, "1")
	sess, _ = st.GetSession(ctx, testUser)
	if sess.CurrentScreen != ScreenBookPrompt {
		t.Fatalf("expected BOOK_PROMPT, got %s", sess.CurrentScreen)
	}
	if sess.Answer(AnswerListingID) != "lg-2" || len(sess.CachedListings) != 0 {
		t.Errorf("selection should pin the listing and drop the cache: %+v", sess)
	}

	sendText(t, engine, "Yes")
	if !strings.Contains(lastSent(t, sender), "Pick a date") {
		t.Fatalf("expected date prompt, got %q", lastSent(t, sender))
	}

	sendText(t, engine, "1") // Sun, 30 Aug
	sendText(t, engine, "2") // 12:00-14:00
	sendText(t, engine, "Ada Obi")

	body = lastSent(t, sender)
	if !strings.Contains(body, "Sun, 30 Aug") || !strings.Contains(body, "Midday (12–2 PM)") || !strings.Contains(body, "Ada Obi") {
		t.Fatalf("confirm screen missing details: %q", body)
	}

	sendText(t, engine, "Confirm")

	appts, _ := st.GetAppointments(ctx, testUser)
	if len(appts) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(appts))
	}
	a := appts[0]
	if a.ListingID != "lg-2" || a.DateISO != "2026-08-30" || a.TimeSlot != "12:00-14:00" || a.Name != "Ada Obi" {
		t.Errorf("unexpected appointment: %+v", a)
	}
	if a.Status != models.AppointmentStatusPending {
		t.Errorf("expected pending status, got %s", a.Status)
	}

	sess, _ = st.GetSession(ctx, testUser)
	if sess.CurrentScreen != ScreenAppointmentSaved {
		t.Errorf("expected APPOINTMENT_SAVED, got %s", sess.CurrentScreen)
	}
	if sess.Answer("contact_name") != "" || sess.Answer(AnswerListingID) != "" {
		t.Error("booking answers should be cleared after save")
	}
}

func TestNoResultsResetsToLocation(t *testing.T) {
	engine, st, sender := newTestEngine(t)

	sendText(t, engine, "hi")
	sendText(t, engine, "Start")
	sendText(t, engine, "Paris") // nothing seeded in Paris
	sendText(t, engine, "House")
	sendText(t, engine, "3")
	sendText(t, engine, "2")
	sendText(t, engine, "1")
	sendText(t, engine, "Submit")

	sess, _ := st.GetSession(context.Background(), testUser)
	if sess.CurrentScreen != ScreenLocation {
		t.Errorf("expected reset to LOCATION, got %s", sess.CurrentScreen)
	}
	if len(sess.Answers) != 0 {
		t.Errorf("expected answers cleared, got %+v", sess.Answers)
	}

	sent := sender.Sent()
	var sawNoResults bool
	for _, m := range sent {
		if strings.Contains(m.Body, "No homes matched") {
			sawNoResults = true
		}
	}
	if !sawNoResults {
		t.Error("expected a no-results message")
	}
	if !strings.Contains(sent[len(sent)-1].Body, "Pick your preferred location") {
		t.Errorf("expected location screen last, got %q", sent[len(sent)-1].Body)
	}
}

func TestSelectionWithLostCacheResetsToExpired(t *testing.T) {
	engine, st, _ := newTestEngine(t)
	ctx := context.Background()

	// Simulate a session stranded on the selection screen with no cache.
	sess := models.NewSession(testUser, ScreenSelectListing)
	if err := st.SaveSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	sendText(t, engine, "1")

	sess, _ = st.GetSession(ctx, testUser)
	if sess.CurrentScreen != ScreenSessionExpired {
		t.Errorf("expected SESSION_EXPIRED, got %s", sess.CurrentScreen)
	}
}

func TestGlobalCommandsResetAnywhere(t *testing.T) {
	engine, st, sender := newTestEngine(t)

	sendText(t, engine, "hi")
	sendText(t, engine, "Start")
	sendText(t, engine, "Lagos")
	sendText(t, engine, "MENU")

	sess, _ := st.GetSession(context.Background(), testUser)
	if sess.CurrentScreen != ScreenRecommend {
		t.Errorf("expected reset to entry, got %s", sess.CurrentScreen)
	}
	if len(sess.Answers) != 0 {
		t.Errorf("expected answers cleared, got %+v", sess.Answers)
	}

	sendText(t, engine, "help")
	if !strings.Contains(lastSent(t, sender), "Type *menu*") {
		t.Errorf("expected help note, got %q", lastSent(t, sender))
	}
}

func TestUnknownScreenResetsToExpired(t *testing.T) {
	engine, st, _ := newTestEngine(t)
	ctx := context.Background()

	sess := models.NewSession(testUser, "LEGACY_SCREEN")
	if err := st.SaveSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	sendText(t, engine, "anything")

	sess, _ = st.GetSession(ctx, testUser)
	if sess.CurrentScreen != ScreenSessionExpired {
		t.Errorf("expected SESSION_EXPIRED, got %s", sess.CurrentScreen)
	}
}

func TestEndThanksDeletesSession(t *testing.T) {
	engine, st, _ := newTestEngine(t)
	ctx := context.Background()

	sess := models.NewSession(testUser, ScreenBookPrompt)
	sess.SetAnswer(AnswerListingAddress, "7 Lekki Phase 1")
	if err := st.SaveSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	sendText(t, engine, "No")

	if got, _ := st.GetSession(ctx, testUser); got != nil {
		t.Error("expected session deleted after END_THANKS")
	}
}

func TestMyAppointmentsListing(t *testing.T) {
	engine, st, sender := newTestEngine(t)
	ctx := context.Background()

	st.SaveAppointment(ctx, models.Appointment{
		UserID: testUser, ListingID: "lg-2", Address: "7 Lekki Phase 1",
		Date: "Sun, 30 Aug", DateISO: "2026-08-30", TimeSlot: "09:00-11:00",
		Name: "Ada", CreatedAt: time.Now(), Status: models.AppointmentStatusPending,
	})

	sendText(t, engine, "hi")
	sendText(t, engine, "My appointments")

	body := lastSent(t, sender)
	if !strings.Contains(body, "7 Lekki Phase 1") || !strings.Contains(body, "Sun, 30 Aug") {
		t.Errorf("expected appointment details, got %q", body)
	}
	if !strings.Contains(body, "- Menu") {
		t.Errorf("expected menu option footer, got %q", body)
	}

	sess, _ := st.GetSession(ctx, testUser)
	if sess.CurrentScreen != ScreenMyAppointments {
		t.Errorf("expected MY_APPOINTMENTS, got %s", sess.CurrentScreen)
	}
}

func TestMyAppointmentsEmpty(t *testing.T) {
	engine, _, sender := newTestEngine(t)

	sendText(t, engine, "hi")
	sendText(t, engine, "My appointments")

	if !strings.Contains(lastSent(t, sender), "no upcoming inspections") {
		t.Errorf("expected empty-state message, got %q", lastSent(t, sender))
	}
}

func TestFreeformSearchJumpsToReview(t *testing.T) {
	stub := &stubGenAI{intent: &models.SearchIntent{
		IsSearch: true, Location: "Lagos", Bedrooms: 3, PropertyType: "house",
		MinPrice: 100000, MaxPrice: 250000,
	}}
	engine, st, sender := newTestEngine(t, func(d *Dependencies) { d.GenAI = stub })

	sendText(t, engine, "hi")
	sendText(t, engine, "3 bedroom house in Lagos under 250k")

	sess, _ := st.GetSession(context.Background(), testUser)
	if sess.CurrentScreen != ScreenReview {
		t.Fatalf("expected jump to REVIEW, got %s", sess.CurrentScreen)
	}
	if sess.Answer("location") != "Lagos" || sess.Answer("bedrooms") != "3" || sess.Answer("price_range") != "100000-250000" {
		t.Errorf("answers not prefilled: %+v", sess.Answers)
	}
	if !strings.Contains(lastSent(t, sender), "review your search details") {
		t.Errorf("expected review prompt, got %q", lastSent(t, sender))
	}
}

func TestFreeformNonSearchFallsBackToHint(t *testing.T) {
	stub := &stubGenAI{intent: &models.SearchIntent{IsSearch: false}}
	engine, st, sender := newTestEngine(t, func(d *Dependencies) { d.GenAI = stub })

	sendText(t, engine, "hi")
	sendText(t, engine, "tell me a joke")

	sess, _ := st.GetSession(context.Background(), testUser)
	if sess.CurrentScreen != ScreenRecommend {
		t.Errorf("expected screen unchanged, got %s", sess.CurrentScreen)
	}
	if !strings.Contains(lastSent(t, sender), "one of the listed options") {
		t.Errorf("expected option hint, got %q", lastSent(t, sender))
	}
}

func TestFormattedResultsPreferGenAI(t *testing.T) {
	stub := &stubGenAI{formatted: "Here are some lovely homes for you!"}
	engine, _, sender := newTestEngine(t, func(d *Dependencies) { d.GenAI = stub })

	sendText(t, engine, "hi")
	sendText(t, engine, "Start")
	sendText(t, engine, "Lagos")
	sendText(t, engine, "House")
	sendText(t, engine, "3")
	sendText(t, engine, "2")
	sendText(t, engine, "2")
	sendText(t, engine, "Submit")

	var sawFormatted bool
	for _, m := range sender.Sent() {
		if strings.Contains(m.Body, "lovely homes") {
			sawFormatted = true
		}
	}
	if !sawFormatted {
		t.Error("expected the GenAI formatted reply to be sent")
	}
}

func TestBuildCriteria(t *testing.T) {
	answers := map[string]string{
		"location":      "Lagos",
		"property_type": "House",
		"bedrooms":      "4+",
		"bathrooms":     "Any",
		"price_range":   "500000-0",
	}
	c := buildCriteria(answers)
	if c.Location != "Lagos" || c.PropertyType != "house" {
		t.Errorf("unexpected criteria: %+v", c)
	}
	if c.Bedrooms != 4 || c.Bathrooms != 0 {
		t.Errorf("count coercion wrong: %+v", c)
	}
	if c.MinPrice != 500000 || c.MaxPrice != 0 {
		t.Errorf("price range wrong: %+v", c)
	}

	answers["property_type"] = "Other"
	if c := buildCriteria(answers); c.PropertyType != "" {
		t.Errorf("'Other' should drop the type filter, got %q", c.PropertyType)
	}
}
