// Package genai provides GenAI-enhanced operations for Yard using the OpenAI API.
//
// It covers the two collaborator surfaces the dialog engine needs: extracting
// structured search intent from freeform text, and turning a listing set into
// a friendly WhatsApp reply. Both degrade gracefully: extraction failures
// report "not a search", and formatting failures fall back to a deterministic
// numbered summary.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/findhomeng/yard/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const intentSystemPrompt = `You are an intent extraction engine for a real estate WhatsApp bot.

Extract structured search intent from the user's message.
Return ONLY valid JSON. Do not add explanations.

JSON format:
{
  "is_search": boolean,
  "location": string | null,
  "bedrooms": number | null,
  "bathrooms": number | null,
  "max_price": number | null,
  "min_price": number | null,
  "property_type": string | null,
  "features": string[],
  "limit": number | null
}`

const formatSystemPrompt = "You are Yard, a friendly WhatsApp real estate assistant. Format responses to be concise and mobile-friendly. Keep the listing numbering exactly as given."

// ClientInterface defines the GenAI operations the dialog engine depends on.
type ClientInterface interface {
	// ExtractIntent extracts structured search intent from freeform text.
	ExtractIntent(ctx context.Context, userText string) (*models.SearchIntent, error)

	// FormatListings produces a conversational reply presenting the listings.
	FormatListings(ctx context.Context, userQuery string, listings []models.Listing) (string, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the API base URL (e.g. an OpenAI-compatible gateway).
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client openai.Client
	model  string
}

var _ ClientInterface = (*Client)(nil)

// NewClient initializes a new GenAI client. Falls back to the OPENAI_API_KEY
// environment variable when no key option is provided.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	slog.Debug("GenAI client config loaded", "model", cfg.Model, "base_url_set", cfg.BaseURL != "")
	return &Client{client: openai.NewClient(reqOpts...), model: cfg.Model}, nil
}

// ExtractIntent extracts structured search intent from a freeform message.
// Extraction problems degrade to an "is_search: false" intent with the error
// returned for logging, so callers can always fall back to the wizard.
func (c *Client) ExtractIntent(ctx context.Context, userText string) (*models.SearchIntent, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(intentSystemPrompt),
			openai.UserMessage(userText),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return &models.SearchIntent{}, fmt.Errorf("intent extraction failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &models.SearchIntent{}, fmt.Errorf("intent extraction returned no choices")
	}

	var intent models.SearchIntent
	raw := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		slog.Debug("GenAI intent response was not valid JSON", "error", err)
		return &models.SearchIntent{}, fmt.Errorf("intent extraction returned invalid JSON: %w", err)
	}
	return &intent, nil
}

// FormatListings produces a conversational reply presenting the listings.
// Returns an error when the model call fails; callers should fall back to
// SummarizeListings.
func (c *Client) FormatListings(ctx context.Context, userQuery string, listings []models.Listing) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(formatSystemPrompt),
	}
	if summary := SummarizeListings(listings); summary != "" {
		messages = append(messages, openai.SystemMessage("Listings:\n"+summary))
	}
	messages = append(messages, openai.UserMessage(userQuery))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("listing formatting failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("listing formatting returned no content")
	}
	return resp.Choices[0].Message.Content, nil
}

// SummarizeListings renders a deterministic numbered listing summary. The
// numbering matches the session's cached listing order, which numeric
// selection depends on.
func SummarizeListings(listings []models.Listing) string {
	var sb strings.Builder
	for i, l := range listings {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("%d. %s, %s\n💰 $%s\n🛏️ %d beds | 🚿 %d baths\n📏 %d sqft",
			i+1, l.Address, l.Location, formatPrice(l.Price), l.Beds, l.Baths, l.Sqft))
		if l.PropertyType != "" {
			sb.WriteString("\n🏠 " + l.PropertyType)
		}
		if l.Image != "" {
			sb.WriteString("\n🖼️ " + l.Image)
		}
	}
	return sb.String()
}

// formatPrice renders 1250000 as "1,250,000".
func formatPrice(p int64) string {
	s := fmt.Sprintf("%d", p)
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}

// stripCodeFence removes a surrounding markdown code fence, which some models
// add despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
