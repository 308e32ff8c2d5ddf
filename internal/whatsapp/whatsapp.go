// Package whatsapp implements the WhatsApp Cloud API integration for Yard.
//
// It provides an outbound text-message client and the inbound webhook payload
// parsing. The client talks to the Graph API messages endpoint for one phone
// number id.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

// Constants for WhatsApp Cloud API configuration.
const (
	// DefaultBaseURL is the Graph API root.
	DefaultBaseURL = "https://graph.facebook.com"
	// DefaultAPIVersion is the Graph API version used when none is configured.
	DefaultAPIVersion = "v20.0"
	// DefaultRequestTimeout bounds one send call.
	DefaultRequestTimeout = 15 * time.Second
)

// phoneDigitsRe matches a bare international number without the leading plus.
var phoneDigitsRe = regexp.MustCompile(`^[0-9]{7,15}$`)

// Opts holds configuration options for the WhatsApp Cloud API client.
type Opts struct {
	PhoneID    string // sender phone number id
	Token      string // Graph API bearer token
	APIVersion string
	BaseURL    string
	HTTPClient *http.Client
}

// Option defines a configuration option for the WhatsApp Cloud API client.
type Option func(*Opts)

// WithPhoneID sets the sender phone number id.
func WithPhoneID(id string) Option {
	return func(o *Opts) { o.PhoneID = id }
}

// WithToken sets the Graph API bearer token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithAPIVersion overrides the Graph API version.
func WithAPIVersion(v string) Option {
	return func(o *Opts) { o.APIVersion = v }
}

// WithBaseURL overrides the Graph API root. Used by tests.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client sends text messages through the WhatsApp Cloud API.
type Client struct {
	phoneID    string
	token      string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a new Cloud API client, applying any provided options.
// Falls back to the WHATSAPP_PHONE_ID and WHATSAPP_TOKEN environment
// variables when the options are not set.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.PhoneID == "" {
		cfg.PhoneID = os.Getenv("WHATSAPP_PHONE_ID")
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("WHATSAPP_TOKEN")
	}
	if cfg.PhoneID == "" || cfg.Token == "" {
		return nil, fmt.Errorf("WhatsApp phone id and token must be set")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	slog.Debug("WhatsApp client config loaded", "phone_id", cfg.PhoneID, "api_version", cfg.APIVersion)
	return &Client{
		phoneID:    cfg.PhoneID,
		token:      cfg.Token,
		endpoint:   fmt.Sprintf("%s/%s/%s/messages", strings.TrimSuffix(cfg.BaseURL, "/"), cfg.APIVersion, cfg.PhoneID),
		httpClient: cfg.HTTPClient,
	}, nil
}

// ValidateAndCanonicalizeRecipient validates a WhatsApp recipient number. The
// Cloud API expects international digits without a plus sign.
func (c *Client) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(recipient), "+")
	if !phoneDigitsRe.MatchString(trimmed) {
		return "", fmt.Errorf("invalid WhatsApp recipient %q", recipient)
	}
	return trimmed, nil
}

// SendMessage sends a text message to the given recipient.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("WhatsApp send request failed", "error", err, "to", to)
		return fmt.Errorf("failed to send WhatsApp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("WhatsApp send rejected", "status", resp.StatusCode, "to", to, "body", string(detail))
		return fmt.Errorf("WhatsApp send returned status %d", resp.StatusCode)
	}
	slog.Debug("WhatsApp message sent", "to", to, "length", len(body))
	return nil
}
