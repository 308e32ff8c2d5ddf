// Package messaging defines the pluggable outbound delivery abstraction
// shared by the WhatsApp Cloud API and Twilio providers.
package messaging

import "context"

// Sender delivers messages to end users over a messaging channel.
type Sender interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Each provider implements its own recipient rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error
}
