package validation

import (
	"strings"
	"unicode/utf8"

	"chatrelay/pkg/errs"
)

const (
	// MaxTextLen caps message bodies.
	MaxTextLen = 10000
	// MaxEmojiLen caps a reaction payload (grapheme clusters can be long).
	MaxEmojiLen = 32
	// MaxImageLen caps an inline image payload (base64 data URL) at ~4 MiB,
	// matching the upstream body limit.
	MaxImageLen = 4 << 20
)

// SendPayload is the client-supplied portion of a send request.
type SendPayload struct {
	Text    string `json:"text,omitempty"`
	Image   string `json:"image,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// ValidateSend checks a send request before any upload or persistence
// happens. At least one of text/image must be present; sender and receiver
// must be distinct, already-canonical identities.
func ValidateSend(senderID, receiverID string, p SendPayload) error {
	if senderID == "" {
		return errs.Validationf("sender required")
	}
	if receiverID == "" {
		return errs.Validationf("receiver required")
	}
	if senderID == receiverID {
		return errs.Validationf("cannot send a message to yourself")
	}
	if strings.TrimSpace(p.Text) == "" && p.Image == "" {
		return errs.Validationf("message requires text or image")
	}
	if utf8.RuneCountInString(p.Text) > MaxTextLen {
		return errs.Validationf("text exceeds %d characters", MaxTextLen)
	}
	if len(p.Image) > MaxImageLen {
		return errs.Validationf("image payload too large")
	}
	return nil
}

// ValidateEmoji checks a reaction payload.
func ValidateEmoji(emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return errs.Validationf("emoji required")
	}
	if len(emoji) > MaxEmojiLen {
		return errs.Validationf("emoji too long")
	}
	return nil
}
