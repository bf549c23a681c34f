package models

import "strings"

// TombstoneText is the fixed body substituted for a deleted message.
// Reactions and the reply reference survive deletion; text and image do not.
const TombstoneText = "This message was deleted"

// Reaction is one user's emoji on a message. A user holds at most one
// reaction per message; setting the same emoji again removes it and a
// different emoji replaces it.
type Reaction struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// ReplySummary is the inlined projection of a reply target: enough for a
// client to render the quoted snippet without a second lookup. Text carries
// the tombstone when the target was deleted.
type ReplySummary struct {
	ID       string `json:"id"`
	SenderID string `json:"senderId"`
	Text     string `json:"text,omitempty"`
	Image    string `json:"image,omitempty"`
}

// Message is one direct message between two users. IDs are server-assigned
// and creation-ordered; CreatedTS is UTC nanoseconds and immutable. Seen
// and Deleted are monotonic false-to-true.
type Message struct {
	ID         string        `json:"id"`
	SenderID   string        `json:"senderId"`
	ReceiverID string        `json:"receiverId"`
	Text       string        `json:"text,omitempty"`
	Image      string        `json:"image,omitempty"`
	CreatedTS  int64         `json:"createdAt"`
	Seen       bool          `json:"seen"`
	Deleted    bool          `json:"deleted,omitempty"`
	ReplyTo    string        `json:"replyTo,omitempty"`
	Reply      *ReplySummary `json:"reply,omitempty"`
	Reactions  []Reaction    `json:"reactions,omitempty"`
}

// PeerSummary is one row of the sidebar view: a user the caller shares a
// conversation with, plus how many of their messages remain unseen.
type PeerSummary struct {
	UserID string `json:"userId"`
	Unseen int    `json:"unseen"`
}

// PairKey returns the canonical conversation key for two users. Both
// directions of a one-to-one conversation share a key, so a single
// ascending range scan yields the interleaved history.
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}
