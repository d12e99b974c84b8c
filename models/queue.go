package models

// GlobalRecipient is the reserved queue key for broadcast items that are not
// addressed to a particular user.
const GlobalRecipient = "global"

// QueuedItem is one buffered update notification awaiting pull-based
// delivery. Items are created on enqueue or broadcast and destroyed by the
// TTL sweep or an explicit clear.
type QueuedItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Recipient string `json:"recipient"`
}
