package domain

import "time"

// Reaction is an ephemeral emoji event shown over the stage. Entries
// expire in arrival order after a fixed display duration.
type Reaction struct {
	Emoji      string    `json:"emoji"`
	SenderName string    `json:"senderName"`
	ReceivedAt time.Time `json:"-"`
}
