package domain

// ChatMessage is one entry of the append-only session log, ordered by
// arrival. System notices share the log with user messages and are only
// distinguished visually; the log is never reordered or deduplicated.
type ChatMessage struct {
	SenderName     string `json:"senderName"`
	Body           string `json:"body"`
	IsSystemNotice bool   `json:"isSystemNotice"`
}

// SystemNotice builds a sender-less log entry such as "session ended".
func SystemNotice(body string) ChatMessage {
	return ChatMessage{Body: body, IsSystemNotice: true}
}
