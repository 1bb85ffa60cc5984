package domain

import "time"

// Notification is a fire-and-forget message for an operator.
type Notification struct {
	Kind     string            `json:"kind"`
	UserID   string            `json:"user_id"`
	Severity string            `json:"severity"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	At       time.Time         `json:"at"`
}
