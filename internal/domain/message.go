// Package domain contains core domain types for Málaga Quest.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies who authored a chat message.
type Role string

const (
	// RoleUser marks a turn written by the player group.
	RoleUser Role = "user"
	// RoleAssistant marks a turn written by the Puzzle Master.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single transcript entry.
// Timestamps are kept at millisecond precision so a stored transcript
// decodes back to an identical value.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// NewMessage creates a message stamped with at, truncated to milliseconds.
func NewMessage(role Role, content string, at time.Time) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.UnixMilli(at.UnixMilli()).UTC(),
	}
}

type storedMessage struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// MarshalJSON encodes the timestamp as Unix milliseconds.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(storedMessage{
		Role:      m.Role,
		Content:   m.Content,
		Timestamp: m.Timestamp.UnixMilli(),
	})
}

// UnmarshalJSON decodes a message stored with a Unix millisecond timestamp.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw storedMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Role.Valid() {
		return fmt.Errorf("unknown message role %q", raw.Role)
	}
	m.Role = raw.Role
	m.Content = raw.Content
	m.Timestamp = time.UnixMilli(raw.Timestamp).UTC()
	return nil
}
