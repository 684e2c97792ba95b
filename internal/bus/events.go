package bus

import "time"

// InboundMessage is one user utterance arriving from a channel.
type InboundMessage struct {
	Channel   string
	SenderID  string
	ChatID    string
	Name      string
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
}

// UserKey identifies the profile a message belongs to. The same person on
// two channels gets two profiles.
func (m *InboundMessage) UserKey() string {
	return m.Channel + ":" + m.SenderID
}

// OutboundMessage is a companion reply routed back to the channel it came from.
type OutboundMessage struct {
	Channel  string
	ChatID   string
	Content  string
	ReplyTo  string
	Source   string
	Metadata map[string]any
}
