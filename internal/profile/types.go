package profile

import (
	"time"
)

const (
	// MaxMemories is the retention cap for memories, kept by descending importance.
	MaxMemories = 50
	// MaxSummaries is the retention cap for conversation summaries, oldest evicted first.
	MaxSummaries = 20

	DefaultName               = "Friend"
	DefaultCommunicationStyle = "friendly"
	DefaultMood               = "neutral"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// UserProfile is the durable per-user state.
type UserProfile struct {
	ID                  string                `json:"id"`
	Name                string                `json:"name"`
	Preferences         map[string]any        `json:"preferences"`
	ConversationHistory []ConversationSummary `json:"conversationHistory"`
	Personality         PersonalityState      `json:"personality"`
	Memories            []Memory              `json:"memories"`
	CreatedAt           time.Time             `json:"createdAt"`
	UpdatedAt           time.Time             `json:"updatedAt"`
}

// PersonalityState is what the companion has learned about the user's manner.
type PersonalityState struct {
	Interests          []string `json:"interests"`
	CommunicationStyle string   `json:"communicationStyle"`
	CurrentMood        string   `json:"currentMood"`
}

// PersonalityUpdate is a partial PersonalityState. Nil fields are left untouched.
type PersonalityUpdate struct {
	Interests          []string
	CommunicationStyle *string
	CurrentMood        *string
}

// Memory is a durable fact taken from user input. It is never mutated after creation.
type Memory struct {
	ID                string    `json:"id"`
	Content           string    `json:"content"`
	Importance        float64   `json:"importance"`
	Category          string    `json:"category"`
	Timestamp         time.Time `json:"timestamp"`
	AssociatedContext []string  `json:"associatedContext"`
}

// ConversationSummary is a compressed record of a block of turns.
type ConversationSummary struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Summary     string    `json:"summary"`
	Topics      []string  `json:"topics"`
	Mood        string    `json:"mood"`
	KeyMemories []string  `json:"keyMemories"`
}

// Message is one raw conversation turn.
type Message struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// New builds the default profile for a first-contact user.
func New(id, name string, now time.Time) *UserProfile {
	if name == "" {
		name = DefaultName
	}
	return &UserProfile{
		ID:                  id,
		Name:                name,
		Preferences:         map[string]any{},
		ConversationHistory: []ConversationSummary{},
		Personality: PersonalityState{
			Interests:          []string{},
			CommunicationStyle: DefaultCommunicationStyle,
			CurrentMood:        DefaultMood,
		},
		Memories:  []Memory{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply shallow-merges u into s.
func (s PersonalityState) Apply(u PersonalityUpdate) PersonalityState {
	if u.Interests != nil {
		s.Interests = append([]string(nil), u.Interests...)
	}
	if u.CommunicationStyle != nil {
		s.CommunicationStyle = *u.CommunicationStyle
	}
	if u.CurrentMood != nil {
		s.CurrentMood = *u.CurrentMood
	}
	return s
}

// Clone returns a deep copy so callers can hold a snapshot across mutations.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.Preferences = make(map[string]any, len(p.Preferences))
	for k, v := range p.Preferences {
		out.Preferences[k] = v
	}
	out.Personality.Interests = append([]string{}, p.Personality.Interests...)
	out.Memories = make([]Memory, len(p.Memories))
	for i, m := range p.Memories {
		m.AssociatedContext = append([]string{}, m.AssociatedContext...)
		out.Memories[i] = m
	}
	out.ConversationHistory = make([]ConversationSummary, len(p.ConversationHistory))
	for i, s := range p.ConversationHistory {
		s.Topics = append([]string{}, s.Topics...)
		s.KeyMemories = append([]string{}, s.KeyMemories...)
		out.ConversationHistory[i] = s
	}
	return &out
}
