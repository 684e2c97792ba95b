package engine

import (
	"strings"

	"github.com/stellarlinkco/aria/internal/persona"
	"github.com/stellarlinkco/aria/internal/profile"
	"github.com/stellarlinkco/aria/internal/tone"
)

// RecentTurns is how many prior transcript messages ride along with a turn.
const RecentTurns = 5

// ContextBundle is everything reply generation needs for one turn. Profile is
// the snapshot taken before the turn mutated anything.
type ContextBundle struct {
	Utterance   string               `json:"utterance"`
	Profile     *profile.UserProfile `json:"profile,omitempty"`
	Memories    []profile.Memory     `json:"memories"`
	Summaries   []string             `json:"summaries"`
	Tone        tone.Signal          `json:"tone"`
	RecentTurns []profile.Message    `json:"recentTurns"`
	Guidance    string               `json:"guidance"`
}

// Assemble builds the bundle. recent is trimmed to its last RecentTurns entries.
func Assemble(utterance string, p *profile.UserProfile, memories []profile.Memory, summaries []string, signal tone.Signal, recent []profile.Message) ContextBundle {
	if len(recent) > RecentTurns {
		recent = recent[len(recent)-RecentTurns:]
	}
	return ContextBundle{
		Utterance:   utterance,
		Profile:     p,
		Memories:    append([]profile.Memory{}, memories...),
		Summaries:   append([]string{}, summaries...),
		Tone:        signal,
		RecentTurns: append([]profile.Message{}, recent...),
		Guidance:    tone.ResponseGuidance(signal),
	}
}

// ComposePrompt renders the bundle into the single prompt sent to a backend.
func ComposePrompt(p persona.Persona, b ContextBundle, utterance string) string {
	var personality *profile.PersonalityState
	if b.Profile != nil {
		personality = &b.Profile.Personality
	}

	var sb strings.Builder
	sb.WriteString(persona.SystemPrompt(p, personality, b.Summaries))

	if len(b.Memories) > 0 {
		sb.WriteString("\n\nRelevant memories about this user:")
		for _, m := range b.Memories {
			sb.WriteString("\n- ")
			sb.WriteString(m.Content)
		}
	}
	if len(b.RecentTurns) > 0 {
		sb.WriteString("\n\nRecent conversation:")
		for _, m := range b.RecentTurns {
			sb.WriteString("\n")
			sb.WriteString(m.Role)
			sb.WriteString(": ")
			sb.WriteString(m.Content)
		}
	}
	if b.Guidance != "" {
		sb.WriteString("\n\nResponse tone guidance: ")
		sb.WriteString(b.Guidance)
	}
	sb.WriteString("\n\nUser: ")
	sb.WriteString(utterance)
	sb.WriteString("\n\n")
	sb.WriteString(p.Name)
	sb.WriteString(":")
	return sb.String()
}
