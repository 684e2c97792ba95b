package memory

import (
	"strings"

	"github.com/stellarlinkco/aria/internal/profile"
)

const (
	MoodPositive = "positive"
	MoodNegative = "negative"
	MoodNeutral  = "neutral"

	// MaxKeyMemories caps the disclosures kept per summary.
	MaxKeyMemories = 3
	// SummaryTopics is how many topics the summary sentence names.
	SummaryTopics = 3
)

// ConversationClassifier derives the descriptive fields of a summary.
type ConversationClassifier interface {
	Topics(msgs []profile.Message) []string
	Mood(msgs []profile.Message) string
	KeyMemories(msgs []profile.Message) []string
}

var (
	defaultTopics = []string{
		"work", "family", "friends", "hobbies", "music", "movies", "books",
		"travel", "food", "sports", "technology", "art", "philosophy",
		"relationships", "career", "education", "health", "fitness",
	}
	defaultPositive = []string{"happy", "great", "awesome", "excited", "good", "amazing", "wonderful"}
	defaultNegative = []string{"sad", "bad", "terrible", "angry", "frustrated", "upset", "awful"}
	defaultMarkers  = []string{
		"my name is", "i am", "i work", "i live", "i like", "i love",
		"i hate", "my favorite", "i have", "i do", "i study", "i went to",
	}
)

// KeywordClassifier matches fixed vocabularies by substring.
type KeywordClassifier struct {
	TopicVocabulary []string
	PositiveWords   []string
	NegativeWords   []string
	PersonalMarkers []string
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		TopicVocabulary: defaultTopics,
		PositiveWords:   defaultPositive,
		NegativeWords:   defaultNegative,
		PersonalMarkers: defaultMarkers,
	}
}

// Topics returns vocabulary entries present anywhere in the messages, in
// vocabulary order.
func (c *KeywordClassifier) Topics(msgs []profile.Message) []string {
	text := joinLower(msgs, "")
	topics := []string{}
	for _, t := range c.TopicVocabulary {
		if strings.Contains(text, t) {
			topics = append(topics, t)
		}
	}
	return topics
}

// Mood compares how many positive and negative words appear in the user's
// messages. Each word counts once.
func (c *KeywordClassifier) Mood(msgs []profile.Message) string {
	text := joinLower(msgs, profile.RoleUser)
	pos := countPresent(text, c.PositiveWords)
	neg := countPresent(text, c.NegativeWords)
	switch {
	case pos > neg:
		return MoodPositive
	case neg > pos:
		return MoodNegative
	default:
		return MoodNeutral
	}
}

// KeyMemories returns up to MaxKeyMemories user messages that disclose
// something personal, in order.
func (c *KeywordClassifier) KeyMemories(msgs []profile.Message) []string {
	out := []string{}
	for _, m := range msgs {
		if m.Role != profile.RoleUser {
			continue
		}
		if !c.IsDisclosure(m.Content) {
			continue
		}
		out = append(out, m.Content)
		if len(out) == MaxKeyMemories {
			break
		}
	}
	return out
}

// IsDisclosure reports whether text contains a personal-information marker.
func (c *KeywordClassifier) IsDisclosure(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range c.PersonalMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Summarize renders the one-line summary text.
func Summarize(topics []string, mood string) string {
	if len(topics) > SummaryTopics {
		topics = topics[:SummaryTopics]
	}
	subject := strings.Join(topics, ", ")
	if subject == "" {
		subject = "general topics"
	}
	return "Conversation about " + subject + " with " + mood + " mood"
}

// joinLower concatenates message contents, optionally only for one role.
func joinLower(msgs []profile.Message, role string) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if role != "" && m.Role != role {
			continue
		}
		parts = append(parts, m.Content)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func countPresent(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
