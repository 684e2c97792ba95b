// Package tone classifies the emotional and stylistic tone of an utterance
// with ordered keyword tables. Classification is deterministic and stateless.
package tone

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	EmotionJoy      = "joy"
	EmotionSadness  = "sadness"
	EmotionAnger    = "anger"
	EmotionFear     = "fear"
	EmotionSurprise = "surprise"
	EmotionDisgust  = "disgust"
	Neutral         = "neutral"
)

type Energy string

const (
	EnergyLow    Energy = "low"
	EnergyMedium Energy = "medium"
	EnergyHigh   Energy = "high"
)

type Formality string

const (
	FormalityCasual  Formality = "casual"
	FormalityNeutral Formality = "neutral"
	FormalityFormal  Formality = "formal"
)

const (
	SecondaryExcitedCurious = "excited-curious"
	SecondaryThoughtful     = "thoughtful"
)

// DefaultConfidence is reported for every classification. It is a fixed
// placeholder rather than a computed score.
const DefaultConfidence = 0.8

// Signal is the per-utterance tone classification. It is not persisted.
type Signal struct {
	Primary    string    `json:"primary"`
	Secondary  string    `json:"secondary,omitempty"`
	Emotion    string    `json:"emotion"`
	Energy     Energy    `json:"energy"`
	Formality  Formality `json:"formality"`
	Guidance   string    `json:"guidance"`
	Confidence float64   `json:"confidence"`
}

// NeutralSignal is the classification used for degenerate input.
func NeutralSignal() Signal {
	s := Signal{
		Primary:    Neutral,
		Emotion:    Neutral,
		Energy:     EnergyLow,
		Formality:  FormalityNeutral,
		Confidence: DefaultConfidence,
	}
	s.Guidance = ResponseGuidance(s)
	return s
}

// Classifier holds the keyword tables used for classification.
type Classifier struct {
	emotions  Table
	tones     Table
	energetic []string
	casual    []string
	formal    []string
}

// NewClassifier returns a classifier with the built-in English tables.
func NewClassifier() *Classifier {
	return &Classifier{
		emotions:  defaultEmotions,
		tones:     defaultTones,
		energetic: defaultEnergetic,
		casual:    defaultCasual,
		formal:    defaultFormal,
	}
}

// Classify returns the tone signal for text.
func (c *Classifier) Classify(text string) Signal {
	lower := strings.ToLower(text)
	emotion := c.DetectEmotion(lower)
	s := Signal{
		Primary:    c.DetectPrimary(lower, emotion),
		Secondary:  DetectSecondary(lower),
		Emotion:    emotion,
		Energy:     c.DetectEnergy(text),
		Formality:  c.DetectFormality(lower),
		Confidence: DefaultConfidence,
	}
	s.Guidance = ResponseGuidance(s)
	return s
}

// DetectEmotion expects lower-cased text.
func (c *Classifier) DetectEmotion(lower string) string {
	if label, ok := c.emotions.Match(lower); ok {
		return label
	}
	return Neutral
}

// EnergyScore is 2 per '!', plus 10 times the uppercase ratio, plus one per
// energetic keyword present.
func (c *Classifier) EnergyScore(text string) float64 {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	caps := 0
	for _, r := range text {
		if r >= 'A' && r <= 'Z' {
			caps++
		}
	}
	lower := strings.ToLower(text)
	return float64(strings.Count(text, "!"))*2 +
		float64(caps)/float64(n)*10 +
		float64(countPresent(lower, c.energetic))
}

// DetectEnergy works on the raw text since case matters for the score.
func (c *Classifier) DetectEnergy(text string) Energy {
	score := c.EnergyScore(text)
	switch {
	case score > 3:
		return EnergyHigh
	case score > 1:
		return EnergyMedium
	default:
		return EnergyLow
	}
}

// DetectFormality expects lower-cased text.
func (c *Classifier) DetectFormality(lower string) Formality {
	casual := countPresent(lower, c.casual)
	formal := countPresent(lower, c.formal)
	switch {
	case casual > formal:
		return FormalityCasual
	case formal > casual:
		return FormalityFormal
	default:
		return FormalityNeutral
	}
}

// DetectPrimary returns the emotion when there is one, otherwise the first
// matching conversational tone.
func (c *Classifier) DetectPrimary(lower, emotion string) string {
	if emotion != Neutral {
		return emotion
	}
	if label, ok := c.tones.Match(lower); ok {
		return label
	}
	return Neutral
}

// DetectSecondary returns "" when no secondary tone applies.
func DetectSecondary(text string) string {
	if strings.Contains(text, "?") && strings.Contains(text, "!") {
		return SecondaryExcitedCurious
	}
	if strings.Contains(text, "...") {
		return SecondaryThoughtful
	}
	return ""
}

// ResponseGuidance picks the reply-tone instruction for a signal.
func ResponseGuidance(s Signal) string {
	if g, ok := guidanceByEmotion[s.Emotion]; ok {
		return g
	}
	return fmt.Sprintf("Match their %s energy with %s tone", s.Energy, s.Formality)
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
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
