// Package fallback produces deterministic, network-free replies chosen from
// the utterance and its tone signal.
package fallback

import (
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/stellarlinkco/aria/internal/tone"
)

const (
	Sadness       = "I can sense you're going through something difficult right now. I'm here to listen, and I want you to know that what you're feeling is completely valid. Sometimes just talking about it can help a little. What's weighing on your heart today?"
	Joy           = "I love the positive energy you're bringing! Your excitement is genuinely contagious. It's beautiful to see someone so happy about something. I'd love to hear more about what's making you feel so good!"
	Anger         = "I can tell you're really frustrated about this, and honestly, that sounds completely understandable given what you're dealing with. Sometimes we need to acknowledge those feelings before we can work through them. Want to tell me more about what's really bothering you?"
	Question      = "That's such an interesting question! I find myself thinking about things like this a lot too. There are usually so many different angles to consider, aren't there? What's your take on it? I'm curious to hear your perspective."
	Disclosure    = "It's really nice getting to know you better! I love learning about the people I talk with - everyone has such unique stories and perspectives. Thanks for sharing that with me. What else would you like me to know about you?"
	Greeting      = "Hey! It's great to see you again. I was actually just thinking about our conversations - they always give me so much to reflect on. How has your day been treating you so far?"
	Work          = "Work can be such a complex part of life, can't it? Sometimes it's fulfilling, sometimes challenging, often a mix of both. I'm always fascinated by how people navigate their professional journeys. What's your experience been like with that?"
	Relationships = "Relationships are so central to who we are, aren't they? The connections we have with others shape us in ways we don't always realize. I find it fascinating how different people bring out different sides of us. What's that been like for you?"
)

// Pool is the uniform pick used when no rule matches.
var Pool = []string{
	"That really resonates with me. There's something profound about what you're sharing, and I find myself wanting to understand it more deeply. Can you tell me what drew you to think about this particular topic?",
	"I love how your mind works - you have such a unique way of looking at things. It makes me think about perspectives I hadn't considered before. What experiences do you think shaped this viewpoint for you?",
	"There's so much depth in what you're saying. I'm genuinely curious about the story behind your thoughts here. What led you to this realization or feeling?",
	"You know, conversations like this are exactly why I love talking with people. Everyone brings such different insights to the table. I'm really interested in hearing more about your take on this.",
}

// Picker chooses an index in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

// Input is what a rule sees for one utterance.
type Input struct {
	Lower  string
	Words  []string
	Signal tone.Signal
}

// Rule is one step of the cascade. The first matching rule replies.
type Rule struct {
	Name  string
	Match func(Input) bool
	Reply string
}

// DefaultRules is the fixed cascade, checked in order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "sadness", Reply: Sadness, Match: emotionIs(tone.EmotionSadness)},
		{Name: "joy", Reply: Joy, Match: emotionIs(tone.EmotionJoy)},
		{Name: "anger", Reply: Anger, Match: emotionIs(tone.EmotionAnger, "frustration")},
		{Name: "question", Reply: Question, Match: func(in Input) bool {
			return strings.Contains(in.Lower, "?")
		}},
		{Name: "disclosure", Reply: Disclosure, Match: func(in Input) bool {
			return strings.Contains(in.Lower, "i am") || strings.Contains(in.Lower, "my name is")
		}},
		{Name: "greeting", Reply: Greeting, Match: hasWord("hi", "hello", "hey")},
		{Name: "work", Reply: Work, Match: contains("work", "job", "career")},
		{Name: "relationships", Reply: Relationships, Match: contains("friend", "relationship", "family")},
	}
}

type Responder struct {
	rules  []Rule
	pool   []string
	picker Picker
}

type Option func(*Responder)

// WithRand pins the pool selection.
func WithRand(p Picker) Option {
	return func(r *Responder) { r.picker = p }
}

func WithRules(rules []Rule) Option {
	return func(r *Responder) { r.rules = rules }
}

func WithPool(pool []string) Option {
	return func(r *Responder) { r.pool = pool }
}

func New(opts ...Option) *Responder {
	r := &Responder{
		rules:  DefaultRules(),
		pool:   Pool,
		picker: globalPicker{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Respond walks the cascade and falls back to a pool pick.
func (r *Responder) Respond(utterance string, signal tone.Signal) string {
	reply, _ := r.RespondRule(utterance, signal)
	return reply
}

// RespondRule is Respond that also names the rule that fired ("pool" for a
// pool pick).
func (r *Responder) RespondRule(utterance string, signal tone.Signal) (string, string) {
	lower := strings.ToLower(utterance)
	in := Input{Lower: lower, Words: words(lower), Signal: signal}
	for _, rule := range r.rules {
		if rule.Match(in) {
			return rule.Reply, rule.Name
		}
	}
	if len(r.pool) == 0 {
		return Pool[0], "pool"
	}
	return r.pool[r.picker.IntN(len(r.pool))], "pool"
}

func emotionIs(labels ...string) func(Input) bool {
	return func(in Input) bool {
		for _, l := range labels {
			if in.Signal.Emotion == l {
				return true
			}
		}
		return false
	}
}

func hasWord(targets ...string) func(Input) bool {
	return func(in Input) bool {
		for _, w := range in.Words {
			for _, t := range targets {
				if w == t {
					return true
				}
			}
		}
		return false
	}
}

func contains(subs ...string) func(Input) bool {
	return func(in Input) bool {
		for _, sub := range subs {
			if strings.Contains(in.Lower, sub) {
				return true
			}
		}
		return false
	}
}

func words(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
