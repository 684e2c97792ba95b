package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stellarlinkco/aria/internal/tone"
)

type fixedPicker int

func (f fixedPicker) IntN(n int) int { return int(f) % n }

func signal(emotion string) tone.Signal {
	s := tone.NeutralSignal()
	s.Emotion = emotion
	return s
}

func TestRespond_Cascade(t *testing.T) {
	r := New(WithRand(fixedPicker(0)))
	tests := []struct {
		name    string
		in      string
		emotion string
		want    string
	}{
		{"sadness wins over question", "why is everything so hard?", tone.EmotionSadness, Sadness},
		{"joy", "whatever", tone.EmotionJoy, Joy},
		{"anger", "whatever", tone.EmotionAnger, Anger},
		{"frustration label", "whatever", "frustration", Anger},
		{"question", "what do you think?", tone.Neutral, Question},
		{"disclosure i am", "i am a nurse", tone.Neutral, Disclosure},
		{"disclosure name", "My name is Alex", tone.Neutral, Disclosure},
		{"greeting", "Hey there", tone.Neutral, Greeting},
		{"greeting punctuation", "hello!", tone.Neutral, Greeting},
		{"disclosure before work", "I am tired of work", tone.Neutral, Disclosure},
		{"working", "working late again", tone.Neutral, Work},
		{"work inside word", "homework done", tone.Neutral, Work},
		{"boyfriend", "my boyfriend called", tone.Neutral, Relationships},
		{"girlfriend", "Girlfriend trouble", tone.Neutral, Relationships},
		{"career", "thinking about my career", tone.Neutral, Work},
		{"relationships", "my friends are away", tone.Neutral, Relationships},
		{"family", "family dinner tonight", tone.Neutral, Relationships},
		{"pool", "the bus was on time", tone.Neutral, Pool[0]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Respond(tt.in, signal(tt.emotion)))
		})
	}
}

func TestRespond_GreetingNeedsWholeWord(t *testing.T) {
	r := New(WithRand(fixedPicker(2)))
	// "this" and "they" contain greeting letters but are not greetings.
	assert.Equal(t, Pool[2], r.Respond("this is what they said", tone.NeutralSignal()))
}

func TestRespond_SadnessKeywordsThroughClassifier(t *testing.T) {
	c := tone.NewClassifier()
	r := New()
	for _, in := range []string{"I'm so sad", "feeling down tonight", "I'm depressed", "everything is terrible"} {
		assert.Equal(t, Sadness, r.Respond(in, c.Classify(in)), in)
	}
}

func TestRespond_PoolIsPinnedByPicker(t *testing.T) {
	for i := range Pool {
		r := New(WithRand(fixedPicker(i)))
		assert.Equal(t, Pool[i], r.Respond("the bus was on time", tone.NeutralSignal()))
	}
}

func TestRespondRule_Names(t *testing.T) {
	r := New(WithRand(fixedPicker(1)))
	_, name := r.RespondRule("hi", tone.NeutralSignal())
	assert.Equal(t, "greeting", name)
	_, name = r.RespondRule("the bus", tone.NeutralSignal())
	assert.Equal(t, "pool", name)
}

func TestRespond_EmptyInput(t *testing.T) {
	r := New(WithRand(fixedPicker(3)))
	assert.Equal(t, Pool[3], r.Respond("", tone.NeutralSignal()))
}

func TestRespond_CustomRules(t *testing.T) {
	r := New(WithRules([]Rule{{Name: "always", Reply: "ok", Match: func(Input) bool { return true }}}))
	assert.Equal(t, "ok", r.Respond("anything", tone.NeutralSignal()))
}
