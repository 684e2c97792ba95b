package tone

// Entry is one labelled keyword set. Tables are ordered: the first entry with
// a matching keyword wins, which is how ties between categories are broken.
type Entry struct {
	Label    string
	Keywords []string
}

// Table is an ordered association list of labels to keyword sets.
type Table []Entry

// Match returns the label of the first entry with a keyword contained in text.
func (t Table) Match(text string) (string, bool) {
	for _, e := range t {
		if containsAny(text, e.Keywords) {
			return e.Label, true
		}
	}
	return "", false
}

var defaultEmotions = Table{
	{Label: EmotionJoy, Keywords: []string{"happy", "excited", "amazing", "awesome", "great", "wonderful", "fantastic", "love", "perfect"}},
	{Label: EmotionSadness, Keywords: []string{"sad", "depressed", "down", "terrible", "awful", "horrible", "devastated", "miserable"}},
	{Label: EmotionAnger, Keywords: []string{"angry", "frustrated", "mad", "furious", "annoyed", "irritated", "pissed", "hate"}},
	{Label: EmotionFear, Keywords: []string{"scared", "afraid", "worried", "anxious", "nervous", "terrified", "frightened"}},
	{Label: EmotionSurprise, Keywords: []string{"wow", "omg", "amazing", "incredible", "unbelievable", "shocking"}},
	{Label: EmotionDisgust, Keywords: []string{"gross", "disgusting", "awful", "terrible", "horrible", "nasty"}},
}

var defaultTones = Table{
	{Label: "supportive", Keywords: []string{"support", "help", "there for you", "understand", "care"}},
	{Label: "inquisitive", Keywords: []string{"?", "how", "what", "why", "when", "where", "tell me", "curious"}},
	{Label: "contemplative", Keywords: []string{"think", "wonder", "reflect", "consider", "ponder", "philosophy"}},
	{Label: "playful", Keywords: []string{"haha", "lol", "funny", "joke", "silly", "fun", "play"}},
	{Label: "serious", Keywords: []string{"important", "serious", "concerned", "matter", "issue"}},
}

var (
	defaultEnergetic = []string{"excited", "amazing", "awesome", "incredible", "fantastic"}
	defaultCasual    = []string{"yeah", "yup", "nah", "gonna", "wanna", "gotta", "hey", "sup", "lol", "haha"}
	defaultFormal    = []string{"however", "furthermore", "consequently", "nevertheless", "regarding", "concerning"}
)

var guidanceByEmotion = map[string]string{
	EmotionJoy:      "Share their enthusiasm while maintaining warmth",
	EmotionSadness:  "Offer gentle support and understanding",
	EmotionAnger:    "Stay calm and empathetic, help them process feelings",
	EmotionFear:     "Provide reassurance and comfort",
	EmotionSurprise: "Match their surprise with appropriate excitement",
}
