package memory

import (
	"sort"
	"strings"

	"github.com/stellarlinkco/aria/internal/profile"
)

const (
	// MaxRelevant caps how many memories a Ranker returns.
	MaxRelevant = 5
	// AlwaysRelevantImportance is the importance above which a memory always qualifies.
	AlwaysRelevantImportance = 7
)

// Ranker picks the memories worth surfacing for an utterance. Implementations
// return at most MaxRelevant memories ordered by descending importance and
// always admit memories above AlwaysRelevantImportance.
type Ranker interface {
	Rank(memories []profile.Memory, utterance string) []profile.Memory
}

// LexicalRanker admits a memory when it shares a whitespace token with the
// utterance (case-insensitive) or is important enough on its own.
type LexicalRanker struct{}

func (LexicalRanker) Rank(memories []profile.Memory, utterance string) []profile.Memory {
	words := tokenSet(utterance)
	out := make([]profile.Memory, 0, MaxRelevant)
	for _, m := range memories {
		if m.Importance > AlwaysRelevantImportance || overlaps(m.Content, words) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	if len(out) > MaxRelevant {
		out = out[:MaxRelevant]
	}
	return out
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func overlaps(content string, words map[string]struct{}) bool {
	for _, f := range strings.Fields(strings.ToLower(content)) {
		if _, ok := words[f]; ok {
			return true
		}
	}
	return false
}
