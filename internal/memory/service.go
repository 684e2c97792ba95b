// Package memory owns the user profile lifecycle: durable memories,
// personality state and rolling conversation summaries.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stellarlinkco/aria/internal/profile"
	"github.com/stellarlinkco/aria/internal/store"
)

const (
	// MinSummaryMessages is the smallest block of messages worth summarising.
	MinSummaryMessages = 3
	// ContextSummaries is how many recent summaries GetConversationContext returns.
	ContextSummaries = 3
	// DefaultImportance and DefaultCategory are what Remember stores with.
	DefaultImportance = 5
	DefaultCategory   = "general"
)

// Service reads and writes profiles through a store.Store. Store faults are
// logged and surface as an absent profile or a no-op, never as an error.
type Service struct {
	store      store.Store
	now        func() time.Time
	newID      func() string
	ranker     Ranker
	classifier ConversationClassifier
	logger     zerolog.Logger
	locks      *KeyedMutex
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func WithRanker(r Ranker) Option {
	return func(s *Service) { s.ranker = r }
}

func WithClassifier(c ConversationClassifier) Option {
	return func(s *Service) { s.classifier = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:      st,
		now:        time.Now,
		newID:      uuid.NewString,
		ranker:     LexicalRanker{},
		classifier: NewKeywordClassifier(),
		logger:     zerolog.Nop(),
		locks:      NewKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetProfile returns the stored profile or nil when it is absent, corrupt or
// the store fails.
func (s *Service) GetProfile(ctx context.Context, id string) *profile.UserProfile {
	p, err := s.load(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("user", id).Msg("load profile")
		return nil
	}
	return p
}

// CreateProfile builds the default profile and persists it. The profile is
// returned even if persisting fails.
func (s *Service) CreateProfile(ctx context.Context, id, name string) *profile.UserProfile {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.create(ctx, id, name)
}

// EnsureProfile returns the stored profile, creating it on first contact.
// When the stored profile cannot be read, an unsaved default profile is
// returned and the stored record is left untouched.
func (s *Service) EnsureProfile(ctx context.Context, id, name string) *profile.UserProfile {
	unlock := s.locks.Lock(id)
	defer unlock()
	p, err := s.load(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("user", id).Msg("load profile, using ephemeral profile")
		return profile.New(id, name, s.now())
	}
	if p != nil {
		return p
	}
	return s.create(ctx, id, name)
}

func (s *Service) create(ctx context.Context, id, name string) *profile.UserProfile {
	p := profile.New(id, name, s.now())
	s.save(ctx, p)
	return p
}

// Remember adds a memory with DefaultImportance and DefaultCategory.
func (s *Service) Remember(ctx context.Context, id, content string) *profile.Memory {
	return s.AddMemory(ctx, id, content, DefaultImportance, DefaultCategory)
}

// AddMemory appends a memory and keeps the MaxMemories most important ones.
// Ties keep insertion order. Returns nil when the profile is absent or the
// memory was evicted.
func (s *Service) AddMemory(ctx context.Context, id, content string, importance float64, category string) *profile.Memory {
	var added *profile.Memory
	s.mutate(ctx, id, func(p *profile.UserProfile) {
		m := profile.Memory{
			ID:                s.newID(),
			Content:           content,
			Importance:        importance,
			Category:          category,
			Timestamp:         s.now(),
			AssociatedContext: []string{},
		}
		p.Memories = append(p.Memories, m)
		sort.SliceStable(p.Memories, func(i, j int) bool {
			return p.Memories[i].Importance > p.Memories[j].Importance
		})
		if len(p.Memories) > profile.MaxMemories {
			p.Memories = p.Memories[:profile.MaxMemories]
		}
		for i := range p.Memories {
			if p.Memories[i].ID == m.ID {
				added = &m
				break
			}
		}
	})
	return added
}

// UpdatePersonality shallow-merges u into the stored personality.
func (s *Service) UpdatePersonality(ctx context.Context, id string, u profile.PersonalityUpdate) bool {
	return s.mutate(ctx, id, func(p *profile.UserProfile) {
		p.Personality = p.Personality.Apply(u)
	})
}

// SetPreference writes one entry of the free-form preference map.
func (s *Service) SetPreference(ctx context.Context, id, key string, value any) bool {
	return s.mutate(ctx, id, func(p *profile.UserProfile) {
		if p.Preferences == nil {
			p.Preferences = map[string]any{}
		}
		p.Preferences[key] = value
	})
}

// AddConversationSummary summarises msgs and appends the result, keeping the
// MaxSummaries most recent. Blocks shorter than MinSummaryMessages are skipped.
func (s *Service) AddConversationSummary(ctx context.Context, id string, msgs []profile.Message) *profile.ConversationSummary {
	if len(msgs) < MinSummaryMessages {
		return nil
	}

	var added *profile.ConversationSummary
	s.mutate(ctx, id, func(p *profile.UserProfile) {
		topics := s.classifier.Topics(msgs)
		mood := s.classifier.Mood(msgs)
		sum := profile.ConversationSummary{
			ID:          s.newID(),
			Date:        s.now(),
			Summary:     Summarize(topics, mood),
			Topics:      topics,
			Mood:        mood,
			KeyMemories: s.classifier.KeyMemories(msgs),
		}
		p.ConversationHistory = append(p.ConversationHistory, sum)
		if n := len(p.ConversationHistory); n > profile.MaxSummaries {
			p.ConversationHistory = append([]profile.ConversationSummary(nil), p.ConversationHistory[n-profile.MaxSummaries:]...)
		}
		added = &sum
	})
	return added
}

// GetRelevantMemories returns the ranker's pick of memories for utterance.
func (s *Service) GetRelevantMemories(ctx context.Context, id, utterance string) []profile.Memory {
	p := s.GetProfile(ctx, id)
	if p == nil {
		return []profile.Memory{}
	}
	return s.ranker.Rank(p.Memories, utterance)
}

// GetConversationContext returns the summary text of the most recent
// summaries, oldest first.
func (s *Service) GetConversationContext(ctx context.Context, id string) []string {
	p := s.GetProfile(ctx, id)
	if p == nil {
		return []string{}
	}
	history := p.ConversationHistory
	if len(history) > ContextSummaries {
		history = history[len(history)-ContextSummaries:]
	}
	out := make([]string, 0, len(history))
	for _, h := range history {
		out = append(out, h.Summary)
	}
	return out
}

// ListProfiles returns every stored user id.
func (s *Service) ListProfiles(ctx context.Context) ([]string, error) {
	ids, err := s.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return ids, nil
}

// mutate runs fn over the stored profile under the user's lock and persists
// the result. It reports false when the profile is absent.
func (s *Service) mutate(ctx context.Context, id string, fn func(*profile.UserProfile)) bool {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("user", id).Msg("load profile")
		return false
	}
	if p == nil {
		return false
	}
	fn(p)
	p.UpdatedAt = s.now()
	s.save(ctx, p)
	return true
}

// load returns (nil, nil) when no profile is stored.
func (s *Service) load(ctx context.Context, id string) (*profile.UserProfile, error) {
	data, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := profile.Decode(data)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, p *profile.UserProfile) {
	data, err := profile.Encode(p)
	if err != nil {
		s.logger.Error().Err(err).Str("user", p.ID).Msg("encode profile")
		return
	}
	if err := s.store.Set(ctx, p.ID, data); err != nil {
		s.logger.Error().Err(err).Str("user", p.ID).Msg("save profile")
	}
}
