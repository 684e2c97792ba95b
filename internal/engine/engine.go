// Package engine runs one conversational turn: tone classification, memory
// bookkeeping, context assembly and reply generation.
package engine

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stellarlinkco/aria/internal/backend"
	"github.com/stellarlinkco/aria/internal/fallback"
	"github.com/stellarlinkco/aria/internal/memory"
	"github.com/stellarlinkco/aria/internal/metrics"
	"github.com/stellarlinkco/aria/internal/persona"
	"github.com/stellarlinkco/aria/internal/profile"
	"github.com/stellarlinkco/aria/internal/tone"
)

const (
	SourceBackend  = "backend"
	SourceFallback = "fallback"

	// MemoryMinLength is the utterance length, in runes, a memory must exceed.
	MemoryMinLength = 50
	// SummaryEvery is the transcript size interval that triggers a summary.
	SummaryEvery = 10
)

// Reply is the outcome of one turn.
type Reply struct {
	Text     string           `json:"text"`
	Source   string           `json:"source"`
	Tone     tone.Signal      `json:"tone"`
	Memories []profile.Memory `json:"memories"`
}

type Engine struct {
	classifier *tone.Classifier
	memory     *memory.Service
	persona    persona.Persona
	backend    backend.Generator
	fallback   *fallback.Responder
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
	newID      func() string
}

type Option func(*Engine)

func WithClassifier(c *tone.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

func WithPersona(p persona.Persona) Option {
	return func(e *Engine) { e.persona = p }
}

// WithBackend sets the generator. A nil generator keeps every reply on the
// fallback responder.
func WithBackend(g backend.Generator) Option {
	return func(e *Engine) { e.backend = g }
}

func WithFallback(r *fallback.Responder) Option {
	return func(e *Engine) { e.fallback = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func New(svc *memory.Service, opts ...Option) *Engine {
	e := &Engine{
		classifier: tone.NewClassifier(),
		memory:     svc,
		persona:    persona.Default(),
		fallback:   fallback.New(),
		logger:     zerolog.Nop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Persona() persona.Persona { return e.persona }

// HasBackend reports whether replies can come from a generation backend.
func (e *Engine) HasBackend() bool { return e.backend != nil }

// HandleTurn processes one utterance for the session's user and records both
// sides of the exchange in the session transcript. It always returns a reply.
func (e *Engine) HandleTurn(ctx context.Context, sess *Session, utterance string) Reply {
	log := e.logger.With().Str("user", sess.UserID).Logger()

	signal := tone.NeutralSignal()
	if strings.TrimSpace(utterance) != "" {
		signal = e.classifier.Classify(utterance)
	}

	p := e.memory.EnsureProfile(ctx, sess.UserID, sess.Name)
	snapshot := p.Clone()
	memories := e.memory.GetRelevantMemories(ctx, sess.UserID, utterance)
	summaries := e.memory.GetConversationContext(ctx, sess.UserID)

	mood := signal.Emotion
	e.memory.UpdatePersonality(ctx, sess.UserID, profile.PersonalityUpdate{CurrentMood: &mood})

	if utf8.RuneCountInString(utterance) > MemoryMinLength && signal.Primary != tone.Neutral {
		if m := e.memory.AddMemory(ctx, sess.UserID, utterance, signal.Confidence*10, signal.Primary); m != nil {
			e.metrics.MemoryAdded()
			log.Debug().Str("category", m.Category).Msg("memory added")
		}
	}

	bundle := Assemble(utterance, snapshot, memories, summaries, signal, sess.Recent(RecentTurns))
	text, source := e.generate(ctx, log, bundle, utterance)
	e.metrics.Turn(source)

	now := e.now()
	e.record(ctx, sess, profile.Message{
		ID:        e.newID(),
		Role:      profile.RoleUser,
		Content:   utterance,
		Timestamp: now,
	})
	recalled := make([]string, 0, len(memories))
	for _, m := range memories {
		recalled = append(recalled, m.Content)
	}
	e.record(ctx, sess, profile.Message{
		ID:        e.newID(),
		Role:      profile.RoleAssistant,
		Content:   text,
		Timestamp: e.now(),
		Metadata: map[string]any{
			"emotion": signal.Emotion,
			"context": recalled,
			"source":  source,
		},
	})

	return Reply{Text: text, Source: source, Tone: signal, Memories: memories}
}

func (e *Engine) generate(ctx context.Context, log zerolog.Logger, b ContextBundle, utterance string) (string, string) {
	if e.backend == nil {
		return e.fallback.Respond(utterance, b.Tone), SourceFallback
	}

	prompt := ComposePrompt(e.persona, b, utterance)
	start := time.Now()
	text, err := e.backend.Generate(ctx, prompt)
	e.metrics.BackendCall(time.Since(start), err)
	if err != nil {
		log.Warn().Err(err).Msg("backend failed, using fallback reply")
		return e.fallback.Respond(utterance, b.Tone), SourceFallback
	}
	if strings.TrimSpace(text) == "" {
		log.Warn().Msg("backend returned empty reply, using fallback reply")
		return e.fallback.Respond(utterance, b.Tone), SourceFallback
	}
	return text, SourceBackend
}

// record appends m and summarises the last SummaryEvery messages whenever the
// transcript size reaches a multiple of SummaryEvery.
func (e *Engine) record(ctx context.Context, sess *Session, m profile.Message) {
	n := sess.Append(m)
	if n%SummaryEvery != 0 {
		return
	}
	if s := e.memory.AddConversationSummary(ctx, sess.UserID, sess.Recent(SummaryEvery)); s != nil {
		e.metrics.SummaryAdded()
		e.logger.Debug().Str("user", sess.UserID).Str("summary", s.Summary).Msg("conversation summarised")
	}
}
