// Package cron runs the gateway's periodic maintenance jobs.
package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobFunc is one scheduled unit of work. The returned string is logged.
type JobFunc func(ctx context.Context) (string, error)

// JobState records the outcome of the most recent run.
type JobState struct {
	Name       string    `json:"name"`
	Schedule   string    `json:"schedule"`
	LastRunAt  time.Time `json:"lastRunAt,omitempty"`
	LastStatus string    `json:"lastStatus,omitempty"` // "ok" or "error"
	LastError  string    `json:"lastError,omitempty"`
	Runs       int       `json:"runs"`
}

type job struct {
	fn    JobFunc
	entry rcron.EntryID
	state JobState
}

// Service wraps a seconds-resolution robfig scheduler. Jobs may be added
// before or after Start.
type Service struct {
	mu     sync.Mutex
	jobs   map[string]*job
	cron   *rcron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(logger zerolog.Logger) *Service {
	return &Service{
		jobs:   make(map[string]*job),
		cron:   rcron.New(rcron.WithSeconds()),
		ctx:    context.Background(),
		logger: logger.With().Str("component", "cron").Logger(),
		now:    time.Now,
	}
}

// AddJob registers fn under name with a six-field cron spec.
func (s *Service) AddJob(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}
	j := &job{fn: fn, state: JobState{Name: name, Schedule: spec}}
	id, err := s.cron.AddFunc(spec, func() { s.execute(name) })
	if err != nil {
		return fmt.Errorf("register job %s (%s): %w", name, spec, err)
	}
	j.entry = id
	s.jobs[name] = j
	return nil
}

// RemoveJob unregisters name and reports whether it existed.
func (s *Service) RemoveJob(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	s.cron.Remove(j.entry)
	delete(s.jobs, name)
	return true
}

// RunNow executes name synchronously, outside the schedule.
func (s *Service) RunNow(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("job %s not found", name)
	}
	return s.run(ctx, name, j.fn)
}

func (s *Service) execute(name string) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	ctx := s.ctx
	s.mu.Unlock()
	if !ok {
		return
	}
	_, _ = s.run(ctx, name, j.fn)
}

func (s *Service) run(ctx context.Context, name string, fn JobFunc) (string, error) {
	s.logger.Info().Str("job", name).Msg("executing")
	result, err := fn(ctx)

	s.mu.Lock()
	if j, ok := s.jobs[name]; ok {
		j.state.LastRunAt = s.now()
		j.state.Runs++
		if err != nil {
			j.state.LastStatus = "error"
			j.state.LastError = err.Error()
		} else {
			j.state.LastStatus = "ok"
			j.state.LastError = ""
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Msg("job failed")
	} else {
		s.logger.Info().Str("job", name).Str("result", result).Msg("job done")
	}
	return result, err
}

// Jobs returns the state of every registered job, sorted by name.
func (s *Service) Jobs() []JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobState, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.state)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Start begins scheduling. Cancelling ctx stops the scheduler.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.ctx = runCtx
	s.cancel = cancel
	n := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("jobs", n).Msg("started")

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits up to five seconds for running jobs.
// It is safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("stop timeout waiting for running jobs")
	}
	s.logger.Info().Msg("stopped")
}
