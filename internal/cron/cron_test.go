package cron

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stellarlinkco/aria/internal/memory"
	"github.com/stellarlinkco/aria/internal/store"
)

func TestService_AddJob_InvalidSpec(t *testing.T) {
	s := NewService(zerolog.Nop())
	if err := s.AddJob("bad", "not a cron", func(context.Context) (string, error) { return "", nil }); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if len(s.Jobs()) != 0 {
		t.Errorf("invalid job should not be registered")
	}
}

func TestService_AddJob_Duplicate(t *testing.T) {
	s := NewService(zerolog.Nop())
	noop := func(context.Context) (string, error) { return "", nil }
	if err := s.AddJob("a", "0 0 3 * * *", noop); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob("a", "0 0 4 * * *", noop); err == nil {
		t.Error("expected duplicate name error")
	}
}

func TestService_RunNow_RecordsState(t *testing.T) {
	s := NewService(zerolog.Nop())
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	fail := false
	if err := s.AddJob("j", "0 0 3 * * *", func(context.Context) (string, error) {
		if fail {
			return "", errors.New("disk full")
		}
		return "done", nil
	}); err != nil {
		t.Fatal(err)
	}

	out, err := s.RunNow(context.Background(), "j")
	if err != nil || out != "done" {
		t.Fatalf("RunNow = %q, %v", out, err)
	}
	st := s.Jobs()[0]
	if st.LastStatus != "ok" || st.Runs != 1 || !st.LastRunAt.Equal(fixed) {
		t.Errorf("state = %+v", st)
	}

	fail = true
	if _, err := s.RunNow(context.Background(), "j"); err == nil {
		t.Fatal("expected job error")
	}
	st = s.Jobs()[0]
	if st.LastStatus != "error" || st.LastError != "disk full" || st.Runs != 2 {
		t.Errorf("state = %+v", st)
	}

	if _, err := s.RunNow(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestService_RemoveJob(t *testing.T) {
	s := NewService(zerolog.Nop())
	s.AddJob("j", "0 0 3 * * *", func(context.Context) (string, error) { return "", nil })
	if !s.RemoveJob("j") {
		t.Error("RemoveJob should report true")
	}
	if s.RemoveJob("j") {
		t.Error("second RemoveJob should report false")
	}
	if len(s.Jobs()) != 0 {
		t.Error("job list should be empty")
	}
}

func TestService_ScheduledRun(t *testing.T) {
	s := NewService(zerolog.Nop())
	var runs atomic.Int32
	if err := s.AddJob("tick", "* * * * * *", func(context.Context) (string, error) {
		runs.Add(1)
		return "", nil
	}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()
	if runs.Load() == 0 {
		t.Fatal("job never ran")
	}
}

func TestService_StopIdempotent(t *testing.T) {
	s := NewService(zerolog.Nop())
	s.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	s.Stop()
	s.Stop()
}

func TestSnapshotter_WritesAllProfiles(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService(store.NewMemoryStore())
	svc.CreateProfile(ctx, "telegram:1", "Sam")
	svc.CreateProfile(ctx, "websocket:2", "Kai")
	svc.AddMemory(ctx, "telegram:1", "likes painting", 6, "hobby")

	dir := filepath.Join(t.TempDir(), "snaps")
	snap := NewSnapshotter(svc, dir)
	snap.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }

	path, err := snap.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if filepath.Base(path) != "profiles-20250304-050607.json" {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc Snapshot
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Profiles) != 2 {
		t.Fatalf("profiles = %d, want 2", len(doc.Profiles))
	}
	if p := doc.Profiles["telegram:1"]; p == nil || p.Name != "Sam" || len(p.Memories) != 1 {
		t.Errorf("telegram:1 = %+v", p)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".snapshot-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSnapshotter_AsJob(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService(store.NewMemoryStore())
	s := NewService(zerolog.Nop())
	if err := s.AddJob(SnapshotJobName, "0 0 3 * * *", NewSnapshotter(svc, t.TempDir()).Job()); err != nil {
		t.Fatal(err)
	}
	path, err := s.RunNow(ctx, SnapshotJobName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot missing: %v", err)
	}
}
