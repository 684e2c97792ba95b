package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stellarlinkco/aria/internal/memory"
	"github.com/stellarlinkco/aria/internal/profile"
)

// SnapshotJobName is the job the gateway registers for profile snapshots.
const SnapshotJobName = "profile-snapshot"

// Snapshotter writes every stored profile to one dated JSON document.
type Snapshotter struct {
	svc *memory.Service
	dir string
	now func() time.Time
}

func NewSnapshotter(svc *memory.Service, dir string) *Snapshotter {
	return &Snapshotter{svc: svc, dir: dir, now: time.Now}
}

// Snapshot is the document layout: generation time plus profiles keyed by id.
type Snapshot struct {
	CreatedAt time.Time                        `json:"createdAt"`
	Profiles  map[string]*profile.UserProfile `json:"profiles"`
}

// Run writes the snapshot and returns its path. Profiles that cannot be read
// are left out.
func (s *Snapshotter) Run(ctx context.Context) (string, error) {
	ids, err := s.svc.ListProfiles(ctx)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	snap := Snapshot{CreatedAt: now, Profiles: make(map[string]*profile.UserProfile, len(ids))}
	for _, id := range ids {
		if p := s.svc.GetProfile(ctx, id); p != nil {
			snap.Profiles[id] = p
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(s.dir, "profiles-"+now.Format("20060102-150405")+".json")
	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename snapshot: %w", err)
	}
	return path, nil
}

// Job adapts Run to a JobFunc.
func (s *Snapshotter) Job() JobFunc {
	return s.Run
}
