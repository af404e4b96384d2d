// Package seenstore persists the identifiers already reported by previous
// runs so a license is announced once. The lifecycle is load at run start,
// save at run end; nothing else touches the store.
package seenstore

import (
	"context"
	"time"
)

// Store holds the cross-run set of reported identifiers.
type Store interface {
	Load(ctx context.Context) (map[string]struct{}, error)
	Save(ctx context.Context, ids []string) error
	Close() error
}

// RunRecorder is implemented by stores that can also keep per-run history.
type RunRecorder interface {
	RecordRun(ctx context.Context, day time.Time, newIDs, reportBytes int) error
}

// Memory is an in-process store, used in tests and for one-off dry runs.
type Memory struct {
	ids map[string]struct{}
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{ids: make(map[string]struct{})}
}

func (m *Memory) Load(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(m.ids))
	for id := range m.ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (m *Memory) Save(ctx context.Context, ids []string) error {
	for _, id := range ids {
		m.ids[id] = struct{}{}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
