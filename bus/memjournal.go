package bus

import (
	"context"
	"sync"
)

// MemJournal is a thread-safe in-memory Journal.
type MemJournal struct {
	mu       sync.RWMutex
	entries  map[string][]Entry // sessionID -> entries
	sessions []string
}

// NewMemJournal creates an empty in-memory journal.
func NewMemJournal() *MemJournal {
	return &MemJournal{
		entries: make(map[string][]Entry),
	}
}

func (j *MemJournal) Append(_ context.Context, entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, seen := j.entries[entry.SessionID]; !seen {
		j.sessions = append(j.sessions, entry.SessionID)
	}
	j.entries[entry.SessionID] = append(j.entries[entry.SessionID], entry)
	return nil
}

func (j *MemJournal) List(_ context.Context, sessionID string, afterSeq uint64, limit int) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []Entry
	for _, e := range j.entries[sessionID] {
		if afterSeq > 0 && e.Seq <= afterSeq {
			continue
		}
		result = append(result, e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (j *MemJournal) LatestSeq(_ context.Context, sessionID string) (uint64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var maxSeq uint64
	for _, e := range j.entries[sessionID] {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	return maxSeq, nil
}

func (j *MemJournal) Sessions(_ context.Context) ([]string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]string, len(j.sessions))
	copy(out, j.sessions)
	return out, nil
}

// Compile-time interface check.
var _ Journal = (*MemJournal)(nil)
