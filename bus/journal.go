package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbshop/storefront/session"
)

// Entry is one journaled dispatch. Action is stored with credentials
// redacted.
type Entry struct {
	SessionID string
	Seq       uint64
	Kind      session.EventKind
	Time      time.Time
	Action    session.Action
}

// EntryFromEvent builds a journal entry from a store event.
func EntryFromEvent(e session.Event) Entry {
	return Entry{
		SessionID: e.SessionID,
		Seq:       e.Seq,
		Kind:      e.Kind,
		Time:      e.Time,
		Action:    session.RedactAction(e.Action),
	}
}

// Journal persists dispatched actions for inspection and replay.
type Journal interface {
	// Append stores an entry.
	Append(ctx context.Context, entry Entry) error

	// List returns entries for a session in sequence order.
	// afterSeq: return entries with Seq > afterSeq (0 means all)
	// limit: max entries to return (0 means no limit)
	List(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]Entry, error)

	// LatestSeq returns the highest Seq for a session (0 if none).
	LatestSeq(ctx context.Context, sessionID string) (uint64, error)

	// Sessions returns the journaled session ids, oldest first.
	Sessions(ctx context.Context) ([]string, error)
}

// ErrJournalTruncated is returned by Replay when entries do not cover the
// session from its first action, for example after retention pruning.
var ErrJournalTruncated = errors.New("bus: journal is truncated")

// Replay folds entries through the reducer starting from the default state
// for mode. Entries must be the session's complete history: sequence
// numbers 1, 2, 3 and so on without gaps.
func Replay(mode session.Mode, entries []Entry) (session.State, error) {
	actions := make([]session.Action, 0, len(entries))
	for i, e := range entries {
		if want := uint64(i + 1); e.Seq != want {
			return session.State{}, fmt.Errorf("%w: expected seq %d, found %d", ErrJournalTruncated, want, e.Seq)
		}
		actions = append(actions, e.Action)
	}
	return session.Replay(session.DefaultState(mode), actions), nil
}
