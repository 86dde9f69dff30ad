package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mbshop/storefront/session"
)

// JournalSubscriber appends store events to a Journal. Sequence numbers
// continue from the journal's latest entry for the session, so a session
// resumed by a later process keeps a single ordered history.
type JournalSubscriber struct {
	journal Journal
	logger  *slog.Logger

	mu   sync.Mutex
	base map[string]uint64
}

// NewJournalSubscriber creates a JournalSubscriber.
func NewJournalSubscriber(journal Journal, logger *slog.Logger) *JournalSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &JournalSubscriber{
		journal: journal,
		logger:  logger,
		base:    make(map[string]uint64),
	}
}

// Handle journals a single event. Failures are logged and never
// propagate to the dispatcher.
func (s *JournalSubscriber) Handle(event session.Event) {
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()

	base, ok := s.base[event.SessionID]
	if !ok {
		latest, err := s.journal.LatestSeq(ctx, event.SessionID)
		if err != nil {
			s.logger.Error("failed to read journal position",
				"session_id", event.SessionID,
				"error", err,
			)
		}
		base = latest
		s.base[event.SessionID] = base
	}

	entry := EntryFromEvent(event)
	entry.Seq = base + event.Seq
	if err := s.journal.Append(ctx, entry); err != nil {
		s.logger.Error("failed to journal action",
			"session_id", event.SessionID,
			"action", session.KindOf(event.Action),
			"seq", entry.Seq,
			"error", err,
		)
	}
}
