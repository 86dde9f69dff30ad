package bus

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mbshop/storefront/persist"
	"github.com/mbshop/storefront/session"
)

const sqliteJournalSchema = `
CREATE TABLE IF NOT EXISTS journal (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	action_kind TEXT NOT NULL,
	action TEXT NOT NULL,
	time TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_session_seq ON journal (session_id, seq);
`

// SQLiteJournalConfig configures the SQLite journal.
type SQLiteJournalConfig struct {
	// DSN is a file path or a "file:" URI. It may name the same database
	// as persist.SQLiteKV.
	DSN string

	// RetentionAge deletes entries older than this duration (0 = no age pruning).
	RetentionAge time.Duration

	// RetentionCount keeps at most this many entries per session (0 = no count pruning).
	RetentionCount int

	// PruneInterval is how often to run pruning (default 1 hour).
	PruneInterval time.Duration
}

// SQLiteJournal persists journal entries to SQLite, with an optional
// background pruner.
type SQLiteJournal struct {
	db   *sql.DB
	cfg  SQLiteJournalConfig
	stop chan struct{}
	done chan struct{}
}

// NewSQLiteJournal opens (or creates) a SQLite journal.
func NewSQLiteJournal(cfg SQLiteJournalConfig) (*SQLiteJournal, error) {
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = time.Hour
	}

	db, err := persist.OpenSQLite(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlitejournal: %w", err)
	}
	if _, err := db.Exec(sqliteJournalSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitejournal: create schema: %w", err)
	}

	j := &SQLiteJournal{
		db:   db,
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if cfg.RetentionAge > 0 || cfg.RetentionCount > 0 {
		go j.pruneLoop()
	} else {
		close(j.done)
	}
	return j, nil
}

// Append stores an entry.
func (j *SQLiteJournal) Append(ctx context.Context, entry Entry) error {
	action, err := session.MarshalAction(entry.Action)
	if err != nil {
		return fmt.Errorf("sqlitejournal: marshal action: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO journal (session_id, seq, kind, action_kind, action, time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.Seq,
		string(entry.Kind),
		string(session.KindOf(entry.Action)),
		string(action),
		entry.Time.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlitejournal: append: %w", err)
	}
	return nil
}

// List returns entries for a session, optionally filtered by afterSeq and
// limit.
func (j *SQLiteJournal) List(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]Entry, error) {
	query := `SELECT session_id, seq, kind, action, time
	          FROM journal WHERE session_id = ? AND seq > ? ORDER BY seq ASC`
	args := []any{sessionID, afterSeq}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitejournal: list: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// LatestSeq returns the highest Seq for a session (0 if none).
func (j *SQLiteJournal) LatestSeq(ctx context.Context, sessionID string) (uint64, error) {
	var seq sql.NullInt64
	err := j.db.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM journal WHERE session_id = ?`, sessionID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("sqlitejournal: latest seq: %w", err)
	}
	if !seq.Valid || seq.Int64 < 0 {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// Sessions returns the journaled session ids ordered by first entry.
func (j *SQLiteJournal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT session_id FROM journal GROUP BY session_id ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("sqlitejournal: sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlitejournal: scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close stops the background pruner and closes the database connection.
func (j *SQLiteJournal) Close() error {
	select {
	case <-j.stop:
	default:
		close(j.stop)
	}
	<-j.done
	return j.db.Close()
}

// Prune runs a single pruning pass.
func (j *SQLiteJournal) Prune(ctx context.Context) error {
	if j.cfg.RetentionAge > 0 {
		cutoff := time.Now().Add(-j.cfg.RetentionAge).UTC().Format(time.RFC3339Nano)
		if _, err := j.db.ExecContext(ctx,
			`DELETE FROM journal WHERE time < ?`, cutoff,
		); err != nil {
			return fmt.Errorf("sqlitejournal: prune by age: %w", err)
		}
	}

	if j.cfg.RetentionCount > 0 {
		sessions, err := j.Sessions(ctx)
		if err != nil {
			return fmt.Errorf("sqlitejournal: prune: %w", err)
		}
		for _, id := range sessions {
			if _, err := j.db.ExecContext(ctx,
				`DELETE FROM journal WHERE session_id = ? AND id NOT IN (
					SELECT id FROM journal WHERE session_id = ? ORDER BY seq DESC LIMIT ?
				)`, id, id, j.cfg.RetentionCount,
			); err != nil {
				return fmt.Errorf("sqlitejournal: prune by count for %s: %w", id, err)
			}
		}
	}
	return nil
}

func (j *SQLiteJournal) pruneLoop() {
	defer close(j.done)

	ticker := time.NewTicker(j.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			_ = j.Prune(context.Background())
		}
	}
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			kind       string
			actionJSON string
			timeStr    string
		)
		if err := rows.Scan(&e.SessionID, &e.Seq, &kind, &actionJSON, &timeStr); err != nil {
			return nil, fmt.Errorf("sqlitejournal: scan entry: %w", err)
		}
		e.Kind = session.EventKind(kind)

		t, err := time.Parse(time.RFC3339Nano, timeStr)
		if err != nil {
			return nil, fmt.Errorf("sqlitejournal: parse time %q: %w", timeStr, err)
		}
		e.Time = t

		action, err := session.UnmarshalAction([]byte(actionJSON))
		if err != nil {
			return nil, fmt.Errorf("sqlitejournal: %w", err)
		}
		e.Action = action
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Compile-time interface check.
var _ Journal = (*SQLiteJournal)(nil)
