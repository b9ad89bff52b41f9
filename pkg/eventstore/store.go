package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store is the durable persistence interface for the event log. EventStore
// layers hashing, signing, and the write lease on top of a Store; a Store
// implementation only needs to get bytes onto disk in order.
type Store interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, e Event) error
	Head(ctx context.Context) (Event, error)
	Get(ctx context.Context, seq uint64) (Event, error)
	Range(ctx context.Context, fromSeq, toSeq uint64) ([]Event, error)
	Len(ctx context.Context) (uint64, error)

	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	LatestCheckpoint(ctx context.Context) (Checkpoint, error)
}

// ErrNotFound is returned when a requested sequence number does not exist.
var ErrNotFound = errors.New("eventstore: not found")

// dialect abstracts the one difference between the SQLite and Postgres
// drivers this store is built against: placeholder syntax.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) placeholder(n int) string {
	if d == dialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// SQLStore implements Store over database/sql, supporting both the embedded
// SQLite backend (modernc.org/sqlite, the default lite-mode path) and
// Postgres (github.com/lib/pq) for operators who outgrow a single file.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteStore wraps a *sql.DB opened against the modernc.org/sqlite
// driver.
func NewSQLiteStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: dialectSQLite}
}

// NewPostgresStore wraps a *sql.DB opened against the lib/pq driver.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: dialectPostgres}
}

// dedupe_key is nullable rather than NOT NULL DEFAULT '' on purpose: SQLite
// and Postgres both treat NULL as distinct from every other NULL under a
// UNIQUE index, so the overwhelming majority of events (which carry no
// idempotency key) never collide with one another. Only two events of the
// same type submitted under the same non-empty dedupe_key collide, which is
// exactly the guarantee this column exists to enforce.
const eventsSchema = `
CREATE TABLE IF NOT EXISTS events (
	seq           INTEGER PRIMARY KEY,
	event_id      TEXT NOT NULL,
	type          TEXT NOT NULL,
	timestamp     TIMESTAMP NOT NULL,
	payload       TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	trace_id      TEXT NOT NULL DEFAULT '',
	dedupe_key    TEXT,
	prev_hash     TEXT NOT NULL,
	hash          TEXT NOT NULL,
	signature     TEXT NOT NULL,
	signer_key_id TEXT NOT NULL,
	UNIQUE(event_id),
	UNIQUE(hash),
	UNIQUE(type, dedupe_key)
);
`

const checkpointsSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	seq           INTEGER PRIMARY KEY,
	chain_hash    TEXT NOT NULL,
	signature     TEXT NOT NULL,
	signer_key_id TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);
`

func (s *SQLStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, eventsSchema); err != nil {
		return fmt.Errorf("eventstore: init events table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, checkpointsSchema); err != nil {
		return fmt.Errorf("eventstore: init checkpoints table: %w", err)
	}
	return nil
}

const eventColumns = `seq, event_id, type, timestamp, payload, source, trace_id, dedupe_key, prev_hash, hash, signature, signer_key_id`

// dedupeKeyParam converts an Event's DedupeKey into the NULL-or-value form
// the dedupe_key column expects: empty means no idempotency key was
// submitted, which must round-trip as SQL NULL rather than the empty
// string so the UNIQUE(type, dedupe_key) index never fires between two
// ordinary events.
func dedupeKeyParam(e Event) interface{} {
	if e.DedupeKey == "" {
		return nil
	}
	return e.DedupeKey
}

func (s *SQLStore) Append(ctx context.Context, e Event) error {
	q := fmt.Sprintf(
		`INSERT INTO events (%s) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		eventColumns,
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3),
		s.dialect.placeholder(4), s.dialect.placeholder(5), s.dialect.placeholder(6),
		s.dialect.placeholder(7), s.dialect.placeholder(8), s.dialect.placeholder(9),
		s.dialect.placeholder(10), s.dialect.placeholder(11), s.dialect.placeholder(12),
	)
	_, err := s.db.ExecContext(ctx, q,
		e.Seq, e.EventID, string(e.Type), e.Timestamp, string(e.Payload), e.Source, e.TraceID,
		dedupeKeyParam(e), e.PrevHash, e.Hash, e.Signature, e.SignerKeyID)
	if err != nil {
		return fmt.Errorf("eventstore: append seq %d: %w", e.Seq, err)
	}
	return nil
}

// AppendAtomic inserts every event in events inside a single database
// transaction: a failure on any row rolls the whole batch back, so the log
// never durably holds a partial tail from a batch that didn't fully commit.
func (s *SQLStore) AppendAtomic(ctx context.Context, events []Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("eventstore: begin batch transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op once Commit succeeds

	q := fmt.Sprintf(
		`INSERT INTO events (%s) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		eventColumns,
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3),
		s.dialect.placeholder(4), s.dialect.placeholder(5), s.dialect.placeholder(6),
		s.dialect.placeholder(7), s.dialect.placeholder(8), s.dialect.placeholder(9),
		s.dialect.placeholder(10), s.dialect.placeholder(11), s.dialect.placeholder(12),
	)
	for _, e := range events {
		if _, err := tx.ExecContext(ctx, q,
			e.Seq, e.EventID, string(e.Type), e.Timestamp, string(e.Payload), e.Source, e.TraceID,
			dedupeKeyParam(e), e.PrevHash, e.Hash, e.Signature, e.SignerKeyID); err != nil {
			return fmt.Errorf("eventstore: batch append seq %d: %w", e.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("eventstore: commit batch transaction: %w", err)
	}
	return nil
}

func scanEventRow(e *Event, scan func(...interface{}) error) error {
	var typ, payload string
	var dedupeKey sql.NullString
	err := scan(&e.Seq, &e.EventID, &typ, &e.Timestamp, &payload, &e.Source, &e.TraceID,
		&dedupeKey, &e.PrevHash, &e.Hash, &e.Signature, &e.SignerKeyID)
	if err != nil {
		return err
	}
	e.Type = Kind(typ)
	e.Payload = []byte(payload)
	e.DedupeKey = dedupeKey.String
	return nil
}

func (s *SQLStore) scanEvent(row *sql.Row) (Event, error) {
	var e Event
	if err := scanEventRow(&e, row.Scan); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	return e, nil
}

func (s *SQLStore) Head(ctx context.Context) (Event, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM events ORDER BY seq DESC LIMIT 1`, eventColumns))
	return s.scanEvent(row)
}

func (s *SQLStore) Get(ctx context.Context, seq uint64) (Event, error) {
	q := fmt.Sprintf(`SELECT %s FROM events WHERE seq = %s`, eventColumns, s.dialect.placeholder(1))
	row := s.db.QueryRowContext(ctx, q, seq)
	return s.scanEvent(row)
}

func (s *SQLStore) Range(ctx context.Context, fromSeq, toSeq uint64) ([]Event, error) {
	q := fmt.Sprintf(
		`SELECT %s FROM events WHERE seq >= %s AND seq <= %s ORDER BY seq ASC`,
		eventColumns, s.dialect.placeholder(1), s.dialect.placeholder(2))
	rows, err := s.db.QueryContext(ctx, q, fromSeq, toSeq)
	if err != nil {
		return nil, fmt.Errorf("eventstore: range [%d,%d]: %w", fromSeq, toSeq, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var e Event
		if err := scanEventRow(&e, rows.Scan); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) Len(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

func (s *SQLStore) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	q := fmt.Sprintf(
		`INSERT INTO checkpoints (seq, chain_hash, signature, signer_key_id, created_at)
		 VALUES (%s, %s, %s, %s, %s)`,
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3),
		s.dialect.placeholder(4), s.dialect.placeholder(5))
	_, err := s.db.ExecContext(ctx, q, cp.Seq, cp.ChainHash, cp.Signature, cp.SignerKeyID, cp.CreatedAt)
	if err != nil {
		return fmt.Errorf("eventstore: save checkpoint at seq %d: %w", cp.Seq, err)
	}
	return nil
}

func (s *SQLStore) LatestCheckpoint(ctx context.Context) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, chain_hash, signature, signer_key_id, created_at
		 FROM checkpoints ORDER BY seq DESC LIMIT 1`)
	var cp Checkpoint
	err := row.Scan(&cp.Seq, &cp.ChainHash, &cp.Signature, &cp.SignerKeyID, &cp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Checkpoint{}, ErrNotFound
		}
		return Checkpoint{}, err
	}
	return cp, nil
}
