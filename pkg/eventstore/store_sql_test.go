package eventstore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/stretchr/testify/require"
)

var eventColumns = []string{"seq", "event_id", "type", "timestamp", "payload", "source", "trace_id", "dedupe_key", "prev_hash", "hash", "signature", "signer_key_id"}

const insertColumnsRe = `\(seq, event_id, type, timestamp, payload, source, trace_id, dedupe_key, prev_hash, hash, signature, signer_key_id\)`
const selectColumnsRe = `seq, event_id, type, timestamp, payload, source, trace_id, dedupe_key, prev_hash, hash, signature, signer_key_id`

// TestSQLStore_PostgresDialectUsesNumberedPlaceholders drives SQLStore
// against a mocked *sql.DB rather than a live Postgres instance, so the
// dialect's placeholder substitution ($1, $2, ... vs ?) is exercised
// without a running database — this is exactly the seam
// github.com/DATA-DOG/go-sqlmock exists for.
func TestSQLStore_PostgresDialectUsesNumberedPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := eventstore.NewPostgresStore(db)

	mock.ExpectExec(`INSERT INTO events ` + insertColumnsRe + `\s*VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10, \$11, \$12\)`).
		WithArgs(uint64(1), "event-1", "intent.open.v1", sqlmock.AnyArg(), "{}", "", "", nil, "", "abc123", "sig", "key-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Append(context.Background(), eventstore.Event{
		Seq: 1, EventID: "event-1", Type: "intent.open.v1", Timestamp: time.Now(), Payload: []byte("{}"),
		Hash: "abc123", Signature: "sig", SignerKeyID: "key-1",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSQLStore_SQLiteDialectUsesQuestionMarkPlaceholders is the same
// check against the SQLite dialect's placeholder style.
func TestSQLStore_SQLiteDialectUsesQuestionMarkPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := eventstore.NewSQLiteStore(db)

	mock.ExpectQuery(`SELECT ` + selectColumnsRe + `\s*FROM events WHERE seq = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow(uint64(7), "event-7", "regime.changed.v1", time.Now(), "{}", "", "", nil, "prevhash", "hash7", "sig7", "key-1"))

	e, err := store.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, uint64(7), e.Seq)
	require.Equal(t, eventstore.Kind("regime.changed.v1"), e.Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSQLStore_GetMissingSeqReturnsErrNotFound checks sql.ErrNoRows is
// translated to the package's own ErrNotFound rather than leaking the
// database/sql sentinel to callers.
func TestSQLStore_GetMissingSeqReturnsErrNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := eventstore.NewSQLiteStore(db)

	mock.ExpectQuery(`SELECT ` + selectColumnsRe + `\s*FROM events WHERE seq = \?`).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows(eventColumns))

	_, err = store.Get(context.Background(), 99)
	require.ErrorIs(t, err, eventstore.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSQLStore_Range_ScansEventsInOrder checks the multi-row scan path,
// which Get's single-row scanEvent helper doesn't exercise.
func TestSQLStore_Range_ScansEventsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := eventstore.NewSQLiteStore(db)

	mock.ExpectQuery(`SELECT ` + selectColumnsRe + `\s*FROM events WHERE seq >= \? AND seq <= \? ORDER BY seq ASC`).
		WithArgs(uint64(1), uint64(2)).
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow(uint64(1), "event-1", "genesis.v1", time.Now(), "{}", "", "", nil, "", "hash1", "sig1", "key-1").
			AddRow(uint64(2), "event-2", "intent.open.v1", time.Now(), "{}", "", "", "dk-1", "hash1", "hash2", "sig2", "key-1"))

	events, err := store.Range(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, uint64(1), events[0].Seq)
	require.Equal(t, uint64(2), events[1].Seq)
	require.Equal(t, "dk-1", events[1].DedupeKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSQLStore_AppendAtomic_CommitsWholeBatchInOneTransaction checks that a
// batch append is wrapped in a single BeginTx/Commit rather than one
// transaction per row.
func TestSQLStore_AppendAtomic_CommitsWholeBatchInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := eventstore.NewSQLiteStore(db)

	insertRe := `INSERT INTO events ` + insertColumnsRe + `\s*VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?, \?, \?, \?\)`

	mock.ExpectBegin()
	mock.ExpectExec(insertRe).
		WithArgs(uint64(1), "event-1", "intent.open.v1", sqlmock.AnyArg(), "{}", "", "", nil, "genesis-hash", "hash1", "sig1", "key-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertRe).
		WithArgs(uint64(2), "event-2", "intent.close.v1", sqlmock.AnyArg(), "{}", "", "", nil, "hash1", "hash2", "sig2", "key-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = store.AppendAtomic(context.Background(), []eventstore.Event{
		{Seq: 1, EventID: "event-1", Type: "intent.open.v1", Timestamp: time.Now(), Payload: []byte("{}"), PrevHash: "genesis-hash", Hash: "hash1", Signature: "sig1", SignerKeyID: "key-1"},
		{Seq: 2, EventID: "event-2", Type: "intent.close.v1", Timestamp: time.Now(), Payload: []byte("{}"), PrevHash: "hash1", Hash: "hash2", Signature: "sig2", SignerKeyID: "key-1"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSQLStore_AppendAtomic_RollsBackOnMidBatchFailure checks that a failure
// partway through the batch rolls back rather than leaving the first rows
// durably committed, which is exactly the half-applied state AppendAtomic
// exists to prevent.
func TestSQLStore_AppendAtomic_RollsBackOnMidBatchFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := eventstore.NewSQLiteStore(db)

	insertRe := `INSERT INTO events ` + insertColumnsRe + `\s*VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?, \?, \?, \?\)`

	mock.ExpectBegin()
	mock.ExpectExec(insertRe).
		WithArgs(uint64(1), "event-1", "intent.open.v1", sqlmock.AnyArg(), "{}", "", "", nil, "genesis-hash", "hash1", "sig1", "key-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertRe).
		WithArgs(uint64(2), "event-2", "intent.close.v1", sqlmock.AnyArg(), "{}", "", "", nil, "hash1", "hash2", "sig2", "key-1").
		WillReturnError(fmt.Errorf("unique constraint violated"))
	mock.ExpectRollback()

	err = store.AppendAtomic(context.Background(), []eventstore.Event{
		{Seq: 1, EventID: "event-1", Type: "intent.open.v1", Timestamp: time.Now(), Payload: []byte("{}"), PrevHash: "genesis-hash", Hash: "hash1", Signature: "sig1", SignerKeyID: "key-1"},
		{Seq: 2, EventID: "event-2", Type: "intent.close.v1", Timestamp: time.Now(), Payload: []byte("{}"), PrevHash: "hash1", Hash: "hash2", Signature: "sig2", SignerKeyID: "key-1"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSQLStore_LatestCheckpoint_NoneSavedReturnsErrNotFound mirrors the Get
// miss path for the checkpoints table.
func TestSQLStore_LatestCheckpoint_NoneSavedReturnsErrNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := eventstore.NewPostgresStore(db)

	mock.ExpectQuery(`SELECT seq, chain_hash, signature, signer_key_id, created_at\s*FROM checkpoints ORDER BY seq DESC LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "chain_hash", "signature", "signer_key_id", "created_at"}))

	_, err = store.LatestCheckpoint(context.Background())
	require.ErrorIs(t, err, eventstore.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
