package eventstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/crypto"
	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *crypto.Ed25519Signer {
	t.Helper()
	s, err := crypto.NewEd25519Signer("test-key")
	require.NoError(t, err)
	return s
}

func TestOpenWriter_WritesGenesis(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	store := eventstore.NewMemoryStore()

	es, err := eventstore.OpenWriter(ctx, t.TempDir(), store, signer)
	require.NoError(t, err)
	defer es.Close()

	head, err := es.Head(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), head.Seq)
	require.Equal(t, eventstore.KindGenesis, head.Type)
	require.NotEmpty(t, head.Hash)
	require.NotEmpty(t, head.Signature)
}

func TestOpenWriter_SecondWriterFailsBusy(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	dir := t.TempDir()

	es1, err := eventstore.OpenWriter(ctx, dir, eventstore.NewMemoryStore(), signer)
	require.NoError(t, err)
	defer es1.Close()

	_, err = eventstore.OpenWriter(ctx, dir, eventstore.NewMemoryStore(), signer)
	require.ErrorIs(t, err, eventstore.ErrWriterBusy)
}

func TestAppend_ChainsSequentially(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	es, err := eventstore.OpenWriter(ctx, t.TempDir(), eventstore.NewMemoryStore(), signer)
	require.NoError(t, err)
	defer es.Close()

	e2, err := es.Append(ctx, eventstore.KindCycleStarted, map[string]string{"cycle_id": "c1"})
	require.NoError(t, err)
	require.Equal(t, uint64(1), e2.Seq)

	genesis, err := es.Get(ctx, eventstore.GenesisSeq)
	require.NoError(t, err)
	require.Equal(t, genesis.Hash, e2.PrevHash)

	e3, err := es.Append(ctx, eventstore.KindCycleCompleted, map[string]string{"cycle_id": "c1"})
	require.NoError(t, err)
	require.Equal(t, uint64(2), e3.Seq)
	require.Equal(t, e2.Hash, e3.PrevHash)
}

func TestAppendBatch_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	es, err := eventstore.OpenWriter(ctx, t.TempDir(), eventstore.NewMemoryStore(), signer)
	require.NoError(t, err)
	defer es.Close()

	events, err := es.AppendBatch(ctx, []eventstore.AppendInput{
		{Type: eventstore.KindCycleStarted, Payload: map[string]string{"cycle_id": "a"}},
		{Type: eventstore.KindCycleCompleted, Payload: map[string]string{"cycle_id": "a"}},
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, uint64(1), events[0].Seq)
	require.Equal(t, uint64(2), events[1].Seq)
	require.Equal(t, events[0].Hash, events[1].PrevHash)
}

func TestVerify_ValidChainPasses(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	store := eventstore.NewMemoryStore()
	es, err := eventstore.OpenWriter(ctx, t.TempDir(), store, signer)
	require.NoError(t, err)
	defer es.Close()

	for i := 0; i < 5; i++ {
		_, err := es.Append(ctx, eventstore.KindCycleCompleted, map[string]int{"i": i})
		require.NoError(t, err)
	}

	result, err := eventstore.Verify(ctx, store, signer.PublicKey())
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Empty(t, result.Breaks)
	require.Equal(t, uint64(6), result.EventsChecked)
}

// tamperingStore wraps a Store and corrupts one event's payload on read,
// simulating an on-disk file edited outside the writer process.
type tamperingStore struct {
	eventstore.Store
	tamperSeq uint64
}

func (t *tamperingStore) Range(ctx context.Context, fromSeq, toSeq uint64) ([]eventstore.Event, error) {
	events, err := t.Store.Range(ctx, fromSeq, toSeq)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].Seq == t.tamperSeq {
			events[i].Payload = []byte(`{"i":999}`)
		}
	}
	return events, nil
}

func TestVerify_DetectsTamperedPayload(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	store := eventstore.NewMemoryStore()
	es, err := eventstore.OpenWriter(ctx, t.TempDir(), store, signer)
	require.NoError(t, err)
	defer es.Close()

	_, err = es.Append(ctx, eventstore.KindCycleCompleted, map[string]int{"i": 1})
	require.NoError(t, err)

	result, err := eventstore.Verify(ctx, &tamperingStore{Store: store, tamperSeq: 1}, signer.PublicKey())
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.NotEmpty(t, result.Breaks)
}

func TestFastVerify_UsesCheckpointWhenPresent(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	store := eventstore.NewMemoryStore()
	es, err := eventstore.OpenWriter(ctx, t.TempDir(), store, signer)
	require.NoError(t, err)
	defer es.Close()
	es.WithClock(func() time.Time { return time.Unix(0, 0).UTC() })

	for i := 0; i < eventstore.CheckpointInterval+2; i++ {
		_, err := es.Append(ctx, eventstore.KindCycleCompleted, map[string]int{"i": i})
		require.NoError(t, err)
	}

	cp, err := store.LatestCheckpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(eventstore.CheckpointInterval), cp.Seq)

	result, err := eventstore.FastVerify(ctx, store, signer.PublicKey())
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, uint64(eventstore.CheckpointInterval), result.CheckpointUsed)
}

func TestGenesisMismatch_DifferentKeyRejected(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := eventstore.NewMemoryStore()

	signerA := newTestSigner(t)
	es, err := eventstore.OpenWriter(ctx, dir, store, signerA)
	require.NoError(t, err)
	require.NoError(t, es.Close())

	signerB := newTestSigner(t)
	_, err = eventstore.OpenWriter(ctx, t.TempDir(), store, signerB)
	require.ErrorIs(t, err, eventstore.ErrGenesisMismatch)
}

func TestOpenWriter_NilSignerFails(t *testing.T) {
	ctx := context.Background()
	_, err := eventstore.OpenWriter(ctx, t.TempDir(), eventstore.NewMemoryStore(), nil)
	require.ErrorIs(t, err, eventstore.ErrSignerUnavailable)
}
