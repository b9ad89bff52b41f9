package httpapi_test

import (
	"testing"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/httpapi"
	"github.com/stretchr/testify/require"
)

func TestMemoryDedupeStore_RepliesTheCachedResponseUntilTTLExpires(t *testing.T) {
	now := time.Now()
	store := httpapi.NewMemoryDedupeStore(time.Minute).WithClock(func() time.Time { return now })

	_, found := store.Get("key-1")
	require.False(t, found)

	store.Set("key-1", []byte(`{"seq":1}`))

	body, found := store.Get("key-1")
	require.True(t, found)
	require.Equal(t, `{"seq":1}`, string(body))

	// A second key is unaffected.
	_, found = store.Get("key-2")
	require.False(t, found)

	now = now.Add(2 * time.Minute)
	_, found = store.Get("key-1")
	require.False(t, found, "entry should have expired")
}
