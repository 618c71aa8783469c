package keystore_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poly-pro/shaken/internal/keystore"
)

// fakeKV is an in-memory KVStore for tests, standing in for RedisKV
// the way the pack's handler tests stand in httptest servers for
// real network dependencies.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) key(family, key string) string { return family + ":" + key }

func (f *fakeKV) Put(_ context.Context, family, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[f.key(family, key)] = value
	return nil
}

func (f *fakeKV) Get(_ context.Context, family, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[f.key(family, key)], nil
}

func (f *fakeKV) Del(_ context.Context, family, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, f.key(family, key))
	return nil
}

func (f *fakeKV) DelTree(_ context.Context, family, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.key(family, prefix)
	for k := range f.data {
		if strings.HasPrefix(k, p) {
			delete(f.data, k)
		}
	}
	return nil
}

func TestPutLookupRoundTrip(t *testing.T) {
	t.Parallel()

	ks := keystore.New(newFakeKV())
	ctx := context.Background()

	require.NoError(t, ks.Put(ctx, "https://example.com/key.pem", "/tmp/key.pem"))
	path, err := ks.Lookup(ctx, "https://example.com/key.pem")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/key.pem", path)
}

func TestLookupMissReturnsEmpty(t *testing.T) {
	t.Parallel()

	ks := keystore.New(newFakeKV())
	path, err := ks.Lookup(context.Background(), "https://example.com/missing.pem")
	require.NoError(t, err)
	assert.Empty(t, path)
}

// Tests that swap the package-level keystore.Now run serially: a
// parallel test overwriting the shared clock would change the time the
// other one's IsExpired calls observe.
func TestSMaxAgeTakesPrecedenceOverMaxAge(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	restore := keystore.Now
	keystore.Now = func() time.Time { return fixed }
	defer func() { keystore.Now = restore }()

	ks := keystore.New(newFakeKV())
	ctx := context.Background()
	url := "https://example.com/key.pem"

	require.NoError(t, ks.SetExpiration(ctx, url, "max-age=10, s-maxage=60", ""))
	expired, err := ks.IsExpired(ctx, url)
	require.NoError(t, err)
	assert.False(t, expired, "s-maxage=60 should not have elapsed yet")

	keystore.Now = func() time.Time { return fixed.Add(30 * time.Second) }
	expired, err = ks.IsExpired(ctx, url)
	require.NoError(t, err)
	assert.False(t, expired, "30s < s-maxage=60")

	keystore.Now = func() time.Time { return fixed.Add(90 * time.Second) }
	expired, err = ks.IsExpired(ctx, url)
	require.NoError(t, err)
	assert.True(t, expired, "90s > s-maxage=60")
}

func TestExpiresHeaderUsedWhenNoCacheControl(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	restore := keystore.Now
	keystore.Now = func() time.Time { return fixed }
	defer func() { keystore.Now = restore }()

	ks := keystore.New(newFakeKV())
	ctx := context.Background()
	url := "https://example.com/key.pem"

	expires := fixed.Add(time.Hour).UTC().Format(time.RFC1123)
	require.NoError(t, ks.SetExpiration(ctx, url, "", expires))

	keystore.Now = func() time.Time { return fixed.Add(30 * time.Minute) }
	expired, err := ks.IsExpired(ctx, url)
	require.NoError(t, err)
	assert.False(t, expired)

	keystore.Now = func() time.Time { return fixed.Add(2 * time.Hour) }
	expired, err = ks.IsExpired(ctx, url)
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestIsExpiredWithNoRecordedExpirationIsExpired(t *testing.T) {
	t.Parallel()

	ks := keystore.New(newFakeKV())
	expired, err := ks.IsExpired(context.Background(), "https://example.com/never-set.pem")
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestRemoveClearsIndexAndSubtree(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	ks := keystore.New(kv)
	ctx := context.Background()
	url := "https://example.com/key.pem"

	require.NoError(t, ks.Put(ctx, url, "/tmp/does-not-exist.pem"))
	require.NoError(t, ks.SetExpiration(ctx, url, "max-age=60", ""))
	require.NoError(t, ks.Remove(ctx, url))

	path, err := ks.Lookup(ctx, url)
	require.NoError(t, err)
	assert.Empty(t, path)

	expired, err := ks.IsExpired(ctx, url)
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestHashIsStableAndLooksLikeSHA1Hex(t *testing.T) {
	t.Parallel()

	h1 := keystore.Hash("https://example.com/key.pem")
	h2 := keystore.Hash("https://example.com/key.pem")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 40)
}

func TestDefaultPath(t *testing.T) {
	t.Parallel()

	path := keystore.DefaultPath("/var/lib/shaken", "https://example.com/certs/abc.pem")
	assert.Equal(t, "/var/lib/shaken/keys/stir_shaken/abc.pem", path)
}
