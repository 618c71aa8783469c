package certstore_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poly-pro/shaken/internal/certstore"
	"github.com/poly-pro/shaken/internal/shakenerr"
)

func fakePrivateKeyPEM(t *testing.T) []byte {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func TestTemplateCertStoreResolvesByCallerTN(t *testing.T) {
	t.Parallel()

	keyPEM := fakePrivateKeyPEM(t)
	readFile := func(path string) ([]byte, error) {
		assert.Equal(t, "/certs/12025550123.pem", path)
		return keyPEM, nil
	}

	store := certstore.NewTemplateCertStore(
		"/certs/${CERTIFICATE}.pem",
		"https://example.com/keys/${CERTIFICATE}.pem",
		readFile,
	)

	handle, err := store.ByCallerTN(context.Background(), "12025550123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/keys/12025550123.pem", handle.PublicKeyURL)

	priv, err := handle.PrivateKey()
	require.NoError(t, err)
	assert.NotNil(t, priv)

	assert.EqualValues(t, 1, store.LiveRefs())
	handle.Release()
	assert.EqualValues(t, 0, store.LiveRefs())
}

func TestTemplateCertStoreMissingFileIsNoCertificateError(t *testing.T) {
	t.Parallel()

	store := certstore.NewTemplateCertStore(
		"/certs/${CERTIFICATE}.pem",
		"https://example.com/keys/${CERTIFICATE}.pem",
		func(string) ([]byte, error) { return nil, errors.New("not found") },
	)

	_, err := store.ByCallerTN(context.Background(), "unknown")
	require.Error(t, err)
	assert.True(t, shakenerr.Is(err, shakenerr.NoCertificate))
}

func TestHandleReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	keyPEM := fakePrivateKeyPEM(t)
	store := certstore.NewTemplateCertStore(
		"/certs/${CERTIFICATE}.pem",
		"https://example.com/keys/${CERTIFICATE}.pem",
		func(string) ([]byte, error) { return keyPEM, nil },
	)

	handle, err := store.ByCallerTN(context.Background(), "12025550123")
	require.NoError(t, err)

	handle.Release()
	handle.Release()
	assert.EqualValues(t, 0, store.LiveRefs())

	_, err = handle.PrivateKey()
	assert.Error(t, err, "private key bytes are zeroed after release")
}
