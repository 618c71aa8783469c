package cryptoutil_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/poly-pro/shaken/internal/cryptoutil"
	"github.com/poly-pro/shaken/internal/shakenerr"
)

func generateKeyPair(t *testing.T) (*ecdsa.PrivateKey, []byte, []byte) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	privDER, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER})

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return priv, privPEM, pubPEM
}

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	priv, _, pubPEM := generateKeyPair(t)
	pub, err := cryptoutil.ParsePublicKeyPEM(pubPEM)
	require.NoError(t, err)

	message := []byte(`{"orig":{"tn":"12025550123"}}`)
	sig, err := cryptoutil.Sign(message, priv)
	require.NoError(t, err)

	ok, err := cryptoutil.Verify(message, sig, pub)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	t.Parallel()

	priv, _, pubPEM := generateKeyPair(t)
	pub, err := cryptoutil.ParsePublicKeyPEM(pubPEM)
	require.NoError(t, err)

	sig, err := cryptoutil.Sign([]byte("original"), priv)
	require.NoError(t, err)

	ok, err := cryptoutil.Verify([]byte("tampered"), sig, pub)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParsePrivateKeyPEMRoundTrip(t *testing.T) {
	t.Parallel()

	_, privPEM, _ := generateKeyPair(t)
	priv, err := cryptoutil.ParsePrivateKeyPEM(privPEM)
	require.NoError(t, err)
	require.NotNil(t, priv)
}

func TestParsePublicKeyPEMInvalidReturnsKeyReadError(t *testing.T) {
	t.Parallel()

	_, err := cryptoutil.ParsePublicKeyPEM([]byte("not a pem"))
	require.Error(t, err)
	require.True(t, shakenerr.Is(err, shakenerr.KeyRead))
}

func TestDecodedLen(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		b64     string
		want    int
		wantErr bool
	}{
		{"no padding", "QUJD", 3, false},
		{"one pad", "QUI=", 2, false},
		{"two pad", "QQ==", 1, false},
		{"not multiple of 4", "QUJ", 0, true},
		{"empty", "", 0, true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := cryptoutil.DecodedLen(tc.b64)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
