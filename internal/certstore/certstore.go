/**
 * @description
 * This file resolves a caller's certificate (private key +
 * public_key_url) by telephone number for the sign orchestrator.
 *
 * Key features:
 * - Interface-Based Design: the CertStore interface decouples the sign
 *   orchestrator from the specific certificate backend, modeled on
 *   remote-signer/internal/vault/vault.go's Vault interface.
 * - Reference-Counted Handles: Handle.Release is CAS-guarded so it is
 *   safe to call on every exit path of Sign without double-releasing.
 * - Two Implementations: PostgresCertStore for production, backed by a
 *   pooled pgx connection; TemplateCertStore for local development,
 *   resolving certificates from disk via a path template.
 *
 * @notes
 * - Generalized from the teacher's "one dummy key for every caller" to
 *   one row per TN, reference-counted the way spec.md §3/§5 requires.
 */

package certstore

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poly-pro/shaken/internal/cryptoutil"
	"github.com/poly-pro/shaken/internal/shakenerr"
)

// CertStore resolves certificates by caller TN.
type CertStore interface {
	ByCallerTN(ctx context.Context, tn string) (*Handle, error)
}

// Handle is a reference-counted certificate lease. Borrow it for the
// duration of one sign operation and call Release on every exit path
// — success or failure — never store it in long-lived state.
type Handle struct {
	PublicKeyURL  string
	privateKeyPEM []byte
	refs          *int64
	release       func(*Handle)
	released      int32
}

// PrivateKey parses the handle's private key material.
func (h *Handle) PrivateKey() (*ecdsa.PrivateKey, error) {
	return cryptoutil.ParsePrivateKeyPEM(h.privateKeyPEM)
}

// Release returns the handle to its store. Safe to call more than
// once; only the first call has effect.
func (h *Handle) Release() {
	if !atomic.CompareAndSwapInt32(&h.released, 0, 1) {
		return
	}
	for i := range h.privateKeyPEM {
		h.privateKeyPEM[i] = 0
	}
	if h.refs != nil {
		atomic.AddInt64(h.refs, -1)
	}
	if h.release != nil {
		h.release(h)
	}
}

// PostgresCertStore resolves certificates from a `certificates` table
// keyed by caller_tn, using a pooled pgx connection the way the
// teacher wires Postgres access through backend/internal/api/server.go's
// db.Querier dependency.
type PostgresCertStore struct {
	pool     *pgxpool.Pool
	liveRefs int64
}

/**
 * @description
 * NewPostgresCertStore wraps an existing connection pool.
 *
 * @param pool A connected pgx pool, owned and closed by the caller.
 * @returns A *PostgresCertStore ready for ByCallerTN lookups.
 */
func NewPostgresCertStore(pool *pgxpool.Pool) *PostgresCertStore {
	return &PostgresCertStore{pool: pool}
}

// ByCallerTN looks up the certificate row for tn. Returns
// NoCertificateError if no row matches.
func (s *PostgresCertStore) ByCallerTN(ctx context.Context, tn string) (*Handle, error) {
	var publicKeyURL string
	var privateKeyPEM []byte

	row := s.pool.QueryRow(ctx,
		`SELECT public_key_url, private_key_pem FROM certificates WHERE caller_tn = $1`, tn)
	if err := row.Scan(&publicKeyURL, &privateKeyPEM); err != nil {
		return nil, shakenerr.NoCertificateError("no certificate for caller_tn=%s: %v", tn, err)
	}

	atomic.AddInt64(&s.liveRefs, 1)
	return &Handle{
		PublicKeyURL:  publicKeyURL,
		privateKeyPEM: privateKeyPEM,
		refs:          &s.liveRefs,
	}, nil
}

// LiveRefs reports the number of handles currently on loan, for
// diagnostics/metrics.
func (s *PostgresCertStore) LiveRefs() int64 {
	return atomic.LoadInt64(&s.liveRefs)
}

// TemplateCertStore resolves certificates from the filesystem using
// the store.path/store.public_key_url (or certificate.* override)
// templates from spec.md §6, substituting ${CERTIFICATE} with the
// caller TN. It is the local-development analogue of
// PostgresCertStore, useful when certificates are provisioned to disk
// by an external deployment step rather than a database.
type TemplateCertStore struct {
	pathTemplate         string
	publicKeyURLTemplate string
	readFile             func(string) ([]byte, error)
	liveRefs             int64
}

/**
 * @description
 * NewTemplateCertStore builds a TemplateCertStore.
 *
 * @param pathTemplate The on-disk path template; must contain the literal
 * "${CERTIFICATE}" placeholder, per spec.md §6.
 * @param publicKeyURLTemplate The public_key_url template; must also
 * contain "${CERTIFICATE}".
 * @param readFile The file-reading function to use, injected so tests
 * can avoid a real filesystem.
 * @returns A *TemplateCertStore ready for ByCallerTN lookups.
 */
func NewTemplateCertStore(pathTemplate, publicKeyURLTemplate string, readFile func(string) ([]byte, error)) *TemplateCertStore {
	return &TemplateCertStore{
		pathTemplate:         pathTemplate,
		publicKeyURLTemplate: publicKeyURLTemplate,
		readFile:             readFile,
	}
}

func (s *TemplateCertStore) ByCallerTN(ctx context.Context, tn string) (*Handle, error) {
	path := strings.ReplaceAll(s.pathTemplate, "${CERTIFICATE}", tn)
	publicKeyURL := strings.ReplaceAll(s.publicKeyURLTemplate, "${CERTIFICATE}", tn)

	pem, err := s.readFile(path)
	if err != nil {
		return nil, shakenerr.NoCertificateError("no certificate on disk for caller_tn=%s: %v", tn, err)
	}

	atomic.AddInt64(&s.liveRefs, 1)
	return &Handle{
		PublicKeyURL:  publicKeyURL,
		privateKeyPEM: pem,
		refs:          &s.liveRefs,
	}, nil
}

func (s *TemplateCertStore) LiveRefs() int64 {
	return atomic.LoadInt64(&s.liveRefs)
}
