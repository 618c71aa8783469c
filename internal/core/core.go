/**
 * @description
 * This file defines Core, the struct that threads every external
 * collaborator spec.md §6 names through the sign and verify
 * orchestrators, plus its functional-option constructor.
 *
 * Key features:
 * - Dependency Injection: the key store, fetcher, certificate store
 *   and event sink are all injected, matching
 *   backend/internal/api/server.go's NewServer construction pattern.
 * - Functional Options: WithEventSink follows the teacher's preference
 *   for small, composable Option funcs over a sprawling constructor
 *   signature or a half-built struct literal.
 *
 * @notes
 * - Constructed once at process init and held for the life of the
 *   service, per spec.md §9's "explicit dependencies threaded through
 *   a Core struct" design note.
 */

package core

import (
	"context"
	"log/slog"

	"github.com/poly-pro/shaken/internal/certstore"
	"github.com/poly-pro/shaken/internal/fetcher"
	"github.com/poly-pro/shaken/internal/keystore"
)

// EventSink receives audit notifications for every completed sign or
// verify call. internal/audit implements this; Core depends only on
// the interface to avoid importing the transport-facing audit package
// from the core.
type EventSink interface {
	Publish(ctx context.Context, kind string, detail map[string]any)
}

type noopSink struct{}

func (noopSink) Publish(context.Context, string, map[string]any) {}

// Core is the single struct threading every external collaborator
// spec.md §6 names through the sign/verify orchestrators: the key
// store, the fetcher, the certificate store, and the data directory
// PEM files are cached under. Constructed once at process init and
// held for the life of the service, per spec.md §9's "explicit
// dependencies threaded through a Core struct" design note.
type Core struct {
	keyStore  *keystore.KeyStore
	fetcher   fetcher.Fetcher
	certStore certstore.CertStore
	dataDir   string
	logger    *slog.Logger
	events    EventSink
}

// Option configures a Core at construction time.
type Option func(*Core)

// WithEventSink attaches an audit event sink; omit to run without one.
func WithEventSink(sink EventSink) Option {
	return func(c *Core) { c.events = sink }
}

/**
 * @description
 * New builds a Core from its external collaborators.
 *
 * @param ks The key store backing the verify orchestrator's cache.
 * @param f The fetcher used to download public keys.
 * @param cs The certificate store used by the sign orchestrator.
 * @param dataDir The root directory cached PEM files are written under.
 * @param logger A structured logger shared by both orchestrators.
 * @param opts Functional options, e.g. WithEventSink.
 * @returns A *Core ready for Sign/Verify calls.
 */
func New(ks *keystore.KeyStore, f fetcher.Fetcher, cs certstore.CertStore, dataDir string, logger *slog.Logger, opts ...Option) *Core {
	c := &Core{
		keyStore:  ks,
		fetcher:   f,
		certStore: cs,
		dataDir:   dataDir,
		logger:    logger,
		events:    noopSink{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases resources owned directly by the Core. The key store,
// fetcher and certificate store own their own Redis/HTTP/Postgres
// connections and are closed independently by the process that
// constructed them, per spec.md §9's "module lifecycle glue is an
// external collaborator" scoping.
func (c *Core) Close() error { return nil }
