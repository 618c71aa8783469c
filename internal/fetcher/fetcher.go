/**
 * @description
 * This file implements the external collaborator spec.md §4.3
 * describes: downloading a certificate to a destination path and
 * exposing the response's cache-control metadata.
 *
 * Key features:
 * - Bare net/http Client: modeled on the teacher's gamma_client.go
 *   HTTP-fetch idiom — no third-party HTTP client appears anywhere in
 *   the pack, so none is introduced here either.
 * - Cache Metadata Passthrough: Fetch returns Cache-Control/Expires
 *   verbatim so the key store's own expiration logic stays in one
 *   place rather than being duplicated into the fetcher.
 *
 * @notes
 * - On failure destPath's contents are unspecified; callers must treat
 *   any pre-existing cache entry as invalid, per spec.md §4.3.
 */

package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/poly-pro/shaken/internal/shakenerr"
)

// ResponseMeta exposes the two cache directives the key store needs
// to compute an expiration.
type ResponseMeta struct {
	CacheControl string
	Expires      string
}

// Fetcher is the narrow contract the verify orchestrator consumes.
type Fetcher interface {
	Fetch(ctx context.Context, url, destPath string) (ResponseMeta, error)
}

// HTTPFetcher downloads a PEM certificate over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
	logger *slog.Logger
}

/**
 * @description
 * New builds an HTTPFetcher honoring general.curl_timeout.
 *
 * @param timeout The per-request timeout, from config's general.curl_timeout.
 * @param logger A structured logger for fetch failures.
 * @returns A *HTTPFetcher ready for use by the verify orchestrator.
 */
func New(timeout time.Duration, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch downloads url to destPath. On failure destPath's contents are
// unspecified; callers must treat any pre-existing cache entry as
// invalid, per spec.md §4.3.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, destPath string) (ResponseMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ResponseMeta{}, shakenerr.FetchError(err, "build request for %s", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("fetch failed", "url", url, "error", err)
		return ResponseMeta{}, shakenerr.FetchError(err, "GET %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Error("fetch returned non-200", "url", url, "status", resp.StatusCode)
		return ResponseMeta{}, shakenerr.FetchError(nil, "GET %s: status %d", url, resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return ResponseMeta{}, shakenerr.FetchError(err, "create %s", destPath)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return ResponseMeta{}, shakenerr.FetchError(err, "write %s", destPath)
	}

	return ResponseMeta{
		CacheControl: resp.Header.Get("Cache-Control"),
		Expires:      resp.Header.Get("Expires"),
	}, nil
}
