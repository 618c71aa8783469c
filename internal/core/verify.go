/**
 * @description
 * This file drives the verify orchestrator: the cache lookup, fetch,
 * freshness check, key read and signature check state machine from
 * spec.md §4.5.
 *
 * Key features:
 * - Single Refetch Recovery: a stale cache entry or a corrupt cached
 *   PEM triggers exactly one refetch attempt before failing, per
 *   spec.md §4.5's retry discipline.
 * - Cache Index Hygiene: a key is always removed from the store before
 *   it is refetched, so a crash mid-refetch never leaves a stale index
 *   entry pointing at a file that was about to be replaced.
 *
 * @dependencies
 * - internal/keystore: cache lookup, expiration and removal.
 * - internal/fetcher: downloads a fresh public key on cache miss/stale.
 * - internal/cryptoutil: ES256 signature verification.
 */

package core

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"os"

	"github.com/poly-pro/shaken/internal/cryptoutil"
	"github.com/poly-pro/shaken/internal/keystore"
	"github.com/poly-pro/shaken/internal/logging"
	"github.com/poly-pro/shaken/internal/shakenerr"
)

/**
 * @description
 * Verify drives the cache lookup -> fetch -> freshness check -> read
 * key -> signature check state machine from spec.md §4.5, with at
 * most one refetch attempt on a stale or unreadable cached key.
 *
 * @param header The PASSporT header as a raw JSON string.
 * @param payload The PASSporT payload as a raw JSON string; also the
 * exact bytes checked against signature.
 * @param signature The ES256 signature to verify, as standard padded base64.
 * @param algorithm The signing algorithm claimed by the caller.
 * @param publicKeyURL The x5u URL the public key is fetched/cached from.
 * @returns The verified payload on success.
 * @returns A typed *shakenerr.ShakenError describing which step failed.
 */
func (c *Core) Verify(ctx context.Context, header, payload, signature, algorithm, publicKeyURL string) (*VerifiedPayload, error) {
	ctx, reqID := logging.WithRequestID(ctx)
	log := c.logger.With("request_id", reqID, "op", "verify")

	if header == "" || payload == "" || signature == "" || algorithm == "" || publicKeyURL == "" {
		log.Error("verify rejected: missing argument")
		return nil, shakenerr.InputError("verify requires header, payload, signature, algorithm and public_key_url")
	}

	path, err := c.keyStore.Lookup(ctx, publicKeyURL)
	if err != nil {
		log.Error("key store lookup failed", "error", err)
		return nil, err
	}

	fetched := false
	if path == "" {
		if err := c.keyStore.Remove(ctx, publicKeyURL); err != nil {
			log.Error("key store remove failed before fetch", "error", err)
			return nil, err
		}
		path = keystore.DefaultPath(c.dataDir, publicKeyURL)
		if err := c.fetchAndCache(ctx, publicKeyURL, path); err != nil {
			log.Error("initial fetch failed", "error", err, "url", publicKeyURL)
			return nil, err
		}
		fetched = true
	}

	expired, err := c.keyStore.IsExpired(ctx, publicKeyURL)
	if err != nil {
		log.Error("expiration check failed", "error", err)
		return nil, err
	}
	if expired {
		log.Debug("cached key is stale", "url", publicKeyURL)
		if err := c.keyStore.Remove(ctx, publicKeyURL); err != nil {
			log.Error("key store remove failed after stale check", "error", err)
			return nil, err
		}
		if fetched {
			log.Error("freshly fetched key is already expired", "url", publicKeyURL)
			return nil, shakenerr.StaleAfterRefetchError("freshly fetched key for %s is already expired", publicKeyURL)
		}
		if err := c.fetchAndCache(ctx, publicKeyURL, path); err != nil {
			log.Error("refetch after stale cache failed", "error", err, "url", publicKeyURL)
			return nil, err
		}
		fetched = true
		expired, err = c.keyStore.IsExpired(ctx, publicKeyURL)
		if err != nil {
			log.Error("expiration check after refetch failed", "error", err)
			return nil, err
		}
		if expired {
			log.Error("refetched key is already expired", "url", publicKeyURL)
			return nil, shakenerr.StaleAfterRefetchError("freshly fetched key for %s is already expired", publicKeyURL)
		}
	}

	pub, err := c.readPublicKey(path)
	if err != nil {
		log.Debug("cached PEM unreadable", "path", path, "error", err)
		if err2 := c.keyStore.Remove(ctx, publicKeyURL); err2 != nil {
			log.Error("key store remove failed after read failure", "error", err2)
			return nil, err2
		}
		if fetched {
			log.Error("freshly fetched key unreadable", "path", path, "error", err)
			return nil, shakenerr.KeyReadError(err, "cached key at %s unreadable after refetch", path)
		}
		if err := c.fetchAndCache(ctx, publicKeyURL, path); err != nil {
			log.Error("refetch after read failure failed", "error", err, "url", publicKeyURL)
			return nil, err
		}
		pub, err = c.readPublicKey(path)
		if err != nil {
			log.Error("refetched key unreadable", "path", path, "error", err)
			if err2 := c.keyStore.Remove(ctx, publicKeyURL); err2 != nil {
				return nil, err2
			}
			return nil, shakenerr.KeyReadError(err, "cached key at %s unreadable after refetch", path)
		}
	}

	ok, err := cryptoutil.Verify([]byte(payload), signature, pub)
	if err != nil {
		log.Error("crypto verify errored", "error", err)
		return nil, err
	}
	if !ok {
		log.Error("signature mismatch", "url", publicKeyURL)
		return nil, shakenerr.SignatureError("ES256 signature does not verify for %s", publicKeyURL)
	}

	var headerObj, payloadObj map[string]any
	if err := json.Unmarshal([]byte(header), &headerObj); err != nil {
		log.Error("header is not valid JSON", "error", err)
		return nil, shakenerr.InputError("header is not valid JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(payload), &payloadObj); err != nil {
		log.Error("payload is not valid JSON", "error", err)
		return nil, shakenerr.InputError("payload is not valid JSON: %v", err)
	}

	result := &VerifiedPayload{
		Header:       headerObj,
		Payload:      payloadObj,
		Signature:    signature,
		Algorithm:    algorithm,
		PublicKeyURL: publicKeyURL,
	}

	c.events.Publish(ctx, "verify.succeeded", map[string]any{
		"public_key_url": publicKeyURL,
		"request_id":     reqID,
	})
	log.Info("verify succeeded", "url", publicKeyURL)
	return result, nil
}

// fetchAndCache downloads url to path, records the response's
// freshness in the key store, then indexes the path. Step 3 of
// spec.md §4.5, factored out because it runs on both the initial
// miss and the single permitted refetch.
func (c *Core) fetchAndCache(ctx context.Context, url, path string) error {
	meta, err := c.fetcher.Fetch(ctx, url, path)
	if err != nil {
		return err
	}
	if err := c.keyStore.SetExpiration(ctx, url, meta.CacheControl, meta.Expires); err != nil {
		return err
	}
	return c.keyStore.Put(ctx, url, path)
}

func (c *Core) readPublicKey(path string) (*ecdsa.PublicKey, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return cryptoutil.ParsePublicKeyPEM(pem)
}
