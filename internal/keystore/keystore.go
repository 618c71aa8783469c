/**
 * @description
 * This file implements the URL-addressed public-key cache described in
 * spec.md §4.2: a stable SHA-1(url) hash indexes a filesystem path and
 * an expiration timestamp in an external KV (see kv.go).
 *
 * Key features:
 * - Two-Family KV Scheme: `stir_shaken[url] = hash` plus
 *   `hash[{path,expiration}] = value`, so looking up a url never scans
 *   more than two keys.
 * - Cache-Control Aware Expiration: s-maxage takes precedence over
 *   max-age, which takes precedence over the Expires header, matching
 *   the precedence browsers use for HTTP caching.
 * - Single-Refetch Recovery: Remove tears down both the index entry and
 *   the whole hash subtree together, so a stale or corrupt cache entry
 *   can never be left half-removed.
 *
 * @dependencies
 * - github.com/poly-pro/shaken/internal/shakenerr: typed errors for
 *   KV/filesystem failures.
 */

package keystore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/poly-pro/shaken/internal/cryptoutil"
	"github.com/poly-pro/shaken/internal/shakenerr"
)

const (
	// indexFamily holds url -> sha1(url) hex.
	indexFamily = "stir_shaken"

	pathField       = "path"
	expirationField = "expiration"
)

// Now is overridable in tests; production code leaves it as time.Now.
var Now = time.Now

// KeyStore maps a public_key_url to a cached PEM path and expiration,
// per spec.md §4.2. It owns no files itself; the Fetcher writes them.
type KeyStore struct {
	kv KVStore
}

/**
 * @description
 * New builds a KeyStore over the given KV.
 *
 * @param kv The KVStore backing the cache; RedisKV in production, a
 * fake in tests.
 * @returns A *KeyStore ready for Lookup/Put/SetExpiration/IsExpired/Remove.
 */
func New(kv KVStore) *KeyStore {
	return &KeyStore{kv: kv}
}

// Hash renders SHA-1(url) as 40 lowercase hex characters. It is an
// opaque key into the KV, not a security primitive.
func Hash(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached path for url, or "" if the url is not
// indexed.
func (ks *KeyStore) Lookup(ctx context.Context, url string) (string, error) {
	hash, err := ks.kv.Get(ctx, indexFamily, url)
	if err != nil {
		return "", err
	}
	if hash == "" {
		return "", nil
	}
	path, err := ks.kv.Get(ctx, hash, pathField)
	if err != nil {
		return "", err
	}
	return path, nil
}

// Put records url -> hash -> {path}, overwriting any prior entry for
// the same url.
func (ks *KeyStore) Put(ctx context.Context, url, path string) error {
	hash := Hash(url)
	if err := ks.kv.Put(ctx, indexFamily, url, hash); err != nil {
		return err
	}
	return ks.kv.Put(ctx, hash, pathField, path)
}

// SetExpiration computes the absolute expiration epoch from the
// fetcher's response headers per spec.md §4.2's precedence rules:
// s-maxage, then max-age, then Expires, else now.
func (ks *KeyStore) SetExpiration(ctx context.Context, url string, cacheControl, expires string) error {
	hash := Hash(url)
	exp := expirationFromHeaders(cacheControl, expires)
	return ks.kv.Put(ctx, hash, expirationField, strconv.FormatInt(exp, 10))
}

func expirationFromHeaders(cacheControl, expires string) int64 {
	now := Now().Unix()
	if n, ok := maxAgeDirective(cacheControl, "s-maxage"); ok {
		return now + n
	}
	if n, ok := maxAgeDirective(cacheControl, "max-age"); ok {
		return now + n
	}
	if expires != "" {
		if t, err := http.ParseTime(expires); err == nil {
			return t.Unix()
		}
		for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
			if t, err := time.Parse(layout, expires); err == nil {
				return t.Unix()
			}
		}
	}
	return now
}

func maxAgeDirective(cacheControl, directive string) (int64, bool) {
	if cacheControl == "" {
		return 0, false
	}
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.TrimSpace(part)
		prefix := directive + "="
		if strings.HasPrefix(part, prefix) {
			n, err := strconv.ParseInt(strings.TrimPrefix(part, prefix), 10, 64)
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

// IsExpired reports true if no expiration is recorded, the stored
// value fails to parse, or now >= expiration.
func (ks *KeyStore) IsExpired(ctx context.Context, url string) (bool, error) {
	hash := Hash(url)
	raw, err := ks.kv.Get(ctx, hash, expirationField)
	if err != nil {
		return true, err
	}
	if raw == "" {
		return true, nil
	}
	exp, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return true, nil
	}
	return Now().Unix() >= exp, nil
}

// Remove deletes the PEM file at the stored path (best-effort),
// removes the url -> hash index entry, and deletes the entire
// hash.* subtree, per spec.md §4.2's recovery invariant.
func (ks *KeyStore) Remove(ctx context.Context, url string) error {
	hash, err := ks.kv.Get(ctx, indexFamily, url)
	if err != nil {
		return err
	}
	if hash != "" {
		path, _ := ks.kv.Get(ctx, hash, pathField)
		if path != "" {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				return shakenerr.StoreError(rmErr, "remove cached PEM %s", path)
			}
		}
		if err := ks.kv.DelTree(ctx, hash, ""); err != nil {
			return err
		}
	}
	return ks.kv.Del(ctx, indexFamily, url)
}

// DefaultPath computes ${dataDir}/keys/stir_shaken/${basename(url)},
// the filesystem layout spec.md §6 mandates, reusing cryptoutil's url
// basename logic rather than reimplementing it. The core does not
// create intermediate directories; a deployment step must ensure they
// exist.
func DefaultPath(dataDir, url string) string {
	return fmt.Sprintf("%s/keys/stir_shaken/%s", strings.TrimRight(dataDir, "/"), cryptoutil.BasenameURL(url))
}
