/**
 * @description
 * This file defines the shared result shape the sign and verify
 * orchestrators (sign.go, verify.go) both return.
 *
 * Key features:
 * - One Shape, Two Aliases: SignedPayload and VerifiedPayload are the
 *   same underlying Payload struct per spec.md §3, so callers handling
 *   both outcomes don't need to juggle two incompatible types.
 */

package core

// SignedPayload and VerifiedPayload share one shape, per spec.md §3:
// the single object both Sign and Verify return. Every field is
// non-empty on a successfully returned payload; a partially-built one
// is never returned to a caller.
type Payload struct {
	Header       map[string]any `json:"header"`
	Payload      map[string]any `json:"payload"`
	Signature    string         `json:"signature"`
	Algorithm    string         `json:"algorithm"`
	PublicKeyURL string         `json:"public_key_url"`
}

// SignedPayload is the result of a successful Sign call.
type SignedPayload = Payload

// VerifiedPayload is the result of a successful Verify call.
type VerifiedPayload = Payload

// FreePayload releases a payload. Go's garbage collector reclaims the
// memory on its own; this exists to preserve the explicit
// acquire/release symmetry of spec.md §6's public API (`free_payload`)
// for callers translating from a reference-counted host environment.
func FreePayload(p *Payload) {
	if p == nil {
		return
	}
	p.Header = nil
	p.Payload = nil
	p.Signature = ""
}
