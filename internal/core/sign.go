/**
 * @description
 * This file drives the sign orchestrator: the validate, resolve
 * certificate, mutate, serialize and sign state machine from
 * spec.md §4.6.
 *
 * Key features:
 * - Reference-Counted Certificate Leases: the certstore.Handle borrowed
 *   from ByCallerTN is always released via defer, on every exit path.
 * - In-Place Mutation: x5u/attest/origid/iat are set on the validated
 *   copy, never the caller's original maps, per spec.md §4.6 step 4.
 *
 * @dependencies
 * - internal/validator: profile validation and deep copy.
 * - internal/certstore: caller certificate resolution.
 * - internal/cryptoutil: ES256 signing.
 */

package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/poly-pro/shaken/internal/cryptoutil"
	"github.com/poly-pro/shaken/internal/logging"
	"github.com/poly-pro/shaken/internal/shakenerr"
	"github.com/poly-pro/shaken/internal/validator"
)

// DefaultOrigID is the placeholder origination identifier spec.md §9
// flags as a policy hook left unimplemented: the mapping from call
// context to a real per-call UUID is deferred to a future attestation
// policy engine, same as the constant "B" attest level below.
const DefaultOrigID = "00000000-0000-0000-0000-000000000000"

const placeholderAttest = "B"

/**
 * @description
 * Sign drives the validate -> resolve-certificate -> mutate ->
 * serialize -> sign state machine from spec.md §4.6.
 *
 * @param input Must carry "header" and "payload" JSON objects under
 * those keys.
 * @returns The signed payload, with x5u/attest/origid/iat populated.
 * @returns A typed *shakenerr.ShakenError describing which step failed.
 */
func (c *Core) Sign(ctx context.Context, input map[string]any) (*SignedPayload, error) {
	ctx, reqID := logging.WithRequestID(ctx)
	log := c.logger.With("request_id", reqID, "op", "sign")

	header, _ := input["header"].(map[string]any)
	payload, _ := input["payload"].(map[string]any)

	validated, err := validator.Validate(header, payload)
	if err != nil {
		log.Error("profile validation failed", "error", err)
		return nil, err
	}

	callerTN := validator.OrigTN(validated.Payload)

	cert, err := c.certStore.ByCallerTN(ctx, callerTN)
	if err != nil {
		log.Error("no certificate for caller", "caller_tn", callerTN, "error", err)
		return nil, err
	}
	defer cert.Release()

	// Step 4: mutate the validated copy in place.
	validated.Header["x5u"] = cert.PublicKeyURL
	validated.Payload["attest"] = placeholderAttest
	validated.Payload["origid"] = DefaultOrigID
	validated.Payload["iat"] = nowSecondsBug()

	// Step 5 serializes the mutated payload alone: the verify
	// orchestrator's step 6 (spec.md §4.5) checks Crypto.verify against
	// the payload only, so signing must cover exactly that string for
	// the two operations to agree on what was signed.
	serialized, err := json.Marshal(validated.Payload)
	if err != nil {
		log.Error("payload serialization failed", "error", err)
		return nil, shakenerr.InputError("failed to serialize signed payload: %v", err)
	}

	privKey, err := cert.PrivateKey()
	if err != nil {
		log.Error("private key unreadable", "error", err)
		return nil, err
	}

	sigB64, err := cryptoutil.Sign(serialized, privKey)
	if err != nil {
		log.Error("signing failed", "error", err)
		return nil, err
	}

	result := &SignedPayload{
		Header:       validated.Header,
		Payload:      validated.Payload,
		Signature:    sigB64,
		Algorithm:    validated.Algorithm,
		PublicKeyURL: cert.PublicKeyURL,
	}

	c.events.Publish(ctx, "sign.succeeded", map[string]any{
		"caller_tn":  callerTN,
		"request_id": reqID,
	})
	log.Info("sign succeeded", "caller_tn", callerTN)
	return result, nil
}

// nowSecondsBug reproduces spec.md §9's flagged-but-unfixed `iat`
// computation verbatim: tv_sec + tv_usec/1000, which mixes Unix
// seconds with fractional milliseconds rather than producing a clean
// integer timestamp. This is almost certainly a source bug; it is
// preserved rather than silently corrected, per spec.md §9's
// instruction not to "fix" open questions without a maintainer
// decision. See SPEC_FULL.md §9.
func nowSecondsBug() float64 {
	now := time.Now()
	tvSec := now.Unix()
	tvUsec := now.Nanosecond() / 1000
	return float64(tvSec) + float64(tvUsec)/1000.0
}
