/**
 * @description
 * This file enforces the PASSporT/STIR-SHAKEN profile constraints
 * spec.md §4.4 requires of an input JWT-shaped JSON object before it
 * may be signed.
 *
 * Key features:
 * - Fixed Profile Check: header.ppt/typ/alg and payload.orig.tn are
 *   checked against exact expected values, not a general JSON schema.
 * - Deep Copy On Success: a successful Validate returns copies the
 *   caller can freely mutate, so the sign orchestrator's later
 *   mutation step never touches the caller's original maps.
 *
 * @notes
 * - Field checks use plain map type assertions, matching the teacher's
 *   own claim-checking style against `jwt.MapClaims` rather than a
 *   schema-validation library.
 */

package validator

import (
	"github.com/poly-pro/shaken/internal/shakenerr"
)

// Validated is the result of a successful profile validation: deep
// copies of the header and payload, plus the algorithm that was
// checked.
type Validated struct {
	Header    map[string]any
	Payload   map[string]any
	Algorithm string
}

/**
 * @description
 * Validate checks header.ppt, header.typ, header.alg and
 * payload.orig.tn against the fixed STIR/SHAKEN profile.
 *
 * @param header The candidate PASSporT header as a generic JSON object.
 * @param payload The candidate PASSporT payload as a generic JSON object.
 * @returns A *Validated holding deep copies of header and payload.
 * @returns A ProfileError naming the offending field on any mismatch,
 * or an InputError if header or payload is nil.
 */
func Validate(header, payload map[string]any) (*Validated, error) {
	if header == nil {
		return nil, shakenerr.InputError("header is empty")
	}
	if payload == nil {
		return nil, shakenerr.InputError("payload is empty")
	}

	if err := requireString(header, "ppt", "shaken"); err != nil {
		return nil, err
	}
	if err := requireString(header, "typ", "passport"); err != nil {
		return nil, err
	}
	if err := requireString(header, "alg", "ES256"); err != nil {
		return nil, err
	}

	tn, err := origTN(payload)
	if err != nil {
		return nil, err
	}
	if tn == "" {
		return nil, shakenerr.ProfileErrorf("payload.orig.tn", "non-empty string", "")
	}

	return &Validated{
		Header:    deepCopyMap(header),
		Payload:   deepCopyMap(payload),
		Algorithm: "ES256",
	}, nil
}

// OrigTN extracts payload.orig.tn, returning an empty string if any
// part of the path is missing or not a string.
func OrigTN(payload map[string]any) string {
	tn, _ := origTN(payload)
	return tn
}

func origTN(payload map[string]any) (string, error) {
	origAny, ok := payload["orig"]
	if !ok {
		return "", nil
	}
	orig, ok := origAny.(map[string]any)
	if !ok {
		return "", nil
	}
	tn, _ := orig["tn"].(string)
	return tn, nil
}

func requireString(obj map[string]any, field, expected string) error {
	got, ok := obj[field].(string)
	if !ok || got != expected {
		gotStr := got
		if !ok {
			gotStr = ""
		}
		return shakenerr.ProfileErrorf(field, expected, gotStr)
	}
	return nil
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
