package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poly-pro/shaken/internal/shakenerr"
	"github.com/poly-pro/shaken/internal/validator"
)

func validHeader() map[string]any {
	return map[string]any{"ppt": "shaken", "typ": "passport", "alg": "ES256"}
}

func validPayload() map[string]any {
	return map[string]any{"orig": map[string]any{"tn": "12025550123"}}
}

func TestValidateAcceptsWellFormedProfile(t *testing.T) {
	t.Parallel()

	v, err := validator.Validate(validHeader(), validPayload())
	require.NoError(t, err)
	assert.Equal(t, "ES256", v.Algorithm)
	assert.Equal(t, "12025550123", validator.OrigTN(v.Payload))
}

func TestValidateRejectsMissingFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		header  map[string]any
		payload map[string]any
		field   string
	}{
		{"wrong ppt", map[string]any{"ppt": "other", "typ": "passport", "alg": "ES256"}, validPayload(), "ppt"},
		{"wrong typ", map[string]any{"ppt": "shaken", "typ": "other", "alg": "ES256"}, validPayload(), "typ"},
		{"wrong alg", map[string]any{"ppt": "shaken", "typ": "passport", "alg": "RS256"}, validPayload(), "alg"},
		{"missing orig.tn", validHeader(), map[string]any{"orig": map[string]any{}}, "payload.orig.tn"},
		{"missing orig", validHeader(), map[string]any{}, "payload.orig.tn"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := validator.Validate(tc.header, tc.payload)
			require.Error(t, err)
			se, ok := err.(*shakenerr.ShakenError)
			require.True(t, ok)
			assert.Equal(t, shakenerr.Profile, se.Type)
			assert.Equal(t, tc.field, se.Field)
		})
	}
}

func TestValidateRejectsNilHeaderOrPayload(t *testing.T) {
	t.Parallel()

	_, err := validator.Validate(nil, validPayload())
	require.Error(t, err)
	assert.True(t, shakenerr.Is(err, shakenerr.Input))

	_, err = validator.Validate(validHeader(), nil)
	require.Error(t, err)
	assert.True(t, shakenerr.Is(err, shakenerr.Input))
}

func TestValidateDeepCopiesInput(t *testing.T) {
	t.Parallel()

	header := validHeader()
	payload := validPayload()
	v, err := validator.Validate(header, payload)
	require.NoError(t, err)

	v.Header["ppt"] = "mutated"
	assert.Equal(t, "shaken", header["ppt"])

	origMap := v.Payload["orig"].(map[string]any)
	origMap["tn"] = "mutated"
	assert.Equal(t, "12025550123", payload["orig"].(map[string]any)["tn"])
}
