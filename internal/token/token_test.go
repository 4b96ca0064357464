package token

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ucplabs/ucp-bridge/pkg/errors"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []Identity{
		{OrderID: 0, CartRef: NewCartRef()},
		{OrderID: 1, CartRef: "a"},
		{OrderID: 42, CartRef: "9f8e7d6c5b4a39281706f5e4d3c2b1a0"},
		{OrderID: 9223372036854775807, CartRef: NewCartRef()},
		// Cart refs containing the delimiter must still round-trip because
		// decode splits at the first colon only.
		{OrderID: 7, CartRef: "ref:with:colons"},
	}

	for _, id := range cases {
		tok := Encode(id)
		decoded, err := Decode(tok)
		require.NoError(t, err, "identity %+v", id)
		assert.Equal(t, id, decoded)
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":                "",
		"not base64":           "!!!\x00\xff",
		"no delimiter":         base64.RawURLEncoding.EncodeToString([]byte("justonefield")),
		"non-numeric order id": base64.RawURLEncoding.EncodeToString([]byte("abc:cartref")),
		"negative order id":    base64.RawURLEncoding.EncodeToString([]byte("-5:cartref")),
		"empty cart ref":       base64.RawURLEncoding.EncodeToString([]byte("12:")),
		"raw binary":           string([]byte{0x00, 0x01, 0x02, 0xfe, 0xff}),
		"huge garbage":         strings.Repeat("Zm9v", 10000) + "!",
	}

	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(tok)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})
	}
}

func TestDecode_AcceptsPaddedBase64(t *testing.T) {
	// Older clients may hand back standard padded base64 of the same bytes.
	id := Identity{OrderID: 3, CartRef: "deadbeef"}
	padded := base64.StdEncoding.EncodeToString([]byte("3:deadbeef"))

	decoded, err := Decode(padded)
	require.NoError(t, err)
	assert.Equal(t, id, decoded)
}

func TestNewCartRef_UniqueAndDelimiterFree(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := NewCartRef()
		assert.Len(t, ref, 32)
		assert.NotContains(t, ref, ":")
		assert.False(t, seen[ref], "cart ref collision: %s", ref)
		seen[ref] = true
	}
}
