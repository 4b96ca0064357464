// Package token implements the opaque checkout-session token exchanged with
// clients. A token is the base64url encoding of "orderID:cartRef", so it
// carries the engine's cart handle rather than pointing into bridge-local
// state: the bridge stays stateless and any replica can resume the session.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/ucplabs/ucp-bridge/pkg/errors"
)

// Identity is the decoded form of a session token. OrderID is zero while the
// session is still a cart and becomes the engine's order id after completion.
type Identity struct {
	OrderID int64
	CartRef string
}

// NewCartRef generates a fresh cart reference for a new session. Hex encoding
// guarantees the ref never contains the ":" delimiter.
func NewCartRef() string {
	b := make([]byte, 16)
	// rand.Read on crypto/rand never fails on supported platforms.
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Encode returns the opaque token for the given identity.
// Encode and Decode are inverses: Decode(Encode(x)) == x for every valid x.
func Encode(id Identity) string {
	composite := strconv.FormatInt(id.OrderID, 10) + ":" + id.CartRef
	return base64.RawURLEncoding.EncodeToString([]byte(composite))
}

// Decode parses a client-held token back into an Identity. Any input that is
// not a validly encoded token, including arbitrary adversarial bytes, yields
// an INVALID_TOKEN_FORMAT error; Decode never panics and never partially
// succeeds.
func Decode(tok string) (Identity, error) {
	if tok == "" {
		return Identity{}, apperrors.InvalidTokenFormat("token is empty")
	}

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		// Tolerate padded or standard-alphabet base64 from older clients.
		raw, err = base64.StdEncoding.DecodeString(tok)
		if err != nil {
			return Identity{}, apperrors.InvalidTokenFormat("token is not valid base64")
		}
	}

	// Split at the FIRST colon only: the order id is strictly numeric, so a
	// cart ref containing colons still round-trips.
	composite := string(raw)
	sep := strings.IndexByte(composite, ':')
	if sep < 0 {
		return Identity{}, apperrors.InvalidTokenFormat("token is missing the order delimiter")
	}

	orderID, err := strconv.ParseInt(composite[:sep], 10, 64)
	if err != nil || orderID < 0 {
		return Identity{}, apperrors.InvalidTokenFormat(fmt.Sprintf("token order id %q is not a non-negative integer", composite[:sep]))
	}

	cartRef := composite[sep+1:]
	if cartRef == "" {
		return Identity{}, apperrors.InvalidTokenFormat("token cart reference is empty")
	}

	return Identity{OrderID: orderID, CartRef: cartRef}, nil
}
