// Package auth resolves session tokens to a principal. Tokens are the formal
// stand-in for the identity provider contract: an HMAC-signed triple of
// identity, role claim, and expiry. Role is re-resolved on every request so a
// role change takes effect without re-issuing an upload.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ananthjv/pixlift/internal/model"
)

var (
	ErrMalformedToken = errors.New("malformed session token")
	ErrBadSignature   = errors.New("invalid token signature")
	ErrTokenExpired   = errors.New("session token expired")
)

// Principal is the resolved caller context.
type Principal struct {
	Identity string
	Role     model.Role
}

// Resolver verifies session tokens against a shared secret.
type Resolver struct {
	secret []byte
}

// NewResolver creates a Resolver.
func NewResolver(secret []byte) *Resolver {
	return &Resolver{secret: secret}
}

// Token mints a session token for the identity/role pair, valid until expires.
// In production this belongs to the identity provider; it lives here so the
// CLI and tests can mint tokens against a dev deployment.
func (r *Resolver) Token(identity string, role model.Role, expires time.Time) string {
	exp := expires.Unix()
	return fmt.Sprintf("%s:%s:%d:%s", identity, role, exp, r.sign(identity, string(role), exp))
}

// Resolve validates the token and returns the principal it names. Unknown role
// claims degrade to the user role; absence of the admin marker never grants
// privilege.
func (r *Resolver) Resolve(token string) (Principal, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 4 {
		return Principal{}, ErrMalformedToken
	}
	identity, roleClaim, expStr, sig := parts[0], parts[1], parts[2], parts[3]
	if identity == "" {
		return Principal{}, ErrMalformedToken
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return Principal{}, ErrMalformedToken
	}
	expected := r.sign(identity, roleClaim, exp)
	// hmac.Equal compares in constant time.
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return Principal{}, ErrBadSignature
	}
	if time.Now().After(time.Unix(exp, 0)) {
		return Principal{}, ErrTokenExpired
	}
	return Principal{Identity: identity, Role: model.ParseRole(roleClaim)}, nil
}

func (r *Resolver) sign(identity, role string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, r.secret)
	fmt.Fprintf(mac, "%s:%s:%d", identity, role, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}
