package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/ananthjv/pixlift/internal/model"
)

func TestResolveRoundTrip(t *testing.T) {
	r := NewResolver([]byte("topsecret"))
	token := r.Token("alice", model.RoleAdmin, time.Now().Add(time.Hour))
	p, err := r.Resolve(token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.Identity != "alice" {
		t.Fatalf("identity = %q, want alice", p.Identity)
	}
	if p.Role != model.RoleAdmin {
		t.Fatalf("role = %q, want admin", p.Role)
	}
}

func TestResolveRejectsTampering(t *testing.T) {
	r := NewResolver([]byte("topsecret"))
	token := r.Token("alice", model.RoleUser, time.Now().Add(time.Hour))
	// Promote the role claim without re-signing.
	tampered := "alice:admin" + token[len("alice:user"):]
	if _, err := r.Resolve(tampered); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}

func TestResolveRejectsWrongSecret(t *testing.T) {
	token := NewResolver([]byte("one")).Token("bob", model.RoleUser, time.Now().Add(time.Hour))
	if _, err := NewResolver([]byte("two")).Resolve(token); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}

func TestResolveRejectsExpired(t *testing.T) {
	r := NewResolver([]byte("topsecret"))
	token := r.Token("alice", model.RoleUser, time.Now().Add(-time.Minute))
	if _, err := r.Resolve(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestResolveMalformed(t *testing.T) {
	r := NewResolver([]byte("topsecret"))
	for _, token := range []string{"", "a:b", "a:b:c:d:e", ":user:123:sig"} {
		if _, err := r.Resolve(token); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("token %q: err = %v, want ErrMalformedToken", token, err)
		}
	}
}

func TestUnknownRoleClaimDegradesToUser(t *testing.T) {
	r := NewResolver([]byte("topsecret"))
	token := r.Token("carol", model.Role("superuser"), time.Now().Add(time.Hour))
	p, err := r.Resolve(token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.Role != model.RoleUser {
		t.Fatalf("role = %q, want user fallback", p.Role)
	}
}
