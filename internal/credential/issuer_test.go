package credential

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/ananthjv/pixlift/internal/model"
)

type fakePresigner struct {
	lastKey  string
	lastMeta map[string]string
}

func (f *fakePresigner) PresignUpload(ctx context.Context, objectKey string, expiry time.Duration, userMeta map[string]string) (*url.URL, http.Header, error) {
	f.lastKey = objectKey
	f.lastMeta = userMeta
	headers := http.Header{}
	for k, v := range userMeta {
		headers.Set("x-amz-meta-"+k, v)
	}
	u, _ := url.Parse("http://store.local/raw/" + objectKey)
	return u, headers, nil
}

func TestIssueKeysAreUnique(t *testing.T) {
	issuer := NewIssuer(&fakePresigner{}, 5*time.Minute)
	req := model.NewUploadRequest("alice", model.RoleUser, 80, false)
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		grant, err := issuer.Issue(context.Background(), req, "photo.jpg")
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if seen[grant.AssetKey] {
			t.Fatalf("asset key %s issued twice", grant.AssetKey)
		}
		seen[grant.AssetKey] = true
	}
}

func TestIssueEmbedsCallerContext(t *testing.T) {
	presigner := &fakePresigner{}
	issuer := NewIssuer(presigner, 5*time.Minute)
	req := model.NewUploadRequest("alice", model.RoleAdmin, 65, true)
	grant, err := issuer.Issue(context.Background(), req, "photo.png")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// The context a downstream reader recovers must be exactly what was
	// embedded at issuance.
	decoded, fileName := DecodeContext(presigner.lastMeta)
	if decoded.Identity != "alice" || decoded.Role != model.RoleAdmin {
		t.Fatalf("decoded context %+v, want alice/admin", decoded)
	}
	if decoded.Quality != 65 || !decoded.KeepOriginal {
		t.Fatalf("decoded options %+v, want quality 65 keepOriginal", decoded)
	}
	if fileName != "photo.png" {
		t.Fatalf("file name = %q, want photo.png", fileName)
	}
	if grant.Headers["X-Amz-Meta-Owner"] != "alice" {
		t.Fatalf("grant headers missing owner metadata: %v", grant.Headers)
	}
	if grant.Headers["X-Amz-Meta-Ctx-Version"] != ContextVersion {
		t.Fatalf("grant headers missing context version: %v", grant.Headers)
	}
}

func TestIssueExpiryHorizon(t *testing.T) {
	issuer := NewIssuer(&fakePresigner{}, 300*time.Second)
	grant, err := issuer.Issue(context.Background(), model.NewUploadRequest("bob", model.RoleUser, 80, false), "b.jpg")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	until := time.Until(grant.ExpiresAt)
	if until <= 290*time.Second || until > 300*time.Second {
		t.Fatalf("expiry horizon %v, want about 300s", until)
	}
}

func TestDecodeContextCanonicalizedKeys(t *testing.T) {
	// Stores return user metadata with canonicalized keys and no prefix.
	decoded, _ := DecodeContext(map[string]string{
		"Owner":         "carol",
		"Role":          "guest",
		"Quality":       "95",
		"Keep-Original": "true",
		"Ctx-Version":   "1",
	})
	if decoded.Identity != "carol" || decoded.Role != model.RoleGuest {
		t.Fatalf("decoded %+v, want carol/guest", decoded)
	}
	if decoded.Quality != 95 || !decoded.KeepOriginal {
		t.Fatalf("decoded options %+v", decoded)
	}
}

func TestDecodeContextDefaults(t *testing.T) {
	decoded, _ := DecodeContext(map[string]string{})
	if decoded.Identity != "anonymous" || decoded.Role != model.RoleGuest {
		t.Fatalf("decoded %+v, want anonymous guest", decoded)
	}
	if decoded.Quality != model.DefaultQuality || decoded.KeepOriginal {
		t.Fatalf("decoded options %+v, want defaults", decoded)
	}
}

func TestAssetKeyFromObject(t *testing.T) {
	if got := AssetKeyFromObject("abc-123.jpg"); got != "abc-123" {
		t.Fatalf("got %q", got)
	}
	if got := AssetKeyFromObject("abc-123"); got != "abc-123" {
		t.Fatalf("got %q", got)
	}
}
