package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"chatrelay/pkg/config"
	"chatrelay/pkg/errs"
)

func signWith(key, userID string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

func setSigningKeys(t *testing.T, keys ...string) {
	t.Helper()
	rc := &config.RuntimeConfig{SigningKeys: map[string]struct{}{}}
	for _, k := range keys {
		rc.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(rc)
	t.Cleanup(func() { config.SetRuntime(&config.RuntimeConfig{}) })
}

func TestCanonicalID(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"alice", "alice", true},
		{"  alice  ", "alice", true},
		{"", "", false},
		{"   ", "", false},
		{"al ice", "", false},
		{"al\tice", "", false},
		{"al\x00ice", "", false},
		{"al:ice", "", false},
		{"al|ice", "", false},
		{strings.Repeat("a", 128), strings.Repeat("a", 128), true},
		{strings.Repeat("a", 129), "", false},
	}
	for _, c := range cases {
		got, err := CanonicalID(c.in)
		if c.ok {
			if err != nil || got != c.want {
				t.Fatalf("CanonicalID(%q) = %q, %v; want %q", c.in, got, err, c.want)
			}
			continue
		}
		if !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("CanonicalID(%q) expected validation error, got %q, %v", c.in, got, err)
		}
	}
}

func TestResolveUserIDTrustedWithoutKeys(t *testing.T) {
	setSigningKeys(t) // no keys configured
	r := httptest.NewRequest("GET", "/v1/peers", nil)
	r.Header.Set("X-User-ID", "alice")

	id, err := ResolveUserID(r)
	if err != nil || id != "alice" {
		t.Fatalf("trusted resolve failed: %q, %v", id, err)
	}
}

func TestResolveUserIDRequiresSignatureWhenKeyed(t *testing.T) {
	setSigningKeys(t, "secret-1")
	r := httptest.NewRequest("GET", "/v1/peers", nil)
	r.Header.Set("X-User-ID", "alice")

	if _, err := ResolveUserID(r); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected unauthorized without signature, got %v", err)
	}
}

func TestResolveUserIDVerifiesSignature(t *testing.T) {
	setSigningKeys(t, "secret-1", "secret-2")
	r := httptest.NewRequest("GET", "/v1/peers", nil)
	r.Header.Set("X-User-ID", "alice")
	r.Header.Set("X-User-Signature", signWith("secret-2", "alice"))

	id, err := ResolveUserID(r)
	if err != nil || id != "alice" {
		t.Fatalf("signed resolve failed: %q, %v", id, err)
	}

	r.Header.Set("X-User-Signature", signWith("wrong-key", "alice"))
	if _, err := ResolveUserID(r); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad signature, got %v", err)
	}
}

func TestResolveUserIDFromQueryParams(t *testing.T) {
	setSigningKeys(t, "secret-1")
	sig := signWith("secret-1", "alice")
	r := httptest.NewRequest("GET", "/v1/ws?user=alice&sig="+sig, nil)

	id, err := ResolveUserID(r)
	if err != nil || id != "alice" {
		t.Fatalf("query resolve failed: %q, %v", id, err)
	}
}

func TestResolveUserIDMissing(t *testing.T) {
	setSigningKeys(t)
	r := httptest.NewRequest("GET", "/v1/peers", nil)
	if _, err := ResolveUserID(r); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for missing id, got %v", err)
	}
}

func TestUserIDContextRoundTrip(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/peers", nil)
	ctx := WithUserID(r.Context(), "alice")
	if got := UserIDFromContext(ctx); got != "alice" {
		t.Fatalf("context round trip lost id: %q", got)
	}
	if got := UserIDFromContext(r.Context()); got != "" {
		t.Fatalf("empty context produced id: %q", got)
	}
}
