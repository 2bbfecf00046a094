package auth

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kingrea/twindeck/internal/store"
)

func testSettings() Settings {
	return Settings{
		ClientID:    "client-123",
		AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
		RedirectURI: "http://127.0.0.1:8970/auth/callback",
	}
}

func sequencedNonces(nonces ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		if i >= len(nonces) {
			return "", errors.New("out of nonces")
		}
		n := nonces[i]
		i++
		return n, nil
	}
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestBeginBuildsAuthURLAndPersistsNonce(t *testing.T) {
	mem := store.NewMemory()
	h := NewHandshake(testSettings(), mem,
		WithNonceSource(sequencedNonces("aabbccddeeff00112233445566778899")),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	)

	raw, err := h.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	query := parsed.Query()
	want := map[string]string{
		"client_id":     "client-123",
		"redirect_uri":  "http://127.0.0.1:8970/auth/callback",
		"response_type": "id_token",
		"scope":         "openid email profile",
		"nonce":         "aabbccddeeff00112233445566778899",
	}
	for key, value := range want {
		if got := query.Get(key); got != value {
			t.Errorf("query[%q] = %q, want %q", key, got, value)
		}
	}
	if h.State() != StatePending {
		t.Fatalf("state = %q, want %q", h.State(), StatePending)
	}
	if _, err := mem.Load("zklogin_request"); err != nil {
		t.Fatalf("pending request not persisted: %v", err)
	}
}

func TestRandomNonceIs128Bits(t *testing.T) {
	nonce, err := randomNonce()
	if err != nil {
		t.Fatalf("randomNonce: %v", err)
	}
	if len(nonce) != 32 {
		t.Fatalf("nonce length = %d, want 32 hex chars", len(nonce))
	}
	if strings.ToLower(nonce) != nonce {
		t.Fatalf("nonce %q is not lowercase hex", nonce)
	}
}

func TestCompleteVerifiesMatchingNonce(t *testing.T) {
	mem := store.NewMemory()
	h := NewHandshake(testSettings(), mem, WithNonceSource(sequencedNonces("nonce-one")))
	if _, err := h.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	token := signedToken(t, jwt.MapClaims{"iss": "https://accounts.google.com", "sub": "user-1", "nonce": "nonce-one"})
	if err := h.CompleteFromCallback(token, nil); err != nil {
		t.Fatalf("CompleteFromCallback: %v", err)
	}
	if h.State() != StateVerified {
		t.Fatalf("state = %q, want %q", h.State(), StateVerified)
	}
	if _, err := mem.Load("zklogin_request"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("pending request should be consumed, load err = %v", err)
	}
}

func TestStaleRedirectFailsAfterSecondBegin(t *testing.T) {
	mem := store.NewMemory()
	h := NewHandshake(testSettings(), mem, WithNonceSource(sequencedNonces("first", "second")))

	if _, err := h.Begin(); err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	staleToken := signedToken(t, jwt.MapClaims{"iss": "iss", "sub": "sub", "nonce": "first"})

	if _, err := h.Begin(); err != nil {
		t.Fatalf("second Begin: %v", err)
	}

	err := h.CompleteFromCallback(staleToken, nil)
	if !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("stale callback err = %v, want ErrNonceMismatch", err)
	}
	if h.State() != StateFailed {
		t.Fatalf("state = %q, want %q", h.State(), StateFailed)
	}

	// The slot was consumed by the stale callback, so even the fresh
	// redirect cannot verify any more.
	freshToken := signedToken(t, jwt.MapClaims{"iss": "iss", "sub": "sub", "nonce": "second"})
	if err := h.CompleteFromCallback(freshToken, nil); !errors.Is(err, ErrMissingNonce) {
		t.Fatalf("second callback err = %v, want ErrMissingNonce", err)
	}
}

func TestCompleteWithoutTokenFails(t *testing.T) {
	h := NewHandshake(testSettings(), store.NewMemory())
	if _, err := h.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := h.CompleteFromCallback("", nil); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("err = %v, want ErrMissingToken", err)
	}
	if h.State() != StateFailed {
		t.Fatalf("state = %q, want %q", h.State(), StateFailed)
	}
}

func TestCompleteWithoutPendingRequestFails(t *testing.T) {
	h := NewHandshake(testSettings(), store.NewMemory())
	token := signedToken(t, jwt.MapClaims{"nonce": "whatever"})
	if err := h.CompleteFromCallback(token, nil); !errors.Is(err, ErrMissingNonce) {
		t.Fatalf("err = %v, want ErrMissingNonce", err)
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	h := NewHandshake(testSettings(), store.NewMemory())
	if _, err := h.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := h.CompleteFromCallback("", nil); err == nil {
		t.Fatal("expected failure")
	}
	h.Reset()
	if h.State() != StateIdle {
		t.Fatalf("state = %q, want %q", h.State(), StateIdle)
	}
}

func TestDeriveAddressIsDeterministic(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"iss": "https://accounts.google.com", "sub": "user-42"})

	first, err := DeriveAddress(token)
	if err != nil {
		t.Fatalf("DeriveAddress: %v", err)
	}
	second, err := DeriveAddress(token)
	if err != nil {
		t.Fatalf("DeriveAddress: %v", err)
	}
	if first != second {
		t.Fatalf("addresses differ: %q vs %q", first, second)
	}
	if !strings.HasPrefix(first, "0x") || len(first) != 42 {
		t.Fatalf("address %q is not a 0x-prefixed 20-byte hex string", first)
	}

	other := signedToken(t, jwt.MapClaims{"iss": "https://accounts.google.com", "sub": "user-43"})
	otherAddr, err := DeriveAddress(other)
	if err != nil {
		t.Fatalf("DeriveAddress: %v", err)
	}
	if otherAddr == first {
		t.Fatal("different subjects derived the same address")
	}
}

func TestDeriveAddressRequiresSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"iss": "issuer-only"})
	if _, err := DeriveAddress(token); err == nil {
		t.Fatal("expected error for token without subject")
	}
}

func TestServerSettingsAddress(t *testing.T) {
	s := ServerSettings{Port: 8970}
	s.Normalize()
	if got, want := s.Address(), "127.0.0.1:8970"; got != want {
		t.Fatalf("Address() = %q, want %q", got, want)
	}
	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 || s.IdleTimeout <= 0 {
		t.Fatal("Normalize left a timeout unset")
	}
}
