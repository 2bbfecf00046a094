// Package auth implements the zkLogin-style OAuth handshake: a redirect to an
// external authorization endpoint correlated by a single-use random nonce.
// Token verification and proof generation are stubbed; only the nonce
// correlation and the claim plumbing are real.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kingrea/twindeck/internal/store"
)

// State tracks the handshake lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StatePending  State = "pending"
	StateVerified State = "verified"
	StateFailed   State = "failed"
)

var (
	// ErrMissingToken is reported when the callback carries no id_token.
	ErrMissingToken = errors.New("auth: callback missing id_token")
	// ErrMissingNonce is reported when no auth request is pending.
	ErrMissingNonce = errors.New("auth: no pending auth request")
	// ErrNonceMismatch is reported when the token was issued for a nonce
	// that is no longer the pending one.
	ErrNonceMismatch = errors.New("auth: nonce does not match pending request")
)

const requestKey = "zklogin_request"

// PendingAuthRequest is the single-slot nonce record that survives the
// redirect round trip. At most one may be outstanding; a new Begin
// overwrites it.
type PendingAuthRequest struct {
	ID        string    `json:"id"`
	Nonce     string    `json:"nonce"`
	CreatedAt time.Time `json:"createdAt"`
}

// Settings configures the handshake endpoints.
type Settings struct {
	ClientID    string
	AuthURL     string
	RedirectURI string
}

// Handshake drives the idle → pending → verified|failed state machine.
type Handshake struct {
	settings Settings
	store    store.Store
	now      func() time.Time
	newNonce func() (string, error)

	mu    sync.Mutex
	state State
}

// Option customizes a Handshake during construction.
type Option func(*Handshake)

// WithClock overrides the clock used for request timestamps.
func WithClock(clock func() time.Time) Option {
	return func(h *Handshake) {
		if clock != nil {
			h.now = clock
		}
	}
}

// WithNonceSource overrides the nonce generator.
func WithNonceSource(source func() (string, error)) Option {
	return func(h *Handshake) {
		if source != nil {
			h.newNonce = source
		}
	}
}

// NewHandshake builds a handshake persisting its pending request in s.
func NewHandshake(settings Settings, s store.Store, opts ...Option) *Handshake {
	h := &Handshake{
		settings: settings,
		store:    s,
		now:      func() time.Time { return time.Now().UTC() },
		newNonce: randomNonce,
		state:    StateIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// State returns the current lifecycle state.
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Begin generates a fresh nonce, persists it as the pending request and
// returns the authorization URL to open in the browser. Calling Begin while
// pending overwrites the slot, so only the newest redirect can ever verify.
func (h *Handshake) Begin() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	nonce, err := h.newNonce()
	if err != nil {
		return "", fmt.Errorf("auth: generate nonce: %w", err)
	}
	pending := PendingAuthRequest{
		ID:        uuid.NewString(),
		Nonce:     nonce,
		CreatedAt: h.now(),
	}
	encoded, err := json.Marshal(pending)
	if err != nil {
		return "", fmt.Errorf("auth: encode pending request: %w", err)
	}
	if err := h.store.Save(requestKey, encoded); err != nil {
		return "", fmt.Errorf("auth: persist pending request: %w", err)
	}
	h.state = StatePending

	target, err := url.Parse(h.settings.AuthURL)
	if err != nil {
		return "", fmt.Errorf("auth: parse auth url: %w", err)
	}
	query := url.Values{}
	query.Set("client_id", h.settings.ClientID)
	query.Set("redirect_uri", h.settings.RedirectURI)
	query.Set("response_type", "id_token")
	query.Set("scope", "openid email profile")
	query.Set("nonce", nonce)
	target.RawQuery = query.Encode()
	return target.String(), nil
}

// CompleteFromCallback processes the redirect return. The pending request is
// consumed whatever the outcome; success requires the token's nonce claim to
// match the consumed nonce.
func (h *Handshake) CompleteFromCallback(token string, fragment url.Values) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	pending, found := h.consumePending()
	if token == "" {
		h.state = StateFailed
		return ErrMissingToken
	}
	if !found {
		h.state = StateFailed
		return ErrMissingNonce
	}
	nonce := tokenNonce(token)
	if nonce == "" {
		nonce = fragment.Get("nonce")
	}
	if nonce != pending.Nonce {
		h.state = StateFailed
		return ErrNonceMismatch
	}
	h.state = StateVerified
	return nil
}

// Reset returns a terminal handshake to idle so a new attempt can begin.
func (h *Handshake) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateIdle
}

func (h *Handshake) consumePending() (PendingAuthRequest, bool) {
	data, err := h.store.Load(requestKey)
	if err != nil {
		return PendingAuthRequest{}, false
	}
	_ = h.store.Delete(requestKey)
	var pending PendingAuthRequest
	if err := json.Unmarshal(data, &pending); err != nil || pending.Nonce == "" {
		return PendingAuthRequest{}, false
	}
	return pending, true
}

// DeriveAddress computes a deterministic wallet address from the token's
// issuer and subject claims. Stands in for the real zkLogin address
// derivation, which needs a verified token and a proof.
func DeriveAddress(token string) (string, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return "", err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("auth: token has no subject claim")
	}
	iss, _ := claims["iss"].(string)
	sum := sha256.Sum256([]byte(iss + "|" + sub))
	return "0x" + hex.EncodeToString(sum[:20]), nil
}

func tokenNonce(token string) string {
	claims, err := parseClaims(token)
	if err != nil {
		return ""
	}
	nonce, _ := claims["nonce"].(string)
	return nonce
}

func parseClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	// Signature verification is out of scope here; claims are only used for
	// nonce correlation and the stub address derivation.
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	return claims, nil
}

func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
