// Package wallet models the connected identity and the opaque transaction
// signing capability. Nothing here executes on a real chain; descriptors are
// data handed to whatever capability backs SignAndExecute.
package wallet

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

// ErrNotConnected is returned when a capability call needs an account and
// none is connected.
var ErrNotConnected = errors.New("wallet: no account connected")

// ErrCapabilityFailed wraps rejections from the signing capability.
var ErrCapabilityFailed = errors.New("wallet: capability failed")

// Account identifies a connected wallet.
type Account struct {
	Address string
}

// ExecuteResult carries the digest of an executed transaction.
type ExecuteResult struct {
	Digest string
}

// Identity exposes the single gating question: is an identity connected, and
// which address is it. Absence is a valid state, not an error.
type Identity interface {
	CurrentAddress() (string, bool)
}

// StaticIdentity adapts a fixed address (for example one derived from a
// verified zkLogin token) into an Identity.
type StaticIdentity string

// CurrentAddress reports the fixed address.
func (s StaticIdentity) CurrentAddress() (string, bool) {
	return string(s), s != ""
}

// Wallet is the external wallet capability: connection lifecycle plus the
// opaque sign-and-execute call.
type Wallet interface {
	Connect(ctx context.Context) (Account, error)
	Disconnect()
	CurrentAccount() (Account, bool)
	SignAndExecute(ctx context.Context, tx Transaction) (ExecuteResult, error)
}

// LocalWallet is a deterministic stand-in for a browser wallet extension. The
// address is configured or generated on first connect; execution hashes the
// descriptor into a digest.
type LocalWallet struct {
	mu        sync.Mutex
	address   string
	connected bool
	nextErr   error
}

// NewLocalWallet creates a wallet with the given address. An empty address is
// replaced by a random one on Connect.
func NewLocalWallet(address string) *LocalWallet {
	return &LocalWallet{address: address}
}

// Connect establishes the session and returns the account.
func (w *LocalWallet) Connect(ctx context.Context) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.address == "" {
		addr, err := randomAddress()
		if err != nil {
			return Account{}, fmt.Errorf("wallet: generate address: %w", err)
		}
		w.address = addr
	}
	w.connected = true
	return Account{Address: w.address}, nil
}

// Disconnect drops the session. The address is kept for reconnects.
func (w *LocalWallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
}

// CurrentAccount returns the connected account, if any.
func (w *LocalWallet) CurrentAccount() (Account, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return Account{}, false
	}
	return Account{Address: w.address}, true
}

// CurrentAddress implements Identity.
func (w *LocalWallet) CurrentAddress() (string, bool) {
	acct, ok := w.CurrentAccount()
	return acct.Address, ok
}

// FailNext makes the next SignAndExecute call reject with the given cause.
// Used by tests and the demo failure path.
func (w *LocalWallet) FailNext(cause error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextErr = cause
}

// SignAndExecute signs the descriptor and returns a digest. The descriptor's
// on-chain meaning is outside this client's responsibility.
func (w *LocalWallet) SignAndExecute(ctx context.Context, tx Transaction) (ExecuteResult, error) {
	if err := ctx.Err(); err != nil {
		return ExecuteResult{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return ExecuteResult{}, ErrNotConnected
	}
	if w.nextErr != nil {
		cause := w.nextErr
		w.nextErr = nil
		return ExecuteResult{}, fmt.Errorf("%w: %v", ErrCapabilityFailed, cause)
	}
	encoded, err := tx.Encode()
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("%w: %v", ErrCapabilityFailed, err)
	}
	sum := sha256.Sum256(append([]byte(w.address), encoded...))
	return ExecuteResult{Digest: hex.EncodeToString(sum[:])}, nil
}

func randomAddress() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(buf), nil
}
