package wallet

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestConnectGeneratesAddressOnce(t *testing.T) {
	w := NewLocalWallet("")
	if _, ok := w.CurrentAddress(); ok {
		t.Fatal("address available before connect")
	}
	acct, err := w.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !strings.HasPrefix(acct.Address, "0x") || len(acct.Address) != 42 {
		t.Fatalf("unexpected address: %q", acct.Address)
	}
	w.Disconnect()
	if _, ok := w.CurrentAccount(); ok {
		t.Fatal("account still visible after disconnect")
	}
	again, err := w.Connect(context.Background())
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if again.Address != acct.Address {
		t.Fatalf("address changed across reconnect: %q vs %q", again.Address, acct.Address)
	}
}

func TestSignAndExecuteRequiresConnection(t *testing.T) {
	w := NewLocalWallet("0xabc")
	tx := ListOnMarketplace("0xpkg", "0xasset", 100)
	if _, err := w.SignAndExecute(context.Background(), tx); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("got %v, want ErrNotConnected", err)
	}
}

func TestSignAndExecuteIsDeterministic(t *testing.T) {
	w := NewLocalWallet("0xabc")
	if _, err := w.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	tx := ListOnMarketplace("0xpkg", "0xasset", 100)
	first, err := w.SignAndExecute(context.Background(), tx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	second, err := w.SignAndExecute(context.Background(), tx)
	if err != nil {
		t.Fatalf("execute again: %v", err)
	}
	if first.Digest == "" || first.Digest != second.Digest {
		t.Fatalf("digests differ: %q vs %q", first.Digest, second.Digest)
	}
}

func TestSignAndExecuteSurfacesCapabilityFailure(t *testing.T) {
	w := NewLocalWallet("0xabc")
	if _, err := w.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	w.FailNext(errors.New("user rejected"))
	tx := MintTwin("0xpkg", "blob-1", "Ada Twin", "geometric", "Friendly", "")
	if _, err := w.SignAndExecute(context.Background(), tx); !errors.Is(err, ErrCapabilityFailed) {
		t.Fatalf("got %v, want ErrCapabilityFailed", err)
	}
	// The failure is one-shot; the next call succeeds.
	if _, err := w.SignAndExecute(context.Background(), tx); err != nil {
		t.Fatalf("execute after failure: %v", err)
	}
}

func TestTransactionBuilders(t *testing.T) {
	tx := ListOnMarketplace("0xpkg", "0xasset", 250)
	if tx.Target != "0xpkg::marketplace::list" {
		t.Fatalf("unexpected target: %s", tx.Target)
	}
	if len(tx.Args) != 2 || tx.Args[0].Kind != ArgObject || tx.Args[1].Kind != ArgPureU64 || tx.Args[1].U64 != 250 {
		t.Fatalf("unexpected arguments: %+v", tx.Args)
	}
	mint := MintTwin("0xpkg", "blob-1", "Ada Twin", "geometric", "Friendly", "bio")
	if mint.Target != "0xpkg::twin_nft::mint" || len(mint.Args) != 5 {
		t.Fatalf("unexpected mint descriptor: %+v", mint)
	}
	if _, err := (Transaction{}).Encode(); err == nil {
		t.Fatal("expected error for empty target")
	}
}

func TestStaticIdentity(t *testing.T) {
	if _, ok := StaticIdentity("").CurrentAddress(); ok {
		t.Fatal("empty identity must report absent")
	}
	addr, ok := StaticIdentity("0xabc").CurrentAddress()
	if !ok || addr != "0xabc" {
		t.Fatalf("unexpected identity: %q %t", addr, ok)
	}
}
