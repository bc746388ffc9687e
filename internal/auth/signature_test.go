package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"
	"time"
)

func TestVerify_DevModeBypass(t *testing.T) {
	v := NewVerifier(true)
	err := v.Verify(Request{
		Wallet:    hex.EncodeToString(make([]byte, 32)),
		Action:    "place_bet",
		Timestamp: time.Now().Unix(),
		Signature: "anything-non-empty",
	})
	if err != nil {
		t.Fatalf("dev mode should accept any non-empty signature: %v", err)
	}
}

func TestVerify_DevModeRejectsEmptySignature(t *testing.T) {
	v := NewVerifier(true)
	err := v.Verify(Request{
		Wallet:    hex.EncodeToString(make([]byte, 32)),
		Action:    "place_bet",
		Timestamp: time.Now().Unix(),
		Signature: "",
	})
	if err == nil {
		t.Fatal("expected error for empty signature even in dev mode")
	}
}

func TestVerify_StaleTimestamp(t *testing.T) {
	v := NewVerifier(true)
	err := v.Verify(Request{
		Wallet:    hex.EncodeToString(make([]byte, 32)),
		Action:    "place_bet",
		Timestamp: time.Now().Add(-10 * time.Minute).Unix(),
		Signature: "sig",
	})
	if err == nil {
		t.Fatal("expected error for stale timestamp")
	}
}

func TestVerify_ProductionValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	wallet := hex.EncodeToString(pub)
	ts := time.Now().Unix()
	msg := []byte(CanonicalMessage(wallet, "place_bet", ts))
	sig := ed25519.Sign(priv, msg)

	v := NewVerifier(false)
	err = v.Verify(Request{
		Wallet:    wallet,
		Action:    "place_bet",
		Timestamp: ts,
		Signature: hex.EncodeToString(sig),
	})
	if err != nil {
		t.Fatalf("expected valid signature to verify, got: %v", err)
	}
}

func TestVerify_ProductionTamperedSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	wallet := hex.EncodeToString(pub)
	ts := time.Now().Unix()
	sig := ed25519.Sign(priv, []byte(CanonicalMessage(wallet, "place_bet", ts)))

	v := NewVerifier(false)
	// Verify against a different action than what was signed.
	err = v.Verify(Request{
		Wallet:    wallet,
		Action:    "withdraw_funds",
		Timestamp: ts,
		Signature: hex.EncodeToString(sig),
	})
	if err == nil {
		t.Fatal("expected signature mismatch for altered action")
	}
}

func TestVerify_InvalidWalletShape(t *testing.T) {
	v := NewVerifier(true)
	err := v.Verify(Request{
		Wallet:    "not-a-valid-wallet",
		Action:    "place_bet",
		Timestamp: time.Now().Unix(),
		Signature: "sig",
	})
	if err == nil {
		t.Fatal("expected error for malformed wallet")
	}
}
