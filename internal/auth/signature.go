// Package auth verifies the wallet-signature auth contract of spec §6:
// canonical message "mitra_auth:{wallet}:{action}:{timestamp}", a 300s
// replay window, and Ed25519 verification (or a development-mode bypass).
// Grounded structurally on the teacher's api/middleware/auth.go, but the
// verification primitive itself changes from JWT parsing to Ed25519
// signature checking.
package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mitra-labs/predcore/internal/domain"
)

const replayWindow = 300 * time.Second

// walletShape checks the wallet string decodes to a 32-byte Ed25519
// public key, hex-encoded — the "valid-shape" check spec §6's development
// bypass requires. A production build would instead decode a base58
// Solana address; this core binds a wallet 1:1 to its signing key so the
// two decode paths are kept intentionally identical.
var walletShape = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Request is the fixed tuple every state-changing call must carry.
type Request struct {
	Wallet    string
	Action    string
	Timestamp int64 // unix seconds
	Signature string
}

// CanonicalMessage builds the exact signed-message form of spec §6.
func CanonicalMessage(wallet, action string, timestamp int64) string {
	return fmt.Sprintf("mitra_auth:%s:%s:%d", wallet, action, timestamp)
}

// Verifier checks wallet-signature auth requests, switching behavior by
// environment per spec §6.
type Verifier struct {
	devMode bool
	now     func() time.Time
}

func NewVerifier(devMode bool) *Verifier {
	return &Verifier{devMode: devMode, now: time.Now}
}

// Verify rejects requests outside the replay window, with invalid wallet
// shape, or (in production) with an invalid signature.
func (v *Verifier) Verify(req Request) error {
	if !walletShape.MatchString(req.Wallet) {
		return domain.NewUnauthorized(domain.ErrInvalidWalletForm)
	}
	if req.Signature == "" {
		return domain.NewUnauthorized(domain.ErrSignatureInvalid)
	}

	age := v.now().UTC().Unix() - req.Timestamp
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > replayWindow {
		return domain.NewUnauthorized(domain.ErrTimestampStale)
	}

	if v.devMode {
		return nil
	}

	pub, err := decodeWalletPubkey(req.Wallet)
	if err != nil {
		return domain.NewUnauthorized(domain.ErrInvalidWalletForm)
	}
	sig, err := hex.DecodeString(req.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return domain.NewUnauthorized(domain.ErrSignatureInvalid)
	}
	msg := []byte(CanonicalMessage(req.Wallet, req.Action, req.Timestamp))
	if !ed25519.Verify(pub, msg, sig) {
		return domain.NewUnauthorized(domain.ErrSignatureInvalid)
	}
	return nil
}

// decodeWalletPubkey interprets the wallet address as a hex-encoded
// Ed25519 public key. A production build would decode the wallet's
// actual base58 Solana address; this core treats the wallet string as an
// opaque identifier bound 1:1 to its signing key, which is sufficient to
// exercise the verification contract without a Solana SDK in the pack.
func decodeWalletPubkey(wallet string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(wallet)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("wallet is not a recognizable ed25519 public key")
	}
	return ed25519.PublicKey(raw), nil
}
