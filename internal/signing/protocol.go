// Package signing asks a connected wallet for personal-message signatures and
// checks them by address recovery.
package signing

import (
	"context"
	"fmt"

	"github.com/block-0x/signet/pkg/sign"
)

var (
	ErrSigning      = fmt.Errorf("signing error")
	ErrVerification = fmt.Errorf("verification error")
)

// Wallet is the part of a connected provider the protocol needs.
type Wallet interface {
	PersonalSign(ctx context.Context, message, account string) (sign.Signature, error)
	EcRecover(ctx context.Context, message string, sig sign.Signature) (string, error)
}

// Verification is the outcome of checking a signature against a claimed account.
type Verification uint8

const (
	Unknown Verification = iota
	Verified
	Denied
)

func (v Verification) String() string {
	switch v {
	case Verified:
		return "verified"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

func (v Verification) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verification) UnmarshalText(text []byte) error {
	switch string(text) {
	case "verified":
		*v = Verified
	case "denied":
		*v = Denied
	case "unknown", "":
		*v = Unknown
	default:
		return fmt.Errorf("unknown verification %q", text)
	}
	return nil
}

// PendingSignature pairs a signature with the exact message it was produced
// over. The two are only ever set together.
type PendingSignature struct {
	Message   string
	Signature sign.Signature
}

// IsZero reports whether no signature is held.
func (p PendingSignature) IsZero() bool {
	return len(p.Signature) == 0
}

// Sign asks w to sign message as account with personal_sign.
func Sign(ctx context.Context, w Wallet, message, account string) (PendingSignature, error) {
	sig, err := w.PersonalSign(ctx, message, account)
	if err != nil {
		return PendingSignature{}, fmt.Errorf("%w: %w", ErrSigning, err)
	}
	if len(sig) == 0 {
		return PendingSignature{}, fmt.Errorf("%w: empty signature", ErrSigning)
	}
	return PendingSignature{Message: message, Signature: sig}, nil
}

// Verify recovers the signer of sig over message through w and compares it to
// claimed, ignoring case. A mismatch is Denied, not an error; errors are
// reserved for wallet or transport faults.
func Verify(ctx context.Context, w Wallet, message string, sig sign.Signature, claimed string) (Verification, error) {
	recovered, err := w.EcRecover(ctx, message, sig)
	if err != nil {
		return Unknown, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	if sign.SameAddress(recovered, claimed) {
		return Verified, nil
	}
	return Denied, nil
}
