package controller

import (
	"fmt"

	"github.com/block-0x/signet/internal/signing"
)

// MaxMessageLength bounds the message input in characters.
const MaxMessageLength = 20

var (
	ErrNetworkSwitch = fmt.Errorf("network switch error")
	ErrNotConnected  = fmt.Errorf("wallet not connected")
	ErrNoSignature   = fmt.Errorf("no signature to verify")
	ErrNoNetwork     = fmt.Errorf("no network selected")
)

// Phase is the connection state.
type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseConnecting   Phase = "connecting"
	PhaseConnected    Phase = "connected"
)

// SignaturePhase is the sign/verify sub-state of a connected session.
type SignaturePhase string

const (
	NoSignature SignaturePhase = "no_signature"
	Signed      SignaturePhase = "signed"
	Verified    SignaturePhase = "verified"
	Denied      SignaturePhase = "denied"
)

// ErrorKind classifies the failure held in ErrorState.
type ErrorKind string

const (
	ErrorConnection    ErrorKind = "ConnectionError"
	ErrorNetworkSwitch ErrorKind = "NetworkSwitchError"
	ErrorSigning       ErrorKind = "SigningError"
	ErrorVerification  ErrorKind = "VerificationError"
)

// ErrorState is the most recent failure. Only a disconnect clears it.
type ErrorState struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// State is a snapshot of everything the presentation layer may show.
type State struct {
	Phase   Phase  `json:"phase"`
	Account string `json:"account,omitempty"`
	ChainID uint64 `json:"chainId,omitempty"`

	// Message is the editable input; SignedMessage is what Signature covers.
	Message       string               `json:"message"`
	SignedMessage string               `json:"signedMessage,omitempty"`
	Signature     string               `json:"signature,omitempty"`
	Verified      signing.Verification `json:"verified"`

	NetworkTarget uint64      `json:"networkTarget,omitempty"`
	Error         *ErrorState `json:"error,omitempty"`
}

// IsConnected reports whether an account is available.
func (s State) IsConnected() bool {
	return s.Phase == PhaseConnected && s.Account != ""
}

// SignaturePhase derives the sign/verify sub-state.
func (s State) SignaturePhase() SignaturePhase {
	switch {
	case s.Signature == "":
		return NoSignature
	case s.Verified == signing.Verified:
		return Verified
	case s.Verified == signing.Denied:
		return Denied
	default:
		return Signed
	}
}

// truncateInput keeps the first MaxMessageLength characters of text.
func truncateInput(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxMessageLength {
		return text
	}
	return string(runes[:MaxMessageLength])
}
