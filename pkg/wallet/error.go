package wallet

import (
	"errors"
	"fmt"
)

// Provider error codes from EIP-1193, EIP-3326 and JSON-RPC.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupported       = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
	CodeInvalidParams     = -32602
	CodeInternal          = -32603
)

var (
	ErrNotConnected       = fmt.Errorf("transport not connected")
	ErrAlreadyConnected   = fmt.Errorf("transport already connected")
	ErrTransportClosed    = fmt.Errorf("transport closed")
	ErrNoResponse         = fmt.Errorf("no response")
	ErrDialingWebsocket   = fmt.Errorf("error dialing websocket server")
	ErrSendingRequest     = fmt.Errorf("error sending request")
	ErrMalformedResponse  = fmt.Errorf("malformed response")
	ErrSelectionCancelled = fmt.Errorf("wallet selection cancelled")
	ErrUnknownProvider    = fmt.Errorf("unknown wallet provider")
	ErrNoProviders        = fmt.Errorf("no wallet providers registered")
)

// ProviderError is an error reported by the wallet in answer to a request.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// NewProviderError returns a ProviderError with the default message for code.
func NewProviderError(code int) *ProviderError {
	return &ProviderError{Code: code, Message: codeMessage(code)}
}

// IsCode reports whether err carries a ProviderError with the given code.
func IsCode(err error, code int) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Code == code
}

func codeMessage(code int) string {
	switch code {
	case CodeUserRejected:
		return "user rejected the request"
	case CodeUnauthorized:
		return "the requested account has not been authorized"
	case CodeUnsupported:
		return "the provider does not support the requested method"
	case CodeDisconnected:
		return "the provider is disconnected from all chains"
	case CodeChainDisconnected:
		return "the provider is not connected to the requested chain"
	case CodeUnrecognizedChain:
		return "unrecognized chain id"
	case CodeInvalidParams:
		return "invalid method parameters"
	default:
		return "internal error"
	}
}
