package wallet

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/event"
)

// Wallet methods used by signet.
const (
	MethodRequestAccounts   = "eth_requestAccounts"
	MethodAccounts          = "eth_accounts"
	MethodChainID           = "eth_chainId"
	MethodPersonalSign      = "personal_sign"
	MethodPersonalEcRecover = "personal_ecRecover"
	MethodSwitchChain       = "wallet_switchEthereumChain"
	MethodAddChain          = "wallet_addEthereumChain"
)

// Transport is a connection to a wallet.
type Transport interface {
	// Request sends method with params and waits for the wallet's answer.
	// Wallet-side failures are returned as *ProviderError.
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	// SubscribeEvents delivers provider events to sink until the
	// subscription is cancelled or the transport is closed.
	SubscribeEvents(sink chan<- Event) event.Subscription
	// Close releases the connection. Closing twice is not an error.
	Close() error
}

// EventType names a provider event.
type EventType string

const (
	EventAccountsChanged EventType = "accountsChanged"
	EventChainChanged    EventType = "chainChanged"
	EventDisconnect      EventType = "disconnect"
)

// Event is a provider-originated notification.
type Event struct {
	Type     EventType      `json:"type"`
	Accounts []string       `json:"accounts,omitempty"` // accountsChanged
	ChainID  string         `json:"chainId,omitempty"`  // chainChanged, hex
	Err      *ProviderError `json:"error,omitempty"`    // disconnect
}
