package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"

	"github.com/block-0x/signet/pkg/sign"
)

// NativeCurrency describes a chain's gas token in wallet_addEthereumChain.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// AddChainParams is the single parameter of wallet_addEthereumChain.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	RPCURLs           []string       `json:"rpcUrls"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// SwitchChainParams is the single parameter of wallet_switchEthereumChain.
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// Provider is a connected wallet. It wraps a Transport with typed calls.
type Provider struct {
	name      string
	transport Transport
}

// NewProvider wraps t. name identifies the wallet option t was opened from.
func NewProvider(name string, t Transport) *Provider {
	return &Provider{name: name, transport: t}
}

func (p *Provider) Name() string {
	return p.name
}

// Request forwards a raw request to the transport.
func (p *Provider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return p.transport.Request(ctx, method, params...)
}

// SubscribeEvents subscribes sink to the transport's provider events.
func (p *Provider) SubscribeEvents(sink chan<- Event) event.Subscription {
	return p.transport.SubscribeEvents(sink)
}

func (p *Provider) Close() error {
	return p.transport.Close()
}

// RequestAccounts asks the wallet to expose its accounts. The first entry is
// the active account.
func (p *Provider) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.call(ctx, &accounts, MethodRequestAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ChainID returns the id of the chain the wallet is currently on.
func (p *Provider) ChainID(ctx context.Context) (uint64, error) {
	var hexID string
	if err := p.call(ctx, &hexID, MethodChainID); err != nil {
		return 0, err
	}
	id, err := hexutil.DecodeUint64(hexID)
	if err != nil {
		return 0, fmt.Errorf("%w: chain id %q: %w", ErrMalformedResponse, hexID, err)
	}
	return id, nil
}

// PersonalSign asks the wallet to sign message as account with personal_sign.
// The message is sent hex encoded.
func (p *Provider) PersonalSign(ctx context.Context, message, account string) (sign.Signature, error) {
	var sig sign.Signature
	if err := p.call(ctx, &sig, MethodPersonalSign, hexutil.Encode([]byte(message)), account); err != nil {
		return nil, err
	}
	return sig, nil
}

// EcRecover asks the wallet which address produced sig over message.
func (p *Provider) EcRecover(ctx context.Context, message string, sig sign.Signature) (string, error) {
	var addr string
	if err := p.call(ctx, &addr, MethodPersonalEcRecover, hexutil.Encode([]byte(message)), sig.String()); err != nil {
		return "", err
	}
	return addr, nil
}

// SwitchChain asks the wallet to change to the chain with the given hex id.
func (p *Provider) SwitchChain(ctx context.Context, chainID string) error {
	_, err := p.transport.Request(ctx, MethodSwitchChain, SwitchChainParams{ChainID: chainID})
	return err
}

// AddChain asks the wallet to register a chain it does not know yet.
func (p *Provider) AddChain(ctx context.Context, params AddChainParams) error {
	_, err := p.transport.Request(ctx, MethodAddChain, params)
	return err
}

func (p *Provider) call(ctx context.Context, result any, method string, params ...any) error {
	raw, err := p.transport.Request(ctx, method, params...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, method, err)
	}
	return nil
}
