package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"

	"github.com/block-0x/signet/pkg/sign"
)

var _ Transport = (*LocalWallet)(nil)

// Approver decides whether the user approves a request that needs consent
// (eth_requestAccounts, personal_sign, wallet_addEthereumChain). Returning a
// non-nil error rejects the request; a *ProviderError is passed through as is.
type Approver func(method string) error

// ApproveAll approves every request.
func ApproveAll(string) error { return nil }

// RejectAll rejects every request the way a user closing the wallet dialog would.
func RejectAll(string) error { return NewProviderError(CodeUserRejected) }

// LocalWallet is an in-process wallet over keys supplied by the caller.
type LocalWallet struct {
	mu       sync.RWMutex
	signers  []*sign.EthereumSigner
	chainID  uint64
	chains   map[uint64]struct{}
	approver Approver
	closed   bool

	feed  event.Feed
	scope event.SubscriptionScope
}

// LocalOption configures a LocalWallet.
type LocalOption func(*LocalWallet)

// WithApprover sets the consent hook. The default approves everything.
func WithApprover(a Approver) LocalOption {
	return func(w *LocalWallet) { w.approver = a }
}

// WithKnownChains adds chains the wallet can switch to without
// wallet_addEthereumChain.
func WithKnownChains(ids ...uint64) LocalOption {
	return func(w *LocalWallet) {
		for _, id := range ids {
			w.chains[id] = struct{}{}
		}
	}
}

// NewLocalWallet returns a wallet on chainID exposing the addresses of signers
// in order. At least one signer is required.
func NewLocalWallet(chainID uint64, signers []*sign.EthereumSigner, opts ...LocalOption) (*LocalWallet, error) {
	if len(signers) == 0 {
		return nil, fmt.Errorf("local wallet needs at least one signer")
	}
	w := &LocalWallet{
		signers:  signers,
		chainID:  chainID,
		chains:   map[uint64]struct{}{chainID: {}},
		approver: ApproveAll,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *LocalWallet) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.RLock()
	closed := w.closed
	w.mu.RUnlock()
	if closed {
		return nil, NewProviderError(CodeDisconnected)
	}

	result, err := w.handle(method, params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (w *LocalWallet) handle(method string, params []any) (any, error) {
	switch method {
	case MethodRequestAccounts:
		if err := w.approve(method); err != nil {
			return nil, err
		}
		return w.Accounts(), nil
	case MethodAccounts:
		return w.Accounts(), nil
	case MethodChainID:
		return hexutil.EncodeUint64(w.ChainID()), nil
	case MethodPersonalSign:
		return w.personalSign(params)
	case MethodPersonalEcRecover:
		return w.ecRecover(params)
	case MethodSwitchChain:
		return nil, w.switchChain(params)
	case MethodAddChain:
		return nil, w.addChain(params)
	default:
		return nil, NewProviderError(CodeUnsupported)
	}
}

func (w *LocalWallet) approve(method string) error {
	w.mu.RLock()
	approver := w.approver
	w.mu.RUnlock()

	err := approver(method)
	if err == nil {
		return nil
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	return &ProviderError{Code: CodeUserRejected, Message: err.Error()}
}

func (w *LocalWallet) personalSign(params []any) (any, error) {
	var message, account string
	if err := decodeParams(params, &message, &account); err != nil {
		return nil, err
	}

	signer := w.signerFor(account)
	if signer == nil {
		return nil, NewProviderError(CodeUnauthorized)
	}
	if err := w.approve(MethodPersonalSign); err != nil {
		return nil, err
	}

	sig, err := signer.SignPersonal(messageBytes(message))
	if err != nil {
		return nil, &ProviderError{Code: CodeInternal, Message: err.Error()}
	}
	return sig.String(), nil
}

func (w *LocalWallet) ecRecover(params []any) (any, error) {
	var message, hexSig string
	if err := decodeParams(params, &message, &hexSig); err != nil {
		return nil, err
	}

	sig, err := sign.ParseSignature(hexSig)
	if err != nil {
		return nil, &ProviderError{Code: CodeInvalidParams, Message: err.Error()}
	}
	addr, err := sign.RecoverPersonal(messageBytes(message), sig)
	if err != nil {
		return nil, &ProviderError{Code: CodeInvalidParams, Message: err.Error()}
	}
	return strings.ToLower(addr.Hex()), nil
}

func (w *LocalWallet) switchChain(params []any) error {
	var p SwitchChainParams
	if err := decodeParams(params, &p); err != nil {
		return err
	}
	id, err := hexutil.DecodeUint64(p.ChainID)
	if err != nil {
		return &ProviderError{Code: CodeInvalidParams, Message: err.Error()}
	}

	w.mu.Lock()
	if _, ok := w.chains[id]; !ok {
		w.mu.Unlock()
		return NewProviderError(CodeUnrecognizedChain)
	}
	changed := w.chainID != id
	w.chainID = id
	w.mu.Unlock()

	if changed {
		w.emit(Event{Type: EventChainChanged, ChainID: hexutil.EncodeUint64(id)})
	}
	return nil
}

// addChain registers the chain and switches to it, as browser wallets do once
// the user approves the dialog.
func (w *LocalWallet) addChain(params []any) error {
	var p AddChainParams
	if err := decodeParams(params, &p); err != nil {
		return err
	}
	id, err := hexutil.DecodeUint64(p.ChainID)
	if err != nil || p.ChainName == "" || len(p.RPCURLs) == 0 {
		return NewProviderError(CodeInvalidParams)
	}
	if err := w.approve(MethodAddChain); err != nil {
		return err
	}

	w.mu.Lock()
	w.chains[id] = struct{}{}
	w.mu.Unlock()

	return w.switchChain([]any{SwitchChainParams{ChainID: p.ChainID}})
}

// Accounts returns the exposed addresses, active account first.
func (w *LocalWallet) Accounts() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	accounts := make([]string, 0, len(w.signers))
	for _, s := range w.signers {
		accounts = append(accounts, s.Address().Hex())
	}
	return accounts
}

func (w *LocalWallet) ChainID() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chainID
}

// SelectAccount makes the signer at index i the active account and emits
// accountsChanged.
func (w *LocalWallet) SelectAccount(i int) error {
	w.mu.Lock()
	if i < 0 || i >= len(w.signers) {
		w.mu.Unlock()
		return fmt.Errorf("account index %d out of range", i)
	}
	w.signers[0], w.signers[i] = w.signers[i], w.signers[0]
	w.mu.Unlock()

	w.emit(Event{Type: EventAccountsChanged, Accounts: w.Accounts()})
	return nil
}

// EmitAccountsChanged pushes an accountsChanged event with an arbitrary list,
// including an empty one, without changing the wallet's signers.
func (w *LocalWallet) EmitAccountsChanged(accounts []string) {
	w.emit(Event{Type: EventAccountsChanged, Accounts: accounts})
}

// EmitChainChanged pushes a chainChanged event without a switch request.
func (w *LocalWallet) EmitChainChanged(chainID uint64) {
	w.mu.Lock()
	w.chainID = chainID
	w.chains[chainID] = struct{}{}
	w.mu.Unlock()

	w.emit(Event{Type: EventChainChanged, ChainID: hexutil.EncodeUint64(chainID)})
}

// EmitDisconnect pushes a disconnect event as if the user disconnected the
// wallet from its own UI.
func (w *LocalWallet) EmitDisconnect() {
	w.emit(Event{Type: EventDisconnect, Err: NewProviderError(CodeDisconnected)})
}

func (w *LocalWallet) SubscribeEvents(sink chan<- Event) event.Subscription {
	return w.scope.Track(w.feed.Subscribe(sink))
}

// Close ends all event subscriptions. Later requests fail with 4900.
func (w *LocalWallet) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.scope.Close()
	return nil
}

func (w *LocalWallet) emit(ev Event) {
	w.feed.Send(ev)
}

func (w *LocalWallet) signerFor(account string) *sign.EthereumSigner {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, s := range w.signers {
		if sign.SameAddress(s.Address().Hex(), account) {
			return s
		}
	}
	return nil
}

// messageBytes accepts the hex form wallets expect and falls back to the raw
// string for callers that send plain text.
func messageBytes(message string) []byte {
	if raw, err := hexutil.Decode(message); err == nil {
		return raw
	}
	return []byte(message)
}

// decodeParams round-trips params through JSON into targets so that local
// requests are interpreted exactly like requests arriving over a wire.
func decodeParams(params []any, targets ...any) error {
	if len(params) < len(targets) {
		return &ProviderError{Code: CodeInvalidParams, Message: fmt.Sprintf("expected %d params, got %d", len(targets), len(params))}
	}
	for i, target := range targets {
		raw, err := json.Marshal(params[i])
		if err != nil {
			return &ProviderError{Code: CodeInvalidParams, Message: err.Error()}
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return &ProviderError{Code: CodeInvalidParams, Message: err.Error()}
		}
	}
	return nil
}
