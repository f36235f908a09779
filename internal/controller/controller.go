// Package controller is the session state machine that the presentation
// layer drives. It combines the wallet session with the sign and verify
// protocol and keeps the single observable State.
//
// States run Disconnected -> Connecting -> Connected; a connected session
// moves through NoSignature -> Signed -> Verified or Denied. Actions never
// return errors: a failure is stored in State.Error and stays there until the
// next disconnect.
package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/block-0x/signet/internal/network"
	"github.com/block-0x/signet/internal/session"
	"github.com/block-0x/signet/internal/signing"
	"github.com/block-0x/signet/pkg/log"
	"github.com/block-0x/signet/pkg/wallet"
)

const tracerName = "github.com/block-0x/signet/internal/controller"

// Controller owns the session, the pending signature, the verification
// result, the network target and the error slot.
type Controller struct {
	sessions  *session.Manager
	catalog   *network.Catalog
	publisher *EventPublisher
	metrics   *Metrics
	lg        log.Logger
	tracer    trace.Tracer

	mu       sync.Mutex
	state    State
	pending  signing.PendingSignature
	verified signing.Verification

	feed    event.Feed
	startMu sync.Mutex
	sub     event.Subscription
	quit    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(lg log.Logger) Option {
	return func(c *Controller) { c.lg = lg }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithPublisher(p *EventPublisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithTracerProvider records action spans with tp instead of the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Controller) { c.tracer = tp.Tracer(tracerName) }
}

// New returns a disconnected controller. Call Start to restore a cached
// session and begin following wallet events.
func New(sessions *session.Manager, catalog *network.Catalog, opts ...Option) *Controller {
	c := &Controller{
		sessions: sessions,
		catalog:  catalog,
		lg:       log.NewNoopLogger(),
		tracer:   otel.Tracer(tracerName),
		state:    State{Phase: PhaseDisconnected},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lg = c.lg.WithName("controller")
	return c
}

// Start subscribes to session events and tries to restore a cached session.
// It returns the state after the restore attempt.
func (c *Controller) Start(ctx context.Context) State {
	c.startMu.Lock()
	if c.quit == nil {
		events := make(chan session.Event, 16)
		c.sub = c.sessions.Subscribe(events)
		c.quit = make(chan struct{})
		c.wg.Add(1)
		go c.loop(events, c.sub, c.quit)
	}
	c.startMu.Unlock()

	ctx, span := c.startSpan(ctx, "RestoreSession")
	defer span.End()

	c.update(func() { c.state.Phase = PhaseConnecting })
	s, attempted, err := c.sessions.Restore(ctx)
	if !attempted {
		return c.update(func() { c.state.Phase = c.phaseFromSessions() })
	}
	return c.finishConnect(ctx, "restore", s, err)
}

// Close stops following session events. The wallet session is left as is.
func (c *Controller) Close() {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.quit == nil {
		return
	}
	close(c.quit)
	c.sub.Unsubscribe()
	c.wg.Wait()
	c.quit = nil
}

// State returns a snapshot of the observable state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Subscribe delivers a snapshot after every state change.
func (c *Controller) Subscribe(sink chan<- State) event.Subscription {
	return c.feed.Subscribe(sink)
}

// Catalog returns the networks available for switching.
func (c *Controller) Catalog() *network.Catalog {
	return c.catalog
}

// ConnectWallet asks the user to pick a wallet and connects to it.
func (c *Controller) ConnectWallet(ctx context.Context) State {
	ctx, span := c.startSpan(ctx, "ConnectWallet")
	defer span.End()

	c.update(func() { c.state.Phase = PhaseConnecting })
	s, err := c.sessions.Connect(ctx)
	return c.finishConnect(ctx, "connect", s, err)
}

func (c *Controller) finishConnect(ctx context.Context, action string, s session.Session, err error) State {
	lg := log.FromContext(ctx)
	if err != nil {
		lg.Warn("wallet connection failed", "error", err)
		c.metrics.action(action, "failure")
		return c.update(func() {
			c.state.Phase = c.phaseFromSessions()
			c.setError(ErrorConnection, err)
		})
	}

	c.metrics.action(action, "success")
	c.metrics.connected(true)
	c.publish(lg, SessionEvent{Type: EventConnected, Account: s.Account, ChainID: s.ChainID})
	return c.update(func() {
		// A new session starts without a signature, even when it replaced
		// a connected one.
		c.pending = signing.PendingSignature{}
		c.verified = signing.Unknown
		c.state.NetworkTarget = 0
		c.state.Phase = PhaseConnected
		c.state.Account = s.Account
		c.state.ChainID = s.ChainID
	})
}

// isCurrent reports whether the session with the given id is still the
// active one. It must be called with c.mu held.
func (c *Controller) isCurrent(id uint64) bool {
	s, ok := c.sessions.Current()
	return ok && s.ID == id
}

// phaseFromSessions must be called with c.mu held.
func (c *Controller) phaseFromSessions() Phase {
	if s, ok := c.sessions.Current(); ok && s.IsConnected() {
		return PhaseConnected
	}
	return PhaseDisconnected
}

// Disconnect forgets the cached wallet, ends the session and resets every
// field to its empty value, including the error. Disconnecting twice is
// harmless.
func (c *Controller) Disconnect(ctx context.Context) State {
	ctx, span := c.startSpan(ctx, "Disconnect")
	defer span.End()

	c.sessions.Disconnect(ctx)

	c.mu.Lock()
	wasConnected := c.state.Phase != PhaseDisconnected
	c.refresh()
	st := c.snapshot()
	c.mu.Unlock()

	c.feed.Send(st)
	c.disconnected(log.FromContext(ctx), wasConnected)
	return st
}

// endSession resets the controller after the wallet itself ended session id.
// Nothing happens when a newer session has already replaced it.
func (c *Controller) endSession(ctx context.Context, id uint64) {
	ctx, span := c.startSpan(ctx, "EndSession")
	defer span.End()
	lg := log.FromContext(ctx)

	c.mu.Lock()
	if s, ok := c.sessions.Current(); ok && s.ID != id {
		c.mu.Unlock()
		lg.Debug("ignoring disconnect of a replaced session", "sessionId", id, "currentId", s.ID)
		return
	}
	wasConnected := c.state.Phase != PhaseDisconnected
	c.refresh()
	st := c.snapshot()
	c.mu.Unlock()

	c.sessions.Forget(ctx)
	c.feed.Send(st)
	c.disconnected(lg, wasConnected)
}

func (c *Controller) disconnected(lg log.Logger, wasConnected bool) {
	c.metrics.connected(false)
	if wasConnected {
		c.metrics.action("disconnect", "success")
		c.publish(lg, SessionEvent{Type: EventDisconnected})
	}
}

// refresh must be called with c.mu held.
func (c *Controller) refresh() {
	c.state = State{Phase: PhaseDisconnected}
	c.pending = signing.PendingSignature{}
	c.verified = signing.Unknown
}

// HandleNetwork records the chain the user wants to switch to. The input is
// a decimal or 0x-prefixed hex chain id.
func (c *Controller) HandleNetwork(input string) State {
	id, err := network.ParseChainID(input)
	return c.update(func() {
		if err != nil {
			c.setError(ErrorNetworkSwitch, fmt.Errorf("%w: %w", ErrNetworkSwitch, err))
			return
		}
		c.state.NetworkTarget = id
	})
}

// SwitchNetwork asks the wallet to switch to the selected chain. When the
// wallet does not know the chain it is offered the catalog entry once. The
// target is cleared whatever the outcome. The new chain id arrives through
// the wallet's chainChanged event.
func (c *Controller) SwitchNetwork(ctx context.Context) State {
	ctx, span := c.startSpan(ctx, "SwitchNetwork")
	defer span.End()
	lg := log.FromContext(ctx)

	c.mu.Lock()
	target := c.state.NetworkTarget
	c.mu.Unlock()
	span.SetAttributes(attribute.String("chain_id", network.ToHex(target)))

	s, ok := c.sessions.Current()
	var err error
	switch {
	case !ok:
		err = fmt.Errorf("%w: %w", ErrNetworkSwitch, ErrNotConnected)
	case target == 0:
		err = fmt.Errorf("%w: %w", ErrNetworkSwitch, ErrNoNetwork)
	default:
		err = c.switchNetwork(ctx, s.Provider, target)
	}

	if err != nil {
		lg.Warn("network switch failed", "chainId", target, "error", err)
		c.metrics.action("switch_network", "failure")
	} else {
		lg.Info("network switched", "chainId", target)
		c.metrics.action("switch_network", "success")
	}

	return c.update(func() {
		c.state.NetworkTarget = 0
		if err != nil {
			c.setError(ErrorNetworkSwitch, err)
		}
	})
}

func (c *Controller) switchNetwork(ctx context.Context, p *wallet.Provider, chainID uint64) error {
	hexID := network.ToHex(chainID)

	err := p.SwitchChain(ctx, hexID)
	if err == nil {
		return nil
	}
	if !wallet.IsCode(err, wallet.CodeUnrecognizedChain) {
		return fmt.Errorf("%w: %w", ErrNetworkSwitch, err)
	}

	n, ok := c.catalog.Lookup(hexID)
	if !ok {
		return fmt.Errorf("%w: chain %s is unknown to the wallet and the catalog", ErrNetworkSwitch, hexID)
	}
	log.FromContext(ctx).Info("wallet does not know chain, adding it", "chainId", hexID, "chainName", n.ChainName)
	if err := p.AddChain(ctx, n.AddChainParams()); err != nil {
		return fmt.Errorf("%w: %w", ErrNetworkSwitch, err)
	}
	return nil
}

// HandleInput sets the message input, truncated to MaxMessageLength
// characters. A pending signature keeps covering the message it was made for.
func (c *Controller) HandleInput(text string) State {
	return c.update(func() { c.state.Message = truncateInput(text) })
}

// SignMessage asks the wallet to sign the current input as the active
// account. The signed text is kept with the signature for later
// verification. Concurrent calls are not serialised; the last answer wins.
func (c *Controller) SignMessage(ctx context.Context) State {
	ctx, span := c.startSpan(ctx, "SignMessage")
	defer span.End()
	lg := log.FromContext(ctx)

	c.mu.Lock()
	message := c.state.Message
	c.mu.Unlock()

	s, ok := c.sessions.Current()
	if !ok {
		c.metrics.action("sign", "failure")
		return c.update(func() { c.setError(ErrorSigning, fmt.Errorf("%w: %w", signing.ErrSigning, ErrNotConnected)) })
	}

	pending, err := signing.Sign(ctx, s.Provider, message, s.Account)
	if err != nil {
		lg.Warn("signing failed", "error", err)
		c.metrics.action("sign", "failure")
		return c.update(func() { c.setError(ErrorSigning, err) })
	}

	lg.Info("message signed", "account", s.Account, "signature", pending.Signature.String())
	c.metrics.action("sign", "success")
	c.publish(lg, SessionEvent{
		Type:      EventMessageSigned,
		Account:   s.Account,
		ChainID:   s.ChainID,
		Message:   pending.Message,
		Signature: pending.Signature.String(),
	})
	return c.update(func() {
		// A disconnect or reconnect while the wallet was signing wins over
		// the result.
		if c.state.Phase != PhaseConnected || !c.isCurrent(s.ID) {
			return
		}
		c.pending = pending
		c.verified = signing.Unknown
	})
}

// VerifyMessage checks the pending signature against the active account using
// the message that was signed, not the current input.
func (c *Controller) VerifyMessage(ctx context.Context) State {
	ctx, span := c.startSpan(ctx, "VerifyMessage")
	defer span.End()
	lg := log.FromContext(ctx)

	c.mu.Lock()
	pending := c.pending
	account := c.state.Account
	c.mu.Unlock()

	s, ok := c.sessions.Current()
	switch {
	case !ok:
		c.metrics.action("verify", "failure")
		return c.update(func() {
			c.setError(ErrorVerification, fmt.Errorf("%w: %w", signing.ErrVerification, ErrNotConnected))
		})
	case pending.IsZero():
		c.metrics.action("verify", "failure")
		return c.update(func() {
			c.setError(ErrorVerification, fmt.Errorf("%w: %w", signing.ErrVerification, ErrNoSignature))
		})
	}

	v, err := signing.Verify(ctx, s.Provider, pending.Message, pending.Signature, account)
	if err != nil {
		lg.Warn("verification failed", "error", err)
		c.metrics.action("verify", "failure")
		return c.update(func() { c.setError(ErrorVerification, err) })
	}

	lg.Info("signature checked", "account", account, "result", v.String())
	c.metrics.action("verify", v.String())
	c.publish(lg, SessionEvent{
		Type:      EventMessageVerified,
		Account:   account,
		Message:   pending.Message,
		Signature: pending.Signature.String(),
		Verified:  v.String(),
	})
	return c.update(func() {
		// Drop the result if a newer signature replaced the one checked.
		if c.pending.Signature.String() != pending.Signature.String() {
			return
		}
		c.verified = v
	})
}

func (c *Controller) loop(events <-chan session.Event, sub event.Subscription, quit <-chan struct{}) {
	defer c.wg.Done()
	for {
		select {
		case <-quit:
			return
		case err := <-sub.Err():
			if err != nil {
				c.lg.Error("session subscription failed", "error", err)
			}
			return
		case ev := <-events:
			c.handleSessionEvent(ev)
		}
	}
}

// handleSessionEvent applies wallet pushes. Account and chain changes leave
// the signature and its verification untouched. Events that arrive after
// their session was replaced are dropped.
func (c *Controller) handleSessionEvent(ev session.Event) {
	c.metrics.walletEvent(string(ev.Type))

	switch ev.Type {
	case session.EventAccountsChanged:
		applied := false
		c.update(func() {
			if c.state.Phase == PhaseConnected && c.isCurrent(ev.SessionID) && ev.Session.Account != "" {
				c.state.Account = ev.Session.Account
				applied = true
			}
		})
		if applied {
			c.publish(c.lg, SessionEvent{Type: EventAccountChanged, Account: ev.Session.Account})
		}
	case session.EventChainChanged:
		applied := false
		c.update(func() {
			if c.state.Phase == PhaseConnected && c.isCurrent(ev.SessionID) {
				c.state.ChainID = ev.ChainID
				applied = true
			}
		})
		if applied {
			c.publish(c.lg, SessionEvent{Type: EventChainChanged, ChainID: ev.ChainID})
		}
	case session.EventDisconnected:
		c.endSession(context.Background(), ev.SessionID)
	}
}

// update applies fn under the lock and notifies subscribers outside it.
func (c *Controller) update(fn func()) State {
	c.mu.Lock()
	fn()
	st := c.snapshot()
	c.mu.Unlock()

	c.feed.Send(st)
	return st
}

// snapshot must be called with c.mu held.
func (c *Controller) snapshot() State {
	st := c.state
	if !c.pending.IsZero() {
		st.SignedMessage = c.pending.Message
		st.Signature = c.pending.Signature.String()
		st.Verified = c.verified
	}
	if c.state.Error != nil {
		e := *c.state.Error
		st.Error = &e
	}
	return st
}

// setError must be called with c.mu held.
func (c *Controller) setError(kind ErrorKind, err error) {
	c.state.Error = &ErrorState{Kind: kind, Message: err.Error()}
}

func (c *Controller) publish(lg log.Logger, ev SessionEvent) {
	if err := c.publisher.Publish(ev); err != nil {
		lg.Warn("publishing session event", "type", ev.Type, "error", err)
	}
}

func (c *Controller) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, name)
	return log.SetContextLogger(ctx, c.lg.WithKV("action", name)), span
}
