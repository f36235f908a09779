// Package session owns the lifecycle of a wallet connection: connecting,
// restoring a cached connection, disconnecting and keeping the session in
// step with events pushed by the wallet.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"

	"github.com/block-0x/signet/pkg/log"
	"github.com/block-0x/signet/pkg/wallet"
)

var ErrConnection = fmt.Errorf("connection error")

// Selector picks and opens a wallet and remembers the choice.
// *wallet.Modal implements it.
type Selector interface {
	Connect(ctx context.Context) (*wallet.Provider, error)
	CachedProvider(ctx context.Context) (string, error)
	ClearCachedProvider(ctx context.Context) error
}

var _ Selector = (*wallet.Modal)(nil)

// Session is a live wallet connection.
type Session struct {
	// ID grows with every successful connect.
	ID       uint64
	Provider *wallet.Provider
	Account  string
	ChainID  uint64
}

// IsConnected reports whether the wallet exposes an account.
func (s Session) IsConnected() bool {
	return s.Account != ""
}

// EventType names a session event.
type EventType string

const (
	EventAccountsChanged EventType = "AccountsChanged"
	EventChainChanged    EventType = "ChainChanged"
	EventDisconnected    EventType = "Disconnected"
)

// Event is a wallet event after it has been applied to the session.
type Event struct {
	Type EventType
	// Accounts is the list the wallet reported, possibly empty.
	Accounts []string
	ChainID  uint64
	// SessionID identifies the session the wallet event came from.
	SessionID uint64
	// Session is the session after the event; zero for EventDisconnected.
	Session Session
}

// Manager holds at most one active session.
type Manager struct {
	selector Selector

	mu      sync.Mutex
	current *active
	lastID  uint64

	feed event.Feed
}

// active is one session plus its wallet event subscription.
type active struct {
	session Session
	events  chan wallet.Event
	sub     event.Subscription
	quit    chan struct{}
	once    sync.Once
}

func NewManager(selector Selector) *Manager {
	return &Manager{selector: selector}
}

// Subscribe delivers session events to sink.
func (m *Manager) Subscribe(sink chan<- Event) event.Subscription {
	return m.feed.Subscribe(sink)
}

// Current returns the active session, if any.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	return m.current.session, true
}

// Connect opens a wallet through the selector and reads its accounts and
// chain. An existing session is torn down first. Any failure is wrapped in
// ErrConnection and leaves no session behind.
func (m *Manager) Connect(ctx context.Context) (Session, error) {
	lg := log.FromContext(ctx)

	provider, err := m.selector.Connect(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	s, err := readSession(ctx, provider)
	if err != nil {
		if cerr := provider.Close(); cerr != nil {
			lg.Warn("closing provider after failed connect", "error", cerr)
		}
		// A wallet that refused to expose accounts must not be reopened
		// automatically on the next start.
		if cerr := m.selector.ClearCachedProvider(ctx); cerr != nil {
			lg.Warn("clearing cached provider after failed connect", "error", cerr)
		}
		return Session{}, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	a := &active{
		session: s,
		events:  make(chan wallet.Event, 16),
		quit:    make(chan struct{}),
	}
	a.sub = provider.SubscribeEvents(a.events)

	m.mu.Lock()
	m.lastID++
	a.session.ID = m.lastID
	s = a.session
	prev := m.current
	m.current = a
	m.mu.Unlock()

	if prev != nil {
		lg.Info("replacing active session", "account", prev.session.Account)
		m.teardown(lg, prev)
	}

	go m.forward(lg, a)

	lg.Info("wallet connected", "provider", provider.Name(), "account", s.Account, "chainId", s.ChainID)
	return s, nil
}

func readSession(ctx context.Context, provider *wallet.Provider) (Session, error) {
	accounts, err := provider.RequestAccounts(ctx)
	if err != nil {
		return Session{}, err
	}
	if len(accounts) == 0 {
		return Session{}, fmt.Errorf("wallet exposed no accounts")
	}
	chainID, err := provider.ChainID(ctx)
	if err != nil {
		return Session{}, err
	}
	return Session{Provider: provider, Account: accounts[0], ChainID: chainID}, nil
}

// Restore connects without user action when the selector has a cached
// wallet. attempted is false when nothing was cached.
func (m *Manager) Restore(ctx context.Context) (s Session, attempted bool, err error) {
	id, err := m.selector.CachedProvider(ctx)
	if err != nil {
		log.FromContext(ctx).Warn("reading cached provider", "error", err)
		return Session{}, false, nil
	}
	if id == "" {
		return Session{}, false, nil
	}

	s, err = m.Connect(ctx)
	return s, true, err
}

// Disconnect forgets the cached wallet and ends the active session, if any.
// It never fails; problems are logged.
func (m *Manager) Disconnect(ctx context.Context) {
	lg := log.FromContext(ctx)
	m.Forget(ctx)

	m.mu.Lock()
	a := m.current
	m.current = nil
	m.mu.Unlock()

	if a != nil {
		m.teardown(lg, a)
		lg.Info("wallet disconnected", "account", a.session.Account)
	}
}

// Forget clears the cached wallet choice and leaves the active session alone.
func (m *Manager) Forget(ctx context.Context) {
	if err := m.selector.ClearCachedProvider(ctx); err != nil {
		log.FromContext(ctx).Warn("clearing cached provider", "error", err)
	}
}

// teardown stops a's subscription and closes its transport exactly once.
func (m *Manager) teardown(lg log.Logger, a *active) {
	a.once.Do(func() {
		close(a.quit)
		a.sub.Unsubscribe()
		if err := a.session.Provider.Close(); err != nil {
			lg.Warn("closing provider", "error", err)
		}
	})
}

func (m *Manager) forward(lg log.Logger, a *active) {
	for {
		select {
		case <-a.quit:
			return
		case <-a.sub.Err():
			return
		case ev := <-a.events:
			if out, ok := m.apply(lg, a, ev); ok {
				m.feed.Send(out)
			}
		}
	}
}

// apply updates the session for ev. Events from a session that is no longer
// current are dropped.
func (m *Manager) apply(lg log.Logger, a *active, ev wallet.Event) (Event, bool) {
	switch ev.Type {
	case wallet.EventAccountsChanged:
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.current != a {
			return Event{}, false
		}
		// An empty list means the wallet hides its accounts for now; the
		// session keeps the last known account.
		if len(ev.Accounts) > 0 {
			a.session.Account = ev.Accounts[0]
		}
		return Event{Type: EventAccountsChanged, Accounts: ev.Accounts, SessionID: a.session.ID, Session: a.session}, true

	case wallet.EventChainChanged:
		chainID, err := hexutil.DecodeUint64(ev.ChainID)
		if err != nil {
			lg.Warn("ignoring malformed chainChanged", "chainId", ev.ChainID, "error", err)
			return Event{}, false
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.current != a {
			return Event{}, false
		}
		a.session.ChainID = chainID
		return Event{Type: EventChainChanged, ChainID: chainID, SessionID: a.session.ID, Session: a.session}, true

	case wallet.EventDisconnect:
		m.mu.Lock()
		if m.current != a {
			m.mu.Unlock()
			return Event{}, false
		}
		m.current = nil
		m.mu.Unlock()

		lg.Info("wallet disconnected by provider", "account", a.session.Account, "reason", ev.Err)
		m.teardown(lg, a)
		return Event{Type: EventDisconnected, SessionID: a.session.ID}, true

	default:
		lg.Debug("ignoring wallet event", "type", ev.Type)
		return Event{}, false
	}
}
