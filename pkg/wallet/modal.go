package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/block-0x/signet/pkg/log"
)

// ProviderOption is a wallet the user can pick, for example a browser
// extension or a WalletConnect bridge.
type ProviderOption struct {
	ID          string
	Name        string
	Description string
	// Open establishes the transport. It may block while the user approves
	// the connection in the wallet.
	Open func(ctx context.Context) (Transport, error)
}

// Chooser presents options to the user and returns the chosen option's ID.
// Returning ErrSelectionCancelled means the user dismissed the dialog.
type Chooser func(ctx context.Context, options []ProviderOption) (string, error)

// FirstOption is a Chooser that picks the first registered option.
func FirstOption(_ context.Context, options []ProviderOption) (string, error) {
	if len(options) == 0 {
		return "", ErrNoProviders
	}
	return options[0].ID, nil
}

// Modal selects a wallet and remembers the choice.
type Modal struct {
	mu            sync.RWMutex
	options       []ProviderOption
	chooser       Chooser
	cache         CacheStore
	cacheProvider bool
}

// ModalOption configures a Modal.
type ModalOption func(*Modal)

// WithChooser sets the selection hook. Defaults to FirstOption.
func WithChooser(c Chooser) ModalOption {
	return func(m *Modal) { m.chooser = c }
}

// WithCacheStore persists the chosen option in store and enables reuse of the
// cached choice on the next Connect.
func WithCacheStore(store CacheStore) ModalOption {
	return func(m *Modal) {
		m.cache = store
		m.cacheProvider = true
	}
}

func NewModal(opts ...ModalOption) *Modal {
	m := &Modal{chooser: FirstOption}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a wallet option. IDs must be unique.
func (m *Modal) Register(opt ProviderOption) error {
	if opt.ID == "" || opt.Open == nil {
		return fmt.Errorf("provider option needs an id and an opener")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.options {
		if existing.ID == opt.ID {
			return fmt.Errorf("provider option %q already registered", opt.ID)
		}
	}
	m.options = append(m.options, opt)
	return nil
}

// Options returns the registered options in registration order.
func (m *Modal) Options() []ProviderOption {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ProviderOption(nil), m.options...)
}

// Connect opens the cached option when there is one, otherwise asks the
// chooser.
func (m *Modal) Connect(ctx context.Context) (*Provider, error) {
	options := m.Options()
	if len(options) == 0 {
		return nil, ErrNoProviders
	}

	id, err := m.CachedProvider(ctx)
	if err != nil {
		log.FromContext(ctx).Warn("reading cached provider", "error", err)
	}
	if id == "" {
		if id, err = m.chooser(ctx, options); err != nil {
			return nil, err
		}
	}
	return m.ConnectTo(ctx, id)
}

// ConnectTo opens the option with the given id and caches the choice.
func (m *Modal) ConnectTo(ctx context.Context, id string) (*Provider, error) {
	opt, ok := m.option(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}

	t, err := opt.Open(ctx)
	if err != nil {
		return nil, err
	}

	if m.cacheProvider {
		if err := m.cache.SetCachedProvider(ctx, id); err != nil {
			log.FromContext(ctx).Warn("caching provider", "provider", id, "error", err)
		}
	}
	return NewProvider(id, t), nil
}

// CachedProvider returns the id of the cached option, or "" when nothing is
// cached, caching is off or the cached id is no longer registered.
func (m *Modal) CachedProvider(ctx context.Context) (string, error) {
	if !m.cacheProvider {
		return "", nil
	}
	id, err := m.cache.CachedProvider(ctx)
	if err != nil || id == "" {
		return "", err
	}
	if _, ok := m.option(id); !ok {
		return "", nil
	}
	return id, nil
}

func (m *Modal) ClearCachedProvider(ctx context.Context) error {
	if !m.cacheProvider {
		return nil
	}
	return m.cache.ClearCachedProvider(ctx)
}

func (m *Modal) option(id string) (ProviderOption, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, opt := range m.options {
		if opt.ID == id {
			return opt, true
		}
	}
	return ProviderOption{}, false
}
