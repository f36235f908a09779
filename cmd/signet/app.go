package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/block-0x/signet/internal/controller"
	"github.com/block-0x/signet/internal/network"
	"github.com/block-0x/signet/internal/session"
	"github.com/block-0x/signet/pkg/log"
	"github.com/block-0x/signet/pkg/sign"
	"github.com/block-0x/signet/pkg/wallet"
)

// Wallet option ids offered by the modal.
const (
	OptionInjected      = "injected"
	OptionWalletConnect = "walletconnect"
)

// App holds the wired components shared by the prompt and the HTTP server.
type App struct {
	cfg        *Config
	lg         log.Logger
	registry   *prometheus.Registry
	modal      *wallet.Modal
	catalog    *network.Catalog
	signers    []*sign.EthereumSigner
	controller *controller.Controller

	redis   *redis.Client
	pubSub  message.Publisher
	closers []func() error
}

// NewApp wires the controller from cfg. chooser is the wallet selection UI.
func NewApp(cfg *Config, lg log.Logger, chooser wallet.Chooser) (*App, error) {
	a := &App{
		cfg:      cfg,
		lg:       lg,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var err error
	if cfg.NetworksPath != "" {
		a.catalog, err = network.LoadFile(cfg.NetworksPath)
	} else {
		a.catalog, err = network.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load networks: %w", err)
	}

	if a.signers, err = loadSigners(cfg.walletKeys()); err != nil {
		return nil, err
	}

	modalOpts := []wallet.ModalOption{wallet.WithChooser(chooser)}
	if cfg.CacheProvider {
		store, err := a.newCacheStore()
		if err != nil {
			a.Close()
			return nil, err
		}
		modalOpts = append(modalOpts, wallet.WithCacheStore(store))
	}
	a.modal = wallet.NewModal(modalOpts...)
	if err := a.registerOptions(); err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.newPublisher()
	if err != nil {
		a.Close()
		return nil, err
	}

	tp, shutdown, err := newTracerProvider(cfg.TraceExporter, os.Stderr)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	a.controller = controller.New(session.NewManager(a.modal), a.catalog,
		controller.WithLogger(lg),
		controller.WithMetrics(controller.NewMetrics(a.registry)),
		controller.WithPublisher(publisher),
		controller.WithTracerProvider(tp),
	)
	return a, nil
}

func loadSigners(keys []string) ([]*sign.EthereumSigner, error) {
	if len(keys) == 0 {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate wallet key: %w", err)
		}
		keys = []string{hexutil.Encode(crypto.FromECDSA(key))}
	}

	signers := make([]*sign.EthereumSigner, 0, len(keys))
	for i, k := range keys {
		s, err := sign.NewEthereumSigner(k)
		if err != nil {
			return nil, fmt.Errorf("invalid wallet key #%d: %w", i, err)
		}
		signers = append(signers, s)
	}
	return signers, nil
}

// newLocalWallet opens the built-in wallet. It only knows its own chain, so
// switching elsewhere goes through wallet_addEthereumChain.
func (a *App) newLocalWallet() (*wallet.LocalWallet, error) {
	return wallet.NewLocalWallet(a.cfg.WalletChainID, append([]*sign.EthereumSigner(nil), a.signers...))
}

func (a *App) registerOptions() error {
	err := a.modal.Register(wallet.ProviderOption{
		ID:          OptionInjected,
		Name:        "Built-in wallet",
		Description: "In-process wallet holding the configured keys",
		Open: func(context.Context) (wallet.Transport, error) {
			return a.newLocalWallet()
		},
	})
	if err != nil {
		return err
	}

	if a.cfg.BridgeURL == "" {
		return nil
	}
	return a.modal.Register(wallet.ProviderOption{
		ID:          OptionWalletConnect,
		Name:        "Wallet bridge",
		Description: "Remote wallet at " + a.cfg.BridgeURL,
		Open: func(ctx context.Context) (wallet.Transport, error) {
			return wallet.DialWebsocket(log.SetContextLogger(ctx, a.lg), a.cfg.BridgeURL, wallet.DefaultWebsocketConfig)
		},
	})
}

func (a *App) redisClient() (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	a.redis = redis.NewClient(opts)
	a.closers = append(a.closers, a.redis.Close)
	return a.redis, nil
}

func (a *App) newCacheStore() (wallet.CacheStore, error) {
	switch a.cfg.CacheBackend {
	case CacheMemory:
		return wallet.NewMemoryCache(), nil
	case CacheRedis:
		client, err := a.redisClient()
		if err != nil {
			return nil, err
		}
		return wallet.NewRedisCache(client, a.cfg.Profile), nil
	case CacheSQLite:
		if err := os.MkdirAll(a.cfg.ConfigDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		fallthrough
	default:
		return wallet.OpenGormCache(a.cfg.CacheBackend, a.cfg.cacheDSN(), a.cfg.Profile)
	}
}

func (a *App) newPublisher() (*controller.EventPublisher, error) {
	wmLogger := newWatermillLogger(a.lg)

	switch a.cfg.Events {
	case EventsRedis:
		client, err := a.redisClient()
		if err != nil {
			return nil, err
		}
		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis publisher: %w", err)
		}
		a.pubSub = publisher
	case EventsGoChannel:
		a.pubSub = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
	default:
		return nil, nil
	}
	a.closers = append([]func() error{a.pubSub.Close}, a.closers...)
	return controller.NewEventPublisher(a.pubSub), nil
}

// FollowEvents logs events published in-process until ctx is done. It is a
// no-op for other backends.
func (a *App) FollowEvents(ctx context.Context) error {
	ch, ok := a.pubSub.(*gochannel.GoChannel)
	if !ok {
		return nil
	}
	messages, err := ch.Subscribe(ctx, controller.Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to session events: %w", err)
	}

	lg := a.lg.WithName("events")
	go func() {
		for msg := range messages {
			lg.Info("session event", "type", msg.Metadata.Get("type"), "payload", string(msg.Payload))
			msg.Ack()
		}
	}()
	return nil
}

// Close stops the controller and releases the publisher and connections.
func (a *App) Close() {
	if a.controller != nil {
		a.controller.Close()
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.lg.Warn("closing resource", "error", err)
		}
	}
	a.closers = nil
}
