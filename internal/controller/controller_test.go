package controller_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/block-0x/signet/internal/controller"
	"github.com/block-0x/signet/internal/network"
	"github.com/block-0x/signet/internal/session"
	"github.com/block-0x/signet/internal/signing"
	"github.com/block-0x/signet/pkg/sign"
	"github.com/block-0x/signet/pkg/wallet"
)

const (
	testPrivKey  = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress  = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	otherPrivKey = "0x8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63"
)

// recordingTransport wraps a LocalWallet, counts requests per method and can
// force an error for a method.
type recordingTransport struct {
	*wallet.LocalWallet

	mu     sync.Mutex
	calls  map[string]int
	params map[string][]any
	fail   map[string]error
}

func (r *recordingTransport) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	r.mu.Lock()
	r.calls[method]++
	r.params[method] = params
	err := r.fail[method]
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return r.LocalWallet.Request(ctx, method, params...)
}

func (r *recordingTransport) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

func (r *recordingTransport) lastParams(method string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params[method]
}

func (r *recordingTransport) failWith(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[method] = err
}

// holdingPublisher blocks publishing of one event type until released, which
// holds the controller's event loop in place.
type holdingPublisher struct {
	eventType string
	held      chan struct{}
	release   chan struct{}
	once      sync.Once
}

func newHoldingPublisher(eventType string) *holdingPublisher {
	return &holdingPublisher{
		eventType: eventType,
		held:      make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
}

func (p *holdingPublisher) Publish(_ string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		if msg.Metadata.Get("type") != p.eventType {
			continue
		}
		select {
		case p.held <- struct{}{}:
		default:
		}
		<-p.release
	}
	return nil
}

func (p *holdingPublisher) Release() {
	p.once.Do(func() { close(p.release) })
}

func (p *holdingPublisher) Close() error {
	p.Release()
	return nil
}

type fixture struct {
	t        *testing.T
	ctrl     *controller.Controller
	sessions *session.Manager
	modal    *wallet.Modal
	cache    *wallet.MemoryCache
	metrics  *controller.Metrics
	opts     []wallet.LocalOption
	openErr  error

	mu     sync.Mutex
	opened []*recordingTransport
}

func (f *fixture) open(context.Context) (wallet.Transport, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	s1, err := sign.NewEthereumSigner(testPrivKey)
	require.NoError(f.t, err)
	s2, err := sign.NewEthereumSigner(otherPrivKey)
	require.NoError(f.t, err)
	w, err := wallet.NewLocalWallet(1, []*sign.EthereumSigner{s1, s2}, f.opts...)
	require.NoError(f.t, err)

	rt := &recordingTransport{
		LocalWallet: w,
		calls:       map[string]int{},
		params:      map[string][]any{},
		fail:        map[string]error{},
	}
	f.mu.Lock()
	f.opened = append(f.opened, rt)
	f.mu.Unlock()
	return rt, nil
}

func (f *fixture) wallet() *recordingTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.opened)
	return f.opened[len(f.opened)-1]
}

func setup(t *testing.T, opts ...controller.Option) *fixture {
	t.Helper()
	return setupWithCache(t, wallet.NewMemoryCache(), opts...)
}

func setupWithCache(t *testing.T, cache *wallet.MemoryCache, opts ...controller.Option) *fixture {
	t.Helper()
	f := &fixture{t: t, cache: cache, metrics: controller.NewMetrics(prometheus.NewRegistry())}

	f.modal = wallet.NewModal(wallet.WithCacheStore(cache))
	require.NoError(t, f.modal.Register(wallet.ProviderOption{ID: "injected", Name: "Browser wallet", Open: f.open}))

	catalog, err := network.Default()
	require.NoError(t, err)

	opts = append([]controller.Option{controller.WithMetrics(f.metrics)}, opts...)
	f.sessions = session.NewManager(f.modal)
	f.ctrl = controller.New(f.sessions, catalog, opts...)
	t.Cleanup(func() {
		f.ctrl.Disconnect(context.Background())
		f.ctrl.Close()
	})
	return f
}

func (f *fixture) connect() controller.State {
	f.t.Helper()
	f.ctrl.Start(context.Background())
	st := f.ctrl.ConnectWallet(context.Background())
	require.Nil(f.t, st.Error)
	require.Equal(f.t, controller.PhaseConnected, st.Phase)
	return st
}

func TestController_Start(t *testing.T) {
	t.Run("nothing cached", func(t *testing.T) {
		f := setup(t)
		st := f.ctrl.Start(context.Background())

		assert.Equal(t, controller.PhaseDisconnected, st.Phase)
		assert.Nil(t, st.Error)
		assert.Empty(t, f.opened)
	})

	t.Run("restores cached wallet", func(t *testing.T) {
		cache := wallet.NewMemoryCache()
		first := setupWithCache(t, cache)
		original := first.connect()
		first.ctrl.Close()

		second := setupWithCache(t, cache)
		restored := second.ctrl.Start(context.Background())

		assert.Equal(t, controller.PhaseConnected, restored.Phase)
		assert.Equal(t, original.Account, restored.Account)
		assert.Equal(t, original.ChainID, restored.ChainID)
		assert.Nil(t, restored.Error)
	})

	t.Run("failed restore sets connection error", func(t *testing.T) {
		cache := wallet.NewMemoryCache()
		require.NoError(t, cache.SetCachedProvider(context.Background(), "injected"))
		f := setupWithCache(t, cache)
		f.opts = []wallet.LocalOption{wallet.WithApprover(wallet.RejectAll)}

		st := f.ctrl.Start(context.Background())

		assert.Equal(t, controller.PhaseDisconnected, st.Phase)
		require.NotNil(t, st.Error)
		assert.Equal(t, controller.ErrorConnection, st.Error.Kind)

		id, err := cache.CachedProvider(context.Background())
		require.NoError(t, err)
		assert.Empty(t, id)
	})
}

func TestController_ConnectWallet(t *testing.T) {
	t.Run("account is the first exposed account", func(t *testing.T) {
		f := setup(t)
		st := f.connect()

		accounts := f.wallet().Accounts()
		require.NotEmpty(t, accounts)
		assert.Equal(t, accounts[0], st.Account)
		assert.Equal(t, testAddress, st.Account)
		assert.Equal(t, uint64(1), st.ChainID)
		assert.True(t, st.IsConnected())
		assert.Equal(t, controller.NoSignature, st.SignaturePhase())

		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Connected))
	})

	t.Run("user rejects", func(t *testing.T) {
		f := setup(t)
		f.opts = []wallet.LocalOption{wallet.WithApprover(wallet.RejectAll)}

		st := f.ctrl.ConnectWallet(context.Background())

		assert.Equal(t, controller.PhaseDisconnected, st.Phase)
		assert.Empty(t, st.Account)
		require.NotNil(t, st.Error)
		assert.Equal(t, controller.ErrorConnection, st.Error.Kind)
		assert.Contains(t, st.Error.Message, "connection error")
	})

	t.Run("reconnect starts a fresh session", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.ctrl.HandleInput("hello")
		f.ctrl.SignMessage(context.Background())
		st := f.ctrl.VerifyMessage(context.Background())
		require.Equal(t, controller.Verified, st.SignaturePhase())
		f.ctrl.HandleNetwork("137")

		st = f.ctrl.ConnectWallet(context.Background())

		assert.Len(t, f.opened, 2)
		assert.Equal(t, controller.PhaseConnected, st.Phase)
		assert.Equal(t, testAddress, st.Account)
		assert.Equal(t, "hello", st.Message)
		assert.Empty(t, st.Signature)
		assert.Empty(t, st.SignedMessage)
		assert.Equal(t, signing.Unknown, st.Verified)
		assert.Equal(t, controller.NoSignature, st.SignaturePhase())
		assert.Zero(t, st.NetworkTarget)
		assert.Nil(t, st.Error)
	})

	t.Run("selection cancelled", func(t *testing.T) {
		f := setup(t)
		f.openErr = wallet.ErrSelectionCancelled

		st := f.ctrl.ConnectWallet(context.Background())

		assert.Equal(t, controller.PhaseDisconnected, st.Phase)
		require.NotNil(t, st.Error)
		assert.Equal(t, controller.ErrorConnection, st.Error.Kind)
	})
}

func TestController_Disconnect(t *testing.T) {
	t.Run("resets everything", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.ctrl.HandleInput("hello")
		f.ctrl.SignMessage(context.Background())
		f.ctrl.HandleNetwork("banana")

		st := f.ctrl.Disconnect(context.Background())

		assert.Equal(t, controller.State{Phase: controller.PhaseDisconnected}, st)
		assert.Equal(t, st, f.ctrl.State())

		id, err := f.cache.CachedProvider(context.Background())
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("disconnecting twice is a no-op", func(t *testing.T) {
		f := setup(t)
		first := f.ctrl.Disconnect(context.Background())
		second := f.ctrl.Disconnect(context.Background())

		assert.Equal(t, controller.State{Phase: controller.PhaseDisconnected}, first)
		assert.Equal(t, first, second)
	})

	t.Run("late disconnect of a replaced session", func(t *testing.T) {
		pub := newHoldingPublisher(controller.EventChainChanged)
		f := setup(t, controller.WithPublisher(controller.NewEventPublisher(pub)))
		t.Cleanup(pub.Release)
		f.connect()
		first := f.wallet()

		first.EmitChainChanged(137)
		select {
		case <-pub.held:
		case <-time.After(time.Second):
			t.Fatal("event loop never reached the publisher")
		}

		first.EmitDisconnect()
		require.Eventually(t, func() bool {
			_, ok := f.sessions.Current()
			return !ok
		}, time.Second, 10*time.Millisecond)

		st := f.ctrl.ConnectWallet(context.Background())
		require.Equal(t, controller.PhaseConnected, st.Phase)
		require.NotSame(t, first, f.wallet())

		pub.Release()
		assert.Eventually(t, func() bool {
			return testutil.ToFloat64(f.metrics.WalletEvents.WithLabelValues("Disconnected")) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Never(t, func() bool {
			return f.ctrl.State().Phase != controller.PhaseConnected
		}, 200*time.Millisecond, 10*time.Millisecond)

		st = f.ctrl.State()
		assert.Equal(t, testAddress, st.Account)
		assert.Nil(t, st.Error)

		id, err := f.cache.CachedProvider(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "injected", id)

		_, err = f.wallet().Request(context.Background(), wallet.MethodChainID)
		assert.NoError(t, err)
	})

	t.Run("provider disconnect event", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.ctrl.HandleInput("hello")
		f.ctrl.SignMessage(context.Background())

		f.wallet().EmitDisconnect()

		assert.Eventually(t, func() bool {
			return f.ctrl.State() == controller.State{Phase: controller.PhaseDisconnected}
		}, time.Second, 10*time.Millisecond)
	})
}

func TestController_HandleInput(t *testing.T) {
	f := setup(t)

	st := f.ctrl.HandleInput("hello")
	assert.Equal(t, "hello", st.Message)

	st = f.ctrl.HandleInput(strings.Repeat("x", 25))
	assert.Equal(t, strings.Repeat("x", controller.MaxMessageLength), st.Message)

	st = f.ctrl.HandleInput(strings.Repeat("é", 21))
	assert.Equal(t, strings.Repeat("é", controller.MaxMessageLength), st.Message)
}

func TestController_SignAndVerify(t *testing.T) {
	t.Run("honest round trip", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.ctrl.HandleInput("hello")

		st := f.ctrl.SignMessage(context.Background())
		require.Nil(t, st.Error)
		assert.Equal(t, controller.Signed, st.SignaturePhase())
		assert.Equal(t, "hello", st.SignedMessage)

		st = f.ctrl.VerifyMessage(context.Background())
		require.Nil(t, st.Error)
		assert.Equal(t, signing.Verified, st.Verified)
		assert.Equal(t, controller.Verified, st.SignaturePhase())
	})

	t.Run("verification uses the signed message", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.ctrl.HandleInput("hello")
		f.ctrl.SignMessage(context.Background())

		f.ctrl.HandleInput("hello!")
		st := f.ctrl.VerifyMessage(context.Background())

		assert.Equal(t, "hello!", st.Message)
		assert.Equal(t, "hello", st.SignedMessage)
		assert.Equal(t, signing.Verified, st.Verified)
	})

	t.Run("stale signature over edited message is denied", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.ctrl.HandleInput("hello")
		st := f.ctrl.SignMessage(context.Background())
		require.NotEmpty(t, st.Signature)

		sig, err := sign.ParseSignature(st.Signature)
		require.NoError(t, err)

		p := wallet.NewProvider("injected", f.wallet())
		v, err := signing.Verify(context.Background(), p, "hello!", sig, st.Account)
		require.NoError(t, err)
		assert.Equal(t, signing.Denied, v)
	})

	t.Run("signature from another account is denied", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.ctrl.HandleInput("hello")
		f.ctrl.SignMessage(context.Background())

		require.NoError(t, f.wallet().SelectAccount(1))
		assert.Eventually(t, func() bool {
			return f.ctrl.State().Account != testAddress
		}, time.Second, 10*time.Millisecond)

		st := f.ctrl.VerifyMessage(context.Background())
		require.Nil(t, st.Error)
		assert.Equal(t, signing.Denied, st.Verified)
		assert.Equal(t, controller.Denied, st.SignaturePhase())
	})

	t.Run("new signature resets verification", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.ctrl.HandleInput("hello")
		f.ctrl.SignMessage(context.Background())
		f.ctrl.VerifyMessage(context.Background())

		f.ctrl.HandleInput("again")
		st := f.ctrl.SignMessage(context.Background())

		assert.Equal(t, "again", st.SignedMessage)
		assert.Equal(t, signing.Unknown, st.Verified)
		assert.Equal(t, controller.Signed, st.SignaturePhase())
	})

	t.Run("user rejects signing", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.wallet().failWith(wallet.MethodPersonalSign, wallet.NewProviderError(wallet.CodeUserRejected))
		f.ctrl.HandleInput("hello")

		st := f.ctrl.SignMessage(context.Background())

		require.NotNil(t, st.Error)
		assert.Equal(t, controller.ErrorSigning, st.Error.Kind)
		assert.Empty(t, st.Signature)
		assert.Equal(t, controller.NoSignature, st.SignaturePhase())
		assert.Equal(t, controller.PhaseConnected, st.Phase)
	})

	t.Run("sign without session", func(t *testing.T) {
		f := setup(t)
		st := f.ctrl.SignMessage(context.Background())

		require.NotNil(t, st.Error)
		assert.Equal(t, controller.ErrorSigning, st.Error.Kind)
	})

	t.Run("verify without signature", func(t *testing.T) {
		f := setup(t)
		f.connect()

		st := f.ctrl.VerifyMessage(context.Background())

		require.NotNil(t, st.Error)
		assert.Equal(t, controller.ErrorVerification, st.Error.Kind)
		assert.Contains(t, st.Error.Message, controller.ErrNoSignature.Error())
	})

	t.Run("recovery fault leaves state unchanged", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.ctrl.HandleInput("hello")
		signed := f.ctrl.SignMessage(context.Background())
		f.wallet().failWith(wallet.MethodPersonalEcRecover, wallet.NewProviderError(wallet.CodeInvalidParams))

		st := f.ctrl.VerifyMessage(context.Background())

		require.NotNil(t, st.Error)
		assert.Equal(t, controller.ErrorVerification, st.Error.Kind)
		assert.Equal(t, signed.Signature, st.Signature)
		assert.Equal(t, controller.Signed, st.SignaturePhase())
	})

	t.Run("error survives later success", func(t *testing.T) {
		f := setup(t)
		f.connect()
		st := f.ctrl.VerifyMessage(context.Background())
		require.NotNil(t, st.Error)

		f.ctrl.HandleInput("hello")
		st = f.ctrl.SignMessage(context.Background())

		assert.NotEmpty(t, st.Signature)
		require.NotNil(t, st.Error)
		assert.Equal(t, controller.ErrorVerification, st.Error.Kind)
	})
}

func TestController_WalletEvents(t *testing.T) {
	t.Run("accountsChanged keeps verification", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.ctrl.HandleInput("hello")
		f.ctrl.SignMessage(context.Background())
		st := f.ctrl.VerifyMessage(context.Background())
		require.Equal(t, controller.Verified, st.SignaturePhase())

		require.NoError(t, f.wallet().SelectAccount(1))

		other, err := sign.NewEthereumSigner(otherPrivKey)
		require.NoError(t, err)
		assert.Eventually(t, func() bool {
			return f.ctrl.State().Account == other.Address().Hex()
		}, time.Second, 10*time.Millisecond)

		st = f.ctrl.State()
		assert.Equal(t, signing.Verified, st.Verified)
		assert.Equal(t, controller.Verified, st.SignaturePhase())
	})

	t.Run("empty accountsChanged keeps account", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.wallet().EmitAccountsChanged([]string{})
		f.wallet().EmitChainChanged(137)

		assert.Eventually(t, func() bool {
			return f.ctrl.State().ChainID == 137
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, testAddress, f.ctrl.State().Account)
		assert.Equal(t, controller.PhaseConnected, f.ctrl.State().Phase)
	})

	t.Run("subscribers see every change", func(t *testing.T) {
		f := setup(t)
		f.connect()

		states := make(chan controller.State, 8)
		sub := f.ctrl.Subscribe(states)
		defer sub.Unsubscribe()

		f.wallet().EmitChainChanged(0xa4ec)

		select {
		case st := <-states:
			assert.Equal(t, uint64(0xa4ec), st.ChainID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for state")
		}
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WalletEvents.WithLabelValues("ChainChanged")))
	})
}

func TestController_Network(t *testing.T) {
	t.Run("invalid input", func(t *testing.T) {
		f := setup(t)
		st := f.ctrl.HandleNetwork("not-a-chain")

		require.NotNil(t, st.Error)
		assert.Equal(t, controller.ErrorNetworkSwitch, st.Error.Kind)
		assert.Zero(t, st.NetworkTarget)
	})

	t.Run("known chain switches directly", func(t *testing.T) {
		f := setup(t)
		f.opts = []wallet.LocalOption{wallet.WithKnownChains(137)}
		f.connect()

		st := f.ctrl.HandleNetwork("137")
		assert.Equal(t, uint64(137), st.NetworkTarget)

		st = f.ctrl.SwitchNetwork(context.Background())
		assert.Nil(t, st.Error)
		assert.Zero(t, st.NetworkTarget)
		assert.Equal(t, 1, f.wallet().count(wallet.MethodSwitchChain))
		assert.Zero(t, f.wallet().count(wallet.MethodAddChain))

		assert.Eventually(t, func() bool {
			return f.ctrl.State().ChainID == 137
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("unrecognized chain adds it once", func(t *testing.T) {
		f := setup(t)
		f.connect()

		f.ctrl.HandleNetwork("0xa4ec")
		st := f.ctrl.SwitchNetwork(context.Background())

		assert.Nil(t, st.Error)
		assert.Zero(t, st.NetworkTarget)
		assert.Equal(t, 1, f.wallet().count(wallet.MethodSwitchChain))
		require.Equal(t, 1, f.wallet().count(wallet.MethodAddChain))

		params := f.wallet().lastParams(wallet.MethodAddChain)
		require.Len(t, params, 1)
		added, ok := params[0].(wallet.AddChainParams)
		require.True(t, ok)
		assert.Equal(t, "0xa4ec", added.ChainID)
		assert.Equal(t, "Celo Mainnet", added.ChainName)
		assert.NotEmpty(t, added.RPCURLs)

		assert.Eventually(t, func() bool {
			return f.ctrl.State().ChainID == 0xa4ec
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("other errors do not add the chain", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.wallet().failWith(wallet.MethodSwitchChain, wallet.NewProviderError(wallet.CodeUserRejected))

		f.ctrl.HandleNetwork("0x89")
		st := f.ctrl.SwitchNetwork(context.Background())

		require.NotNil(t, st.Error)
		assert.Equal(t, controller.ErrorNetworkSwitch, st.Error.Kind)
		assert.Zero(t, st.NetworkTarget)
		assert.Equal(t, 1, f.wallet().count(wallet.MethodSwitchChain))
		assert.Zero(t, f.wallet().count(wallet.MethodAddChain))
		assert.Equal(t, uint64(1), st.ChainID)
	})

	t.Run("add chain rejected", func(t *testing.T) {
		f := setup(t)
		f.connect()
		f.wallet().failWith(wallet.MethodAddChain, wallet.NewProviderError(wallet.CodeUserRejected))

		f.ctrl.HandleNetwork("0x89")
		st := f.ctrl.SwitchNetwork(context.Background())

		require.NotNil(t, st.Error)
		assert.Equal(t, controller.ErrorNetworkSwitch, st.Error.Kind)
		assert.Equal(t, 1, f.wallet().count(wallet.MethodAddChain))
	})

	t.Run("chain missing from catalog", func(t *testing.T) {
		f := setup(t)
		f.connect()

		f.ctrl.HandleNetwork("999999")
		st := f.ctrl.SwitchNetwork(context.Background())

		require.NotNil(t, st.Error)
		assert.Equal(t, controller.ErrorNetworkSwitch, st.Error.Kind)
		assert.Zero(t, f.wallet().count(wallet.MethodAddChain))
	})

	t.Run("no target selected", func(t *testing.T) {
		f := setup(t)
		f.connect()

		st := f.ctrl.SwitchNetwork(context.Background())

		require.NotNil(t, st.Error)
		assert.Contains(t, st.Error.Message, controller.ErrNoNetwork.Error())
		assert.Zero(t, f.wallet().count(wallet.MethodSwitchChain))
	})
}

func TestController_Tracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	f := setup(t, controller.WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))))
	f.connect()

	f.ctrl.HandleNetwork("0xa4ec")
	st := f.ctrl.SwitchNetwork(context.Background())
	require.Nil(t, st.Error)

	var switched sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if s.Name() == "SwitchNetwork" {
			switched = s
		}
	}
	require.NotNil(t, switched)
	assert.Contains(t, switched.Attributes(), attribute.String("chain_id", "0xa4ec"))

	var events []string
	for _, ev := range switched.Events() {
		events = append(events, ev.Name)
	}
	assert.Contains(t, events, "wallet does not know chain, adding it")
	assert.Contains(t, events, "network switched")
}

func TestController_PublishesEvents(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	messages, err := pubSub.Subscribe(context.Background(), controller.Topic)
	require.NoError(t, err)

	f := setup(t, controller.WithPublisher(controller.NewEventPublisher(pubSub)))
	f.connect()
	f.ctrl.HandleInput("hello")
	f.ctrl.SignMessage(context.Background())

	var got []controller.SessionEvent
	for len(got) < 2 {
		select {
		case msg := <-messages:
			var ev controller.SessionEvent
			require.NoError(t, json.Unmarshal(msg.Payload, &ev))
			assert.Equal(t, ev.Type, msg.Metadata.Get("type"))
			got = append(got, ev)
			msg.Ack()
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for published events")
		}
	}

	assert.Equal(t, controller.EventConnected, got[0].Type)
	assert.Equal(t, testAddress, got[0].Account)
	assert.Equal(t, controller.EventMessageSigned, got[1].Type)
	assert.Equal(t, "hello", got[1].Message)
	assert.NotEmpty(t, got[1].Signature)
}
