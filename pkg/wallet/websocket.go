package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/block-0x/signet/pkg/log"
)

var _ Transport = (*WebsocketTransport)(nil)

// WebsocketConfig tunes a WebsocketTransport.
type WebsocketConfig struct {
	HandshakeTimeout time.Duration
	// PingInterval is the period of websocket ping frames. Zero disables pings.
	PingInterval time.Duration
	WriteTimeout time.Duration
}

var DefaultWebsocketConfig = WebsocketConfig{
	HandshakeTimeout: 5 * time.Second,
	PingInterval:     10 * time.Second,
	WriteTimeout:     5 * time.Second,
}

// WebsocketTransport talks JSON-RPC 2.0 to a remote wallet bridge.
// Responses are matched to requests by id; notifications with method
// wallet_event are delivered as provider events. When the connection drops,
// subscribers receive a disconnect event and pending requests fail.
type WebsocketTransport struct {
	cfg  WebsocketConfig
	conn *websocket.Conn
	lg   log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	sinks   map[string]chan *rpcMessage
	writeMu sync.Mutex

	feed      event.Feed
	scope     event.SubscriptionScope
	closeOnce sync.Once
	done      chan struct{}
}

// DialWebsocket connects to the bridge at url. ctx bounds the handshake only;
// the connection lives until Close or until the bridge goes away.
func DialWebsocket(ctx context.Context, url string, cfg WebsocketConfig) (*WebsocketTransport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDialingWebsocket, err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	t := &WebsocketTransport{
		cfg:    cfg,
		conn:   conn,
		lg:     log.FromContext(ctx).WithName("ws-transport"),
		ctx:    connCtx,
		cancel: cancel,
		sinks:  make(map[string]chan *rpcMessage),
		done:   make(chan struct{}),
	}

	go t.readMessages()
	if cfg.PingInterval > 0 {
		go t.pingPeriodically()
	}
	return t, nil
}

func (t *WebsocketTransport) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if t.ctx.Err() != nil {
		return nil, ErrNotConnected
	}

	rawParams, err := json.Marshal(nonNilParams(params))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendingRequest, err)
	}
	req := rpcMessage{JSONRPC: jsonrpcVersion, ID: uuid.NewString(), Method: method, Params: rawParams}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendingRequest, err)
	}

	sink := make(chan *rpcMessage, 1)
	t.mu.Lock()
	t.sinks[req.ID] = sink
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.sinks, req.ID)
		t.mu.Unlock()
	}()

	if err := t.write(reqJSON); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendingRequest, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.ctx.Done():
		return nil, ErrTransportClosed
	case res := <-sink:
		if res.Result == nil && res.Error == nil {
			return nil, fmt.Errorf("%w for request %s", ErrNoResponse, req.ID)
		}
		if res.Error != nil {
			return nil, res.Error
		}
		return res.Result, nil
	}
}

func (t *WebsocketTransport) SubscribeEvents(sink chan<- Event) event.Subscription {
	return t.scope.Track(t.feed.Subscribe(sink))
}

// Close shuts the connection without emitting a disconnect event.
func (t *WebsocketTransport) Close() error {
	t.shutdown(nil)
	<-t.done
	return nil
}

// Done is closed once the transport has shut down.
func (t *WebsocketTransport) Done() <-chan struct{} {
	return t.done
}

func (t *WebsocketTransport) write(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.cfg.WriteTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WebsocketTransport) readMessages() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.ctx.Err() == nil {
				t.lg.Warn("websocket read failed", "error", err)
			}
			t.shutdown(err)
			return
		}

		var msg rpcMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.lg.Warn("malformed message", "message", string(data), "error", err)
			continue
		}

		if msg.isNotification() {
			t.handleNotification(&msg)
			continue
		}

		t.deliver(&msg)
	}
}

// deliver hands a response to the waiting request. Sinks hold one message,
// so a duplicate response for the same id is dropped.
func (t *WebsocketTransport) deliver(msg *rpcMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sink, ok := t.sinks[msg.ID]
	if !ok {
		t.lg.Warn("response for unknown request", "id", msg.ID)
		return
	}
	select {
	case sink <- msg:
	default:
		t.lg.Warn("duplicate response dropped", "id", msg.ID)
	}
}

func (t *WebsocketTransport) handleNotification(msg *rpcMessage) {
	if msg.Method != eventMethod {
		t.lg.Debug("ignoring notification", "method", msg.Method)
		return
	}
	var ev Event
	if err := json.Unmarshal(msg.Params, &ev); err != nil {
		t.lg.Warn("malformed wallet event", "error", err)
		return
	}
	t.feed.Send(ev)
}

func (t *WebsocketTransport) pingPeriodically() {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(t.cfg.PingInterval)
			if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				t.lg.Error("error sending ping", "error", err)
				t.shutdown(err)
				return
			}
		}
	}
}

// shutdown runs once. A non-nil cause means the connection was lost rather
// than closed locally, and subscribers are told with a disconnect event.
func (t *WebsocketTransport) shutdown(cause error) {
	t.closeOnce.Do(func() {
		t.cancel()
		if err := t.conn.Close(); err != nil {
			t.lg.Debug("closing websocket", "error", err)
		}

		t.mu.Lock()
		clear(t.sinks)
		t.mu.Unlock()

		if cause != nil {
			t.feed.Send(Event{
				Type: EventDisconnect,
				Err:  &ProviderError{Code: CodeDisconnected, Message: cause.Error()},
			})
		}
		t.scope.Close()
		close(t.done)
	})
}

func nonNilParams(params []any) []any {
	if params == nil {
		return []any{}
	}
	return params
}
