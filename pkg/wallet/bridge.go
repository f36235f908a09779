package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/block-0x/signet/pkg/log"
)

// Bridge exposes a Transport to WebsocketTransport clients. Each websocket
// connection gets its own event subscription; requests are served
// concurrently so one request waiting on user approval does not block others.
type Bridge struct {
	transport    Transport
	lg           log.Logger
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithBridgeWriteTimeout bounds every write to a client. A client that cannot
// keep up within d is dropped. Zero disables the bound.
func WithBridgeWriteTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) { b.writeTimeout = d }
}

// NewBridge serves t. A nil lg discards logs.
func NewBridge(t Transport, lg log.Logger, opts ...BridgeOption) *Bridge {
	if lg == nil {
		lg = log.NewNoopLogger()
	}
	b := &Bridge{
		transport: t,
		lg:        lg.WithName("bridge"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeTimeout: DefaultWebsocketConfig.WriteTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.lg.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(log.SetContextLogger(r.Context(), b.lg))
	defer cancel()

	var writeMu sync.Mutex
	send := func(msg rpcMessage) {
		data, err := json.Marshal(msg)
		if err != nil {
			b.lg.Error("marshal bridge message", "error", err)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if b.writeTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(b.writeTimeout))
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// Closing unblocks the read loop, which ends the subscription.
			b.lg.Debug("bridge write failed, dropping client", "error", err)
			_ = conn.Close()
		}
	}

	events := make(chan Event, 16)
	sub := b.transport.SubscribeEvents(events)
	defer sub.Unsubscribe()
	go b.forwardEvents(ctx, events, sub.Err(), send)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req rpcMessage
		if err := json.Unmarshal(data, &req); err != nil || req.ID == "" {
			b.lg.Warn("malformed bridge request", "message", string(data))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			send(b.serve(ctx, &req))
		}()
	}
}

func (b *Bridge) serve(ctx context.Context, req *rpcMessage) rpcMessage {
	res := rpcMessage{JSONRPC: jsonrpcVersion, ID: req.ID}

	var params []json.RawMessage
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			res.Error = NewProviderError(CodeInvalidParams)
			return res
		}
	}
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p
	}

	result, err := b.transport.Request(ctx, req.Method, args...)
	if err != nil {
		var perr *ProviderError
		if !errors.As(err, &perr) {
			perr = &ProviderError{Code: CodeInternal, Message: err.Error()}
		}
		res.Error = perr
		return res
	}
	res.Result = result
	return res
}

func (b *Bridge) forwardEvents(ctx context.Context, events <-chan Event, subErr <-chan error, send func(rpcMessage)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-subErr:
			return
		case ev := <-events:
			params, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			send(rpcMessage{JSONRPC: jsonrpcVersion, Method: eventMethod, Params: params})
		}
	}
}
