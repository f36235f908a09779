package wallet

import "encoding/json"

const (
	jsonrpcVersion = "2.0"
	// eventMethod is the notification method a bridge uses to push provider events.
	eventMethod = "wallet_event"
)

// rpcMessage covers requests, responses and notifications on the wire.
// Requests and responses carry an id; notifications do not.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ProviderError  `json:"error,omitempty"`
}

func (m *rpcMessage) isNotification() bool {
	return m.ID == "" && m.Method != ""
}
