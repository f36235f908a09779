// Package wallet is the boundary between signet and a user's wallet.
//
// A wallet is reached through a Transport: a request/response channel in the
// shape of an EIP-1193 provider plus a feed of provider events
// (accountsChanged, chainChanged, disconnect). Provider wraps a Transport with
// typed calls for the methods signet uses. Modal plays the part of a wallet
// selection dialog: it knows the available wallet options, asks a Chooser
// which one to use and remembers the choice in a CacheStore so the next start
// can reconnect without asking.
//
// Two transports are provided. LocalWallet answers requests in-process with a
// key handed to it by the caller and is what tests and demos use.
// WebsocketTransport forwards JSON-RPC requests to a remote wallet bridge.
package wallet
