// Package sign holds the secp256k1 primitives behind personal-message signing:
// the Signature type, an Ethereum signer and address recovery over the
// "\x19Ethereum Signed Message:\n" prefixed hash that wallets apply to
// personal_sign payloads.
//
// The package does not generate or store keys; an EthereumSigner is built from
// a key the caller already holds.
package sign
