package sign

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of an [R || S || V] signature.
const SignatureLength = 65

var (
	ErrInvalidSignature = fmt.Errorf("invalid signature")
	ErrRecoveryFailed   = fmt.Errorf("signature recovery failed")
)

// Signer signs 32-byte digests on behalf of a single address.
type Signer interface {
	Address() common.Address
	// Sign returns a signature over hash with V in {27, 28}.
	Sign(hash []byte) (Signature, error)
}

// Signature is a 65-byte recoverable signature. It encodes to JSON as a
// 0x-prefixed hex string.
type Signature []byte

func (s Signature) String() string {
	return hexutil.Encode(s)
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	decoded, err := hexutil.Decode(hexStr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	*s = decoded
	return nil
}

// ParseSignature decodes a 0x-prefixed hex signature and checks its length.
func ParseSignature(hexSig string) (Signature, error) {
	raw, err := hexutil.Decode(hexSig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if len(raw) != SignatureLength {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(raw))
	}
	return raw, nil
}

// PersonalHash returns keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func PersonalHash(message []byte) []byte {
	return accounts.TextHash(message)
}

// RecoverAddress returns the address whose key produced sig over hash.
// Both the {0, 1} and {27, 28} encodings of V are accepted.
func RecoverAddress(hash []byte, sig Signature) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}

	local := make([]byte, SignatureLength)
	copy(local, sig)
	if local[64] >= 27 {
		local[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(hash, local)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrRecoveryFailed, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// RecoverPersonal recovers the signer of a personal_sign signature over message.
func RecoverPersonal(message []byte, sig Signature) (common.Address, error) {
	return RecoverAddress(PersonalHash(message), sig)
}

// SameAddress reports whether a and b name the same account, ignoring the
// checksum casing. Strings that are not addresses never match.
func SameAddress(a, b string) bool {
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return strings.EqualFold(common.HexToAddress(a).Hex(), common.HexToAddress(b).Hex())
}
