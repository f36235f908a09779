// Package network holds the static chain catalog used when a wallet has to be
// taught about a chain before it can switch to it.
package network

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/block-0x/signet/pkg/wallet"
)

//go:embed networks.yaml
var defaultNetworks []byte

var ErrInvalidChainID = fmt.Errorf("invalid chain id")

// Network is the metadata a wallet needs to add a chain.
type Network struct {
	ChainID           uint64         `yaml:"-"`
	ChainName         string         `yaml:"chain_name" validate:"required"`
	RPCURLs           []string       `yaml:"rpc_urls" validate:"required,min=1,dive,url"`
	NativeCurrency    NativeCurrency `yaml:"native_currency"`
	BlockExplorerURLs []string       `yaml:"block_explorer_urls" validate:"dive,url"`
}

type NativeCurrency struct {
	Name     string `yaml:"name" validate:"required"`
	Symbol   string `yaml:"symbol" validate:"required,min=2,max=6"`
	Decimals uint8  `yaml:"decimals" validate:"max=36"`
}

// HexID returns the canonical hex chain id.
func (n Network) HexID() string {
	return ToHex(n.ChainID)
}

// AddChainParams converts n into the wallet_addEthereumChain parameter.
func (n Network) AddChainParams() wallet.AddChainParams {
	return wallet.AddChainParams{
		ChainID:   n.HexID(),
		ChainName: n.ChainName,
		RPCURLs:   append([]string(nil), n.RPCURLs...),
		NativeCurrency: wallet.NativeCurrency{
			Name:     n.NativeCurrency.Name,
			Symbol:   n.NativeCurrency.Symbol,
			Decimals: n.NativeCurrency.Decimals,
		},
		BlockExplorerURLs: append([]string(nil), n.BlockExplorerURLs...),
	}
}

type catalogFile struct {
	Networks map[string]Network `yaml:"networks"`
}

// Catalog maps canonical hex chain ids to networks. It is read-only after load.
type Catalog struct {
	networks map[string]Network
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(bytes.NewReader(defaultNetworks))
}

// LoadFile reads a catalog from a YAML file with the same layout as the
// built-in one.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a YAML catalog. Keys may be written in any hex
// case or in decimal; they are stored in canonical hex form.
func Parse(r io.Reader) (*Catalog, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode network catalog: %w", err)
	}

	validate := validator.New()
	networks := make(map[string]Network, len(file.Networks))
	for key, n := range file.Networks {
		id, err := ParseChainID(key)
		if err != nil {
			return nil, fmt.Errorf("network %q: %w", key, err)
		}
		if err := validate.Struct(n); err != nil {
			return nil, fmt.Errorf("network %q: %w", key, err)
		}

		n.ChainID = id
		hexID := ToHex(id)
		if _, dup := networks[hexID]; dup {
			return nil, fmt.Errorf("network %q: duplicate chain id %s", key, hexID)
		}
		networks[hexID] = n
	}
	return &Catalog{networks: networks}, nil
}

// Lookup returns the network for a hex chain id in any letter case.
func (c *Catalog) Lookup(hexID string) (Network, bool) {
	id, err := ParseChainID(hexID)
	if err != nil {
		return Network{}, false
	}
	n, ok := c.networks[ToHex(id)]
	return n, ok
}

// All returns every network ordered by chain id.
func (c *Catalog) All() []Network {
	all := make([]Network, 0, len(c.networks))
	for _, n := range c.networks {
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ChainID < all[j].ChainID })
	return all
}

// ToHex renders a chain id the way wallets expect it: 0x-prefixed, lowercase,
// no leading zeros.
func ToHex(chainID uint64) string {
	return hexutil.EncodeUint64(chainID)
}

// ParseChainID accepts a 0x-prefixed hex id or a decimal id.
func ParseChainID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidChainID)
	}

	var (
		id  uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		id, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		id, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChainID, s)
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: zero", ErrInvalidChainID)
	}
	return id, nil
}
