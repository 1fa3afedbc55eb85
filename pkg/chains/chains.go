package chains

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Network describes an EVM chain the launchpool contracts are deployed on
type Network struct {
	ChainID       int
	Name          string
	DefaultRPCURL string
	ExplorerURL   string
	Testnet       bool
}

// networks maps chain IDs to their presets
var networks = map[int]Network{
	1:        {ChainID: 1, Name: "ETHEREUM", DefaultRPCURL: "https://eth.llamarpc.com", ExplorerURL: "https://etherscan.io"},
	56:       {ChainID: 56, Name: "BSC", DefaultRPCURL: "https://bsc-dataseed.bnbchain.org", ExplorerURL: "https://bscscan.com"},
	137:      {ChainID: 137, Name: "POLYGON", DefaultRPCURL: "https://polygon-rpc.com", ExplorerURL: "https://polygonscan.com"},
	7000:     {ChainID: 7000, Name: "ZETACHAIN", DefaultRPCURL: "https://zetachain-evm.blockpi.network/v1/rpc/public", ExplorerURL: "https://zetachain.blockscout.com"},
	8453:     {ChainID: 8453, Name: "BASE", DefaultRPCURL: "https://mainnet.base.org", ExplorerURL: "https://basescan.org"},
	42161:    {ChainID: 42161, Name: "ARBITRUM", DefaultRPCURL: "https://arb1.arbitrum.io/rpc", ExplorerURL: "https://arbiscan.io"},
	43114:    {ChainID: 43114, Name: "AVALANCHE", DefaultRPCURL: "https://avalanche-c-chain-rpc.publicnode.com", ExplorerURL: "https://snowtrace.io"},
	84532:    {ChainID: 84532, Name: "BASE_SEPOLIA", DefaultRPCURL: "https://sepolia.base.org", ExplorerURL: "https://sepolia.basescan.org", Testnet: true},
	11155111: {ChainID: 11155111, Name: "SEPOLIA", DefaultRPCURL: "https://rpc.sepolia.org", ExplorerURL: "https://sepolia.etherscan.io", Testnet: true},
}

// ChainList returns the supported chain IDs in ascending order
func ChainList() []int {
	ids := make([]int, 0, len(networks))
	for id := range networks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// GetNetwork returns the preset for a chain ID
func GetNetwork(chainID int) (Network, bool) {
	n, ok := networks[chainID]
	return n, ok
}

// GetNetworkByName looks a preset up by its name, case-insensitively
func GetNetworkByName(name string) (Network, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, n := range networks {
		if n.Name == name {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("unknown network %q", name)
}

// GetChainName returns the name of the chain for a given chain ID
func GetChainName(chainID int) string {
	n, exists := networks[chainID]
	if !exists {
		return ""
	}
	return n.Name
}

// TxURL links a transaction on the chain's block explorer, or returns "" for unknown chains
func TxURL(chainID int, hash common.Hash) string {
	n, exists := networks[chainID]
	if !exists || n.ExplorerURL == "" {
		return ""
	}
	return n.ExplorerURL + "/tx/" + hash.Hex()
}
