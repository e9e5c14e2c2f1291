package x402

import "fmt"

// Chain identifiers for supported EVM networks.
const (
	// ChainBase is Base mainnet, the default network.
	ChainBase int64 = 8453

	// ChainBaseSepolia is the Base Sepolia testnet.
	ChainBaseSepolia int64 = 84532

	// ChainEthereum is Ethereum mainnet.
	ChainEthereum int64 = 1

	// ChainSepolia is the Sepolia testnet.
	ChainSepolia int64 = 11155111

	// ChainPolygon is Polygon PoS mainnet.
	ChainPolygon int64 = 137

	// ChainAvalanche is Avalanche C-Chain mainnet.
	ChainAvalanche int64 = 43114
)

// DefaultChainID is assumed when a server omits the network field.
const DefaultChainID = ChainBase

// USDCDecimals is the number of decimal places for USDC on every
// supported chain.
const USDCDecimals = 6

// ChainConfig holds per-chain constants needed to build and sign a
// transfer authorization.
type ChainConfig struct {
	// ChainID is the EVM chain identifier.
	ChainID int64

	// USDCAddress is the official Circle USDC contract address.
	USDCAddress string

	// EIP3009Name is the EIP-712 domain parameter "name".
	EIP3009Name string

	// EIP3009Version is the EIP-712 domain parameter "version".
	EIP3009Version string
}

// Predefined chain configurations. USDC addresses and EIP-3009 domain
// parameters verified against the deployed contracts.
var (
	// BaseMainnet is the configuration for Base mainnet.
	BaseMainnet = ChainConfig{
		ChainID:        ChainBase,
		USDCAddress:    "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	// BaseSepolia is the configuration for the Base Sepolia testnet.
	BaseSepolia = ChainConfig{
		ChainID:        ChainBaseSepolia,
		USDCAddress:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	}

	// EthereumMainnet is the configuration for Ethereum mainnet.
	EthereumMainnet = ChainConfig{
		ChainID:        ChainEthereum,
		USDCAddress:    "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	// SepoliaTestnet is the configuration for the Sepolia testnet.
	SepoliaTestnet = ChainConfig{
		ChainID:        ChainSepolia,
		USDCAddress:    "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	}

	// PolygonMainnet is the configuration for Polygon PoS mainnet.
	PolygonMainnet = ChainConfig{
		ChainID:        ChainPolygon,
		USDCAddress:    "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	// AvalancheMainnet is the configuration for Avalanche C-Chain mainnet.
	AvalancheMainnet = ChainConfig{
		ChainID:        ChainAvalanche,
		USDCAddress:    "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}
)

var chainConfigs = map[int64]ChainConfig{
	ChainBase:        BaseMainnet,
	ChainBaseSepolia: BaseSepolia,
	ChainEthereum:    EthereumMainnet,
	ChainSepolia:     SepoliaTestnet,
	ChainPolygon:     PolygonMainnet,
	ChainAvalanche:   AvalancheMainnet,
}

// ChainByID returns the configuration for the given chain identifier.
func ChainByID(chainID int64) (ChainConfig, error) {
	cfg, ok := chainConfigs[chainID]
	if !ok {
		return ChainConfig{}, fmt.Errorf("x402: unsupported chain id %d", chainID)
	}
	return cfg, nil
}

// DefaultChain returns the configuration for the default network.
func DefaultChain() ChainConfig {
	return chainConfigs[DefaultChainID]
}
