package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDSepolia  = 11155111
	ChainIDPolygon  = 137
	ChainIDArbitrum = 42161
	ChainIDOptimism = 10
	ChainIDBase     = 8453
)

// ChainName returns a short display name for well-known chains.
func ChainName(chainID uint64) string {
	switch chainID {
	case ChainIDEthereum:
		return "ethereum"
	case ChainIDSepolia:
		return "sepolia"
	case ChainIDPolygon:
		return "polygon"
	case ChainIDArbitrum:
		return "arbitrum"
	case ChainIDOptimism:
		return "optimism"
	case ChainIDBase:
		return "base"
	default:
		return "unknown"
	}
}

// USD is the accounting unit every profit and loss is expressed in.
var USD = NewAsset(AssetID{}, "USD", 6)

// Native coins of the supported chains.
var (
	ETH         = NewAsset(NewNativeAssetID(ChainIDEthereum), "ETH", 18).WithRefSymbol("ETHUSDT")
	ArbitrumETH = NewAsset(NewNativeAssetID(ChainIDArbitrum), "ETH", 18).WithRefSymbol("ETHUSDT")
	BaseETH     = NewAsset(NewNativeAssetID(ChainIDBase), "ETH", 18).WithRefSymbol("ETHUSDT")
	PolygonPOL  = NewAsset(NewNativeAssetID(ChainIDPolygon), "POL", 18).WithRefSymbol("POLUSDT")
	OptimismETH = NewAsset(NewNativeAssetID(ChainIDOptimism), "ETH", 18).WithRefSymbol("ETHUSDT")
)

// Ethereum mainnet tokens.
var (
	WETH = MustNewToken(ChainIDEthereum, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), "WETH", 18).WithRefSymbol("ETHUSDT")
	USDC = MustNewToken(ChainIDEthereum, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), "USDC", 6)
	USDT = MustNewToken(ChainIDEthereum, common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), "USDT", 6)
	WBTC = MustNewToken(ChainIDEthereum, common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), "WBTC", 8).WithRefSymbol("BTCUSDT")
)

// NativeFor returns the native coin of chainID, or nil when unknown.
func NativeFor(chainID uint64) *Asset {
	switch chainID {
	case ChainIDEthereum, ChainIDSepolia:
		return ETH
	case ChainIDArbitrum:
		return ArbitrumETH
	case ChainIDBase:
		return BaseETH
	case ChainIDPolygon:
		return PolygonPOL
	case ChainIDOptimism:
		return OptimismETH
	default:
		return nil
	}
}

// DefaultRegistry returns a registry with the natives and mainnet tokens.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []*Asset{ETH, ArbitrumETH, BaseETH, PolygonPOL, OptimismETH, WETH, USDC, USDT, WBTC} {
		r.Register(a)
	}
	return r
}

// MustNewToken creates a new ERC-20 token asset.
func MustNewToken(chainID uint64, address common.Address, symbol string, decimals uint8) *Asset {
	return NewAsset(NewTokenAssetID(chainID, address), symbol, decimals)
}
