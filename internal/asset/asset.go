package asset

import "github.com/ethereum/go-ethereum/common"

// Asset is the metadata of a token in the trading universe.
// Identity is the AssetID; symbol is only unique per chain.
type Asset struct {
	id        AssetID
	symbol    string
	decimals  uint8
	refSymbol string
}

// NewAsset creates a new Asset.
func NewAsset(id AssetID, symbol string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}
	return &Asset{id: id, symbol: symbol, decimals: decimals}
}

// WithRefSymbol returns a copy carrying the reference market symbol used for USD pricing.
func (a *Asset) WithRefSymbol(ref string) *Asset {
	c := *a
	c.refSymbol = ref
	return &c
}

func (a *Asset) ID() AssetID {
	return a.id
}

func (a *Asset) Symbol() string {
	return a.symbol
}

func (a *Asset) Decimals() uint8 {
	return a.decimals
}

// RefSymbol is the reference market ticker, e.g. ETHUSDT. Empty means USD-pegged.
func (a *Asset) RefSymbol() string {
	return a.refSymbol
}

func (a *Asset) ChainID() uint64 {
	return a.id.ChainID()
}

func (a *Asset) IsNative() bool {
	return a.id.IsNative()
}

// Address returns the token contract address (zero for native coins).
func (a *Asset) Address() common.Address {
	return a.id.Address()
}

func (a *Asset) String() string {
	return a.symbol
}

// Equals compares two Assets by their ID.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id.Equals(other.id)
}
