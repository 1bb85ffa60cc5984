package asset

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type symbolKey struct {
	chainID uint64
	symbol  string
}

// Registry is a thread-safe registry of the tokens the pipeline may route through.
type Registry struct {
	mu       sync.RWMutex
	byID     map[AssetID]*Asset
	bySymbol map[symbolKey]*Asset
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[symbolKey]*Asset),
	}
}

// Register adds an asset and panics on a duplicate ID.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[a.ID()]; exists {
		panic(fmt.Sprintf("asset: %s already registered", a.ID()))
	}
	r.put(a)
}

// Put adds or replaces an asset. Used for configured tokens overriding defaults.
func (r *Registry) Put(a *Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byID[a.ID()]; ok {
		delete(r.bySymbol, symbolKey{old.ChainID(), strings.ToUpper(old.Symbol())})
	}
	r.put(a)
}

func (r *Registry) put(a *Asset) {
	r.byID[a.ID()] = a
	r.bySymbol[symbolKey{a.ChainID(), strings.ToUpper(a.Symbol())}] = a
}

// Get retrieves an asset by its ID.
func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// BySymbol retrieves the asset with symbol on chainID. Lookup is case-insensitive.
func (r *Registry) BySymbol(chainID uint64, symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.bySymbol[symbolKey{chainID, strings.ToUpper(symbol)}]
	return a, ok
}

// MustBySymbol is BySymbol that panics when the asset is unknown.
func (r *Registry) MustBySymbol(chainID uint64, symbol string) *Asset {
	a, ok := r.BySymbol(chainID, symbol)
	if !ok {
		panic(fmt.Sprintf("asset: %s on chain %d not registered", symbol, chainID))
	}
	return a
}

// Native retrieves the native coin for a chain.
func (r *Registry) Native(chainID uint64) (*Asset, bool) {
	return r.Get(NewNativeAssetID(chainID))
}

// All returns all registered assets ordered by chain then symbol.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	result := make([]*Asset, 0, len(r.byID))
	for _, a := range r.byID {
		result = append(result, a)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].ChainID() != result[j].ChainID() {
			return result[i].ChainID() < result[j].ChainID()
		}
		return result[i].Symbol() < result[j].Symbol()
	})
	return result
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
