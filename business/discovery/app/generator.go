// Package app enumerates candidate routes.
package app

import (
	"iter"

	"github.com/fd1az/arbguard/business/discovery/domain"
	"github.com/fd1az/arbguard/internal/asset"
)

// Pruner reports whether every route extending prefix should be skipped.
// prefix is reused between calls and must not be retained.
type Pruner func(prefix []domain.Leg) bool

// Cycles yields every simple cycle of 2..u.MaxHops legs starting at each
// token, with every venue assignment per leg. Intermediate tokens never
// repeat; only the closing leg returns to the start. The sequence is lazy
// and may be ranged over again for a fresh enumeration. The universe must
// already be validated.
func Cycles(u domain.Universe, prune Pruner) iter.Seq[domain.Route] {
	return func(yield func(domain.Route) bool) {
		legs := make([]domain.Leg, 0, u.MaxHops)
		used := make([]bool, len(u.Tokens))

		var walk func(start, cur int) bool
		walk = func(start, cur int) bool {
			depth := len(legs)

			// close the cycle back to start
			if depth >= 1 {
				for _, v := range u.Venues {
					leg := domain.Leg{TokenIn: u.Tokens[cur], TokenOut: u.Tokens[start], Venue: v.Name, ChainID: v.ChainID}
					legs = append(legs, leg)
					ok := true
					if prune == nil || !prune(legs) {
						ok = yield(newCycle(legs))
					}
					legs = legs[:depth]
					if !ok {
						return false
					}
				}
			}

			// extend with an unused token, leaving room for the closing leg
			if depth+1 >= u.MaxHops {
				return true
			}
			for next := range u.Tokens {
				if used[next] {
					continue
				}
				for _, v := range u.Venues {
					legs = append(legs, domain.Leg{TokenIn: u.Tokens[cur], TokenOut: u.Tokens[next], Venue: v.Name, ChainID: v.ChainID})
					if prune == nil || !prune(legs) {
						used[next] = true
						ok := walk(start, next)
						used[next] = false
						if !ok {
							legs = legs[:depth]
							return false
						}
					}
					legs = legs[:depth]
				}
			}
			return true
		}

		for start := range u.Tokens {
			used[start] = true
			ok := walk(start, start)
			used[start] = false
			if !ok {
				return
			}
		}
	}
}

func newCycle(legs []domain.Leg) domain.Route {
	out := make([]domain.Leg, len(legs))
	copy(out, legs)
	return domain.Route{Legs: out, Kind: domain.KindForHops(len(out))}
}

// Resolver finds a token by symbol on a chain.
type Resolver func(chainID uint64, symbol string) (*asset.Asset, bool)

// CrossChain yields, for every unordered chain pair (A, B) and token T, the
// two-leg route quote→T on A then T→quote on B. Pairs where a chain lacks T
// or the quote token are skipped. BridgeTime is A's.
func CrossChain(chains []domain.Chain, tokens []string, quote string, resolve Resolver) iter.Seq[domain.Route] {
	return func(yield func(domain.Route) bool) {
		for i := 0; i < len(chains); i++ {
			for j := i + 1; j < len(chains); j++ {
				a, b := chains[i], chains[j]
				qa, okA := resolve(a.ChainID, quote)
				qb, okB := resolve(b.ChainID, quote)
				if !okA || !okB {
					continue
				}
				for _, sym := range tokens {
					ta, okA := resolve(a.ChainID, sym)
					tb, okB := resolve(b.ChainID, sym)
					if !okA || !okB || ta.Equals(qa) {
						continue
					}
					route := domain.Route{
						Legs: []domain.Leg{
							{TokenIn: qa, TokenOut: ta, Venue: a.Venue, ChainID: a.ChainID},
							{TokenIn: tb, TokenOut: qb, Venue: b.Venue, ChainID: b.ChainID},
						},
						Kind:       domain.KindCrossChain,
						BridgeTime: a.BridgeTime,
					}
					if !yield(route) {
						return
					}
				}
			}
		}
	}
}

// Count returns the number of routes Cycles would yield without pruning.
func Count(u domain.Universe) int {
	n, v := len(u.Tokens), len(u.Venues)
	total := 0
	// k legs visit k-1 intermediate tokens chosen in order from n-1
	for k := 2; k <= u.MaxHops && k-1 <= n-1; k++ {
		perms := 1
		for i := 0; i < k-1; i++ {
			perms *= n - 1 - i
		}
		venues := 1
		for i := 0; i < k; i++ {
			venues *= v
		}
		total += n * perms * venues
	}
	return total
}
