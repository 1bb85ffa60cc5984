package domain

import (
	"fmt"
	"time"

	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
)

// Universe bounds. Enumeration is exhaustive so these stay small.
const (
	MinTokens = 2
	MaxTokens = 6
	MinHops   = 2
	MaxHops   = 6
	MinVenues = 1
	MaxVenues = 9
)

// Venue is a named quoting venue on a chain.
type Venue struct {
	Name    string
	ChainID uint64
}

// Universe is the token/venue set cycles are searched over.
type Universe struct {
	Tokens  []*asset.Asset
	Venues  []Venue
	MaxHops int
}

// Validate checks the bounds and that tokens and venues share one chain.
func (u Universe) Validate() error {
	if n := len(u.Tokens); n < MinTokens || n > MaxTokens {
		return invalid("tokens must number %d..%d, got %d", MinTokens, MaxTokens, n)
	}
	if n := len(u.Venues); n < MinVenues || n > MaxVenues {
		return invalid("venues must number %d..%d, got %d", MinVenues, MaxVenues, n)
	}
	if u.MaxHops < MinHops || u.MaxHops > MaxHops {
		return invalid("max hops must be within %d..%d, got %d", MinHops, MaxHops, u.MaxHops)
	}

	for _, t := range u.Tokens {
		if t == nil {
			return invalid("nil token")
		}
	}

	chain := u.Tokens[0].ChainID()
	seen := make(map[asset.AssetID]bool, len(u.Tokens))
	for _, t := range u.Tokens {
		if t.ChainID() != chain {
			return invalid("token %s is on chain %d, universe is on %d", t.Symbol(), t.ChainID(), chain)
		}
		if seen[t.ID()] {
			return invalid("duplicate token %s", t.Symbol())
		}
		seen[t.ID()] = true
	}
	names := make(map[string]bool, len(u.Venues))
	for _, v := range u.Venues {
		if v.ChainID != chain {
			return invalid("venue %s is on chain %d, universe is on %d", v.Name, v.ChainID, chain)
		}
		if names[v.Name] {
			return invalid("duplicate venue %s", v.Name)
		}
		names[v.Name] = true
	}
	return nil
}

// Chain is one side of a cross-chain route.
type Chain struct {
	Name    string
	ChainID uint64
	Venue   string
	// BridgeTime applies when funds leave this chain.
	BridgeTime time.Duration
}

func invalid(format string, args ...any) error {
	return apperror.New(apperror.CodeInvalidUniverse,
		apperror.WithContext(fmt.Sprintf(format, args...)), apperror.WithRetryable(false))
}
