// Package domain contains the route types for the discovery context.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/fd1az/arbguard/internal/asset"
)

// Kind classifies a route by shape.
type Kind string

const (
	KindDirect     Kind = "direct"
	KindTriangular Kind = "triangular"
	KindMultiHop   Kind = "multi_hop"
	KindCrossChain Kind = "cross_chain"
)

// KindForHops returns the cycle kind for a number of legs.
func KindForHops(hops int) Kind {
	switch hops {
	case 2:
		return KindDirect
	case 3:
		return KindTriangular
	default:
		return KindMultiHop
	}
}

// Leg is one swap on one venue.
type Leg struct {
	TokenIn  *asset.Asset
	TokenOut *asset.Asset
	Venue    string
	ChainID  uint64
}

func (l Leg) String() string {
	return fmt.Sprintf("%s→%s@%s", l.TokenIn.Symbol(), l.TokenOut.Symbol(), l.Venue)
}

// Route is an ordered list of legs. Cycles start and end at the same token;
// cross-chain routes span two chains and are bridged between legs.
type Route struct {
	Legs []Leg
	Kind Kind
	// BridgeTime is the expected transfer delay between chains. Zero for cycles.
	BridgeTime time.Duration
}

func (r Route) Hops() int { return len(r.Legs) }

// Start is the token the route is funded with.
func (r Route) Start() *asset.Asset {
	if len(r.Legs) == 0 {
		return nil
	}
	return r.Legs[0].TokenIn
}

// End is the token the route settles in.
func (r Route) End() *asset.Asset {
	if len(r.Legs) == 0 {
		return nil
	}
	return r.Legs[len(r.Legs)-1].TokenOut
}

func (r Route) IsCycle() bool {
	return len(r.Legs) >= 2 && r.Start().Equals(r.End())
}

func (r Route) IsCrossChain() bool {
	return r.Kind == KindCrossChain
}

// Chains returns the distinct chains the route touches, in leg order.
func (r Route) Chains() []uint64 {
	var out []uint64
	for _, l := range r.Legs {
		if len(out) == 0 || out[len(out)-1] != l.ChainID {
			out = append(out, l.ChainID)
		}
	}
	return out
}

// Path renders e.g. "WETH→USDC→DAI→WETH".
func (r Route) Path() string {
	if len(r.Legs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(r.Legs[0].TokenIn.Symbol())
	for _, l := range r.Legs {
		sb.WriteString("→")
		sb.WriteString(l.TokenOut.Symbol())
	}
	return sb.String()
}

// Venues lists the venue of each leg.
func (r Route) Venues() []string {
	out := make([]string, len(r.Legs))
	for i, l := range r.Legs {
		out[i] = l.Venue
	}
	return out
}

// String is unique per route: path plus venue assignment.
func (r Route) String() string {
	return fmt.Sprintf("%s [%s]", r.Path(), strings.Join(r.Venues(), ","))
}
