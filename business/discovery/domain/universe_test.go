package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
)

func TestUniverse_Validate(t *testing.T) {
	arbWETH := asset.MustNewToken(42161, common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), "WETH", 18)
	tok := func(i int) *asset.Asset {
		return asset.MustNewToken(1, common.BigToAddress(big.NewInt(int64(i+10))), "T", 18)
	}
	seven := make([]*asset.Asset, 7)
	for i := range seven {
		seven[i] = tok(i)
	}
	venues := func(n int) []Venue {
		out := make([]Venue, n)
		for i := range out {
			out[i] = Venue{Name: string(rune('a' + i)), ChainID: 1}
		}
		return out
	}

	tests := []struct {
		name    string
		u       Universe
		wantErr bool
	}{
		{"ok", Universe{Tokens: []*asset.Asset{asset.WETH, asset.USDC}, Venues: venues(1), MaxHops: 2}, false},
		{"max bounds", Universe{Tokens: seven[:6], Venues: venues(9), MaxHops: 6}, false},
		{"one token", Universe{Tokens: []*asset.Asset{asset.WETH}, Venues: venues(1), MaxHops: 2}, true},
		{"seven tokens", Universe{Tokens: seven, Venues: venues(1), MaxHops: 2}, true},
		{"no venues", Universe{Tokens: []*asset.Asset{asset.WETH, asset.USDC}, MaxHops: 2}, true},
		{"ten venues", Universe{Tokens: []*asset.Asset{asset.WETH, asset.USDC}, Venues: venues(10), MaxHops: 2}, true},
		{"one hop", Universe{Tokens: []*asset.Asset{asset.WETH, asset.USDC}, Venues: venues(1), MaxHops: 1}, true},
		{"seven hops", Universe{Tokens: []*asset.Asset{asset.WETH, asset.USDC}, Venues: venues(1), MaxHops: 7}, true},
		{"mixed chains", Universe{Tokens: []*asset.Asset{asset.WETH, arbWETH}, Venues: venues(1), MaxHops: 2}, true},
		{"nil first token", Universe{Tokens: []*asset.Asset{nil, asset.USDC}, Venues: venues(1), MaxHops: 2}, true},
		{"nil later token", Universe{Tokens: []*asset.Asset{asset.WETH, nil}, Venues: venues(1), MaxHops: 2}, true},
		{"duplicate token", Universe{Tokens: []*asset.Asset{asset.WETH, asset.WETH}, Venues: venues(1), MaxHops: 2}, true},
		{"venue off chain", Universe{Tokens: []*asset.Asset{asset.WETH, asset.USDC}, Venues: []Venue{{Name: "x", ChainID: 10}}, MaxHops: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.u.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidUniverse), "%v", err)
		})
	}
}

func TestRoute_Accessors(t *testing.T) {
	r := Route{
		Legs: []Leg{
			{TokenIn: asset.WETH, TokenOut: asset.USDC, Venue: "a", ChainID: 1},
			{TokenIn: asset.USDC, TokenOut: asset.USDT, Venue: "b", ChainID: 1},
			{TokenIn: asset.USDT, TokenOut: asset.WETH, Venue: "a", ChainID: 1},
		},
		Kind: KindTriangular,
	}
	assert.Equal(t, 3, r.Hops())
	assert.True(t, r.IsCycle())
	assert.Equal(t, "WETH→USDC→USDT→WETH", r.Path())
	assert.Equal(t, "WETH→USDC→USDT→WETH [a,b,a]", r.String())
	assert.Equal(t, []uint64{1}, r.Chains())
	assert.Equal(t, KindMultiHop, KindForHops(5))
}
