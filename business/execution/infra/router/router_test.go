package router

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/arbguard/internal/asset"
)

func TestPackSwapRoundTrip(t *testing.T) {
	s := Swap{
		AmountIn:     big.NewInt(1_000_000_000),
		AmountOutMin: big.NewInt(497_500_000_000_000_000),
		Path:         []common.Address{asset.USDC.Address(), asset.WETH.Address()},
		Recipient:    common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Deadline:     big.NewInt(1_772_366_460),
	}
	data, err := PackSwap(s)
	if err != nil {
		t.Fatalf("PackSwap: %v", err)
	}
	// selector of swapExactTokensForTokens(uint256,uint256,address[],address,uint256)
	if got := common.Bytes2Hex(data[:4]); got != "38ed1739" {
		t.Errorf("selector = %s, want 38ed1739", got)
	}

	back, err := UnpackSwap(data)
	if err != nil {
		t.Fatalf("UnpackSwap: %v", err)
	}
	if back.AmountIn.Cmp(s.AmountIn) != 0 || back.AmountOutMin.Cmp(s.AmountOutMin) != 0 ||
		back.Deadline.Cmp(s.Deadline) != 0 || back.Recipient != s.Recipient {
		t.Errorf("decoded %+v, want %+v", back, s)
	}
	if len(back.Path) != 2 || back.Path[1] != asset.WETH.Address() {
		t.Errorf("path = %v", back.Path)
	}
}

func TestPackSwapRejectsShortPath(t *testing.T) {
	_, err := PackSwap(Swap{
		AmountIn: big.NewInt(1), AmountOutMin: big.NewInt(1),
		Path: []common.Address{asset.USDC.Address()}, Deadline: big.NewInt(1),
	})
	if err == nil {
		t.Error("expected error for single-token path")
	}
}

func TestUnpackSwapRejectsOtherCalls(t *testing.T) {
	if _, err := UnpackSwap([]byte{0xa9, 0x05, 0x9c, 0xbb}); err == nil {
		t.Error("transfer selector decoded as swap")
	}
}
