package asset_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbguard/internal/asset"
)

func TestAmount_ToDecimal(t *testing.T) {
	oneETH := asset.NewAmount(asset.WETH, big.NewInt(1e18))
	if !oneETH.ToDecimal().Equal(decimal.NewFromInt(1)) {
		t.Errorf("ToDecimal = %s, want 1", oneETH.ToDecimal())
	}
	if oneETH.String() != "1 WETH" {
		t.Errorf("String = %q, want '1 WETH'", oneETH.String())
	}
}

func TestAmount_AddSub(t *testing.T) {
	a := asset.NewAmount(asset.USDC, big.NewInt(3_000_000))
	b := asset.NewAmount(asset.USDC, big.NewInt(1_000_000))

	sum, err := a.Add(b)
	if err != nil || sum.Raw().Int64() != 4_000_000 {
		t.Errorf("Add = %v, %v", sum, err)
	}
	if _, err := b.Sub(a); !errors.Is(err, asset.ErrNegativeResult) {
		t.Errorf("Sub err = %v, want ErrNegativeResult", err)
	}
	if _, err := a.Add(asset.NewAmount(asset.USDT, big.NewInt(1))); !errors.Is(err, asset.ErrAssetMismatch) {
		t.Errorf("Add mismatched err = %v, want ErrAssetMismatch", err)
	}
}

func TestAmount_MulBps(t *testing.T) {
	a := asset.NewAmount(asset.USDC, big.NewInt(1_000_000_000))
	got := a.MulBps(9_800)
	if got.Raw().Int64() != 980_000_000 {
		t.Errorf("MulBps(9800) = %s, want 980000000", got.Raw())
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name    string
		asset   *asset.Asset
		in      string
		wantRaw string
		wantErr error
	}{
		{"usdc", asset.USDC, "1000.5", "1000500000", nil},
		{"weth", asset.WETH, "0.25", "250000000000000000", nil},
		{"too precise", asset.USDC, "0.0000001", "", asset.ErrTooManyDecimals},
		{"negative", asset.USDC, "-1", "", asset.ErrNegativeAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asset.ParseString(tt.asset, tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Raw().String() != tt.wantRaw {
				t.Errorf("raw = %s, want %s", got.Raw(), tt.wantRaw)
			}
		})
	}
}

func TestPrice_Value(t *testing.T) {
	p := asset.USDPrice(asset.WETH, decimal.RequireFromString("2000.5"), time.Now())
	half := asset.NewAmount(asset.WETH, big.NewInt(5e17))

	v, err := p.Value(half)
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if !v.Equal(decimal.RequireFromString("1000.25")) {
		t.Errorf("Value = %s, want 1000.25", v)
	}

	if _, err := p.Value(asset.NewAmount(asset.USDC, big.NewInt(1))); !errors.Is(err, asset.ErrAssetMismatch) {
		t.Errorf("Value mismatched err = %v", err)
	}
}

func TestRegistry_BySymbol(t *testing.T) {
	r := asset.DefaultRegistry()
	got, ok := r.BySymbol(asset.ChainIDEthereum, "usdc")
	if !ok || !got.Equals(asset.USDC) {
		t.Errorf("BySymbol(usdc) = %v, %v", got, ok)
	}
	if _, ok := r.BySymbol(asset.ChainIDArbitrum, "USDC"); ok {
		t.Error("USDC on arbitrum is not registered by default")
	}
	native, ok := r.Native(asset.ChainIDBase)
	if !ok || native.Symbol() != "ETH" {
		t.Errorf("Native(base) = %v, %v", native, ok)
	}
}
