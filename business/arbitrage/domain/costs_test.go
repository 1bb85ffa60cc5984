package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewGasCost(t *testing.T) {
	tests := []struct {
		name           string
		gasLimit       uint64
		gasPriceWei    string
		nativePriceUSD string
		wantNative     string
		wantUSD        string
	}{
		{
			name:           "triangle_3hops_10gwei",
			gasLimit:       300_000,
			gasPriceWei:    "10000000000", // 10 gwei
			nativePriceUSD: "1000",
			wantNative:     "0.003",
			wantUSD:        "3", // the $3 gas of a 1000->998 triangle
		},
		{
			name:           "standard_gas_25gwei_3400eth",
			gasLimit:       200_000,
			gasPriceWei:    "25000000000",
			nativePriceUSD: "3400",
			wantNative:     "0.005",
			wantUSD:        "17",
		},
		{
			name:           "polygon_cheap_native",
			gasLimit:       360_000,
			gasPriceWei:    "50000000000",
			nativePriceUSD: "0.5",
			wantNative:     "0.018",
			wantUSD:        "0.009",
		},
		{
			name:           "zero_gas_limit",
			gasLimit:       0,
			gasPriceWei:    "25000000000",
			nativePriceUSD: "3400",
			wantNative:     "0",
			wantUSD:        "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wei, _ := new(big.Int).SetString(tt.gasPriceWei, 10)
			gc := NewGasCost(tt.gasLimit, wei, decimal.RequireFromString(tt.nativePriceUSD))

			if !gc.Native.Equal(decimal.RequireFromString(tt.wantNative)) {
				t.Errorf("Native = %s, want %s", gc.Native, tt.wantNative)
			}
			if !gc.USD.Equal(decimal.RequireFromString(tt.wantUSD)) {
				t.Errorf("USD = %s, want %s", gc.USD, tt.wantUSD)
			}
			wantWei := new(big.Int).Mul(wei, new(big.Int).SetUint64(tt.gasLimit))
			if gc.TotalWei.Cmp(wantWei) != 0 {
				t.Errorf("TotalWei = %s, want %s", gc.TotalWei, wantWei)
			}
		})
	}
}

func TestGasCost_DoesNotAliasPrice(t *testing.T) {
	wei := big.NewInt(1_000)
	gc := NewGasCost(10, wei, decimal.NewFromInt(1))
	wei.SetInt64(5)
	if gc.GasPrice.Int64() != 1_000 {
		t.Errorf("GasPrice changed with caller's big.Int: %s", gc.GasPrice)
	}
}

func TestGasCost_InToken(t *testing.T) {
	gc := &GasCost{USD: decimal.NewFromInt(30)}
	if got := gc.InToken(decimal.NewFromInt(3000)); !got.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("InToken(3000) = %s, want 0.01", got)
	}
	if got := gc.InToken(decimal.Zero); !got.IsZero() {
		t.Errorf("InToken(0) = %s, want 0", got)
	}
}

func TestScoreRisk(t *testing.T) {
	tests := []struct {
		name   string
		bridge time.Duration
		net    string
		spread string
		want   RiskScore
		total  int
	}{
		{"same_chain_fat_profit", 0, "120", "0.1", RiskScore{0, 0, 0}, 0},
		{"thin_profit", 0, "4.99", "0.2", RiskScore{0, 4, 0}, 4},
		{"profit_breakpoints_inclusive", 0, "20", "0.5", RiskScore{0, 1, 1}, 2},
		{"fast_bridge", 5 * time.Minute, "60", "1", RiskScore{1, 0, 2}, 3},
		{"slow_bridge", 20 * time.Minute, "12", "3", RiskScore{3, 2, 3}, 8},
		{"clamped", time.Hour, "1", "9", RiskScore{4, 4, 4}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreRisk(tt.bridge, decimal.RequireFromString(tt.net), decimal.RequireFromString(tt.spread))
			if got != tt.want {
				t.Errorf("ScoreRisk = %+v, want %+v", got, tt.want)
			}
			if got.Total() != tt.total {
				t.Errorf("Total = %d, want %d", got.Total(), tt.total)
			}
		})
	}
}

func TestRiskScore_Factors(t *testing.T) {
	r := RiskScore{Bridge: 0, LowProfit: 3, Spread: 1}
	f := r.Factors()
	if len(f) != 2 {
		t.Fatalf("len(Factors) = %d, want 2", len(f))
	}
	if f[0].Name != "low_profit" || f[0].Severity != "high" {
		t.Errorf("first factor = %+v", f[0])
	}
	if f[1].Name != "spread" || f[1].Severity != "low" {
		t.Errorf("second factor = %+v", f[1])
	}
}
