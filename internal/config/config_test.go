package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fd1az/arbguard/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DemoDefaults(t *testing.T) {
	path := writeConfig(t, "demo:\n  enabled: true\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Anomaly.HistorySize != 100 {
		t.Errorf("Anomaly.HistorySize = %d, want 100", cfg.Anomaly.HistorySize)
	}
	if cfg.Anomaly.MaxAge != time.Hour {
		t.Errorf("Anomaly.MaxAge = %s, want 1h", cfg.Anomaly.MaxAge)
	}
	if cfg.Safety.MaxSpreadPct != 1 {
		t.Errorf("Safety.MaxSpreadPct = %v, want 1", cfg.Safety.MaxSpreadPct)
	}
	if cfg.Risk.DailyLossLimitUSD != 500 {
		t.Errorf("Risk.DailyLossLimitUSD = %v, want 500", cfg.Risk.DailyLossLimitUSD)
	}
	if len(cfg.Tokens) == 0 || len(cfg.Venues) == 0 {
		t.Error("expected default tokens and venues")
	}
}

func TestLoad_RequiresRPCOutsideDemo(t *testing.T) {
	path := writeConfig(t, "app:\n  name: test\n")

	if _, err := config.Load(path); err == nil {
		t.Fatal("expected error when ethereum.http_url is missing")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "demo:\n  enabled: true\n")
	t.Setenv("ARB_DB_PATH", "/tmp/risk.db")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Path != "/tmp/risk.db" {
		t.Errorf("Storage.Path = %q, want /tmp/risk.db", cfg.Storage.Path)
	}
}

func TestValidate(t *testing.T) {
	base := func() config.Config {
		return config.Config{
			Ethereum:  config.EthereumConfig{HTTPURL: "http://localhost:8545"},
			Tokens:    config.DefaultTokens(),
			Venues:    config.DefaultVenues(),
			Discovery: config.DiscoveryConfig{Venues: []string{"uniswap-v3-500"}, MaxHops: 3, TradeSizeUSD: 1000},
			Safety:    config.SafetyConfig{MaxSlippagePct: 0.5, DeadlineSeconds: 120},
			Risk:      config.RiskConfig{DailyLossLimitUSD: 500},
			Signer:    config.SignerConfig{Type: config.SignerKey},
			Scan:      config.ScanConfig{AutoMode: "simulation"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"valid", func(*config.Config) {}, false},
		{"too many hops", func(c *config.Config) { c.Discovery.MaxHops = 7 }, true},
		{"unknown venue", func(c *config.Config) { c.Discovery.Venues = []string{"sushi"} }, true},
		{"bad slippage", func(c *config.Config) { c.Safety.MaxSlippagePct = 0 }, true},
		{"one second deadline", func(c *config.Config) { c.Safety.DeadlineSeconds = 1 }, true},
		{"two second deadline", func(c *config.Config) { c.Safety.DeadlineSeconds = 2 }, false},
		{"settlement without destination", func(c *config.Config) { c.Settlement.Enabled = true }, true},
		{"unknown signer", func(c *config.Config) { c.Signer.Type = "kms" }, true},
		{"unknown auto mode", func(c *config.Config) { c.Scan.AutoMode = "paper" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
