// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Ethereum   EthereumConfig   `mapstructure:"ethereum"`
	Tokens     []TokenConfig    `mapstructure:"tokens"`
	Venues     []VenueConfig    `mapstructure:"venues"`
	Chains     []ChainConfig    `mapstructure:"chains"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Evaluator  EvaluatorConfig  `mapstructure:"evaluator"`
	Anomaly    AnomalyConfig    `mapstructure:"anomaly"`
	Safety     SafetyConfig     `mapstructure:"safety"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Signer     SignerConfig     `mapstructure:"signer"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
	Reference  ReferenceConfig  `mapstructure:"reference"`
	Gas        GasConfig        `mapstructure:"gas"`
	Scan       ScanConfig       `mapstructure:"scan"`
	Demo       DemoConfig       `mapstructure:"demo"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	TUIMode    bool             `mapstructure:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds the primary chain connection.
type EthereumConfig struct {
	HTTPURL    string        `mapstructure:"http_url"`
	ChainID    uint64        `mapstructure:"chain_id"`
	RPCTimeout time.Duration `mapstructure:"rpc_timeout"`
}

// TokenConfig registers an ERC-20 token of the universe.
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	ChainID  uint64 `mapstructure:"chain_id"`
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
	// RefSymbol is the reference market symbol used for USD pricing, e.g. ETHUSDT.
	RefSymbol string `mapstructure:"ref_symbol"`
}

// Venue types.
const (
	VenueUniswapV3  = "uniswap_v3"
	VenueAggregator = "aggregator"
)

// VenueConfig describes one quoting venue.
type VenueConfig struct {
	Name              string `mapstructure:"name"`
	Type              string `mapstructure:"type"`
	ChainID           uint64 `mapstructure:"chain_id"`
	QuoterAddress     string `mapstructure:"quoter_address"`
	FactoryAddress    string `mapstructure:"factory_address"`
	RouterAddress     string `mapstructure:"router_address"`
	FeeTier           int    `mapstructure:"fee_tier"`
	BaseURL           string `mapstructure:"base_url"`
	APIKey            string `mapstructure:"api_key"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// QuoterAddressHex returns the quoter address as common.Address.
func (c VenueConfig) QuoterAddressHex() common.Address {
	return common.HexToAddress(c.QuoterAddress)
}

// FactoryAddressHex returns the pool factory address as common.Address.
func (c VenueConfig) FactoryAddressHex() common.Address {
	return common.HexToAddress(c.FactoryAddress)
}

// RouterAddressHex returns the router address as common.Address.
func (c VenueConfig) RouterAddressHex() common.Address {
	return common.HexToAddress(c.RouterAddress)
}

// ChainConfig describes a chain of the cross-chain universe.
type ChainConfig struct {
	Name    string `mapstructure:"name"`
	ChainID uint64 `mapstructure:"chain_id"`
	Venue   string `mapstructure:"venue"`
	// RPCURL serves venues on this chain when it differs from ethereum.chain_id.
	RPCURL string `mapstructure:"rpc_url"`
	// BridgeTime is the expected settlement delay when funds leave this chain.
	BridgeTime time.Duration `mapstructure:"bridge_time"`
}

// DiscoveryConfig bounds the route search.
type DiscoveryConfig struct {
	Tokens           []string `mapstructure:"tokens"`
	Venues           []string `mapstructure:"venues"`
	MaxHops          int      `mapstructure:"max_hops"`
	CrossChain       bool     `mapstructure:"cross_chain"`
	CrossChainTokens []string `mapstructure:"cross_chain_tokens"`
	QuoteToken       string   `mapstructure:"quote_token"`
	TradeSizeUSD     float64  `mapstructure:"trade_size_usd"`
}

// TradeSizeUSDDecimal returns the trade size as decimal.Decimal.
func (c *DiscoveryConfig) TradeSizeUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.TradeSizeUSD)
}

// EvaluatorConfig tunes profitability scoring.
type EvaluatorConfig struct {
	Workers         int           `mapstructure:"workers"`
	PerHopGas       uint64        `mapstructure:"per_hop_gas"`
	MinLiquidityUSD float64       `mapstructure:"min_liquidity_usd"`
	MinNetProfitUSD float64       `mapstructure:"min_net_profit_usd"`
	MaxRiskScore    int           `mapstructure:"max_risk_score"`
	QuoteTimeout    time.Duration `mapstructure:"quote_timeout"`
	OpportunityTTL  time.Duration `mapstructure:"opportunity_ttl"`
	MaxRoutes       int           `mapstructure:"max_routes"`
}

// MinLiquidityUSDDecimal returns the pool depth floor as decimal.Decimal.
func (c *EvaluatorConfig) MinLiquidityUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinLiquidityUSD)
}

// MinNetProfitUSDDecimal returns the surfacing threshold as decimal.Decimal.
func (c *EvaluatorConfig) MinNetProfitUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinNetProfitUSD)
}

// AnomalyConfig tunes the price anomaly detector.
type AnomalyConfig struct {
	HistorySize   int           `mapstructure:"history_size"`
	MinPoints     int           `mapstructure:"min_points"`
	CriticalPct   float64       `mapstructure:"critical_pct"`
	DeviationPct  float64       `mapstructure:"deviation_pct"`
	ZScore        float64       `mapstructure:"z_score"`
	ShortWindow   int           `mapstructure:"short_window"`
	MaxAge        time.Duration `mapstructure:"max_age"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// SafetyConfig holds the gateway guard bounds and the tx guard policy.
type SafetyConfig struct {
	MaxSpreadPct      float64       `mapstructure:"max_spread_pct"`
	SpotAmountUSD     float64       `mapstructure:"spot_amount_usd"`
	MaxPriceImpactPct float64       `mapstructure:"max_price_impact_pct"`
	MaxSlippagePct    float64       `mapstructure:"max_slippage_pct"`
	DeadlineSeconds   int           `mapstructure:"deadline_seconds"`
	CheckRevert       bool          `mapstructure:"check_revert"`
	SingleApprove     bool          `mapstructure:"single_approve"`
	VerdictTTL        time.Duration `mapstructure:"verdict_ttl"`
}

// SimulationConfig configures the optional pre-flight simulator.
type SimulationConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Provider  string        `mapstructure:"provider"` // eth_call | tenderly
	URL       string        `mapstructure:"url"`
	AccessKey string        `mapstructure:"access_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// RiskConfig holds the per-user ledger limits.
type RiskConfig struct {
	DailyLossLimitUSD      float64 `mapstructure:"daily_loss_limit_usd"`
	MaxPositionSizeUSD     float64 `mapstructure:"max_position_size_usd"`
	MaxSingleLossUSD       float64 `mapstructure:"max_single_loss_usd"`
	MaxConsecutiveFailures int     `mapstructure:"max_consecutive_failures"`
	MaxDailyTrades         int     `mapstructure:"max_daily_trades"`
	AutoPause              bool    `mapstructure:"auto_pause"`
}

// ExecutionConfig tunes submission retries.
type ExecutionConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout"`
	ReceiptPoll    time.Duration `mapstructure:"receipt_poll"`
	GasLimitPerHop uint64        `mapstructure:"gas_limit_per_hop"`
	RouterAddress  string        `mapstructure:"router_address"`
}

// SettlementConfig configures the post-trade transfer.
type SettlementConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	Destination       string  `mapstructure:"destination"`
	MinProfitUSD      float64 `mapstructure:"min_profit_usd"`
	MaxGasSharePct    float64 `mapstructure:"max_gas_share_pct"`
	MaxPriceImpactPct float64 `mapstructure:"max_price_impact_pct"`
	TransferGasLimit  uint64  `mapstructure:"transfer_gas_limit"`
}

// Signer types.
const (
	SignerKey    = "key"
	SignerLedger = "ledger"
	SignerTrezor = "trezor"
)

// SignerConfig selects the signing identity.
type SignerConfig struct {
	Type           string `mapstructure:"type"`
	PrivateKey     string `mapstructure:"private_key"`
	GCPProject     string `mapstructure:"gcp_project"`
	SecretName     string `mapstructure:"secret_name"`
	DerivationPath string `mapstructure:"derivation_path"`
}

// NotifierConfig configures the webhook notification sink.
type NotifierConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	QueueSize  int           `mapstructure:"queue_size"`
}

// ReferenceConfig configures the reference market price source.
type ReferenceConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	WebSocketURL      string        `mapstructure:"websocket_url"`
	StaleTimeout      time.Duration `mapstructure:"stale_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Stream            bool          `mapstructure:"stream"`
}

// GasConfig configures the gas price oracle.
type GasConfig struct {
	MaxGwei  float64       `mapstructure:"max_gwei"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ScanConfig configures the periodic scan loop.
type ScanConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	AutoExecute bool          `mapstructure:"auto_execute"`
	// AutoMode is "simulation" or "real".
	AutoMode  string `mapstructure:"auto_mode"`
	AuditSize int    `mapstructure:"audit_size"`
}

// DemoConfig enables the labeled synthetic quote source.
type DemoConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Seed       int64   `mapstructure:"seed"`
	Volatility float64 `mapstructure:"volatility"`
}

// StorageConfig locates the risk database.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	MetricsOTLP    bool   `mapstructure:"metrics_otlp"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Tokens) == 0 {
		cfg.Tokens = DefaultTokens()
	}
	if len(cfg.Venues) == 0 {
		cfg.Venues = DefaultVenues()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("ethereum.http_url", "ARB_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "ARB_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	v.BindEnv("signer.type", "ARB_SIGNER_TYPE")
	v.BindEnv("signer.private_key", "ARB_PRIVATE_KEY", "PRIVATE_KEY")
	v.BindEnv("signer.gcp_project", "ARB_GCP_PROJECT", "GOOGLE_CLOUD_PROJECT")
	v.BindEnv("signer.secret_name", "ARB_SIGNER_SECRET")

	v.BindEnv("settlement.destination", "ARB_SETTLEMENT_DESTINATION")
	v.BindEnv("notifier.webhook_url", "ARB_WEBHOOK_URL")
	v.BindEnv("simulation.access_key", "ARB_SIMULATION_KEY", "TENDERLY_ACCESS_KEY")
	v.BindEnv("demo.enabled", "ARB_DEMO")
	v.BindEnv("storage.path", "ARB_DB_PATH")

	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "ARB_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
	v.BindEnv("telemetry.trace_provider", "ARB_TRACE_PROVIDER")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arbguard")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.rpc_timeout", "10s")

	v.SetDefault("discovery.tokens", []string{"WETH", "USDC", "USDT"})
	v.SetDefault("discovery.venues", []string{"uniswap-v3-500", "uniswap-v3-3000"})
	v.SetDefault("discovery.max_hops", 3)
	v.SetDefault("discovery.cross_chain", false)
	v.SetDefault("discovery.quote_token", "USDC")
	v.SetDefault("discovery.trade_size_usd", 1000)

	v.SetDefault("evaluator.workers", 8)
	v.SetDefault("evaluator.per_hop_gas", 150000)
	v.SetDefault("evaluator.min_liquidity_usd", 50000)
	v.SetDefault("evaluator.min_net_profit_usd", 5)
	v.SetDefault("evaluator.max_risk_score", 7)
	v.SetDefault("evaluator.quote_timeout", "5s")
	v.SetDefault("evaluator.opportunity_ttl", "30s")
	v.SetDefault("evaluator.max_routes", 5000)

	v.SetDefault("anomaly.history_size", 100)
	v.SetDefault("anomaly.min_points", 5)
	v.SetDefault("anomaly.critical_pct", 20)
	v.SetDefault("anomaly.deviation_pct", 10)
	v.SetDefault("anomaly.z_score", 3)
	v.SetDefault("anomaly.short_window", 3)
	v.SetDefault("anomaly.max_age", "1h")
	v.SetDefault("anomaly.sweep_interval", "5m")

	v.SetDefault("safety.max_spread_pct", 1)
	v.SetDefault("safety.spot_amount_usd", 100)
	v.SetDefault("safety.max_price_impact_pct", 2)
	v.SetDefault("safety.max_slippage_pct", 0.5)
	v.SetDefault("safety.deadline_seconds", 120)
	v.SetDefault("safety.check_revert", true)
	v.SetDefault("safety.single_approve", true)
	v.SetDefault("safety.verdict_ttl", "5s")

	v.SetDefault("simulation.enabled", false)
	v.SetDefault("simulation.provider", "eth_call")
	v.SetDefault("simulation.timeout", "5s")

	v.SetDefault("risk.daily_loss_limit_usd", 500)
	v.SetDefault("risk.max_position_size_usd", 10000)
	v.SetDefault("risk.max_single_loss_usd", 200)
	v.SetDefault("risk.max_consecutive_failures", 3)
	v.SetDefault("risk.max_daily_trades", 100)
	v.SetDefault("risk.auto_pause", true)

	v.SetDefault("execution.max_retries", 3)
	v.SetDefault("execution.retry_delay", "2s")
	v.SetDefault("execution.receipt_timeout", "2m")
	v.SetDefault("execution.receipt_poll", "2s")
	v.SetDefault("execution.gas_limit_per_hop", 250000)
	// Uniswap V2 router
	v.SetDefault("execution.router_address", "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")

	v.SetDefault("settlement.enabled", false)
	v.SetDefault("settlement.min_profit_usd", 10)
	v.SetDefault("settlement.max_gas_share_pct", 10)
	v.SetDefault("settlement.max_price_impact_pct", 2)
	v.SetDefault("settlement.transfer_gas_limit", 65000)

	v.SetDefault("signer.type", SignerKey)
	v.SetDefault("signer.derivation_path", "m/44'/60'/0'/0/0")

	v.SetDefault("notifier.timeout", "5s")
	v.SetDefault("notifier.queue_size", 64)

	v.SetDefault("reference.base_url", "https://api.binance.com")
	v.SetDefault("reference.websocket_url", "wss://stream.binance.com:9443")
	v.SetDefault("reference.stale_timeout", "30s")
	v.SetDefault("reference.requests_per_minute", 600)
	v.SetDefault("reference.stream", false)

	v.SetDefault("gas.max_gwei", 200)
	v.SetDefault("gas.cache_ttl", "12s")

	v.SetDefault("scan.interval", "30s")
	v.SetDefault("scan.auto_execute", false)
	v.SetDefault("scan.auto_mode", "simulation")
	v.SetDefault("scan.audit_size", 500)

	v.SetDefault("demo.enabled", false)
	v.SetDefault("demo.seed", 1)
	v.SetDefault("demo.volatility", 0.004)

	v.SetDefault("storage.path", "arbguard.db")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "arbguard")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// DefaultTokens is the mainnet universe used when no tokens are configured.
func DefaultTokens() []TokenConfig {
	return []TokenConfig{
		{Symbol: "WETH", ChainID: 1, Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18, RefSymbol: "ETHUSDT"},
		{Symbol: "USDC", ChainID: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6, RefSymbol: "USDCUSDT"},
		{Symbol: "USDT", ChainID: 1, Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
		{Symbol: "WBTC", ChainID: 1, Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Decimals: 8, RefSymbol: "BTCUSDT"},
		{Symbol: "DAI", ChainID: 1, Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18, RefSymbol: "DAIUSDT"},
	}
}

// DefaultVenues are two Uniswap V3 fee tiers behind QuoterV2.
func DefaultVenues() []VenueConfig {
	const (
		quoter  = "0x61fFE014bA17989E743c5F6cB21bF9697530B21e"
		factory = "0x1F98431c8aD98523631AE4a59f267346ea31F984"
	)
	return []VenueConfig{
		{Name: "uniswap-v3-500", Type: VenueUniswapV3, ChainID: 1, QuoterAddress: quoter, FactoryAddress: factory, FeeTier: 500},
		{Name: "uniswap-v3-3000", Type: VenueUniswapV3, ChainID: 1, QuoterAddress: quoter, FactoryAddress: factory, FeeTier: 3000},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Demo.Enabled && c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required outside demo mode")
	}
	for _, t := range c.Tokens {
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("invalid address for token %s: %s", t.Symbol, t.Address)
		}
	}
	venues := make(map[string]bool, len(c.Venues))
	for _, v := range c.Venues {
		switch v.Type {
		case VenueUniswapV3:
			if !common.IsHexAddress(v.QuoterAddress) {
				return fmt.Errorf("invalid quoter_address for venue %s", v.Name)
			}
		case VenueAggregator:
			if v.BaseURL == "" {
				return fmt.Errorf("venue %s: base_url is required", v.Name)
			}
		default:
			return fmt.Errorf("venue %s: unknown type %q", v.Name, v.Type)
		}
		venues[v.Name] = true
	}
	for _, name := range c.Discovery.Venues {
		if !venues[name] {
			return fmt.Errorf("discovery.venues references unknown venue %q", name)
		}
	}
	if c.Discovery.MaxHops < 2 || c.Discovery.MaxHops > 6 {
		return fmt.Errorf("discovery.max_hops must be within [2, 6], got %d", c.Discovery.MaxHops)
	}
	if c.Discovery.TradeSizeUSD <= 0 {
		return fmt.Errorf("discovery.trade_size_usd must be positive")
	}
	if c.Safety.MaxSlippagePct <= 0 || c.Safety.MaxSlippagePct >= 100 {
		return fmt.Errorf("safety.max_slippage_pct must be within (0, 100)")
	}
	// Swap deadlines are whole seconds strictly inside the window; one
	// second leaves no such instant.
	if c.Safety.DeadlineSeconds < 2 {
		return fmt.Errorf("safety.deadline_seconds must be at least 2, got %d", c.Safety.DeadlineSeconds)
	}
	if c.Risk.DailyLossLimitUSD <= 0 {
		return fmt.Errorf("risk.daily_loss_limit_usd must be positive")
	}
	if c.Settlement.Enabled && !common.IsHexAddress(c.Settlement.Destination) {
		return fmt.Errorf("settlement.destination must be an address when settlement is enabled")
	}
	if c.Scan.AutoMode != "simulation" && c.Scan.AutoMode != "real" {
		return fmt.Errorf("scan.auto_mode must be simulation or real, got %q", c.Scan.AutoMode)
	}
	switch c.Signer.Type {
	case SignerKey, SignerLedger, SignerTrezor:
	default:
		return fmt.Errorf("unknown signer.type %q", c.Signer.Type)
	}
	return nil
}
