package metrics

import "time"

type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OTLPProvider       Provider = "otlp"
)

type Config struct {
	ServiceName string
	Providers   []ProviderCfg
}

type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
	Interval time.Duration
}

type OptionFn func(config Config) Config

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName
		return config
	}
}

func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Providers = append(config.Providers, provider)
		return config
	}
}

// NewOTLPConfig builds a push exporter config for an OTLP collector.
func NewOTLPConfig(endpoint string, headers map[string]string, insecure bool) ProviderCfg {
	return ProviderCfg{
		Provider: OTLPProvider,
		Endpoint: endpoint,
		Headers:  headers,
		Insecure: insecure,
		Interval: 30 * time.Second,
	}
}

type ServerConfig struct {
	port int
	path string
}

type ServerOptionFn func(config ServerConfig) ServerConfig

func WithPort(port int) ServerOptionFn {
	return func(config ServerConfig) ServerConfig {
		config.port = port
		return config
	}
}

func WithPath(path string) ServerOptionFn {
	return func(config ServerConfig) ServerConfig {
		config.path = path
		return config
	}
}
