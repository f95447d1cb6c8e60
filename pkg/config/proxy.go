package config

import "time"

// ProxyConfig holds runtime configuration for the subdomain reverse proxy.
type ProxyConfig struct {
	LogLevel        string
	Addr            string
	AdminAddr       string
	BaseURL         string
	ShutdownTimeout time.Duration
}

// LoadProxyConfig constructs a ProxyConfig from environment variables.
func LoadProxyConfig() ProxyConfig {
	return ProxyConfig{
		LogLevel:        GetString("LOG_LEVEL", "info"),
		Addr:            GetString("PROXY_ADDR", ":8000"),
		AdminAddr:       GetString("PROXY_ADMIN_ADDR", ":9101"),
		BaseURL:         GetString("PROXY_BASE_URL", GetString("BUILD_ENTRY_POINT", "")),
		ShutdownTimeout: GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}
