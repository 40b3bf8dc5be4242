package config

const (
	EnvConfig   = "JOBINTEL_CONFIG"
	EnvDataDir  = "JOBINTEL_DATA_DIR"
	EnvLogLevel = "JOBINTEL_LOG_LEVEL"
	EnvHTTPAddr = "JOBINTEL_HTTP_ADDR"
)

// ApplyEnv overlays environment overrides on cfg. Unset or empty variables
// leave the file value alone.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvDataDir); v != "" {
		cfg.App.DataDir = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.App.LogLevel = v
	}
	if v := getenv(EnvHTTPAddr); v != "" {
		cfg.App.HTTPAddr = v
	}
}
