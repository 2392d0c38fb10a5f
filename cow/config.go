package cow

import (
	"os"
	"strconv"
	"sync/atomic"
)

// TraceEnv is the environment variable read by ConfigFromEnv.
const TraceEnv = "COWARC_TRACE"

// Config holds package-wide debugging options.
//
// Usage:
//
//	// Default: no tracing.
//	cow.Configure(cow.DefaultConfig())
//
//	// Record where every lineage is created.
//	cow.Configure(cow.Config{TraceOrigins: true})
type Config struct {
	// TraceOrigins makes New and Clone capture the caller's stack so that
	// Origin can report it. Costs one runtime.Callers per lineage.
	// Default: false.
	TraceOrigins bool
}

var config atomic.Pointer[Config]

// DefaultConfig returns the configuration used when Configure is never
// called.
func DefaultConfig() Config {
	return Config{}
}

// ConfigFromEnv returns DefaultConfig overridden by COWARC_TRACE.
// Unparsable values leave the default in place.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v, ok := os.LookupEnv(TraceEnv); ok {
		if on, err := strconv.ParseBool(v); err == nil {
			cfg.TraceOrigins = on
		}
	}
	return cfg
}

// Configure installs cfg for all subsequently created lineages.
// Existing lineages keep whatever was recorded when they were created.
func Configure(cfg Config) {
	config.Store(&cfg)
}

// CurrentConfig returns the active configuration.
func CurrentConfig() Config {
	if cfg := config.Load(); cfg != nil {
		return *cfg
	}
	return DefaultConfig()
}
