// Package config provides configuration management for the DMX-to-LAN
// lighting bridge, loaded from environment variables (and an optional static
// TOML file providing defaults) with the getEnv/getEnvInt/... helper idiom
// carried over from the teacher's server configuration.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds every option named in the bridge's external interface.
type Config struct {
	Env string

	// Ingress
	ArtNetPort    int
	SACNPort      int
	SACNMulticast bool
	SACNUniverses []int

	// Discovery
	DiscoveryMulticastAddress string
	DiscoveryMulticastPort    int
	DiscoveryIntervalSeconds  int
	DiscoveryResponseTimeout  time.Duration
	DiscoveryStaleAfter       time.Duration

	// Global behavior
	DryRun                   bool
	DebounceSeconds          time.Duration
	TraceContextIDs          bool
	TraceContextSampleRate   float64
	NoisyLogSampleRate       float64
	GoveeMultipleCommandSpacing time.Duration // Open Question #1

	// Sender
	DeviceMaxSendRate      float64
	DeviceSendBurst        float64
	DeviceBackoffBase      time.Duration
	DeviceBackoffFactor    float64
	DeviceBackoffMax       time.Duration
	DeviceQueuePollInterval time.Duration
	DeviceIdleWait         time.Duration
	DeviceMaxAttempts      int
	SendGraceDeadline      time.Duration

	// Poller
	DevicePollEnabled          bool
	DevicePollInterval         time.Duration
	DevicePollTimeout          time.Duration
	DevicePollOfflineThreshold int
	DevicePollRatePerSecond    float64
	DevicePollRateBurst        float64
	DevicePollBatchSize        int

	// Health monitor / circuit breaker
	SubsystemFailureThreshold int
	SubsystemFailureCooldown  time.Duration

	// Persistence
	DatabaseURL string

	// Capability catalog
	CapabilityCatalogPath string
}

// fileDefaults mirrors the subset of Config keys a static bootstrap file may
// override before environment variables are applied on top.
type fileDefaults struct {
	ArtNetPort    *int    `toml:"artnet_port"`
	SACNPort      *int    `toml:"sacn_port"`
	SACNMulticast *bool   `toml:"sacn_multicast"`
	DryRun        *bool   `toml:"dry_run"`
	DatabaseURL   *string `toml:"database_url"`
}

// Load loads configuration from an optional TOML file (path from
// BRIDGE_CONFIG_FILE, if set) layered under sensible defaults, then from
// environment variables, which always take precedence.
func Load() *Config {
	defaults := loadFileDefaults(getEnv("BRIDGE_CONFIG_FILE", ""))

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		ArtNetPort:    getEnvInt("ARTNET_PORT", intOr(defaults.ArtNetPort, 6454)),
		SACNPort:      getEnvInt("SACN_PORT", intOr(defaults.SACNPort, 5568)),
		SACNMulticast: getEnvBool("SACN_MULTICAST", boolOr(defaults.SACNMulticast, true)),
		SACNUniverses: getEnvIntList("SACN_UNIVERSES", nil),

		DiscoveryMulticastAddress: getEnv("DISCOVERY_MULTICAST_ADDRESS", "239.255.255.250"),
		DiscoveryMulticastPort:    getEnvInt("DISCOVERY_MULTICAST_PORT", 4001),
		DiscoveryIntervalSeconds:  getEnvInt("DISCOVERY_INTERVAL_SECONDS", 60),
		DiscoveryResponseTimeout:  getEnvDuration("DISCOVERY_RESPONSE_TIMEOUT_MS", 3*time.Second),
		DiscoveryStaleAfter:       getEnvSeconds("DISCOVERY_STALE_AFTER_SECONDS", 24*time.Hour),

		DryRun:                      getEnvBool("DRY_RUN", boolOr(defaults.DryRun, false)),
		DebounceSeconds:             getEnvSeconds("DEBOUNCE_SECONDS", 20*time.Millisecond),
		TraceContextIDs:             getEnvBool("TRACE_CONTEXT_IDS", false),
		TraceContextSampleRate:      getEnvFloat("TRACE_CONTEXT_SAMPLE_RATE", 0.0),
		NoisyLogSampleRate:          getEnvFloat("NOISY_LOG_SAMPLE_RATE", 0.01),
		GoveeMultipleCommandSpacing: getEnvDuration("GOVEE_MULTIPLE_COMMAND_SPACING_MS", 10*time.Millisecond),

		DeviceMaxSendRate:       getEnvFloat("DEVICE_MAX_SEND_RATE", 10.0),
		DeviceSendBurst:         getEnvFloat("DEVICE_SEND_BURST", 5.0),
		DeviceBackoffBase:       getEnvDuration("DEVICE_BACKOFF_BASE_MS", 200*time.Millisecond),
		DeviceBackoffFactor:     getEnvFloat("DEVICE_BACKOFF_FACTOR", 2.0),
		DeviceBackoffMax:        getEnvDuration("DEVICE_BACKOFF_MAX_MS", 30*time.Second),
		DeviceQueuePollInterval: getEnvDuration("DEVICE_QUEUE_POLL_INTERVAL_MS", 50*time.Millisecond),
		DeviceIdleWait:          getEnvDuration("DEVICE_IDLE_WAIT_MS", 500*time.Millisecond),
		DeviceMaxAttempts:       getEnvInt("DEVICE_MAX_ATTEMPTS", 5),
		SendGraceDeadline:       getEnvDuration("SEND_GRACE_DEADLINE_MS", 5*time.Second),

		DevicePollEnabled:          getEnvBool("DEVICE_POLL_ENABLED", false),
		DevicePollInterval:         getEnvDuration("DEVICE_POLL_INTERVAL_MS", 10*time.Second),
		DevicePollTimeout:          getEnvDuration("DEVICE_POLL_TIMEOUT_MS", 500*time.Millisecond),
		DevicePollOfflineThreshold: getEnvInt("DEVICE_POLL_OFFLINE_THRESHOLD", 3),
		DevicePollRatePerSecond:    getEnvFloat("DEVICE_POLL_RATE_PER_SECOND", 5.0),
		DevicePollRateBurst:        getEnvFloat("DEVICE_POLL_RATE_BURST", 2.0),
		DevicePollBatchSize:        getEnvInt("DEVICE_POLL_BATCH_SIZE", 20),

		SubsystemFailureThreshold: getEnvInt("SUBSYSTEM_FAILURE_THRESHOLD", 5),
		SubsystemFailureCooldown:  getEnvDuration("SUBSYSTEM_FAILURE_COOLDOWN_MS", 30*time.Second),

		DatabaseURL: getEnv("DATABASE_URL", strOr(defaults.DatabaseURL, "file:./bridge.db")),

		CapabilityCatalogPath: getEnv("CAPABILITY_CATALOG_PATH", "./capabilities.json"),
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool { return c.Env == "production" }

func loadFileDefaults(path string) fileDefaults {
	var d fileDefaults
	if path == "" {
		return d
	}
	if _, err := toml.DecodeFile(path, &d); err != nil {
		// A missing or malformed bootstrap file is non-fatal: env vars and
		// built-in defaults still apply.
		return fileDefaults{}
	}
	return d
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

func boolOr(p *bool, def bool) bool {
	if p != nil {
		return *p
	}
	return def
}

func strOr(p *string, def string) string {
	if p != nil {
		return *p
	}
	return def
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

// getEnvSeconds reads a (possibly fractional) number of seconds.
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if s, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(s * float64(time.Second))
		}
	}
	return defaultValue
}

func getEnvIntList(key string, defaultValue []int) []int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	var out []int
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			if i > start {
				if n, err := strconv.Atoi(value[start:i]); err == nil {
					out = append(out, n)
				}
			}
			start = i + 1
		}
	}
	return out
}
