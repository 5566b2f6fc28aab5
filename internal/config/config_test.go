package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.ArtNetPort != 6454 {
		t.Errorf("Expected ArtNetPort 6454, got %d", cfg.ArtNetPort)
	}
	if cfg.SACNPort != 5568 {
		t.Errorf("Expected SACNPort 5568, got %d", cfg.SACNPort)
	}
	if cfg.DiscoveryMulticastPort != 4001 {
		t.Errorf("Expected DiscoveryMulticastPort 4001, got %d", cfg.DiscoveryMulticastPort)
	}
	if cfg.DebounceSeconds != 20*time.Millisecond {
		t.Errorf("Expected DebounceSeconds 20ms, got %v", cfg.DebounceSeconds)
	}
	if cfg.GoveeMultipleCommandSpacing != 10*time.Millisecond {
		t.Errorf("Expected GoveeMultipleCommandSpacing 10ms, got %v", cfg.GoveeMultipleCommandSpacing)
	}
	if cfg.DevicePollEnabled {
		t.Error("Expected DevicePollEnabled false by default")
	}
	if cfg.DryRun {
		t.Error("Expected DryRun false by default")
	}
}

func TestLoad_CustomEnvironment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("ARTNET_PORT", "6455")
	t.Setenv("SACN_PORT", "5569")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("DEVICE_POLL_ENABLED", "true")
	t.Setenv("DEVICE_MAX_SEND_RATE", "20")
	t.Setenv("SACN_UNIVERSES", "1,2,3")

	cfg := Load()

	if cfg.Env != "production" {
		t.Errorf("Expected Env production, got %s", cfg.Env)
	}
	if cfg.ArtNetPort != 6455 {
		t.Errorf("Expected ArtNetPort 6455, got %d", cfg.ArtNetPort)
	}
	if cfg.SACNPort != 5569 {
		t.Errorf("Expected SACNPort 5569, got %d", cfg.SACNPort)
	}
	if !cfg.DryRun {
		t.Error("Expected DryRun true")
	}
	if !cfg.DevicePollEnabled {
		t.Error("Expected DevicePollEnabled true")
	}
	if cfg.DeviceMaxSendRate != 20 {
		t.Errorf("Expected DeviceMaxSendRate 20, got %v", cfg.DeviceMaxSendRate)
	}
	if len(cfg.SACNUniverses) != 3 || cfg.SACNUniverses[0] != 1 || cfg.SACNUniverses[2] != 3 {
		t.Errorf("Expected SACNUniverses [1 2 3], got %v", cfg.SACNUniverses)
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		env      string
		expected bool
	}{
		{"development", true},
		{"production", false},
		{"", false},
	}
	for _, tt := range tests {
		cfg := &Config{Env: tt.env}
		if got := cfg.IsDevelopment(); got != tt.expected {
			t.Errorf("IsDevelopment() for %q = %v, want %v", tt.env, got, tt.expected)
		}
	}
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		env      string
		expected bool
	}{
		{"production", true},
		{"development", false},
		{"", false},
	}
	for _, tt := range tests {
		cfg := &Config{Env: tt.env}
		if got := cfg.IsProduction(); got != tt.expected {
			t.Errorf("IsProduction() for %q = %v, want %v", tt.env, got, tt.expected)
		}
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_GET_ENV", "custom_value")
	if result := getEnv("TEST_GET_ENV", "default"); result != "custom_value" {
		t.Errorf("Expected 'custom_value', got '%s'", result)
	}
	if result := getEnv("NON_EXISTING_VAR_12345_UNIQUE", "default_value"); result != "default_value" {
		t.Errorf("Expected 'default_value', got '%s'", result)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT_VAR", "42")
	if result := getEnvInt("TEST_INT_VAR", 10); result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}
	t.Setenv("TEST_INVALID_INT", "not_a_number")
	if result := getEnvInt("TEST_INVALID_INT", 10); result != 10 {
		t.Errorf("Expected default 10 for invalid int, got %d", result)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		expected     bool
	}{
		{"true_string", "true", false, true},
		{"false_string", "false", true, false},
		{"invalid_string_returns_default", "invalid", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envKey := "TEST_BOOL_VAR_" + tt.name
			t.Setenv(envKey, tt.envValue)
			if result := getEnvBool(envKey, tt.defaultValue); result != tt.expected {
				t.Errorf("getEnvBool(%s, %v) = %v, want %v", envKey, tt.defaultValue, result, tt.expected)
			}
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT_VAR", "0.25")
	if result := getEnvFloat("TEST_FLOAT_VAR", 0.0); result != 0.25 {
		t.Errorf("Expected 0.25, got %v", result)
	}
	if result := getEnvFloat("TEST_FLOAT_MISSING_UNIQUE", 0.5); result != 0.5 {
		t.Errorf("Expected default 0.5, got %v", result)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION_MS", "150")
	if result := getEnvDuration("TEST_DURATION_MS", time.Second); result != 150*time.Millisecond {
		t.Errorf("Expected 150ms, got %v", result)
	}
}

func TestGetEnvIntList(t *testing.T) {
	t.Setenv("TEST_INT_LIST", "1,2,3")
	result := getEnvIntList("TEST_INT_LIST", nil)
	if len(result) != 3 || result[0] != 1 || result[1] != 2 || result[2] != 3 {
		t.Errorf("Expected [1 2 3], got %v", result)
	}
	if result := getEnvIntList("TEST_INT_LIST_MISSING_UNIQUE", []int{9}); len(result) != 1 || result[0] != 9 {
		t.Errorf("Expected default [9], got %v", result)
	}
}
