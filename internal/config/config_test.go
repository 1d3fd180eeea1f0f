package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
		{"SessionTokenExpiry", cfg.Auth.SessionTokenExpiry, 12 * time.Hour},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Protection.PurgeInterval != 0 {
		t.Errorf("PurgeInterval: got %v, want 0 (disabled)", cfg.Protection.PurgeInterval)
	}
}

func TestLoad_AddressHeaderPriority(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if len(cfg.Protection.AddressHeaders) == 0 {
		t.Fatal("expected a default address header priority list")
	}
	if cfg.Protection.AddressHeaders[0] != "Client-Ip" {
		t.Errorf("first header: got %q, want %q", cfg.Protection.AddressHeaders[0], "Client-Ip")
	}
}

func TestLoad_AddressHeaderOverride(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("ADDRESS_HEADERS", "X-Real-Ip, X-Forwarded-For")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	want := []string{"X-Real-Ip", "X-Forwarded-For"}
	if len(cfg.Protection.AddressHeaders) != len(want) {
		t.Fatalf("got %d headers, want %d", len(cfg.Protection.AddressHeaders), len(want))
	}
	for i := range want {
		if cfg.Protection.AddressHeaders[i] != want[i] {
			t.Errorf("header %d: got %q, want %q", i, cfg.Protection.AddressHeaders[i], want[i])
		}
	}
}

func TestLoad_RejectsWeakJWTSecret(t *testing.T) {
	os.Setenv("JWT_SECRET", "secret")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("expected error for weak JWT secret")
	}
}

func TestLoad_RequiresDBPassword(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Unsetenv("DB_PASSWORD")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DB_PASSWORD is missing")
	}
}
