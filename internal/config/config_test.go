package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, "SERVER_PORT", "ENVIRONMENT", "LMSR_LIQUIDITY",
		"ADVISORY_SIGNIFICANCE_THRESHOLD", "MERKLE_VOLUME_THRESHOLD",
		"AUDIT_LOG_DIR", "AUTH_REPLAY_WINDOW")

	cfg, err := load()
	if err != nil {
		t.Fatalf("load() with no env vars set should fall back to defaults, got: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("SERVER_PORT default = %q, want 8080", cfg.Server.Port)
	}
	if cfg.LMSR.Liquidity != 100 {
		t.Errorf("LMSR_LIQUIDITY default = %v, want 100", cfg.LMSR.Liquidity)
	}
	if cfg.Audit.Dir != "./audit" {
		t.Errorf("AUDIT_LOG_DIR default = %q, want ./audit", cfg.Audit.Dir)
	}
	if cfg.Auth.ReplayWindow != 300*time.Second {
		t.Errorf("AUTH_REPLAY_WINDOW default = %v, want 300s", cfg.Auth.ReplayWindow)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t, "SERVER_PORT", "LMSR_LIQUIDITY", "MERKLE_COMMIT_INTERVAL")
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("LMSR_LIQUIDITY", "250")
	os.Setenv("MERKLE_COMMIT_INTERVAL", "30s")

	cfg, err := load()
	if err != nil {
		t.Fatalf("load() failed: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("SERVER_PORT = %q, want 9090", cfg.Server.Port)
	}
	if cfg.LMSR.Liquidity != 250 {
		t.Errorf("LMSR_LIQUIDITY = %v, want 250", cfg.LMSR.Liquidity)
	}
	if cfg.Merkle.CommitInterval != 30*time.Second {
		t.Errorf("MERKLE_COMMIT_INTERVAL = %v, want 30s", cfg.Merkle.CommitInterval)
	}
}

func TestLoad_InvalidIntFallsThrough(t *testing.T) {
	clearEnv(t, "DATABASE_MAX_OPEN_CONNS")
	os.Setenv("DATABASE_MAX_OPEN_CONNS", "not-a-number")

	if _, err := load(); err == nil {
		t.Fatal("expected load() to error on a malformed DATABASE_MAX_OPEN_CONNS")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid development config",
			cfg: Config{
				Server:   ServerConfig{Env: "development"},
				Auth:     AuthConfig{ReplayWindow: time.Minute, DevMode: true},
				Advisory: AdvisoryConfig{SignificanceThreshold: 0.01},
				LMSR:     LMSRConfig{Liquidity: 100},
			},
			wantErr: false,
		},
		{
			name: "production without DSN",
			cfg: Config{
				Server:   ServerConfig{Env: "production"},
				Auth:     AuthConfig{ReplayWindow: time.Minute},
				Advisory: AdvisoryConfig{SignificanceThreshold: 0.01},
				LMSR:     LMSRConfig{Liquidity: 100},
			},
			wantErr: true,
		},
		{
			name: "production with dev mode enabled",
			cfg: Config{
				Server:   ServerConfig{Env: "production"},
				DB:       DBConfig{DSN: "postgres://x"},
				Auth:     AuthConfig{ReplayWindow: time.Minute, DevMode: true},
				Advisory: AdvisoryConfig{SignificanceThreshold: 0.01},
				LMSR:     LMSRConfig{Liquidity: 100},
			},
			wantErr: true,
		},
		{
			name: "zero replay window",
			cfg: Config{
				Server:   ServerConfig{Env: "development"},
				Auth:     AuthConfig{ReplayWindow: 0},
				Advisory: AdvisoryConfig{SignificanceThreshold: 0.01},
				LMSR:     LMSRConfig{Liquidity: 100},
			},
			wantErr: true,
		},
		{
			name: "significance threshold out of range",
			cfg: Config{
				Server:   ServerConfig{Env: "development"},
				Auth:     AuthConfig{ReplayWindow: time.Minute},
				Advisory: AdvisoryConfig{SignificanceThreshold: 1.5},
				LMSR:     LMSRConfig{Liquidity: 100},
			},
			wantErr: true,
		},
		{
			name: "non-positive liquidity",
			cfg: Config{
				Server:   ServerConfig{Env: "development"},
				Auth:     AuthConfig{ReplayWindow: time.Minute},
				Advisory: AdvisoryConfig{SignificanceThreshold: 0.01},
				LMSR:     LMSRConfig{Liquidity: 0},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsProd(t *testing.T) {
	c := &Config{Server: ServerConfig{Env: "production"}}
	if !c.IsProd() {
		t.Error("IsProd() = false, want true for Env=production")
	}
	c.Server.Env = "development"
	if c.IsProd() {
		t.Error("IsProd() = true, want false for Env=development")
	}
}
