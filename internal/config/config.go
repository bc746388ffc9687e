// Package config provides application configuration loaded from environment
// variables. Use the package-level Get() function to obtain the singleton
// Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string
	Env             string // "development" | "production"
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	AllowedOrigins  string // comma-separated; "" = allow all in development
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuthConfig holds wallet-signature auth settings, replacing the teacher's
// JWTConfig: there are no session tokens, only per-request signatures
// (spec §6).
type AuthConfig struct {
	ReplayWindow time.Duration // default 300s
	DevMode      bool          // ENVIRONMENT=development bypasses real Ed25519 verification
}

// ChainConfig holds on-chain RPC settings.
type ChainConfig struct {
	RPCEndpoint    string
	RequestTimeout time.Duration // default 5s
}

// AdvisoryConfig holds model-advisory poller settings.
type AdvisoryConfig struct {
	Endpoint              string        // "" disables the external recommendation call
	RequestTimeout        time.Duration // default 2s
	PollInterval          time.Duration // default 3s
	SignificanceThreshold float64       // default 0.01 (1%)
}

// AuditConfig holds audit-log settings.
type AuditConfig struct {
	Dir string // directory holding audit_YYYY-MM-DD.log files
}

// LMSRConfig holds the LMSR liquidity parameter.
type LMSRConfig struct {
	Liquidity float64 // default 100 (the b parameter)
}

// MerkleConfig holds the Merkle-committer loop settings.
type MerkleConfig struct {
	CommitInterval   time.Duration // default 10s
	VolumeThreshold  float64       // default 1000 (USDC)
}

// ReconciliationConfig holds the reconciliation job loop settings.
type ReconciliationConfig struct {
	SweepInterval time.Duration // default 30s
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server          ServerConfig
	DB              DBConfig
	Auth            AuthConfig
	Chain           ChainConfig
	Advisory        AdvisoryConfig
	Audit           AuditConfig
	LMSR            LMSRConfig
	Merkle          MerkleConfig
	Reconciliation  ReconciliationConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and
// valid, aggregating every failure via errors.Join rather than stopping at
// the first one (so a misconfigured boot reports everything at once).
func (c *Config) Validate() error {
	var errs []error

	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_URL must be set in production"))
	}
	if c.IsProd() && c.Auth.DevMode {
		errs = append(errs, errors.New("AUTH_DEV_MODE must not be enabled in production"))
	}
	if c.Auth.ReplayWindow <= 0 {
		errs = append(errs, errors.New("AUTH_REPLAY_WINDOW must be positive"))
	}
	if c.Advisory.SignificanceThreshold <= 0 || c.Advisory.SignificanceThreshold >= 1 {
		errs = append(errs, fmt.Errorf(
			"ADVISORY_SIGNIFICANCE_THRESHOLD must be between 0 and 1 (exclusive), got %.4f",
			c.Advisory.SignificanceThreshold))
	}
	if c.LMSR.Liquidity <= 0 {
		errs = append(errs, errors.New("LMSR_LIQUIDITY must be positive"))
	}
	if c.Merkle.VolumeThreshold < 0 {
		errs = append(errs, errors.New("MERKLE_VOLUME_THRESHOLD must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment
// variables. Panics if loading fails — call this early in main() to catch
// misconfigurations at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	cfg.Server = ServerConfig{
		Port:           getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("ENVIRONMENT", "development"),
		ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		AllowedOrigins: getEnv("SERVER_ALLOWED_ORIGINS", ""),
	}

	dsn := getEnv("DATABASE_URL", "")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DATABASE_HOST", "localhost"),
			getEnv("DATABASE_PORT", "5432"),
			getEnv("DATABASE_USER", "postgres"),
			getEnv("DATABASE_PASSWORD", ""),
			getEnv("DATABASE_NAME", "predcore"),
			getEnv("DATABASE_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DATABASE_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DATABASE_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DATABASE_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DATABASE_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	cfg.Auth = AuthConfig{
		ReplayWindow: getDuration("AUTH_REPLAY_WINDOW", 300*time.Second),
		DevMode:      getEnv("ENVIRONMENT", "development") != "production" && getBool("AUTH_DEV_MODE", true),
	}

	cfg.Chain = ChainConfig{
		RPCEndpoint:    getEnv("CHAIN_RPC_ENDPOINT", ""),
		RequestTimeout: getDuration("CHAIN_REQUEST_TIMEOUT", 5*time.Second),
	}

	advisoryThreshold, err := getFloat("ADVISORY_SIGNIFICANCE_THRESHOLD", 0.01)
	if err != nil {
		return nil, fmt.Errorf("ADVISORY_SIGNIFICANCE_THRESHOLD: %w", err)
	}
	cfg.Advisory = AdvisoryConfig{
		Endpoint:              getEnv("ADVISORY_ENDPOINT", ""),
		RequestTimeout:        getDuration("ADVISORY_REQUEST_TIMEOUT", 2*time.Second),
		PollInterval:          getDuration("ADVISORY_POLL_INTERVAL", 3*time.Second),
		SignificanceThreshold: advisoryThreshold,
	}

	cfg.Audit = AuditConfig{
		Dir: getEnv("AUDIT_LOG_DIR", "./audit"),
	}

	lmsrLiquidity, err := getFloat("LMSR_LIQUIDITY", 100)
	if err != nil {
		return nil, fmt.Errorf("LMSR_LIQUIDITY: %w", err)
	}
	cfg.LMSR = LMSRConfig{Liquidity: lmsrLiquidity}

	merkleThreshold, err := getFloat("MERKLE_VOLUME_THRESHOLD", 1000)
	if err != nil {
		return nil, fmt.Errorf("MERKLE_VOLUME_THRESHOLD: %w", err)
	}
	cfg.Merkle = MerkleConfig{
		CommitInterval:  getDuration("MERKLE_COMMIT_INTERVAL", 10*time.Second),
		VolumeThreshold: merkleThreshold,
	}

	cfg.Reconciliation = ReconciliationConfig{
		SweepInterval: getDuration("RECONCILIATION_SWEEP_INTERVAL", 30*time.Second),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or invalid.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
