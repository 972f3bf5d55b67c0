package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/CristianUrbainski/teammate-android/internal/auth"
	"github.com/CristianUrbainski/teammate-android/internal/store"
)

// Config holds all environment-based configuration for teammate-sync.
type Config struct {
	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`

	// Teammate backend. ChatURL is optional; without it no chat feed runs.
	APIURL  string `env:"TEAMMATE_API_URL"`
	ChatURL string `env:"TEAMMATE_CHAT_URL"`

	// Account credentials
	Email    string `env:"TEAMMATE_EMAIL"`
	Password string `env:"TEAMMATE_PASSWORD"`

	// Teams whose lists are kept in sync.
	Teams []string `env:"TEAMMATE_TEAMS" envSeparator:","`

	// StatePath is the bbolt offline cache. Defaults to
	// ~/.teammate/state.db.
	StatePath string `env:"TEAMMATE_STATE_PATH"`

	PageSize     int           `env:"TEAMMATE_PAGE_SIZE" envDefault:"30"`
	PollInterval time.Duration `env:"TEAMMATE_POLL_INTERVAL" envDefault:"30s"`

	// MCP server settings (required when MCP is enabled)
	EnableMCP     bool   `env:"ENABLE_MCP" envDefault:"false"`
	MCPListenAddr string `env:"MCP_LISTEN_ADDR" envDefault:":8090"`
	MCPAPIKeys    string `env:"MCP_API_KEYS"`

	// MCPAPIKeysFile is a YAML key list reloaded whenever it changes.
	MCPAPIKeysFile string `env:"MCP_API_KEYS_FILE"`

	// MetricsListenAddr serves /metrics on its own listener when set.
	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR"`
}

const (
	minPageSize     = 1
	maxPageSize     = 200
	minPollInterval = time.Second
)

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. It holds the account password.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Teams = cleanTeams(cfg.Teams)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.StatePath == "" {
		cfg.StatePath = store.DefaultPath()
	}

	abs, err := filepath.Abs(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("resolving state path to absolute path: %w", err)
	}

	cfg.StatePath = abs

	return cfg, nil
}

func cleanTeams(teams []string) []string {
	seen := make(map[string]struct{}, len(teams))
	out := teams[:0]

	for _, t := range teams {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}

		if _, dup := seen[t]; dup {
			continue
		}

		seen[t] = struct{}{}
		out = append(out, t)
	}

	return out
}

func (c *Config) validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("TEAMMATE_API_URL is required")
	}

	if err := checkURL("TEAMMATE_API_URL", c.APIURL, "http", "https"); err != nil {
		return err
	}

	if c.ChatURL != "" {
		if err := checkURL("TEAMMATE_CHAT_URL", c.ChatURL, "ws", "wss", "http", "https"); err != nil {
			return err
		}
	}

	if c.Email == "" {
		return fmt.Errorf("TEAMMATE_EMAIL is required")
	}

	if c.Password == "" {
		return fmt.Errorf("TEAMMATE_PASSWORD is required")
	}

	if c.PageSize < minPageSize || c.PageSize > maxPageSize {
		return fmt.Errorf("TEAMMATE_PAGE_SIZE must be between %d and %d", minPageSize, maxPageSize)
	}

	if c.PollInterval < minPollInterval {
		return fmt.Errorf("TEAMMATE_POLL_INTERVAL must be at least %s", minPollInterval)
	}

	if c.EnableMCP && c.MCPAPIKeys == "" && c.MCPAPIKeysFile == "" {
		return fmt.Errorf("MCP_API_KEYS or MCP_API_KEYS_FILE is required when MCP is enabled")
	}

	return nil
}

func checkURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s is not a valid URL", name)
	}

	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}

	return fmt.Errorf("%s must use one of %s", name, strings.Join(schemes, ", "))
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ParseMCPAPIKeys parses the MCP_API_KEYS string.
// Format: "user1:bcrypt_hash1,user2:bcrypt_hash2". Hashes come from the
// hash-key subcommand.
func (c *Config) ParseMCPAPIKeys() ([]auth.APIKey, error) {
	if c.MCPAPIKeys == "" {
		return nil, nil
	}

	seenUsers := make(map[string]struct{})

	var entries []auth.APIKey

	for _, pair := range strings.Split(c.MCPAPIKeys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		// bcrypt hashes contain '$' but never ':', so the first colon
		// separates the user.
		idx := strings.Index(pair, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid API key entry (missing ':')")
		}

		userID := pair[:idx]

		hash := pair[idx+1:]
		if userID == "" || hash == "" {
			return nil, fmt.Errorf("empty user or hash in entry %d", len(entries)+1)
		}

		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("entry %d is not a bcrypt hash: %w", len(entries)+1, err)
		}

		if _, dup := seenUsers[userID]; dup {
			return nil, fmt.Errorf("duplicate user_id %q in MCP_API_KEYS", userID)
		}

		seenUsers[userID] = struct{}{}
		entries = append(entries, auth.APIKey{UserID: userID, Hash: hash})
	}

	return entries, nil
}
