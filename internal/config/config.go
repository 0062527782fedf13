package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Identity strategies for local duplicate detection.
const (
	IdentityContent = "content"
	IdentityPath    = "path"
)

// Config holds all configuration for photosync.
type Config struct {
	// Local pictures directory to sync (required).
	PhotosDir string `env:"PHOTOS_DIR"`

	// Trailing window, in days, for the recent-items selection.
	Days int `env:"PHOTOSYNC_DAYS" envDefault:"90"`

	// Album titles to sync, comma separated. Each album maps to a
	// subfolder of PhotosDir named after the album.
	Albums []string `env:"PHOTOSYNC_ALBUMS" envSeparator:","`

	// IncludeFavorites enables the favorites selection.
	IncludeFavorites bool `env:"PHOTOSYNC_FAVORITES" envDefault:"false"`

	// Identity controls how local files are keyed for duplicate
	// detection: "content" (sha256 of file bytes, survives renames) or
	// "path" (relative path + size, cheaper but rename-fragile).
	Identity string `env:"PHOTOSYNC_IDENTITY" envDefault:"content"`

	// Recursive controls whether the scanner descends into subdirectories.
	Recursive bool `env:"PHOTOSYNC_RECURSIVE" envDefault:"true"`

	// LedgerPath is the bbolt ledger database location. Defaults to
	// ~/.photosync/ledger.db when empty.
	LedgerPath string `env:"PHOTOSYNC_LEDGER"`

	// SettingsFile is an optional YAML file carrying days/albums/favorites.
	// Env vars that were explicitly set take precedence over the file.
	SettingsFile string `env:"PHOTOSYNC_SETTINGS"`

	// OAuth session inputs. Acquisition of the refresh token (interactive
	// consent flow) is outside this tool.
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RefreshToken string `env:"GOOGLE_REFRESH_TOKEN"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// settingsFile mirrors the original tool's user-editable sync settings.
type settingsFile struct {
	Days      int      `yaml:"days"`
	Albums    []string `yaml:"albums"`
	Favorites bool     `yaml:"favorites"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. Group or world readable files risk
// exposing the refresh token to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars,
// then overlays the optional YAML settings file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.applySettingsFile(); err != nil {
		return nil, err
	}

	if cfg.LedgerPath == "" {
		path, err := defaultLedgerPath()
		if err != nil {
			return nil, err
		}

		cfg.LedgerPath = path
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Resolve PhotosDir to an absolute path at startup. Downstream code
	// uses it for path traversal checks, which rely on string prefix
	// comparison and only work reliably with absolute paths.
	absDir, err := filepath.Abs(cfg.PhotosDir)
	if err != nil {
		return nil, fmt.Errorf("resolving photos dir to absolute path: %w", err)
	}

	cfg.PhotosDir = absDir

	return cfg, nil
}

// applySettingsFile overlays values from the YAML settings file. Values
// explicitly set in the environment win over the file.
func (c *Config) applySettingsFile() error {
	if c.SettingsFile == "" {
		return nil
	}

	data, err := os.ReadFile(c.SettingsFile)
	if err != nil {
		return fmt.Errorf("reading settings file %s: %w", c.SettingsFile, err)
	}

	var sf settingsFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parsing settings file %s: %w", c.SettingsFile, err)
	}

	if _, set := os.LookupEnv("PHOTOSYNC_DAYS"); !set && sf.Days > 0 {
		c.Days = sf.Days
	}

	if _, set := os.LookupEnv("PHOTOSYNC_ALBUMS"); !set && len(sf.Albums) > 0 {
		c.Albums = sf.Albums
	}

	if _, set := os.LookupEnv("PHOTOSYNC_FAVORITES"); !set {
		c.IncludeFavorites = sf.Favorites
	}

	return nil
}

func (c *Config) validate() error {
	if c.PhotosDir == "" {
		return fmt.Errorf("PHOTOS_DIR is required")
	}

	if c.Days <= 0 {
		return fmt.Errorf("PHOTOSYNC_DAYS must be positive, got %d", c.Days)
	}

	if c.Identity != IdentityContent && c.Identity != IdentityPath {
		return fmt.Errorf("PHOTOSYNC_IDENTITY must be %q or %q, got %q", IdentityContent, IdentityPath, c.Identity)
	}

	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REFRESH_TOKEN are required")
	}

	for i, album := range c.Albums {
		c.Albums[i] = strings.TrimSpace(album)
		if c.Albums[i] == "" {
			return fmt.Errorf("empty album title in PHOTOSYNC_ALBUMS entry %d", i+1)
		}
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func defaultLedgerPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".photosync", "ledger.db"), nil
}
