package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Defaults. See [Config] for field descriptions.
const (
	DefaultContentRoot = "./content"
	DefaultAddr        = "127.0.0.1:3000"
	DefaultMode        = ModeDevelopment
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "auto"
	DefaultMaxUploadMB = 10
)

var (
	// DefaultReservedSlugs can never be produced by CreateDocument.
	DefaultReservedSlugs = []string{"api", "admin", "img", "posts", "home"}
	// DefaultExcludedNames are skipped while walking the content root.
	DefaultExcludedNames = []string{"api", "admin", "img", "node_modules", ".next"}
)

// Config holds the runtime settings of the editor server.
type Config struct {
	ContentRoot   string   // Directory holding every editable document (EDITOR_CONTENT_ROOT)
	Addr          string   // Listen address (EDITOR_ADDR)
	Mode          string   // development or production; anything but development is read-only (EDITOR_MODE)
	SessionSecret string   // Cookie signing secret (SESSION_SECRET)
	LogLevel      string   // debug, info, warn, error (LOG_LEVEL)
	LogFormat     string   // console, json or auto (LOG_FORMAT)
	TreeCache     bool     // Cache the content tree between writes (EDITOR_TREE_CACHE)
	MaxUploadMB   int      // Largest accepted upload (EDITOR_MAX_UPLOAD_MB)
	ReservedSlugs []string // Slugs CreateDocument refuses
	ExcludedNames []string // Entry names the tree builder skips
}

// Override uses pointer fields so a partial file only replaces what it sets.
type Override struct {
	ContentRoot   *string  `yaml:"content_root,omitempty" toml:"content_root,omitempty" json:"content_root,omitempty"`
	Addr          *string  `yaml:"addr,omitempty" toml:"addr,omitempty" json:"addr,omitempty"`
	Mode          *string  `yaml:"mode,omitempty" toml:"mode,omitempty" json:"mode,omitempty"`
	SessionSecret *string  `yaml:"session_secret,omitempty" toml:"session_secret,omitempty" json:"session_secret,omitempty"`
	LogLevel      *string  `yaml:"log_level,omitempty" toml:"log_level,omitempty" json:"log_level,omitempty"`
	LogFormat     *string  `yaml:"log_format,omitempty" toml:"log_format,omitempty" json:"log_format,omitempty"`
	TreeCache     *bool    `yaml:"tree_cache,omitempty" toml:"tree_cache,omitempty" json:"tree_cache,omitempty"`
	MaxUploadMB   *int     `yaml:"max_upload_mb,omitempty" toml:"max_upload_mb,omitempty" json:"max_upload_mb,omitempty"`
	ReservedSlugs []string `yaml:"reserved_slugs,omitempty" toml:"reserved_slugs,omitempty" json:"reserved_slugs,omitempty"`
	ExcludedNames []string `yaml:"excluded_names,omitempty" toml:"excluded_names,omitempty" json:"excluded_names,omitempty"`
}

// NewDefault returns a Config with every default applied.
func NewDefault() *Config {
	return &Config{
		ContentRoot:   DefaultContentRoot,
		Addr:          DefaultAddr,
		Mode:          DefaultMode,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
		MaxUploadMB:   DefaultMaxUploadMB,
		ReservedSlugs: append([]string(nil), DefaultReservedSlugs...),
		ExcludedNames: append([]string(nil), DefaultExcludedNames...),
	}
}

// Load builds the configuration from defaults, a .env file, the process
// environment and finally the override file at path (skipped when empty).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := NewDefault()
	cfg.applyEnv()

	if path == "" {
		path = os.Getenv("EDITOR_CONFIG")
	}
	if path != "" {
		override, err := LoadOverrideFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Merge(override)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	c.ContentRoot = getEnv("EDITOR_CONTENT_ROOT", c.ContentRoot)
	c.Addr = getEnv("EDITOR_ADDR", c.Addr)
	c.Mode = getEnv("EDITOR_MODE", c.Mode)
	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	if v := os.Getenv("EDITOR_TREE_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.TreeCache = b
		}
	}
	if v := os.Getenv("EDITOR_MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxUploadMB = n
		}
	}
}

// Merge applies every non-nil value of override onto c.
func (c *Config) Merge(override *Override) {
	if override == nil {
		return
	}
	if override.ContentRoot != nil {
		c.ContentRoot = *override.ContentRoot
	}
	if override.Addr != nil {
		c.Addr = *override.Addr
	}
	if override.Mode != nil {
		c.Mode = *override.Mode
	}
	if override.SessionSecret != nil {
		c.SessionSecret = *override.SessionSecret
	}
	if override.LogLevel != nil {
		c.LogLevel = *override.LogLevel
	}
	if override.LogFormat != nil {
		c.LogFormat = *override.LogFormat
	}
	if override.TreeCache != nil {
		c.TreeCache = *override.TreeCache
	}
	if override.MaxUploadMB != nil {
		c.MaxUploadMB = *override.MaxUploadMB
	}
	if len(override.ReservedSlugs) > 0 {
		c.ReservedSlugs = mergeNames(c.ReservedSlugs, override.ReservedSlugs)
	}
	if len(override.ExcludedNames) > 0 {
		c.ExcludedNames = mergeNames(c.ExcludedNames, override.ExcludedNames)
	}
}

// mergeNames appends extra to base, dropping duplicates and blanks.
func mergeNames(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, name := range append(append([]string(nil), base...), extra...) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// LoadOverrideFile reads an override file without merging it. The format is
// picked from the extension: .yaml/.yml, .toml or .json.
func LoadOverrideFile(path string) (*Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override Override
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &override)
	case ".toml":
		err = toml.Unmarshal(data, &override)
	case ".json":
		err = json.Unmarshal(data, &override)
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	return &override, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ContentRoot) == "" {
		return fmt.Errorf("content root is required")
	}
	if c.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	switch c.Mode {
	case ModeDevelopment, ModeProduction:
	default:
		return fmt.Errorf("unknown mode %q (want %s or %s)", c.Mode, ModeDevelopment, ModeProduction)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	return nil
}

// ReadOnly reports whether mutating and listing endpoints are disabled.
func (c *Config) ReadOnly() bool {
	return c.Mode != ModeDevelopment
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
