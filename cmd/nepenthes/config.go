package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/CTAG07/Nepenthes/pkg/templating"
	"github.com/CTAG07/Nepenthes/pkg/view"
	"github.com/natefinch/atomic"
	"github.com/tidwall/jsonc"
)

// ServerConfig holds the configuration for the HTTP servers.
type ServerConfig struct {
	ServerAddr   string `json:"server_addr"`
	ApiAddr      string `json:"api_addr"`
	LogLevel     string `json:"log_level"`
	DataDir      string `json:"data_dir"`
	DatabasePath string `json:"database_path"`
	// SiteRoot is the directory relative template paths are resolved against.
	SiteRoot string `json:"site_root"`
	// ThemeDir is the base theme; ChildThemeDir, when set, overrides it.
	ThemeDir      string `json:"theme_dir"`
	ChildThemeDir string `json:"child_theme_dir"`
	// ContentDir holds the markdown page records, empty to disable them.
	ContentDir string `json:"content_dir"`
	// WatchTemplates flushes the engine cache when template files change.
	WatchTemplates   bool `json:"watch_templates"`
	WatchDebounceMs  int  `json:"watch_debounce_ms"`
	EnableGzip       bool `json:"enable_gzip"`
	ShutdownTimeoutS int  `json:"shutdown_timeout_sec"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server    *ServerConfig              `json:"server_config"`
	Templates *templating.TemplateConfig `json:"template_config"`
	View      *view.Config               `json:"view_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ServerAddr:       ":7377",
		ApiAddr:          ":7378",
		LogLevel:         "info",
		DataDir:          "./data",
		DatabasePath:     "./data/nepenthes.db",
		SiteRoot:         "./site",
		ThemeDir:         "./site/theme",
		ChildThemeDir:    "",
		ContentDir:       "./site/content",
		WatchTemplates:   true,
		WatchDebounceMs:  250,
		EnableGzip:       true,
		ShutdownTimeoutS: 10,
	}
}

// DefaultConfig returns the full configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Templates: templating.DefaultConfig(),
		View:      view.DefaultConfig(),
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// Comments and trailing commas are allowed. If the file doesn't exist, it
// creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if dir := filepath.Dir(path); dir != "." {
				_ = os.MkdirAll(dir, 0755)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// The server can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(jsonc.ToJSON(file), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.fillDefaults()
	return config, nil
}

// fillDefaults replaces sections explicitly set to null.
func (c *Config) fillDefaults() {
	if c.Server == nil {
		c.Server = DefaultServerConfig()
	}
	if c.Templates == nil {
		c.Templates = templating.DefaultConfig()
	}
	if c.View == nil {
		c.View = view.DefaultConfig()
	}
	// Both layers must agree on the file extension.
	c.View.Extension = c.Templates.Extension
}

// clone returns a deep copy of the serialized configuration.
func (c Config) clone() Config {
	out := Config{}
	data, err := json.Marshal(c)
	if err == nil {
		err = json.Unmarshal(data, &out)
	}
	if err != nil {
		return *DefaultConfig()
	}
	out.fillDefaults()
	return out
}

// ThemeRoots returns the host theme roots, override first, without empty or
// duplicate entries.
func (c *Config) ThemeRoots() []string {
	var roots []string
	for _, dir := range []string{c.Server.ChildThemeDir, c.Server.ThemeDir} {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = filepath.Clean(dir)
		}
		if !contains(roots, abs) {
			roots = append(roots, abs)
		}
	}
	return roots
}

// ConfigManager handles thread-safe access to the configuration file.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
	logger     *slog.Logger
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return &ConfigManager{
		config:     cfg,
		configPath: path,
		// Log to stdout before the application-specific logger is set.
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})),
	}, nil
}

// SetLogger sets the logger.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	cm.logger = logger
	cm.mu.Unlock()
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return *cm.config
}

// Update replaces the configuration and saves it to disk. Most changes
// take effect after a restart.
func (cm *ConfigManager) Update(newConfig Config) error {
	newConfig.fillDefaults()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := json.MarshalIndent(&newConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	*cm.config = newConfig
	cm.logger.Info("Configuration saved", "path", cm.configPath)
	return nil
}

// parseLogLevel maps a config string to a slog level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
