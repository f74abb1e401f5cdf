package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/example/msgmenu/internal/ipc"
)

const (
	configDirName  = "msgmenu"
	configFileName = "config.yaml"
)

// Menu layouts.
const (
	VariantSectioned = "sectioned"
	VariantFlat      = "flat"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config is the complete msgmenu configuration.
type Config struct {
	// Socket is the service endpoint; empty selects the per-user default.
	Socket string `yaml:"socket" env:"MSGMENU_SOCKET"`
	// Token authenticates service clients; empty derives one from the secret.
	Token string `yaml:"token" env:"MSGMENU_SERVICE_TOKEN"`
	Debug bool   `yaml:"debug" env:"MSGMENU_DEBUG"`

	Menu    MenuConfig    `yaml:"menu"`
	Store   StoreConfig   `yaml:"store"`
	Desktop DesktopConfig `yaml:"desktop"`
}

// MenuConfig selects the menu layout and renderer.
type MenuConfig struct {
	Variant string `yaml:"variant" env:"MSGMENU_MENU_VARIANT"`
	Tray    bool   `yaml:"tray" env:"MSGMENU_MENU_TRAY"`
}

// StoreConfig configures the registration store.
type StoreConfig struct {
	Backend string `yaml:"backend" env:"MSGMENU_STORE_BACKEND"`
	Path    string `yaml:"path" env:"MSGMENU_STORE_PATH"`
	// Passphrase seals the file backend. The sqlite backend ignores it.
	Passphrase string `yaml:"passphrase" env:"MSGMENU_STORE_PASSPHRASE"`
}

// DesktopConfig lists directories searched for .desktop files.
type DesktopConfig struct {
	Dirs []string `yaml:"dirs" env:"MSGMENU_DESKTOP_DIRS" envSeparator:":"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Menu:  MenuConfig{Variant: VariantSectioned, Tray: true},
		Store: StoreConfig{Backend: BackendSQLite},
	}
}

// Path returns the resolved configuration file path.
func Path() (string, error) {
	if custom := strings.TrimSpace(os.Getenv("MSGMENU_CONFIG_PATH")); custom != "" {
		if err := os.MkdirAll(filepath.Dir(custom), 0o700); err != nil {
			return "", fmt.Errorf("ensure custom config directory: %w", err)
		}
		return custom, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine user config dir: %w", err)
	}

	dir := filepath.Join(base, configDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("ensure config directory: %w", err)
	}

	return filepath.Join(dir, configFileName), nil
}

// Load reads the configuration from Path.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if cfg.Store.Path == "" {
		name := "registrations.db"
		if cfg.Store.Backend == BackendFile {
			name = "registrations.json"
		}
		cfg.Store.Path = filepath.Join(filepath.Dir(path), name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports unsupported values.
func (c *Config) Validate() error {
	switch c.Menu.Variant {
	case VariantSectioned, VariantFlat:
	default:
		return fmt.Errorf("config: menu.variant must be %q or %q, got %q", VariantSectioned, VariantFlat, c.Menu.Variant)
	}
	switch c.Store.Backend {
	case BackendSQLite, BackendFile:
	default:
		return fmt.Errorf("config: store.backend must be %q or %q, got %q", BackendSQLite, BackendFile, c.Store.Backend)
	}
	if c.Socket != "" {
		if _, err := ipc.ParseEndpoint(c.Socket); err != nil {
			return fmt.Errorf("config: socket: %w", err)
		}
	}
	return nil
}

// Endpoint returns the service endpoint.
func (c *Config) Endpoint() ipc.Endpoint {
	if c.Socket != "" {
		if ep, err := ipc.ParseEndpoint(c.Socket); err == nil {
			return ep
		}
	}
	return ipc.DefaultEndpoint()
}
