package engine

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xiaoyuanxun/anda-sub000/errs"
)

// Config is the on-disk shape of an engine's bring-up parameters, the
// counterpart of hector's hectorConfig: everything the CLI surface (out of
// scope here) would otherwise pass as flags.
type Config struct {
	Name          string        `yaml:"name"`
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Endpoint      string        `yaml:"endpoint"`
	CacheCapacity int           `yaml:"cache_capacity"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	Auth *AuthConfig `yaml:"auth,omitempty"`

	// RootSecretEnv names the environment variable holding the hex-encoded
	// 48-byte root secret; never stored in the YAML file itself.
	RootSecretEnv string `yaml:"root_secret_env"`
}

// AuthConfig configures the optional inbound JWT bearer-auth layer,
// grounded on hector's pkg/auth.JWTValidator config shape.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	JWKSURL  string `yaml:"jwks_url"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// SetDefaults fills in zero fields with the same defaults serve.go falls
// back to absent configuration.
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = 100_000
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = 30 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Name == "" {
		return errs.Validation("engine.Config.Validate", "name is required", nil)
	}
	return nil
}

// LoadConfig reads a YAML engine config from path, first loading any
// sibling ".env" file (same directory) into the process environment so
// RootSecretEnv and other secret references resolve, matching the
// env-file-plus-yaml layering hector's zero-config loader uses.
func LoadConfig(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, errs.Internal("engine.LoadConfig", "loading .env file", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Resource("engine.LoadConfig", "reading config file", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Validation("engine.LoadConfig", "parsing config yaml", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watcher reloads a Config and invokes onChange whenever the underlying
// file is written, debouncing rapid successive writes. Grounded on
// hector's pkg/config/provider.FileProvider.Watch.
type Watcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// WatchConfig starts watching path's containing directory and calls
// onChange with the freshly reloaded Config after each write, swallowing
// (but not surfacing) reload errors caused by a transient partial write —
// the caller keeps running on its last-good Config until the next valid
// write arrives.
func WatchConfig(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Internal("engine.WatchConfig", "creating file watcher", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, errs.Internal("engine.WatchConfig", "watching config directory", err)
	}
	base := filepath.Base(path)
	w := &Watcher{watcher: fw}
	go w.loop(path, base, onChange)
	return w, nil
}

func (w *Watcher) loop(path, base string, onChange func(*Config)) {
	const debounce = 100 * time.Millisecond
	var timer *time.Timer
	for event := range w.watcher.Events {
		if filepath.Base(event.Name) != base {
			continue
		}
		if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			continue
		}
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if cfg, err := LoadConfig(path); err == nil {
				onChange(cfg)
			}
		})
	}
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.watcher.Close()
}
