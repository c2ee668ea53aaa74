// Package config loads the co-simulation server settings from cosim.yaml,
// with MOSIM_* environment variables taking precedence over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// LocalAdapter is the address that resolves to the in-process adapter host.
const LocalAdapter = "local"

type Config struct {
	AvatarID   string `yaml:"avatar_id" env:"MOSIM_AVATAR_ID"`
	AvatarName string `yaml:"avatar_name" env:"MOSIM_AVATAR_NAME"`
	SceneID    string `yaml:"scene_id" env:"MOSIM_SCENE_ID"`
	TickRateHz int    `yaml:"tick_rate_hz" env:"MOSIM_TICK_RATE_HZ"`

	Adapters AdapterSpec       `yaml:"adapters"`
	Timeouts TimeoutSpec       `yaml:"timeouts"`
	Session  SessionSpec       `yaml:"session"`
	Scene    SceneSpec         `yaml:"scene"`
	Storage  StorageSpec       `yaml:"storage"`
	CoSim    CoSimSpec         `yaml:"cosim"`
	MMUs     []string          `yaml:"mmus,omitempty" env:"MOSIM_MMUS" envSeparator:","`
	Props    map[string]string `yaml:"properties,omitempty"`
}

type AdapterSpec struct {
	// Addresses are websocket URLs of remote adapters, or LocalAdapter.
	Addresses []string `yaml:"addresses" env:"MOSIM_ADAPTERS" envSeparator:","`
	Local     bool     `yaml:"local" env:"MOSIM_LOCAL_ADAPTER"`
}

type TimeoutSpec struct {
	Connect    time.Duration `yaml:"connect" env:"MOSIM_CONNECT_TIMEOUT"`
	Load       time.Duration `yaml:"load" env:"MOSIM_LOAD_TIMEOUT"`
	Initialize time.Duration `yaml:"initialize" env:"MOSIM_INIT_TIMEOUT"`
}

type SessionSpec struct {
	Timeout         time.Duration `yaml:"timeout" env:"MOSIM_SESSION_TIMEOUT"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"MOSIM_CLEANUP_INTERVAL"`
}

type SceneSpec struct {
	HistorySize int `yaml:"history_size" env:"MOSIM_SCENE_HISTORY"`
}

type StorageSpec struct {
	DataDir   string `yaml:"data_dir" env:"MOSIM_DATA_DIR"`
	DisableDB bool   `yaml:"disable_db" env:"MOSIM_DISABLE_DB"`
}

type CoSimSpec struct {
	Record     bool               `yaml:"record" env:"MOSIM_RECORD"`
	LogTimes   bool               `yaml:"log_times" env:"MOSIM_LOG_TIMES"`
	Priorities map[string]float64 `yaml:"priorities"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("cosim.yaml: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("cosim.yaml: env: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("cosim.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		AvatarID:   "avatar-1",
		SceneID:    "scene-1",
		TickRateHz: 30,
		Adapters: AdapterSpec{
			Local: true,
		},
		Timeouts: TimeoutSpec{
			Connect:    2 * time.Second,
			Load:       5 * time.Second,
			Initialize: 5 * time.Second,
		},
		Session: SessionSpec{
			Timeout:         10 * time.Minute,
			CleanupInterval: 30 * time.Second,
		},
		Scene: SceneSpec{HistorySize: 64},
		Storage: StorageSpec{
			DataDir: "data",
		},
		CoSim: CoSimSpec{
			Record:   true,
			LogTimes: false,
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.AvatarID = strings.TrimSpace(c.AvatarID)
	c.SceneID = strings.TrimSpace(c.SceneID)
	if c.AvatarName == "" {
		c.AvatarName = c.AvatarID
	}

	seen := map[string]bool{}
	addrs := c.Adapters.Addresses[:0]
	for _, a := range c.Adapters.Addresses {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		addrs = append(addrs, a)
	}
	if c.Adapters.Local && !seen[LocalAdapter] {
		addrs = append([]string{LocalAdapter}, addrs...)
	}
	c.Adapters.Addresses = addrs

	var mmus []string
	for _, id := range c.MMUs {
		if id = strings.TrimSpace(id); id != "" {
			mmus = append(mmus, id)
		}
	}
	c.MMUs = mmus
	if c.Scene.HistorySize < 0 {
		c.Scene.HistorySize = 0
	}
}

func (c Config) Validate() error {
	if c.AvatarID == "" {
		return errors.New("avatar_id is required")
	}
	if c.TickRateHz <= 0 || c.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz out of range: %d", c.TickRateHz)
	}
	if len(c.Adapters.Addresses) == 0 {
		return errors.New("no adapters configured (set adapters.addresses or adapters.local)")
	}
	for _, a := range c.Adapters.Addresses {
		if a == LocalAdapter {
			continue
		}
		if !strings.HasPrefix(a, "ws://") && !strings.HasPrefix(a, "wss://") {
			return fmt.Errorf("adapter address %q: want ws:// or wss://", a)
		}
	}
	for name, d := range map[string]time.Duration{
		"timeouts.connect":         c.Timeouts.Connect,
		"timeouts.load":            c.Timeouts.Load,
		"timeouts.initialize":      c.Timeouts.Initialize,
		"session.timeout":          c.Session.Timeout,
		"session.cleanup_interval": c.Session.CleanupInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	for _, mt := range c.PriorityTypes() {
		if c.CoSim.Priorities[mt] < 0 {
			return fmt.Errorf("cosim.priorities[%s] must not be negative", mt)
		}
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return errors.New("storage.data_dir is required")
	}
	return nil
}

// PriorityTypes returns the motion types with a configured priority, sorted.
func (c Config) PriorityTypes() []string {
	out := make([]string, 0, len(c.CoSim.Priorities))
	for mt := range c.CoSim.Priorities {
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}

// Remote returns the configured adapter addresses that are not LocalAdapter.
func (c Config) Remote() []string {
	var out []string
	for _, a := range c.Adapters.Addresses {
		if a != LocalAdapter {
			out = append(out, a)
		}
	}
	return out
}
