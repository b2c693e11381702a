// Package config loads worldhost settings from defaults, an optional yaml
// file and WORLDHOST_ environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/worldcore/internal/core/assets"
	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/core/spatial"
	"github.com/zeusync/worldcore/internal/core/systems/physics"
	"github.com/zeusync/worldcore/internal/runtime"
	"github.com/zeusync/worldcore/internal/server"
)

// EnvPrefix prefixes every environment override, e.g. WORLDHOST_RUNTIME_TICK_INTERVAL.
const EnvPrefix = "WORLDHOST"

var ErrConfigNotFound = errors.New("config file not found")

type Registry struct {
	// Manifests are yaml component manifests applied in order at startup.
	Manifests []string `yaml:"manifests" mapstructure:"manifests"`
	// Seal freezes the registry once the manifests are applied.
	Seal bool `yaml:"seal" mapstructure:"seal"`
}

type Config struct {
	Log      log.Config     `yaml:"log" mapstructure:"log"`
	Runtime  runtime.Config `yaml:"runtime" mapstructure:"runtime"`
	Registry Registry       `yaml:"registry" mapstructure:"registry"`
	Spatial  spatial.Config `yaml:"spatial" mapstructure:"spatial"`
	Physics  physics.Config `yaml:"physics" mapstructure:"physics"`
	Assets   assets.Config  `yaml:"assets" mapstructure:"assets"`
	Observer server.Config  `yaml:"observer" mapstructure:"observer"`
}

func Default() Config {
	return Config{
		Log:      log.DefaultConfig(),
		Runtime:  runtime.DefaultConfig(),
		Registry: Registry{Seal: true},
		Spatial:  spatial.DefaultConfig(),
		Physics:  physics.DefaultConfig(),
		Assets:   assets.DefaultConfig(),
		Observer: server.DefaultConfig(),
	}
}

// Load reads path over the defaults. An empty path loads defaults and the
// environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key of def so that env overrides apply to keys
// the file does not mention.
func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.encoding", def.Log.Encoding)
	v.SetDefault("runtime.tick_interval", def.Runtime.TickInterval)
	v.SetDefault("runtime.memory_limit", def.Runtime.MemoryLimit)
	v.SetDefault("runtime.inbox_limit", def.Runtime.InboxLimit)
	v.SetDefault("registry.manifests", def.Registry.Manifests)
	v.SetDefault("registry.seal", def.Registry.Seal)
	v.SetDefault("spatial.cell_size", def.Spatial.CellSize)
	v.SetDefault("spatial.default_radius", def.Spatial.DefaultRadius)
	v.SetDefault("physics.max_distance", def.Physics.MaxDistance)
	v.SetDefault("assets.base_url", def.Assets.BaseURL)
	v.SetDefault("assets.known", def.Assets.Known)
	v.SetDefault("observer.enabled", def.Observer.Enabled)
	v.SetDefault("observer.addr", def.Observer.Addr)
	v.SetDefault("observer.token", def.Observer.Token)
	v.SetDefault("observer.max_clients", def.Observer.MaxClients)
	v.SetDefault("observer.send_buffer", def.Observer.SendBuffer)
	v.SetDefault("observer.write_timeout", def.Observer.WriteTimeout)
	v.SetDefault("observer.tick_event", def.Observer.TickEvent)
}

func (c Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Runtime.TickInterval <= 0 {
		errs = append(errs, errors.New("runtime.tick_interval must be positive"))
	}
	if c.Spatial.CellSize <= 0 {
		errs = append(errs, errors.New("spatial.cell_size must be positive"))
	}
	if c.Observer.Enabled && c.Observer.Addr == "" {
		errs = append(errs, errors.New("observer.addr is required when the observer is enabled"))
	}
	return errors.Join(errs...)
}

// Marshal renders c as yaml, the format Load reads.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
