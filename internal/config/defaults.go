package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AddonDefaults are the branch-level fallbacks applied to catalog addons
// that have no assignment yet, plus presentation timing knobs.
type AddonDefaults struct {
	MinQuantity   int           `mapstructure:"minQuantity"`
	MaxQuantity   int           `mapstructure:"maxQuantity"`
	NotifyDismiss time.Duration `mapstructure:"notifyDismiss"`
}

func DefaultAddonDefaults() AddonDefaults {
	return AddonDefaults{
		MinQuantity:   0,
		MaxQuantity:   10,
		NotifyDismiss: 4 * time.Second,
	}
}

// AddonDefaultsHolder serves the current defaults and hot-reloads them when
// the config file changes.
type AddonDefaultsHolder struct {
	current atomic.Value // holds AddonDefaults
}

func NewAddonDefaultsHolder() (*AddonDefaultsHolder, error) {
	v := viper.New()

	v.SetConfigName("addons")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/mesa/config") // Volume-mounted config
	v.AddConfigPath("/etc/mesa")            // System config
	v.AddConfigPath(".")                    // Current directory (dev mode)

	v.SetEnvPrefix("MESA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAddonDefaults()
	v.SetDefault("addons.minQuantity", defaults.MinQuantity)
	v.SetDefault("addons.maxQuantity", defaults.MaxQuantity)
	v.SetDefault("addons.notifyDismiss", defaults.NotifyDismiss)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg AddonDefaults
	if err := v.UnmarshalKey("addons", &cfg); err != nil {
		return nil, err
	}
	if err := validateAddonDefaults(cfg); err != nil {
		return nil, err
	}

	holder := &AddonDefaultsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AddonDefaults
		if err := v.UnmarshalKey("addons", &updated); err != nil {
			log.Printf("[addon-defaults] reload failed: %v", err)
			return
		}
		if err := validateAddonDefaults(updated); err != nil {
			log.Printf("[addon-defaults] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[addon-defaults] reloaded from %s", e.Name)
	})

	return holder, nil
}

// StaticAddonDefaults returns a holder pinned to cfg, with no file watching.
// Intended for tests and tooling.
func StaticAddonDefaults(cfg AddonDefaults) *AddonDefaultsHolder {
	holder := &AddonDefaultsHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *AddonDefaultsHolder) Get() AddonDefaults {
	return h.current.Load().(AddonDefaults)
}

func validateAddonDefaults(cfg AddonDefaults) error {
	if cfg.MinQuantity < 0 {
		return errors.New("addons.minQuantity cannot be negative")
	}
	if cfg.MaxQuantity < cfg.MinQuantity {
		return errors.New("addons.maxQuantity cannot be below addons.minQuantity")
	}
	if cfg.NotifyDismiss <= 0 {
		return errors.New("addons.notifyDismiss must be positive")
	}
	return nil
}
