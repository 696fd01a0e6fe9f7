// Package config loads jeebie's optional on-disk settings file, merged
// under whatever the CLI flags specify.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/valerio/go-jeebie/jeebie/input/action"
)

// defaultTurboSpeed is the frame-rate multiplier applied when fast-forward
// is held and no jeebie.toml overrides it.
const defaultTurboSpeed = 2.0

// Config is the on-disk settings format for jeebie.toml.
type Config struct {
	DefaultROMDir string            `toml:"default_rom_dir"`
	TurboSpeed    float64           `toml:"turbo_speed"`
	KeyBindings   map[string]string `toml:"key_bindings"`
}

// Default returns the built-in settings used when no jeebie.toml is found.
func Default() Config {
	return Config{TurboSpeed: defaultTurboSpeed}
}

// Load reads and parses a jeebie.toml file at path.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.TurboSpeed <= 0 {
		cfg.TurboSpeed = defaultTurboSpeed
	}
	return cfg, nil
}

// LoadOrDefault loads path if present, falling back to Default when the
// file simply doesn't exist. Any other read or parse error is returned.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// actionByName maps the key-binding names recognized in jeebie.toml to the
// Game Boy actions they drive. Only hardware inputs are remappable; debug
// and emulator controls stay on their built-in keys.
var actionByName = map[string]action.Action{
	"a":      action.GBButtonA,
	"b":      action.GBButtonB,
	"start":  action.GBButtonStart,
	"select": action.GBButtonSelect,
	"up":     action.GBDPadUp,
	"down":   action.GBDPadDown,
	"left":   action.GBDPadLeft,
	"right":  action.GBDPadRight,
}

// KeyMap builds a key-name -> Action map from the configured bindings,
// meant to be merged over input.DefaultKeyMap. Unrecognized action names
// are skipped rather than treated as fatal, so a typo in jeebie.toml
// doesn't stop the emulator from starting.
func (c Config) KeyMap() map[string]action.Action {
	out := make(map[string]action.Action, len(c.KeyBindings))
	for key, name := range c.KeyBindings {
		if act, ok := actionByName[name]; ok {
			out[key] = act
		}
	}
	return out
}
