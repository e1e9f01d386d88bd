package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/subx-cli/subx/internal/core"
)

// Set writes a single key to the TOML config file at path, creating the
// file and its parent directory if needed. Used by `subx config set`.
func Set(path, key, value string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return core.NewConfigError(key, err)
			}
		}
	}
	v.Set(key, value)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return core.NewConfigError(key, err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return core.NewConfigError(key, fmt.Errorf("writing config: %w", err))
	}
	return nil
}

// Get reads a single key from the TOML config file, falling back to the
// merged Snapshot's defaults when unset. Used by `subx config get`.
func Get(path, key string) (interface{}, error) {
	snap, err := Load(nil)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(snap.ConfigFilePath)
	v.SetConfigType("toml")
	_ = v.ReadInConfig()
	return v.Get(key), nil
}
