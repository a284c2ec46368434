// Package config loads and saves the debugger's configuration file.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".debugger"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through
// the config file.
type Config struct {
	// Command aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// DisasmWindow is the number of instructions echoed after each stop.
	DisasmWindow int `yaml:"disasm-window"`

	// StopLineColor is the ANSI color (3/4 bit codes) used for stop
	// reason lines.
	StopLineColor int `yaml:"stop-line-color"`
}

// LoadConfig attempts to populate a Config object from the config.yml
// file. Any failure is reported and an empty configuration returned; a
// broken config file never blocks a debugging session.
func LoadConfig() *Config {
	if err := createConfigPath(); err != nil {
		fmt.Printf("Could not create config directory: %v.\n", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.\n", err)
		return &Config{}
	}

	data, err := os.ReadFile(fullConfigFile)
	if err != nil {
		if werr := writeDefaultConfig(fullConfigFile); werr != nil {
			fmt.Printf("Error creating default config file: %v.\n", werr)
		}
		return &Config{}
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		fmt.Printf("Unable to decode config file: %v.\n", err)
		return &Config{}
	}
	return &c
}

// SaveConfig marshals and saves the config struct.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}
	return os.WriteFile(fullConfigFile, out, 0644)
}

// GetConfigFilePath gets full path to the given config file.
func GetConfigFilePath(file string) (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	return path.Join(usr.HomeDir, configDir, file), nil
}

func createConfigPath() error {
	usr, err := user.Current()
	if err != nil {
		return err
	}
	return os.MkdirAll(path.Join(usr.HomeDir, configDir), 0700)
}

func writeDefaultConfig(path string) error {
	return os.WriteFile(path, []byte(`# Configuration file for the debugger.

# This is the default configuration file. Available options are provided,
# but disabled. Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given
# command.
# aliases:
#   command: ["alias1", "alias2"]

# Number of instructions printed after each stop.
# disasm-window: 5
`), 0644)
}
