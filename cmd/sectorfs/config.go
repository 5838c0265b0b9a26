package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aligator/sectorfs/checkpoint"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const defaultImage = "disk.img"

var (
	errReadConfig  = errors.New("failed to read the config file")
	errParseConfig = errors.New("failed to parse the config file")
)

// Config is the tool configuration read from the config file.
type Config struct {
	// Image is used if --image is not given.
	Image string `yaml:"image"`
	// Geometry is the version used by format, "a" or "b".
	Geometry string `yaml:"geometry"`
	// Protected names are refused by format in addition to the built in ones.
	Protected []string `yaml:"protected"`
	// HistoryFile keeps the shell history.
	HistoryFile string `yaml:"history-file"`
}

func defaultConfigPath() string {
	return filepath.Join(os.Getenv("HOME"), ".sectorfs", "config.yml")
}

// readConfig loads the config file at path. A missing file is no error.
func readConfig(host afero.Fs, path string) (Config, error) {
	config := Config{}

	cfgBytes, err := afero.ReadFile(host, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return config, checkpoint.Wrap(err, errReadConfig)
	}

	if err := yaml.Unmarshal(cfgBytes, &config); err != nil {
		return config, checkpoint.Wrap(fmt.Errorf("%q: %w", path, err), errParseConfig)
	}

	return config, nil
}
