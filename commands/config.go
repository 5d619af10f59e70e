package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the defaults for options not supplied on the command line.
type Config struct {
	Workdir     string  `yaml:"workdir"`
	Credentials string  `yaml:"credentials"`
	URL         string  `yaml:"url"`
	Worksheet   string  `yaml:"worksheet"`
	RateLimit   float64 `yaml:"rate-limit"`
	RateBurst   int     `yaml:"rate-burst"`
	Retries     int     `yaml:"retries"`
	LogLevel    string  `yaml:"log-level"`
}

func DefaultConfig() *Config {
	return &Config{
		Workdir:     DEFAULT_WORKDIR,
		Credentials: DEFAULT_CREDENTIALS,
		RateLimit:   1,
		RateBurst:   5,
		Retries:     3,
		LogLevel:    "info",
	}
}

// LoadConfig reads a YAML configuration file over the defaults. A missing
// file is not an error if the path is the default configuration file.
func LoadConfig(path string) (*Config, error) {
	conf := DefaultConfig()

	file := strings.TrimSpace(path)
	if file == "" {
		file = DEFAULT_CONFIG
	}

	bytes, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && strings.TrimSpace(path) == "" {
			return conf, nil
		}

		return nil, fmt.Errorf("could not load configuration (%w)", err)
	}

	if err := yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("invalid configuration file %s (%w)", file, err)
	}

	if conf.RateLimit < 0 {
		return nil, fmt.Errorf("invalid rate-limit %v", conf.RateLimit)
	}

	if conf.Retries < 0 {
		return nil, fmt.Errorf("invalid retries %v", conf.Retries)
	}

	return conf, nil
}
