package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "SFS"
	appName      = "sfs"

	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"

	defaultImage    = "sfs.img"
	defaultSectors  = 8192
	defaultVolume   = "sfs"
	defaultLogLevel = "info"
)

type Config struct {
	Image    string `envconfig:"SFS_IMAGE"     yaml:"image"`
	Backend  string `envconfig:"SFS_BACKEND"   yaml:"backend"`
	Sectors  uint32 `envconfig:"SFS_SECTORS"   yaml:"sectors"`
	Volume   string `envconfig:"SFS_VOLUME"    yaml:"volume"`
	Bucket   string `envconfig:"SFS_BUCKET"    yaml:"bucket"`
	Prefix   string `envconfig:"SFS_PREFIX"    yaml:"prefix"`
	Region   string `envconfig:"SFS_REGION"    yaml:"region"`
	Endpoint string `envconfig:"SFS_ENDPOINT"  yaml:"endpoint"`
	Compress *bool  `envconfig:"SFS_COMPRESS"  yaml:"compress"`
	LogLevel string `envconfig:"SFS_LOG_LEVEL" yaml:"logLevel"`
}

// LoadConfig reads the optional YAML config file and overlays the
// environment on top of it.
func LoadConfig() (*Config, error) {
	configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE")
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.Getenv("HOME")
		}
		configFile = filepath.Join(home, ".config", appName+".yaml")
	}

	var c Config
	data, err := os.ReadFile(configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling config file: %w", err)
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	c.setDefaults()
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.Image == "" {
		c.Image = defaultImage
	}
	if c.Sectors == 0 {
		c.Sectors = defaultSectors
	}
	if c.Volume == "" {
		c.Volume = defaultVolume
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Compress == nil {
		compress := true
		c.Compress = &compress
	}
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf(
			"invalid configuration: backend / %s_BACKEND: `%s` is not one "+
				"of `file`, `memory` or `postgres`",
			envVarPrefix,
			c.Backend,
		)
	}

	if y, e := func() (string, string) {
		if c.Backend == BackendFile && c.Image == "" {
			return "image", "IMAGE"
		}
		if c.Backend == BackendPostgres && c.Volume == "" {
			return "volume", "VOLUME"
		}
		if c.Sectors == 0 {
			return "sectors", "SECTORS"
		}
		return "", ""
	}(); y != "" {
		return fmt.Errorf(
			"missing required configuration: %s / %s_%s",
			y,
			envVarPrefix,
			e,
		)
	}
	return nil
}

// ValidateSnapshots checks the fields that only snapshot commands need.
func (c *Config) ValidateSnapshots() error {
	if c.Bucket == "" {
		return fmt.Errorf(
			"missing required configuration: bucket / %s_BUCKET",
			envVarPrefix,
		)
	}
	return nil
}
