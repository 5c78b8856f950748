package models

import (
	"os"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
	"gopkg.in/yaml.v3"
)

const ConfigFile = "config.yaml"

type Config struct {
	// decode limits
	MaxProgramHeaders int   `yaml:"max_program_headers"`
	MaxSections       int   `yaml:"max_sections"`
	MaxNodeDepth      int   `yaml:"max_node_depth"`
	MaxInflatedSize   int64 `yaml:"max_inflated_size"`

	// output
	Color    bool     `yaml:"color"`
	Demangle bool     `yaml:"demangle"`
	Hash     bool     `yaml:"hash"`
	Sort     bool     `yaml:"sort"`
	Verbose  bool     `yaml:"verbose"`
	Only     []string `yaml:"only"`

	Logger log.Logger `yaml:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		// PN_XNUM (0xffff) means the count lives elsewhere
		MaxProgramHeaders: 0xfffe,
		// indexes from SHN_LORESERVE up are reserved
		MaxSections:     0xff00,
		MaxNodeDepth:    64,
		MaxInflatedSize: 256 << 20,
	}
}

// WithDefaults returns a copy of c with every zero limit replaced by its
// default. A nil config yields DefaultConfig().
func (c *Config) WithDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	ret := *c
	if ret.MaxProgramHeaders == 0 {
		ret.MaxProgramHeaders = def.MaxProgramHeaders
	}
	if ret.MaxSections == 0 {
		ret.MaxSections = def.MaxSections
	}
	if ret.MaxNodeDepth == 0 {
		ret.MaxNodeDepth = def.MaxNodeDepth
	}
	if ret.MaxInflatedSize == 0 {
		ret.MaxInflatedSize = def.MaxInflatedSize
	}
	return &ret
}

// Log never returns nil.
func (c *Config) Log() log.Logger {
	if c == nil || c.Logger == nil {
		return log.NewNopLogger()
	}
	return c.Logger
}

// LoadConfigFile overlays the YAML file at path onto the defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config failed")
	}
	return parseConfig(data)
}

// LoadConfig looks for config.yaml in the per-user and system config
// folders, falling back to the defaults when none exists.
func LoadConfig() (*Config, error) {
	dirs := configdir.New("lunixbochs", "highelf")
	folder := dirs.QueryFolderContainsFile(ConfigFile)
	if folder == nil {
		return DefaultConfig(), nil
	}
	data, err := folder.ReadFile(ConfigFile)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s from %s failed", ConfigFile, folder.Path)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "yaml.Unmarshal() failed")
	}
	if c.MaxProgramHeaders < 0 || c.MaxSections < 0 || c.MaxNodeDepth < 1 || c.MaxInflatedSize < 0 {
		return nil, errors.New("config limits must be positive")
	}
	return c, nil
}
