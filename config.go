package phoo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the interpreter options, e.g.:
//
//	max_depth: 500
//	strict: false
//	namepath_separator: "."
//	module_paths: [lib, vendor/lib]
//	source_ext: .ph
//	ambient:
//	  answer: 42
//	  greeting: hello
type Config struct {
	MaxDepth          *int              `yaml:"max_depth"`
	Strict            *bool             `yaml:"strict"`
	NamepathSeparator *string           `yaml:"namepath_separator"`
	ModulePaths       []string          `yaml:"module_paths"`
	SourceExt         string            `yaml:"source_ext"`
	Ambient           map[string]string `yaml:"ambient"`
}

// LoadConfig decodes a config; unknown fields are errors.
func LoadConfig(r io.Reader) (*Config, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigFile decodes the config at filename.
func LoadConfigFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	cfg, err := LoadConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.MaxDepth != nil && *cfg.MaxDepth < 0 {
		return fmt.Errorf("config: max_depth must not be negative, got %v", *cfg.MaxDepth)
	}
	if cfg.NamepathSeparator != nil {
		sep := *cfg.NamepathSeparator
		if sep == "" {
			return errors.New("config: namepath_separator must not be empty")
		}
		if strings.ContainsAny(sep, tokenSpace) {
			return fmt.Errorf("config: namepath_separator must not contain whitespace, got %q", sep)
		}
	}
	return nil
}

// Options converts the config into interpreter options. Module paths become
// SourceLoaders over the host file system, in order. Ambient values are
// given as text.
func (cfg *Config) Options() Options {
	var opts Options
	if cfg.MaxDepth != nil {
		opts = append(opts, WithMaxDepth(*cfg.MaxDepth))
	}
	if cfg.Strict != nil {
		opts = append(opts, WithStrictMode(*cfg.Strict))
	}
	if cfg.NamepathSeparator != nil {
		opts = append(opts, WithNamepathSeparator(*cfg.NamepathSeparator))
	}
	if len(cfg.ModulePaths) > 0 {
		loaders := make([]Loader, len(cfg.ModulePaths))
		for i, dir := range cfg.ModulePaths {
			loaders[i] = SourceLoader{FS: os.DirFS(dir), Ext: cfg.SourceExt}
		}
		opts = append(opts, WithLoaders(loaders...))
	}
	if len(cfg.Ambient) > 0 {
		values := make(map[string]Value, len(cfg.Ambient))
		for name, s := range cfg.Ambient {
			values[name] = Text(s)
		}
		opts = append(opts, WithAmbient(values))
	}
	return opts
}

// WithConfig applies a decoded config.
func WithConfig(cfg *Config) Option {
	if cfg == nil {
		return Options{}
	}
	return cfg.Options()
}
