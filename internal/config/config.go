// Package config decodes the §6 structured configuration surface with
// viper, supporting JSON/YAML/TOML config files layered with SNOWPACK_*
// environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Mount is a disk-dir -> URL-prefix enumeration root.
type Mount struct {
	Dir       string
	URLPrefix string
}

// InstallOptions mirrors the §6 installOptions.* fields.
type InstallOptions struct {
	Dest            string              `mapstructure:"dest"`
	Env             map[string]string   `mapstructure:"env"`
	ExternalPackage []string            `mapstructure:"externalPackage"`
	SourceMap       bool                `mapstructure:"sourceMap"`
	Treeshake       bool                `mapstructure:"treeshake"`
	InstallTypes    bool                `mapstructure:"installTypes"`
	NamedExports    map[string][]string `mapstructure:"namedExports"`
	Rollup          RollupOptions       `mapstructure:"rollup"`
	Mode            string              `mapstructure:"mode"`
	EnvFile         string              `mapstructure:"envFile"`
	EnvPrefix       string              `mapstructure:"envPrefix"`
	ExternalESM     []string            `mapstructure:"externalESM"`
}

// RollupOptions mirrors installOptions.rollup.*.
type RollupOptions struct {
	Dedupe  []string `mapstructure:"dedupe"`
	Plugins []string `mapstructure:"plugins"`
}

// raw is the viper-decodable shape; Mount is remapped from a plain
// map[string]string into []Mount after decode, since viper/mapstructure
// has no native ordered-map type and mount order affects enumeration
// result ordering only cosmetically (the aggregator sorts regardless).
type raw struct {
	Mount            map[string]string `mapstructure:"mount"`
	Exclude          []string          `mapstructure:"exclude"`
	Alias            map[string]string `mapstructure:"alias"`
	KnownEntrypoints []string          `mapstructure:"knownEntrypoints"`
	WebDependencies  map[string]string `mapstructure:"webDependencies"`
	InstallOptions   InstallOptions    `mapstructure:"installOptions"`
}

// Config is the fully decoded, ready-to-use configuration.
type Config struct {
	Mounts           []Mount
	Exclude          []string
	Alias            map[string]string
	KnownEntrypoints []string
	WebDependencies  map[string]string
	InstallOptions   InstallOptions
}

// Error is the §7 ConfigInvalid fatal error.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "invalid configuration: " + e.Reason }

// Load reads configuration from configPath (if non-empty) plus
// SNOWPACK_*-prefixed environment variables, applying viper's standard
// precedence (env beats config file beats defaults).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SNOWPACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("installOptions.sourceMap", false)
	v.SetDefault("installOptions.treeshake", true)
	v.SetDefault("installOptions.installTypes", false)
	v.SetDefault("installOptions.mode", "production")
	v.SetDefault("installOptions.envPrefix", "SNOWPACK_PUBLIC_")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, &Error{Reason: fmt.Sprintf("reading config file %s: %v", configPath, err)}
		}
	}

	var r raw
	if err := v.Unmarshal(&r); err != nil {
		return nil, &Error{Reason: fmt.Sprintf("decoding config: %v", err)}
	}

	mounts := make([]Mount, 0, len(r.Mount))
	for dir, prefix := range r.Mount {
		mounts = append(mounts, Mount{Dir: dir, URLPrefix: prefix})
	}

	cfg := &Config{
		Mounts:           mounts,
		Exclude:          r.Exclude,
		Alias:            r.Alias,
		KnownEntrypoints: r.KnownEntrypoints,
		WebDependencies:  r.WebDependencies,
		InstallOptions:   r.InstallOptions,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate enforces the §7 ConfigInvalid checks this layer owns: a
// missing destination directory is the one mandatory field the core
// cannot proceed without, since install.Run has nowhere to emit output.
func (c *Config) validate() error {
	if c.InstallOptions.Dest == "" {
		return &Error{Reason: "installOptions.dest is required"}
	}
	return nil
}
