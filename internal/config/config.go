// Package config resolves the driver's run-time configuration: worker
// pool size, optional graphviz/profile dump paths, and the target
// language version, the way cmd_local/asm/internal/flags centralizes a
// tool's flags into one package for main to read from — adapted here
// to viper so the same keys can come from flags, a config file, or the
// environment (spec.md §9's sole Open Question on configuration source
// leaves this to the driver's own judgment).
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"golang.org/x/mod/semver"
)

// Config is the fully-resolved configuration for one compiler run.
type Config struct {
	NumThreads  int    // worker pool size for depgraph/precheck scheduling
	Graphviz    bool   // dump graphs/ssa__<name>__post.gv per compiled function (internal/graphviz); no cfg__ file is written
	Profile     bool   // dump graphs/profile__<phase>.pb.gz (internal/metrics)
	LangVersion string // target language version, e.g. "v1.2.0"
	Watch       bool   // rerun on source-file changes (internal/watch)
}

const defaultLangVersion = "v1.0.0"

// Load reads configuration from v, applying the same defaults and
// validation regardless of whether v's values came from flags, a
// config file, or the environment.
func Load(v *viper.Viper) (*Config, error) {
	v.SetDefault("num_threads", 4)
	v.SetDefault("graphviz", false)
	v.SetDefault("profile", false)
	v.SetDefault("lang_version", defaultLangVersion)
	v.SetDefault("watch", false)

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	c := &Config{
		NumThreads:  v.GetInt("num_threads"),
		Graphviz:    v.GetBool("graphviz"),
		Profile:     v.GetBool("profile"),
		LangVersion: v.GetString("lang_version"),
		Watch:       v.GetBool("watch"),
	}

	if c.NumThreads < 1 {
		return nil, fmt.Errorf("config: num_threads must be >= 1, got %d", c.NumThreads)
	}
	if !semver.IsValid(c.LangVersion) {
		return nil, fmt.Errorf("config: lang_version %q is not a valid semver", c.LangVersion)
	}
	return c, nil
}

// New builds a viper.Viper that reads NESCC_-prefixed environment
// variables and looks for an optional nescc.yaml/.json/.toml in the
// working directory (read by Load; a missing file is not an error), the
// idiom other_examples' papapumpkin-quasar uses for its
// own worker configuration.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("nescc")
	v.AutomaticEnv()
	v.SetConfigName("nescc")
	v.AddConfigPath(".")
	return v
}
