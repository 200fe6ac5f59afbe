// Package config loads provider credentials and client tunables from the
// environment via caarlos0/env. The core orchestrator packages never read
// the environment directly -- only the example CLI and tests construct a
// Config and pass its resolved values into constructors.
package config

import (
	"os"

	"github.com/caarlos0/env/v11"
)

type ProviderConfig struct {
	APIKey       string            `env:"LUCERNA_PROVIDER_APIKEY"`
	BaseURL      string            `env:"LUCERNA_PROVIDER_BASEURL" envDefault:"https://api.openai.com/v1"`
	DefaultModel string            `env:"LUCERNA_PROVIDER_DEFAULTMODEL" envDefault:"gpt-4o-mini"`
	Proxy        string            `env:"LUCERNA_PROVIDER_PROXY"`
	ExtraHeaders map[string]string `env:"LUCERNA_PROVIDER_EXTRAHEADERS" envSeparator:"," envKeyValSeparator:":"`
}

type CacheConfig struct {
	Size int `env:"LUCERNA_CACHE_SIZE" envDefault:"64"`
}

type OrchestratorConfig struct {
	MaxToolRounds         int `env:"LUCERNA_ORCHESTRATOR_MAXTOOLROUNDS" envDefault:"5"`
	DefaultWindow         int `env:"LUCERNA_ORCHESTRATOR_DEFAULTWINDOW" envDefault:"-1"`
	MaxStructuredRetries  int `env:"LUCERNA_ORCHESTRATOR_MAXSTRUCTUREDRETRIES" envDefault:"3"`
}

type Config struct {
	Provider     ProviderConfig     `envPrefix:""`
	Cache        CacheConfig        `envPrefix:""`
	Orchestrator OrchestratorConfig `envPrefix:""`
	StorePath    string             `env:"LUCERNA_STORE_PATH"`
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
