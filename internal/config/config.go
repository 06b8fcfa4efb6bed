package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server Server `yaml:"server" json:"server"`
	Store  Store  `yaml:"store" json:"store"`
	Redis  Redis  `yaml:"redis" json:"redis"`
	Auth   Auth   `yaml:"auth" json:"auth"`
	Gamify Gamify `yaml:"gamify" json:"gamify"`
}

type Server struct {
	Port           string   `yaml:"port" json:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

type Store struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path" json:"path"`
}

type Redis struct {
	// Addr empty means no redis; leaderboards fall back to memory.
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
}

type Auth struct {
	// Secret signs session tokens. Required outside tests; set via
	// JWT_SECRET rather than the file.
	Secret        string `yaml:"secret" json:"-"`
	TokenTTLHours int    `yaml:"token_ttl_hours" json:"token_ttl_hours"`
}

type Gamify struct {
	RevokeXPOnCancel bool `yaml:"revoke_xp_on_cancel" json:"revoke_xp_on_cancel"`
	// BadgeCatalogPath and CurriculumPath override the built-in static
	// data when set.
	BadgeCatalogPath string `yaml:"badge_catalog_path" json:"badge_catalog_path"`
	CurriculumPath   string `yaml:"curriculum_path" json:"curriculum_path"`
}

func Default() *Config {
	return &Config{
		Server: Server{Port: "8080"},
		Store:  Store{Driver: "memory", Path: "data/savequest.db"},
		Auth:   Auth{TokenTTLHours: 7 * 24},
	}
}

// Load reads a YAML config file, falling back to defaults when the file is
// absent. Environment overrides apply afterwards via ApplyEnv.
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("config: sqlite driver needs store.path")
	}
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("config: auth.token_ttl_hours must be positive")
	}
	return nil
}
