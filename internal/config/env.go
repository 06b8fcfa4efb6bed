package config

import (
	"os"
	"strconv"
)

// ApplyEnv overlays environment variables on a loaded config. Variables
// beat file values so deployments can keep one file and vary per instance.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getEnvInt("REDIS_DB"); v > 0 {
		c.Redis.DB = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := getEnvInt("TOKEN_TTL_HOURS"); v > 0 {
		c.Auth.TokenTTLHours = v
	}
	if v := getEnvBool("REVOKE_XP_ON_CANCEL"); v != nil {
		c.Gamify.RevokeXPOnCancel = *v
	}
	if v := os.Getenv("BADGE_CATALOG_PATH"); v != "" {
		c.Gamify.BadgeCatalogPath = v
	}
	if v := os.Getenv("CURRICULUM_PATH"); v != "" {
		c.Gamify.CurriculumPath = v
	}
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return n
}

func getEnvBool(key string) *bool {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil
	}
	return &b
}
