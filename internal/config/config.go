package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del cliente.
type Config struct {
	HTTPPort        string `env:"HTTP_PORT" envDefault:"8080"`
	IdentityBaseURL string `env:"IDENTITY_BASE_URL" envDefault:"https://identitytoolkit.googleapis.com/v1"`
	IdentityAPIKey  string `env:"IDENTITY_API_KEY,required"`
	DatabaseURL     string `env:"DATABASE_URL,required"`
	StorageURL      string `env:"STORAGE_URL,required"`
	SessionFile     string `env:"SESSION_FILE" envDefault:"session.json"`
	RedisAddr       string `env:"REDIS_ADDR"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
