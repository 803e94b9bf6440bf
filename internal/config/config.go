package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	ServerAddress string        `env:"SERVER_ADDRESS" envDefault:"0.0.0.0:8080"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	SeedDemoData  bool          `env:"SEED_DEMO_DATA" envDefault:"false"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
	MongoConfig
}

func NewConfig() (*Config, error) {
	config := &Config{}

	err := env.Parse(config)
	if err != nil {
		err = fmt.Errorf("config.NewConfig: %w", err)
	}
	return config, err
}

// MongoConfig selects the persistent store. An empty URI means the
// in-memory store is used instead.
type MongoConfig struct {
	MongoURI      string        `env:"MONGO_URI" envDefault:""`
	MongoDatabase string        `env:"MONGO_DATABASE" envDefault:"bikeshop"`
	MongoTimeout  time.Duration `env:"MONGO_TIMEOUT" envDefault:"10s"`
}
