package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type MQConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type WebhookConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// EngineConfig holds engine-level fallbacks and limits.
type EngineConfig struct {
	// System-default timer durations (ISO-8601), used when neither the
	// transition nor the plan defaults provide one.
	NoOpenAfter  string `yaml:"no_open_after"`
	NoClickAfter string `yaml:"no_click_after"`
	NoReplyAfter string `yaml:"no_reply_after"`
	// Max redeliveries of a job before it is parked in the DLQ.
	MaxJobRetries int64 `yaml:"max_job_retries"`
	// Transport endpoint for the outbound email provider.
	TransportURL     string `yaml:"transport_url"`
	TransportAPIKey  string `yaml:"transport_api_key"`
	TransportTimeout int    `yaml:"transport_timeout_seconds"`
}

type Config struct {
	DB      DBConfig      `yaml:"db"`
	MQ      MQConfig      `yaml:"mq"`
	Redis   RedisConfig   `yaml:"redis"`
	Server  ServerConfig  `yaml:"server"`
	Webhook WebhookConfig `yaml:"webhook"`
	Engine  EngineConfig  `yaml:"engine"`
}

func Load() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		log.Fatalf("failed to decode %s: %v", path, err)
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg
}

func overrideFromEnv(cfg *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DB.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DB.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}

	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.MQ.URL = url
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	if secret := os.Getenv("WEBHOOK_JWT_SECRET"); secret != "" {
		cfg.Webhook.JWTSecret = secret
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}

	if url := os.Getenv("TRANSPORT_URL"); url != "" {
		cfg.Engine.TransportURL = url
	}
	if key := os.Getenv("TRANSPORT_API_KEY"); key != "" {
		cfg.Engine.TransportAPIKey = key
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Engine.NoOpenAfter == "" {
		cfg.Engine.NoOpenAfter = "P2D"
	}
	if cfg.Engine.NoClickAfter == "" {
		cfg.Engine.NoClickAfter = "P3D"
	}
	if cfg.Engine.NoReplyAfter == "" {
		cfg.Engine.NoReplyAfter = "P4D"
	}
	if cfg.Engine.MaxJobRetries == 0 {
		cfg.Engine.MaxJobRetries = 5
	}
	if cfg.Engine.TransportTimeout == 0 {
		cfg.Engine.TransportTimeout = 15
	}
}
