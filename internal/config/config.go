package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/genialityco/gen-live-web-sub001/internal/store"
	pkgconfig "github.com/genialityco/gen-live-web-sub001/pkg/config"
	"github.com/genialityco/gen-live-web-sub001/pkg/database"
	"github.com/genialityco/gen-live-web-sub001/pkg/log"
	"github.com/genialityco/gen-live-web-sub001/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Redis     store.RedisConfig
	PubSub    pubsub.Config
	Database  DatabaseConfig
	Egress    EgressConfig
	Media     MediaConfig
	Token     TokenConfig
	Log       log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type DatabaseConfig struct {
	Enabled         bool
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string `mapstructure:"db_name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type EgressConfig struct {
	ProviderURL  string        `mapstructure:"provider_url"`
	ViewBaseURL  string        `mapstructure:"view_base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type MediaConfig struct {
	TracksURL string        `mapstructure:"tracks_url"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type TokenConfig struct {
	Issuer   string
	Duration time.Duration
}

// ToDatabaseConfig converts to the shared database package config.
func (c DatabaseConfig) ToDatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          c.Driver,
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		DBName:          c.DBName,
		SSLMode:         c.SSLMode,
		FilePath:        c.FilePath,
		MaxIdleConns:    c.MaxIdleConns,
		MaxOpenConns:    c.MaxOpenConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "stage-service")
	v.SetDefault("pubsub.kafka.partitions", 8)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "./stage.db")
	v.SetDefault("egress.provider_url", "http://localhost:7880")
	v.SetDefault("egress.view_base_url", "http://localhost:3000")
	v.SetDefault("egress.poll_interval", "2s")
	v.SetDefault("media.tracks_url", "http://localhost:7880")
	v.SetDefault("media.cache_ttl", "1s")
	v.SetDefault("token.issuer", "stage-service")
	v.SetDefault("token.duration", "4h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "stage-service")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("database.enabled", "DATABASE_ENABLED")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("egress.provider_url", "EGRESS_PROVIDER_URL")
	v.BindEnv("egress.view_base_url", "EGRESS_VIEW_BASE_URL")
	v.BindEnv("media.tracks_url", "MEDIA_TRACKS_URL")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Egress.PollInterval = parseDuration(v, "egress.poll_interval", 2*time.Second)
	cfg.Media.CacheTTL = parseDuration(v, "media.cache_ttl", time.Second)
	cfg.Token.Duration = parseDuration(v, "token.duration", 4*time.Hour)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
