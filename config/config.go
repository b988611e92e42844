package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/wfunc/quantumquest/tower"
)

// Tick is the wall-clock length of one tower game tick.
const Tick = time.Second

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Log      LogConfig      `mapstructure:"log"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string        `mapstructure:"http_address"`
	RPCAddress     string        `mapstructure:"rpc_address"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// RedisConfig with an empty Addr disables the leaderboard cache.
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	LeaderboardTTL time.Duration `mapstructure:"leaderboard_ttl"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// GameConfig holds the Superposition Tower tuning knobs. Durations are
// converted to whole game ticks (one tick per second) by the server.
type GameConfig struct {
	PadCount             int           `mapstructure:"pad_count"`
	StartingPosition     int           `mapstructure:"starting_position"`
	TimePerFloor         time.Duration `mapstructure:"time_per_floor"`
	DecoherenceSeconds   int           `mapstructure:"decoherence_seconds"`
	CollapseDelaySeconds int           `mapstructure:"collapse_delay_seconds"`
	MaxGenerateAttempts  int           `mapstructure:"max_generate_attempts"`
	LevelsFile           string        `mapstructure:"levels_file"`
}

// DefaultAllowedOrigins mirrors the origins the web client is served from.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://localhost:8888",
	"https://qplay.netlify.app",
	"https://quantum-escape.netlify.app",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.allowed_origins", DefaultAllowedOrigins)
	v.SetDefault("server.read_timeout", 15*time.Second)

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.dbname", "quantumquest")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("database.postgres.password", "")

	// Every key needs a default for AutomaticEnv to reach it through Unmarshal.
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.leaderboard_ttl", 30*time.Second)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "quantumquest.events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("game.pad_count", 5)
	v.SetDefault("game.starting_position", 2)
	v.SetDefault("game.time_per_floor", 180*time.Second)
	v.SetDefault("game.decoherence_seconds", 10)
	v.SetDefault("game.collapse_delay_seconds", 3)
	v.SetDefault("game.max_generate_attempts", 10)
	v.SetDefault("game.levels_file", "")
}

// LoadConfig reads config.yaml from path, layered over defaults and
// overridden by QQ_* environment variables. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("QQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TowerConfig converts the game section into tick counts and loads the floor
// pack when one is configured.
func (g GameConfig) TowerConfig() (tower.Config, error) {
	cfg := tower.DefaultConfig()
	cfg.PadCount = g.PadCount
	cfg.StartingPosition = g.StartingPosition
	cfg.TimePerFloorTicks = int(g.TimePerFloor / Tick)
	cfg.DecoherenceTicks = g.DecoherenceSeconds
	cfg.CollapseDelayTicks = g.CollapseDelaySeconds
	cfg.MaxGenerateAttempts = g.MaxGenerateAttempts
	if g.LevelsFile != "" {
		levels, err := tower.LoadLevels(g.LevelsFile)
		if err != nil {
			return tower.Config{}, err
		}
		cfg.Levels = levels
	}
	return cfg, cfg.Validate()
}
