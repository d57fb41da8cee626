package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"structured-persistent-logger/logger"
)

// DefaultLevelEnv is the environment variable holding the log threshold.
const DefaultLevelEnv = "LOG_LEVEL"

type Config struct {
	Server    ServerConfig
	Service   ServiceConfig
	Heartbeat HeartbeatConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port string
}

type ServiceConfig struct {
	Name string
}

type HeartbeatConfig struct {
	Schedule string
}

// LogConfig is the raw threshold setting. Present is false when the
// variable is not set at all, which disables logging.
type LogConfig struct {
	EnvName string
	Level   string
	Present bool
}

// LoadLogConfig reads the threshold from envName (DefaultLevelEnv if empty).
// An empty value counts as present.
func LoadLogConfig(envName string) LogConfig {
	if envName == "" {
		envName = DefaultLevelEnv
	}

	v := viper.New()
	v.AllowEmptyEnv(true)
	if err := v.BindEnv("level", envName); err != nil {
		log.Warn().Err(err).Str("env", envName).Msg("Failed to bind log level variable")
	}

	return LogConfig{
		EnvName: envName,
		Level:   v.GetString("level"),
		Present: v.IsSet("level"),
	}
}

// Logger converts the setting into the logger's own configuration.
func (c LogConfig) Logger() logger.Config {
	return logger.Config{Level: c.Level, Present: c.Present}
}

func NewConfig() (*Config, error) {
	// Configure Viper to read .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVICE_NAME", "structured-persistent-logger")
	viper.SetDefault("HEARTBEAT_SCHEDULE", "*/60 * * * * *") // Every 60 seconds
	viper.SetDefault("LOG_LEVEL_ENV", DefaultLevelEnv)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config
	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Service.Name = viper.GetString("SERVICE_NAME")
	config.Heartbeat.Schedule = viper.GetString("HEARTBEAT_SCHEDULE")
	config.Log = LoadLogConfig(viper.GetString("LOG_LEVEL_ENV"))

	log.Info().Interface("config", config).Msg("Config loaded")
	return &config, nil
}
