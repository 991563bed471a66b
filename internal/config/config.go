/**
 * @description
 * This package handles configuration management for the onboarding service.
 * It uses the Viper library to read configuration from environment variables
 * and an optional .env file, providing a centralized way to manage
 * application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the onboarding service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisPrefix          string `mapstructure:"REDIS_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	JWKSURL              string `mapstructure:"JWKS_URL"`
	KYCAPIBaseURL        string `mapstructure:"KYC_API_BASE_URL"`
	KYCAPIKey            string `mapstructure:"KYC_API_KEY"`
	BrokerAPIBaseURL     string `mapstructure:"BROKER_API_BASE_URL"`
	BrokerAPIKey         string `mapstructure:"BROKER_API_KEY"`
	KYCPollsPerMinute    int    `mapstructure:"KYC_POLLS_PER_MINUTE"`
	AllowedOrigins       string `mapstructure:"ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_PREFIX", "onboarding:rate_limit")
	viper.SetDefault("KYC_POLLS_PER_MINUTE", 12)
	viper.SetDefault("ALLOWED_ORIGINS", "*")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("KYC_API_BASE_URL")
	_ = viper.BindEnv("KYC_API_KEY")
	_ = viper.BindEnv("BROKER_API_BASE_URL")
	_ = viper.BindEnv("BROKER_API_KEY")
	_ = viper.BindEnv("KYC_POLLS_PER_MINUTE")
	_ = viper.BindEnv("ALLOWED_ORIGINS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
