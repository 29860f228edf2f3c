package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Booking BookingConfig
}

type AppConfig struct {
	Port string
	Env  string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret       string
	AccessExpiry time.Duration
}

// BookingConfig tunes the scheduling core.
type BookingConfig struct {
	// AvgVisitMinutes is the assumed consultation duration used by the
	// queue estimator to turn people-ahead counts into wait minutes.
	AvgVisitMinutes int
	// HoldSweepSpec is the cron spec for the stale-hold janitor.
	HoldSweepSpec string
	// HoldStaleAfter is how long a slot may stay HELD before the janitor
	// treats it as orphaned by a crashed operation.
	HoldStaleAfter time.Duration
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("JWT_ACCESS_EXPIRY"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	avgVisit := viper.GetInt("BOOKING_AVG_VISIT_MINUTES")
	if avgVisit <= 0 {
		avgVisit = 15
	}

	holdSweepSpec := viper.GetString("BOOKING_HOLD_SWEEP_SPEC")
	if holdSweepSpec == "" {
		holdSweepSpec = "@every 5m"
	}

	holdStaleAfter, err := time.ParseDuration(viper.GetString("BOOKING_HOLD_STALE_AFTER"))
	if err != nil {
		holdStaleAfter = 10 * time.Minute
	}

	config := &Config{
		App: AppConfig{
			Port: viper.GetString("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		DB: DBConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Name:     viper.GetString("DB_NAME"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:       viper.GetString("JWT_SECRET"),
			AccessExpiry: accessExpiry,
		},
		Booking: BookingConfig{
			AvgVisitMinutes: avgVisit,
			HoldSweepSpec:   holdSweepSpec,
			HoldStaleAfter:  holdStaleAfter,
		},
	}

	return config, nil
}
