package config

import (
	"os"
	"sync"
	"time"
)

type DBConfig struct {
	Driver          string // postgres | sqlite | memory
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

var (
	dbConfig *DBConfig
	dbOnce   sync.Once
)

func LoadDBConfig() *DBConfig {
	dbOnce.Do(func() {
		dbConfig = readDBConfig()
	})
	return dbConfig
}

func readDBConfig() *DBConfig {
	return &DBConfig{
		Driver:          getEnv("DB_DRIVER", "postgres"),
		Host:            os.Getenv("DB_HOST"),
		Port:            os.Getenv("DB_PORT"),
		User:            os.Getenv("DB_USER"),
		Password:        os.Getenv("DB_PASSWORD"),
		Name:            os.Getenv("DB_NAME"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		TimeZone:        getEnv("DB_TIMEZONE", "UTC"),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}
