package config

import (
	"net"
	"strconv"
)

// Config holds server configuration values.
type Config struct {
	Host           string `mapstructure:"host" yaml:"host"`
	Port           int    `mapstructure:"port" yaml:"port"`
	MaxConnections int    `mapstructure:"max_connections" yaml:"max_connections"`
	DatabasePath   string `mapstructure:"database_path" yaml:"database_path"`
	BannerPath     string `mapstructure:"banner_path" yaml:"banner_path"`
	LogLevel       string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           2323,
		MaxConnections: 5,
		DatabasePath:   "data/tcserver.db",
		BannerPath:     "data/banner.txt",
		LogLevel:       "info",
	}
}

// Addr renders the TCP listen address as host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
