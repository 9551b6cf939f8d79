package storage

import (
	"time"
)

// Config defines fields used for parsing from environment variables
type Config struct {
	URL  string `env:"DATABASE_URL"`
	Name string `env:"DATABASE_NAME"`
}

// settings holds driver-independent connection parameters altered by Option
type settings struct {
	connectTimeout time.Duration
	maxConns       int32
}

func defaultSettings() settings {
	return settings{
		connectTimeout: 10 * time.Second,
		maxConns:       10,
	}
}

// Option alters the default connection settings used during new Store construction
type Option interface {
	apply(*settings)
}

type optionFunc func(s *settings)

func (f optionFunc) apply(s *settings) { f(s) }

// ConnectionTimeout sets timeout for connection to be established
func ConnectionTimeout(d time.Duration) Option {
	return optionFunc(func(s *settings) {
		s.connectTimeout = d
	})
}

// MaxConnections limits the size of the driver connection pool
func MaxConnections(n int32) Option {
	return optionFunc(func(s *settings) {
		s.maxConns = n
	})
}
