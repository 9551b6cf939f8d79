package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"chat-api/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var corsMethods = []string{
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
}

type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// config defines fields used for configuring Server instance
type config struct {
	httpServer     *http.Server
	handlers       map[string]http.Handler
	storeConfig    storage.Config
	registry       *prometheus.Registry
	handlerTimeout time.Duration
	timeoutMsg     string
	afterShutdown  []func()
}

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            uint16        `env:"PORT" envDefault:"8000"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	HandlerTimeout  time.Duration `env:"HANDLER_TIMEOUT" envDefault:"8s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Addr returns host:port the server listens on
func (cfg EnvConfig) Addr() string {
	return cfg.Host + ":" + strconv.FormatUint(uint64(cfg.Port), 10)
}

// WithEnvConfig enables processing exported EnvConfig struct to acts as a source of config parameters for http.Server
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		c.httpServer.Addr = cfg.Addr()
		c.httpServer.ReadTimeout = cfg.ReadTimeout
		c.httpServer.WriteTimeout = cfg.WriteTimeout
		c.handlerTimeout = cfg.HandlerTimeout
	})
}

// ReadTimeout sets read timeout for http.Server
func ReadTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.httpServer.ReadTimeout = d
	})
}

// WithStoreConfig provides database settings reported by the diagnostic endpoint
func WithStoreConfig(cfg storage.Config) Option {
	return optionFunc(func(c *config) {
		c.storeConfig = cfg
	})
}

// WithRegistry sets prometheus registry for request metrics, a new one is used by default
func WithRegistry(r *prometheus.Registry) Option {
	return optionFunc(func(c *config) {
		c.registry = r
	})
}

// RegisterAfterShutdown registers a function to call after http.Server shutdown
// f will not be called in separated goroutine
func RegisterAfterShutdown(f func()) Option {
	return optionFunc(func(c *config) {
		c.afterShutdown = append(c.afterShutdown, f)
	})
}

// TimeoutHandler wraps each handler in http.TimeoutHandler with provided duration and message
func TimeoutHandler(d time.Duration, msg string) Option {
	return optionFunc(func(c *config) {
		c.handlerTimeout = d
		c.timeoutMsg = msg
	})
}

// registerHandlers iterates over a handlers map and registers each handler for newly initialized http.ServeMux
// that http.ServeMux is used as a http.Handler for http.Server in config struct
func registerHandlers() Option {
	return optionFunc(func(c *config) {
		mux := http.NewServeMux()
		for pattern, h := range c.handlers {
			mux.Handle(pattern, h)
		}
		c.httpServer.Handler = mux
	})
}

// applyEnforceJSON wraps each POST handler in handlers map with enforceJSON middleware
func applyEnforceJSON() Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			if strings.HasPrefix(pattern, http.MethodPost+" ") {
				c.handlers[pattern] = enforceJSON(h)
			}
		}
	})
}

// applyRequireStore wraps each API handler in handlers map with requireStore middleware
func applyRequireStore(store storage.Store) Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			if strings.Contains(pattern, " /api/") {
				c.handlers[pattern] = requireStore(h, store)
			}
		}
	})
}

// applyTimeout wraps each handler in handlers map with timeout middleware when timeout is set
func applyTimeout() Option {
	return optionFunc(func(c *config) {
		if c.handlerTimeout <= 0 {
			return
		}
		for pattern, h := range c.handlers {
			c.handlers[pattern] = timeout(h, c.handlerTimeout, c.timeoutMsg)
		}
	})
}

// applyMetrics wraps each http.Handler in handlers map with prometheus instrumentation labeled by pattern
func applyMetrics(m *metrics) Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = m.instrument(pattern, h)
		}
	})
}

// applyLog wraps each http.Handler in handlers map with log middleware
func applyLog(logger *zap.Logger) Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = log(h, logger)
		}
	})
}

// applyCORS wraps the whole router so that preflight requests never reach it.
// Every origin is allowed and echoed back since "*" is not accepted together with credentials.
func applyCORS() Option {
	return optionFunc(func(c *config) {
		c.httpServer.Handler = cors.New(cors.Options{
			AllowOriginFunc:      func(string) bool { return true },
			AllowedMethods:       corsMethods,
			AllowedHeaders:       []string{"*"},
			AllowCredentials:     true,
			MaxAge:               600,
			OptionsSuccessStatus: http.StatusOK,
		}).Handler(c.httpServer.Handler)
	})
}

// applyTracing wraps the whole router with otelhttp using the global tracer provider
func applyTracing(operation string) Option {
	return optionFunc(func(c *config) {
		c.httpServer.Handler = otelhttp.NewHandler(c.httpServer.Handler, operation)
	})
}
