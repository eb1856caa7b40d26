// Package config loads the server and client settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"
)

// ClientPrefix prefixes every client variable, e.g. MUX_SERVER_URL.
const ClientPrefix = "mux"

const logLevelRule = "oneof=DEBUG INFO WARN ERROR"

var validate = validator.New()

// Server holds the endpoint server settings.
type Server struct {
	DBPath           string        `env:"ENDPOINT_DB_PATH,default=data/endpoints.db" validate:"required"`
	Host             string        `env:"HOST,default=localhost"`
	Port             int           `env:"PORT,default=8080" validate:"gte=0,lte=65535"`
	LogLevel         string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	Endpoints        []string      `env:"ENDPOINTS"`
	ClientBufferSize int           `env:"CLIENT_BUFFER_SIZE,default=10" validate:"gt=0"`
	PollInterval     time.Duration `env:"ENDPOINT_POLL_INTERVAL,default=2s" validate:"gt=0"`
}

// Address returns host:port.
func (c Server) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EndpointList returns the configured endpoint addresses, trimmed and
// without blanks or duplicates.
func (c Server) EndpointList() []string {
	trimmed := lo.Map(c.Endpoints, func(e string, _ int) string { return strings.TrimSpace(e) })
	return lo.Uniq(lo.Compact(trimmed))
}

// LoadServer reads a .env file when present, then the process environment.
// Explicitly named files must exist.
func LoadServer(files ...string) (Server, error) {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		return Server{}, fmt.Errorf("failed to load env file: %w", err)
	}
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return Server{}, fmt.Errorf("config error: %w", err)
	}
	return ParseServer(es)
}

// ParseServer builds a Server from es.
func ParseServer(es env.EnvSet) (Server, error) {
	var c Server
	if err := env.Unmarshal(es, &c); err != nil {
		return Server{}, fmt.Errorf("config error: %w", err)
	}
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if err := validate.Struct(c); err != nil {
		return Server{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// NormalizeLogLevel upper-cases level and checks it is one of DEBUG, INFO,
// WARN or ERROR.
func NormalizeLogLevel(level string) (string, error) {
	level = strings.ToUpper(strings.TrimSpace(level))
	if err := validate.Var(level, logLevelRule); err != nil {
		return "", fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return level, nil
}

// Client holds the multiplexing client settings.
type Client struct {
	ServerURL string `envconfig:"SERVER_URL" default:"ws://localhost:8080/ws" validate:"required,url"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// LoadClient reads the MUX_ prefixed environment.
func LoadClient() (Client, error) {
	var c Client
	if err := envconfig.Process(ClientPrefix, &c); err != nil {
		return Client{}, fmt.Errorf("config error: %w", err)
	}
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if err := validate.Struct(c); err != nil {
		return Client{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}
