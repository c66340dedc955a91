package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	JWTSecret      string `env:"JWT_SECRET,required=true"`

	HistoryLimit         int           `env:"HISTORY_LIMIT,default=50"`
	CommandTimeout       time.Duration `env:"COMMAND_TIMEOUT,default=5s"`
	RoomBufferSize       int           `env:"ROOM_BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	MaxFrameSize         int64         `env:"MAX_FRAME_SIZE,default=16384"`
	EchoToSender         bool          `env:"ECHO_TO_SENDER,default=true"`
	CloseStaleTransport  bool          `env:"CLOSE_STALE_TRANSPORT,default=false"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=15s"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongTimeout          time.Duration `env:"PONG_TIMEOUT,default=60s"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=*"`

	BreakerMaxRequests      uint32        `env:"BREAKER_MAX_REQUESTS,default=5"`
	BreakerInterval         time.Duration `env:"BREAKER_INTERVAL,default=30s"`
	BreakerTimeout          time.Duration `env:"BREAKER_TIMEOUT,default=10s"`
	BreakerFailureThreshold float64       `env:"BREAKER_FAILURE_THRESHOLD,default=0.8"`
	BreakerMinRequests      uint32        `env:"BREAKER_MIN_REQUESTS,default=5"`
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate rejects values that would make the server misbehave silently.
func (c Config) Validate() error {
	switch {
	case len(c.JWTSecret) < 16:
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	case c.HistoryLimit < 0:
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	case c.CommandTimeout <= 0:
		return fmt.Errorf("COMMAND_TIMEOUT must be positive, got %s", c.CommandTimeout)
	case c.ConnectionBufferSize <= 0:
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	case c.RoomBufferSize < 0:
		return fmt.Errorf("ROOM_BUFFER_SIZE must not be negative, got %d", c.RoomBufferSize)
	case c.MetricInterval <= 0:
		return fmt.Errorf("METRIC_INTERVAL must be positive, got %s", c.MetricInterval)
	}
	return nil
}
