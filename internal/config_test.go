package internal

import (
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	req.NoError(err)
	req.NoError(config.Validate())
	req.Equal(50, config.HistoryLimit)
	req.Equal(5*time.Second, config.CommandTimeout)
	req.True(config.EchoToSender)
	req.False(config.CloseStaleTransport)
	req.Equal([]string{"*"}, config.Origins())
	req.Equal("localhost:8080", config.Address())
}

func TestConfig_Missing_Secret(t *testing.T) {
	t.Setenv("BADGER_FILEPATH", t.TempDir())

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	base := Config{JWTSecret: "0123456789abcdef", CommandTimeout: time.Second, ConnectionBufferSize: 1, MetricInterval: time.Second}
	require.NoError(t, base.Validate())

	short := base
	short.JWTSecret = "short"
	require.Error(t, short.Validate())

	noTimeout := base
	noTimeout.CommandTimeout = 0
	require.Error(t, noTimeout.Validate())
}

func TestConfig_Origins(t *testing.T) {
	config := Config{AllowedOrigins: " https://a.example , ,https://b.example"}
	require.Equal(t, []string{"https://a.example", "https://b.example"}, config.Origins())
}
