package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	ServerAddr        string        `env:"HUDDLE_SERVER_ADDR"`
	RequestTimeout    time.Duration `env:"HUDDLE_REQUEST_TIMEOUT,default=10s"`
	DisconnectTimeout time.Duration `env:"HUDDLE_DISCONNECT_TIMEOUT,default=5s"`
	DisconnectPoll    time.Duration `env:"HUDDLE_DISCONNECT_POLL,default=100ms"`
	DispatchWorkers   int           `env:"HUDDLE_DISPATCH_WORKERS,default=8"`
	MaxFrameSize      int           `env:"HUDDLE_MAX_FRAME_SIZE,default=1048576"`
	LogLevel          string        `env:"HUDDLE_LOG_LEVEL,default=info"`
	DebugHTTP         bool          `env:"HUDDLE_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigFrom reads the configuration from lookup instead of the process
// environment.
func LoadConfigFrom(ctx context.Context, lookup map[string]string) (*Config, error) {
	config := Config{}

	if err := envconfig.ProcessWith(ctx, &config, envconfig.MapLookuper(lookup)); err != nil {
		return nil, err
	}

	return &config, nil
}
