package infra

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env is the process environment. A .env file, when present, is loaded
// into the environment by main before ProvideEnv runs.
type Env struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	// Either "console" or "json".
	LogEncoding string `env:"LOG_ENCODING" envDefault:"console"`

	RedisHost string `env:"REDIS_HOST" envDefault:"localhost:6379"`
	RedisDb   int    `env:"REDIS_DB" envDefault:"0"`

	PlatformApiUrl     string `env:"PLATFORM_API_URL,required"`
	PlatformGatewayUrl string `env:"PLATFORM_GATEWAY_URL,required"`
	PlatformToken      string `env:"PLATFORM_TOKEN,required"`

	// The community this process serves and the help desks configured
	// for it in redis.
	GuildId string   `env:"GUILD_ID,required"`
	DeskIds []string `env:"DESK_IDS" envSeparator:"," envDefault:"main"`
}

func ProvideEnv() (*Env, error) {
	e := &Env{}
	if err := env.Parse(e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
