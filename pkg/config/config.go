package config

import (
	"flag"
	"time"
)

type Config struct {
	PromptTimeoutSeconds *int

	GatewayReconnectSeconds *int

	InitAvgWaitSeconds    *int
	AverageWaitWindowSize *int

	StatsLogSeconds *int
}

var CFG = &Config{
	PromptTimeoutSeconds:    flag.Int("prompt-timeout-seconds", 60, "How long a requester has to type the question after choosing a ticket type."),
	GatewayReconnectSeconds: flag.Int("gateway-reconnect-seconds", 5, "Wait this long before reconnecting to the platform gateway after the connection drops."),
	InitAvgWaitSeconds:      flag.Int("init-avg-wait-seconds", 300, "Initial default value of the time a ticket waits before a helper accepts it."),
	AverageWaitWindowSize:   flag.Int("average-wait-window-size", 50, "The size of sliding window for calculating average wait time of a ticket."),
	StatsLogSeconds:         flag.Int("stats-log-seconds", 60, "Log desk stats every this many seconds."),
}

func (c *Config) PromptTimeout() time.Duration {
	return time.Duration(*c.PromptTimeoutSeconds) * time.Second
}

func (c *Config) GatewayReconnectDelay() time.Duration {
	return time.Duration(*c.GatewayReconnectSeconds) * time.Second
}

func (c *Config) InitAvgWait() time.Duration {
	return time.Duration(*c.InitAvgWaitSeconds) * time.Second
}

func (c *Config) StatsLogInterval() time.Duration {
	return time.Duration(*c.StatsLogSeconds) * time.Second
}

func ProvideConfig() *Config {
	return CFG
}
