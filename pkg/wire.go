//go:build wireinject
// +build wireinject

package main

import (
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/clock"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/config"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/gateway"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/infra"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform/rest"

	"github.com/google/wire"
)

func Setup() (*Server, error) {
	wire.Build(wire.NewSet(
		infra.ProvideLoggerFactory,
		infra.ProvideEnv,
		infra.ProvideRedisClient,
		infra.ProvideHttpClient,
		config.ProvideConfig,
		config.ProvideDeskConfigStore,
		gateway.ProvideHub,
		gateway.ProvideGateway,
		rest.ProvidePlatform,
		clock.Real,
		wire.Bind(new(rest.VoiceTracker), new(*gateway.Hub)),
		wire.Bind(new(gateway.InteractionAcker), new(*rest.Platform)),
		wire.Bind(new(platform.Platform), new(*rest.Platform)),
		ProvideApplication,
		ProvideServer,
	))
	return nil, nil
}
