package main

import (
	"context"
	"fmt"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/clock"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/config"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/gateway"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/infra"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/ticket"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"go.uber.org/zap"
)

type Application struct {
	env             *infra.Env
	config          *config.Config
	deskConfigStore *config.DeskConfigStore

	hub      *gateway.Hub
	gateway  *gateway.Gateway
	platform platform.Platform
	clock    clock.Clock

	// Key value: deskId -> *ticket.Manager. Filled once by Start and
	// only read afterwards.
	desks *linkedhashmap.Map

	loggerFactory *infra.LoggerFactory
	logger        *zap.SugaredLogger
}

func ProvideApplication(
	env *infra.Env,
	config *config.Config,
	deskConfigStore *config.DeskConfigStore,
	hub *gateway.Hub,
	gateway *gateway.Gateway,
	platform platform.Platform,
	clock clock.Clock,
	loggerFactory *infra.LoggerFactory,
) *Application {
	return &Application{
		env:             env,
		config:          config,
		deskConfigStore: deskConfigStore,
		hub:             hub,
		gateway:         gateway,
		platform:        platform,
		clock:           clock,
		desks:           linkedhashmap.New(),
		loggerFactory:   loggerFactory,
		logger:          loggerFactory.Create("Application").Sugar(),
	}
}

// Start loads every desk's settings from redis and runs its manager,
// then starts consuming gateway events. A desk with missing or invalid
// settings fails the whole start.
func (a *Application) Start(ctx context.Context) error {
	for _, deskId := range a.env.DeskIds {
		settings, err := a.deskConfigStore.Load(ctx, a.env.GuildId, deskId)
		if err != nil {
			return fmt.Errorf("load desk[%v]: %w", deskId, err)
		}

		manager, err := ticket.NewManager(ticket.ManagerDeps{
			Platform:      a.platform,
			Events:        a.hub,
			Clock:         a.clock,
			Config:        a.config,
			LoggerFactory: a.loggerFactory,
		}, settings)
		if err != nil {
			return err
		}
		a.desks.Put(deskId, manager)
		go manager.Run(ctx)
		a.logger.Infof("desk[%v] started", deskId)
	}

	go a.hub.Run()
	go a.gateway.Run(ctx)
	return nil
}

func (a *Application) Desk(deskId string) (*ticket.Manager, bool) {
	value, ok := a.desks.Get(deskId)
	if !ok {
		return nil, false
	}
	return value.(*ticket.Manager), true
}

func (a *Application) DeskIds() []string {
	ids := make([]string, 0, a.desks.Size())
	for _, key := range a.desks.Keys() {
		ids = append(ids, key.(string))
	}
	return ids
}
