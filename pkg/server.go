package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/infra"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/ticket"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const deskContextKey = "desk"

type Server struct {
	application   *Application
	echo          *echo.Echo
	server        *http.Server
	loggerFactory *infra.LoggerFactory
	logger        *zap.SugaredLogger
}

type consoleRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ticketTypeRequest struct {
	RoleId string `json:"roleId"`
	Label  string `json:"label"`
	Emoji  string `json:"emoji"`
}

type newTicketRequest struct {
	Requesters []string `json:"requesters"`
	Question   string   `json:"question"`
	RoleId     string   `json:"roleId"`
}

type intakeRequest struct {
	RequesterId string `json:"requesterId"`
	RoleId      string `json:"roleId"`
}

// Exactly one of the fields selects the removal mode.
type removalRequest struct {
	Ids           []int `json:"ids"`
	ExceptIds     []int `json:"exceptIds"`
	MinAgeMinutes *int  `json:"minAgeMinutes"`
}

type exclusionRequest struct {
	Excluded bool `json:"excluded"`
}

func ProvideServer(application *Application, env *infra.Env, loggerFactory *infra.LoggerFactory) *Server {
	s := &Server{
		application:   application,
		echo:          echo.New(),
		loggerFactory: loggerFactory,
		logger:        loggerFactory.Create("Server").Sugar(),
	}

	e := s.echo
	e.HideBanner = true
	e.Logger.SetLevel(log.WARN)
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogRequestID: true,
		LogStatus:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Infof("%v %v id[%v] status[%v] latency[%vms]", v.Method, v.URI, v.RequestID, v.Status, v.Latency.Milliseconds())
			return nil
		},
	}))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{"desks": application.DeskIds()})
	})

	e.PUT("/debug", func(c echo.Context) error {
		infra.LoggerLevel.SetLevel(zapcore.DebugLevel)
		s.logger.Info("debug logging enabled")
		return c.NoContent(http.StatusOK)
	})

	e.DELETE("/debug", func(c echo.Context) error {
		infra.LoggerLevel.SetLevel(zapcore.InfoLevel)
		s.logger.Info("debug logging disabled")
		return c.NoContent(http.StatusOK)
	})

	desk := e.Group("/desks/:desk", s.withDesk)
	desk.POST("/console", s.sendConsole)
	desk.GET("/ticket-types", s.listTicketTypes)
	desk.POST("/ticket-types", s.addTicketType)
	desk.POST("/intake", s.startIntake)
	desk.GET("/stats", s.stats)
	desk.GET("/tickets", s.listTickets)
	desk.POST("/tickets", s.newTicket)
	desk.GET("/tickets/:id", s.getTicket)
	desk.DELETE("/tickets/:id", s.removeTicket)
	desk.POST("/tickets/removal", s.removeTickets)
	desk.PUT("/tickets/:id/exclusion", s.setExclusion)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%v", env.ServerPort),
		Handler: e,
	}
	return s
}

func (s *Server) Run(ctx context.Context) {
	defer s.loggerFactory.Sync()

	s.logger.Infof("server running application")
	if err := s.application.Start(ctx); err != nil {
		s.logger.Errorf("application start failed, err[%v]", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := s.server.Shutdown(context.Background()); err != nil {
			s.logger.Errorf("server shutdown failed, err[%v]", err)
		}
	}()

	s.logger.Infof("server starts listening on addr[%v]", s.server.Addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error(err)
	}
}

func (s *Server) withDesk(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		manager, ok := s.application.Desk(c.Param("desk"))
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown desk %v", c.Param("desk")))
		}
		c.Set(deskContextKey, manager)
		return next(c)
	}
}

func deskOf(c echo.Context) *ticket.Manager {
	return c.Get(deskContextKey).(*ticket.Manager)
}

func ticketIdOf(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "ticket id must be a number")
	}
	return id, nil
}

// toHttpError maps engine errors to status codes.
func toHttpError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ticket.ErrUnknownTicket):
		code = http.StatusNotFound
	case errors.Is(err, ticket.ErrInvalidTicketType),
		errors.Is(err, ticket.ErrTooManyTicketTypes),
		errors.Is(err, ticket.ErrNoRequesters):
		code = http.StatusBadRequest
	case errors.Is(err, ticket.ErrAdvancedModeRequired),
		errors.Is(err, ticket.ErrNoHelpersAvailable),
		errors.Is(err, ticket.ErrPromptPending):
		code = http.StatusConflict
	case errors.Is(err, ticket.ErrManagerStopped):
		code = http.StatusServiceUnavailable
	}
	return echo.NewHTTPError(code, err.Error())
}

func bind(c echo.Context, request interface{}) error {
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	return nil
}

func (s *Server) sendConsole(c echo.Context) error {
	request := &consoleRequest{}
	if err := bind(c, request); err != nil {
		return err
	}
	if request.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if err := deskOf(c).SendIntakeConsole(c.Request().Context(), request.Title, request.Description); err != nil {
		return toHttpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listTicketTypes(c echo.Context) error {
	types, err := deskOf(c).TicketTypes(c.Request().Context())
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(http.StatusOK, types)
}

func (s *Server) addTicketType(c echo.Context) error {
	request := &ticketTypeRequest{}
	if err := bind(c, request); err != nil {
		return err
	}
	if err := deskOf(c).AddTicketType(c.Request().Context(), request.RoleId, request.Label, request.Emoji); err != nil {
		return toHttpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) startIntake(c echo.Context) error {
	request := &intakeRequest{}
	if err := bind(c, request); err != nil {
		return err
	}
	if request.RequesterId == "" || request.RoleId == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "requesterId and roleId are required")
	}
	manager := deskOf(c)
	err := manager.StartTicketCreationProcess(c.Request().Context(), request.RequesterId, request.RoleId, manager.Settings().IntakeChannelId)
	if err != nil {
		return toHttpError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) stats(c echo.Context) error {
	stats, err := deskOf(c).Stats(c.Request().Context())
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) listTickets(c echo.Context) error {
	snapshots, err := deskOf(c).Snapshots(c.Request().Context())
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(http.StatusOK, snapshots)
}

func (s *Server) newTicket(c echo.Context) error {
	request := &newTicketRequest{}
	if err := bind(c, request); err != nil {
		return err
	}
	if request.Question == "" || request.RoleId == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question and roleId are required")
	}
	id, err := deskOf(c).NewTicket(c.Request().Context(), request.Requesters, request.Question, request.RoleId)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]int{"id": id})
}

func (s *Server) getTicket(c echo.Context) error {
	id, err := ticketIdOf(c)
	if err != nil {
		return err
	}
	snapshot, err := deskOf(c).Snapshot(c.Request().Context(), id)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (s *Server) removeTicket(c echo.Context) error {
	id, err := ticketIdOf(c)
	if err != nil {
		return err
	}
	removed, err := deskOf(c).RemoveTicket(c.Request().Context(), id)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) removeTickets(c echo.Context) error {
	request := &removalRequest{}
	if err := bind(c, request); err != nil {
		return err
	}

	modes := 0
	for _, set := range []bool{request.Ids != nil, request.ExceptIds != nil, request.MinAgeMinutes != nil} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "set exactly one of ids, exceptIds and minAgeMinutes")
	}

	var (
		manager = deskOf(c)
		ctx     = c.Request().Context()
		removed []int
		err     error
	)
	switch {
	case request.Ids != nil:
		removed, err = manager.RemoveTicketsByID(ctx, request.Ids)
	case request.ExceptIds != nil:
		removed, err = manager.RemoveAllTickets(ctx, request.ExceptIds)
	default:
		if *request.MinAgeMinutes < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "minAgeMinutes must not be negative")
		}
		removed, err = manager.RemoveTicketsByAge(ctx, *request.MinAgeMinutes)
	}
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(http.StatusOK, map[string][]int{"removed": removed})
}

func (s *Server) setExclusion(c echo.Context) error {
	id, err := ticketIdOf(c)
	if err != nil {
		return err
	}
	request := &exclusionRequest{}
	if err := bind(c, request); err != nil {
		return err
	}
	if err := deskOf(c).IncludeExclude(c.Request().Context(), id, request.Excluded); err != nil {
		return toHttpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
