package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/clock"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/config"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/gateway"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/infra"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform/platformtest"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/ticket"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

var _ = Describe("Server", func() {
	var (
		fakePlatform *platformtest.Platform
		fakeClock    *clock.FakeClock
		manager      *ticket.Manager
		server       *Server
	)

	BeforeEach(func() {
		fakePlatform = platformtest.New()
		fakeClock = clock.Fake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
		loggerFactory := infra.NewLoggerFactory(zap.NewNop())

		var err error
		manager, err = ticket.NewManager(ticket.ManagerDeps{
			Platform:      fakePlatform,
			Events:        gateway.ProvideHub(loggerFactory),
			Clock:         fakeClock,
			Config:        config.CFG,
			LoggerFactory: loggerFactory,
		}, config.DeskSettings{
			GuildId:           "g1",
			DeskId:            "main",
			DispatchChannelId: fakePlatform.AddChannel("g1", "dispatch", platform.TextChannel),
			IntakeChannelId:   fakePlatform.AddChannel("g1", "intake", platform.TextChannel),
			AcceptEmoji:       "✅",
			JoinEmoji:         "➕",
			HelperRoleId:      "helpers",
			HelperEmoji:       "🙋",
		})
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		go manager.Run(ctx)
		DeferCleanup(cancel)

		application := &Application{
			desks:  linkedhashmap.New(),
			logger: zap.NewNop().Sugar(),
		}
		application.desks.Put("main", manager)
		server = ProvideServer(application, &infra.Env{ServerPort: "0"}, loggerFactory)
	})

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		request := httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
		recorder := httptest.NewRecorder()
		server.echo.ServeHTTP(recorder, request)
		return recorder
	}

	decode := func(recorder *httptest.ResponseRecorder, into interface{}) {
		Expect(json.Unmarshal(recorder.Body.Bytes(), into)).To(Succeed())
	}

	openTicket := func(requester string) int {
		recorder := serve(http.MethodPost, "/desks/main/tickets", `{"requesters":["`+requester+`"],"question":"need help","roleId":"helpers"}`)
		Expect(recorder.Code).To(Equal(http.StatusCreated))
		created := map[string]int{}
		decode(recorder, &created)
		return created["id"]
	}

	It("lists the configured desks", func() {
		recorder := serve(http.MethodGet, "/", "")
		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(recorder.Body.String()).To(ContainSubstring(`"main"`))
	})

	It("answers 404 for an unknown desk", func() {
		Expect(serve(http.MethodGet, "/desks/nope/tickets", "").Code).To(Equal(http.StatusNotFound))
	})

	It("opens and lists tickets", func() {
		id := openTicket("u1")
		Expect(id).To(Equal(1))

		recorder := serve(http.MethodGet, "/desks/main/tickets", "")
		Expect(recorder.Code).To(Equal(http.StatusOK))
		var snapshots []ticket.Snapshot
		decode(recorder, &snapshots)
		Expect(snapshots).To(HaveLen(1))
		Expect(snapshots[0].Requesters).To(Equal([]string{"u1"}))
		Expect(snapshots[0].Status).To(Equal(ticket.StatusNew))
	})

	It("rejects a ticket without requesters", func() {
		recorder := serve(http.MethodPost, "/desks/main/tickets", `{"requesters":[],"question":"q","roleId":"helpers"}`)
		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
	})

	It("removes a single ticket", func() {
		id := openTicket("u1")

		recorder := serve(http.MethodDelete, "/desks/main/tickets/1", "")
		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(recorder.Body.String()).To(ContainSubstring(`"removed":true`))

		Expect(serve(http.MethodGet, "/desks/main/tickets/1", "").Code).To(Equal(http.StatusNotFound))
		_, err := manager.Snapshot(context.Background(), id)
		Expect(err).To(MatchError(ticket.ErrUnknownTicket))
	})

	It("rejects a non numeric ticket id", func() {
		Expect(serve(http.MethodDelete, "/desks/main/tickets/abc", "").Code).To(Equal(http.StatusBadRequest))
	})

	It("removes every ticket except the listed ones", func() {
		openTicket("u1")
		openTicket("u2")
		openTicket("u3")

		recorder := serve(http.MethodPost, "/desks/main/tickets/removal", `{"exceptIds":[2]}`)
		Expect(recorder.Code).To(Equal(http.StatusOK))
		removed := map[string][]int{}
		decode(recorder, &removed)
		Expect(removed["removed"]).To(ConsistOf(1, 3))
	})

	It("requires exactly one removal mode", func() {
		Expect(serve(http.MethodPost, "/desks/main/tickets/removal", `{}`).Code).To(Equal(http.StatusBadRequest))
		Expect(serve(http.MethodPost, "/desks/main/tickets/removal", `{"ids":[1],"exceptIds":[2]}`).Code).To(Equal(http.StatusBadRequest))
	})

	It("refuses removal by age outside advanced mode", func() {
		openTicket("u1")
		recorder := serve(http.MethodPost, "/desks/main/tickets/removal", `{"minAgeMinutes":0}`)
		Expect(recorder.Code).To(Equal(http.StatusConflict))
	})

	It("toggles exclusion", func() {
		openTicket("u1")

		Expect(serve(http.MethodPut, "/desks/main/tickets/1/exclusion", `{"excluded":true}`).Code).To(Equal(http.StatusNoContent))
		snapshot, err := manager.Snapshot(context.Background(), 1)
		Expect(err).ToNot(HaveOccurred())
		Expect(snapshot.Excluded).To(BeTrue())

		Expect(serve(http.MethodPut, "/desks/main/tickets/9/exclusion", `{"excluded":true}`).Code).To(Equal(http.StatusNotFound))
	})

	It("reports desk stats", func() {
		openTicket("u1")
		openTicket("u2")

		recorder := serve(http.MethodGet, "/desks/main/stats", "")
		Expect(recorder.Code).To(Equal(http.StatusOK))
		stats := ticket.DeskStats{}
		decode(recorder, &stats)
		Expect(stats.Opened).To(Equal(2))
		Expect(stats.New).To(Equal(2))
	})

	It("publishes the intake console and adds ticket types", func() {
		Expect(serve(http.MethodPost, "/desks/main/console", `{"title":"Need help?","description":"Pick a topic"}`).Code).To(Equal(http.StatusNoContent))
		console, ok := fakePlatform.LastMessageIn(manager.Settings().IntakeChannelId)
		Expect(ok).To(BeTrue())
		Expect(console.Message.Title).To(Equal("Need help?"))

		Expect(serve(http.MethodPost, "/desks/main/ticket-types", `{"roleId":"go","label":"Go","emoji":"🐹"}`).Code).To(Equal(http.StatusNoContent))
		Expect(serve(http.MethodPost, "/desks/main/ticket-types", `{"roleId":"","label":"Bad"}`).Code).To(Equal(http.StatusBadRequest))

		recorder := serve(http.MethodGet, "/desks/main/ticket-types", "")
		var types []ticket.TicketType
		decode(recorder, &types)
		Expect(types).To(HaveLen(2))
		Expect(types[1].Label).To(Equal("Go"))
	})

	It("refuses intake when the role has no members", func() {
		recorder := serve(http.MethodPost, "/desks/main/intake", `{"requesterId":"u1","roleId":"helpers"}`)
		Expect(recorder.Code).To(Equal(http.StatusConflict))
	})

	It("toggles debug logging", func() {
		Expect(serve(http.MethodPut, "/debug", "").Code).To(Equal(http.StatusOK))
		Expect(infra.LoggerLevel.Enabled(-1)).To(BeTrue())
		Expect(serve(http.MethodDelete, "/debug", "").Code).To(Equal(http.StatusOK))
		Expect(infra.LoggerLevel.Enabled(-1)).To(BeFalse())
	})
})
