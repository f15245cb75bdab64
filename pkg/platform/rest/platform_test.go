package rest_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/infra"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform/rest"

	"github.com/imroc/req/v3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
}

type fakeVoice map[string]int

func (v fakeVoice) VoiceOccupancy(channelId string) int {
	return v[channelId]
}

var _ = Describe("Platform", func() {
	var (
		server    *httptest.Server
		mu        sync.Mutex
		requests  []recordedRequest
		responses map[string]func(w http.ResponseWriter, r *http.Request)
		p         *rest.Platform
		ctx       context.Context
	)

	recorded := func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), requests...)
	}

	BeforeEach(func() {
		ctx = context.Background()
		requests = nil
		responses = map[string]func(w http.ResponseWriter, r *http.Request){}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			body := map[string]interface{}{}
			json.Unmarshal(raw, &body)

			mu.Lock()
			requests = append(requests, recordedRequest{Method: r.Method, Path: r.URL.EscapedPath(), Query: r.URL.RawQuery, Body: body})
			handler, ok := responses[r.Method+" "+r.URL.Path]
			mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			if !ok {
				w.Write([]byte(`{}`))
				return
			}
			handler(w, r)
		}))

		httpClient := req.C().SetBaseURL(server.URL)
		p = rest.ProvidePlatform(httpClient, fakeVoice{"v1": 3}, infra.NewLoggerFactory(zap.NewNop()))
	})

	AfterEach(func() {
		server.Close()
	})

	It("creates channels with encoded overwrites", func() {
		responses["POST /guilds/g1/channels"] = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"c9","guild_id":"g1","name":"ticket-1","type":4}`))
		}

		channel, err := p.CreateChannel(ctx, "g1", platform.ChannelSpec{
			Name: "ticket-1",
			Kind: platform.CategoryChannel,
			Overwrites: []platform.PermissionOverwrite{
				{TargetId: "g1", Type: platform.RoleOverwrite, Deny: platform.ViewChannel},
				{TargetId: "u1", Type: platform.MemberOverwrite, Allow: platform.ViewChannel | platform.SendMessages},
			},
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(channel).To(Equal(&platform.Channel{Id: "c9", GuildId: "g1", Name: "ticket-1", Kind: platform.CategoryChannel}))

		body := recorded()[0].Body
		Expect(body["type"]).To(BeEquivalentTo(4))
		Expect(body["permission_overwrites"]).To(ConsistOf(
			map[string]interface{}{"id": "g1", "type": float64(0), "allow": "0", "deny": "1024"},
			map[string]interface{}{"id": "u1", "type": float64(1), "allow": "3072", "deny": "0"},
		))
	})

	It("renders labelled affordances as buttons and the rest as reactions", func() {
		responses["POST /channels/c1/messages"] = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"m1"}`))
		}

		sent, err := p.SendMessage(ctx, "c1", platform.Message{
			Title: "Ticket #1",
			Fields: []platform.Field{
				{Name: "Question", Value: "help"},
			},
			Affordances: []platform.Affordance{
				{Key: "cancel", Label: "Cancel ticket", Emoji: "❌"},
				{Key: "✅"},
			},
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(sent).To(Equal(&platform.SentMessage{Id: "m1", ChannelId: "c1"}))

		reqs := recorded()
		Expect(reqs).To(HaveLen(2))

		components := reqs[0].Body["components"].([]interface{})
		Expect(components).To(HaveLen(1))
		row := components[0].(map[string]interface{})
		buttons := row["components"].([]interface{})
		Expect(buttons).To(HaveLen(1))
		Expect(buttons[0]).To(HaveKeyWithValue("custom_id", "cancel"))
		Expect(buttons[0]).To(HaveKeyWithValue("label", "Cancel ticket"))

		Expect(reqs[1].Method).To(Equal(http.MethodPut))
		Expect(reqs[1].Path).To(Equal("/channels/c1/messages/m1/reactions/%E2%9C%85/@me"))
	})

	It("maps 404 to ErrNotFound", func() {
		responses["DELETE /channels/gone"] = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":10003,"message":"Unknown Channel"}`))
		}

		err := p.DeleteChannel(ctx, "gone")
		Expect(err).To(MatchError(platform.ErrNotFound))
	})

	It("reports other API errors with the platform message", func() {
		responses["DELETE /channels/c1"] = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"code":50013,"message":"Missing Permissions"}`))
		}

		err := p.DeleteChannel(ctx, "c1")
		Expect(err).To(MatchError(ContainSubstring("Missing Permissions")))
		Expect(err).ToNot(MatchError(platform.ErrNotFound))
	})

	It("opens a dm channel before sending a direct message", func() {
		responses["POST /users/@me/channels"] = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"dm1","type":1}`))
		}
		responses["POST /channels/dm1/messages"] = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"m5"}`))
		}

		sent, err := p.SendDirect(ctx, "u1", platform.Message{Content: "hi"})

		Expect(err).ToNot(HaveOccurred())
		Expect(sent).To(Equal(&platform.SentMessage{Id: "m5", ChannelId: "dm1"}))
		Expect(recorded()[0].Body).To(HaveKeyWithValue("recipient_id", "u1"))
	})

	It("counts human role members across pages", func() {
		responses["GET /guilds/g1/members"] = func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("after") != "0" {
				w.Write([]byte(`[]`))
				return
			}
			members := make([]map[string]interface{}, 0, 1000)
			for i := 0; i < 1000; i++ {
				roles := []string{}
				if i%10 == 0 {
					roles = append(roles, "mentors")
				}
				members = append(members, map[string]interface{}{
					"user":  map[string]interface{}{"id": fmt.Sprintf("u%v", i), "bot": i == 0},
					"roles": roles,
				})
			}
			json.NewEncoder(w).Encode(members)
		}

		count, err := p.RoleMemberCount(ctx, "g1", "mentors")

		Expect(err).ToNot(HaveOccurred())
		Expect(count).To(Equal(99))
		Expect(recorded()).To(HaveLen(2))
		Expect(recorded()[1].Query).To(ContainSubstring("after=u999"))
	})

	It("answers voice occupancy from the tracker", func() {
		Expect(p.VoiceOccupancy(ctx, "g1", "v1")).To(Equal(3))
		Expect(recorded()).To(BeEmpty())
	})

	It("acknowledges interactions with a deferred update", func() {
		Expect(p.AckInteraction(ctx, "i1", "t1")).To(Succeed())

		reqs := recorded()
		Expect(reqs[0].Path).To(Equal("/interactions/i1/t1/callback"))
		Expect(reqs[0].Body).To(HaveKeyWithValue("type", float64(6)))
	})
})
