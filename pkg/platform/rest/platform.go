// Package rest implements platform.Platform over the platform's REST
// API.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/infra"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/msg"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"

	"github.com/imroc/req/v3"
	"go.uber.org/zap"
)

const membersPageSize = 1000

// VoiceTracker answers voice occupancy from gateway voice states; the
// REST API has no endpoint for it.
type VoiceTracker interface {
	VoiceOccupancy(channelId string) int
}

type Platform struct {
	httpClient *req.Client
	voice      VoiceTracker
	logger     *zap.SugaredLogger
}

var _ platform.Platform = (*Platform)(nil)

func ProvidePlatform(httpClient *req.Client, voice VoiceTracker, loggerFactory *infra.LoggerFactory) *Platform {
	return &Platform{
		httpClient: httpClient,
		voice:      voice,
		logger:     loggerFactory.Create("Platform").Sugar(),
	}
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// do sends a request and turns error responses into errors. 404s wrap
// platform.ErrNotFound.
func (p *Platform) do(ctx context.Context, method, path string, body, result interface{}, pathParams map[string]string) error {
	apiErr := &apiError{}
	r := p.httpClient.R().
		SetContext(ctx).
		SetPathParams(pathParams).
		SetError(apiErr)
	if body != nil {
		r.SetBody(body)
	}
	if result != nil {
		r.SetResult(result)
	}

	resp, err := r.Send(method, path)
	if err != nil {
		return fmt.Errorf("%v %v: %w", method, path, err)
	}
	if resp.IsError() {
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%v %v: %w", method, path, platform.ErrNotFound)
		}
		return fmt.Errorf("%v %v failed with status[%v] code[%v] message[%v]", method, path, resp.Status, apiErr.Code, apiErr.Message)
	}
	return nil
}

func (p *Platform) CreateChannel(ctx context.Context, guildId string, spec platform.ChannelSpec) (*platform.Channel, error) {
	created := &channelPayload{}
	err := p.do(ctx, http.MethodPost, "/guilds/{guild}/channels", newChannelPayload(spec), created,
		map[string]string{"guild": guildId})
	if err != nil {
		return nil, err
	}
	p.logger.Debugf("created channel[%v] name[%v] kind[%v]", created.Id, created.Name, spec.Kind)
	return created.toChannel(), nil
}

func (p *Platform) EditChannel(ctx context.Context, channelId string, edit platform.ChannelEdit) (*platform.Channel, error) {
	body := map[string]interface{}{}
	if edit.Name != "" {
		body["name"] = edit.Name
	}
	if edit.ParentId != "" {
		body["parent_id"] = edit.ParentId
	}

	edited := &channelPayload{}
	err := p.do(ctx, http.MethodPatch, "/channels/{channel}", body, edited,
		map[string]string{"channel": channelId})
	if err != nil {
		return nil, err
	}
	return edited.toChannel(), nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelId string) error {
	return p.do(ctx, http.MethodDelete, "/channels/{channel}", nil, nil,
		map[string]string{"channel": channelId})
}

func (p *Platform) SetPermission(ctx context.Context, channelId string, overwrite platform.PermissionOverwrite) error {
	payload := newOverwritePayload(overwrite)
	return p.do(ctx, http.MethodPut, "/channels/{channel}/permissions/{target}", payload, nil,
		map[string]string{"channel": channelId, "target": overwrite.TargetId})
}

func (p *Platform) DeletePermission(ctx context.Context, channelId, targetId string) error {
	return p.do(ctx, http.MethodDelete, "/channels/{channel}/permissions/{target}", nil, nil,
		map[string]string{"channel": channelId, "target": targetId})
}

func (p *Platform) SendMessage(ctx context.Context, channelId string, message platform.Message) (*platform.SentMessage, error) {
	sent := &messagePayload{}
	err := p.do(ctx, http.MethodPost, "/channels/{channel}/messages", newMessagePayload(message), sent,
		map[string]string{"channel": channelId})
	if err != nil {
		return nil, err
	}

	if err := p.addReactions(ctx, channelId, sent.Id, message.Affordances); err != nil {
		return nil, err
	}
	return &platform.SentMessage{Id: sent.Id, ChannelId: channelId}, nil
}

// addReactions reacts with every label-less affordance so users can
// click it. Reacting twice with the same emoji is a no-op upstream.
func (p *Platform) addReactions(ctx context.Context, channelId, messageId string, affordances []platform.Affordance) error {
	for _, affordance := range affordances {
		if affordance.Label != "" {
			continue
		}
		if err := p.react(ctx, channelId, messageId, affordance.Key); err != nil {
			return err
		}
	}
	return nil
}

func (p *Platform) react(ctx context.Context, channelId, messageId, emoji string) error {
	return p.do(ctx, http.MethodPut, "/channels/{channel}/messages/{message}/reactions/{emoji}/@me", nil, nil,
		map[string]string{"channel": channelId, "message": messageId, "emoji": emoji})
}

func (p *Platform) EditMessage(ctx context.Context, channelId, messageId string, message platform.Message) error {
	err := p.do(ctx, http.MethodPatch, "/channels/{channel}/messages/{message}", newMessagePayload(message), nil,
		map[string]string{"channel": channelId, "message": messageId})
	if err != nil || message.Disabled {
		return err
	}
	return p.addReactions(ctx, channelId, messageId, message.Affordances)
}

func (p *Platform) DeleteMessage(ctx context.Context, channelId, messageId string) error {
	return p.do(ctx, http.MethodDelete, "/channels/{channel}/messages/{message}", nil, nil,
		map[string]string{"channel": channelId, "message": messageId})
}

func (p *Platform) SendDirect(ctx context.Context, userId string, message platform.Message) (*platform.SentMessage, error) {
	dm := &channelPayload{}
	err := p.do(ctx, http.MethodPost, "/users/@me/channels", map[string]string{"recipient_id": userId}, dm, nil)
	if err != nil {
		return nil, fmt.Errorf("open dm with user[%v]: %w", userId, err)
	}
	return p.SendMessage(ctx, dm.Id, message)
}

func (p *Platform) VoiceOccupancy(ctx context.Context, guildId, channelId string) (int, error) {
	return p.voice.VoiceOccupancy(channelId), nil
}

func (p *Platform) RoleMemberCount(ctx context.Context, guildId, roleId string) (int, error) {
	count := 0
	after := "0"
	for {
		var members []msg.Member
		resp, err := p.httpClient.R().
			SetContext(ctx).
			SetPathParam("guild", guildId).
			SetQueryParam("limit", strconv.Itoa(membersPageSize)).
			SetQueryParam("after", after).
			SetResult(&members).
			Get("/guilds/{guild}/members")
		if err != nil {
			return 0, fmt.Errorf("list members of guild[%v]: %w", guildId, err)
		}
		if resp.IsError() {
			return 0, fmt.Errorf("list members of guild[%v] failed with status[%v]", guildId, resp.Status)
		}

		for _, member := range members {
			if member.User == nil || member.User.Bot {
				continue
			}
			for _, role := range member.Roles {
				if role == roleId {
					count++
					break
				}
			}
		}

		if len(members) < membersPageSize {
			return count, nil
		}
		last := members[len(members)-1]
		if last.User == nil {
			return count, nil
		}
		after = last.User.Id
	}
}

// AckInteraction acknowledges a button press without changing the
// message; the engine edits messages itself.
func (p *Platform) AckInteraction(ctx context.Context, interactionId, token string) error {
	return p.do(ctx, http.MethodPost, "/interactions/{id}/{token}/callback",
		map[string]int{"type": msg.DeferredUpdateCallback}, nil,
		map[string]string{"id": interactionId, "token": token})
}
