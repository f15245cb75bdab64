package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/config"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/infra"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/msg"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 1 << 20

	intents = msg.GuildsIntent |
		msg.GuildVoiceStatesIntent |
		msg.GuildMessagesIntent |
		msg.GuildMessageReactionsIntent |
		msg.DirectMessagesIntent |
		msg.DirectMessageReactions |
		msg.MessageContentIntent
)

var (
	errReconnectRequested = errors.New("gateway requested reconnect")
	errHeartbeatNotAcked  = errors.New("heartbeat not acknowledged")
)

// InteractionAcker acknowledges button presses so the platform does not
// show them as failed.
type InteractionAcker interface {
	AckInteraction(ctx context.Context, interactionId, token string) error
}

// Gateway keeps a websocket session with the platform gateway and feeds
// normalized events into the hub. It reconnects until its context is
// cancelled.
type Gateway struct {
	url   string
	token string

	hub    *Hub
	acker  InteractionAcker
	config *config.Config

	// Sequence number of the last dispatch, echoed in heartbeats.
	seq atomic.Int64

	// Id of the bot user, learned from READY.
	selfId string

	logger *zap.SugaredLogger
}

func ProvideGateway(env *infra.Env, config *config.Config, hub *Hub, acker InteractionAcker, loggerFactory *infra.LoggerFactory) *Gateway {
	return &Gateway{
		url:    env.PlatformGatewayUrl,
		token:  env.PlatformToken,
		hub:    hub,
		acker:  acker,
		config: config,
		logger: loggerFactory.Create("Gateway").Sugar(),
	}
}

func (g *Gateway) Run(ctx context.Context) {
	for {
		err := g.session(ctx)
		if ctx.Err() != nil {
			g.logger.Infof("gateway stopped")
			return
		}

		delay := g.config.GatewayReconnectDelay()
		g.logger.Warnf("gateway session ended err[%v], reconnecting in[%v]", err, delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (g *Gateway) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	hello := &msg.GatewayMessage{}
	if err := conn.ReadJSON(hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != msg.HelloCode {
		return fmt.Errorf("expected hello, got op[%v]", hello.Op)
	}
	helloEvent := &msg.HelloServerEvent{}
	if err := json.Unmarshal(hello.EventData, helloEvent); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}
	heartbeatInterval := time.Duration(helloEvent.HeartbeatIntervalMsec) * time.Millisecond
	g.logger.Infof("gateway connected heartbeatInterval[%v]", heartbeatInterval)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	send := make(chan *msg.GatewayMessage, 64)
	acked := make(chan struct{}, 1)
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- g.writePump(sessionCtx, conn, send, acked, heartbeatInterval)
	}()

	identify, err := json.Marshal(&msg.IdentifyClientEvent{Token: g.token, Intents: intents})
	if err != nil {
		return fmt.Errorf("marshal identify: %w", err)
	}
	send <- &msg.GatewayMessage{Op: msg.IdentifyCode, EventData: identify}

	readErr := make(chan error, 1)
	go func() {
		readErr <- g.readPump(sessionCtx, conn, send, acked)
	}()

	// Only one goroutine may write to the connection, so wait for the
	// write pump before sending the close frame.
	select {
	case err = <-readErr:
		cancel()
		<-writeErr
	case err = <-writeErr:
		cancel()
	case <-ctx.Done():
		err = ctx.Err()
		cancel()
		<-writeErr
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return err
}

func (g *Gateway) readPump(ctx context.Context, conn *websocket.Conn, send chan<- *msg.GatewayMessage, acked chan<- struct{}) error {
	for {
		message := &msg.GatewayMessage{}
		if err := conn.ReadJSON(message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Errorf("read failed %v", err)
			}
			return err
		}

		switch message.Op {
		case msg.DispatchCode:
			if message.Seq != nil {
				g.seq.Store(*message.Seq)
			}
			g.dispatch(ctx, message)

		case msg.HeartbeatCode:
			select {
			case send <- g.heartbeat():
			case <-ctx.Done():
				return ctx.Err()
			}

		case msg.HeartbeatAckCode:
			select {
			case acked <- struct{}{}:
			default:
			}

		case msg.ReconnectCode, msg.InvalidSessionCode:
			return errReconnectRequested

		default:
			g.logger.Debugf("ignoring op[%v]", message.Op)
		}
	}
}

// writePump owns every write to the connection: queued frames and the
// heartbeat. A heartbeat that is still unacknowledged when the next one
// is due ends the session.
func (g *Gateway) writePump(ctx context.Context, conn *websocket.Conn, send <-chan *msg.GatewayMessage, acked <-chan struct{}, interval time.Duration) error {
	heartbeatTicker := time.NewTicker(interval)
	defer heartbeatTicker.Stop()

	waitingAck := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-acked:
			waitingAck = false

		case message := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message); err != nil {
				return fmt.Errorf("write op[%v]: %w", message.Op, err)
			}

		case <-heartbeatTicker.C:
			if waitingAck {
				return errHeartbeatNotAcked
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(g.heartbeat()); err != nil {
				return fmt.Errorf("write heartbeat: %w", err)
			}
			waitingAck = true
		}
	}
}

func (g *Gateway) heartbeat() *msg.GatewayMessage {
	data, _ := json.Marshal(g.seq.Load())
	return &msg.GatewayMessage{Op: msg.HeartbeatCode, EventData: data}
}

func (g *Gateway) dispatch(ctx context.Context, message *msg.GatewayMessage) {
	if message.EventType == msg.ReadyEvent {
		ready := &msg.ReadyServerEvent{}
		if err := json.Unmarshal(message.EventData, ready); err != nil {
			g.logger.Errorf("cannot unmarshal ready %v", err)
			return
		}
		g.selfId = ready.User.Id
		g.logger.Infof("gateway ready as user[%v] session[%v]", ready.User.Id, ready.SessionId)
		return
	}

	event, interaction, err := Normalize(message, g.selfId)
	if err != nil {
		g.logger.Errorf("cannot normalize event type[%v] %v", message.EventType, err)
		return
	}
	if interaction != nil {
		go func() {
			if err := g.acker.AckInteraction(ctx, interaction.Id, interaction.Token); err != nil {
				g.logger.Warnf("cannot ack interaction[%v] %v", interaction.Id, err)
			}
		}()
	}
	if event == nil {
		return
	}

	select {
	case g.hub.Events <- event:
	default:
		g.logger.Errorf("hub event queue full, dropping event type[%v]", message.EventType)
	}
}
