/*
Package chat binds websocket connections to the matchmaking engine.

A Client owns one connection. Its ReadPump decodes inbound events and dispatches them
to the engine; its WritePump drains a buffered queue of encoded outbound events and
keeps the connection alive with pings. Client implements match.Conn: Send never blocks.
*/
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"strangerchat/internal/app/event"
	"strangerchat/internal/app/match"
	"strangerchat/internal/app/push"
	"strangerchat/internal/pkg/errs"
	"strangerchat/internal/pkg/logx"
	"strangerchat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 16384

	// MaxContentBytes is the largest chat message text relayed.
	MaxContentBytes = 5000

	// sendBufferSize is the number of outbound events queued per client before drops.
	sendBufferSize = 256

	// inbound events per second and burst allowed per connection.
	inboundRate  = 10
	inboundBurst = 20

	// storeTimeout bounds a push-token write triggered by an inbound event.
	storeTimeout = 5 * time.Second

	// WsCloseCodeSessionKicked is a custom WebSocket Close Code (4000-4999 range)
	// used to signal the client that the session was replaced by a new connection.
	WsCloseCodeSessionKicked = 4001
)

var (
	// ErrClientClosed is returned by Send after the connection has gone away.
	ErrClientClosed = errors.New("client connection closed")

	// ErrSendQueueFull is returned by Send when the client is not keeping up.
	ErrSendQueueFull = errors.New("client send queue full")
)

// Engine is the part of the matchmaking engine a connection drives.
type Engine interface {
	Join(userID string, conn match.Conn, avatar string)
	Resume(userID string, conn match.Conn) bool
	Next(userID string)
	RemoveUser(userID string, isDisconnect bool)
	Disconnect(userID string, conn match.Conn)
	RelayMessage(senderID, roomID, text string, sentAt int64)
	RelayTyping(senderID, roomID string, isTyping bool)
}

// DeviceRegistrar stores push tokens announced by clients.
type DeviceRegistrar interface {
	UpsertDevice(ctx context.Context, userID, token, deviceName string) error
}

// Client struct represents an active WebSocket connection and the user bound to it.
type Client struct {
	// underlying WebSocket connection object.
	conn *websocket.Conn

	engine  Engine
	devices DeviceRegistrar

	// userID is set by join_queue or reconnect; only ReadPump touches it.
	userID string

	// a buffered channel used to queue encoded events waiting to be sent to the client.
	send chan []byte

	// done is closed once the connection is finished; Send fails afterwards.
	done      chan struct{}
	closeOnce sync.Once

	// limiter throttles inbound events.
	limiter *rate.Limiter

	// structured logger with client context.
	logger zerolog.Logger
}

// NewClient constructs a Client for wsConn. devices may be nil, in which case
// push token registrations are dropped.
func NewClient(wsConn *websocket.Conn, engine Engine, devices DeviceRegistrar, remoteIP string) *Client {
	return &Client{
		conn:    wsConn,
		engine:  engine,
		devices: devices,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(inboundRate), inboundBurst),
		logger:  logx.Logger().With().Str("component", "client").Str("remote_ip", remoteIP).Logger(),
	}
}

// Send encodes ev and queues it without blocking.
func (c *Client) Send(ev event.Outbound) error {
	data, err := event.Encode(ev)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping event")
		return ErrSendQueueFull
	}
}

// ReadPump handles reading events from the WebSocket connection until it fails.
// On exit it reports the disconnect to the engine and closes the connection.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, WsCloseCodeSessionKicked) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		c.processInbound(data)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.shutdown()

	if c.userID != "" {
		c.engine.Disconnect(c.userID, c)
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}

	c.logger.Info().Msg("Client connection closed.")
}

// processInbound decodes one frame and dispatches it.
func (c *Client) processInbound(data []byte) {
	if !c.limiter.Allow() {
		c.sendError(errs.NewError(errs.ErrRateLimitExceeded))
		return
	}

	in, cerr := event.Decode(data)
	if cerr != nil {
		c.logger.Debug().Int("code", cerr.Code).Msg("Client sent an invalid event")
		c.sendError(cerr)
		return
	}

	switch ev := in.(type) {
	case event.JoinQueue:
		c.bind(ev.UserID)
		c.engine.Join(ev.UserID, c, ev.Avatar)

	case event.Reconnect:
		c.bind(ev.UserID)
		c.engine.Resume(ev.UserID, c)

	case event.RegisterPush:
		c.handleRegisterPush(ev)

	case event.SendMessage:
		if c.userID == "" {
			c.sendError(errs.NewError(errs.ErrNotJoined))
			return
		}
		if len(ev.Text) > MaxContentBytes {
			c.sendError(errs.NewError(errs.ErrMessageContentTooLong, MaxContentBytes))
			return
		}
		if !randx.IsValidRoomID(ev.Room) {
			return
		}
		c.engine.RelayMessage(c.userID, ev.Room, ev.Text, ev.SentAt)

	case event.SetTyping:
		if c.userID == "" {
			c.sendError(errs.NewError(errs.ErrNotJoined))
			return
		}
		if !randx.IsValidRoomID(ev.Room) {
			return
		}
		c.engine.RelayTyping(c.userID, ev.Room, ev.IsTyping)

	case event.Next:
		if c.userID != "" {
			c.engine.Next(c.userID)
		}

	case event.Leave:
		if c.userID != "" {
			c.engine.RemoveUser(c.userID, false)
		}
	}
}

// bind associates the connection with userID for all later events. A previous
// identity on this connection is disconnected from the engine first.
func (c *Client) bind(userID string) {
	if c.userID == userID {
		return
	}
	if c.userID != "" {
		c.logger.Info().Str("new_user_id", userID).Msg("Connection switched identity.")
		c.engine.Disconnect(c.userID, c)
	}
	c.userID = userID
	c.logger = c.logger.With().Str("user_id", userID).Logger()
}

func (c *Client) handleRegisterPush(ev event.RegisterPush) {
	userID := ev.UserID
	if userID == "" {
		userID = c.userID
	}

	if ev.Token == "" || userID == "" {
		c.logger.Warn().Bool("has_token", ev.Token != "").Msg("Ignoring push registration without token or user.")
		return
	}
	if !push.IsExpoToken(ev.Token) {
		c.logger.Warn().Msg("Ignoring push registration with a non-Expo token.")
		return
	}
	if c.devices == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := c.devices.UpsertDevice(ctx, userID, ev.Token, ev.DeviceName); err != nil {
		c.logger.Error().Err(err).Msg("Failed to store push token.")
	}
}

// sendError queues an error event carrying err's message.
func (c *Client) sendError(err *errs.CustomError) {
	if sendErr := c.Send(event.FromError(err)); sendErr != nil {
		c.logger.Debug().Err(sendErr).Msg("Failed to queue error event")
	}
}

// WritePump handles writing queued events to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case data := <-c.send:
			if !c.write(websocket.TextMessage, data) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			return
		}
	}
}

// write sends one frame. Returns false if the WritePump loop should terminate.
func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing message")
		return false
	}

	return true
}

// Kick closes the connection with close code 4001 because the session was
// taken over by another connection.
func (c *Client) Kick(reason string) {
	c.logger.Warn().
		Int("close_code", WsCloseCodeSessionKicked).
		Str("reason", reason).
		Msg("Sending WS Kick message and closing connection.")

	c.Close(WsCloseCodeSessionKicked, reason)
}

// Close sends a close frame with code and reason and stops the write loop.
// WriteControl may run concurrently with WritePump.
func (c *Client) Close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send WS close message.")
	}

	c.shutdown()
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}
