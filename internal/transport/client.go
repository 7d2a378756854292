// Package transport speaks the round server's websocket protocol.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/model"
)

// Wire event names.
const (
	EventConnected      = "connected"
	EventUpdateState    = "update_state"
	EventTimerUpdate    = "timer_update"
	EventPlayerProgress = "player_progress"
	EventSubmitResult   = "submit_result"
	EventStartGame      = "start_game"
	EventForceEndGame   = "force_end_game"
	EventChangeNickname = "change_nickname"
	EventReturnToLobby  = "return_to_lobby"
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrClosed         = errors.New("connection closed")
)

// Envelope is one frame on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Closed is delivered as the last event once the connection ends.
type Closed struct {
	Err error
}

// Config holds connection timing and buffer sizes.
type Config struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	EventBuffer    int
}

// DefaultConfig returns default connection settings.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
		EventBuffer:    64,
	}
}

// Client is a websocket connection to the round server. Inbound frames are
// decoded into model.Identity, model.RoundSnapshot, and model.TimerTick values
// on Events; outbound sends never block.
type Client struct {
	conn   *websocket.Conn
	cfg    Config
	logger zerolog.Logger

	send   chan []byte
	events chan any
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// Dial connects to url and starts the read and write pumps.
func Dial(ctx context.Context, url string, cfg Config, logger zerolog.Logger) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.WriteTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c := &Client{
		conn:   conn,
		cfg:    cfg,
		logger: logger.With().Str("component", "transport").Logger(),
		send:   make(chan []byte, cfg.SendBuffer),
		events: make(chan any, cfg.EventBuffer),
		done:   make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()

	c.logger.Info().Str("url", url).Msg("connected")
	return c, nil
}

// Events returns the inbound event stream. It is closed after a Closed event.
func (c *Client) Events() <-chan any {
	return c.events
}

// Close shuts the connection down. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		deadline := time.Now().Add(c.cfg.WriteTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); werr != nil {
			c.logger.Debug().Err(werr).Msg("close frame not sent")
		}
		err = c.conn.Close()
	})
	return err
}

// Progress sends player_progress.
func (c *Client) Progress(percent float64) error {
	return c.enqueue(EventPlayerProgress, map[string]float64{"progress": percent})
}

// Result sends submit_result.
func (c *Client) Result(m model.Metrics) error {
	return c.enqueue(EventSubmitResult, m)
}

// StartRound sends start_game.
func (c *Client) StartRound() error {
	return c.enqueue(EventStartGame, nil)
}

// ForceEnd sends force_end_game.
func (c *Client) ForceEnd() error {
	return c.enqueue(EventForceEndGame, nil)
}

// ChangeNickname sends change_nickname.
func (c *Client) ChangeNickname(nickname string) error {
	return c.enqueue(EventChangeNickname, map[string]string{"nickname": nickname})
}

// ReturnToLobby sends return_to_lobby.
func (c *Client) ReturnToLobby() error {
	return c.enqueue(EventReturnToLobby, nil)
}

func (c *Client) enqueue(event string, payload any) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Str("event", event).Msg("send buffer full, dropping message")
		return ErrSendBufferFull
	}
}

// Encode builds a wire frame.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", event, err)
		}
		env.Data = data
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", event, err)
	}
	return frame, nil
}

// Decode parses an inbound frame. Unknown events return (nil, nil).
func Decode(frame []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	switch env.Event {
	case EventConnected:
		var id model.Identity
		if err := decodeData(env, &id); err != nil {
			return nil, err
		}
		return id, nil
	case EventUpdateState:
		var snap model.RoundSnapshot
		if err := decodeData(env, &snap); err != nil {
			return nil, err
		}
		return snap, nil
	case EventTimerUpdate:
		var tick model.TimerTick
		if err := decodeData(env, &tick); err != nil {
			return nil, err
		}
		return tick, nil
	default:
		return nil, nil
	}
}

func decodeData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("failed to decode %s: empty payload", env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", env.Event, err)
	}
	return nil
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			_ = err
		}
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.logger.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Error().Err(err).Msg("failed to write message")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.logger.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Client) readPump() {
	var readErr error
	defer func() {
		c.deliver(Closed{Err: readErr})
		close(c.events)
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.logger.Error().Err(err).Msg("unexpected close")
				}
				readErr = err
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		ev, err := Decode(frame)
		if err != nil {
			c.logger.Debug().Err(err).Msg("skipping malformed frame")
			continue
		}
		if ev == nil {
			c.logger.Debug().Bytes("frame", frame).Msg("skipping unknown event")
			continue
		}
		if !c.deliver(ev) {
			return
		}
	}
}

// deliver blocks until the event is consumed so snapshots keep their order.
func (c *Client) deliver(ev any) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		if _, ok := ev.(Closed); ok {
			select {
			case c.events <- ev:
			default:
			}
		}
		return false
	}
}
