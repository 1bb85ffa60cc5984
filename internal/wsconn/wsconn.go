// Package wsconn provides a WebSocket client that reconnects with
// exponential backoff and replays subscriptions after each reconnect.
package wsconn

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/logger"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

type Config struct {
	URL            string
	Name           string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxReconnects of 0 retries forever.
	MaxReconnects int
	Reconnect     bool
	// PingInterval of 0 disables keepalive pings.
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
}

func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Reconnect:      true,
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

type (
	MessageHandler   func(ctx context.Context, msg []byte)
	StateHandler     func(state State, err error)
	ConnectedHandler func(ctx context.Context) error
)

type Client struct {
	cfg Config
	log logger.LoggerInterface

	mu    sync.RWMutex
	conn  *websocket.Conn
	state State

	onMessage   MessageHandler
	onState     StateHandler
	onConnected ConnectedHandler

	runCtx context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

type Option func(*Client)

func WithLogger(log logger.LoggerInterface) Option {
	return func(c *Client) { c.log = log }
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "websocket url is empty")
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:    cfg,
		log:    logger.NewNop(),
		state:  StateDisconnected,
		runCtx: ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OnMessage sets the handler invoked from the read loop for every frame.
func (c *Client) OnMessage(h MessageHandler) {
	c.mu.Lock()
	c.onMessage = h
	c.mu.Unlock()
}

func (c *Client) OnStateChange(h StateHandler) {
	c.mu.Lock()
	c.onState = h
	c.mu.Unlock()
}

// OnConnected runs after every successful dial, including reconnects.
// Use it to (re)send subscriptions.
func (c *Client) OnConnected(h ConnectedHandler) {
	c.mu.Lock()
	c.onConnected = h
	c.mu.Unlock()
}

func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.cfg.Name))
	}

	c.setState(StateConnecting, nil)
	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected, err)
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
	if err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithContextf("%s: %s", c.cfg.Name, c.cfg.URL), apperror.WithCause(err))
	}
	if c.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(c.cfg.MaxMessageSize)
	}

	c.mu.Lock()
	c.conn = conn
	hook := c.onConnected
	c.mu.Unlock()

	c.setState(StateConnected, nil)

	go c.readLoop(conn)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(conn)
	}

	if hook != nil {
		if err := hook(ctx); err != nil {
			conn.CloseNow()
			return err
		}
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(c.runCtx)
		if err != nil {
			c.dropped(conn, err)
			return
		}
		c.mu.RLock()
		h := c.onMessage
		c.mu.RUnlock()
		if h != nil {
			h(c.runCtx, data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.runCtx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.runCtx, c.cfg.PongTimeout)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				conn.CloseNow()
				return
			}
		}
	}
}

// dropped handles a failed read. Only the current connection triggers a reconnect.
func (c *Client) dropped(conn *websocket.Conn, err error) {
	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()
	conn.CloseNow()

	c.log.Warn(c.runCtx, "websocket disconnected", "name", c.cfg.Name, "error", err)

	if !c.cfg.Reconnect {
		c.setState(StateDisconnected, err)
		return
	}
	c.setState(StateReconnecting, err)
	go c.reconnect()
}

func (c *Client) reconnect() {
	backoff := c.cfg.InitialBackoff
	for attempt := 1; c.cfg.MaxReconnects == 0 || attempt <= c.cfg.MaxReconnects; attempt++ {
		jitter := time.Duration(rand.Int64N(int64(backoff)/4 + 1))
		select {
		case <-c.runCtx.Done():
			return
		case <-time.After(backoff + jitter):
		}

		ctx, cancel := context.WithTimeout(c.runCtx, 10*time.Second)
		err := c.dial(ctx)
		cancel()
		if err == nil {
			c.log.Info(c.runCtx, "websocket reconnected", "name", c.cfg.Name, "attempt", attempt)
			return
		}
		c.log.Warn(c.runCtx, "websocket reconnect failed", "name", c.cfg.Name, "attempt", attempt, "error", err)

		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
	c.setState(StateDisconnected, apperror.New(apperror.CodeWebSocketConnectionError,
		apperror.WithContextf("%s: reconnect attempts exhausted", c.cfg.Name)))
}

func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.cfg.Name))
	}
	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithContext(c.cfg.Name), apperror.WithCause(err))
	}
	return nil
}

func (c *Client) SendJSON(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err))
	}
	return c.Send(ctx, b)
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close stops reconnection and closes the connection. It is idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.cancel()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.setState(StateClosed, nil)
	if conn != nil {
		return conn.CloseNow()
	}
	return nil
}

func (c *Client) setState(s State, err error) {
	c.mu.Lock()
	if c.state == StateClosed && s != StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = s
	h := c.onState
	c.mu.Unlock()

	if h != nil {
		h(s, err)
	}
}
