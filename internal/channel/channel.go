package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Buffered outbound messages per connection.
	sendBufferSize = 256
)

// State represents the connection state of one channel
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
	StateErrored    State = "errored"
	// StateGivenUp is terminal: the reconnect budget is exhausted and the
	// channel will not try again without an explicit Connect.
	StateGivenUp State = "given_up"
)

var (
	// ErrNotOpen is returned by Send while the channel is not open.
	ErrNotOpen = errors.New("channel is not open")
	// ErrSendBufferFull is returned when the outbound queue is saturated.
	ErrSendBufferFull = errors.New("channel send buffer is full")
)

// Config describes one socket channel
type Config struct {
	Name string
	URL  string

	DialTimeout time.Duration

	// Reconnect backoff. InitialBackoff matches the reference behavior's
	// fixed 3 second delay; subsequent attempts grow toward MaxBackoff.
	// MaxElapsedTime zero retries forever.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxElapsedTime time.Duration
}

// Callbacks are invoked from the channel's internal goroutines. OnMessage
// is called in transport delivery order for this channel; no ordering
// holds across channels.
type Callbacks struct {
	OnMessage func(data []byte)
	OnState   func(state State)
	OnOpen    func()
}

// connLife tracks one physical connection so that overlapping close and
// error events tear it down, and schedule a reconnect, exactly once.
type connLife struct {
	once sync.Once
	done chan struct{}
}

// Channel maintains one websocket connection, re-dialing on every closure
// until torn down explicitly. Both the conversational and the streaming
// channel are instances of this type; the socket handle is owned here
// exclusively and all sends pass through Send.
type Channel struct {
	cfg    Config
	cb     Callbacks
	logger *zap.Logger

	mu           sync.Mutex
	state        State
	conn         *websocket.Conn
	send         chan []byte
	life         *connLife
	reconnecting bool
	closed       bool
	shutdownCh   chan struct{}
}

// New creates a channel in the closed state
func New(cfg Config, cb Callbacks, logger *zap.Logger) *Channel {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 3 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Channel{
		cfg:        cfg,
		cb:         cb,
		logger:     logger.With(zap.String("channel", cfg.Name)),
		state:      StateClosed,
		shutdownCh: make(chan struct{}),
	}
}

// Name returns the channel name
func (c *Channel) Name() string {
	return c.cfg.Name
}

// State returns the current connection state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsOpen reports whether the channel is open for sending
func (c *Channel) IsOpen() bool {
	return c.State() == StateOpen
}

// Connect starts dialing in the background. A failed first attempt feeds
// into the same backoff loop as a mid-session closure.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.closed || c.reconnecting || c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.setState(StateConnecting)
	go func() {
		if err := c.dial(); err != nil {
			c.logger.Warn("Connection attempt failed", zap.Error(err))
			c.setState(StateErrored)
			c.scheduleReconnect()
		}
	}()
}

// Send marshals v and queues it on the open connection. Queued messages
// already handed to the transport are not recalled on closure.
func (c *Channel) Send(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}

	c.mu.Lock()
	if c.state != StateOpen || c.send == nil {
		c.mu.Unlock()
		return ErrNotOpen
	}
	send := c.send
	c.mu.Unlock()

	select {
	case send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close tears the channel down for good. No reconnect is scheduled.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	life := c.life
	close(c.shutdownCh)
	c.mu.Unlock()

	if conn != nil && life != nil {
		c.teardown(conn, life, false)
	} else {
		c.setState(StateClosed)
	}
}

func (c *Channel) dial() error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, _, err := dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	life := &connLife{done: make(chan struct{})}
	c.conn = conn
	c.send = make(chan []byte, sendBufferSize)
	c.life = life
	send := c.send
	c.mu.Unlock()

	c.setState(StateOpen)
	c.logger.Info("Channel connected", zap.String("url", c.cfg.URL))

	go c.readPump(conn, life)
	go c.writePump(conn, send, life)

	if c.cb.OnOpen != nil {
		c.cb.OnOpen()
	}
	return nil
}

// readPump pumps inbound messages to the message callback until the
// connection dies.
func (c *Channel) readPump(conn *websocket.Conn, life *connLife) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			errored := websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway)
			if errored {
				c.logger.Warn("Channel read failed", zap.Error(err))
			}
			c.teardown(conn, life, errored)
			return
		}
		if c.cb.OnMessage != nil {
			c.cb.OnMessage(message)
		}
	}
}

// writePump drains the send queue onto the connection and keeps the
// connection alive with periodic pings.
func (c *Channel) writePump(conn *websocket.Conn, send chan []byte, life *connLife) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("Channel write failed", zap.Error(err))
				c.teardown(conn, life, true)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.teardown(conn, life, true)
				return
			}
		case <-life.done:
			return
		}
	}
}

// teardown closes one physical connection. Close and error events for the
// same connection collapse here into a single state transition and at
// most one scheduled reconnect.
func (c *Channel) teardown(conn *websocket.Conn, life *connLife, errored bool) {
	life.once.Do(func() {
		close(life.done)
		conn.Close()

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.send = nil
			c.life = nil
		}
		closed := c.closed
		c.mu.Unlock()

		if closed {
			c.setState(StateClosed)
			return
		}
		if errored {
			c.setState(StateErrored)
		} else {
			c.setState(StateClosed)
		}
		c.scheduleReconnect()
	})
}

func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	if c.closed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	go c.reconnectLoop()
}

func (c *Channel) reconnectLoop() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.MaxElapsedTime = c.cfg.MaxElapsedTime
	bo.Reset()

	for {
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			c.logger.Error("Reconnect budget exhausted, giving up",
				zap.Duration("max_elapsed", c.cfg.MaxElapsedTime))
			c.setState(StateGivenUp)
			return
		}

		select {
		case <-time.After(wait):
		case <-c.shutdownCh:
			return
		}

		c.setState(StateConnecting)
		if err := c.dial(); err != nil {
			c.logger.Warn("Reconnect attempt failed", zap.Error(err))
			c.setState(StateErrored)
			continue
		}
		return
	}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	c.logger.Debug("Channel state changed", zap.String("state", string(s)))
	if c.cb.OnState != nil {
		c.cb.OnState(s)
	}
}
