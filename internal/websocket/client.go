package websocket

import (
	"errors"
	"fmt"
	"sync"

	socket "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/bhandras/relaychat/internal/wire"
	"github.com/bhandras/relaychat/pkg/logger"
)

// ErrNotConnected is returned by Emit when no socket is open.
var ErrNotConnected = errors.New("not connected")

// Client is the socket.io connection to the relay.
//
// Exactly one handler is kept per event; registering again replaces the
// previous one. Events and lifecycle callbacks arrive on transport goroutines
// and only for the socket that is currently open: anything a closed socket
// still delivers is dropped.
type Client struct {
	serverURL string
	path      string
	debug     bool

	mu           sync.RWMutex
	socket       *socket.Socket
	subscribed   map[wire.Event]bool
	handlers     map[wire.Event]func(args []any)
	onConnect    func()
	onDisconnect func(reason string)
	onConnectErr func(err error)
	connected    bool
}

// Option configures a Client.
type Option func(*Client)

// WithPath overrides the socket.io request path.
func WithPath(path string) Option {
	return func(c *Client) { c.path = path }
}

// WithDebug enables per-event trace logging.
func WithDebug(debug bool) Option {
	return func(c *Client) { c.debug = debug }
}

// NewClient creates a client for the relay at serverURL. Nothing is dialed
// until Connect.
func NewClient(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL: serverURL,
		handlers:  make(map[wire.Event]func(args []any)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// On registers the handler for an inbound event, replacing any previous one.
func (c *Client) On(event wire.Event, handler func(args []any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if handler == nil {
		delete(c.handlers, event)
		return
	}
	c.handlers[event] = handler
	if c.socket != nil && !c.subscribed[event] {
		c.subscribeLocked(c.socket, event)
	}
}

// OnConnect sets the callback fired when the socket is connected.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

// OnDisconnect sets the callback fired when an open socket drops.
func (c *Client) OnDisconnect(fn func(reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// OnConnectError sets the callback fired when the connection attempt fails.
func (c *Client) OnConnectError(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnectErr = fn
}

// Connect opens a new socket to the relay, closing any previous one first.
//
// Automatic reconnection is disabled: a dropped socket stays dropped until
// Connect is called again.
func (c *Client) Connect() error {
	c.mu.Lock()
	prev := c.socket
	c.socket = nil
	c.connected = false
	c.mu.Unlock()
	if prev != nil {
		prev.Disconnect()
	}

	logger.Debugf("Connecting to relay: %s", c.serverURL)

	opts := socket.DefaultOptions()
	if c.path != "" {
		opts.SetPath(c.path)
	}
	opts.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))
	opts.SetReconnection(false)
	opts.SetForceNew(true)

	sock, err := socket.Connect(c.serverURL, opts)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.socket = sock
	c.subscribed = make(map[wire.Event]bool)

	sock.On(types.EventName("connect"), func(args ...any) {
		c.handleConnect(sock)
	})

	sock.On(types.EventName("disconnect"), func(args ...any) {
		c.mu.Lock()
		if c.socket != sock {
			c.mu.Unlock()
			return
		}
		c.connected = false
		fn := c.onDisconnect
		c.mu.Unlock()

		reason := ""
		if len(args) > 0 {
			if r, ok := args[0].(string); ok {
				reason = r
			}
		}
		logger.Infof("Disconnected from relay: %s", reason)
		if fn != nil {
			fn(reason)
		}
	})

	sock.On(types.EventName("connect_error"), func(args ...any) {
		c.mu.RLock()
		current := c.socket == sock
		fn := c.onConnectErr
		c.mu.RUnlock()
		if !current {
			return
		}

		err := errors.New("connect error")
		if len(args) > 0 {
			if e, ok := args[0].(error); ok {
				err = e
			} else if args[0] != nil {
				err = fmt.Errorf("%v", args[0])
			}
		}
		logger.Warnf("Relay connection error: %v", err)
		if fn != nil {
			fn(err)
		}
	})

	for event := range c.handlers {
		c.subscribeLocked(sock, event)
	}
	c.mu.Unlock()

	// The handshake runs on transport goroutines and may already have
	// finished before the connect listener was attached.
	if sock.Connected() {
		c.handleConnect(sock)
	}
	return nil
}

// handleConnect marks sock connected and fires the callback once per socket.
func (c *Client) handleConnect(sock *socket.Socket) {
	c.mu.Lock()
	if c.socket != sock || c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = true
	fn := c.onConnect
	c.mu.Unlock()

	logger.Infof("Connected to relay (socket %v)", sock.Id())
	if fn != nil {
		fn()
	}
}

// subscribeLocked forwards one inbound event of sock to whatever handler is
// registered for it at delivery time.
func (c *Client) subscribeLocked(sock *socket.Socket, event wire.Event) {
	c.subscribed[event] = true
	sock.On(types.EventName(event), func(args ...any) {
		c.mu.RLock()
		handler := c.handlers[event]
		current := c.socket == sock
		c.mu.RUnlock()

		if !current {
			return
		}
		if c.debug {
			logger.Tracef("Received event: %s", event)
		}
		if handler != nil {
			handler(args)
		}
	})
}

// Emit sends one event to the relay. Delivery is not acknowledged.
func (c *Client) Emit(event wire.Event, payload any) error {
	c.mu.RLock()
	sock := c.socket
	c.mu.RUnlock()

	if sock == nil {
		return ErrNotConnected
	}
	if c.debug {
		logger.Tracef("Sending event: %s", event)
	}
	sock.Emit(string(event), payload)
	return nil
}

// Close disconnects the socket and releases every registered handler and
// lifecycle callback. Close is idempotent; the client can be reused by
// registering handlers again and calling Connect.
func (c *Client) Close() error {
	c.mu.Lock()
	sock := c.socket
	c.socket = nil
	c.connected = false
	c.subscribed = nil
	c.handlers = make(map[wire.Event]func(args []any))
	c.onConnect = nil
	c.onDisconnect = nil
	c.onConnectErr = nil
	c.mu.Unlock()

	if sock != nil {
		sock.Disconnect()
	}
	return nil
}

// IsConnected returns whether the client has an open, connected socket.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	sock := c.socket
	connected := c.connected
	c.mu.RUnlock()

	if connected {
		return true
	}
	return sock != nil && sock.Connected()
}

// ID returns the transport-assigned id of the open socket, or "".
func (c *Client) ID() string {
	c.mu.RLock()
	sock := c.socket
	c.mu.RUnlock()
	if sock == nil {
		return ""
	}
	return fmt.Sprint(sock.Id())
}
