// Package client is a websocket client for the worldhost observer feed.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/server"
)

type (
	Subscription = server.Subscription
	Snapshot     = server.Snapshot
	Health       = server.Health
)

// Config holds configuration for the client
type Config struct {
	// ServerURL is the observer base URL, e.g. http://127.0.0.1:8080.
	ServerURL      string
	Token          string
	ConnectTimeout time.Duration
	ReplyTimeout   time.Duration
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerURL:      "http://127.0.0.1:8080",
		ConnectTimeout: 10 * time.Second,
		ReplyTimeout:   5 * time.Second,
	}
}

// SnapshotHandler is called from the read loop for every snapshot.
type SnapshotHandler func(snap Snapshot)

type Client struct {
	conn *websocket.Conn

	handlers     []SnapshotHandler
	handlerMutex sync.RWMutex
	replies      chan server.Reply

	connected int32 // atomic bool
	closed    int32 // atomic bool
	done      chan struct{}

	config Config
	logger log.Log
	http   *http.Client

	workerGroup sync.WaitGroup
}

type Option func(*Client)

func WithLogger(l log.Log) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func NewClient(config Config, opts ...Option) *Client {
	def := DefaultClientConfig()
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = def.ConnectTimeout
	}
	if config.ReplyTimeout <= 0 {
		config.ReplyTimeout = def.ReplyTimeout
	}
	c := &Client{
		replies: make(chan server.Reply, 1),
		done:    make(chan struct{}),
		config:  config,
		logger:  log.NewNop(),
		http:    &http.Client{Timeout: config.ConnectTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("client")
	return c
}

func (c *Client) endpoint(scheme, path string) (string, error) {
	u, err := url.Parse(c.config.ServerURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if scheme == "ws" && u.Scheme == "https" {
		scheme = "wss"
	} else if scheme != "ws" {
		scheme = u.Scheme
	}
	u.Scheme = scheme
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}

// Connect opens the websocket and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if atomic.LoadInt32(&c.connected) == 1 {
		return ErrAlreadyConnected
	}
	target, err := c.endpoint("ws", "/ws")
	if err != nil {
		return err
	}

	header := http.Header{}
	if c.config.Token != "" {
		header.Set("Authorization", "Bearer "+c.config.Token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: c.config.ConnectTimeout}
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("connect %s: %w", target, err)
	}
	c.conn = conn
	atomic.StoreInt32(&c.connected, 1)

	c.workerGroup.Add(1)
	go c.readLoop()
	c.logger.Info("connected", log.String("url", target))
	return nil
}

func (c *Client) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// OnSnapshot registers a handler for every following snapshot.
func (c *Client) OnSnapshot(handler SnapshotHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Subscribe replaces the session's subscription and waits for the server's
// acknowledgement.
func (c *Client) Subscribe(ctx context.Context, sub Subscription) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := c.conn.WriteJSON(sub); err != nil {
		return err
	}

	timer := time.NewTimer(c.config.ReplyTimeout)
	defer timer.Stop()
	select {
	case reply := <-c.replies:
		if reply.Error != "" {
			return fmt.Errorf("%w: %s", ErrSubscriptionRejected, reply.Error)
		}
		return nil
	case <-timer.C:
		return ErrMessageTimeout
	case <-c.done:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// frame is decoded first to tell replies from snapshots.
type frame struct {
	Rows       json.RawMessage `json:"rows"`
	Subscribed []string        `json:"subscribed"`
	Error      string          `json:"error"`
}

func (c *Client) readLoop() {
	defer c.workerGroup.Done()
	defer func() {
		atomic.StoreInt32(&c.connected, 0)
		c.closeDone()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if atomic.LoadInt32(&c.closed) == 0 {
				c.logger.Warn("connection lost", log.Error(err))
			}
			return
		}

		var f frame
		if err = json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("invalid frame", log.Error(err))
			continue
		}
		if f.Rows == nil {
			select {
			case c.replies <- server.Reply{Subscribed: f.Subscribed, Error: f.Error}:
			default:
			}
			continue
		}

		var snap Snapshot
		if err = json.Unmarshal(data, &snap); err != nil {
			c.logger.Warn("invalid snapshot", log.Error(err))
			continue
		}
		c.handlerMutex.RLock()
		for _, h := range c.handlers {
			h(snap)
		}
		c.handlerMutex.RUnlock()
	}
}

func (c *Client) closeDone() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// Health fetches /healthz.
func (c *Client) Health(ctx context.Context) (Health, error) {
	target, err := c.endpoint("http", "/healthz")
	if err != nil {
		return Health{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Health{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Health{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("healthz: %s", resp.Status)
	}
	var h Health
	if err = json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection and waits for the read loop.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := c.conn.Close()
	c.workerGroup.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
