package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/homelink-core/internal/infrastructure/config"
)

// ConnState is the transport session state.
// Exactly one value holds at any instant; it is mutated only by the
// connection manager and the reconnect scheduler.
type ConnState int32

// Connection states.
const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns the state name for logging.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client is the device communication gateway.
//
// It owns the MQTT session: connection lifecycle, last-will
// registration, wildcard subscriptions, command publishing, and the
// demultiplexing of inbound device events to per-device observers.
//
// Reconnection after unexpected loss is handled by this layer, not by
// the paho library, so the state machine is always observable:
//
//	Disconnected -> Connecting -> Connected
//	Connected -> Reconnecting -> Connecting (on unexpected loss)
//	any state -> Disconnected (on explicit Close)
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Transport callbacks arrive on paho-owned goroutines and are
//     treated as concurrent with application calls.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	// state is the connection state machine value.
	state   ConnState
	stateMu sync.RWMutex

	// subs tracks active wildcard subscriptions for this session.
	subs *subscriptionSet

	// hub demultiplexes inbound events to per-device observers.
	hub *eventHub

	// reconnecting guards against concurrent reconnect loops.
	reconnecting atomic.Bool

	// done is closed on explicit shutdown; it cancels the reconnect loop.
	done     chan struct{}
	doneOnce sync.Once

	// logger for lifecycle and drop logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a gateway client. It does not connect; call Connect.
//
// eventBuffer is the per-observer buffer capacity for inbound device
// events (the configured gateway.event_buffer, default 100).
func New(cfg config.MQTTConfig, eventBuffer int) *Client {
	if eventBuffer <= 0 {
		eventBuffer = defaultEventBuffer
	}

	c := &Client{
		cfg:    cfg,
		subs:   newSubscriptionSet(),
		hub:    newEventHub(eventBuffer),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}

	opts := buildClientOptions(cfg)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect establishes the MQTT session.
//
// Calling Connect while already connected is a no-op, as is calling it
// while the reconnect scheduler is retrying: the scheduler owns retry
// timing, and a second in-flight attempt would race it. On success the
// client subscribes to the device state and status wildcards (once per
// session) and announces itself online. On failure the client enters
// Reconnecting and keeps retrying in the background with exponential
// backoff; the initial failure is still returned so the caller can log
// it.
func (c *Client) Connect() error {
	c.stateMu.Lock()
	if c.state != StateDisconnected {
		c.stateMu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.stateMu.Unlock()

	c.getLogger().Info("connecting to broker",
		"host", c.cfg.Broker.Host,
		"port", c.cfg.Broker.Port,
		"client_id", c.cfg.Broker.ClientID,
	)

	if err := c.attemptConnect(); err != nil {
		c.setState(StateReconnecting)
		go c.reconnectLoop()
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.handleConnected()
	return nil
}

// attemptConnect performs a single connection attempt with timeout.
func (c *Client) attemptConnect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout()) {
		return fmt.Errorf("timeout after %v", c.cfg.ConnectTimeout())
	}
	if err := token.Error(); err != nil {
		// paho reports an error when the session is already live
		// because another attempt won the race. The session being up
		// is the outcome we wanted; treat it as success.
		if c.client.IsConnected() {
			return nil
		}
		return err
	}
	return nil
}

// handleConnected runs the post-connect sequence: state transition,
// one-time subscription setup, and the online announcement.
func (c *Client) handleConnected() {
	c.setState(StateConnected)
	c.setupSubscriptions()
	c.publishAppStatus(true)
	c.getLogger().Info("connected to broker")
}

// handleConnectionLost is invoked by paho on unexpected session loss.
func (c *Client) handleConnectionLost(err error) {
	select {
	case <-c.done:
		// Explicit shutdown in progress; stay Disconnected.
		c.setState(StateDisconnected)
		return
	default:
	}

	c.getLogger().Warn("connection lost", "error", err)
	c.setState(StateReconnecting)
	go c.reconnectLoop()
}

// Close shuts the gateway down.
//
// It cancels any reconnect loop, announces a graceful offline status
// (distinct from the last-will crash status), releases the transport
// handle, and clears the subscription registry unconditionally.
func (c *Client) Close() error {
	c.doneOnce.Do(func() {
		close(c.done)
	})

	if c.IsConnected() {
		c.publishAppStatus(false)
	}

	c.client.Disconnect(disconnectQuiesce)
	c.subs.clear()
	c.setState(StateDisconnected)

	c.getLogger().Info("gateway closed")
	return nil
}

// IsConnected reports whether the session is currently usable.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected && c.client.IsConnected()
}

// State returns the current connection state machine value.
func (c *Client) State() ConnState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// setState transitions the connection state machine.
func (c *Client) setState(state ConnState) {
	c.stateMu.Lock()
	prev := c.state
	c.state = state
	c.stateMu.Unlock()

	if prev != state {
		c.getLogger().Debug("connection state changed",
			"from", prev.String(),
			"to", state.String(),
		)
	}
}

// HealthCheck verifies the gateway session is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("gateway health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// publishAppStatus announces the application as online or offline on
// the app status topic. Retained so late subscribers see the latest.
func (c *Client) publishAppStatus(online bool) {
	token := c.client.Publish(Topics{}.AppStatus(), byte(c.cfg.QoS), true, encodeAppStatus(online))
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		c.getLogger().Warn("app status publish failed", "online", online)
	}
}

// SetLogger sets a logger for lifecycle, drop and error logging.
// If not set, the gateway is silent.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
	c.hub.setLogger(logger)
}

// getLogger returns the current logger.
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}
