package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
)

const (
	connectTimeout  = 10 * time.Second
	publishTimeout  = 5 * time.Second
	keepAlive       = 60 * time.Second
	disconnectGrace = 500 // milliseconds

	// maxPayloadSize caps one event; whole submodels ride on submodel.updated.
	maxPayloadSize = 1 << 20
)

// Logger is the logging surface used for connection state changes.
// *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Stats counts publish outcomes since Connect.
type Stats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
}

// Client publishes repository events to an MQTT broker.
//
// The connection reconnects on its own. While it is down, Publish fails
// fast with ErrNotConnected instead of queueing; events are notifications,
// not a log. All methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	topics Topics
	qos    byte
	id     string

	connected atomic.Bool
	published atomic.Uint64
	failed    atomic.Uint64

	mu           sync.RWMutex
	logger       Logger
	onConnect    func()
	onDisconnect func(error)
}

// status is the retained payload on Topics.Status.
type status struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(state, clientID, reason string) []byte {
	//nolint:errcheck // a struct of strings always marshals
	b, _ := json.Marshal(status{
		Status:    state,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

// Connect dials the broker and announces the repository online.
//
// Parameters:
//   - cfg: Broker, credentials, QoS and reconnect settings
//   - repositoryID: Repository segment of every topic, also used for the
//     status topic and last will
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed if the broker is unreachable within 10s
func Connect(cfg config.MQTTConfig, repositoryID string) (*Client, error) {
	c := &Client{
		topics: Topics{RepositoryID: repositoryID},
		qos:    byte(cfg.QoS), //nolint:gosec // validated to 0-2 by config
		id:     cfg.Broker.ClientID,
		logger: noopLogger{},
	}

	opts := c.options(cfg)
	c.paho = pahomqtt.NewClient(opts)

	token := c.paho.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: no answer from broker after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	// The OnConnect handler runs asynchronously; mark the state now so the
	// first Publish after Connect does not race it.
	c.connected.Store(true)
	return c, nil
}

// options translates cfg into paho options.
func (c *Client) options(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetWill(c.topics.Status(), string(statusPayload("offline", cfg.Broker.ClientID, "connection_lost")), 1, true).
		SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleConnectionLost(err) })

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

func (c *Client) handleConnect() {
	c.connected.Store(true)
	c.paho.Publish(c.topics.Status(), 1, true, statusPayload("online", c.id, ""))

	c.mu.RLock()
	logger, cb := c.logger, c.onConnect
	c.mu.RUnlock()
	logger.Info("MQTT connected", "status_topic", c.topics.Status())
	if cb != nil {
		cb()
	}
}

func (c *Client) handleConnectionLost(err error) {
	c.connected.Store(false)

	c.mu.RLock()
	logger, cb := c.logger, c.onDisconnect
	c.mu.RUnlock()
	logger.Warn("MQTT connection lost", "error", err)
	if cb != nil {
		cb(err)
	}
}

// Publish sends one message and waits for the broker to acknowledge it
// according to qos.
//
// Returns:
//   - error: ErrInvalidMessage, ErrNotConnected or ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "" || strings.ContainsAny(topic, "+#"):
		return fmt.Errorf("%w: topic %q", ErrInvalidMessage, topic)
	case qos > 2:
		return fmt.Errorf("%w: qos %d", ErrInvalidMessage, qos)
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrInvalidMessage, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		c.failed.Add(1)
		return ErrNotConnected
	}

	token := c.paho.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		c.failed.Add(1)
		return fmt.Errorf("%w: %s: no acknowledgement after %v", ErrPublishFailed, topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		c.failed.Add(1)
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	c.published.Add(1)
	return nil
}

// Topics returns the topic builder of the connected repository.
func (c *Client) Topics() Topics { return c.topics }

// QoS returns the configured quality of service for events.
func (c *Client) QoS() byte { return c.qos }

// Stats returns publish counters.
func (c *Client) Stats() Stats {
	return Stats{Published: c.published.Load(), Failed: c.failed.Load()}
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.connected.Load() && c.paho.IsConnected()
}

// HealthCheck fails when the connection is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close marks the repository offline and disconnects. The retained
// offline status replaces the last will, so consumers can tell a clean
// shutdown from a crash.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.paho.Publish(c.topics.Status(), 1, true, statusPayload("offline", c.id, "shutdown")).WaitTimeout(publishTimeout)
	}
	c.paho.Disconnect(disconnectGrace)
	c.connected.Store(false)
	return nil
}

// SetLogger sets the logger used for connection state changes.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// SetOnConnect registers a callback run after every (re)connect.
func (c *Client) SetOnConnect(cb func()) {
	c.mu.Lock()
	c.onConnect = cb
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback run when the connection drops.
func (c *Client) SetOnDisconnect(cb func(error)) {
	c.mu.Lock()
	c.onDisconnect = cb
	c.mu.Unlock()
}
