package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultBrokerURL is used when no broker is configured.
const DefaultBrokerURL = "tcp://localhost:1883"

const opTimeout = 10 * time.Second

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Subscriber registers a handler for a topic.
type Subscriber interface {
	Subscribe(topic string, handler paho.MessageHandler) error
}

// Conn is the subset of Client the minigame bridge needs.
type Conn interface {
	Publisher
	Subscriber
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BrokerURL string
	ClientID  string
	// OnConnect runs after every successful (re)connect.
	OnConnect func()
	// OnConnectionLost runs when the broker connection drops.
	OnConnectionLost func(err error)
}

// Client wraps the Paho MQTT client for the narrative engine.
type Client struct {
	client paho.Client
	broker string
	mu     sync.Mutex
}

// NewClient creates a new MQTT client but does not connect.
func NewClient(cfg ClientConfig) *Client {
	broker := cfg.BrokerURL
	if broker == "" {
		broker = DefaultBrokerURL
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	if cfg.OnConnect != nil {
		onConnect := cfg.OnConnect
		opts.SetOnConnectHandler(func(paho.Client) { onConnect() })
	}
	if cfg.OnConnectionLost != nil {
		onLost := cfg.OnConnectionLost
		opts.SetConnectionLostHandler(func(_ paho.Client, err error) { onLost(err) })
	}

	return &Client{
		client: paho.NewClient(opts),
		broker: broker,
	}
}

// BrokerURL returns the broker this client connects to.
func (c *Client) BrokerURL() string {
	return c.broker
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(opTimeout) {
		return &ConnectTimeoutError{}
	}
	if err := token.Error(); err != nil {
		return err
	}
	return nil
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(opTimeout) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Publish sends payload to topic at QoS 1.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(opTimeout) {
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// SubscribeTimeoutError indicates subscription timed out.
type SubscribeTimeoutError struct {
	Topic string
}

func (e *SubscribeTimeoutError) Error() string {
	return "mqtt subscribe timeout: " + e.Topic
}

// PublishTimeoutError indicates a publish was not acknowledged in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}
