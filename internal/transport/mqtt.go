package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Speshl/gorrc_remote/internal/config"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const mqttQoS = 1

var mqttConnectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Warnf("mqtt connection lost: %s", err.Error())
}

// NewMQTTClient builds a paho client for the broker. It auto reconnects once the first connect succeeds,
// and onConnect, when set, runs after every connect so subscriptions can be restored.
func NewMQTTClient(cfg config.MQTTConfig, clientId string, onConnect mqtt.OnConnectHandler) mqtt.Client {
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientId)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(client mqtt.Client) {
		log.Println("connected to mqtt broker")
		if onConnect != nil {
			onConnect(client)
		}
	}
	opts.OnConnectionLost = mqttConnectLostHandler
	opts.SetAutoReconnect(true)
	return mqtt.NewClient(opts)
}

// MQTT publishes each command line to a topic the vehicle subscribes to.
type MQTT struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
}

func NewMQTT(client mqtt.Client, topic string, timeout time.Duration) *MQTT {
	return &MQTT{
		client:  client,
		topic:   topic,
		timeout: timeout,
	}
}

func (m *MQTT) Connect(ctx context.Context) error {
	return waitToken(m.client.Connect(), m.timeout, "connect")
}

// Connected stays true while paho is reconnecting on its own.
func (m *MQTT) Connected() bool {
	return m.client.IsConnected()
}

func (m *MQTT) Send(ctx context.Context, cmd string) error {
	if !m.client.IsConnectionOpen() {
		return ErrUnavailable
	}
	err := waitToken(m.client.Publish(m.topic, mqttQoS, false, cmd+LineTerminator), m.timeout, "publish")
	if err != nil {
		return sendFailure(err)
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

// SubscribeLines hands every line published on topic to handler.
func SubscribeLines(client mqtt.Client, topic string, timeout time.Duration, handler func(line string)) error {
	token := client.Subscribe(topic, mqttQoS, func(c mqtt.Client, msg mqtt.Message) {
		for _, line := range strings.Split(string(msg.Payload()), LineTerminator) {
			line = strings.TrimSpace(line)
			if line != "" {
				handler(line)
			}
		}
	})
	err := waitToken(token, timeout, "subscribe")
	if err != nil {
		return err
	}
	log.Printf("subscribed to topic: %s", topic)
	return nil
}

func waitToken(token mqtt.Token, timeout time.Duration, op string) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt %s timed out after %s", op, timeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("mqtt %s failed - %w", op, token.Error())
	}
	return nil
}
