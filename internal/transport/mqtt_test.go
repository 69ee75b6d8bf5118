package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Speshl/gorrc_remote/internal/config"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	mqtt.Token
	done bool
	err  error
}

func (f *fakeToken) WaitTimeout(time.Duration) bool { return f.done }
func (f *fakeToken) Error() error                   { return f.err }

type published struct {
	topic   string
	payload string
}

type fakeMQTTClient struct {
	mqtt.Client
	open      bool
	token     *fakeToken
	published []published
}

func (f *fakeMQTTClient) IsConnected() bool      { return f.open }
func (f *fakeMQTTClient) IsConnectionOpen() bool { return f.open }
func (f *fakeMQTTClient) Connect() mqtt.Token    { return f.token }
func (f *fakeMQTTClient) Disconnect(uint)        { f.open = false }

func (f *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.published = append(f.published, published{topic: topic, payload: payload.(string)})
	return f.token
}

func TestMQTTPublishesLines(t *testing.T) {
	client := &fakeMQTTClient{open: true, token: &fakeToken{done: true}}
	m := NewMQTT(client, "gorrc/drive", time.Second)

	require.NoError(t, m.Send(context.Background(), "CMD_UD 3 200"))
	assert.Equal(t, []published{{topic: "gorrc/drive", payload: "CMD_UD 3 200\n"}}, client.published)
}

func TestMQTTSendErrors(t *testing.T) {
	client := &fakeMQTTClient{token: &fakeToken{done: true}}
	m := NewMQTT(client, "gorrc/drive", time.Second)
	assert.ErrorIs(t, m.Send(context.Background(), "CMD_UD 3 200"), ErrUnavailable)

	client.open = true
	client.token = &fakeToken{done: false}
	assert.ErrorIs(t, m.Send(context.Background(), "CMD_UD 3 200"), ErrSendFailure)

	client.token = &fakeToken{done: true, err: errors.New("not authorized")}
	err := m.Send(context.Background(), "CMD_UD 3 200")
	assert.ErrorIs(t, err, ErrSendFailure)
	assert.Contains(t, err.Error(), "not authorized")
}

func TestMQTTConnect(t *testing.T) {
	client := &fakeMQTTClient{token: &fakeToken{done: true, err: errors.New("refused")}}
	m := NewMQTT(client, "gorrc/drive", time.Second)
	assert.Error(t, m.Connect(context.Background()))

	client.token = &fakeToken{done: true}
	client.open = true
	assert.NoError(t, m.Connect(context.Background()))
	assert.True(t, m.Connected())

	require.NoError(t, m.Close())
	assert.False(t, m.Connected())
}

func TestNewMQTTClientOptions(t *testing.T) {
	client := NewMQTTClient(config.MQTTConfig{Broker: "10.0.0.2:1883", Username: "car"}, "remote-1", nil)
	reader := client.OptionsReader()

	require.Len(t, reader.Servers(), 1)
	assert.Equal(t, "tcp://10.0.0.2:1883", reader.Servers()[0].String())
	assert.Equal(t, "remote-1", reader.ClientID())
	assert.Equal(t, "car", reader.Username())
	assert.True(t, reader.AutoReconnect())
}
