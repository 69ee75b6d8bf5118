package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSendsQuery(t *testing.T) {
	queries := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DrivePath, r.URL.Path)
		queries <- r.URL.RawQuery
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	h := NewHTTP(server.URL, time.Second)
	require.NoError(t, h.Send(context.Background(), "ud=120&lr=-40"))
	assert.Equal(t, "ud=120&lr=-40", <-queries)
}

func TestHTTPBadStatusIsSendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewHTTP(server.URL, time.Second).Send(context.Background(), "ud=0&lr=0")
	assert.ErrorIs(t, err, ErrSendFailure)
}

func TestHTTPUnreachableIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := strings.TrimPrefix(server.URL, "http://")
	server.Close()

	err := NewHTTP(addr, time.Second).Send(context.Background(), "ud=0&lr=0")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func newLineServer(t *testing.T, lines chan<- string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SocketPath, r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %s", err.Error())
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			lines <- string(msg)
		}
	}))
}

func TestWebSocketSendsLines(t *testing.T) {
	lines := make(chan string, 4)
	server := newLineServer(t, lines)
	defer server.Close()

	ws := NewWebSocket(strings.TrimPrefix(server.URL, "http://"), time.Second)
	assert.ErrorIs(t, ws.Send(context.Background(), "CMD_UD 3 10"), ErrUnavailable)

	require.NoError(t, ws.Connect(context.Background()))
	assert.True(t, ws.Connected())

	require.NoError(t, ws.Send(context.Background(), "CMD_UD 3 10"))
	require.NoError(t, ws.Send(context.Background(), "CMD_LR 5 0"))
	assert.Equal(t, "CMD_UD 3 10\n", <-lines)
	assert.Equal(t, "CMD_LR 5 0\n", <-lines)

	require.NoError(t, ws.Close())
	assert.False(t, ws.Connected())
	assert.ErrorIs(t, ws.Send(context.Background(), "CMD_UD 3 10"), ErrUnavailable)
}

func TestWebSocketDropsClosedConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	ws := NewWebSocket(server.URL[len("http://"):], time.Second)
	require.NoError(t, ws.Connect(context.Background()))
	assert.Eventually(t, func() bool { return !ws.Connected() }, time.Second, 10*time.Millisecond)
}

type fakeConnector struct {
	lock      sync.Mutex
	failFirst int
	attempts  int
	connected bool
	closed    bool
}

func (f *fakeConnector) Connect(ctx context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.attempts++
	if f.attempts <= f.failFirst {
		return errors.New("refused")
	}
	f.connected = true
	return nil
}

func (f *fakeConnector) Connected() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.connected
}

func (f *fakeConnector) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.closed = true
	f.connected = false
	return nil
}

func TestMaintainReconnectsUntilCancelled(t *testing.T) {
	conn := &fakeConnector{failFirst: 2}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Maintain(ctx, conn, 5*time.Millisecond) }()

	require.Eventually(t, conn.Connected, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	conn.lock.Lock()
	defer conn.lock.Unlock()
	assert.Equal(t, 3, conn.attempts)
	assert.False(t, conn.closed, "closing is left to the caller")
}

func TestDataChannelUnopenedIsUnavailable(t *testing.T) {
	d := NewDataChannel("127.0.0.1:1", uuid.New(), time.Second)
	assert.False(t, d.Connected())
	assert.ErrorIs(t, d.Send(context.Background(), "CMD_UD 3 10"), ErrUnavailable)
	assert.NoError(t, d.Close())
}

func TestDataChannelRejectedOffer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, OfferPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		http.Error(w, "busy", http.StatusConflict)
	}))
	defer server.Close()

	d := NewDataChannel(server.URL, uuid.New(), 2*time.Second)
	err := d.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offer rejected")
	assert.False(t, d.Connected())
}

func TestSocketIOUnconnectedIsUnavailable(t *testing.T) {
	s := NewSocketIO("127.0.0.1:1", uuid.New().String(), uuid.New())
	assert.False(t, s.Connected())
	assert.ErrorIs(t, s.Send(context.Background(), "CMD_UD 3 10"), ErrUnavailable)
	assert.NoError(t, s.Close())
}
