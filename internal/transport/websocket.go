package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// WebSocket writes newline terminated commands over a persistent socket to the vehicle's /ws endpoint.
type WebSocket struct {
	url          string
	dialer       *websocket.Dialer
	writeTimeout time.Duration

	lock sync.Mutex
	conn *websocket.Conn
}

func NewWebSocket(server string, timeout time.Duration) *WebSocket {
	url := server
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		url = "ws://" + url
	}
	if !strings.HasSuffix(url, SocketPath) {
		url = strings.TrimSuffix(url, "/") + SocketPath
	}

	return &WebSocket{
		url:          url,
		writeTimeout: timeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
		},
	}
}

func (w *WebSocket) Connect(ctx context.Context) error {
	conn, _, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("error dialing %s - %w", w.url, err)
	}
	log.Printf("connected to %s", w.url)

	w.lock.Lock()
	old := w.conn
	w.conn = conn
	w.lock.Unlock()

	if old != nil {
		old.Close()
	}

	go w.readLoop(conn)
	return nil
}

func (w *WebSocket) Connected() bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.conn != nil
}

func (w *WebSocket) Send(ctx context.Context, cmd string) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.conn == nil {
		return ErrUnavailable
	}

	deadline := time.Now().Add(w.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	err := w.conn.SetWriteDeadline(deadline)
	if err == nil {
		err = w.conn.WriteMessage(websocket.TextMessage, []byte(cmd+LineTerminator))
	}
	if err != nil {
		w.conn.Close()
		w.conn = nil
		return sendFailure(err)
	}
	return nil
}

func (w *WebSocket) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.conn == nil {
		return nil
	}
	_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := w.conn.Close()
	w.conn = nil
	return err
}

// readLoop drains the socket so control frames are handled, and drops the connection once it fails.
func (w *WebSocket) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("websocket read error: %s", err.Error())
			}
			break
		}
		log.Debugf("vehicle replied: %s", strings.TrimSpace(string(msg)))
	}

	w.lock.Lock()
	if w.conn == conn {
		w.conn.Close()
		w.conn = nil
	}
	w.lock.Unlock()
}
