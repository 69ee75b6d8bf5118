package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Speshl/gorrc_remote/internal/models"
	"github.com/google/uuid"
	socketio "github.com/googollee/go-socket.io"
	log "github.com/sirupsen/logrus"
)

const (
	ConnectEvent = "remote_connect"
	DriveEvent   = "drive"
)

// SocketIO emits each command as a drive event on a socket.io connection.
type SocketIO struct {
	uri       string
	key       string
	sessionId uuid.UUID

	lock      sync.Mutex
	client    *socketio.Client
	connected bool
}

func NewSocketIO(server, key string, sessionId uuid.UUID) *SocketIO {
	uri := server
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		uri = "http://" + uri
	}
	return &SocketIO{
		uri:       uri,
		key:       key,
		sessionId: sessionId,
	}
}

func (s *SocketIO) Connect(ctx context.Context) error {
	client, err := socketio.NewClient(s.uri, nil)
	if err != nil {
		return fmt.Errorf("error creating socket.io client - %w", err)
	}

	client.OnEvent("reply", func(c socketio.Conn, msg string) {
		log.Debugf("vehicle replied: %s", msg)
	})
	client.OnDisconnect(func(c socketio.Conn, reason string) {
		log.Warnf("socket.io disconnected: %s", reason)
		s.lock.Lock()
		if s.client == client {
			s.connected = false
		}
		s.lock.Unlock()
	})

	log.Printf("attempting to connect to %s...", s.uri)
	err = client.Connect() // needs at least one handler registered
	if err != nil {
		return fmt.Errorf("error connecting to server - %w", err)
	}

	encodedMsg, err := models.Encode(models.ConnectReq{
		Key:       s.key,
		SessionId: s.sessionId,
	})
	if err != nil {
		client.Close()
		return err
	}
	client.Emit(ConnectEvent, encodedMsg)
	log.Println("connected to server")

	s.lock.Lock()
	old := s.client
	s.client = client
	s.connected = true
	s.lock.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

func (s *SocketIO) Connected() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.connected
}

func (s *SocketIO) Send(ctx context.Context, cmd string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.connected || s.client == nil {
		return ErrUnavailable
	}
	s.client.Emit(DriveEvent, cmd)
	return nil
}

func (s *SocketIO) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.connected = false
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
