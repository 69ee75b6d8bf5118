package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Speshl/gorrc_remote/internal/models"
	"github.com/Speshl/gorrc_remote/internal/transport"
	"github.com/Speshl/gorrc_remote/internal/vehicle"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pion/webrtc/v3"
	log "github.com/sirupsen/logrus"
)

const (
	StatusPath      = "/status"
	shutdownTimeout = 5 * time.Second
	gatherTimeout   = 10 * time.Second
)

// Server is the vehicle side of every transport the remote can use.
type Server struct {
	app    *fiber.App
	car    *vehicle.Car
	parser vehicle.LineParser
	listen string

	lock  sync.Mutex
	peers []*webrtc.PeerConnection
}

func NewServer(listen string, car *vehicle.Car, parser vehicle.LineParser) *Server {
	s := &Server{
		car:    car,
		parser: parser,
		listen: listen,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "gorrc vehicle",
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})
	s.app.Use(recover.New())

	s.app.Get(transport.DrivePath, s.handleDrive)
	s.app.Get(StatusPath, s.handleStatus)
	s.app.Post(transport.OfferPath, s.handleOffer)

	s.app.Use(transport.SocketPath, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get(transport.SocketPath, websocket.New(s.handleSocket))
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until ctx is done, then shuts down and closes any peer connections.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		log.Printf("vehicle server listening on %s", s.listen)
		errChan <- s.app.Listen(s.listen)
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("vehicle server stopped - %w", err)
	case <-ctx.Done():
	}

	log.Println("shutting down vehicle server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.app.ShutdownWithContext(shutdownCtx)
	if err != nil {
		log.Warnf("vehicle server forced to shutdown - %s", err.Error())
	}
	s.closePeers()
	return ctx.Err()
}

// HandleLines applies every newline separated pin command in payload. Bad lines are logged and skipped.
func (s *Server) HandleLines(payload string, source string) {
	for _, line := range strings.Split(payload, transport.LineTerminator) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		err := s.car.ApplyLine(s.parser, line)
		if err != nil {
			log.Warnf("ignoring %s command - %s", source, err.Error())
		}
	}
}

func (s *Server) handleDrive(c *fiber.Ctx) error {
	err := s.car.ApplyQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.SendString("OK")
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.car.Status())
}

func (s *Server) handleSocket(conn *websocket.Conn) {
	log.Printf("command socket connected: %s", conn.RemoteAddr())
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("command socket read error: %s", err.Error())
			}
			break
		}
		if mt != websocket.TextMessage {
			log.Debugf("ignoring non-text socket message type: %d", mt)
			continue
		}
		s.HandleLines(string(msg), "socket")
	}
	log.Printf("command socket disconnected: %s", conn.RemoteAddr())
}

// handleOffer answers a remote's offer. The newest peer replaces any previous one.
func (s *Server) handleOffer(c *fiber.Ctx) error {
	offer := models.Offer{}
	err := models.Decode(string(c.Body()), &offer)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	peer, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("failed creating peer connection - %w", err)
	}

	peer.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Printf("connection state for %s has changed: %s", offer.SessionId, state.String())
	})
	peer.OnDataChannel(func(d *webrtc.DataChannel) {
		log.Printf("new data channel: %s", d.Label())
		if d.Label() != models.CommandChannelLabel {
			log.Warnf("recieved unsupported data channel: %s", d.Label())
			return
		}
		d.OnMessage(func(msg webrtc.DataChannelMessage) {
			s.HandleLines(string(msg.Data), "data channel")
		})
	})

	answer, err := s.answer(peer, offer.Offer)
	if err != nil {
		peer.Close()
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	s.replacePeers(peer)
	log.Printf("answered offer from session %s", offer.SessionId)
	return c.JSON(models.Answer{
		Answer:    answer,
		SessionId: offer.SessionId,
	})
}

func (s *Server) answer(peer *webrtc.PeerConnection, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	err := peer.SetRemoteDescription(offer)
	if err != nil {
		return nil, fmt.Errorf("failed to set remote description - %w", err)
	}

	answer, err := peer.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create answer - %w", err)
	}

	// non-trickle, the remote only gets this one reply
	gatherComplete := webrtc.GatheringCompletePromise(peer)
	err = peer.SetLocalDescription(answer)
	if err != nil {
		return nil, fmt.Errorf("failed to set local description - %w", err)
	}

	select {
	case <-gatherComplete:
	case <-time.After(gatherTimeout):
		return nil, errors.New("ice gathering timed out")
	}
	return peer.LocalDescription(), nil
}

func (s *Server) replacePeers(peer *webrtc.PeerConnection) {
	s.lock.Lock()
	old := s.peers
	s.peers = []*webrtc.PeerConnection{peer}
	s.lock.Unlock()

	for _, p := range old {
		p.Close()
	}
}

func (s *Server) closePeers() {
	s.lock.Lock()
	old := s.peers
	s.peers = nil
	s.lock.Unlock()

	for _, p := range old {
		p.Close()
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
