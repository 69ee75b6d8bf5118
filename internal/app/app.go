package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Speshl/gorrc_remote/internal/config"
	"github.com/Speshl/gorrc_remote/internal/drive"
	"github.com/Speshl/gorrc_remote/internal/gamepad"
	"github.com/Speshl/gorrc_remote/internal/linkstats"
	"github.com/Speshl/gorrc_remote/internal/remote"
	"github.com/Speshl/gorrc_remote/internal/transport"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type App struct {
	ctx       context.Context
	ctxCancel context.CancelFunc

	cfg config.Config

	sender     transport.Transport
	connector  transport.Connector
	dispatcher *drive.Dispatcher
	session    *remote.Session

	gamepad *gamepad.Gamepad
	link    *linkstats.Monitor
}

func NewApp(cfg config.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	sessionId := uuid.New()
	sender, connector, protocol, err := NewTransport(cfg, sessionId)
	if err != nil {
		cancel()
		return nil, err
	}

	dispatcher := drive.NewDispatcher(sender, protocol, drive.Options{
		Deadband:    drive.DefaultDeadband,
		ResendAfter: cfg.RemoteCfg.ResendAfter,
	})

	return &App{
		cfg:        cfg,
		ctx:        ctx,
		ctxCancel:  cancel,
		sender:     sender,
		connector:  connector,
		dispatcher: dispatcher,
		session:    remote.NewSession(sessionId, dispatcher, cfg.RemoteCfg.HalfExtent),
	}, nil
}

// NewTransport builds the configured transport and the protocol it speaks. connector is nil for connectionless transports.
func NewTransport(cfg config.Config, sessionId uuid.UUID) (transport.Transport, transport.Connector, drive.Protocol, error) {
	remoteCfg := cfg.RemoteCfg
	pins := drive.NewPinProtocol(drive.PinMap{
		Forward: cfg.PinCfg.Forward,
		Reverse: cfg.PinCfg.Reverse,
		Left:    cfg.PinCfg.Left,
		Right:   cfg.PinCfg.Right,
	})

	switch remoteCfg.Transport {
	case config.TransportHTTP:
		return transport.NewHTTP(remoteCfg.Server, remoteCfg.SendTimeout), nil, drive.QueryProtocol{}, nil
	case config.TransportWebSocket:
		ws := transport.NewWebSocket(remoteCfg.Server, remoteCfg.SendTimeout)
		return ws, ws, pins, nil
	case config.TransportSocketIO:
		s := transport.NewSocketIO(remoteCfg.Server, remoteCfg.Key, sessionId)
		return s, s, pins, nil
	case config.TransportMQTT:
		client := transport.NewMQTTClient(cfg.MQTTCfg, "gorrc-remote-"+sessionId.String(), nil)
		m := transport.NewMQTT(client, cfg.MQTTCfg.Topic, remoteCfg.SendTimeout)
		return m, m, pins, nil
	case config.TransportWebRTC:
		d := transport.NewDataChannel(remoteCfg.Server, sessionId, remoteCfg.SendTimeout)
		return d, d, pins, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported transport: %s", remoteCfg.Transport)
	}
}

func (a *App) Start() error {
	group, groupCtx := errgroup.WithContext(a.ctx)
	log.Printf("starting remote session %s over %s to %s", a.session.Id, a.cfg.RemoteCfg.Transport, a.cfg.RemoteCfg.Server)

	if a.cfg.GamepadCfg.Enabled {
		pad, err := gamepad.Open(a.cfg.GamepadCfg, a.cfg.RemoteCfg.HalfExtent)
		if err != nil {
			return fmt.Errorf("error opening gamepad - %w", err)
		}
		a.gamepad = pad
	}

	if a.cfg.LinkCfg.Enabled {
		link, err := linkstats.NewMonitor(a.cfg.LinkCfg)
		if err != nil {
			log.Warnf("link stats disabled - %s", err.Error())
		} else {
			a.link = link
		}
	}

	defer a.shutdown()

	//kill listener
	group.Go(func() error {
		signalChannel := make(chan os.Signal, 1)
		signal.Notify(signalChannel, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(signalChannel)
		select {
		case sig := <-signalChannel:
			log.Printf("received signal: %s", sig)
			a.ctxCancel()
			return nil
		case <-groupCtx.Done():
			log.Println("closing signal goroutine")
			return groupCtx.Err()
		}
	})

	if a.connector != nil {
		group.Go(func() error {
			return transport.Maintain(groupCtx, a.connector, a.cfg.RemoteCfg.ReconnectInterval)
		})
	}

	group.Go(func() error {
		return a.session.KeepAlive(groupCtx, a.cfg.RemoteCfg.TickInterval)
	})

	if a.gamepad != nil {
		group.Go(func() error {
			return a.gamepad.Start(groupCtx, a.session)
		})
	}

	if a.link != nil {
		group.Go(func() error {
			return a.link.Start(groupCtx)
		})
	}

	err := group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("remote stopping due to error - %w", err)
	}
	log.Println("context was cancelled")
	return nil
}

func (a *App) Stop() {
	a.ctxCancel()
}

// shutdown sends a last neutral command before the connection is closed.
func (a *App) shutdown() {
	log.Println("stopping...")
	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.RemoteCfg.SendTimeout)
	defer cancel()

	err := a.session.Stop(stopCtx)
	if err != nil {
		log.Warnf("final stop was not delivered - %s", err.Error())
	}

	stats := a.dispatcher.Stats()
	log.Printf("session %s sent:%d suppressed:%d failed:%d stops:%d", a.session.Id, stats.Sent, stats.Suppressed, stats.Failed, stats.Stops)

	if a.connector != nil {
		err = a.connector.Close()
		if err != nil {
			log.Warnf("failed closing transport - %s", err.Error())
		}
	}
}
