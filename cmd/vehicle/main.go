package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Speshl/gorrc_remote/internal/command/logdriver"
	pca9685 "github.com/Speshl/gorrc_remote/internal/command/pca9685"
	pipwm "github.com/Speshl/gorrc_remote/internal/command/pi_pwm"
	"github.com/Speshl/gorrc_remote/internal/config"
	"github.com/Speshl/gorrc_remote/internal/drive"
	"github.com/Speshl/gorrc_remote/internal/linkstats"
	"github.com/Speshl/gorrc_remote/internal/logging"
	"github.com/Speshl/gorrc_remote/internal/ranger"
	"github.com/Speshl/gorrc_remote/internal/server"
	"github.com/Speshl/gorrc_remote/internal/transport"
	"github.com/Speshl/gorrc_remote/internal/vehicle"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("invalid config: %s", err.Error())
	}

	closer, err := logging.Setup(cfg.LogCfg)
	if err != nil {
		log.Fatalf("failed setting up logging: %s", err.Error())
	}
	defer closer.Close()

	err = run(cfg)
	if err != nil {
		log.Printf("vehicle shutdown with error: %s", err.Error())
	} else {
		log.Println("vehicle shutdown successfully")
	}
}

func run(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sensor, err := newRanger(cfg)
	if err != nil {
		return err
	}

	car := vehicle.NewCar(cfg.VehicleCfg, newCommandDriver(cfg.CommandCfg), sensor)
	err = car.Init()
	if err != nil {
		return err
	}

	parser := vehicle.NewLineParser(drive.PinMap{
		Forward: cfg.PinCfg.Forward,
		Reverse: cfg.PinCfg.Reverse,
		Left:    cfg.PinCfg.Left,
		Right:   cfg.PinCfg.Right,
	})
	srv := server.NewServer(cfg.VehicleCfg.Listen, car, parser)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return car.Start(groupCtx)
	})
	group.Go(func() error {
		return srv.Start(groupCtx)
	})

	if cfg.VehicleCfg.SubscribeMQTT {
		client := transport.NewMQTTClient(cfg.MQTTCfg, "gorrc-vehicle-"+uuid.NewString(), func(c mqtt.Client) {
			go func() {
				err := transport.SubscribeLines(c, cfg.MQTTCfg.Topic, cfg.RemoteCfg.SendTimeout, func(line string) {
					srv.HandleLines(line, "mqtt")
				})
				if err != nil {
					log.Errorf("failed subscribing to %s - %s", cfg.MQTTCfg.Topic, err.Error())
				}
			}()
		})
		m := transport.NewMQTT(client, cfg.MQTTCfg.Topic, cfg.RemoteCfg.SendTimeout)
		group.Go(func() error {
			defer m.Close()
			return transport.Maintain(groupCtx, m, cfg.RemoteCfg.ReconnectInterval)
		})
	}

	if cfg.LinkCfg.Enabled {
		link, err := linkstats.NewMonitor(cfg.LinkCfg)
		if err != nil {
			log.Warnf("link stats disabled - %s", err.Error())
		} else {
			group.Go(func() error {
				return link.Start(groupCtx)
			})
		}
	}

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newCommandDriver(cfg config.CommandConfig) vehicle.CommandDriverIFace {
	switch cfg.CommandDriver {
	case config.DriverPCA9685:
		return pca9685.NewCommand(cfg)
	case config.DriverPiPWM:
		return pipwm.NewCommand(cfg)
	default:
		return logdriver.NewCommand()
	}
}

// newRanger returns nil when no sensor is fitted, the car then never sees an obstacle.
func newRanger(cfg config.Config) (vehicle.Ranger, error) {
	switch cfg.VehicleCfg.Ranger {
	case config.RangerHCSR04:
		r := ranger.NewHCSR04(cfg.CommandCfg)
		err := r.Init()
		if err != nil {
			return nil, fmt.Errorf("failed initializing ranger - %w", err)
		}
		return r, nil
	default:
		return nil, nil
	}
}
