package main

import (
	"github.com/Speshl/gorrc_remote/internal/app"
	"github.com/Speshl/gorrc_remote/internal/config"
	"github.com/Speshl/gorrc_remote/internal/logging"
	log "github.com/sirupsen/logrus"
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

	remoteApp, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("failed creating remote: %s", err.Error())
	}

	err = remoteApp.Start()
	if err != nil {
		log.Printf("remote shutdown with error: %s", err.Error())
	} else {
		log.Println("remote shutdown successfully")
	}
}
