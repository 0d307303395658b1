package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jeffmoIA/netdesk/config"
	"github.com/jeffmoIA/netdesk/internal/adminapi"
	"github.com/jeffmoIA/netdesk/internal/app"
	"github.com/jeffmoIA/netdesk/internal/webserver"
)

var (
	configFile = flag.String("c", "netdesk.yml", "configuration file path")
	initDB     = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
	showVer    = flag.Bool("v", false, "print version and exit")
)

var version = "dev"

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println("netdesk", version)
		return
	}

	cfg := config.LoadConfig(*configFile)

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initDB {
		application.InitDb()
		zap.L().Info("database initialized")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application.StartBackgroundJobs(ctx)

	webserver.Init(application)
	adminapi.InitRouter()

	errCh := make(chan error, 1)
	go func() {
		errCh <- webserver.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zap.L().Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		_ = webserver.Shutdown()
	case err := <-errCh:
		if err != nil {
			zap.L().Error("web server stopped", zap.Error(err))
		}
	}
}
