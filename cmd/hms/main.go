package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/medicore/hms/config"
	"github.com/medicore/hms/internal/adminapi"
	"github.com/medicore/hms/internal/app"
	"github.com/medicore/hms/internal/webserver"
	"go.uber.org/zap"
)

var (
	version  = "develop"
	h        = flag.Bool("h", false, "help usage")
	showVer  = flag.Bool("v", false, "show version")
	conffile = flag.String("c", "", "config yaml file")
	dev      = flag.Bool("dev", false, "run develop mode")
	initdb   = flag.Bool("initdb", false, "drop all tables and init database")
	migrate  = flag.Bool("migrate", false, "migrate database schema and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version)
		os.Exit(0)
	}

	if *h {
		flag.Usage()
		os.Exit(0)
	}

	_ = godotenv.Load()

	cfg := config.LoadConfig(*conffile)
	if *dev {
		cfg.System.Debug = true
		cfg.Logger.Mode = "development"
	}

	application := app.NewApplication(cfg)

	if *initdb {
		application.Init(cfg)
		application.InitDb()
		application.Release()
		os.Exit(0)
	}

	application.Init(cfg)
	defer application.Release()

	if *migrate {
		if err := application.MigrateDB(true); err != nil {
			zap.S().Fatalf("migrate database: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	application.StartBackgroundJobs(ctx)

	webserver.Init(application)
	adminapi.Init()

	errs := make(chan error, 1)
	go func() {
		errs <- webserver.Listen()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		zap.S().Infof("received %s, shutting down", sig)
	case err := <-errs:
		if err != nil {
			zap.S().Errorf("admin api stopped: %v", err)
		}
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := webserver.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorf("admin api shutdown: %v", err)
	}
}
