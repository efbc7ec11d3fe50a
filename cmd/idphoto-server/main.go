package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/menta2k/id-photo/internal/config"
	"github.com/menta2k/id-photo/internal/logutil"
	"github.com/menta2k/id-photo/pkg/server"
)

func main() {
	var configPath, addr, logFile string
	var verbose bool

	flag.StringVar(&configPath, "config", config.GetConfigPath(), "config file")
	flag.StringVar(&addr, "addr", "", "listen address (default from config or $"+config.EnvAddr+")")
	flag.StringVar(&logFile, "log", "", "write logs to this file instead of stderr")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	closer, err := logutil.Setup(verbose, logFile)
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	srv, err := server.New(server.Options{
		Provider:     cfg.ProviderSettings(),
		ProxyTarget:  cfg.Server.ProxyTarget,
		AllowOrigins: cfg.Server.AllowOrigins,
		BodyLimit:    cfg.Server.BodyLimit,
		Preset:       cfg.Render.Preset,
		DPI:          cfg.Render.DPI,
		Interpolator: cfg.Render.Interpolator,
	})
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		log.Printf("listening on %s (provider=%s key=%s)", cfg.Server.Addr, cfg.Provider.Name, logutil.RedactKey(cfg.Provider.APIKey))
		if err := srv.Start(cfg.Server.Addr); err != nil {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
