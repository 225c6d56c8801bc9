package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"advancedwind/internal/config"
	"advancedwind/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./advancedwind.yaml", "Path to YAML config")
	flag.Parse()

	logs := web.NewLogBuffer(1000)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	status := web.NewStatus()
	room := web.NewRoom()
	go room.Run(ctx)
	d, err := newDaemon(cfg, status, room)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer d.close()

	log.Printf("advancedwind starting session=%s", d.session.ID())
	if cfg.Output.Dest != "" {
		log.Printf("nmea output dest=%s talker=%s", cfg.Output.Dest, cfg.Output.Talker)
	}

	if cfg.Web.Listen != "" {
		go func() {
			log.Printf("web listen=%s", cfg.Web.Listen)
			if err := web.Serve(ctx, cfg.Web.Listen, web.Handler(status, d.session, logs, room)); err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
				cancel()
			}
		}()
	}

	if err := d.run(ctx); err != nil {
		log.Printf("input stopped: %v", err)
	}
	log.Printf("advancedwind stopping")
}
