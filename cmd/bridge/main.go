// Package main is the entry point for the DMX-to-LAN lighting bridge.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/lacylights-go/dmxbridge/internal/capability"
	"github.com/lacylights-go/dmxbridge/internal/config"
	"github.com/lacylights-go/dmxbridge/internal/core"
	"github.com/lacylights-go/dmxbridge/internal/discovery"
	"github.com/lacylights-go/dmxbridge/internal/eventbus"
	"github.com/lacylights-go/dmxbridge/internal/ingress/artnet"
	"github.com/lacylights-go/dmxbridge/internal/ingress/sacn"
	"github.com/lacylights-go/dmxbridge/internal/logging"
	"github.com/lacylights-go/dmxbridge/internal/mapping"
	"github.com/lacylights-go/dmxbridge/internal/merger"
	"github.com/lacylights-go/dmxbridge/internal/poller"
	"github.com/lacylights-go/dmxbridge/internal/protocol"
	"github.com/lacylights-go/dmxbridge/internal/protocol/govee"
	"github.com/lacylights-go/dmxbridge/internal/protocol/lifx"
	"github.com/lacylights-go/dmxbridge/internal/sender"
	"github.com/lacylights-go/dmxbridge/internal/store"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	printBanner(cfg)

	logLevel := logrus.InfoLevel
	if cfg.IsDevelopment() {
		logLevel = logrus.DebugLevel
	}
	appLog := logging.New(logLevel)

	db, err := store.Connect(store.DBConfig{
		URL:         cfg.DatabaseURL,
		MaxIdleConn: 5,
		MaxOpenConn: 10,
		Debug:       cfg.IsDevelopment(),
	}, appLog)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = store.Close(db) }()

	deviceStore := store.NewGormStore(db)
	bus := eventbus.New()

	catalog, err := capability.LoadCatalog(cfg.CapabilityCatalogPath)
	if err != nil {
		log.Fatalf("Failed to load capability catalog: %v", err)
	}
	reported := capability.NewReported()
	caps := capability.Chain{catalog, reported}

	handlers := map[string]protocol.Handler{
		"govee": govee.New(catalog),
		"lifx":  lifx.New(reported),
	}

	merge := merger.New(appLog.With(logging.Fields{"component": "merger"}))

	engine := mapping.New(deviceStore, merge, caps, mapping.Config{
		DebounceSeconds:        cfg.DebounceSeconds,
		TraceContextIDs:        cfg.TraceContextIDs,
		TraceContextSampleRate: cfg.TraceContextSampleRate,
	}, appLog.With(logging.Fields{"component": "mapping"}), nil)

	dispatcher := sender.New(deviceStore, handlers, sender.Config{
		MaxSendRate:            cfg.DeviceMaxSendRate,
		SendBurst:              cfg.DeviceSendBurst,
		BackoffBase:            cfg.DeviceBackoffBase,
		BackoffFactor:          cfg.DeviceBackoffFactor,
		BackoffMax:             cfg.DeviceBackoffMax,
		QueuePollInterval:      cfg.DeviceQueuePollInterval,
		IdleWait:               cfg.DeviceIdleWait,
		MaxAttempts:            cfg.DeviceMaxAttempts,
		GraceDeadline:          cfg.SendGraceDeadline,
		MultipleCommandSpacing: cfg.GoveeMultipleCommandSpacing,
		DryRun:                 cfg.DryRun,
	}, appLog.With(logging.Fields{"component": "sender"}), nil)
	engine.OnEnqueued = dispatcher.Notify

	discoverySvc, err := discovery.New(deviceStore, reported, discovery.Config{
		Interval:        time.Duration(cfg.DiscoveryIntervalSeconds) * time.Second,
		ResponseTimeout: cfg.DiscoveryResponseTimeout,
		StaleAfter:      cfg.DiscoveryStaleAfter,
	}, appLog.With(logging.Fields{"component": "discovery"}), nil)
	if err != nil {
		log.Fatalf("Failed to bind discovery sockets: %v", err)
	}

	pollerSvc := poller.New(deviceStore, handlers, poller.Config{
		Enabled:          cfg.DevicePollEnabled && !cfg.DryRun,
		Interval:         cfg.DevicePollInterval,
		Timeout:          cfg.DevicePollTimeout,
		OfflineThreshold: cfg.DevicePollOfflineThreshold,
		RatePerSecond:    cfg.DevicePollRatePerSecond,
		RateBurst:        cfg.DevicePollRateBurst,
		BatchSize:        cfg.DevicePollBatchSize,
		FailureThreshold: cfg.SubsystemFailureThreshold,
		FailureCooldown:  cfg.SubsystemFailureCooldown,
	}, appLog.With(logging.Fields{"component": "poller"}), nil)

	artnetListener, err := artnet.New(cfg.ArtNetPort, appLog.With(logging.Fields{"component": "artnet"}), nil)
	if err != nil {
		log.Fatalf("Failed to bind Art-Net listener: %v", err)
	}
	sacnListener, err := sacn.New(sacn.Options{
		Port:      cfg.SACNPort,
		Multicast: cfg.SACNMulticast,
		Universes: cfg.SACNUniverses,
	}, appLog.With(logging.Fields{"component": "sacn"}), nil)
	if err != nil {
		log.Fatalf("Failed to bind sACN listener: %v", err)
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if err := engine.Start(rootCtx, bus); err != nil {
		log.Fatalf("Failed to load mappings: %v", err)
	}
	dispatcher.Start(rootCtx)

	go artnetListener.Run(rootCtx)
	go sacnListener.Run(rootCtx)
	go discoverySvc.Run(rootCtx)
	go pollerSvc.Run(rootCtx)
	go mergeFrames(rootCtx, engine, artnetListener.Frames, sacnListener.Frames)

	log.Println("Bridge running. Press Ctrl+C to stop.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down bridge...")

	discoverySvc.Stop()
	pollerSvc.Stop()
	artnetListener.Stop()
	sacnListener.Stop()
	cancelRoot()
	dispatcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	engine.Stop(shutdownCtx)

	log.Println("Bridge stopped")
}

// mergeFrames fans incoming Art-Net and sACN frames through the priority
// merger and, for whichever frame currently wins its universe, into the
// mapping engine. Dry-run mode suppresses sends at the sender (a discard
// transport) and skips the poller entirely, not merging/mapping itself, so
// reload and debounce behaviour stay observable either way.
func mergeFrames(ctx context.Context, engine *mapping.Engine, artnetFrames, sacnFrames <-chan core.DmxFrame) {
	for {
		var frame core.DmxFrame
		select {
		case <-ctx.Done():
			return
		case frame = <-artnetFrames:
		case frame = <-sacnFrames:
		}
		engine.ProcessFrame(ctx, frame)
	}
}

func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  DMX-to-LAN Lighting Bridge")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Art-Net port: %d\n", cfg.ArtNetPort)
	fmt.Printf("  sACN port:    %d\n", cfg.SACNPort)
	fmt.Printf("  Database:     %s\n", cfg.DatabaseURL)
	fmt.Printf("  Dry run:      %v\n", cfg.DryRun)
	fmt.Println("============================================")
}
