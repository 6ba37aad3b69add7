package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/laundrypos/printer-server/internal/api"
	"github.com/laundrypos/printer-server/internal/cloud"
	"github.com/laundrypos/printer-server/internal/config"
	"github.com/laundrypos/printer-server/internal/events"
	"github.com/laundrypos/printer-server/internal/registry"
	"github.com/laundrypos/printer-server/internal/storage"
	"github.com/laundrypos/printer-server/internal/syncer"
	"github.com/laundrypos/printer-server/internal/transport"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/printer-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Warn().Err(err).Msg("Config file unreadable, using defaults")
		cfg = config.Default()
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Open durable storage
	kv, err := openStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer kv.Close()

	log.Info().Str("backend", cfg.Storage.Backend).Msg("Storage ready")

	// Load the printer registry
	reg := registry.New(kv)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load printer registry")
	}

	// Merchant backend client + sync engine
	cloudClient := cloud.NewClient(cloud.Config{
		BaseURL:    cfg.Cloud.BaseURL,
		MerchantID: cfg.Cloud.MerchantID,
		Token:      cfg.Cloud.Token,
		Timeout:    cfg.Cloud.Timeout,
	})
	eng := syncer.New(reg, cloudClient, kv)

	// Print transport
	var tr transport.Transport
	if cfg.Printing.DryRun {
		tr = transport.Discard{}
	} else {
		tr = transport.NewSerialTransport(cfg.Printing.Devices, cfg.Printing.BaudRate)
	}

	// Optional event publishers
	var pubOpts []events.Option
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.NATS.Name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, events disabled on that sink")
		} else {
			log.Info().Str("url", cfg.NATS.URL).Msg("Connected to NATS")
			pubOpts = append(pubOpts, events.WithNATS(nc))
		}
	}
	if cfg.MQTT.Broker != "" {
		client, err := events.ConnectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password)
		if err != nil {
			log.Warn().Err(err).Msg("MQTT unavailable, events disabled on that sink")
		} else {
			log.Info().Str("broker", cfg.MQTT.Broker).Msg("Connected to MQTT")
			pubOpts = append(pubOpts, events.WithMQTT(client, cfg.MQTT.TopicPrefix))
		}
	}
	publisher := events.NewPublisher(pubOpts...)
	defer publisher.Close()

	// Local REST API
	apiServer := api.NewServer(cfg, api.Deps{
		Registry:  reg,
		Syncer:    eng,
		Cloud:     cloudClient,
		Transport: tr,
		Events:    publisher,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		log.Info().Str("addr", addr).Msg("Starting local API server")
		if err := apiServer.ListenAndServe(addr); err != nil {
			log.Error().Err(err).Msg("Local API server stopped")
			cancel()
		}
	}()

	// Periodic push sync
	if cfg.Sync.Interval > 0 && cfg.Cloud.MerchantID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(cfg.Sync.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					result, err := eng.Push(ctx)
					if err != nil {
						log.Debug().Err(err).Msg("Scheduled sync skipped")
						continue
					}
					publisher.Publish(events.SubjectSyncResult, "", result)
				}
			}
		}()
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("Stopped")
}

// openStorage selects the configured key-value backend.
func openStorage(cfg *config.Config) (storage.KV, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return storage.NewSQLiteKV(cfg.Storage.SQLitePath)
	case "postgres":
		return storage.NewPostgresKV(cfg.Storage.DSN)
	case "file":
		return storage.NewFileKV(cfg.Storage.FileDir)
	case "memory":
		return storage.NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
