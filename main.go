package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/joho/godotenv"

	"github.com/Uranury/snmphub/config"
	"github.com/Uranury/snmphub/hub"
	"github.com/Uranury/snmphub/logging"
	"github.com/Uranury/snmphub/recorder"
	"github.com/Uranury/snmphub/sensors"
	"github.com/Uranury/snmphub/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewStdLogger(log.New(os.Stdout, "", log.LstdFlags))
	settings := config.LoadSettings()

	cfg, err := config.Load(settings.ConfigPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	h := hub.New(logger)
	h.RegisterPlatform("snmp", &sensors.SNMPPlatform{Client: sensors.GoSNMPClient{}, Logger: logger})
	h.RegisterPlatform("dht", &sensors.DHTPlatform{Logger: logger})

	broadcaster := server.NewBroadcaster(logger)
	h.AddListener(broadcaster)

	if settings.InfluxURL != "" {
		influxClient := influxdb2.NewClient(settings.InfluxURL, settings.InfluxToken)
		defer influxClient.Close()
		writeAPI := influxClient.WriteAPI(settings.InfluxOrg, settings.InfluxBucket)
		go func() {
			for err := range writeAPI.Errors() {
				logger.Error("InfluxDB write error: %v", err)
			}
		}()
		h.AddListener(recorder.New(writeAPI))
		logger.Info("Recording states to %s", settings.InfluxURL)
	}

	if failed := h.Setup(cfg.Sensors); failed > 0 {
		logger.Error("%d of %d sensor entries could not be set up", failed, len(cfg.Sensors))
	}
	logger.Info("Monitoring sensors: %d", h.Sensors())
	for _, r := range h.Readings() {
		logger.Info("  - %s (%s)", r.EntityID, r.Name)
	}

	go h.Run(ctx, settings.ScanInterval)

	srv := &http.Server{
		Addr:    settings.HTTPAddr,
		Handler: server.New(h, broadcaster).Router(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown: %v", err)
		}
	}()

	logger.Info("Server starting on %s", settings.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}
