package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/solaxcloud2mqtt/internal/adapter/actor"
	"github.com/berfenger/solaxcloud2mqtt/internal/config"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/actor"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/domain"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/port"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/service"
	"github.com/berfenger/solaxcloud2mqtt/internal/server"
	"github.com/berfenger/solaxcloud2mqtt/internal/util/actorutil"
	"github.com/berfenger/solaxcloud2mqtt/pkg/solax_cloud"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// one shared poller per device, all over the same HTTP client
	pollers := devicePollers(cfg, logger)

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, pollers, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Error("could not start master actor", zap.Error(err))
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => SOLAXCLOUD_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SOLAXCLOUD_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("solaxcloud")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func devicePollers(cfg *config.Config, logger *zap.Logger) []port.TelemetryPoller {
	client := solax_cloud.NewClient(
		solax_cloud.WithEndpoint(cfg.SolaxCloud.Endpoint),
		solax_cloud.WithTimeout(cfg.SolaxCloud.Timeout()),
		solax_cloud.WithLogger(logger.With(zap.String("component", "solax_cloud"))),
	)
	pollerCfg := service.SharedPollerConfig{
		Interval:     cfg.SolaxCloud.RefreshInterval(),
		FetchTimeout: cfg.SolaxCloud.Timeout(),
	}

	var pollers []port.TelemetryPoller
	for _, d := range cfg.AllDevices() {
		device := domain.NewSolaxDevice(d.Name, d.APIKey, d.SerialNumber)
		logger.Info("configured device", zap.String("device", device.Id), zap.String("name", device.Name))
		pollers = append(pollers, service.NewSharedPoller(device, client, pollerCfg, logger))
	}
	return pollers
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("name", "")
	viper.SetDefault("api_key", "")
	viper.SetDefault("sn", "")
	viper.SetDefault("solaxcloud.endpoint", solax_cloud.DEFAULT_ENDPOINT)
	viper.SetDefault("solaxcloud.timeout_millis", 10000)
	viper.SetDefault("solaxcloud.min_refresh_interval_seconds", 300)
	viper.SetDefault("monitor.publish_interval_millis", 60000)
	viper.SetDefault("monitor.publish_cron", "")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "solaxcloud")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	if cfg.APIKey != "" {
		cfg.APIKey = "*redacted*"
	}
	devices := make([]config.DeviceConfig, len(cfg.Devices))
	for i, d := range cfg.Devices {
		d.APIKey = "*redacted*"
		devices[i] = d
	}
	cfg.Devices = devices
	slog.Info("Using", "config", cfg)
}
