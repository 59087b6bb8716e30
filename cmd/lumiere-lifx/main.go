// Lumiere LIFX bridge
//
// Subscribes to the Lumiere coordination channel and applies every broadcast
// colour palette to a set of LIFX lights through the LIFX HTTP API.
// Runs unattended; exits non-zero when the session retry budget is exhausted.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/api"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/bridge"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/config"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/influxdb"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/logging"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/mqtt"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lifx"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lights"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/realtime"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// configEnv names the environment variable consulted when --config is not given.
const configEnv = "LUMIERE_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("lumiere-lifx", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", os.Getenv(configEnv), "path to the YAML configuration file")
	showVersion := flags.Bool("version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("lumiere-lifx %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Lumiere LIFX bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", *configPath,
		"bridge_id", cfg.Bridge.ID,
		"transport", cfg.Lumiere.Transport,
		"selector", cfg.LIFX.Selector,
	)

	lifxClient, err := lifx.NewClient(cfg.LIFX)
	if err != nil {
		return fmt.Errorf("creating LIFX client: %w", err)
	}

	status := bridge.NewStatus(cfg.Bridge.ID)
	metrics := api.NewMetrics()
	observers := []bridge.Observer{status, metrics}

	// Connect to MQTT broker (optional unless it carries the coordination channel)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, cfg.Bridge.ID)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", mqttClient.ClientID(),
		)

		health := bridge.NewHealthReporter(bridge.HealthReporterConfig{
			BridgeID:  cfg.Bridge.ID,
			Version:   version,
			Interval:  cfg.Bridge.HealthCheckInterval,
			Publisher: mqttClient,
			Status:    status,
		})
		health.SetLogger(log)
		if pubErr := health.PublishStarting(); pubErr != nil {
			log.Warn("failed to publish starting health", "error", pubErr)
		}
		health.Start(ctx)
		defer health.Stop()
		observers = append(observers, health)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		observers = append(observers, bridge.NewTelemetry(cfg.Bridge.ID, cfg.LIFX.Selector, influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the status API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Status:  status,
			Metrics: metrics,
			Version: version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		if influxClient != nil {
			deps.InfluxDB = influxClient
		}

		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr = server.Start(ctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		observers = append(observers, server.Hub())
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	dialer, err := newDialer(cfg, mqttClient, log)
	if err != nil {
		return err
	}

	supervisor, err := bridge.NewSupervisor(bridge.SupervisorConfig{
		Settings: bridge.Settings{
			Selector: cfg.LIFX.Selector,
			Assign: lights.Options{
				Brightness: cfg.LIFX.Brightness,
				Duration:   cfg.LIFX.Duration,
				Shuffle:    cfg.LIFX.Shuffle,
			},
			InventoryPolicy: cfg.Session.InventoryPolicy,
		},
		MaxAttempts: cfg.Session.MaxAttempts,
		RetryDelay:  cfg.Session.RetryDelay,
		Lights:      lifxClient,
		Dialer:      dialer,
		Observer:    bridge.Observers(observers...),
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("creating supervisor: %w", err)
	}

	log.Info("Lumiere LIFX bridge started",
		"lumiere_url", cfg.Lumiere.URL,
		"max_attempts", cfg.Session.MaxAttempts,
		"retry_delay", cfg.Session.RetryDelay,
	)

	if err := supervisor.Run(ctx); err != nil {
		if errors.Is(err, bridge.ErrRetryBudgetExhausted) {
			log.Error("giving up", "error", err)
		}
		return fmt.Errorf("running bridge: %w", err)
	}

	log.Info("shutdown signal received, stopping services")
	return nil
}

// newDialer selects the coordination channel transport.
func newDialer(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (realtime.Dialer, error) {
	switch cfg.Lumiere.Transport {
	case config.TransportSocketIO:
		return realtime.DialerFunc(func(ctx context.Context) (realtime.Channel, error) {
			ch, err := realtime.DialSocketIO(ctx, cfg.Lumiere, log)
			if err != nil {
				return nil, err
			}
			return ch, nil
		}), nil

	case config.TransportMQTT:
		if mqttClient == nil {
			return nil, fmt.Errorf("transport %q requires mqtt.enabled", config.TransportMQTT)
		}
		return realtime.DialerFunc(func(context.Context) (realtime.Channel, error) {
			ch, err := realtime.NewMQTTChannel(mqttClient, cfg.Lumiere.Topics, mqttClient.QoS(), cfg.Lumiere.Buffer)
			if err != nil {
				return nil, err
			}
			return ch, nil
		}), nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Lumiere.Transport)
	}
}
