// Energy gateway.
//
// The gateway polls local energy devices (inverters, meters) on a bounded
// worker pool, batches their readings and delivers them to the configured
// harvest endpoints. A small HTTP API exposes state, messages, settings and
// device connections.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/srcfl/srcful-gateway-sub001/internal/api"
	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/clock"
	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/device/simulated"
	"github.com/srcfl/srcful-gateway-sub001/internal/harvest"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/config"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/database"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/influxdb"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/logging"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/metrics"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/mqtt"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/redis"
	"github.com/srcfl/srcful-gateway-sub001/internal/lifecycle"
	"github.com/srcfl/srcful-gateway-sub001/internal/scheduler"
	"github.com/srcfl/srcful-gateway-sub001/internal/settings"
	"github.com/srcfl/srcful-gateway-sub001/internal/state"
	"github.com/srcfl/srcful-gateway-sub001/internal/task"
	"github.com/srcfl/srcful-gateway-sub001/internal/transport"
	"github.com/srcfl/srcful-gateway-sub001/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the gateway and blocks until ctx is cancelled or a task asks
// the scheduler to stop.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.PathFromEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // Nothing left to report to
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	store := state.NewStore(db.DB)
	health := map[string]api.HealthChecker{"database": db}

	st, err := loadSettings(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	defer state.PersistSettings(st, store, log)()

	reg := metrics.New()
	bb := blackboard.New(blackboard.Options{
		Clock:       clock.NewSystem(),
		Settings:    st,
		Version:     version,
		Logger:      log,
		Connections: store,
	})
	if watchErr := reg.WatchDevices(bb.Devices().OpenCount); watchErr != nil {
		return fmt.Errorf("registering device gauge: %w", watchErr)
	}

	devices := device.NewFactory()
	simulated.Register(devices)

	router := newRouter(cfg, log, reg)
	sinks := []state.Sink{store}

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := connectMQTT(cfg, st, log)
		if mqttErr != nil {
			return mqttErr
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		router.Register("mqtt", transport.NewMQTTSink(mqttClient))
		sinks = append(sinks, state.NewMQTTPublisher(mqttClient, mqttClient.Topics().State()))
		health["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		router.Register("influx", transport.NewInfluxSink(influxClient))
		health["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.Redis.Enabled {
		redisClient, redisErr := redis.Connect(ctx, cfg.Redis, cfg.Site.ID)
		if redisErr != nil {
			return fmt.Errorf("connecting to Redis: %w", redisErr)
		}
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := redisClient.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		log.Info("Redis connected", "addr", cfg.Redis.Addr)
		sinks = append(sinks, state.NewRedisMirror(
			redisClient.Redis(),
			redisClient.Key("state"),
			redisClient.Key("events", "state"),
		))
		health["redis"] = redisClient
	} else {
		log.Info("Redis disabled")
	}

	saver := state.NewSaver(log, sinks...)
	bb.SetSaveStateFactory(saver.Factory())

	harvester := harvest.NewFactory(bb, harvest.Config{
		Transports: router.NewTask,
		Devices:    devices,
		Metrics:    reg,
	})
	defer harvester.Close()

	listener := lifecycle.NewSettingsListener(bb, devices)
	defer listener.Close()

	sched, err := scheduler.New(bb, scheduler.Config{
		Workers:         cfg.Scheduler.Workers,
		ShutdownTimeout: cfg.GetShutdownTimeout(),
		Logger:          log,
		Metrics:         reg,
	})
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	for _, t := range startupTasks(ctx, cfg, bb, devices, saver) {
		sched.Add(t)
	}

	var server *api.Server
	if cfg.API.Enabled {
		server, err = api.New(api.Deps{
			Config:     cfg.API,
			Logger:     log,
			Blackboard: bb,
			Devices:    devices,
			Schemes:    router.Schemes(),
			Metrics:    reg.Handler(),
			Health:     health,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		log.Info("API server listening", "addr", server.Addr())
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete",
		"site", cfg.Site.ID,
		"endpoints", len(st.Harvest.Endpoints()),
		"connections", len(st.Devices.Connections()),
	)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stop()
		return sched.Run(gctx)
	})
	if server != nil {
		g.Go(func() error {
			<-gctx.Done()
			log.Info("stopping API server")
			return server.Close()
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("running gateway: %w", err)
	}

	// One final snapshot so a restart sees the latest messages.
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if saveErr := saver.Save(saveCtx, bb.State()); saveErr != nil {
		log.Warn("final state save failed", "error", saveErr)
	}

	log.Info("gateway stopped")
	return nil
}

// loadSettings restores persisted settings. On first start the backend and
// endpoints come from the configuration file; endpoints from the file are
// always merged in.
func loadSettings(ctx context.Context, cfg *config.Config, store *state.Store, log *logging.Logger) (*settings.Settings, error) {
	st := settings.New()

	err := store.LoadSettings(ctx, st)
	switch {
	case errors.Is(err, state.ErrNotFound):
		log.Info("no stored settings, using configuration defaults")
		st.API.SetGQLEndpoint(cfg.Backend.GQLEndpoint, settings.SourceLocal)
		st.API.SetWSEndpoint(cfg.Backend.WSEndpoint, settings.SourceLocal)
		st.API.SetGQLTimeout(cfg.Backend.GQLTimeout, settings.SourceLocal)
	case err != nil:
		return nil, fmt.Errorf("loading settings: %w", err)
	default:
		log.Info("stored settings loaded")
	}

	for _, ep := range cfg.Harvest.Endpoints {
		st.Harvest.AddEndpoint(ep, settings.SourceLocal)
	}
	return st, nil
}

// newRouter builds the transport router with the HTTP sinks. Other sinks
// are registered as their backends connect.
func newRouter(cfg *config.Config, log *logging.Logger, reg *metrics.Registry) *transport.Router {
	router := transport.NewRouter(transport.Config{
		Timeout:         cfg.GetTransportTimeout(),
		MaxRetries:      cfg.Harvest.Transport.MaxRetries,
		InitialInterval: time.Duration(cfg.Harvest.Transport.InitialInterval) * time.Millisecond,
		Logger:          log,
		Metrics:         reg,
	})

	httpSink := transport.NewHTTPSink(nil)
	router.Register("http", httpSink)
	router.Register("https", httpSink)
	return router
}

// connectMQTT connects to the broker and subscribes to backend settings
// pushes.
func connectMQTT(cfg *config.Config, st *settings.Settings, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT, cfg.Site.ID)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	topic := client.Topics().SettingsSet()
	err = client.Subscribe(topic, byte(cfg.MQTT.QoS), func(_ string, payload []byte) error {
		if err := st.UpdateFromJSON(payload, settings.SourceBackend); err != nil {
			return fmt.Errorf("applying backend settings: %w", err)
		}
		log.Info("backend settings applied")
		return nil
	})
	if err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", client.ClientID(),
	)
	return client, nil
}

// startupTasks returns the connection tasks for configured and stored
// devices plus the periodic state save.
func startupTasks(ctx context.Context, cfg *config.Config, bb *blackboard.Blackboard, devices *device.Factory, saver *state.Saver) []task.Task {
	configured := make([]device.Config, 0, len(cfg.Devices.Connections))
	for _, conn := range cfg.Devices.Connections {
		configured = append(configured, device.Config(conn))
	}

	tasks := lifecycle.Bootstrap(ctx, bb, devices, configured)
	return append(tasks, state.NewPerpetualSaveTask(bb.NowMs()+state.FirstSaveDelayMs, bb, saver))
}
