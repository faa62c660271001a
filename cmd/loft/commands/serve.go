package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/loft/internal/config"
	"github.com/dyluth/loft/internal/dispatch"
	"github.com/dyluth/loft/internal/hub"
	"github.com/dyluth/loft/internal/metrics"
	"github.com/dyluth/loft/internal/printer"
	"github.com/dyluth/loft/internal/server"
	"github.com/dyluth/loft/internal/snapshot"
	"github.com/dyluth/loft/internal/transport"
	"github.com/dyluth/loft/internal/watch"
	"github.com/dyluth/loft/pkg/content"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a loft server",
	Long: `Run a loft server in the foreground until interrupted.

The server accepts participant WebSocket connections on /ws, relays every
valid content message to all participants, and persists whiteboard
checkpoints through the configured snapshot backend.

When loft.yml has a redis section (or REDIS_URL is set) the server also
accepts content submitted by "loft send" and republishes everything it
relays, so "loft watch" can follow along.

Endpoints:
  /healthz                 Health check
  /metrics                 Prometheus metrics
  /ws?participant=N        Participant WebSocket
  /checkpoints             List (GET) or save (POST) checkpoints
  /checkpoints/{number}    Fetch one checkpoint

Examples:
  # Serve with defaults (file snapshots in ./snapshots, port 8080)
  loft serve

  # Serve with a specific configuration
  loft serve --config /etc/loft/loft.yml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, func(addr string) {
		printer.Success("Loft instance '%s' serving on %s\n", cfg.Instance, addr)
		printer.Detail("Snapshots", describeBackend(cfg))
		if cfg.Redis != nil {
			printer.Detail("Redis", cfg.Redis.URL)
		}
	})
}

func describeBackend(cfg *config.LoftConfig) string {
	if cfg.Snapshots.Backend == config.BackendFile {
		return fmt.Sprintf("%s (%s)", cfg.Snapshots.Backend, cfg.Snapshots.Dir)
	}
	return cfg.Snapshots.Backend
}

// openStore opens the configured snapshot backend and recovers its count.
func openStore(ctx context.Context, cfg *config.LoftConfig, redisOpts *redis.Options, m *metrics.Metrics) (*snapshot.Store, error) {
	var backend snapshot.Backend
	var err error

	switch cfg.Snapshots.Backend {
	case config.BackendRedis:
		if redisOpts == nil {
			return nil, fmt.Errorf("redis snapshot backend requires a redis server")
		}
		backend, err = snapshot.NewRedisBackend(redisOpts, cfg.Instance)
	default:
		backend, err = snapshot.NewFileBackend(cfg.Snapshots.Dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot backend: %w", err)
	}

	store, err := snapshot.Open(ctx, backend, snapshot.Options{InstanceName: cfg.Instance, Metrics: m})
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// serve runs a loft server until ctx is cancelled. ready is called with the
// bound address once the server accepts connections.
func serve(ctx context.Context, cfg *config.LoftConfig, ready func(addr string)) error {
	m := metrics.New()

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, redisOpts, m)
	if err != nil {
		return err
	}
	defer store.Close()

	h := hub.New(hub.Options{
		MaxMessageSize: cfg.Hub.MaxMessageSize,
		SendBuffer:     cfg.Hub.SendBuffer,
		AllowedOrigins: cfg.Hub.AllowedOrigins,
		Metrics:        m,
	})

	comm := dispatch.MultiCommunicator{h}
	var relay *transport.Communicator
	var pinger server.Pinger
	if redisOpts != nil {
		relay, err = transport.NewCommunicator(redisOpts, cfg.Instance)
		if err != nil {
			return err
		}
		defer relay.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = relay.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}

		comm = append(comm, relay)
		pinger = relay
	}

	d, err := dispatch.New(comm, dispatch.Options{
		QueueSize:       cfg.Dispatcher.QueueSize,
		DeliveryTimeout: cfg.Dispatcher.DeliveryTimeout,
		Metrics:         m,
	})
	if err != nil {
		return err
	}
	defer d.Close()

	activity := d.Subscribe(dispatch.SubscriberFunc(func(msg *content.Message) {
		log.Printf("[Serve] [INFO] %s", watch.Describe(watch.Event{Message: msg}))
	}))
	defer activity.Close()

	h.SetReceiver(d)

	var listenerErrors <-chan error
	if relay != nil {
		listener, err := relay.Listen(ctx, d)
		if err != nil {
			return err
		}
		defer listener.Close()
		listenerErrors = listener.Errors()
	}

	srv := server.New(server.Options{
		Addr:      cfg.ListenAddr,
		Store:     store,
		WebSocket: h,
		Metrics:   m,
		Redis:     pinger,
	})
	if err := srv.Start(); err != nil {
		return err
	}

	if ready != nil {
		ready(srv.Addr())
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Printf("[Serve] [INFO] Shutting down")
	case err, ok := <-listenerErrors:
		if ok {
			runErr = fmt.Errorf("inbound listener failed: %w", err)
			log.Printf("[Serve] [ERROR] %v", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Serve] [WARN] HTTP shutdown: %v", err)
	}
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Serve] [WARN] Hub shutdown: %v", err)
	}
	if err := d.Flush(shutdownCtx); err != nil {
		log.Printf("[Serve] [WARN] Undelivered content at shutdown: %v", err)
	}

	return runErr
}
