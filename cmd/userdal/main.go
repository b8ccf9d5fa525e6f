package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/userdal/internal/cache"
	"github.com/dropDatabas3/userdal/internal/config"
	httpserver "github.com/dropDatabas3/userdal/internal/http"
	userscontroller "github.com/dropDatabas3/userdal/internal/http/controllers/users"
	userssvc "github.com/dropDatabas3/userdal/internal/http/services/users"
	"github.com/dropDatabas3/userdal/internal/observability/logger"
	"github.com/dropDatabas3/userdal/internal/store"

	// Adapters disponibles: se registran en sus init().
	_ "github.com/dropDatabas3/userdal/internal/store/adapters/memory"
	_ "github.com/dropDatabas3/userdal/internal/store/adapters/mongo"
)

var version = "dev"

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:   "userdal",
		Short: "Servicio de usuarios sobre el port de persistencia multi-adapter",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", envOr("USERDAL_CONFIG", ""), "Ruta del config.yaml (env USERDAL_CONFIG)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Arranca el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfgPath)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Imprime la versión",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	adaptersCmd := &cobra.Command{
		Use:   "adapters",
		Short: "Lista los adapters de persistencia registrados",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range store.ListAdapters() {
				fmt.Println(name)
			}
		},
	}

	root.AddCommand(serveCmd, versionCmd, adaptersCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func serve(cfgPath string) error {
	// .env es opcional; las env pisan al YAML en config.Load.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "userdal",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store: el adapter se elige una sola vez, al arranque.
	conn, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(context.Background()); err != nil {
			log.Warn("store close failed", logger.Err(err))
		}
	}()
	repo := store.Instrument(conn.Users(), conn.Name())

	// Cache
	cacheClient, err := cache.New(cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.CacheMemoryTTL(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = cacheClient.Close() }()

	// Service + invalidación por change stream
	service := userssvc.New(repo, cacheClient, cfg.CacheMemoryTTL())
	go service.StartInvalidation(ctx)

	metricsHandler, err := httpserver.RegisterMetrics(nil)
	if err != nil {
		return err
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Users:          userscontroller.NewController(service),
		Conn:           conn,
		MetricsHandler: metricsHandler,
		JWTSecret:      []byte(cfg.JWT.Secret),
		JWTIssuer:      cfg.JWT.Issuer,
	})

	srv := httpserver.NewServer(cfg.Server.Addr, router, cfg.ServerReadTimeout(), cfg.ServerWriteTimeout())

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	log.Info("userdal started",
		logger.String("version", version),
		logger.Adapter(conn.Name()),
		logger.String("addr", cfg.Server.Addr),
	)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
