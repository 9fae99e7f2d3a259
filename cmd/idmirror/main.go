package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/idmirror/internal/config"
	"github.com/dropDatabas3/idmirror/internal/directory"
	"github.com/dropDatabas3/idmirror/internal/directory/pg"
	"github.com/dropDatabas3/idmirror/internal/email"
	authctrl "github.com/dropDatabas3/idmirror/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/idmirror/internal/http/controllers/health"
	usersctrl "github.com/dropDatabas3/idmirror/internal/http/controllers/users"
	webhookctrl "github.com/dropDatabas3/idmirror/internal/http/controllers/webhook"
	mw "github.com/dropDatabas3/idmirror/internal/http/middlewares"
	"github.com/dropDatabas3/idmirror/internal/http/router"
	"github.com/dropDatabas3/idmirror/internal/metrics"
	"github.com/dropDatabas3/idmirror/internal/observability/logger"
	"github.com/dropDatabas3/idmirror/internal/otp"
	"github.com/dropDatabas3/idmirror/internal/provider"
	"github.com/dropDatabas3/idmirror/internal/rate"
	"github.com/dropDatabas3/idmirror/internal/reconcile"
	"github.com/dropDatabas3/idmirror/internal/security/secretbox"
	"github.com/dropDatabas3/idmirror/internal/signup"
	"github.com/dropDatabas3/idmirror/internal/verification"

	rdb "github.com/redis/go-redis/v9"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:   "idmirror",
		Short: "Espejo local de identidades + verificación por OTP",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env es opcional; en prod las vars vienen del entorno real
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "ruta al archivo de configuración")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath)
		},
	}

	var down bool
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cfgPath, down)
		},
	}
	migrateCmd.Flags().BoolVar(&down, "down", false, "revierte las migraciones en lugar de aplicarlas")

	root.AddCommand(serveCmd, migrateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("cargar config %s: %w", path, err)
	}

	// Los secretos pueden venir cifrados con secretbox (prefijo "enc:")
	for _, s := range []*string{
		&cfg.Provider.APIKey,
		&cfg.Provider.WebhookSecret,
		&cfg.Session.JWTSecret,
		&cfg.SMTP.Password,
	} {
		plain, err := secretbox.DecryptIfNeeded(*s)
		if err != nil {
			return nil, fmt.Errorf("descifrar secreto de config: %w", err)
		}
		*s = plain
	}
	return cfg, nil
}

func runServe(cfgPath string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "idmirror",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ====== STORAGE ======
	store, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer store.Close()
	var dir directory.Directory = store

	// ====== TOKEN STORE + RATE LIMIT ======
	var (
		tokens        otp.Store
		forgotLimiter rate.Limiter
		verifyLimiter rate.Limiter
		redisStore    *otp.RedisStore
	)
	forgotWindow, _ := time.ParseDuration(cfg.Rate.Forgot.Window)
	verifyWindow, _ := time.ParseDuration(cfg.Rate.Verify.Window)

	if cfg.Cache.Kind == "redis" {
		redisStore = otp.NewRedisStore(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
		defer func() { _ = redisStore.Close() }()
		tokens = redisStore

		if cfg.Rate.Enabled {
			rc := rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
			defer func() { _ = rc.Close() }()
			forgotLimiter = rate.NewRedisLimiter(rc, cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.Forgot.Limit, forgotWindow)
			verifyLimiter = rate.NewRedisLimiter(rc, cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.Verify.Limit, verifyWindow)
		}
	} else {
		tokens = otp.NewMemoryStore()
		if cfg.Rate.Enabled {
			forgotLimiter = rate.NewMemoryLimiter(cfg.Rate.Forgot.Limit, forgotWindow)
			verifyLimiter = rate.NewMemoryLimiter(cfg.Rate.Verify.Limit, verifyWindow)
		}
	}

	// ====== PROVIDER ======
	providerClient := provider.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	verifier, err := provider.NewWebhookVerifier(cfg.Provider.WebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook secret: %w", err)
	}

	// ====== SERVICES ======
	sender := &email.SMTPSender{
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		From:               cfg.SMTP.From,
		User:               cfg.SMTP.Username,
		Pass:               cfg.SMTP.Password,
		TLSMode:            cfg.SMTP.TLS,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
	}
	verifySvc := verification.New(verification.Deps{
		Tokens:   tokens,
		Dir:      dir,
		Provider: providerClient,
		Sender:   sender,
		TTL:      cfg.OTP.TTL,
		AppName:  "idmirror",
	})
	signupSvc := signup.New(signup.Deps{
		Dir:      dir,
		Provider: providerClient,
		Verify:   verifySvc,
	})
	engine := reconcile.New(dir)

	if err := metrics.Register(nil); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// ====== HTTP ======
	healthController := healthctrl.NewController().WithComponent("postgres", store)
	if redisStore != nil {
		healthController = healthController.WithComponent("redis", redisStore)
	}

	var session mw.Middleware
	if cfg.Session.JWTSecret != "" {
		session = mw.WithSession([]byte(cfg.Session.JWTSecret), cfg.Session.Issuer)
	} else {
		log.Warn("session.jwt_secret vacío: rutas autenticadas deshabilitadas")
	}

	handler := router.New(router.Deps{
		Auth:          authctrl.NewController(signupSvc, verifySvc),
		Users:         usersctrl.NewController(signupSvc),
		Webhook:       webhookctrl.NewController(verifier, engine),
		Health:        healthController,
		Session:       session,
		ForgotLimiter: forgotLimiter,
		VerifyLimiter: verifyLimiter,
		CORSOrigins:   cfg.Server.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("servidor escuchando", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("apagando servidor")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func runMigrate(cfgPath string, down bool) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "idmirror"})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer store.Close()

	if down {
		return store.RunMigrationsDown(ctx, cfg.Storage.MigrationsDir)
	}
	return store.RunMigrations(ctx, cfg.Storage.MigrationsDir)
}
