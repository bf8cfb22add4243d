package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicsync-engine/config"
	"civicsync-engine/controllers"
	"civicsync-engine/engine"
	"civicsync-engine/payments"
	"civicsync-engine/routes"
	"civicsync-engine/store"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveMemory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "keep all state in process memory (no MongoDB)")
	rootCmd.AddCommand(serveCmd)
}

// backends groups the storage adapters the server runs on.
type backends struct {
	issues   engine.IssueStore
	staff    controllers.StaffRepository
	users    controllers.UserRepository
	accounts engine.Accounts
	sessions engine.SessionStore
	ledger   interface {
		engine.PaymentLedger
		controllers.PaymentReport
	}
	// redis backs the rate limiter; nil disables it.
	redis *redis.Client
	close func(context.Context)
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	if serveMemory {
		if cfg.JWTSecret == "" {
			return nil, errors.New("please define the JWT_SECRET environment variable")
		}
		accounts := store.NewMemoryAccounts()
		return &backends{
			issues:   store.NewMemoryIssueStore(),
			staff:    store.NewMemoryStaffDirectory(),
			users:    accounts,
			accounts: accounts,
			sessions: store.NewMemorySessionStore(),
			ledger:   store.NewMemoryPaymentLedger(),
			close:    func(context.Context) {},
		}, nil
	}

	if err := cfg.RequireServe(); err != nil {
		return nil, err
	}
	client, db, err := config.ConnectDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	redisClient, err := config.ConnectRedis(ctx, cfg)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	accounts := store.NewMongoAccounts(db)
	b := &backends{
		issues:   store.NewMongoIssueStore(db),
		staff:    store.NewMongoStaffDirectory(db),
		users:    accounts,
		accounts: accounts,
		ledger:   store.NewMongoPaymentLedger(db),
	}
	if redisClient != nil {
		b.sessions = store.NewRedisSessionStore(redisClient, "boost-session")
	} else {
		slog.Warn("REDIS_ADDRESS not set; checkout sessions kept in memory and rate limiting disabled")
		b.sessions = store.NewMemorySessionStore()
	}
	b.close = func(ctx context.Context) {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if err := client.Disconnect(ctx); err != nil {
			slog.Error("Error disconnecting MongoDB", "error", err)
		}
	}
	b.redis = redisClient
	return b, nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.close(shutdownCtx)
	}()

	provider := payments.NewHostedCheckout(cfg.CheckoutBaseURL)
	svc := engine.NewService(engine.Deps{
		Issues:   b.issues,
		Staff:    b.staff,
		Accounts: b.accounts,
		Sessions: b.sessions,
		Ledger:   b.ledger,
		Payments: provider,
		Logger:   logger,
	}, engine.Config{
		FreeIssueLimit:     cfg.FreeIssueLimit,
		BoostPriceCents:    cfg.BoostPriceCents,
		BoostCurrency:      cfg.Currency,
		BoostSessionTTL:    cfg.SessionTTL,
		BoostConfirmWindow: cfg.ConfirmWindow,
	})

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(routes.Deps{
		Issues: controllers.NewIssueController(svc, b.staff),
		Staff:  controllers.NewStaffController(b.staff),
		Auth:   controllers.NewAuthController(b.users, cfg.JWTSecret, cfg.Production(), os.Getenv("DOMAIN")),
		Users: controllers.NewUserController(b.users, b.sessions, provider, b.ledger, controllers.Subscription{
			PriceCents:    cfg.SubscriptionCents,
			Currency:      cfg.Currency,
			SessionTTL:    cfg.SessionTTL,
			ConfirmWindow: cfg.ConfirmWindow,
		}),
		Payments:    controllers.NewPaymentController(b.ledger, cfg.Currency),
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit: routes.RateLimit{
			Client: b.redis,
			Prefix: cfg.RateLimitPrefix,
			Limit:  cfg.IssueDailyLimit,
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", srv.Addr, "env", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
