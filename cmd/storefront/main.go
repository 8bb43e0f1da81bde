package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/domrealce/storefront/internal/auth"
	"github.com/domrealce/storefront/internal/cart"
	"github.com/domrealce/storefront/internal/catalog"
	"github.com/domrealce/storefront/internal/config"
	"github.com/domrealce/storefront/internal/contacts"
	"github.com/domrealce/storefront/internal/httpapi"
	"github.com/domrealce/storefront/internal/notify"
	"github.com/domrealce/storefront/internal/orders"
	"github.com/domrealce/storefront/internal/pageconfig"
	"github.com/domrealce/storefront/internal/payments"
	"github.com/domrealce/storefront/internal/telemetry"
	"github.com/domrealce/storefront/migrations"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const maxConnectAttempts = 30

func main() {
	// Valores monetários e áreas seguem como números JSON, compatíveis com os dados já gravados
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	tp, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	mp, err := telemetry.InitMetrics(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx, tp, mp); err != nil {
			logger.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	// Initialize database
	sqlDB, err := initSQLDB(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := migrations.Apply(ctx, sqlDB); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	logger.Info("✅ Schema up to date")

	pool, err := initPool(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("Failed to initialize connection pool", zap.Error(err))
	}
	defer pool.Close()

	priceTable, err := cfg.PriceTable()
	if err != nil {
		logger.Fatal("Failed to load price table", zap.String("file", cfg.PricingFile), zap.Error(err))
	}

	// Setup repositories and use cases
	notifier := notify.NewLogNotifier(logger, cfg.AdminEmail)
	calculator := catalog.NewCalculator(priceTable)

	orderUseCase := orders.NewOrderUseCase(
		orders.NewOrderRepository(pool),
		calculator,
		payments.NewIfthenPayClient(cfg.IfthenPay),
		notifier,
		cfg.Pricing,
		logger,
	)
	pageConfigUseCase := pageconfig.NewUseCase(pageconfig.NewPostgresRepository(pool), logger)
	contactUseCase := contacts.NewUseCase(contacts.NewSQLRepository(sqlDB), notifier, logger)

	users := auth.NewPostgresUserRepository(pool)
	if err := ensureAdmin(ctx, users, cfg.AdminUsername, cfg.AdminPassword, logger); err != nil {
		logger.Fatal("Failed to create admin user", zap.Error(err))
	}

	limiter := httpapi.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	server := httpapi.NewServer(httpapi.Dependencies{
		Orders:      orderUseCase,
		PageConfigs: pageConfigUseCase,
		Contacts:    contactUseCase,
		Auth:        auth.NewService(users, []byte(cfg.JWTSecret)),
		Calculator:  calculator,
		Carts:       cart.NewSessionStore(cart.NewCookieStore([]byte(cfg.SessionSecret), cfg.SecureCookies), "domrealce_session"),
		RateLimiter: limiter,
		CallbackKey: cfg.CallbackKey,
		Logger:      logger,
		Tracer:      tp.Tracer(cfg.ServiceName),
	})

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpapi.RequestLogger(logger))
	server.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		logger.Info("🚀 Storefront listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down server", zap.Error(err))
	}
}

// initSQLDB abre a ligação database/sql usada pelas migrações e pelos contactos, esperando pela base de dados
func initSQLDB(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Wait for database to be ready
	for i := 0; i < maxConnectAttempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			logger.Info("✅ Connected to database")
			return db, nil
		}
		logger.Info("⏳ Waiting for database...", zap.Int("attempt", i+1), zap.Int("max", maxConnectAttempts))

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	db.Close()
	return nil, fmt.Errorf("failed to connect to database after %d attempts", maxConnectAttempts)
}

func initPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// ensureAdmin cria o primeiro administrador a partir de ADMIN_USERNAME/ADMIN_PASSWORD
func ensureAdmin(ctx context.Context, users *auth.PostgresUserRepository, username, password string, logger *zap.Logger) error {
	if username == "" || password == "" {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	created, err := users.CreateIfMissing(ctx, auth.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
	})
	if err != nil {
		return err
	}
	if created {
		logger.Info("👤 Admin user created", zap.String("username", username))
	}
	return nil
}
