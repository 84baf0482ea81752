package main

import (
	"asset-management-api/internal/config"
	"asset-management-api/internal/database"
	"asset-management-api/internal/handler"
	"asset-management-api/internal/notification"
	"asset-management-api/internal/recipient"
	"asset-management-api/internal/repository"
	"asset-management-api/internal/router"
	"asset-management-api/internal/service"
	notificationadapter "asset-management-api/internal/service/notification"
	"asset-management-api/internal/sweep"
	"asset-management-api/internal/tracing"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

const (
	serviceName    = "asset-management-api"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := log.Default()

	shutdownTracing, err := tracing.Init(serviceName, serviceVersion, cfg.Tracing)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if cfg.Database.ApplySchema {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Security.ShutdownTimeout)
		err := database.ApplySchema(ctx, db)
		cancel()
		if err != nil {
			log.Fatalf("Failed to apply database schema: %v", err)
		}
	}

	store := repository.NewStore(db)

	// Notification channels
	pushClient, pushInit := notification.NewWebPushClient(notification.PushConfig{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subject:         cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
		Timeout:         cfg.Push.Timeout,
	}, logger)
	if pushInit.Enabled {
		logger.Printf("Web push enabled")
	} else {
		logger.Printf("Web push disabled: %s", pushInit.Reason)
	}

	mailer := notification.NewSMTPMailer(notification.EmailConfig{
		Host:          cfg.Email.Host,
		Port:          cfg.Email.Port,
		Username:      cfg.Email.Username,
		Password:      cfg.Email.Password,
		From:          cfg.Email.From,
		FromName:      cfg.Email.FromName,
		Timeout:       cfg.Email.Timeout,
		RetryAttempts: cfg.Email.RetryAttempts,
		RetryDelay:    cfg.Email.RetryDelay,
	}, logger)
	if !mailer.Enabled() {
		logger.Printf("Email disabled: no SMTP host configured")
	}

	dispatcher := notification.NewDispatcher(pushClient, mailer, store.Users(), cfg.Email.Concurrency, logger)
	resolver := recipient.NewResolver(store.Users(), cfg.Resolver.RoleCacheTTL, logger)
	notifier := notificationadapter.NewServiceAdapter(dispatcher, resolver, store.Users(), logger)

	// Services
	allocations := service.NewAllocationService(store, notifier, logger)
	assets := service.NewAssetService(store, logger)
	purchases := service.NewPurchaseService(store, notifier, logger)
	users := service.NewUserService(store, logger)

	h := handler.Handlers{
		Allocations: handler.NewAllocationHandler(allocations, logger),
		Assets:      handler.NewAssetHandler(assets, logger),
		Purchases:   handler.NewPurchaseHandler(purchases, logger),
		Users:       handler.NewUserHandler(users, pushClient, logger),
		Health:      handler.NewHealthHandler(db, logger),
	}

	// Setup router with security configuration
	r := router.NewRouter(h, cfg, logger)

	// Configure server with security settings
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if cfg.Sweep.Enabled {
		go sweep.New(store.Allocations(), allocations, cfg.Sweep.Interval, logger).Start(sweepCtx)
	}

	// Channel to listen for interrupt signal to gracefully shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %d with security features enabled", cfg.Port)
		log.Printf("Security: Rate limit=%d RPS, Burst=%d, CORS=%v, Timeout=%v",
			cfg.Security.RateLimitRPS,
			cfg.Security.RateLimitBurst,
			cfg.Security.EnableCORS,
			cfg.Security.RequestTimeout,
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Block until we receive a signal
	<-done
	log.Println("Server is shutting down...")
	stopSweep()

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Security.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	} else {
		log.Println("Server exited gracefully")
	}

	if err := shutdownTracing(ctx); err != nil {
		log.Printf("Failed to flush traces: %v", err)
	}
}
