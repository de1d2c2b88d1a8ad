package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-booking-api/internal/config"
	gweb "clinic-booking-api/internal/grpcweb"
	"clinic-booking-api/internal/handler"
	"clinic-booking-api/internal/logx"
	"clinic-booking-api/internal/middleware"
	"clinic-booking-api/internal/notify"
	"clinic-booking-api/internal/service"
	"clinic-booking-api/internal/session/redis"
	"clinic-booking-api/internal/store"
	"clinic-booking-api/internal/store/memory"
	"clinic-booking-api/internal/store/mongo"
	"clinic-booking-api/internal/store/postgres"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger := logx.New(logx.Config{
		Service: "clinic-booking-api",
		Version: version,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// storage
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		fatal(logger, "store", err)
	}
	defer st.Close()

	if cfg.SessionDriver == "redis" {
		sessions, err := redis.Open(ctx, redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			fatal(logger, "redis", err)
		}
		defer sessions.Close()
		st = store.WithSessions(st, sessions)
		logger.Info("sessions in redis", "addr", cfg.RedisAddr)
	}

	notifier, closeNotifier, err := openNotifier(cfg, logger)
	if err != nil {
		fatal(logger, "notifier", err)
	}
	defer closeNotifier()

	if cfg.SeedData {
		if err := service.Seed(ctx, st, time.Now(), logger); err != nil {
			fatal(logger, "seed", err)
		}
	}

	accounts := service.NewAccountService(st, service.AccountConfig{
		JWTSecret:  cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
	})
	resets := service.NewResetService(st, notifier, service.ResetConfig{
		BaseURL:    cfg.AppBaseURL,
		TokenTTL:   cfg.ResetTokenTTL,
		BcryptCost: cfg.BcryptCost,
	})
	booking := service.NewBookingService(st, nil)

	hk := service.NewHousekeeping(st, logger, cfg.HousekeepingInterval)
	hk.Start()
	defer hk.Stop()

	// grpc server
	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer rl.Stop()
	srv := handler.NewGRPCServer(handler.New(accounts, resets, booking), accounts, rl, logger)

	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		fatal(logger, "listen", err)
	}
	go func() {
		logger.Info("grpc listening", "port", cfg.Port)
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server stopped", "error", err)
		}
	}()

	// grpc-web bridge -> forwards browser requests to grpc on localhost
	bridge, err := gweb.New("localhost:"+cfg.Port, logger)
	if err != nil {
		fatal(logger, "bridge", err)
	}
	defer bridge.Close()

	httpSrv := &http.Server{
		Addr:              ":" + cfg.WebPort,
		Handler:           bridge.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("grpc-web listening", "port", cfg.WebPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}

	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		srv.Stop()
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.StoreTimeout)
		if err != nil {
			return nil, err
		}
		if err := pg.ApplyMigrations(); err != nil {
			pg.Close()
			return nil, err
		}
		logger.Info("connected to postgres")
		return pg, nil
	case "mongo":
		m, err := mongo.Open(ctx, cfg.MongoURI, cfg.MongoDB, cfg.StoreTimeout)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to mongodb", "database", cfg.MongoDB)
		return m, nil
	default:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil
	}
}

func openNotifier(cfg config.Config, logger *slog.Logger) (notify.Notifier, func(), error) {
	nop := func() {}
	switch cfg.MailProvider {
	case "kafka":
		k := notify.NewKafkaNotifier(notify.KafkaConfig{
			Broker:   cfg.KafkaBroker,
			Topic:    cfg.KafkaTopic,
			Username: cfg.KafkaUsername,
			Password: cfg.KafkaPassword,
		})
		return k, func() { k.Close() }, nil
	case "smtp", "sendgrid":
		m, err := notify.NewMailer(cfg.MailProvider, smtpConfig(cfg), cfg.SendGridAPIKey)
		if err != nil {
			return nil, nop, err
		}
		return notify.NewMailNotifier(m, cfg.ResetTokenTTL), nop, nil
	default:
		return notify.NewLogNotifier(logger), nop, nil
	}
}

func smtpConfig(cfg config.Config) notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
