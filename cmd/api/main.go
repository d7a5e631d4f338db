package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/safar/go-shop-orders/internal/api"
	"github.com/safar/go-shop-orders/internal/cache"
	"github.com/safar/go-shop-orders/internal/config"
	"github.com/safar/go-shop-orders/internal/coupon"
	"github.com/safar/go-shop-orders/internal/database"
	"github.com/safar/go-shop-orders/internal/logger"
	"github.com/safar/go-shop-orders/internal/notify"
	"github.com/safar/go-shop-orders/internal/order"
	"github.com/safar/go-shop-orders/internal/payment"
	"github.com/safar/go-shop-orders/internal/settings"
	"github.com/safar/go-shop-orders/internal/store"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(cfg.Log)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to database")

	repo := store.NewPostgres(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		settingsCache settings.Cache
		cartCache     order.CartCache
	)
	if rdb, err := cache.NewClient(ctx, cfg.Redis); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, running without cache")
	} else {
		defer rdb.Close()
		c := cache.NewRedis(rdb)
		settingsCache, cartCache = c, c
	}
	settingsProvider := settings.NewProvider(repo, settingsCache, cfg.Redis.SettingsTTL, &log)

	var (
		mailer notify.Mailer
		pusher notify.Pusher
	)
	if len(cfg.Kafka.Brokers) > 0 {
		kp := notify.NewKafkaPublisher(
			notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.EmailTopic),
			notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.PushTopic),
		)
		defer kp.Close()
		mailer, pusher = kp, kp
	} else {
		ln := notify.NewLogNotifier(&log)
		mailer, pusher = ln, ln
		log.Info().Msg("no kafka brokers configured, notifications go to the log")
	}
	dispatcher := notify.NewDispatcher(mailer, pusher, cfg.Order.NotifyWorkers, cfg.Order.NotifyQueueSize, &log)
	dispatcher.Start()

	var gateway payment.Gateway
	if cfg.Payment.StripeSecretKey != "" {
		gateway = payment.NewStripe(cfg.Payment)
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, online payment sessions are disabled")
	}

	orders := order.NewService(order.Deps{
		Repo:      repo,
		Coupons:   coupon.NewApplier(repo),
		Settings:  settingsProvider,
		Verifier:  payment.NewVerifier(gateway, cfg.Payment.RazorpayKeySecret),
		Gateway:   gateway,
		CartCache: cartCache,
		Events:    dispatcher,
	}, order.Config{
		TrustClientTotal: cfg.Order.TrustClientTotal,
		Currency:         cfg.Payment.Currency,
		WebhookSecret:    cfg.Payment.WebhookSecret,
		WebhookEnabled:   cfg.Payment.WebhookEnabled,
	}, &log)

	router := api.NewRouter(api.NewHandler(orders, &log), []byte(cfg.Auth.JWTSecret), &log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Server.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		orders.Wait()
		return dispatcher.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
	}
}
