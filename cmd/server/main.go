package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"deliveroute-be/internal/cancellation"
	"deliveroute-be/internal/config"
	"deliveroute-be/internal/db"
	"deliveroute-be/internal/events"
	"deliveroute-be/internal/httpapi"
	"deliveroute-be/internal/logger"
	"deliveroute-be/internal/loyalty"
	"deliveroute-be/internal/order"
	"deliveroute-be/internal/refund"
	"deliveroute-be/internal/refund/webhook"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	var emitter events.Emitter = events.Nop{}
	if cfg.AMQPURL != "" {
		client, err := events.Dial(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("failed to connect to broker: %v", err)
		}
		defer client.Close()
		emitter = events.NewAMQPEmitter(client)
	}

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, emitter)

	recordRepo := cancellation.NewRepository(database)
	gateway := refund.NewHTTPGateway(cfg.RefundBaseURL, cfg.RefundAPIKey, cfg.RefundCallbackToken)
	dispatcher := refund.NewDispatcher(gateway, refund.NewRedisGuard(rdb), recordRepo)
	loyaltyClient := loyalty.NewClient(cfg.LoyaltyBaseURL, cfg.LoyaltyAPIKey)

	policy := cancellation.Policy{
		PreparingGraceWindow:  cfg.PreparingGraceWindow,
		PreparingRefundRate:   cfg.PreparingRefundRate,
		PartialRestoreLoyalty: cfg.PartialRestoreLoyalty,
	}
	cancelSvc := cancellation.NewService(orderRepo, recordRepo, policy, emitter, dispatcher, loyaltyClient)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := cancellation.NewSweeper(orderRepo, cancelSvc, cfg.PendingSLA, cfg.SweepInterval)
	go sweeper.Run(ctx)

	wh := webhook.NewHandler(cancelSvc, gateway)
	router := httpapi.NewRouter(httpapi.NewHandler(orderSvc, cancelSvc), wh.Handle, cfg.JWTSecret)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Printf("order lifecycle engine listening on :%s", cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
