// cmd/push-gateway/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"warung/internal/pkg/bootstrap"
	"warung/internal/pkg/logger"
	"warung/internal/pkg/mq"
	"warung/internal/pkg/redis"
	"warung/internal/pkg/session"
	"warung/internal/service/push"
	"warung/internal/tracing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "push-gateway"
	consumerGroupID = "push-gateway-consumer-group"
	listenAddr      = ":8088"
)

// main 启动推送网关：WebSocket 接入 + Kafka 事件消费。
// Hub、消费者和 HTTP 服务器由 errgroup 统一监督，
// 任何一个退出都会放倒整个节点，交给编排层重启。
func main() {
	logger.Init(serviceName)
	if err := bootstrap.LoadConfig(); err != nil {
		log.Fatalf("FATAL: failed to load config: %v", err)
	}
	cfg := bootstrap.GetCurrentConfig()

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatalf("failed to initialize tracer provider: %v", err)
	}

	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr)
	if err != nil {
		log.Fatalf("failed to initialize redis client: %v", err)
	}
	sessionMgr := session.NewManager(redisClient)

	nodeID := serviceName + "-" + uuid.New().String()[:8]
	hub := push.NewHub()

	orderConsumer := push.NewEventConsumer(
		mq.NewReader(cfg.Infra.Kafka.Brokers, consumerGroupID, cfg.Infra.Kafka.OrderEventsTopic), hub)
	affiliateConsumer := push.NewEventConsumer(
		mq.NewReader(cfg.Infra.Kafka.Brokers, consumerGroupID, cfg.Infra.Kafka.AffiliateEventsTopic), hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	push.NewWsHandler(hub, sessionMgr, nodeID).RegisterRoutes(mux)
	server := &http.Server{Addr: listenAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gCtx) })
	g.Go(func() error { return orderConsumer.Run(gCtx) })
	g.Go(func() error { return affiliateConsumer.Run(gCtx) })
	g.Go(func() error {
		log.Printf("Push Gateway (%s) listening on %s", nodeID, listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Printf("push gateway stopped with error: %v", err)
	}

	orderConsumer.Close()
	affiliateConsumer.Close()
	redisClient.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down tracer provider: %v", err)
	}
	log.Printf("Push Gateway (%s) gracefully shut down.", nodeID)
}
