// cmd/storefront-service/main.go
package main

import (
	"context"
	"log"

	"warung/internal/pkg/bootstrap"
	"warung/internal/pkg/httpclient"
	"warung/internal/pkg/mq"
	"warung/internal/pkg/redis"
	affiliateapp "warung/internal/service/affiliate/application"
	affiliateinfra "warung/internal/service/affiliate/infrastructure"
	"warung/internal/service/affiliate/infrastructure/rule"
	affiliateifaces "warung/internal/service/affiliate/interfaces"
	"warung/internal/service/currency"
	orderapp "warung/internal/service/order/application"
	orderinfra "warung/internal/service/order/infrastructure"
	orderifaces "warung/internal/service/order/interfaces"

	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const serviceName = "storefront-service"

// main 是店面服务的组装根：顾客下单、推广链接点击、汇率查询
// 都在这一个部署单元里。
func main() {
	var (
		redisClient *redis.Client
		writers     []*kafkago.Writer
	)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8080,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := bootstrap.GetCurrentConfig()
			tracer := otel.Tracer(serviceName)

			db, err := gorm.Open(mysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{})
			if err != nil {
				log.Fatalf("failed to connect to mysql: %v", err)
			}
			if err := orderinfra.AutoMigrate(db); err != nil {
				log.Fatalf("failed to migrate order schema: %v", err)
			}
			if err := affiliateinfra.AutoMigrate(db); err != nil {
				log.Fatalf("failed to migrate affiliate schema: %v", err)
			}

			redisClient, err = redis.NewClient(cfg.Infra.Redis.Addr)
			if err != nil {
				log.Fatalf("failed to initialize redis client: %v", err)
			}

			orderWriter := mq.NewWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OrderEventsTopic)
			affiliateWriter := mq.NewWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.AffiliateEventsTopic)
			writers = append(writers, orderWriter, affiliateWriter)

			// --- 推广子系统 ---
			clickGate, err := affiliateinfra.NewClickGateRedisAdapter(redisClient)
			if err != nil {
				log.Fatalf("failed to initialize click gate: %v", err)
			}
			ruleEngine, err := rule.NewCELRuleEngineAdapter()
			if err != nil {
				log.Fatalf("failed to initialize rule engine: %v", err)
			}
			affiliateService := affiliateapp.NewAffiliateApplicationService(
				affiliateinfra.NewGormAffiliateRepository(db),
				affiliateinfra.NewGormReferralRepository(db),
				affiliateinfra.NewGormCommissionRepository(db),
				affiliateinfra.NewGormPayoutRepository(db),
				affiliateinfra.NewGormSettingsRepository(db),
				clickGate,
				ruleEngine,
				// 面向顾客的写入靠版本守卫串行化，分布式锁只保护管理端操作
				affiliateinfra.NoopLocker{},
				affiliateinfra.NewAffiliateEventProducer(affiliateWriter),
				tracer,
				affiliateapp.Config{
					DefaultCommissionRate: cfg.App.Affiliate.DefaultCommissionRate,
					MinPayoutAmount:       cfg.App.Affiliate.MinPayoutAmount,
					VisitorTokenSecret:    cfg.App.Affiliate.VisitorTokenSecret,
				},
			)

			// --- 订单子系统 ---
			orderService := orderapp.NewOrderApplicationService(
				orderinfra.NewGormOrderRepository(db),
				orderinfra.NewGormTxRunner(db, cfg.App.Order.ConfirmMaxRetries),
				tracer,
				orderinfra.NewOrderEventProducer(orderWriter),
				affiliateifaces.NewLocalAttributionAdapter(affiliateService),
			)

			// --- 汇率 ---
			httpClient := httpclient.NewClient(tracer)
			converter := currency.NewConverter([]currency.Provider{
				currency.NewRatesAPIProvider("primary", cfg.App.Currency.PrimaryEndpoint, httpClient),
				currency.NewRatesAPIProvider("secondary", cfg.App.Currency.SecondaryEndpoint, httpClient),
			}, redisClient, tracer)

			orderifaces.NewOrderHandler(orderService).RegisterStorefrontRoutes(appCtx.Mux)
			affiliateifaces.NewAffiliateHandler(affiliateService).RegisterStorefrontRoutes(appCtx.Mux)
			currency.NewHandler(converter).RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			for _, w := range writers {
				w.Close()
			}
			if redisClient != nil {
				redisClient.Close()
			}
		},
	})
}
