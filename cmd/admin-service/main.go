// cmd/admin-service/main.go
package main

import (
	"context"
	"log"
	"net/http"

	"warung/internal/pkg/bootstrap"
	"warung/internal/pkg/mq"
	"warung/internal/pkg/redis"
	affiliateapp "warung/internal/service/affiliate/application"
	affiliatedomain "warung/internal/service/affiliate/domain"
	affiliateinfra "warung/internal/service/affiliate/infrastructure"
	"warung/internal/service/affiliate/infrastructure/rule"
	affiliateifaces "warung/internal/service/affiliate/interfaces"
	orderapp "warung/internal/service/order/application"
	orderinfra "warung/internal/service/order/infrastructure"
	orderifaces "warung/internal/service/order/interfaces"
	"warung/internal/zookeeper"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const serviceName = "admin-service"

// main 是管理端服务的组装根：订单确认（原子扣库存）、支付审核、
// 佣金审批和提现处理都在这个部署单元里。
func main() {
	var (
		redisClient *redis.Client
		zkConn      *zookeeper.Conn
		writers     []*kafkago.Writer
	)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8081,
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

			// 管理端的佣金/提现操作需要跨实例互斥，用 ZooKeeper 锁保护；
			// 集群未配置时退化为进程内空锁，单实例部署仍然正确
			var locker affiliatedomain.Locker = affiliateinfra.NoopLocker{}
			if len(cfg.Infra.Zookeeper.Servers) > 0 {
				zkConn, err = zookeeper.Connect(cfg.Infra.Zookeeper.Servers)
				if err != nil {
					log.Fatalf("failed to connect to zookeeper: %v", err)
				}
				locker = affiliateinfra.NewZkLockerAdapter(zkConn)
			} else {
				log.Printf("⚠️ WARNING: zookeeper not configured, admin mutations use in-process lock only")
			}

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
				locker,
				affiliateinfra.NewAffiliateEventProducer(affiliateWriter),
				tracer,
				affiliateapp.Config{
					DefaultCommissionRate: cfg.App.Affiliate.DefaultCommissionRate,
					MinPayoutAmount:       cfg.App.Affiliate.MinPayoutAmount,
					VisitorTokenSecret:    cfg.App.Affiliate.VisitorTokenSecret,
				},
			)

			// 管理端不做归因，订单服务不挂推广端口
			orderService := orderapp.NewOrderApplicationService(
				orderinfra.NewGormOrderRepository(db),
				orderinfra.NewGormTxRunner(db, cfg.App.Order.ConfirmMaxRetries),
				tracer,
				orderinfra.NewOrderEventProducer(orderWriter),
				nil,
			)

			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			orderifaces.NewOrderHandler(orderService).RegisterAdminRoutes(appCtx.Mux)
			affiliateifaces.NewAffiliateHandler(affiliateService).RegisterAdminRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			for _, w := range writers {
				w.Close()
			}
			if redisClient != nil {
				redisClient.Close()
			}
			if zkConn != nil {
				zkConn.Close()
			}
		},
	})
}
