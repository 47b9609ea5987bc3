// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"log"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置结构。
// 通过本地 YAML 文件加载，可选地由 Nacos 配置中心热覆盖。
type Config struct {
	App struct {
		// Affiliate 推广体系的全局默认值，首次启动时写入 affiliate_settings 单例
		Affiliate struct {
			DefaultCommissionRate int    `yaml:"default_commission_rate"` // 百分比
			MinPayoutAmount       int64  `yaml:"min_payout_amount"`       // IDR
			VisitorTokenSecret    string `yaml:"visitor_token_secret"`
		} `yaml:"affiliate"`
		Order struct {
			ConfirmMaxRetries int `yaml:"confirm_max_retries"` // 乐观事务最大重试次数
		} `yaml:"order"`
		Currency struct {
			PrimaryEndpoint   string `yaml:"primary_endpoint"`
			SecondaryEndpoint string `yaml:"secondary_endpoint"`
		} `yaml:"currency"`
	} `yaml:"app"`

	Infra struct {
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers             []string `yaml:"brokers"`
			OrderEventsTopic    string   `yaml:"order_events_topic"`
			AffiliateEventsTopic string  `yaml:"affiliate_events_topic"`
		} `yaml:"kafka"`
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Zookeeper struct {
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`
	} `yaml:"infra"`
}

// currentConfig 持有当前生效的配置，支持 Nacos 推送时原子替换
var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回当前生效的配置快照。
// 返回值只读，配置更新通过整体替换完成，调用方不需要加锁。
func GetCurrentConfig() *Config {
	cfg := currentConfig.Load()
	if cfg == nil {
		log.Fatal("FATAL: config accessed before bootstrap.LoadConfig")
	}
	return cfg
}

// LoadConfig 从 CONFIG_PATH 指定的 YAML 文件加载配置并设为当前配置。
func LoadConfig() error {
	path := getEnv("CONFIG_PATH", "configs/config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return ApplyConfig(data)
}

// ApplyConfig 解析一份 YAML 配置并原子地替换当前配置。
// 本地文件加载和 Nacos 配置中心推送共用这个入口。
func ApplyConfig(data []byte) error {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	currentConfig.Store(cfg)
	return nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Affiliate.DefaultCommissionRate = 5
	cfg.App.Affiliate.MinPayoutAmount = 50000
	cfg.App.Order.ConfirmMaxRetries = 3
	cfg.Infra.Kafka.OrderEventsTopic = "order-events"
	cfg.Infra.Kafka.AffiliateEventsTopic = "affiliate-events"
	return cfg
}
