// internal/tracing/tracer.go
package tracing

import (
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitTracerProvider 初始化全局 TracerProvider，Span 上报到 Jaeger。
// 店面、管理端、推送网关三个部署单元共用这一份初始化逻辑。
func InitTracerProvider(serviceName, jaegerEndpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		// 内部流量全量采样；接入真实流量前换成按比例采样
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		// 批量导出，避免每个 Span 一次网络往返
		sdktrace.WithBatcher(exporter),
		// 资源属性带上服务名，Jaeger UI 据此区分各部署单元
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)

	// 注册为全局 Provider：HTTP 头和 Kafka 头的注入/提取都走全局传播器
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	log.Printf("✅ tracing initialized: service=%s collector=%s", serviceName, jaegerEndpoint)
	return tp, nil
}
