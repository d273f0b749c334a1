package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/mautops/membership-gin/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// idPrefixKey 会员编号前缀资源属性
const idPrefixKey = attribute.Key("membership.id_prefix")

// untracedPaths 探活和指标抓取不产生 span
var untracedPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

var tracerProvider *tracesdk.TracerProvider

// InitTracing 初始化 OpenTelemetry 追踪,span 通过 Jaeger collector 导出
func InitTracing(cfg *config.Config) error {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Tracing.JaegerEndpoint)))
	if err != nil {
		return err
	}

	tp, err := newTracerProvider(cfg, exp)
	if err != nil {
		return err
	}
	tracerProvider = tp

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return nil
}

// newTracerProvider 按配置的采样率创建 TracerProvider
func newTracerProvider(cfg *config.Config, exporter tracesdk.SpanExporter) (*tracesdk.TracerProvider, error) {
	res, err := tracingResource(cfg)
	if err != nil {
		return nil, err
	}

	return tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(cfg.Tracing.SampleRatio))),
	), nil
}

// tracingResource 服务名、运行环境和会员编号前缀
func tracingResource(cfg *config.Config) (*resource.Resource, error) {
	return resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(ServiceName),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
			idPrefixKey.String(cfg.Membership.IDPrefix),
		),
	)
}

// TracingMiddleware 追踪中间件,span 以路由模板命名
func TracingMiddleware(opts ...otelgin.Option) gin.HandlerFunc {
	traced := otelgin.Middleware(ServiceName, opts...)
	return func(c *gin.Context) {
		if untracedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		traced(c)
	}
}

// ShutdownTracing 关闭追踪,导出缓冲中的 span
func ShutdownTracing(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}
