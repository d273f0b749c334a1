package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/membership-gin/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func TestTracingMiddleware(t *testing.T) {
	cfg := config.Default()
	cfg.Env = "staging"
	cfg.Membership.IDPrefix = "IEPSL"

	exporter := tracetest.NewInMemoryExporter()
	tp, err := newTracerProvider(cfg, exporter)
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	router := gin.New()
	router.Use(TracingMiddleware(otelgin.WithTracerProvider(tp)))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/admin/applicants/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/admin/applicants/abc", nil))
	require.NoError(t, tp.ForceFlush(context.Background()))

	// 探活请求不产生 span,业务请求以路由模板命名
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "/api/v1/admin/applicants/:id", spans[0].Name)

	attrs := spans[0].Resource.Set()
	env, ok := attrs.Value(semconv.DeploymentEnvironmentKey)
	require.True(t, ok)
	assert.Equal(t, "staging", env.AsString())
	prefix, ok := attrs.Value(idPrefixKey)
	require.True(t, ok)
	assert.Equal(t, "IEPSL", prefix.AsString())
	name, ok := attrs.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, ServiceName, name.AsString())
}

func TestNewTracerProvider_ZeroRatioSamplesNothing(t *testing.T) {
	cfg := config.Default()
	cfg.Tracing.SampleRatio = 0

	exporter := tracetest.NewInMemoryExporter()
	tp, err := newTracerProvider(cfg, exporter)
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	router := gin.New()
	router.Use(TracingMiddleware(otelgin.WithTracerProvider(tp)))
	router.GET("/api/v1/auth/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	require.NoError(t, tp.ForceFlush(context.Background()))

	assert.Empty(t, exporter.GetSpans())
}
