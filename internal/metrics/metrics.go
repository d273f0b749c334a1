package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 注册数
	registrationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "membership_registrations_total",
			Help: "Total number of applicant registrations",
		},
	)

	// 注册步骤保存数
	registrationStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_registration_steps_total",
			Help: "Total number of registration steps saved",
		},
		[]string{"step"},
	)

	// 审核操作数
	reviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_reviews_total",
			Help: "Total number of review decisions",
		},
		[]string{"action"}, // approve, reject
	)

	// 邮件投递结果
	mailDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_mail_deliveries_total",
			Help: "Total number of outbound mail delivery outcomes",
		},
		[]string{"result"}, // sent, failed, dropped
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 申请状态分布
	applicantsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "membership_applicants_by_status",
			Help: "Number of applicants by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(registrationsTotal)
	prometheus.MustRegister(registrationStepsTotal)
	prometheus.MustRegister(reviewsTotal)
	prometheus.MustRegister(mailDeliveriesTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(applicantsByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordRegistration 记录注册
func RecordRegistration() {
	registrationsTotal.Inc()
}

// RecordStepSaved 记录注册步骤保存
func RecordStepSaved(step int) {
	registrationStepsTotal.WithLabelValues(strconv.Itoa(step)).Inc()
}

// RecordReview 记录审核操作
func RecordReview(action string) {
	reviewsTotal.WithLabelValues(action).Inc()
}

// RecordMailDelivery 记录邮件投递结果
func RecordMailDelivery(result string) {
	mailDeliveriesTotal.WithLabelValues(result).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateApplicantsByStatus 更新申请状态分布指标
func UpdateApplicantsByStatus(status string, count float64) {
	applicantsByStatus.WithLabelValues(status).Set(count)
}
