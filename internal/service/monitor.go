package service

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Monitor 监控服务：内存计数用于 /api/stats，同时同步到 Prometheus
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	DBErrors      int64
	SendFailures  int64
	PublishErrors int64

	// 业务统计
	MessagesSent    int64
	MessagesRead    int64
	ReportsQueued   int64
	EventsDelivered int64
	EventsDropped   int64
	Connections     int64

	// 时间统计
	LastDBError     time.Time
	LastMessageTime time.Time
	LastConnectTime time.Time

	registry        *prometheus.Registry
	messagesSent    prometheus.Counter
	messagesRead    prometheus.Counter
	sendFailures    *prometheus.CounterVec
	reportsQueued   prometheus.Counter
	publishErrors   prometheus.Counter
	dbErrors        prometheus.Counter
	wsConnections   prometheus.Gauge
	eventsDelivered *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
}

const metricsNamespace = "momchat"

// NewMonitor 创建独立的监控实例（测试用），进程内通常使用 GetMonitor
func NewMonitor() *Monitor {
	m := &Monitor{
		registry: prometheus.NewRegistry(),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "messages", Name: "sent_total",
			Help: "Messages persisted by sendMessage.",
		}),
		messagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "messages", Name: "read_total",
			Help: "Read-state transitions.",
		}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "messages", Name: "send_failures_total",
			Help: "Rejected or failed sendMessage calls by error kind.",
		}, []string{"kind"}),
		reportsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "moderation", Name: "reports_queued_total",
			Help: "Reports published to the moderation queue.",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "moderation", Name: "publish_errors_total",
			Help: "Reports that could not be published to the moderation queue.",
		}),
		dbErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "store", Name: "errors_total",
			Help: "Store failures surfaced to callers.",
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "realtime", Name: "connections",
			Help: "Currently joined websocket connections.",
		}),
		eventsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "realtime", Name: "events_delivered_total",
			Help: "Events enqueued to connections.",
		}, []string{"event"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "realtime", Name: "events_dropped_total",
			Help: "Events with no live connection for the target user.",
		}, []string{"event"}),
	}
	m.registry.MustRegister(
		m.messagesSent, m.messagesRead, m.sendFailures,
		m.reportsQueued, m.publishErrors, m.dbErrors,
		m.wsConnections, m.eventsDelivered, m.eventsDropped,
	)
	return m
}

var globalMonitor = NewMonitor()

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// Registry 供 /metrics 暴露
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// RecordDBError 记录数据库错误
func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
	m.LastDBError = time.Now()
	m.dbErrors.Inc()
}

// RecordMessageSent 记录发送成功
func (m *Monitor) RecordMessageSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSent++
	m.LastMessageTime = time.Now()
	m.messagesSent.Inc()
}

// RecordSendFailure 记录发送失败
func (m *Monitor) RecordSendFailure(kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendFailures++
	m.sendFailures.WithLabelValues(kind.String()).Inc()
}

// RecordMessageRead 记录已读
func (m *Monitor) RecordMessageRead() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesRead++
	m.messagesRead.Inc()
}

// RecordReportQueued 记录举报入队
func (m *Monitor) RecordReportQueued() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReportsQueued++
	m.reportsQueued.Inc()
}

// RecordPublishError 记录举报入队失败
func (m *Monitor) RecordPublishError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishErrors++
	m.publishErrors.Inc()
}

// ConnectionOpened websocket 连接加入
func (m *Monitor) ConnectionOpened() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Connections++
	m.LastConnectTime = time.Now()
	m.wsConnections.Inc()
}

// ConnectionClosed websocket 连接离开
func (m *Monitor) ConnectionClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Connections--
	m.wsConnections.Dec()
}

// EventDelivered 事件投递到 conns 个连接
func (m *Monitor) EventDelivered(event string, conns int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EventsDelivered += int64(conns)
	m.eventsDelivered.WithLabelValues(event).Add(float64(conns))
}

// EventDropped 目标用户没有在线连接
func (m *Monitor) EventDropped(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EventsDropped++
	m.eventsDropped.WithLabelValues(event).Inc()
}

// GetStats 获取统计信息
func (m *Monitor) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	readRate := float64(0)
	if m.MessagesSent > 0 {
		readRate = float64(m.MessagesRead) / float64(m.MessagesSent) * 100
	}

	return map[string]interface{}{
		"errors": map[string]interface{}{
			"db":      m.DBErrors,
			"send":    m.SendFailures,
			"publish": m.PublishErrors,
		},
		"messaging": map[string]interface{}{
			"messages_sent":  m.MessagesSent,
			"messages_read":  m.MessagesRead,
			"read_rate":      readRate,
			"reports_queued": m.ReportsQueued,
		},
		"realtime": map[string]interface{}{
			"connections":      m.Connections,
			"events_delivered": m.EventsDelivered,
			"events_dropped":   m.EventsDropped,
		},
		"last_events": map[string]interface{}{
			"db_error":     m.LastDBError,
			"last_message": m.LastMessageTime,
			"last_connect": m.LastConnectTime,
		},
	}
}

// Reset 重置内存统计（Prometheus 计数器单调递增，不受影响）
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors = 0
	m.SendFailures = 0
	m.PublishErrors = 0
	m.MessagesSent = 0
	m.MessagesRead = 0
	m.ReportsQueued = 0
	m.EventsDelivered = 0
	m.EventsDropped = 0
}
