/*
 * @module service/monitoring/metrics
 * @description 对账与数据接入的 Prometheus 指标,注册到默认采集器,由 /metrics 端点暴露
 * @architecture 分层架构 - 监控层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 业务事件发生 -> 指标记录 -> Prometheus 拉取
 * @rules 指标标签避免高基数,日期不作为标签
 * @dependencies github.com/prometheus/client_golang
 * @refs main.go, service/reconcile/engine.go
 */

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_reconcile_runs_started_total",
			Help: "对账运行启动次数",
		},
		[]string{"triggered_by"},
	)

	runsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_reconcile_runs_finished_total",
			Help: "对账运行结束次数,按终态区分",
		},
		[]string{"status"},
	)

	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warehouse_reconcile_run_duration_seconds",
			Help:    "对账运行耗时分布",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	anomaliesDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_reconcile_anomalies_detected_total",
			Help: "对账检出异常累计数,按类型区分",
		},
		[]string{"type"},
	)

	snapshotsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_snapshots_ingested_total",
			Help: "快照接入累计数,按来源区分",
		},
		[]string{"source"},
	)

	importRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_import_rows_total",
			Help: "CSV 导入行数,按数据类型与结果区分",
		},
		[]string{"kind", "result"},
	)

	reportsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_reports_generated_total",
			Help: "报表生成次数,按报表类型区分",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		runsStarted,
		runsFinished,
		runDuration,
		anomaliesDetected,
		snapshotsIngested,
		importRows,
		reportsGenerated,
	)
}

// RecordRunStarted 记录一次对账运行启动
func RecordRunStarted(triggeredBy string) {
	runsStarted.WithLabelValues(triggeredBy).Inc()
}

// RecordRunFinished 记录一次对账运行结束及其耗时
func RecordRunFinished(status string, seconds float64) {
	runsFinished.WithLabelValues(status).Inc()
	runDuration.Observe(seconds)
}

// RecordAnomalies 记录检出的异常数
func RecordAnomalies(anomalyType string, count int) {
	if count <= 0 {
		return
	}
	anomaliesDetected.WithLabelValues(anomalyType).Add(float64(count))
}

// RecordSnapshotIngested 记录一次快照接入
func RecordSnapshotIngested(source string) {
	snapshotsIngested.WithLabelValues(source).Inc()
}

// RecordImportRows 记录 CSV 导入行数
func RecordImportRows(kind, result string, n int) {
	if n <= 0 {
		return
	}
	importRows.WithLabelValues(kind, result).Add(float64(n))
}

// RecordReportGenerated 记录一次报表生成
func RecordReportGenerated(kind string) {
	reportsGenerated.WithLabelValues(kind).Inc()
}
