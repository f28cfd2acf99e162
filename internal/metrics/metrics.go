// Package metrics はジョブ基盤の Prometheus メトリクスを提供します。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sumqueue"

// Jobs はジョブ投入・処理・ワーカー再起動のメトリクスです。jobs.Metrics を実装します。
type Jobs struct {
	registry *prometheus.Registry

	JobsSubmitted   prometheus.Counter
	JobsCompleted   prometheus.Counter
	JobsFailed      prometheus.Counter
	WorkerRestarts  prometheus.Counter
	JobDuration     prometheus.Histogram
	QueueDepth      prometheus.Gauge
	ProgressTracked prometheus.Gauge
}

// New は専用のレジストリにメトリクスを登録して返します。
func New() *Jobs {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Jobs{
		registry: reg,
		JobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs accepted into the queue",
		}),
		JobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs whose handler succeeded",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs whose handler returned an error",
		}),
		WorkerRestarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_restarts_total",
			Help:      "Total number of times the supervisor replaced a dead worker",
		}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent in the job handler",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of jobs waiting in the queue",
		}),
		ProgressTracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_tracked",
			Help:      "Number of batch ids currently tracked by the progress store",
		}),
	}
}

func (m *Jobs) IncJobsSubmitted()                  { m.JobsSubmitted.Inc() }
func (m *Jobs) IncJobsCompleted()                  { m.JobsCompleted.Inc() }
func (m *Jobs) IncJobsFailed()                     { m.JobsFailed.Inc() }
func (m *Jobs) IncWorkerRestarts()                 { m.WorkerRestarts.Inc() }
func (m *Jobs) ObserveJobDuration(seconds float64) { m.JobDuration.Observe(seconds) }
func (m *Jobs) SetQueueDepth(n int)                { m.QueueDepth.Set(float64(n)) }
func (m *Jobs) SetProgressTracked(n int)           { m.ProgressTracked.Set(float64(n)) }

// Handler は /metrics 用の HTTP ハンドラーを返します。
func (m *Jobs) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
