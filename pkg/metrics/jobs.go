package metrics

import (
	"time"

	"github.com/portworx/jobharness/drivers/job"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// jobStatusGauge last status seen for a job
	jobStatusGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jobharness_job_status",
		Help: "Last observed status of a job",
	}, []string{metricJob, metricClient, metricType})
	// jobProgressGauge last percent complete seen for a job
	jobProgressGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jobharness_job_percent_complete",
		Help: "Last observed progress of a job",
	}, []string{metricJob, metricClient, metricType})
	// pollCounter number of job inspections
	pollCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobharness_polls_total",
		Help: "Number of job polls",
	}, []string{metricOperation, metricResult})
	// waitDuration time spent in bounded waits
	waitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobharness_wait_duration_seconds",
		Help:    "Duration of bounded waits on jobs",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	}, []string{metricOperation, metricResult})
	// interruptionCounter number of interruption events applied
	interruptionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobharness_interruptions_total",
		Help: "Number of interruption events",
	}, []string{metricAction, metricHost, metricResult})
	// scenarioStatusGauge last result of a scenario
	scenarioStatusGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jobharness_scenario_status",
		Help: "Last result of a scenario",
	}, []string{metricScenario})
	// scenarioDurationGauge duration of the last run of a scenario
	scenarioDurationGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jobharness_scenario_duration_seconds",
		Help: "Duration of the last run of a scenario",
	}, []string{metricScenario})
)

var (
	// jobStatus map of job status to enum
	jobStatus = map[job.Status]float64{
		job.StatusCreated:             0,
		job.StatusQueued:              1,
		job.StatusRunning:             2,
		job.StatusWaiting:             3,
		job.StatusSuspended:           4,
		job.StatusPending:             5,
		job.StatusCompleted:           6,
		job.StatusCompletedWithErrors: 7,
		job.StatusFailed:              8,
		job.StatusKilled:              9,
	}
	// scenarioStatus map of scenario result to enum
	scenarioStatus = map[string]float64{
		"SKIPPED": 0,
		"PASS":    1,
		"FAIL":    2,
		"ERROR":   3,
	}
)

// ObserveJob records the status and progress of info
func ObserveJob(info job.Info) {
	labels := prometheus.Labels{
		metricJob:    info.ID,
		metricClient: info.Client,
		metricType:   string(info.Type),
	}
	status, ok := jobStatus[job.ParseStatus(string(info.Status))]
	if !ok {
		status = -1
	}
	jobStatusGauge.With(labels).Set(status)
	jobProgressGauge.With(labels).Set(float64(info.PercentComplete))
}

// ObservePoll counts one inspection made by operation
func ObservePoll(operation string, err error) {
	pollCounter.With(prometheus.Labels{metricOperation: operation, metricResult: result(err)}).Inc()
}

// ObserveWait records how long a wait took and how it ended
func ObserveWait(operation string, d time.Duration, err error) {
	waitDuration.With(prometheus.Labels{metricOperation: operation, metricResult: result(err)}).Observe(d.Seconds())
}

// ObserveInterruption counts an interruption event
func ObserveInterruption(action, host string, err error) {
	interruptionCounter.With(prometheus.Labels{metricAction: action, metricHost: host, metricResult: result(err)}).Inc()
}

// ObserveScenario records the result of a scenario run
func ObserveScenario(name, status string, d time.Duration) {
	labels := prometheus.Labels{metricScenario: name}
	value, ok := scenarioStatus[status]
	if !ok {
		value = -1
	}
	scenarioStatusGauge.With(labels).Set(value)
	scenarioDurationGauge.With(labels).Set(d.Seconds())
}

func init() {
	prometheus.MustRegister(jobStatusGauge)
	prometheus.MustRegister(jobProgressGauge)
	prometheus.MustRegister(pollCounter)
	prometheus.MustRegister(waitDuration)
	prometheus.MustRegister(interruptionCounter)
	prometheus.MustRegister(scenarioStatusGauge)
	prometheus.MustRegister(scenarioDurationGauge)
}
