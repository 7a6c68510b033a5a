package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/sirupsen/logrus"
)

const (
	// metricJob for harness prometheus metrics
	metricJob = "job_id"
	// metricClient for harness prometheus metrics
	metricClient = "client"
	// metricType for harness prometheus metrics
	metricType = "type"
	// metricOperation for harness prometheus metrics
	metricOperation = "operation"
	// metricResult for harness prometheus metrics
	metricResult = "result"
	// metricAction for harness prometheus metrics
	metricAction = "action"
	// metricHost for harness prometheus metrics
	metricHost = "host"
	// metricScenario for harness prometheus metrics
	metricScenario = "scenario"

	resultSuccess = "success"
	resultFailure = "failure"
)

func result(err error) string {
	if err != nil {
		return resultFailure
	}
	return resultSuccess
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Push sends every registered metric to the push gateway at url under jobName
func Push(url, jobName string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, jobName).Gatherer(prometheus.DefaultGatherer).Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %v", url, err)
	}
	logrus.Debugf("pushed metrics to %s as %s", url, jobName)
	return nil
}
