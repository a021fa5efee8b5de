package analyzer

import (
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
)

type dispatcherMetrics struct {
	requestsStarted       promext.RWCounter
	requestsSucceeded     promext.RWCounter
	requestsFailed        promext.RWCounter
	requestsCancelled     promext.RWCounter
	requestsDropped       promext.RWCounter // client gone
	requestsRejected      promext.RWCounter
	activeRequests        promext.RWGauge
	chunksDispatchedTotal promext.RWCounter
	chunksDiscardedTotal  promext.RWCounter
	recordsProcessedTotal promext.RWCounter
	matchedRecordsTotal   promext.RWCounter
	umlDuplicatesTotal    promext.RWCounter
	queuedEvents          promext.RWGauge // commands and completions waiting in the controller mailbox
}

func newDispatcherMetrics(metricCreator promreg.MetricCreator) dispatcherMetrics {
	requests := metricCreator.AddOrGetCounterVec("requests_total", "Numbers of analysis requests by result", []string{"result"}, nil)
	return dispatcherMetrics{
		requestsStarted:       requests.WithLabelValues("started"),
		requestsSucceeded:     requests.WithLabelValues("success"),
		requestsFailed:        requests.WithLabelValues("error"),
		requestsCancelled:     requests.WithLabelValues("cancelled"),
		requestsDropped:       requests.WithLabelValues("dropped"),
		requestsRejected:      requests.WithLabelValues("rejected"),
		activeRequests:        metricCreator.AddOrGetGauge("active_requests", "Numbers of requests in progress", nil, nil),
		chunksDispatchedTotal: metricCreator.AddOrGetCounter("chunks_dispatched_total", "Numbers of chunks dispatched to worker slots", nil, nil),
		chunksDiscardedTotal:  metricCreator.AddOrGetCounter("chunks_discarded_total", "Numbers of completed chunks discarded due to unknown requests", nil, nil),
		recordsProcessedTotal: metricCreator.AddOrGetCounter("records_processed_total", "Numbers of records matched by worker slots", nil, nil),
		matchedRecordsTotal:   metricCreator.AddOrGetCounter("matched_records_total", "Numbers of records with a match", nil, nil),
		umlDuplicatesTotal:    metricCreator.AddOrGetCounter("uml_duplicates_total", "Numbers of requests with duplicated UML request, response or event captures", nil, nil),
		queuedEvents:          metricCreator.AddOrGetGauge("queued_events", "Numbers of events waiting in the controller mailbox", nil, nil),
	}
}

type continuousMetrics struct {
	activeSessions promext.RWGauge
	tailPasses     promext.RWCounter
	tailRetries    promext.RWCounter
}

func newContinuousMetrics(metricCreator promreg.MetricCreator) continuousMetrics {
	continuousMetricCreator := metricCreator.AddOrGetPrefix("continuous_", nil, nil)
	return continuousMetrics{
		activeSessions: continuousMetricCreator.AddOrGetGauge("active_sessions", "Numbers of analysis sessions in progress", nil, nil),
		tailPasses:     continuousMetricCreator.AddOrGetCounter("tail_passes_total", "Numbers of sub-requests issued for newly appended records", nil, nil),
		tailRetries:    continuousMetricCreator.AddOrGetCounter("tail_retries_total", "Numbers of checks finding no new records", nil, nil),
	}
}
