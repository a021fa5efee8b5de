package msgcache

import (
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
)

type cacheMetrics struct {
	bytes        promext.RWGauge
	records      promext.RWGauge
	loadPercent  promext.RWGauge
	full         promext.RWGauge
	lookupHits   promext.RWCounter
	lookupMisses promext.RWCounter
}

func newCacheMetrics(metricCreator promreg.MetricCreator) cacheMetrics {
	cacheMetricCreator := metricCreator.AddOrGetPrefix("cache_", nil, nil)
	lookups := cacheMetricCreator.AddOrGetCounterVec("lookups_total", "Numbers of cache lookups", []string{"result"}, nil)
	return cacheMetrics{
		bytes:        cacheMetricCreator.AddOrGetGauge("bytes", "Current bytes held by cached records", nil, nil),
		records:      cacheMetricCreator.AddOrGetGauge("records", "Current numbers of cached records", nil, nil),
		loadPercent:  cacheMetricCreator.AddOrGetGauge("load_percent", "Current cache load in whole percent of max size", nil, nil),
		full:         cacheMetricCreator.AddOrGetGauge("full", "Whether the cache has rejected inserts due to max size (1) or not (0)", nil, nil),
		lookupHits:   lookups.WithLabelValues("hit"),
		lookupMisses: lookups.WithLabelValues("miss"),
	}
}

func (metrics *cacheMetrics) onReset() {
	metrics.bytes.Set(0)
	metrics.records.Set(0)
	metrics.loadPercent.Set(0)
	metrics.full.Set(0)
}
