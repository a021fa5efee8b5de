// Package msgcache provides a size-bounded, fill-once cache of decoded log records
//
// Records are never evicted individually. Once an insert would exceed the max size, the cache is marked as full and
// rejects further inserts until it's reset or its max size is increased.
package msgcache

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/puzpuzpuz/xsync"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/defs"
)

// Cache stages decoded records of a LogSource by index
//
// All methods are safe for concurrent use. Lookups only take the read side of the lock.
type Cache struct {
	logger    logger.Logger
	source    base.LogSource
	decoder   base.LogDecoder
	numFields int
	lock      *xsync.RBMutex
	entries   map[int]*base.LogRecord
	enabled   bool
	full      bool
	current   int64
	max       int64
	load      int    // last emitted load in whole percent
	sizeMB    uint64 // last emitted size in whole MB
	listeners []Listener
	hits      *xsync.Counter
	misses    *xsync.Counter
	metrics   cacheMetrics
}

// Stats is a snapshot of cache state
type Stats struct {
	Enabled      bool
	Full         bool
	Records      int
	CurrentBytes int64
	MaxBytes     int64
	LoadPercent  int
	Hits         int64
	Misses       int64
}

// NewCache creates a Cache over the given source, decoding records by the given decoder
//
// The schema is used to create empty placeholders for records which cannot be fetched or decoded
func NewCache(parentLogger logger.Logger, source base.LogSource, decoder base.LogDecoder, schema base.LogSchema,
	metricCreator promreg.MetricCreator, maxBytes int64, enabled bool,
) *Cache {
	if maxBytes < 0 {
		parentLogger.Panicf("invalid cache max size %d", maxBytes)
	}
	c := &Cache{
		logger:    parentLogger.WithField(defs.LabelComponent, "MessageCache"),
		source:    source,
		decoder:   decoder,
		numFields: schema.GetMaxFields(),
		lock:      &xsync.RBMutex{},
		entries:   make(map[int]*base.LogRecord, 1000),
		enabled:   enabled,
		full:      false,
		current:   0,
		max:       maxBytes,
		load:      0,
		sizeMB:    0,
		listeners: nil,
		hits:      &xsync.Counter{},
		misses:    &xsync.Counter{},
		metrics:   newCacheMetrics(metricCreator),
	}
	c.metrics.onReset()
	return c
}

// AddListener registers a telemetry listener
func (c *Cache) AddListener(listener Listener) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.listeners = append(c.listeners, listener)
}

// SetEnabled enables or disables the cache. Disabling clears all entries.
func (c *Cache) SetEnabled(enabled bool) {
	var events eventList
	c.lock.Lock()
	if c.enabled != enabled {
		c.enabled = enabled
		if !enabled {
			c.resetLocked(&events)
		}
		events.add(func(l Listener) { l.EnabledChanged(enabled) })
		c.logger.Infof("enabled=%t", enabled)
	}
	listeners := c.listeners
	c.lock.Unlock()
	events.emit(listeners)
}

// SetMaxSize changes the max size in bytes
//
// If the new max is smaller than the current usage, the whole cache is reset. If it's larger, a full cache becomes
// writable again.
func (c *Cache) SetMaxSize(maxBytes int64) {
	if maxBytes < 0 {
		c.logger.Panicf("invalid cache max size %d", maxBytes)
	}
	var events eventList
	c.lock.Lock()
	if maxBytes != c.max {
		if c.current > maxBytes {
			c.resetLocked(&events)
		} else if maxBytes > c.max && c.full {
			c.setFullLocked(false, &events)
		}
		c.max = maxBytes
		c.updateTelemetryLocked(&events)
		maxMB := bytesToMB(maxBytes)
		events.add(func(l Listener) { l.MaxSizeMBChanged(maxMB) })
		c.logger.Infof("max size=%s", datasize.ByteSize(maxBytes).HR())
	}
	listeners := c.listeners
	c.lock.Unlock()
	events.emit(listeners)
}

// Source returns the log source which the cache stages records of
func (c *Cache) Source() base.LogSource {
	return c.source
}

// Get looks up a cached record
func (c *Cache) Get(index int) (*base.LogRecord, bool) {
	tok := c.lock.RLock()
	record, ok := c.entries[index]
	c.lock.RUnlock(tok)
	if ok {
		c.hits.Inc()
		c.metrics.lookupHits.Inc()
	} else {
		c.misses.Inc()
		c.metrics.lookupMisses.Inc()
	}
	return record, ok
}

// CacheByIndex fetches, decodes and inserts the record at index
//
// Returns false if the cache is disabled or full, if the record is already cached, cannot be fetched or decoded, is
// empty, or would exceed the max size.
func (c *Cache) CacheByIndex(index int) bool {
	if !c.acceptsInsert(index) {
		return false
	}
	record, ok := c.decode(index)
	if !ok {
		return false
	}
	return c.insert(index, record)
}

// CacheWrapper inserts an already decoded record, with the same rules as CacheByIndex
func (c *Cache) CacheWrapper(index int, record *base.LogRecord) bool {
	if record == nil {
		return false
	}
	return c.insert(index, record)
}

// CacheByRange caches records in [from, to) and stops at the first record which is not inserted
func (c *Cache) CacheByRange(from int, to int) bool {
	for i := from; i < to; i++ {
		if !c.CacheByIndex(i) {
			return false
		}
	}
	return true
}

// CacheByIndexSet caches records of the given indexes and stops at the first record which is not inserted
func (c *Cache) CacheByIndexSet(indexes []int) bool {
	for _, i := range indexes {
		if !c.CacheByIndex(i) {
			return false
		}
	}
	return true
}

// Fetch returns the record at index from cache, or decodes it from source and tries to cache it
//
// Records which cannot be fetched or decoded are returned as empty placeholders
func (c *Cache) Fetch(index int) *base.LogRecord {
	if record, ok := c.Get(index); ok {
		return record
	}
	record, ok := c.decode(index)
	if !ok {
		return base.NewEmptyRecord(c.numFields)
	}
	c.insert(index, record)
	return record
}

// Reset clears all entries and re-emits size, load and fullness
func (c *Cache) Reset() {
	var events eventList
	c.lock.Lock()
	c.resetLocked(&events)
	listeners := c.listeners
	c.lock.Unlock()
	events.emit(listeners)
}

// Stats returns a snapshot of cache state
func (c *Cache) Stats() Stats {
	tok := c.lock.RLock()
	defer c.lock.RUnlock(tok)
	return Stats{
		Enabled:      c.enabled,
		Full:         c.full,
		Records:      len(c.entries),
		CurrentBytes: c.current,
		MaxBytes:     c.max,
		LoadPercent:  c.load,
		Hits:         c.hits.Value(),
		Misses:       c.misses.Value(),
	}
}

// StatusString returns a human-readable summary
func (c *Cache) StatusString() string {
	stats := c.Stats()
	switch {
	case !stats.Enabled:
		return "Disabled."
	case stats.Full:
		return fmt.Sprintf("Enabled. Load - %d%% ( Full ). Size - %d Mb / %d Mb",
			stats.LoadPercent, bytesToMB(stats.CurrentBytes), bytesToMB(stats.MaxBytes))
	default:
		return fmt.Sprintf("Enabled. Load - %d%%. Size - %d Mb / %d Mb",
			stats.LoadPercent, bytesToMB(stats.CurrentBytes), bytesToMB(stats.MaxBytes))
	}
}

func (c *Cache) acceptsInsert(index int) bool {
	tok := c.lock.RLock()
	defer c.lock.RUnlock(tok)
	if !c.enabled || c.full {
		return false
	}
	_, exists := c.entries[index]
	return !exists
}

func (c *Cache) decode(index int) (*base.LogRecord, bool) {
	raw, ok := c.source.RawBytes(index)
	if !ok {
		c.logger.Debugf("failed to fetch record %d", index)
		return nil, false
	}
	record, err := c.decoder.Decode(raw)
	if err != nil {
		c.logger.Debugf("failed to decode record %d: %s", index, err.Error())
		return nil, false
	}
	return record, true
}

func (c *Cache) insert(index int, record *base.LogRecord) bool {
	size := int64(record.Size())
	if size == 0 {
		return false
	}
	var events eventList
	c.lock.Lock()
	inserted := c.insertLocked(index, record, size, &events)
	listeners := c.listeners
	c.lock.Unlock()
	events.emit(listeners)
	return inserted
}

func (c *Cache) insertLocked(index int, record *base.LogRecord, size int64, events *eventList) bool {
	if !c.enabled || c.full {
		return false
	}
	if _, exists := c.entries[index]; exists {
		return false
	}
	if c.current+size > c.max {
		c.logger.Warnf("cache is full at %s, rejected record %d of %d bytes",
			datasize.ByteSize(c.current).HR(), index, size)
		c.setFullLocked(true, events)
		return false
	}
	c.entries[index] = record
	c.current += size
	c.metrics.records.Inc()
	c.updateTelemetryLocked(events)
	return true
}

func (c *Cache) resetLocked(events *eventList) {
	c.entries = make(map[int]*base.LogRecord, 1000)
	c.current = 0
	c.load = 0
	c.sizeMB = 0
	c.full = false
	c.metrics.onReset()
	events.add(func(l Listener) { l.CurrentSizeMBChanged(0) })
	events.add(func(l Listener) { l.LoadChanged(0) })
	events.add(func(l Listener) { l.FullChanged(false) })
}

func (c *Cache) setFullLocked(full bool, events *eventList) {
	if c.full == full {
		return
	}
	c.full = full
	if full {
		c.metrics.full.Set(1)
	} else {
		c.metrics.full.Set(0)
	}
	events.add(func(l Listener) { l.FullChanged(full) })
}

// updateTelemetryLocked updates metrics and emits events for changes of whole percent and whole MB
func (c *Cache) updateTelemetryLocked(events *eventList) {
	load := 0
	if c.max > 0 {
		load = int(c.current * 100 / c.max)
	}
	if load != c.load {
		c.load = load
		events.add(func(l Listener) { l.LoadChanged(load) })
	}
	sizeMB := bytesToMB(c.current)
	if sizeMB != c.sizeMB {
		c.sizeMB = sizeMB
		events.add(func(l Listener) { l.CurrentSizeMBChanged(sizeMB) })
	}
	c.metrics.bytes.Set(c.current)
	c.metrics.loadPercent.Set(int64(load))
}

func bytesToMB(bytes int64) uint64 {
	return uint64(datasize.ByteSize(bytes) / datasize.MB)
}

type eventList []func(l Listener)

func (events *eventList) add(event func(l Listener)) {
	*events = append(*events, event)
}

func (events eventList) emit(listeners []Listener) {
	for _, event := range events {
		for _, l := range listeners {
			event(l)
		}
	}
}
