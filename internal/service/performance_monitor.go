package service

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	maxReadSamples    = 1000
	slowReadThreshold = 100 * time.Millisecond
	minHealthyHitRate = 70.0
)

// PerformanceMonitor tracks latency and cache effectiveness of the read paths
type PerformanceMonitor struct {
	mu          sync.RWMutex
	cachedTimes []time.Duration
	loadTimes   []time.Duration
	cacheHits   int64
	cacheMisses int64
	slowReads   int64
	totalReads  int64
}

// NewPerformanceMonitor creates a new performance monitor
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{
		cachedTimes: make([]time.Duration, 0, maxReadSamples),
		loadTimes:   make([]time.Duration, 0, maxReadSamples),
	}
}

// RecordRead records one read served from cache or from the database. A nil
// monitor ignores the sample.
func (pm *PerformanceMonitor) RecordRead(duration time.Duration, cached bool) {
	if pm == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.totalReads++
	if cached {
		pm.cacheHits++
		pm.cachedTimes = appendSample(pm.cachedTimes, duration)
	} else {
		pm.cacheMisses++
		pm.loadTimes = appendSample(pm.loadTimes, duration)
	}

	if duration > slowReadThreshold {
		pm.slowReads++
	}
}

// keeps only the newest maxReadSamples
func appendSample(samples []time.Duration, d time.Duration) []time.Duration {
	samples = append(samples, d)
	if len(samples) > maxReadSamples {
		samples = samples[len(samples)-maxReadSamples:]
	}
	return samples
}

// GetStats returns current read statistics
func (pm *PerformanceMonitor) GetStats() *PerformanceStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	stats := &PerformanceStats{
		TotalReads:  pm.totalReads,
		CacheHits:   pm.cacheHits,
		CacheMisses: pm.cacheMisses,
		SlowReads:   pm.slowReads,
	}

	if pm.totalReads > 0 {
		stats.CacheHitRate = float64(pm.cacheHits) / float64(pm.totalReads) * 100
	}
	stats.AvgCachedReadMs = averageMs(pm.cachedTimes)
	stats.AvgLoadMs = averageMs(pm.loadTimes)

	if len(pm.loadTimes) > 0 {
		sorted := make([]time.Duration, len(pm.loadTimes))
		copy(sorted, pm.loadTimes)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		stats.P95LoadMs = percentileMs(sorted, 0.95)
		stats.P99LoadMs = percentileMs(sorted, 0.99)
	}

	return stats
}

func averageMs(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range samples {
		total += d
	}
	return float64(total.Microseconds()) / float64(len(samples)) / 1000
}

func percentileMs(sorted []time.Duration, p float64) float64 {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx].Microseconds()) / 1000
}

// Reset resets all read metrics
func (pm *PerformanceMonitor) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.cachedTimes = make([]time.Duration, 0, maxReadSamples)
	pm.loadTimes = make([]time.Duration, 0, maxReadSamples)
	pm.cacheHits = 0
	pm.cacheMisses = 0
	pm.slowReads = 0
	pm.totalReads = 0
}

// CheckPerformance reports reads slower than the threshold and a poor cache hit
// rate once enough reads were seen
func (pm *PerformanceMonitor) CheckPerformance() *PerformanceCheck {
	stats := pm.GetStats()

	check := &PerformanceCheck{
		Passed: true,
		Issues: make([]string, 0),
	}

	if stats.AvgCachedReadMs > float64(slowReadThreshold.Milliseconds()) {
		check.Passed = false
		check.Issues = append(check.Issues,
			fmt.Sprintf("average cached read (%.2fms) exceeds %v", stats.AvgCachedReadMs, slowReadThreshold))
	}

	if stats.P95LoadMs > float64(slowReadThreshold.Milliseconds()) {
		check.Passed = false
		check.Issues = append(check.Issues,
			fmt.Sprintf("p95 database read (%.2fms) exceeds %v", stats.P95LoadMs, slowReadThreshold))
	}

	// only a warning: block production invalidates the cache constantly
	if stats.TotalReads > 100 && stats.CacheHitRate < minHealthyHitRate {
		check.Issues = append(check.Issues,
			fmt.Sprintf("cache hit rate (%.2f%%) is below %.0f%%", stats.CacheHitRate, minHealthyHitRate))
	}

	return check
}

// PerformanceStats contains read statistics
type PerformanceStats struct {
	TotalReads      int64   `json:"totalReads"`
	CacheHits       int64   `json:"cacheHits"`
	CacheMisses     int64   `json:"cacheMisses"`
	SlowReads       int64   `json:"slowReads"`
	CacheHitRate    float64 `json:"cacheHitRate"`
	AvgCachedReadMs float64 `json:"avgCachedReadMs"`
	AvgLoadMs       float64 `json:"avgLoadMs"`
	P95LoadMs       float64 `json:"p95LoadMs"`
	P99LoadMs       float64 `json:"p99LoadMs"`
}

// PerformanceCheck contains performance check results
type PerformanceCheck struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
}
