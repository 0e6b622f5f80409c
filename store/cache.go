package store

import (
	"sync"
	"time"

	"github.com/acordlabs/submissionqc/quality"
)

// MetricsSummary is an aggregate view over recent validation reports, as
// served by the dashboard endpoint.
type MetricsSummary struct {
	TotalReports     int       `json:"totalReports"`
	FailedChecks     int       `json:"failedChecks"`
	MeanCompleteness float64   `json:"meanCompleteness"`
	MeanConsistency  float64   `json:"meanConsistency"`
	MeanOverall      float64   `json:"meanOverall"`
	ComputedAt       time.Time `json:"computedAt"`
}

// Summarize aggregates a batch of reports into a MetricsSummary.
func Summarize(reports []*quality.ValidationReport) *MetricsSummary {
	summary := &MetricsSummary{
		TotalReports: len(reports),
		ComputedAt:   time.Now(),
	}
	if len(reports) == 0 {
		return summary
	}

	for _, r := range reports {
		summary.FailedChecks += r.FailedChecks()
		summary.MeanCompleteness += r.CompletenessScore
		summary.MeanConsistency += r.ConsistencyScore
		summary.MeanOverall += r.OverallScore
	}
	n := float64(len(reports))
	summary.MeanCompleteness /= n
	summary.MeanConsistency /= n
	summary.MeanOverall /= n
	return summary
}

// MetricsCache provides an abstraction for caching the computed summary,
// so the metrics endpoint does not rescan the store on every request.
type MetricsCache interface {
	// Get returns the cached summary, or nil on miss or expiry.
	Get() *MetricsSummary

	// Set stores a summary in the cache.
	Set(summary *MetricsSummary)

	// Invalidate clears the cache, forcing a recompute on next Get.
	Invalidate()
}

// CacheConfig holds cache behavior settings.
type CacheConfig struct {
	// TTL is the time-to-live for the cached summary. Zero disables
	// expiry; the cache then refreshes only on Invalidate.
	TTL time.Duration
}

// DefaultCacheConfig returns the default summary cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 30 * time.Second}
}

// InMemoryMetricsCache is a simple in-memory MetricsCache. Thread-safe.
type InMemoryMetricsCache struct {
	summary  *MetricsSummary
	cachedAt time.Time
	config   CacheConfig
	mu       sync.RWMutex
}

// NewInMemoryMetricsCache creates an empty metrics cache.
func NewInMemoryMetricsCache(config CacheConfig) *InMemoryMetricsCache {
	return &InMemoryMetricsCache{config: config}
}

// Get returns the cached summary or nil when empty or expired.
func (c *InMemoryMetricsCache) Get() *MetricsSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.summary == nil {
		return nil
	}
	if c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL {
		return nil
	}
	return c.summary
}

// Set stores a summary.
func (c *InMemoryMetricsCache) Set(summary *MetricsSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = summary
	c.cachedAt = time.Now()
}

// Invalidate clears the cached summary.
func (c *InMemoryMetricsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = nil
}
