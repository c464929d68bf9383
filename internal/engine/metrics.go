package engine

import (
	"runtime"
	"sync"
	"time"

	"github.com/mrz1836/forge/internal/constants"
	"github.com/mrz1836/forge/internal/domain"
)

// Metrics collects metrics about recipe and step execution.
// Implementations can send these to monitoring systems like Prometheus,
// StatsD, or custom observability platforms.
type Metrics interface {
	// RecipeStarted is called when a recipe execution begins.
	RecipeStarted(executionID, recipeName string)

	// RecipeCompleted is called when a recipe execution finishes
	// (success, failure, or cancellation).
	RecipeCompleted(executionID string, duration time.Duration, status string)

	// StepExecuted is called after each step reaches a terminal state.
	StepExecuted(executionID, stepName string, kind domain.ToolKind, duration time.Duration, success bool)

	// StepRetried is called before each retry attempt.
	StepRetried(executionID, stepName string, attempt int)
}

// NoopMetrics is a no-op implementation of Metrics for default behavior.
// Use this when metrics collection is not needed.
type NoopMetrics struct{}

// Ensure NoopMetrics implements Metrics interface.
var _ Metrics = (*NoopMetrics)(nil)

// RecipeStarted implements Metrics.
func (NoopMetrics) RecipeStarted(string, string) {}

// RecipeCompleted implements Metrics.
func (NoopMetrics) RecipeCompleted(string, time.Duration, string) {}

// StepExecuted implements Metrics.
func (NoopMetrics) StepExecuted(string, string, domain.ToolKind, time.Duration, bool) {}

// StepRetried implements Metrics.
func (NoopMetrics) StepRetried(string, string, int) {}

// metricsTracker accumulates the per-execution statistics reported in
// domain.ExecutionMetrics. One tracker per execution; safe for concurrent
// use by the steps of a phase.
type metricsTracker struct {
	mu sync.Mutex

	startedAt     time.Time
	resolution    time.Duration
	baselineHeap  uint64
	stepDurations map[string]time.Duration

	running            int
	maxConcurrent      int
	concurrencySamples int
	concurrencyTotal   int

	retryCount   int
	failureCount int
	skippedCount int

	peakMemDelta  int64
	memDeltaTotal int64
	memSamples    int

	phaseCount int
	maxDepth   int
}

func newMetricsTracker() *metricsTracker {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return &metricsTracker{
		startedAt:     time.Now().UTC(),
		baselineHeap:  mem.HeapAlloc,
		stepDurations: make(map[string]time.Duration),
	}
}

// planResolved records planning results: resolution time and plan shape.
func (t *metricsTracker) planResolved(d time.Duration, plan *domain.ExecutionPlan) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resolution = d
	t.phaseCount = len(plan.Phases)
	t.maxDepth = plan.MaxDepth()
}

// stepStarted bumps the concurrency gauge and samples memory.
func (t *metricsTracker) stepStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running++
	if t.running > t.maxConcurrent {
		t.maxConcurrent = t.running
	}
	t.sampleLocked()
}

// stepFinished lowers the gauge and folds the step result into the counters.
func (t *metricsTracker) stepFinished(result *domain.StepResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running--
	t.sampleLocked()

	t.stepDurations[result.StepName] = time.Duration(result.DurationMs) * time.Millisecond
	t.retryCount += result.RetryCount

	switch result.Status {
	case constants.StepStatusFailed:
		t.failureCount++
	case constants.StepStatusSkipped:
		t.skippedCount++
	case constants.StepStatusPending, constants.StepStatusRunning,
		constants.StepStatusCompleted, constants.StepStatusCancelled:
	}
}

// stepSkipped counts a step the orchestrator skipped without dispatching.
func (t *metricsTracker) stepSkipped(result *domain.StepResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stepDurations[result.StepName] = 0
	t.skippedCount++
}

// sampleLocked records one concurrency and heap sample. Caller holds mu.
func (t *metricsTracker) sampleLocked() {
	t.concurrencySamples++
	t.concurrencyTotal += t.running

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	delta := int64(mem.HeapAlloc) - int64(t.baselineHeap) //nolint:gosec // Heap sizes fit in int64
	if delta > t.peakMemDelta {
		t.peakMemDelta = delta
	}
	t.memDeltaTotal += delta
	t.memSamples++
}

// snapshot finalizes the metrics for reporting.
func (t *metricsTracker) snapshot() *domain.ExecutionMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	metrics := &domain.ExecutionMetrics{
		TotalDuration:      time.Since(t.startedAt),
		ResolutionDuration: t.resolution,
		StepDurations:      make(map[string]time.Duration, len(t.stepDurations)),
		MaxConcurrent:      t.maxConcurrent,
		RetryCount:         t.retryCount,
		FailureCount:       t.failureCount,
		SkippedCount:       t.skippedCount,
		PeakMemoryDelta:    t.peakMemDelta,
		PhaseCount:         t.phaseCount,
		MaxDepth:           t.maxDepth,
	}
	for name, d := range t.stepDurations {
		metrics.StepDurations[name] = d
	}
	if t.concurrencySamples > 0 {
		metrics.AvgConcurrent = float64(t.concurrencyTotal) / float64(t.concurrencySamples)
	}
	if t.memSamples > 0 {
		metrics.AvgMemoryDelta = t.memDeltaTotal / int64(t.memSamples)
	}
	return metrics
}
