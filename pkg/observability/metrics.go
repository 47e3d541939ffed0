package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommitsTotal   = "refdelta.commits.total"
	metricToolRunsTotal  = "refdelta.tool.runs.total"
	metricPhaseDuration  = "refdelta.phase.duration.seconds"
	metricSmellsObserved = "refdelta.smells.observed"

	attrOutcome = "outcome"
	attrReason  = "reason"
	attrDataset = "dataset"
	attrTool    = "tool"
	attrPhase   = "phase"
)

// durationBucketBoundaries spans sub-second git calls up to the analyzer
// timeout.
var durationBucketBoundaries = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 900}

// PipelineMetrics holds the OTel instruments recorded by the delta pipeline
// and the detector loop.
type PipelineMetrics struct {
	commitsTotal   metric.Int64Counter
	toolRunsTotal  metric.Int64Counter
	phaseDuration  metric.Float64Histogram
	smellsObserved metric.Int64Histogram
}

// NewPipelineMetrics creates the pipeline instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	commits, err := mt.Int64Counter(metricCommitsTotal,
		metric.WithDescription("Commits processed by terminal outcome"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommitsTotal, err)
	}

	toolRuns, err := mt.Int64Counter(metricToolRunsTotal,
		metric.WithDescription("External tool invocations by tool and outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricToolRunsTotal, err)
	}

	phase, err := mt.Float64Histogram(metricPhaseDuration,
		metric.WithDescription("Duration of a pipeline phase"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPhaseDuration, err)
	}

	smells, err := mt.Int64Histogram(metricSmellsObserved,
		metric.WithDescription("Smell count observed for one snapshot"),
		metric.WithUnit("{smell}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSmellsObserved, err)
	}

	return &PipelineMetrics{
		commitsTotal:   commits,
		toolRunsTotal:  toolRuns,
		phaseDuration:  phase,
		smellsObserved: smells,
	}, nil
}

// RecordCommit records a commit reaching a terminal state. Safe on nil.
func (pm *PipelineMetrics) RecordCommit(ctx context.Context, dataset, outcome, reason string) {
	if pm == nil {
		return
	}

	pm.commitsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrDataset, dataset),
		attribute.String(attrOutcome, outcome),
		attribute.String(attrReason, reason),
	))
}

// RecordTool records one external process invocation. Safe on nil.
func (pm *PipelineMetrics) RecordTool(ctx context.Context, tool, outcome string) {
	if pm == nil {
		return
	}

	pm.toolRunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrTool, tool),
		attribute.String(attrOutcome, outcome),
	))
}

// RecordPhase records how long a phase took. Safe on nil.
func (pm *PipelineMetrics) RecordPhase(ctx context.Context, phase string, d time.Duration) {
	if pm == nil {
		return
	}

	pm.phaseDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrPhase, phase)))
}

// RecordSmells records a snapshot smell count. Safe on nil.
func (pm *PipelineMetrics) RecordSmells(ctx context.Context, phase string, count int) {
	if pm == nil {
		return
	}

	pm.smellsObserved.Record(ctx, int64(count), metric.WithAttributes(attribute.String(attrPhase, phase)))
}
