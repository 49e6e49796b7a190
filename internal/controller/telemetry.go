package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("assetgraph.controller")
	meter  = otel.Meter("assetgraph.controller")
)

// Visit results recorded on the node counter.
const (
	resultExecuted = "executed"
	resultSkipped  = "skipped"
	resultFailed   = "failed"
)

// telemetry holds the controller's instruments. They are created on first
// use from the global meter provider and are no-ops unless one is installed.
type telemetry struct {
	once         sync.Once
	passDuration metric.Float64Histogram
	nodeVisits   metric.Int64Counter
	issues       metric.Int64Counter
}

func (t *telemetry) init(logger *slog.Logger) {
	t.once.Do(func() {
		var failed []string
		var err error

		t.passDuration, err = meter.Float64Histogram("assetgraph_pass_duration_seconds",
			metric.WithDescription("Wall time of a controller pass"),
			metric.WithUnit("s"),
		)
		if err != nil {
			failed = append(failed, "pass_duration: "+err.Error())
		}

		t.nodeVisits, err = meter.Int64Counter("assetgraph_node_visits_total",
			metric.WithDescription("Node visits by result"),
		)
		if err != nil {
			failed = append(failed, "node_visits: "+err.Error())
		}

		t.issues, err = meter.Int64Counter("assetgraph_issues_total",
			metric.WithDescription("Issues reported by kind"),
		)
		if err != nil {
			failed = append(failed, "issues: "+err.Error())
		}

		if len(failed) > 0 {
			logger.Warn("Some controller metrics are unavailable.", "errors", failed)
		}
	})
}

func (t *telemetry) visit(ctx context.Context, kind, result string) {
	if t.nodeVisits != nil {
		t.nodeVisits.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("result", result),
		))
	}
}

func (t *telemetry) finish(ctx context.Context, mode string, started time.Time, issues IssueList) {
	if t.passDuration != nil {
		t.passDuration.Record(ctx, time.Since(started).Seconds(),
			metric.WithAttributes(attribute.String("mode", mode)))
	}
	if t.issues != nil {
		for _, i := range issues {
			t.issues.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", i.Kind.String())))
		}
	}
}
