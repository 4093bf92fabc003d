package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var loadMetrics struct {
	once    sync.Once
	counter metric.Int64Counter
}

// recordConfigLoadResult counts startup config loads by profile and outcome
// so a crash-looping deployment shows up as a stream of invalid loads.
func recordConfigLoadResult(ctx context.Context, profile, outcome string, err error) {
	loadMetrics.once.Do(func() {
		if c, cerr := otel.Meter("palette/config").Int64Counter("palette.config.load.results"); cerr == nil {
			loadMetrics.counter = c
		}
	})
	if loadMetrics.counter == nil {
		return
	}
	loadMetrics.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", normalizeConfigProfile(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", classifyConfigLoadError(err)),
	))
}

func normalizeConfigProfile(profile string) string {
	if v := strings.ToLower(strings.TrimSpace(profile)); v != "" {
		return v
	}
	return "unknown"
}

func classifyConfigLoadError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidConfig):
		return "validation"
	case errors.Is(err, errEnvParse):
		return "parse"
	default:
		return "load"
	}
}
