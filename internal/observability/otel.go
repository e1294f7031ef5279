package observability

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/bonusfinder-backend/internal/platform/envutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

const tracerName = "github.com/yungbote/bonusfinder-backend"

const (
	exporterOTLP   = "otlp"
	exporterStdout = "stdout"
	exporterNone   = "none"
)

type OtelConfig struct {
	ServiceName string
	Environment string
	Version     string
}

// traceSettings is the OTEL_* environment as read once at startup.
type traceSettings struct {
	enabled     bool
	exporter    string
	endpoint    string
	insecure    bool
	headers     map[string]string
	sampleRatio float64
}

func traceSettingsFromEnv() traceSettings {
	ts := traceSettings{
		enabled:     envutil.Bool("OTEL_ENABLED", false),
		endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "", nil),
		insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
		headers:     parseHeaders(envutil.List("OTEL_EXPORTER_OTLP_HEADERS")),
		sampleRatio: clampRatio(envutil.Float("OTEL_SAMPLER_RATIO", 0.1)),
	}
	ts.exporter = strings.ToLower(envutil.String("OTEL_TRACES_EXPORTER", "", nil))
	if ts.exporter == "" {
		ts.exporter = exporterStdout
		if ts.endpoint != "" {
			ts.exporter = exporterOTLP
		}
	}
	return ts
}

var (
	otelOnce     sync.Once
	otelShutdown func(context.Context) error
)

// InitOTel installs the global tracer provider once per process. Both the API
// and the heavy worker call it through app.New. The returned shutdown func is
// nil when tracing is off.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	otelOnce.Do(func() {
		ts := traceSettingsFromEnv()
		if !ts.enabled {
			return
		}
		serviceName := strings.TrimSpace(cfg.ServiceName)
		if serviceName == "" {
			serviceName = "bonusfinder"
		}
		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
			attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
		))
		if err != nil && log != nil {
			log.Warn("otel resource incomplete", "error", err)
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ts.sampleRatio))),
			sdktrace.WithResource(res),
		}
		exporter, err := newSpanExporter(ctx, ts)
		switch {
		case err != nil:
			if log != nil {
				log.Warn("otel exporter unavailable, spans are sampled but dropped", "exporter", ts.exporter, "error", err)
			}
		case exporter != nil:
			opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
		}

		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otelShutdown = tp.Shutdown
		if log != nil {
			log.Info("Tracing enabled", "service", serviceName, "exporter", ts.exporter, "sample_ratio", ts.sampleRatio)
		}
	})
	return otelShutdown
}

// StartSpan starts a span on the global provider; a no-op when tracing is off.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func newSpanExporter(ctx context.Context, ts traceSettings) (sdktrace.SpanExporter, error) {
	switch ts.exporter {
	case exporterNone:
		return nil, nil
	case exporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case exporterOTLP:
		if ts.endpoint == "" {
			return nil, fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required for the otlp exporter")
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(ts.endpoint)}
		if ts.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(ts.headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(ts.headers))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", ts.exporter)
	}
}

func clampRatio(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// parseHeaders reads key=value pairs; malformed entries are skipped.
func parseHeaders(parts []string) map[string]string {
	headers := map[string]string{}
	for _, part := range parts {
		key, val, ok := strings.Cut(part, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" || val == "" {
			continue
		}
		headers[key] = val
	}
	return headers
}
