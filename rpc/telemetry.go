package rpc

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/BaSui01/mcpgate/rpc"

// instruments OpenTelemetry 追踪与指标。未配置导出器时使用全局 noop 实现。
type instruments struct {
	tracer   trace.Tracer
	duration metric.Float64Histogram
	entries  metric.Int64Counter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider) *instruments {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	in := &instruments{tracer: tp.Tracer(instrumentationName)}

	var err error
	in.duration, err = meter.Float64Histogram("rpc.server.duration",
		metric.WithDescription("JSON-RPC entry handling duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5))
	if err != nil {
		in.duration = noop.Float64Histogram{}
	}

	in.entries, err = meter.Int64Counter("rpc.server.entries",
		metric.WithDescription("Total number of JSON-RPC entries handled"),
		metric.WithUnit("{entry}"))
	if err != nil {
		in.entries = noop.Int64Counter{}
	}
	return in
}

// start 为单条请求开启 span
func (in *instruments) start(ctx context.Context, method string) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, "rpc."+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", method),
		))
}

// end 结束 span 并记录耗时
func (in *instruments) end(ctx context.Context, span trace.Span, method string, resp Response, duration time.Duration) {
	defer span.End()

	attrs := []attribute.KeyValue{attribute.String("rpc.method", method)}
	if resp.Error != nil {
		attrs = append(attrs, attribute.Int("rpc.jsonrpc.error_code", resp.Error.Code))
		span.SetStatus(codes.Error, resp.Error.Message)
	}
	span.SetAttributes(attrs...)

	in.entries.Add(ctx, 1, metric.WithAttributes(attrs...))
	in.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("rpc.method", method)))
}
