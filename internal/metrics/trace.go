package metrics

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerSource is implemented by sinks that own a tracer provider.
type tracerSource interface {
	Tracer() trace.Tracer
}

func tracerFor(sink Sink) trace.Tracer {
	if ts, ok := sink.(tracerSource); ok {
		return ts.Tracer()
	}
	return otel.Tracer(instrumentationName)
}

// Trace runs fn as a named span. The span is always ended: its duration and
// error are reported to sink even when fn panics, in which case the panic is
// recorded and re-raised. Sinks without their own tracer use the global
// provider.
func Trace(ctx context.Context, sink Sink, name string, fn func(ctx context.Context) error) (err error) {
	ctx, span := tracerFor(sink).Start(ctx, name)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("panic: %v", r)
			span.RecordError(perr)
			span.SetStatus(codes.Error, perr.Error())
			span.End()
			sink.RecordSpan(name, time.Since(start), perr)
			log.Printf("[trace] %s (%s) panicked: %v", name, span.SpanContext().SpanID(), r)
			panic(r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Printf("[trace] %s (%s) failed: %v", name, span.SpanContext().SpanID(), err)
		}
		span.End()
		sink.RecordSpan(name, time.Since(start), err)
	}()

	return fn(ctx)
}
