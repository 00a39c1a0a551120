package metrics

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Sink receives counters and durations from the core. Implementations must
// not block and must not fail.
type Sink interface {
	RecordAnalysis(success bool)
	RecordAnalysisDuration(d time.Duration)
	RecordMessage(messageType string)
	RecordTaskEvent(event, attr string)
	RecordTaskDuration(op string, d time.Duration)
	RecordSpan(name string, d time.Duration, err error)
}

// Instrument names.
const (
	AnalysisRequests = "ai.analysis.requests"
	AnalysisDuration = "ai.analysis.duration"
	MessagesSent     = "whatsapp.messages.sent"
	TaskEvents       = "tasks.events"
	TaskDuration     = "tasks.operation.duration"
	Spans            = "spans"
	SpanErrors       = "spans.errors"
)

const instrumentationName = "github.com/nhle/smarttask"

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAnalysis(bool)                      {}
func (Nop) RecordAnalysisDuration(time.Duration)     {}
func (Nop) RecordMessage(string)                     {}
func (Nop) RecordTaskEvent(string, string)           {}
func (Nop) RecordTaskDuration(string, time.Duration) {}
func (Nop) RecordSpan(string, time.Duration, error)  {}

// Duration aggregates observations of one histogram series.
type Duration struct {
	Count int64
	Total time.Duration
	Max   time.Duration
}

// Mean returns the average observation, or 0 with none recorded.
func (d Duration) Mean() time.Duration {
	if d.Count == 0 {
		return 0
	}
	return d.Total / time.Duration(d.Count)
}

// Snapshot is a point-in-time copy of a Registry, keyed "name{k=v,...}"
// with attributes sorted by key.
type Snapshot struct {
	Counters  map[string]int64
	Durations map[string]Duration
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	spanProcessors []sdktrace.SpanProcessor
}

// WithSpanProcessor attaches a processor (an exporter or a recorder) to the
// Registry's tracer provider.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessors = append(o.spanProcessors, sp) }
}

// Registry is a Sink backed by an OpenTelemetry meter provider with a manual
// reader, plus the tracer provider used by Trace.
type Registry struct {
	reader *sdkmetric.ManualReader
	meters *sdkmetric.MeterProvider
	traces *sdktrace.TracerProvider
	tracer trace.Tracer

	analyses      metric.Int64Counter
	analysisTimer metric.Float64Histogram
	messages      metric.Int64Counter
	taskEvents    metric.Int64Counter
	taskTimer     metric.Float64Histogram
	spanTimer     metric.Float64Histogram
	spanErrors    metric.Int64Counter
}

// NewRegistry builds the meter and tracer providers and registers every
// instrument.
func NewRegistry(opts ...Option) *Registry {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reader := sdkmetric.NewManualReader()
	meters := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tpOpts := make([]sdktrace.TracerProviderOption, 0, len(o.spanProcessors))
	for _, sp := range o.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	traces := sdktrace.NewTracerProvider(tpOpts...)

	r := &Registry{
		reader: reader,
		meters: meters,
		traces: traces,
		tracer: traces.Tracer(instrumentationName),
	}

	m := meters.Meter(instrumentationName)
	r.analyses = mustCounter(m, AnalysisRequests, "Task analyses by outcome")
	r.analysisTimer = mustHistogram(m, AnalysisDuration, "Task analysis latency")
	r.messages = mustCounter(m, MessagesSent, "WhatsApp deliveries by message type")
	r.taskEvents = mustCounter(m, TaskEvents, "Task lifecycle events")
	r.taskTimer = mustHistogram(m, TaskDuration, "Task service operation latency")
	r.spanTimer = mustHistogram(m, Spans, "Traced operation latency")
	r.spanErrors = mustCounter(m, SpanErrors, "Traced operations that failed")
	return r
}

// Instrument creation only fails on an invalid name, which is a programming
// error.
func mustCounter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		panic(fmt.Sprintf("metrics: counter %s: %v", name, err))
	}
	return c
}

func mustHistogram(m metric.Meter, name, desc string) metric.Float64Histogram {
	h, err := m.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
	if err != nil {
		panic(fmt.Sprintf("metrics: histogram %s: %v", name, err))
	}
	return h
}

// Tracer returns the tracer Trace uses for spans reported to this Registry.
func (r *Registry) Tracer() trace.Tracer {
	return r.tracer
}

// Shutdown flushes and stops both providers.
func (r *Registry) Shutdown(ctx context.Context) error {
	if err := r.traces.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down tracer provider: %w", err)
	}
	if err := r.meters.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down meter provider: %w", err)
	}
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func attrs(kv ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(kv...)
}

// RecordAnalysis counts one analysis, tagged by outcome.
func (r *Registry) RecordAnalysis(success bool) {
	r.analyses.Add(context.Background(), 1, attrs(attribute.Bool("success", success)))
}

// RecordAnalysisDuration times one analysis.
func (r *Registry) RecordAnalysisDuration(d time.Duration) {
	r.analysisTimer.Record(context.Background(), millis(d))
}

// RecordMessage counts one message delivery of the given type.
func (r *Registry) RecordMessage(messageType string) {
	r.messages.Add(context.Background(), 1, attrs(attribute.String("type", messageType)))
}

// RecordTaskEvent counts a task lifecycle event such as "created". attr is
// an optional "key=value" pair recorded as a second attribute.
func (r *Registry) RecordTaskEvent(event, attr string) {
	kv := []attribute.KeyValue{attribute.String("event", event)}
	if k, v, ok := strings.Cut(attr, "="); ok {
		kv = append(kv, attribute.String(k, v))
	}
	r.taskEvents.Add(context.Background(), 1, attrs(kv...))
}

// RecordTaskDuration times one task service operation.
func (r *Registry) RecordTaskDuration(op string, d time.Duration) {
	r.taskTimer.Record(context.Background(), millis(d), attrs(attribute.String("op", op)))
}

// RecordSpan times one traced operation and counts its errors.
func (r *Registry) RecordSpan(name string, d time.Duration, err error) {
	tag := attribute.String("name", name)
	r.spanTimer.Record(context.Background(), millis(d), attrs(tag))
	if err != nil {
		r.spanErrors.Add(context.Background(), 1, attrs(tag))
	}
}

// Counter returns the current value of one counter series, with tag written
// as "k=v[,k=v]" in key order.
func (r *Registry) Counter(name, tag string) int64 {
	return r.Snapshot().Counters[key(name, tag)]
}

// Snapshot collects the current cumulative state from the reader.
func (r *Registry) Snapshot() Snapshot {
	snap := Snapshot{
		Counters:  make(map[string]int64),
		Durations: make(map[string]Duration),
	}

	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(context.Background(), &rm); err != nil {
		log.Printf("[metrics] collect: %v", err)
		return snap
	}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					snap.Counters[key(m.Name, tagOf(dp.Attributes))] = dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					d := Duration{
						Count: int64(dp.Count),
						Total: fromMillis(dp.Sum),
					}
					if hi, ok := dp.Max.Value(); ok {
						d.Max = fromMillis(hi)
					}
					snap.Durations[key(m.Name, tagOf(dp.Attributes))] = d
				}
			}
		}
	}
	return snap
}

func fromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func key(name, tag string) string {
	if tag == "" {
		return name
	}
	return name + "{" + tag + "}"
}

// tagOf renders a sorted attribute set as "k=v,k=v".
func tagOf(set attribute.Set) string {
	parts := make([]string, 0, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		parts = append(parts, string(kv.Key)+"="+kv.Value.Emit())
	}
	return strings.Join(parts, ",")
}

// String renders the snapshot as one sorted line.
func (s Snapshot) String() string {
	parts := make([]string, 0, len(s.Counters)+len(s.Durations))
	for k, v := range s.Counters {
		parts = append(parts, k+"="+strconv.FormatInt(v, 10))
	}
	for k, v := range s.Durations {
		parts = append(parts, k+"=n:"+strconv.FormatInt(v.Count, 10)+",mean:"+v.Mean().String()+",max:"+v.Max.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// LogEvery writes a snapshot to the log at each interval until ctx is done.
func (r *Registry) LogEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if snap := r.Snapshot(); len(snap.Counters) > 0 || len(snap.Durations) > 0 {
				log.Printf("[metrics] %s", snap)
			}
		}
	}
}
