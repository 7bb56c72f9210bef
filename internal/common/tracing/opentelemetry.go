// Package tracing 提供 OpenTelemetry 分布式追踪
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/dumeirei/marketplace-backend"

// Config 追踪配置
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string // OTLP gRPC 地址，为空时输出到 stdout
	SampleRate     float64
	Enabled        bool
}

// Option 追踪器选项
type Option func(*options)

type options struct {
	processor sdktrace.SpanProcessor
}

// WithSpanProcessor 使用指定的 SpanProcessor 代替默认导出器
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(o *options) {
		o.processor = p
	}
}

// Tracer 追踪器
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

var defaultTracer = &Tracer{tracer: noop.NewTracerProvider().Tracer(instrumentationName)}

// Init 初始化追踪器并设为全局默认
// 未启用时返回空操作追踪器，Start 仍可安全调用
func Init(cfg *Config, opts ...Option) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		t := &Tracer{tracer: noop.NewTracerProvider().Tracer(instrumentationName)}
		defaultTracer = t
		return t, nil
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// 属性不携带 schema URL，避免与 SDK 内置 semconv 版本冲突
	res, err := resource.New(context.Background(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("创建资源失败: %w", err)
	}

	processor := o.processor
	if processor == nil {
		exporter, err := newExporter(cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		processor = sdktrace.NewBatchSpanProcessor(exporter)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(samplerFor(cfg.SampleRate))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := &Tracer{
		provider: provider,
		tracer:   provider.Tracer(instrumentationName),
	}
	defaultTracer = t
	return t, nil
}

func newExporter(endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("创建 stdout 导出器失败: %w", err)
		}
		return exporter, nil
	}
	exporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 OTLP 导出器失败: %w", err)
	}
	return exporter, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Enabled 是否接入了真实的 TracerProvider
func (t *Tracer) Enabled() bool {
	return t.provider != nil
}

// Shutdown 刷新并关闭追踪器
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// Start 开始一个带属性的 span
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Start 使用默认追踪器开始 span
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return defaultTracer.Start(ctx, name, attrs...)
}

// SetError 在当前 span 上记录错误并标记失败
func SetError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes 设置当前 span 属性
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// 佣金相关属性键
var (
	AttrOperation = attribute.Key("commission.operation")
	AttrDBTable   = attribute.Key("db.sql.table")
	AttrItemCount = attribute.Key("commission.item_count")
	AttrLineCount = attribute.Key("commission.line_count")
)

// WithOperation 操作名
func WithOperation(op string) attribute.KeyValue {
	return AttrOperation.String(op)
}

// WithDBTable 数据表
func WithDBTable(table string) attribute.KeyValue {
	return AttrDBTable.String(table)
}

// WithItemCount 参与计算的商品行与配送方式数量
func WithItemCount(n int) attribute.KeyValue {
	return AttrItemCount.Int(n)
}

// WithLineCount 生成或写入的明细数量
func WithLineCount(n int) attribute.KeyValue {
	return AttrLineCount.Int(n)
}
