package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/mcpgate/internal/ctxkeys"
	"github.com/BaSui01/mcpgate/internal/metrics"
	"github.com/BaSui01/mcpgate/types"
)

// HandlerFunc 处理一条已校验的请求。数字以 json.Number 表示；
// 请求缺省 params 时为空 map，params 不是对象时为 nil。
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

// Router 将方法名解析为处理函数
type Router interface {
	Lookup(method string) (HandlerFunc, bool)
}

// Observer 在每条请求完成路由后被调用（用于 /debug/last 之类的诊断）
type Observer interface {
	Observe(ctx context.Context, req Request, resp Response)
}

// DefaultBatchConcurrency 批量请求的默认并发度
const DefaultBatchConcurrency = 4

// =============================================================================
// 🚦 Dispatcher
// =============================================================================

// Dispatcher 解析 JSON-RPC 信封（单条或批量）并分发到 Router。
type Dispatcher struct {
	router      Router
	observer    Observer
	concurrency int

	logger  *zap.Logger
	metrics *metrics.Collector

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	otel           *instruments
}

// Option 配置 Dispatcher
type Option func(*Dispatcher)

// WithMetrics 记录 Prometheus 指标
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = c }
}

// WithObserver 设置请求观察者
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithBatchConcurrency 设置批量请求的并发度，n <= 0 时按顺序执行
func WithBatchConcurrency(n int) Option {
	return func(d *Dispatcher) { d.concurrency = n }
}

// WithTracerProvider 覆盖全局 TracerProvider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) { d.tracerProvider = tp }
}

// WithMeterProvider 覆盖全局 MeterProvider
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Dispatcher) { d.meterProvider = mp }
}

// NewDispatcher 创建分发器
func NewDispatcher(router Router, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		router:      router,
		concurrency: DefaultBatchConcurrency,
		logger:      logger.With(zap.String("component", "rpc_dispatcher")),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.concurrency <= 0 {
		d.concurrency = 1
	}
	d.otel = newInstruments(d.tracerProvider, d.meterProvider)
	return d
}

// HandleBody 处理原始请求体，返回响应载荷（Response 或 []Response）与 HTTP 状态码。
// 只有整体无法解析、或顶层既非对象也非数组时返回 400。
func (d *Dispatcher) HandleBody(ctx context.Context, body []byte) (any, int) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		d.logger.Debug("request body is not valid JSON", zap.Int("size", len(body)))
		return NewError(nil, CodeParseError, "Parse error"), http.StatusBadRequest
	}

	switch trimmed[0] {
	case '{':
		o := d.evaluateEntry(ctx, trimmed)
		d.settle(o)
		return o.resp, http.StatusOK
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return NewError(nil, CodeParseError, "Parse error"), http.StatusBadRequest
		}
		return d.handleBatch(ctx, entries), http.StatusOK
	default:
		return NewError(nil, CodeInvalidRequest, "Invalid Request: must be object or array"), http.StatusBadRequest
	}
}

// outcome 单个条目的求值结果，副作用与观察者回调尚未执行
type outcome struct {
	ctx     context.Context
	req     Request
	resp    Response
	effects *effects
	routed  bool
}

// settle 执行条目登记的副作用并通知观察者
func (d *Dispatcher) settle(o outcome) {
	o.effects.run()
	if o.routed && d.observer != nil {
		d.observer.Observe(o.ctx, o.req, o.resp)
	}
}

// handleBatch 并发求值批量条目；响应、副作用与观察者回调均按输入顺序产出
func (d *Dispatcher) handleBatch(ctx context.Context, entries []json.RawMessage) []Response {
	d.metrics.RecordBatch(len(entries))

	responses := make([]Response, len(entries))
	if len(entries) == 0 {
		return responses
	}

	outcomes := make([]outcome, len(entries))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, raw := range entries {
		g.Go(func() error {
			outcomes[i] = d.evaluateEntry(ctx, raw)
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		d.settle(o)
		responses[i] = o.resp
	}
	return responses
}

// evaluateEntry 校验并求值单个条目
func (d *Dispatcher) evaluateEntry(ctx context.Context, raw json.RawMessage) outcome {
	req, rerr := decodeRequest(raw)
	if rerr != nil {
		d.metrics.RecordRPCRequest("invalid", strconv.Itoa(rerr.Code), 0)
		return outcome{ctx: ctx, req: req, resp: Response{ID: req.ID, Error: rerr}}
	}
	return d.evaluate(ctx, req)
}

// Dispatch 路由一条已解码的请求。永不 panic，永不丢失 id。
// 处理函数通过 AfterResponse 登记的副作用在返回前执行。
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	o := d.evaluate(ctx, req)
	d.settle(o)
	return o.resp
}

func (d *Dispatcher) evaluate(ctx context.Context, req Request) outcome {
	start := time.Now()

	handler, ok := d.router.Lookup(req.Method)
	label := req.Method
	if !ok {
		label = "unknown"
	}

	ctx, fx := withEffects(ctx)
	ctx, span := d.otel.start(ctx, label)

	var resp Response
	if !ok {
		resp = NewError(req.ID, CodeMethodNotFound, "Method not found")
	} else {
		result, err := d.invoke(ctx, req.Method, handler, req.Params)
		if err != nil {
			resp = Response{ID: req.ID, Error: toRPCError(err)}
		} else {
			resp = NewResult(req.ID, result)
		}
	}

	duration := time.Since(start)
	d.otel.end(ctx, span, label, resp, duration)

	status := "ok"
	if resp.Error != nil {
		status = strconv.Itoa(resp.Error.Code)
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.Int("code", resp.Error.Code),
			zap.String("message", resp.Error.Message),
		}
		if rid, ok := ctxkeys.RequestID(ctx); ok {
			fields = append(fields, zap.String("request_id", rid))
		}
		d.logger.Debug("rpc entry failed", fields...)
	}
	d.metrics.RecordRPCRequest(label, status, duration)

	return outcome{ctx: ctx, req: req, resp: resp, effects: fx, routed: true}
}

// invoke 调用处理函数并把 panic 转成错误
func (d *Dispatcher) invoke(ctx context.Context, method string, h HandlerFunc, params map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("rpc handler panic",
				zap.String("method", method),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, params)
}

// toRPCError 将处理函数错误映射为 JSON-RPC 错误对象
//
//	*rpc.Error           原样返回
//	校验类 *types.Error   -32000 "HTTP error: <描述>"
//	其他                  -32000 "Server error: <诊断>"
func toRPCError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	if types.IsValidation(err) {
		e, _ := types.AsError(err)
		return &Error{Code: CodeServerError, Message: "HTTP error: " + e.Message}
	}
	return &Error{Code: CodeServerError, Message: "Server error: " + err.Error()}
}

// =============================================================================
// 📦 条目解码
// =============================================================================

// decodeRequest 解码单个条目。出错时返回的 Request 仍携带能取到的 id。
func decodeRequest(raw json.RawMessage) (Request, *Error) {
	var req Request

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return req, &Error{Code: CodeInvalidRequest, Message: "Invalid Request: entry must be an object"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return req, &Error{Code: CodeInvalidRequest, Message: "Invalid Request: entry must be an object"}
	}

	if id, ok := fields["id"]; ok {
		req.ID = id
	}

	req.JSONRPC = Version
	if v, ok := fields["jsonrpc"]; ok && !isNull(v) {
		var s string
		if err := json.Unmarshal(v, &s); err != nil || (s != "" && s != Version) {
			return req, &Error{Code: CodeInvalidRequest, Message: "Invalid Request: jsonrpc must be '2.0'"}
		}
	}

	// 非字符串的 method 不会命中任何路由，按 Method not found 处理
	if v, ok := fields["method"]; ok {
		var method string
		if json.Unmarshal(v, &method) == nil {
			req.Method = method
		}
	}

	req.Params = map[string]any{}
	if v, ok := fields["params"]; ok && !isNull(v) {
		dec := json.NewDecoder(bytes.NewReader(v))
		dec.UseNumber()
		var params any
		if err := dec.Decode(&params); err != nil {
			return req, &Error{Code: CodeInvalidRequest, Message: "Invalid Request: params could not be decoded"}
		}
		// 非对象的 params 交给处理函数决定：不读取 params 的方法照常执行
		obj, _ := params.(map[string]any)
		req.Params = obj
	}

	return req, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
