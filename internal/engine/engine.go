package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"matchcore.com/internal/matching"
	"matchcore.com/pkg/common"
	"matchcore.com/pkg/logger"
	"matchcore.com/pkg/metrics"
	"matchcore.com/pkg/safe"
)

var tracer = otel.Tracer("matchcore/engine")

type EngineConfig struct {
	EventBusSize int         // event 总线容量
	ActorCfg     ActorConfig // actor 配置
	Logger       *zap.Logger // 为空时用 logger.Named("engine")
}

// Engine 对外的并发安全入口：把调用转换成命令投递给唯一的 BookActor，并等待回执
type Engine struct {
	actor *BookActor
	bus   *ChanBus
	log   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running atomic.Bool
	done    chan struct{} // actor 退出后关闭
}

func NewEngine(book Book, cfg EngineConfig) *Engine {
	// 如果没有设置 就默认
	if cfg.EventBusSize <= 0 {
		cfg.EventBusSize = 1 << 16
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Named("engine")
	}
	bus := NewChanBus(cfg.EventBusSize)
	return &Engine{
		actor: NewBookActor(book, cfg.ActorCfg, bus, log),
		bus:   bus,
		log:   log,
		done:  make(chan struct{}),
	}
}

// Start 启动 actor；ctx 结束或调用 Stop 时退出，重复调用无效
func (e *Engine) Start(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	exited := safe.GoDone(runCtx, e.actor.Run)
	safe.Go(func() {
		<-exited
		close(e.done)
	})
}

// Stop 通知 actor 退出并等待 mailbox 里剩余命令执行完，可重复调用
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel == nil {
		if e.running.Load() {
			<-e.done
		}
		return
	}
	cancel()
	<-e.done
	e.log.Info("engine stopped", zap.Uint64("events_dropped", e.bus.Dropped()))
}

// 这个是推送事件
func (e *Engine) Events() <-chan Event { return e.bus.C() }

// DroppedEvents 总线写满被丢掉的事件数
func (e *Engine) DroppedEvents() uint64 { return e.bus.Dropped() }

// MailboxFull FailFast 模式下被拒绝的命令数
func (e *Engine) MailboxFull() uint64 { return e.actor.MailboxFull() }

func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (Result, error) {
	ctx, span := tracer.Start(ctx, "engine.Submit", trace.WithAttributes(
		attribute.Int64("order.id", int64(req.ID)),
		attribute.String("order.side", req.Side.String()),
		attribute.String("order.type", req.Type.String()),
		attribute.Int64("order.price", int64(req.Price)),
		attribute.Int64("order.qty", int64(req.Qty)),
	))
	defer span.End()

	// 参数校验在调用方 goroutine 做，不占用 actor
	order, err := matching.NewOrder(req.Type, req.ID, req.Side, req.Price, req.Qty)
	if err != nil {
		endSpan(span, err)
		return Result{}, err
	}
	r, err := e.call(ctx, Command{Type: CmdSubmit, Order: order})
	recordResult(span, r.res, err)
	return r.res, err
}

func (e *Engine) Cancel(ctx context.Context, orderID uint64) (Result, error) {
	ctx, span := tracer.Start(ctx, "engine.Cancel", trace.WithAttributes(
		attribute.Int64("order.id", int64(orderID)),
	))
	defer span.End()

	r, err := e.call(ctx, Command{Type: CmdCancel, OrderID: orderID})
	recordResult(span, r.res, err)
	return r.res, err
}

func (e *Engine) Replace(ctx context.Context, m matching.Modify) (Result, error) {
	ctx, span := tracer.Start(ctx, "engine.Replace", trace.WithAttributes(
		attribute.Int64("order.id", int64(m.ID)),
		attribute.String("order.side", m.Side.String()),
		attribute.Int64("order.price", int64(m.Price)),
		attribute.Int64("order.qty", int64(m.Qty)),
	))
	defer span.End()

	r, err := e.call(ctx, Command{Type: CmdReplace, Modify: m})
	recordResult(span, r.res, err)
	return r.res, err
}

func (e *Engine) Snapshot(ctx context.Context) (matching.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "engine.Snapshot")
	defer span.End()

	r, err := e.call(ctx, Command{Type: CmdSnapshot})
	endSpan(span, err)
	return r.snap, err
}

func (e *Engine) Orders(ctx context.Context) ([]matching.OrderInfo, error) {
	ctx, span := tracer.Start(ctx, "engine.Orders")
	defer span.End()

	r, err := e.call(ctx, Command{Type: CmdOrders})
	endSpan(span, err)
	return r.orders, err
}

// call 投递命令并等待回执。
// 命令一旦进了 mailbox 就一定会被执行；ctx 先结束时只是不再等结果。
func (e *Engine) call(ctx context.Context, cmd Command) (reply, error) {
	if !e.running.Load() {
		return reply{}, ErrEngineStopped
	}
	select {
	case <-e.done:
		return reply{}, ErrEngineStopped
	default:
	}

	cmd.ReqID = common.RequestIDFrom(ctx)
	if cmd.ReqID == "" {
		cmd.ReqID = common.New()
	}
	cmd.reply = make(chan reply, 1)

	if e.actor.cfg.FailFast {
		if err := e.actor.TryEnqueue(cmd); err != nil {
			metrics.CommandsTotal.WithLabelValues(cmd.Type.String(), "busy").Inc()
			return reply{}, err
		}
	} else {
		select {
		case e.actor.in <- cmd:
		case <-ctx.Done():
			return reply{}, ctx.Err()
		case <-e.done:
			return reply{}, ErrEngineStopped
		}
	}

	select {
	case r := <-cmd.reply:
		return r, r.err
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-e.done:
		// actor 退出前可能已经 drain 完这条命令
		select {
		case r := <-cmd.reply:
			return r, r.err
		default:
			return reply{}, ErrEngineStopped
		}
	}
}

func recordResult(span trace.Span, res Result, err error) {
	if err == nil {
		span.SetAttributes(
			attribute.Int64("engine.seq", int64(res.Seq)),
			attribute.Bool("engine.applied", res.Applied),
			attribute.Int("engine.trades", len(res.Trades)),
		)
	}
	endSpan(span, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
