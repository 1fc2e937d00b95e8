package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"matchcore.com/internal/config"
	"matchcore.com/internal/engine"
	"matchcore.com/internal/matching"
	"matchcore.com/internal/shell"
	pkgconfig "matchcore.com/pkg/config"
	"matchcore.com/pkg/logger"
	"matchcore.com/pkg/metrics"
	"matchcore.com/pkg/trace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "matchcore: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ========= 0) 全局上下文 & 优雅退出 =========
	// 收到 SIGINT/SIGTERM 或 shell 退出时取消，所有后台任务跟着退出
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========= 1) 配置 =========
	var cfg *config.Cfg
	cfg, err := config.Load(pkgconfig.WithOnChange(func() {
		// 热更新只处理日志级别，其他配置需要重启
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			logger.Warn(context.Background(), "bad log level in config", zap.String("level", cfg.Log.Level))
		}
	}))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ========= 2) 日志：交互模式只写文件 =========
	logger.InitWithOptions(cfg.Name, logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	defer logger.Sync()
	logger.Info(ctx, "服务开始启动",
		zap.String("level", logger.Level().String()),
		zap.String("config", cfg.File))

	// ========= 3) OpenTelemetry =========
	if cfg.OTel.Enabled {
		shutdownTracer, err := initTracer(cfg)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			// 最多给 5 秒时间 flush trace
			c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(c); err != nil {
				logger.Error(ctx, "shutdown tracer error", zap.Error(err))
			}
		}()
	}

	// ========= 4) 撮合引擎 =========
	metrics.MustRegister()
	book := matching.NewOrderBook(matching.WithLogger(logger.Named("matching")))
	eng := engine.NewEngine(book, engine.EngineConfig{
		EventBusSize: cfg.Engine.EventBusSize,
		ActorCfg: engine.ActorConfig{
			MailboxSize: cfg.Engine.MailboxSize,
			BatchMax:    cfg.Engine.BatchMax,
			FailFast:    cfg.Engine.FailFast,
		},
		Logger: logger.Named("engine"),
	})
	eng.Start(ctx)
	defer eng.Stop()

	// ========= 5) shell =========
	ticks, err := shell.NewTicks(cfg.Shell.TickSize)
	if err != nil {
		return err
	}
	sh := shell.New(eng, os.Stdin, os.Stdout,
		shell.WithFirstOrderID(cfg.Shell.FirstOrderID),
		shell.WithTicks(ticks),
		shell.WithLogger(logger.Named("shell")),
	)
	if err := sh.Seed(ctx, seedOrders(cfg.Shell.SeedOrders)); err != nil {
		return err
	}

	// ========= 6) 启动后台任务 =========
	g, gctx := errgroup.WithContext(ctx)
	// 事件消费单独一个 ctx：engine 停下（mailbox 排空）之后才取消，总线里剩下的事件都能导出
	evCtx, evDone := context.WithCancel(context.Background())
	defer evDone()

	g.Go(func() error {
		err := sh.Run(gctx)
		eng.Stop()
		evDone()
		stop() // shell 退出即整个进程退出
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	var sink *engine.JSONEventWriter
	if cfg.Events.File != "" {
		f, err := os.OpenFile(cfg.Events.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open events file: %w", err)
		}
		defer f.Close()
		sink = engine.NewJSONEventWriter(f)
	}
	g.Go(func() error {
		consumeEvents(evCtx, eng.Events(), logger.Named("events"), sink)
		return nil
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 3 * time.Second,
		}
		g.Go(func() error {
			logger.Info(gctx, "metrics listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info(context.Background(), "service stopped", zap.Uint64("events_dropped", eng.DroppedEvents()))
	return err
}

func initTracer(cfg *config.Cfg) (func(context.Context) error, error) {
	if strings.EqualFold(cfg.OTel.Exporter, "stdout") {
		// 交互模式下 stdout 是 shell 的，span 写 stderr
		return trace.InitStdoutTrace(cfg.Name, os.Stderr)
	}
	return trace.InitTrace(cfg.Name, cfg.OTel.Addr)
}

func seedOrders(in []config.SeedOrder) []shell.SeedOrder {
	out := make([]shell.SeedOrder, 0, len(in))
	for _, s := range in {
		out = append(out, shell.SeedOrder{Type: s.Type, Side: s.Side, Price: s.Price, Qty: s.Qty})
	}
	return out
}

// consumeEvents 事件写 debug 日志；配置了 events.file 时同时导出 jsonl。
// ctx 结束后把总线里剩下的事件读完再返回。
func consumeEvents(ctx context.Context, events <-chan engine.Event, log *zap.Logger, sink *engine.JSONEventWriter) {
	flush := func() {
		if sink == nil {
			return
		}
		if err := sink.Flush(); err != nil {
			log.Error("flush events file", zap.Error(err))
		}
	}
	defer flush()

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-events:
					handleEvent(ev, log, sink)
				default:
					return
				}
			}
		case ev := <-events:
			handleEvent(ev, log, sink)
			// 总线空了就刷一次盘
			if len(events) == 0 {
				flush()
			}
		}
	}
}

func handleEvent(ev engine.Event, log *zap.Logger, sink *engine.JSONEventWriter) {
	if sink != nil {
		if err := sink.Write(ev); err != nil {
			log.Error("write event", zap.Error(err))
		}
	}
	fields := []zap.Field{
		zap.String("type", ev.Type.String()),
		zap.Uint64("seq", ev.Seq),
		zap.Uint16("idx", ev.Idx),
		zap.String("req_id", ev.ReqID),
		zap.Uint64("order_id", ev.OrderID),
	}
	switch ev.Type {
	case engine.EvTrade:
		fields = append(fields,
			zap.Uint64("bid_id", ev.Trade.Bid.OrderID),
			zap.Uint32("bid_price", uint32(ev.Trade.Bid.Price)),
			zap.Uint64("ask_id", ev.Trade.Ask.OrderID),
			zap.Uint32("ask_price", uint32(ev.Trade.Ask.Price)),
			zap.Uint32("qty", uint32(ev.Qty)),
		)
	case engine.EvRejected:
		fields = append(fields, zap.String("reason", ev.Reason))
	}
	log.Debug("engine event", fields...)
}
