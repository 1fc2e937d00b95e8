package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"matchcore.com/internal/matching"
	"matchcore.com/pkg/common"
	"matchcore.com/pkg/metrics"
)

func newTestEngine(t *testing.T, book Book, cfg EngineConfig) *Engine {
	t.Helper()
	if book == nil {
		book = matching.NewOrderBook()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	e := NewEngine(book, cfg)
	e.Start(context.Background())
	t.Cleanup(e.Stop)
	return e
}

func gtcReq(id uint64, side matching.Side, price matching.Price, qty matching.Quantity) SubmitRequest {
	return SubmitRequest{Type: matching.GoodTillCancel, ID: id, Side: side, Price: price, Qty: qty}
}

func fakReq(id uint64, side matching.Side, price matching.Price, qty matching.Quantity) SubmitRequest {
	return SubmitRequest{Type: matching.FillAndKill, ID: id, Side: side, Price: price, Qty: qty}
}

func collect(t *testing.T, e *Engine, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	for len(out) < n {
		select {
		case ev := <-e.Events():
			out = append(out, ev)
		case <-time.After(time.Second):
			t.Fatalf("want %d events, got %d: %+v", n, len(out), out)
		}
	}
	return out
}

func types(evs []Event) []EventType {
	out := make([]EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func TestEngine_SubmitRestsAndCrosses(t *testing.T) {
	e := newTestEngine(t, nil, EngineConfig{})
	ctx := context.Background()

	res, err := e.Submit(ctx, gtcReq(1, matching.Buy, 100, 10))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.True(t, res.Resting)
	assert.Empty(t, res.Trades)
	assert.Equal(t, uint64(1), res.Seq)

	res, err = e.Submit(ctx, gtcReq(2, matching.Sell, 90, 4))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.False(t, res.Resting)
	assert.Equal(t, uint64(2), res.Seq)
	require.Len(t, res.Trades, 1)
	// 两边各自报自己的价格
	assert.Equal(t, matching.TradeInfo{OrderID: 1, Price: 100, Qty: 4}, res.Trades[0].Bid)
	assert.Equal(t, matching.TradeInfo{OrderID: 2, Price: 90, Qty: 4}, res.Trades[0].Ask)

	evs := collect(t, e, 4)
	assert.Equal(t, []EventType{EvAccepted, EvAdded, EvAccepted, EvTrade}, types(evs))
	assert.Equal(t, uint64(1), evs[1].Seq)
	assert.Equal(t, uint16(1), evs[1].Idx)
	assert.Equal(t, matching.Quantity(10), evs[1].Qty)
	assert.Equal(t, uint64(2), evs[3].Seq)
	assert.Equal(t, uint16(1), evs[3].Idx)
	assert.Equal(t, res.Trades[0], evs[3].Trade)

	snap, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []matching.LevelInfo{{Price: 100, Qty: 6}}, snap.Bids)
	assert.Empty(t, snap.Asks)
}

func TestEngine_RequestIDOnEvents(t *testing.T) {
	e := newTestEngine(t, nil, EngineConfig{})
	ctx := common.WithRequestID(context.Background(), "req-42")

	_, err := e.Submit(ctx, gtcReq(1, matching.Sell, 100, 1))
	require.NoError(t, err)
	for _, ev := range collect(t, e, 2) {
		assert.Equal(t, "req-42", ev.ReqID)
	}

	// 没带 request id 的调用自动生成
	_, err = e.Cancel(context.Background(), 1)
	require.NoError(t, err)
	ev := collect(t, e, 1)[0]
	assert.Equal(t, EvCancelled, ev.Type)
	assert.NotEmpty(t, ev.ReqID)
	assert.NotEqual(t, "req-42", ev.ReqID)
}

func TestEngine_ValidationDoesNotReachActor(t *testing.T) {
	e := newTestEngine(t, nil, EngineConfig{})
	ctx := context.Background()

	_, err := e.Submit(ctx, gtcReq(1, matching.Buy, 100, 0))
	assert.ErrorIs(t, err, matching.ErrInvalidQuantity)
	_, err = e.Submit(ctx, gtcReq(1, matching.Buy, 0, 1))
	assert.ErrorIs(t, err, matching.ErrInvalidPrice)
	_, err = e.Submit(ctx, SubmitRequest{Type: matching.GoodTillCancel, ID: 1, Side: 9, Price: 1, Qty: 1})
	assert.ErrorIs(t, err, matching.ErrInvalidSide)

	// 校验失败不占 seq
	res, err := e.Submit(ctx, gtcReq(1, matching.Buy, 100, 1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Seq)
}

func TestEngine_DuplicateAndFAK(t *testing.T) {
	e := newTestEngine(t, nil, EngineConfig{})
	ctx := context.Background()

	_, err := e.Submit(ctx, gtcReq(1, matching.Buy, 100, 5))
	require.NoError(t, err)
	collect(t, e, 2)

	res, err := e.Submit(ctx, gtcReq(1, matching.Sell, 50, 5))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Empty(t, res.Trades)
	ev := collect(t, e, 1)[0]
	assert.Equal(t, EvRejected, ev.Type)
	assert.Equal(t, "duplicate order id", ev.Reason)

	// FAK 对手价不够：不挂单、不成交
	res, err = e.Submit(ctx, fakReq(2, matching.Sell, 101, 5))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, EvRejected, collect(t, e, 1)[0].Type)

	// FAK 部分成交，剩余被撤
	res, err = e.Submit(ctx, fakReq(3, matching.Sell, 100, 8))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.False(t, res.Resting)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, matching.Quantity(5), res.Trades[0].Ask.Qty)
	evs := collect(t, e, 3)
	assert.Equal(t, []EventType{EvAccepted, EvTrade, EvCancelled}, types(evs))
	assert.Equal(t, uint64(3), evs[2].OrderID)

	orders, err := e.Orders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestEngine_CancelAndReplace(t *testing.T) {
	e := newTestEngine(t, nil, EngineConfig{})
	ctx := context.Background()

	res, err := e.Cancel(ctx, 99)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	ev := collect(t, e, 1)[0]
	assert.Equal(t, EvRejected, ev.Type)
	assert.Equal(t, "order not found", ev.Reason)

	_, err = e.Submit(ctx, gtcReq(1, matching.Buy, 100, 10))
	require.NoError(t, err)
	_, err = e.Submit(ctx, gtcReq(2, matching.Sell, 105, 3))
	require.NoError(t, err)
	collect(t, e, 4)

	// 改单：撤旧单，同 id 重新提交，和卖单成交
	res, err = e.Replace(ctx, matching.Modify{ID: 1, Side: matching.Buy, Price: 105, Qty: 4})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.True(t, res.Resting)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, matching.TradeInfo{OrderID: 1, Price: 105, Qty: 3}, res.Trades[0].Bid)
	evs := collect(t, e, 4)
	assert.Equal(t, []EventType{EvCancelled, EvAccepted, EvTrade, EvAdded}, types(evs))
	assert.Equal(t, matching.Quantity(1), evs[3].Qty)

	// 非法改单：旧单保持不动
	_, err = e.Replace(ctx, matching.Modify{ID: 1, Side: matching.Buy, Price: 105, Qty: 0})
	assert.ErrorIs(t, err, matching.ErrInvalidQuantity)
	orders, err := e.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, matching.Quantity(1), orders[0].Remaining)

	res, err = e.Replace(ctx, matching.Modify{ID: 7, Side: matching.Buy, Price: 1, Qty: 1})
	require.NoError(t, err)
	assert.False(t, res.Applied)

	res, err = e.Cancel(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	snap, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

func TestEngine_NotStartedAndStopped(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := NewEngine(matching.NewOrderBook(), EngineConfig{Logger: zap.New(core)})
	_, err := e.Submit(context.Background(), gtcReq(1, matching.Buy, 1, 1))
	assert.ErrorIs(t, err, ErrEngineStopped)
	e.Stop() // 没启动也能调

	e.Start(context.Background())
	_, err = e.Submit(context.Background(), gtcReq(1, matching.Buy, 1, 1))
	require.NoError(t, err)
	e.Stop()
	e.Stop()

	_, err = e.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrEngineStopped)
	assert.Equal(t, 1, logs.FilterMessage("engine stopped").Len())
}

func TestEngine_StartContextCancelStopsActor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := NewEngine(matching.NewOrderBook(), EngineConfig{Logger: zap.NewNop()})
	e.Start(ctx)
	cancel()
	select {
	case <-e.done:
	case <-time.After(time.Second):
		t.Fatal("actor did not exit")
	}
	_, err := e.Orders(context.Background())
	assert.ErrorIs(t, err, ErrEngineStopped)
}

// gatedBook 第一次 Submit 卡住 actor，直到 gate 关闭
type gatedBook struct {
	*matching.OrderBook
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func newGatedBook() *gatedBook {
	return &gatedBook{
		OrderBook: matching.NewOrderBook(),
		entered:   make(chan struct{}),
		gate:      make(chan struct{}),
	}
}

func (g *gatedBook) Submit(o *matching.Order) ([]matching.Trade, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.gate
	})
	return g.OrderBook.Submit(o)
}

func TestEngine_AcceptedCommandCompletesAfterCallerGivesUp(t *testing.T) {
	book := newGatedBook()
	e := newTestEngine(t, book, EngineConfig{})

	first := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background(), gtcReq(1, matching.Buy, 100, 1))
		first <- err
	}()
	<-book.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Submit(ctx, gtcReq(2, matching.Buy, 99, 1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(book.gate)
	require.NoError(t, <-first)

	// 第二条已经进了 mailbox，调用方放弃后依然执行
	orders, err := e.Orders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, uint64(2), orders[1].ID)
}

func TestEngine_FailFastBusy(t *testing.T) {
	book := newGatedBook()
	e := newTestEngine(t, book, EngineConfig{ActorCfg: ActorConfig{MailboxSize: 1, FailFast: true}})

	errs := make(chan error, 2)
	go func() {
		_, err := e.Submit(context.Background(), gtcReq(1, matching.Buy, 100, 1))
		errs <- err
	}()
	<-book.entered
	go func() {
		_, err := e.Submit(context.Background(), gtcReq(2, matching.Buy, 100, 1))
		errs <- err
	}()
	require.Eventually(t, func() bool { return len(e.actor.in) == 1 }, time.Second, time.Millisecond)

	_, err := e.Submit(context.Background(), gtcReq(3, matching.Buy, 100, 1))
	assert.ErrorIs(t, err, ErrEngineBusy)
	assert.Equal(t, uint64(1), e.MailboxFull())

	close(book.gate)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
}

func TestEngine_EventsDropWhenBusFull(t *testing.T) {
	before := testutil.ToFloat64(metrics.EventsDroppedTotal)
	e := newTestEngine(t, nil, EngineConfig{EventBusSize: 1})

	// Accepted + Added，总线只能放 1 条
	_, err := e.Submit(context.Background(), gtcReq(1, matching.Buy, 100, 1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.DroppedEvents())
	assert.Equal(t, uint64(1), e.actor.EventsDropped())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EventsDroppedTotal))
}

func TestEngine_Metrics(t *testing.T) {
	okBefore := testutil.ToFloat64(metrics.CommandsTotal.WithLabelValues("submit", "ok"))
	noopBefore := testutil.ToFloat64(metrics.CommandsTotal.WithLabelValues("cancel", "noop"))
	tradesBefore := testutil.ToFloat64(metrics.TradesTotal)
	qtyBefore := testutil.ToFloat64(metrics.MatchedQuantityTotal)

	e := newTestEngine(t, nil, EngineConfig{})
	ctx := context.Background()
	_, err := e.Submit(ctx, gtcReq(1, matching.Sell, 10, 7))
	require.NoError(t, err)
	_, err = e.Submit(ctx, gtcReq(2, matching.Buy, 10, 3))
	require.NoError(t, err)
	_, err = e.Cancel(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(metrics.CommandsTotal.WithLabelValues("submit", "ok")))
	assert.Equal(t, noopBefore+1, testutil.ToFloat64(metrics.CommandsTotal.WithLabelValues("cancel", "noop")))
	assert.Equal(t, tradesBefore+1, testutil.ToFloat64(metrics.TradesTotal))
	assert.Equal(t, qtyBefore+3, testutil.ToFloat64(metrics.MatchedQuantityTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RestingOrders))
}

// brokenBook 模拟撮合内部不变量被破坏
type brokenBook struct {
	*matching.OrderBook
}

func (brokenBook) Submit(*matching.Order) ([]matching.Trade, error) {
	return nil, matching.ErrOverFill
}

func TestEngine_ContractViolationLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := newTestEngine(t, brokenBook{matching.NewOrderBook()}, EngineConfig{Logger: zap.New(core)})

	_, err := e.Submit(context.Background(), gtcReq(1, matching.Buy, 1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, matching.ErrContractViolation))

	entries := logs.FilterMessage("contract violation").All()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(1), entries[0].ContextMap()["order_id"])
}

func TestEngine_ConcurrentSubmitters(t *testing.T) {
	e := newTestEngine(t, nil, EngineConfig{EventBusSize: 1, ActorCfg: ActorConfig{MailboxSize: 8, BatchMax: 4}})
	const workers, perWorker = 8, 200

	var (
		mu   sync.Mutex
		seqs = make(map[uint64]struct{})
		wg   sync.WaitGroup
	)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				id := uint64(w*perWorker + i + 1)
				side := matching.Buy
				if i%2 == 1 {
					side = matching.Sell
				}
				price := matching.Price(95 + (i*7+w)%10)
				res, err := e.Submit(context.Background(), gtcReq(id, side, price, matching.Quantity(1+i%5)))
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seqs[res.Seq] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 每条命令拿到唯一的 seq
	assert.Len(t, seqs, workers*perWorker)

	snap, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
		assert.Less(t, snap.Bids[0].Price, snap.Asks[0].Price)
	}
}

func TestBookActor_TryEnqueue(t *testing.T) {
	a := NewBookActor(matching.NewOrderBook(), ActorConfig{MailboxSize: 1}, nil, nil)
	require.NoError(t, a.TryEnqueue(Command{Type: CmdSnapshot}))
	assert.ErrorIs(t, a.TryEnqueue(Command{Type: CmdSnapshot}), ErrEngineBusy)
	assert.Equal(t, uint64(1), a.MailboxFull())
	assert.Equal(t, 256, a.cfg.BatchMax)
}

func TestChanBus(t *testing.T) {
	b := NewChanBus(1)
	assert.True(t, b.TryPublish(Event{Seq: 1}))
	assert.False(t, b.TryPublish(Event{Seq: 2}))
	assert.Equal(t, uint64(1), b.Dropped())

	assert.Equal(t, uint64(1), (<-b.C()).Seq)
	assert.True(t, b.TryPublish(Event{Seq: 3}))
	assert.Equal(t, uint64(3), (<-b.C()).Seq)
	assert.Equal(t, uint64(1), b.Dropped())
}

func TestCmdAndEventTypeString(t *testing.T) {
	assert.Equal(t, "submit", CmdSubmit.String())
	assert.Equal(t, "orders", CmdOrders.String())
	assert.Equal(t, "unknown", CmdType(0).String())
	assert.Equal(t, "trade", EvTrade.String())
	assert.Equal(t, "unknown", EventType(0).String())
}
