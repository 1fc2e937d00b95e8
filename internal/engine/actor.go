package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"matchcore.com/internal/matching"
	"matchcore.com/pkg/metrics"
)

type ActorConfig struct {
	MailboxSize int  // mailbox 容量
	BatchMax    int  // 一次最多处理多少条
	FailFast    bool // mailbox 满了直接返回 ErrEngineBusy，否则阻塞等待
}

// BookActor 唯一持有 OrderBook 的 goroutine，所有读写都经过 mailbox 串行执行
type BookActor struct {
	book Book
	in   chan Command
	out  EventSink
	cfg  ActorConfig
	log  *zap.Logger

	seq uint64 // 序列号，只在 actor goroutine 内读写

	mailboxFull atomic.Uint64
	eventsDrop  atomic.Uint64
}

func NewBookActor(book Book, cfg ActorConfig, out EventSink, log *zap.Logger) *BookActor {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 4096
	}
	if cfg.BatchMax <= 0 {
		cfg.BatchMax = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookActor{
		book: book,
		in:   make(chan Command, cfg.MailboxSize),
		out:  out,
		cfg:  cfg,
		log:  log,
	}
}

// TryEnqueue 非阻塞入队；chan 满了走 default，用来限流
func (a *BookActor) TryEnqueue(cmd Command) error {
	select {
	case a.in <- cmd:
		return nil
	default:
		a.mailboxFull.Add(1)
		return ErrEngineBusy
	}
}

func (a *BookActor) MailboxFull() uint64   { return a.mailboxFull.Load() }
func (a *BookActor) EventsDropped() uint64 { return a.eventsDrop.Load() }

func (a *BookActor) Run(ctx context.Context) {
	a.log.Info("book actor started",
		zap.Int("mailbox_size", a.cfg.MailboxSize), zap.Int("batch_max", a.cfg.BatchMax))

	// 复用 batch slice，避免每轮分配
	batch := make([]Command, 0, a.cfg.BatchMax)
	for {
		var first Command
		// 先阻塞拿 1 条，再尽量多拿几条（不阻塞）
		select {
		case <-ctx.Done():
			a.drain()
			a.log.Info("book actor stopped", zap.Uint64("seq", a.seq))
			return
		case first = <-a.in:
		}
		batch = batch[:0]
		batch = append(batch, first)
		for len(batch) < a.cfg.BatchMax {
			select {
			case cmd := <-a.in:
				batch = append(batch, cmd)
			default:
				goto PROCESS
			}
		}
	PROCESS:
		for i := range batch {
			a.process(batch[i])
			batch[i] = Command{} // 释放 order / reply 引用
		}
	}
}

// drain 退出前把已经进 mailbox 的命令执行完
func (a *BookActor) drain() {
	for {
		select {
		case cmd := <-a.in:
			a.process(cmd)
		default:
			return
		}
	}
}

func (a *BookActor) process(cmd Command) {
	a.seq++
	start := time.Now()
	r, result := a.apply(cmd, a.seq)
	r.res.Seq = a.seq

	metrics.CommandDuration.WithLabelValues(cmd.Type.String()).Observe(time.Since(start).Seconds())
	metrics.CommandsTotal.WithLabelValues(cmd.Type.String(), result).Inc()
	if n := len(r.res.Trades); n > 0 {
		metrics.TradesTotal.Add(float64(n))
		metrics.MatchedQuantityTotal.Add(float64(matchedQty(r.res.Trades)))
	}
	metrics.RestingOrders.Set(float64(a.book.Len()))

	// reply 有 1 个缓冲，调用方放弃等待也不会卡住 actor
	if cmd.reply != nil {
		cmd.reply <- r
	}
}

// apply 执行一条命令，返回 reply 和指标用的 result 标签（ok/noop/rejected/error）
func (a *BookActor) apply(cmd Command, seq uint64) (reply, string) {
	em := &busEmitter{sink: a.out, seq: seq, req: cmd.ReqID, onDrop: a.dropped}

	switch cmd.Type {
	case CmdSubmit:
		o := cmd.Order
		if o == nil {
			em.Rejected(0, ErrBadCommand.Error())
			return reply{err: ErrBadCommand}, "rejected"
		}
		dup := a.book.Has(o.ID())
		trades, err := a.book.Submit(o)
		if err != nil {
			em.Rejected(o.ID(), err.Error())
			return reply{res: Result{Trades: trades}, err: err}, a.failure(cmd, o.ID(), err)
		}
		if dup {
			em.Rejected(o.ID(), "duplicate order id")
			return reply{}, "noop"
		}
		res := a.settle(em, o.ID(), o.InitialQuantity(), trades)
		if !res.Applied {
			return reply{res: res}, "noop"
		}
		return reply{res: res}, "ok"

	case CmdCancel:
		if !a.book.Cancel(cmd.OrderID) {
			em.Rejected(cmd.OrderID, "order not found")
			return reply{}, "noop"
		}
		em.Cancelled(cmd.OrderID)
		return reply{res: Result{Applied: true}}, "ok"

	case CmdReplace:
		m := cmd.Modify
		_, found := a.book.Order(m.ID)
		trades, err := a.book.Replace(m)
		if err != nil {
			em.Rejected(m.ID, err.Error())
			return reply{res: Result{Trades: trades}, err: err}, a.failure(cmd, m.ID, err)
		}
		if !found {
			em.Rejected(m.ID, "order not found")
			return reply{}, "noop"
		}
		// 旧单先撤，新单按 submit 的规则出事件
		em.Cancelled(m.ID)
		res := a.settle(em, m.ID, m.Qty, trades)
		res.Applied = true
		return reply{res: res}, "ok"

	case CmdSnapshot:
		return reply{snap: a.book.Snapshot()}, "ok"

	case CmdOrders:
		return reply{orders: a.book.Orders()}, "ok"

	default:
		em.Rejected(0, "unknown cmd")
		return reply{err: ErrBadCommand}, "rejected"
	}
}

// settle 根据撮合结果补齐事件：
// 没成交也没挂上 => FAK 被拒；成交后仍在簿上 => Added；没挂上且没吃满 => FAK 剩余被撤
func (a *BookActor) settle(em Emitter, id uint64, qty matching.Quantity, trades []matching.Trade) Result {
	resting := a.book.Has(id)
	if len(trades) == 0 && !resting {
		em.Rejected(id, "fill-and-kill order cannot match")
		return Result{}
	}
	em.Accepted(id)
	var filled matching.Quantity
	for _, t := range trades {
		em.Trade(t)
		if t.Bid.OrderID == id {
			filled += t.Bid.Qty
		} else if t.Ask.OrderID == id {
			filled += t.Ask.Qty
		}
	}
	switch {
	case resting:
		if info, ok := a.book.Order(id); ok {
			em.Added(info)
		}
	case filled < qty:
		em.Cancelled(id)
	}
	return Result{Trades: trades, Applied: true, Resting: resting}
}

func (a *BookActor) failure(cmd Command, id uint64, err error) string {
	if errors.Is(err, matching.ErrContractViolation) {
		a.log.Error("contract violation",
			zap.String("cmd", cmd.Type.String()),
			zap.Uint64("order_id", id),
			zap.String("req_id", cmd.ReqID),
			zap.Error(err))
		return "error"
	}
	return "rejected"
}

func (a *BookActor) dropped() {
	a.eventsDrop.Add(1)
	metrics.EventsDroppedTotal.Inc()
}

func matchedQty(trades []matching.Trade) uint64 {
	var n uint64
	for _, t := range trades {
		n += uint64(t.Bid.Qty)
	}
	return n
}
