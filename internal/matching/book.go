package matching

import (
	"cmp"
	"slices"

	"go.uber.org/zap"
)

// OrderBook 单品种订单簿。
// 不加锁：同一时间只能有一个 goroutine 调用，并发场景走 internal/engine 的 actor。
type OrderBook struct {
	bids *bookSide         // 买盘：价格降序
	asks *bookSide         // 卖盘：价格升序
	byID map[uint64]*lvNode // 订单索引：orderID -> node（撤单 O(1)）
	log  *zap.Logger
}

type Option func(*OrderBook)

// WithLogger 注入日志，默认 zap.NewNop()
func WithLogger(l *zap.Logger) Option {
	return func(b *OrderBook) {
		if l != nil {
			b.log = l
		}
	}
}

func NewOrderBook(opts ...Option) *OrderBook {
	b := &OrderBook{
		bids: newBookSide(Buy),
		asks: newBookSide(Sell),
		byID: make(map[uint64]*lvNode, 1024),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *OrderBook) sideOf(s Side) *bookSide {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// Submit 提交订单并撮合，返回本次产生的成交。
// 重复 id、无法成交的 FillAndKill 都是 no-op（返回 nil, nil）。
func (b *OrderBook) Submit(order *Order) ([]Trade, error) {
	if order == nil {
		return nil, ErrNilOrder
	}
	if !order.side.valid() {
		return nil, ErrInvalidSide
	}
	if !order.typ.valid() {
		return nil, ErrInvalidOrderType
	}
	if order.remaining == 0 {
		return nil, ErrInvalidQuantity
	}
	// 重复id直接忽略
	if _, exists := b.byID[order.id]; exists {
		b.log.Debug("duplicate order id ignored", zap.Uint64("order_id", order.id))
		return nil, nil
	}
	if order.typ == FillAndKill && !b.canMatch(order.side, order.price) {
		b.log.Debug("fill-and-kill order cannot match, rejected", zap.Uint64("order_id", order.id))
		return nil, nil
	}

	// 追加到 FIFO 队尾（同价时间优先），并建立 orderID -> node 索引
	n := &lvNode{order: order}
	b.sideOf(order.side).level(order.price).pushBack(n)
	b.byID[order.id] = n

	return b.match()
}

// Cancel 撤单
// - 通过 byID O(1) 定位到 node
// - 通过双向链表 O(1) 摘链
// 未知 id 返回 false，只记日志
func (b *OrderBook) Cancel(orderID uint64) bool {
	n := b.byID[orderID]
	if n == nil {
		b.log.Debug("order not found", zap.Uint64("order_id", orderID))
		return false
	}
	b.unlink(n)
	return true
}

// unlink 同时从价位桶和 id 索引里删掉，桶空了删桶
func (b *OrderBook) unlink(n *lvNode) {
	lv := n.lv
	side := b.sideOf(n.order.side)
	lv.remove(n)
	delete(b.byID, n.order.id)
	if lv.empty() {
		side.drop(lv)
	}
}

// Replace 改单 = 撤单 + 同 id 重新提交，沿用原订单类型。
// 新订单先校验，校验失败时旧订单保持不动。
func (b *OrderBook) Replace(m Modify) ([]Trade, error) {
	n := b.byID[m.ID]
	if n == nil {
		b.log.Debug("replace: order not found", zap.Uint64("order_id", m.ID))
		return nil, nil
	}
	order, err := m.ToOrder(n.order.typ)
	if err != nil {
		return nil, err
	}
	b.unlink(n)
	return b.Submit(order)
}

// Snapshot 按价位聚合剩余数量，只读
func (b *OrderBook) Snapshot() Snapshot {
	return Snapshot{
		Bids: levelInfos(b.bids, func(x, y Price) int { return cmp.Compare(y, x) }),
		Asks: levelInfos(b.asks, func(x, y Price) int { return cmp.Compare(x, y) }),
	}
}

func levelInfos(s *bookSide, order func(x, y Price) int) []LevelInfo {
	prices := make([]Price, 0, len(s.levels))
	for p := range s.levels {
		prices = append(prices, p)
	}
	slices.SortFunc(prices, order)
	infos := make([]LevelInfo, 0, len(prices))
	for _, p := range prices {
		infos = append(infos, LevelInfo{Price: p, Qty: s.levels[p].totalQty()})
	}
	return infos
}

// Orders 当前所有挂单，按 id 排序
func (b *OrderBook) Orders() []OrderInfo {
	out := make([]OrderInfo, 0, len(b.byID))
	for _, n := range b.byID {
		out = append(out, n.order.info())
	}
	slices.SortFunc(out, func(x, y OrderInfo) int { return cmp.Compare(x.ID, y.ID) })
	return out
}

// Order 查询挂单
func (b *OrderBook) Order(orderID uint64) (OrderInfo, bool) {
	n := b.byID[orderID]
	if n == nil {
		return OrderInfo{}, false
	}
	return n.order.info(), true
}

func (b *OrderBook) Has(orderID uint64) bool {
	_, ok := b.byID[orderID]
	return ok
}

// Len 挂单数量
func (b *OrderBook) Len() int { return len(b.byID) }

// BestBid 返回当前最优买价（最高价）
func (b *OrderBook) BestBid() (Price, bool) {
	lv, ok := b.bids.best()
	if !ok {
		return 0, false
	}
	return lv.price, true
}

// BestAsk 返回当前最优卖价（最低价）
func (b *OrderBook) BestAsk() (Price, bool) {
	lv, ok := b.asks.best()
	if !ok {
		return 0, false
	}
	return lv.price, true
}
