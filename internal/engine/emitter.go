package engine

import "matchcore.com/internal/matching"

// busEmitter 把一条命令产生的事件按顺序写到 sink，Idx 在同一 seq 内递增
type busEmitter struct {
	sink   EventSink
	seq    uint64
	req    string
	idx    uint16
	onDrop func()
}

func (e *busEmitter) next() uint16 { i := e.idx; e.idx++; return i }

func (e *busEmitter) pub(ev Event) {
	ev.Seq, ev.Idx, ev.ReqID = e.seq, e.next(), e.req
	if e.sink == nil {
		return
	}
	if !e.sink.TryPublish(ev) && e.onDrop != nil {
		e.onDrop()
	}
}

func (e *busEmitter) Accepted(orderID uint64) {
	e.pub(Event{Type: EvAccepted, OrderID: orderID})
}

func (e *busEmitter) Rejected(orderID uint64, reason string) {
	e.pub(Event{Type: EvRejected, OrderID: orderID, Reason: reason})
}

func (e *busEmitter) Added(info matching.OrderInfo) {
	e.pub(Event{
		Type: EvAdded, OrderID: info.ID,
		Side: info.Side, Price: info.Price, Qty: info.Remaining,
	})
}

func (e *busEmitter) Cancelled(orderID uint64) {
	e.pub(Event{Type: EvCancelled, OrderID: orderID})
}

func (e *busEmitter) Trade(t matching.Trade) {
	e.pub(Event{Type: EvTrade, Qty: t.Bid.Qty, Trade: t})
}
