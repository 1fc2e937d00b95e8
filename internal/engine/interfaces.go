package engine

import "matchcore.com/internal/matching"

// Book actor 持有的订单簿，只会被 actor goroutine 调用
type Book interface {
	Submit(order *matching.Order) ([]matching.Trade, error)
	Cancel(orderID uint64) bool
	Replace(m matching.Modify) ([]matching.Trade, error)
	Snapshot() matching.Snapshot
	Orders() []matching.OrderInfo
	Order(orderID uint64) (matching.OrderInfo, bool)
	Has(orderID uint64) bool
	Len() int
}

// Emitter actor 执行命令时产生的事件
type Emitter interface {
	Accepted(orderID uint64)
	Rejected(orderID uint64, reason string)
	Added(info matching.OrderInfo)
	Cancelled(orderID uint64)
	Trade(t matching.Trade)
}

// EventSink：下游“可能慢”，所以只提供 TryPublish（非阻塞）
type EventSink interface {
	TryPublish(ev Event) bool
}

var _ Book = (*matching.OrderBook)(nil)
