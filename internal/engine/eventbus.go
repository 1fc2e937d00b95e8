package engine

import "sync/atomic"

// ChanBus 事件总线：actor 非阻塞写入，消费者从 C() 读；写满就丢并计数
type ChanBus struct {
	ch      chan Event
	dropped atomic.Uint64
}

func NewChanBus(size int) *ChanBus {
	if size <= 0 {
		size = 1 << 16
	}
	return &ChanBus{ch: make(chan Event, size)}
}

func (b *ChanBus) TryPublish(ev Event) bool {
	select {
	case b.ch <- ev:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

func (b *ChanBus) C() <-chan Event { return b.ch }
func (b *ChanBus) Dropped() uint64 { return b.dropped.Load() }
