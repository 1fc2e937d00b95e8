package matching

import "container/heap"

type minPriceHeap []Price

func (m minPriceHeap) Len() int {
	return len(m)
}

func (m minPriceHeap) Less(i, j int) bool {
	return m[i] < m[j]
}

func (m minPriceHeap) Swap(i, j int) {
	m[i], m[j] = m[j], m[i]
}

func (m *minPriceHeap) Push(x any) {
	*m = append(*m, x.(Price))
}

func (m *minPriceHeap) Pop() any {
	old := *m
	n := len(old)
	x := old[n-1]
	*m = old[:n-1]
	return x
}

func (m minPriceHeap) peek() Price { return m[0] }

type maxPriceHeap []Price

func (m maxPriceHeap) Len() int {
	return len(m)
}

func (m maxPriceHeap) Less(i, j int) bool {
	return m[i] > m[j]
}

func (m maxPriceHeap) Swap(i, j int) {
	m[i], m[j] = m[j], m[i]
}

func (m *maxPriceHeap) Push(x any) {
	*m = append(*m, x.(Price))
}

func (m *maxPriceHeap) Pop() any {
	old := *m
	n := len(old)
	x := old[n-1]
	*m = old[:n-1]
	return x
}

func (m maxPriceHeap) peek() Price { return m[0] }

type priceHeap interface {
	heap.Interface
	peek() Price
}

// bookSide 一侧盘口：price -> level 的 map 加一个价格堆。
// 堆是 lazy deletion：桶删了堆里的价格先不动，取 best 的时候再弹掉。
// queued 记录已经在堆里的价格，同价位反复建桶/删桶时不会重复入堆。
type bookSide struct {
	side   Side
	levels map[Price]*priceLevel
	prices priceHeap
	queued map[Price]struct{}
}

func newBookSide(side Side) *bookSide {
	s := &bookSide{
		side:   side,
		levels: make(map[Price]*priceLevel, 1024),
		queued: make(map[Price]struct{}, 1024),
	}
	s.prices = s.newHeap()
	heap.Init(s.prices)
	return s
}

// level 找到价位桶，没有就新建并入堆
func (s *bookSide) level(price Price) *priceLevel {
	lv := s.levels[price]
	if lv != nil {
		return lv
	}
	lv = &priceLevel{price: price}
	s.levels[price] = lv
	if _, ok := s.queued[price]; !ok {
		heap.Push(s.prices, price)
		s.queued[price] = struct{}{}
	}
	return lv
}

// 堆里过期价格超过这个数、且多于活跃价位时重建一次
const compactMin = 64

// drop 桶空了立刻从价格索引删掉，堆里的价格等 best 时再清理；
// 过期价格堆积太多（深价位反复建桶/删桶）时整体重建
func (s *bookSide) drop(lv *priceLevel) {
	delete(s.levels, lv.price)
	if n := s.prices.Len(); n > compactMin && n > 2*len(s.levels) {
		s.compact()
	}
}

// compact 只保留还存在的价位，O(n)
func (s *bookSide) compact() {
	prices := s.newHeap()
	queued := make(map[Price]struct{}, len(s.levels))
	for p := range s.levels {
		prices.Push(p)
		queued[p] = struct{}{}
	}
	heap.Init(prices)
	s.prices, s.queued = prices, queued
}

func (s *bookSide) newHeap() priceHeap {
	if s.side == Buy {
		return &maxPriceHeap{}
	}
	return &minPriceHeap{}
}

// best 返回最优价位桶；堆顶对应的桶已经不存在就弹出继续找
func (s *bookSide) best() (*priceLevel, bool) {
	for s.prices.Len() > 0 {
		p := s.prices.peek()
		if lv := s.levels[p]; lv != nil && !lv.empty() {
			return lv, true
		}
		heap.Pop(s.prices)
		delete(s.queued, p)
	}
	return nil, false
}

func (s *bookSide) empty() bool { return len(s.levels) == 0 }
