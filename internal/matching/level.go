package matching

type priceLevel struct {
	price Price   // 价格
	head  *lvNode // 头部指针
	tail  *lvNode // 尾部指针
	size  int     // 桶的大小
}

// 实现一个双向链表
// node 只持有 *Order 引用，订单状态只存一份
type lvNode struct {
	prev  *lvNode     // 前指针
	next  *lvNode     // 后指针
	order *Order      // 订单指针
	lv    *priceLevel // 所属的价格桶
}

// Add 新订单时：同价位直接追加到队尾 => 天然满足 FIFO
func (l *priceLevel) pushBack(n *lvNode) {
	n.prev, n.next = l.tail, nil
	if l.tail != nil {
		l.tail.next = n
	} else {
		// 空链
		l.head = n
	}
	l.tail = n
	n.lv = l
	l.size++
}

// 删除节点 O(1)
func (l *priceLevel) remove(n *lvNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		// n 是 head
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		// n 是 tail
		l.tail = n.prev
	}
	// 断开节点指针，避免误用
	n.prev, n.next, n.lv = nil, nil, nil
	l.size--
}

func (l *priceLevel) empty() bool {
	return l.size == 0
}

func (l *priceLevel) front() *Order {
	if l.head == nil {
		return nil
	}
	return l.head.order
}

// totalQty 该价位所有订单剩余数量之和
func (l *priceLevel) totalQty() uint64 {
	var sum uint64
	for n := l.head; n != nil; n = n.next {
		sum += uint64(n.order.remaining)
	}
	return sum
}
