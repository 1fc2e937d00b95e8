package matching

// 定义数据结构

// Side 买卖方向
type Side uint8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "Invalid"
	}
}

func (s Side) valid() bool { return s == Buy || s == Sell }

// OrderType 订单类型
type OrderType uint8

const (
	GoodTillCancel OrderType = iota + 1 // 一直挂着，直到成交或者撤单
	FillAndKill                         // 能成交多少成交多少，剩下的直接丢弃
)

func (t OrderType) String() string {
	switch t {
	case GoodTillCancel:
		return "GoodTillCancel"
	case FillAndKill:
		return "FillAndKill"
	default:
		return "Invalid"
	}
}

func (t OrderType) valid() bool { return t == GoodTillCancel || t == FillAndKill }

// Price 最小价格单位（tick）
type Price uint32

// Quantity 最小数量单位
type Quantity uint32

// TradeInfo 一笔成交中单边的信息
type TradeInfo struct {
	OrderID uint64
	Price   Price // 这一边自己的限价，不做统一成交价
	Qty     Quantity
}

// Trade 一次撮合产生的成交，生成后不再修改
type Trade struct {
	Bid TradeInfo
	Ask TradeInfo
}

// LevelInfo 一个价位的聚合数量
type LevelInfo struct {
	Price Price
	Qty   uint64 // 多个 uint32 相加，用 uint64 防溢出
}

// Snapshot 盘口快照：Bids 价格降序，Asks 价格升序
type Snapshot struct {
	Bids []LevelInfo
	Asks []LevelInfo
}

// Modify 改单请求：同一个 id，换方向/价格/数量
type Modify struct {
	ID    uint64
	Side  Side
	Price Price
	Qty   Quantity
}

// ToOrder 按原订单类型生成新订单
func (m Modify) ToOrder(typ OrderType) (*Order, error) {
	return NewOrder(typ, m.ID, m.Side, m.Price, m.Qty)
}

// OrderInfo 挂单列表的一行（只读）
type OrderInfo struct {
	ID        uint64
	Type      OrderType
	Side      Side
	Price     Price
	Initial   Quantity
	Remaining Quantity
}
