package matching

import "fmt"

// Order 单个订单的生命周期与成交状态。
// 只有 Fill 会修改 remaining，且只减不增。
type Order struct {
	typ       OrderType
	id        uint64
	side      Side
	price     Price
	initial   Quantity
	remaining Quantity
}

// NewOrder 创建订单，remaining = initial = qty
func NewOrder(typ OrderType, id uint64, side Side, price Price, qty Quantity) (*Order, error) {
	if !typ.valid() {
		return nil, ErrInvalidOrderType
	}
	if !side.valid() {
		return nil, ErrInvalidSide
	}
	if price == 0 {
		return nil, ErrInvalidPrice
	}
	if qty == 0 {
		return nil, ErrInvalidQuantity
	}
	return &Order{
		typ:       typ,
		id:        id,
		side:      side,
		price:     price,
		initial:   qty,
		remaining: qty,
	}, nil
}

func (o *Order) Type() OrderType             { return o.typ }
func (o *Order) ID() uint64                  { return o.id }
func (o *Order) Side() Side                  { return o.side }
func (o *Order) Price() Price                { return o.price }
func (o *Order) InitialQuantity() Quantity   { return o.initial }
func (o *Order) RemainingQuantity() Quantity { return o.remaining }
func (o *Order) FilledQuantity() Quantity    { return o.initial - o.remaining }
func (o *Order) IsFilled() bool              { return o.remaining == 0 }

// Fill 成交 qty，超过剩余数量返回 ErrOverFill，状态不变
func (o *Order) Fill(qty Quantity) error {
	if err := o.checkFill(qty); err != nil {
		return err
	}
	o.remaining -= qty
	return nil
}

func (o *Order) checkFill(qty Quantity) error {
	if qty > o.remaining {
		return fmt.Errorf("%w: order %d fill %d remaining %d", ErrOverFill, o.id, qty, o.remaining)
	}
	return nil
}

func (o *Order) info() OrderInfo {
	return OrderInfo{
		ID:        o.id,
		Type:      o.typ,
		Side:      o.side,
		Price:     o.price,
		Initial:   o.initial,
		Remaining: o.remaining,
	}
}
