package matching

import "go.uber.org/zap"

// canMatch 对手盘是否存在可以成交的价格
func (b *OrderBook) canMatch(side Side, price Price) bool {
	if side == Buy {
		ask, ok := b.BestAsk()
		return ok && price >= ask
	}
	bid, ok := b.BestBid()
	return ok && price <= bid
}

// match 撮合：只要 bestBid >= bestAsk 就拿两边队头互相吃。
// 每一步先校验两边都能 Fill 再修改，不会出现只成交一边的情况；
// 校验失败时中止，之前已经成交的步骤保留，连同 trades 一起返回。
func (b *OrderBook) match() ([]Trade, error) {
	// 正常结束和中止都要清理 FillAndKill 剩余
	defer b.killFAK()

	var trades []Trade
	for {
		bidLv, okBid := b.bids.best()
		askLv, okAsk := b.asks.best()
		if !okBid || !okAsk || bidLv.price < askLv.price {
			break
		}

		for !bidLv.empty() && !askLv.empty() {
			bn, an := bidLv.head, askLv.head
			bid, ask := bn.order, an.order

			qty := min(bid.remaining, ask.remaining)
			if err := bid.checkFill(qty); err != nil {
				b.log.Error("bid fill rejected", zap.Error(err))
				return trades, err
			}
			if err := ask.checkFill(qty); err != nil {
				b.log.Error("ask fill rejected", zap.Error(err))
				return trades, err
			}
			bid.remaining -= qty
			ask.remaining -= qty

			trades = append(trades, Trade{
				Bid: TradeInfo{OrderID: bid.id, Price: bid.price, Qty: qty},
				Ask: TradeInfo{OrderID: ask.id, Price: ask.price, Qty: qty},
			})

			// 吃完了：摘链 删除索引（桶空了一起删桶）
			if bid.IsFilled() {
				b.unlink(bn)
			}
			if ask.IsFilled() {
				b.unlink(an)
			}
		}
	}
	return trades, nil
}

// killFAK FillAndKill 不允许在撮合之后继续挂着：剩余部分直接撤掉
func (b *OrderBook) killFAK() {
	if lv, ok := b.bids.best(); ok {
		if o := lv.front(); o != nil && o.typ == FillAndKill {
			b.Cancel(o.id)
		}
	}
	if lv, ok := b.asks.best(); ok {
		if o := lv.front(); o != nil && o.typ == FillAndKill {
			b.Cancel(o.id)
		}
	}
}
