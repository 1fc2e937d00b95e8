package shell

import (
	"fmt"
	"text/tabwriter"

	"matchcore.com/internal/matching"
)

func (s *Shell) renderTrades(trades []matching.Trade) {
	for _, t := range trades {
		fmt.Fprintf(s.out, "Trade: %s | %s\n",
			s.bidColor.Sprintf("bid #%d @ %s x %d", t.Bid.OrderID, s.ticks.Format(t.Bid.Price), t.Bid.Qty),
			s.askColor.Sprintf("ask #%d @ %s x %d", t.Ask.OrderID, s.ticks.Format(t.Ask.Price), t.Ask.Qty),
		)
	}
}

// renderOrders 挂单列表（entry history），按 id 排序
func (s *Shell) renderOrders(orders []matching.OrderInfo) {
	if len(orders) == 0 {
		fmt.Fprintln(s.out, "No resting orders")
		return
	}
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSIDE\tPRICE\tINITIAL\tREMAINING")
	for _, o := range orders {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\n",
			o.ID, o.Type, o.Side, s.ticks.Format(o.Price), o.Initial, o.Remaining)
	}
	_ = w.Flush()
}

// renderBook 卖盘在上（高价到低价），买盘在下，中间是价差
func (s *Shell) renderBook(snap matching.Snapshot) {
	fmt.Fprintln(s.out, "ASKS")
	if len(snap.Asks) == 0 {
		fmt.Fprintln(s.out, "  (empty)")
	}
	for i := len(snap.Asks) - 1; i >= 0; i-- {
		lv := snap.Asks[i]
		fmt.Fprintln(s.out, s.askColor.Sprintf("  %12s  %d", s.ticks.Format(lv.Price), lv.Qty))
	}
	if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
		spread := snap.Asks[0].Price - snap.Bids[0].Price
		fmt.Fprintf(s.out, "  ---- spread %s ----\n", s.ticks.Format(spread))
	} else {
		fmt.Fprintln(s.out, "  ----")
	}
	fmt.Fprintln(s.out, "BIDS")
	if len(snap.Bids) == 0 {
		fmt.Fprintln(s.out, "  (empty)")
	}
	for _, lv := range snap.Bids {
		fmt.Fprintln(s.out, s.bidColor.Sprintf("  %12s  %d", s.ticks.Format(lv.Price), lv.Qty))
	}
}
