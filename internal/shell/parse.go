package shell

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"matchcore.com/internal/matching"
)

var errInvalidInput = errors.New("invalid input")

// ParseType 支持 1/2 和 gtc/fak 两种写法
func ParseType(s string) (matching.OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "gtc", "goodtillcancel":
		return matching.GoodTillCancel, nil
	case "2", "fak", "fillandkill":
		return matching.FillAndKill, nil
	}
	return 0, fmt.Errorf("%w: order type %q", errInvalidInput, s)
}

// ParseSide 支持 1/2 和 buy/sell 两种写法
func ParseSide(s string) (matching.Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "buy", "b":
		return matching.Buy, nil
	case "2", "sell", "s":
		return matching.Sell, nil
	}
	return 0, fmt.Errorf("%w: side %q", errInvalidInput, s)
}

// Ticks 价格换算：显示价 / tick，必须整除，且落在 Price 范围内
type Ticks struct {
	size decimal.Decimal
}

func NewTicks(size string) (Ticks, error) {
	if strings.TrimSpace(size) == "" {
		return Ticks{size: decimal.NewFromInt(1)}, nil
	}
	d, err := decimal.NewFromString(size)
	if err != nil {
		return Ticks{}, fmt.Errorf("tick size %q: %w", size, err)
	}
	if !d.IsPositive() {
		return Ticks{}, fmt.Errorf("tick size %q must be positive", size)
	}
	return Ticks{size: d}, nil
}

func (t Ticks) Size() decimal.Decimal { return t.size }

// ToPrice "1.25" + tick 0.01 => 125
func (t Ticks) ToPrice(s string) (matching.Price, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: price %q", errInvalidInput, s)
	}
	q := d.Div(t.size)
	if !q.Equal(q.Truncate(0)) {
		return 0, fmt.Errorf("%w: price %s is not a multiple of tick %s", errInvalidInput, d, t.size)
	}
	if q.IsNegative() || q.GreaterThan(decimal.NewFromInt(math.MaxUint32)) {
		return 0, fmt.Errorf("%w: price %s out of range", errInvalidInput, d)
	}
	return matching.Price(q.IntPart()), nil
}

// Format 125 + tick 0.01 => "1.25"，小数位数跟 tick 一致
func (t Ticks) Format(p matching.Price) string {
	var places int32
	if e := t.size.Exponent(); e < 0 {
		places = -e
	}
	return decimal.NewFromInt(int64(p)).Mul(t.size).StringFixed(places)
}

func parseQty(s string) (matching.Quantity, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: quantity %q", errInvalidInput, s)
	}
	return matching.Quantity(n), nil
}

func parseID(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: order id %q", errInvalidInput, s)
	}
	return n, nil
}

// orderLine "type side price quantity"
type orderLine struct {
	typ   matching.OrderType
	side  matching.Side
	price matching.Price
	qty   matching.Quantity
}

func (s *Shell) parseOrderLine(line string) (orderLine, error) {
	f := strings.Fields(line)
	if len(f) != 4 {
		return orderLine{}, errInvalidInput
	}
	var (
		o   orderLine
		err error
	)
	if o.typ, err = ParseType(f[0]); err != nil {
		return orderLine{}, err
	}
	if o.side, err = ParseSide(f[1]); err != nil {
		return orderLine{}, err
	}
	if o.price, err = s.ticks.ToPrice(f[2]); err != nil {
		return orderLine{}, err
	}
	if o.qty, err = parseQty(f[3]); err != nil {
		return orderLine{}, err
	}
	return o, nil
}

// parseModifyLine "id side price quantity"
func (s *Shell) parseModifyLine(line string) (matching.Modify, error) {
	f := strings.Fields(line)
	if len(f) != 4 {
		return matching.Modify{}, errInvalidInput
	}
	var (
		m   matching.Modify
		err error
	)
	if m.ID, err = parseID(f[0]); err != nil {
		return matching.Modify{}, err
	}
	if m.Side, err = ParseSide(f[1]); err != nil {
		return matching.Modify{}, err
	}
	if m.Price, err = s.ticks.ToPrice(f[2]); err != nil {
		return matching.Modify{}, err
	}
	if m.Qty, err = parseQty(f[3]); err != nil {
		return matching.Modify{}, err
	}
	return m, nil
}
