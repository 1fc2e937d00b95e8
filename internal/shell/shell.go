package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"matchcore.com/internal/engine"
	"matchcore.com/internal/matching"
	"matchcore.com/pkg/common"
)

// Engine shell 只依赖这几个操作，方便测试时替换
type Engine interface {
	Submit(ctx context.Context, req engine.SubmitRequest) (engine.Result, error)
	Cancel(ctx context.Context, orderID uint64) (engine.Result, error)
	Replace(ctx context.Context, m matching.Modify) (engine.Result, error)
	Snapshot(ctx context.Context) (matching.Snapshot, error)
	Orders(ctx context.Context) ([]matching.OrderInfo, error)
}

const menu = `
1. Enter an order
2. Cancel an order
3. Display entry history
4. Display order book
5. Exit
6. Modify an order
`

// Shell 交互式命令行：只负责读输入和展示，业务都在 engine 里
type Shell struct {
	eng    Engine
	in     io.Reader
	out    io.Writer
	ticks  Ticks
	nextID uint64
	log    *zap.Logger

	bidColor *color.Color
	askColor *color.Color
	errColor *color.Color
}

type Option func(*Shell)

func WithFirstOrderID(id uint64) Option {
	return func(s *Shell) {
		if id > 0 {
			s.nextID = id
		}
	}
}

func WithTicks(t Ticks) Option {
	return func(s *Shell) {
		if !t.size.IsZero() {
			s.ticks = t
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Shell) {
		if l != nil {
			s.log = l
		}
	}
}

func New(eng Engine, in io.Reader, out io.Writer, opts ...Option) *Shell {
	t, _ := NewTicks("1")
	s := &Shell{
		eng:    eng,
		in:     in,
		out:    out,
		ticks:  t,
		nextID: 1,
		log:    zap.NewNop(),

		bidColor: color.New(color.FgGreen),
		askColor: color.New(color.FgRed),
		errColor: color.New(color.FgYellow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextID 下一个要分配的订单 id
func (s *Shell) NextID() uint64 { return s.nextID }

// Seed 启动时挂上预置订单，走和手工下单一样的流程
func (s *Shell) Seed(ctx context.Context, orders []SeedOrder) error {
	for i, so := range orders {
		typ, err := ParseType(so.Type)
		if err != nil {
			return fmt.Errorf("seed order %d: %w", i, err)
		}
		side, err := ParseSide(so.Side)
		if err != nil {
			return fmt.Errorf("seed order %d: %w", i, err)
		}
		line := orderLine{typ: typ, side: side, price: matching.Price(so.Price), qty: matching.Quantity(so.Qty)}
		if err := s.enter(ctx, line); err != nil {
			return fmt.Errorf("seed order %d: %w", i, err)
		}
	}
	return nil
}

// SeedOrder 预置订单，价格已经是 tick 单位
type SeedOrder struct {
	Type  string
	Side  string
	Price uint32
	Qty   uint32
}

// Run 读到 5 / EOF 返回 nil；ctx 结束返回 ctx.Err()
func (s *Shell) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(s.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()

	next := func(prompt string) (string, bool, error) {
		fmt.Fprint(s.out, prompt)
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return "", false, <-readErr
			}
			return strings.TrimSpace(line), true, nil
		}
	}

	for {
		fmt.Fprint(s.out, menu)
		choice, ok, err := next("> ")
		if !ok {
			return err
		}
		// 每条命令一个 request id，日志和事件都能串起来
		cctx := common.WithRequestID(ctx, common.New())

		switch choice {
		case "1":
			line, ok, err := next("type side price quantity (type 1=GTC 2=FAK, side 1=Buy 2=Sell): ")
			if !ok {
				return err
			}
			o, err := s.parseOrderLine(line)
			if err != nil {
				s.invalid(cctx, err)
				continue
			}
			if err := s.enter(cctx, o); err != nil {
				s.fail(cctx, err)
			}
		case "2":
			line, ok, err := next("order id: ")
			if !ok {
				return err
			}
			id, err := parseID(line)
			if err != nil {
				s.invalid(cctx, err)
				continue
			}
			s.cancel(cctx, id)
		case "3":
			s.listOrders(cctx)
		case "4":
			s.showBook(cctx)
		case "5":
			fmt.Fprintln(s.out, "Bye")
			return nil
		case "6":
			line, ok, err := next("id side price quantity: ")
			if !ok {
				return err
			}
			m, err := s.parseModifyLine(line)
			if err != nil {
				s.invalid(cctx, err)
				continue
			}
			s.modify(cctx, m)
		default:
			s.invalid(cctx, fmt.Errorf("%w: menu choice %q", errInvalidInput, choice))
		}
	}
}

func (s *Shell) enter(ctx context.Context, o orderLine) error {
	id := s.nextID
	res, err := s.eng.Submit(ctx, engine.SubmitRequest{
		Type: o.typ, ID: id, Side: o.side, Price: o.price, Qty: o.qty,
	})
	if err != nil {
		return err
	}
	s.nextID++
	s.log.Info("order entered",
		zap.Uint64("order_id", id),
		zap.String("req_id", common.RequestIDFrom(ctx)),
		zap.Bool("applied", res.Applied),
		zap.Int("trades", len(res.Trades)))

	switch {
	case !res.Applied:
		fmt.Fprintf(s.out, "Order %d killed: nothing to match\n", id)
	case res.Resting:
		fmt.Fprintf(s.out, "Order %d accepted, resting\n", id)
	default:
		fmt.Fprintf(s.out, "Order %d accepted\n", id)
	}
	s.renderTrades(res.Trades)
	return nil
}

func (s *Shell) cancel(ctx context.Context, id uint64) {
	res, err := s.eng.Cancel(ctx, id)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	if !res.Applied {
		s.fail(ctx, errOrderNotFound(id))
		return
	}
	fmt.Fprintf(s.out, "Order %d cancelled\n", id)
}

func (s *Shell) modify(ctx context.Context, m matching.Modify) {
	res, err := s.eng.Replace(ctx, m)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	if !res.Applied {
		s.fail(ctx, errOrderNotFound(m.ID))
		return
	}
	if res.Resting {
		fmt.Fprintf(s.out, "Order %d modified, resting\n", m.ID)
	} else {
		fmt.Fprintf(s.out, "Order %d modified\n", m.ID)
	}
	s.renderTrades(res.Trades)
}

func (s *Shell) listOrders(ctx context.Context) {
	orders, err := s.eng.Orders(ctx)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.renderOrders(orders)
}

func (s *Shell) showBook(ctx context.Context) {
	snap, err := s.eng.Snapshot(ctx)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.renderBook(snap)
}
