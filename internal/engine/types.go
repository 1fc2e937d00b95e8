package engine

import (
	"errors"

	"matchcore.com/internal/matching"
)

// 定义命令类型
type CmdType uint8

const (
	CmdSubmit   CmdType = iota + 1 // 提交
	CmdCancel                      // 取消
	CmdReplace                     // 改单
	CmdSnapshot                    // 盘口快照
	CmdOrders                      // 挂单列表
)

func (c CmdType) String() string {
	switch c {
	case CmdSubmit:
		return "submit"
	case CmdCancel:
		return "cancel"
	case CmdReplace:
		return "replace"
	case CmdSnapshot:
		return "snapshot"
	case CmdOrders:
		return "orders"
	default:
		return "unknown"
	}
}

// SubmitRequest 上游提交的新订单，id 由调用方分配
type SubmitRequest struct {
	Type  matching.OrderType
	ID    uint64
	Side  matching.Side
	Price matching.Price
	Qty   matching.Quantity
}

// Command 进 mailbox 的命令；每条命令带自己的 reply 通道，actor 执行完立即回写
type Command struct {
	Type  CmdType
	ReqID string // 上游追踪用（uuid）

	Order   *matching.Order // CmdSubmit
	OrderID uint64          // CmdCancel
	Modify  matching.Modify // CmdReplace

	reply chan reply
}

type reply struct {
	res    Result
	snap   matching.Snapshot
	orders []matching.OrderInfo
	err    error
}

// Result 一条写命令的执行结果
type Result struct {
	Seq    uint64
	Trades []matching.Trade
	// Applied submit：不是重复 id 且没有被 FAK 直接拒绝；cancel/replace：目标订单存在
	Applied bool
	// Resting 命令执行完后该订单仍挂在簿上
	Resting bool
}

type EventType uint8

const (
	EvAccepted  EventType = iota + 1 // 成功
	EvRejected                       // 失败
	EvAdded                          // 加入订单薄
	EvCancelled                      // 订单薄取消（含 FAK 剩余被撤）
	EvTrade                          // 交易成功
)

func (t EventType) String() string {
	switch t {
	case EvAccepted:
		return "accepted"
	case EvRejected:
		return "rejected"
	case EvAdded:
		return "added"
	case EvCancelled:
		return "cancelled"
	case EvTrade:
		return "trade"
	default:
		return "unknown"
	}
}

type Event struct {
	Type EventType `json:"type"`

	// 同一 actor 内单调递增，用于对齐/排查
	Seq   uint64 `json:"seq"`
	Idx   uint16 `json:"idx"` // 同一 Seq 内事件序号
	ReqID string `json:"req_id"`

	// 通用字段
	OrderID uint64            `json:"order_id,omitempty"`
	Side    matching.Side     `json:"side,omitempty"`
	Price   matching.Price    `json:"price,omitempty"`
	Qty     matching.Quantity `json:"qty,omitempty"`

	// Trade 字段：两边各自的价格
	Trade matching.Trade `json:"trade"`

	// 非热路径：拒单原因
	Reason string `json:"reason,omitempty"`
}

// 定义错误
var (
	ErrEngineBusy    = errors.New("engine busy: mailbox full")
	ErrEngineStopped = errors.New("engine stopped")
	ErrBadCommand    = errors.New("bad command")
)
