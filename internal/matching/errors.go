package matching

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity  = errors.New("matching: quantity must be greater than zero")
	ErrInvalidPrice     = errors.New("matching: price must be greater than zero")
	ErrInvalidSide      = errors.New("matching: invalid side")
	ErrInvalidOrderType = errors.New("matching: invalid order type")
	ErrNilOrder         = errors.New("matching: nil order")

	// ErrContractViolation 只可能由撮合内部逻辑触发，不是用户输入错误
	ErrContractViolation = errors.New("matching: contract violation")
	ErrOverFill          = fmt.Errorf("%w: fill exceeds remaining quantity", ErrContractViolation)
)
