package shell

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"matchcore.com/internal/engine"
	"matchcore.com/internal/matching"
	"matchcore.com/pkg/common"
	"matchcore.com/pkg/xerr"
)

var errNotFound = errors.New("order not found")

func errOrderNotFound(id uint64) error {
	return xerr.Wrap(xerr.RecordNotFound, fmt.Errorf("%w: %d", errNotFound, id))
}

// codeOf 把 engine / matching 的错误映射成展示用错误码
func codeOf(err error) int {
	// 已经带了错误码的直接用
	if code := xerr.CodeOf(err); code != xerr.ServerCommonError {
		return code
	}
	switch {
	case errors.Is(err, errInvalidInput),
		errors.Is(err, matching.ErrInvalidQuantity),
		errors.Is(err, matching.ErrInvalidPrice),
		errors.Is(err, matching.ErrInvalidSide),
		errors.Is(err, matching.ErrInvalidOrderType):
		return xerr.RequestParamsError
	case errors.Is(err, errNotFound):
		return xerr.RecordNotFound
	case errors.Is(err, engine.ErrEngineBusy):
		return xerr.EngineBusy
	default:
		// 契约违反、engine 已停止、ctx 超时等
		return xerr.ServerCommonError
	}
}

// fail 打印错误码和原因
func (s *Shell) fail(ctx context.Context, err error) {
	code := codeOf(err)
	if code == xerr.ServerCommonError {
		s.log.Error("command failed", zap.String("req_id", common.RequestIDFrom(ctx)), zap.Error(err))
	}
	msg := err.Error()
	var ce *xerr.CodeError
	if errors.As(err, &ce) {
		msg = ce.Msg
	}
	fmt.Fprintln(s.out, s.errColor.Sprintf("[%d] %s: %s", code, xerr.MapErrMsg(code), msg))
}

// invalid 输入解析失败：只提示 Invalid Input，细节写日志
func (s *Shell) invalid(ctx context.Context, err error) {
	s.log.Debug("invalid input", zap.String("req_id", common.RequestIDFrom(ctx)), zap.Error(err))
	fmt.Fprintln(s.out, s.errColor.Sprint("Invalid Input"))
}
