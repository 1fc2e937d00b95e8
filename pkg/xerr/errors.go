package xerr

import (
	"errors"
	"fmt"
)

// 常用错误码定义
const (
	OK                 = 200
	RequestParamsError = 400
	RecordNotFound     = 404
	ServerCommonError  = 500
	EngineBusy         = 503
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	err  error
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func (e *CodeError) Unwrap() error { return e.err }

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Wrap 给底层错误挂上错误码，errors.Is 仍然能匹配到原错误
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &CodeError{Code: code, Msg: err.Error(), err: err}
}

// CodeOf 取错误码；不是 CodeError 的统一算 ServerCommonError
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ServerCommonError
}

func MapErrMsg(code int) string {
	switch code {
	case OK:
		return "ok"
	case RequestParamsError:
		return "invalid parameters"
	case RecordNotFound:
		return "record not found"
	case ServerCommonError:
		return "internal error"
	case EngineBusy:
		return "engine busy"
	default:
		return "unknown error"
	}
}
