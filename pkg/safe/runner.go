package safe

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"matchcore.com/pkg/logger"
)

func recovered(ctx context.Context, r any) {
	stack := string(debug.Stack())
	// 如果 logger 已初始化，用 logger 记；否则打印到标准输出
	if logger.Log != nil {
		logger.Error(ctx, "goroutine panic recovered",
			zap.Any("panic", r),
			zap.String("stack", stack),
		)
		return
	}
	fmt.Printf("goroutine panic: %v\nStack: %s\n", r, stack)
}

// Go 安全启动协程
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				recovered(context.Background(), r)
			}
		}()
		fn()
	}()
}

// GoDone 安全启动携带 context 的协程，便于在日志中保留请求链路信息。
// 返回的 channel 在 fn 退出（包括 panic）后关闭
func GoDone(ctx context.Context, fn func(ctx context.Context)) <-chan struct{} {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				recovered(ctx, r)
			}
		}()
		fn(ctx)
	}()
	return done
}
