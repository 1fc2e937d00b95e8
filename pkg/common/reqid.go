package common

import (
	"context"

	"github.com/google/uuid"
	"matchcore.com/pkg/logger"
)

type ctxKey struct{}

func New() string { return uuid.NewString() }

// WithRequestID 把请求 id 放进 context；同时写到 logger 的 trace_id 上，日志能串起来
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxKey{}, id)
	return context.WithValue(ctx, logger.TraceIdKey, id)
}

// RequestIDFrom 获取id，没有返回空串
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKey{}).(string); ok {
		return s
	}
	return ""
}
