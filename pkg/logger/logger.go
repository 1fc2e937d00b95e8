package logger

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 定义 TraceID 在 Context 中的 Key
const TraceIdKey = "trace_id"

// 全局 Logger 实例
var Log *zap.Logger

// 全局级别，配置热更新时直接改
var level = zap.NewAtomicLevelAt(zap.InfoLevel)

// Options 日志输出配置
type Options struct {
	Level   string // debug, info, warn, error
	File    string // 为空则使用 logs/{serviceName}.log
	Console bool   // 是否同时输出到 stdout；交互式 shell 下一般关掉
}

// InitWithOptions 初始化日志组件
// serviceName: 当前服务的名称 (例如 "matchcore")
func InitWithOptions(serviceName string, opts Options) {
	// 1. 配置日志级别
	_ = SetLevel(opts.Level)

	// 2. 配置编码器 (强制用 JSON)
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder   // 时间格式: 2023-11-23T...
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder // 级别格式: INFO, ERROR
	encoderConfig.MessageKey = "msg"                        // 消息字段名

	// 3. 准备写入目标
	var writeSyncers []zapcore.WriteSyncer
	if opts.Console {
		writeSyncers = append(writeSyncers, zapcore.AddSync(os.Stdout))
	}

	logFile := opts.File
	if logFile == "" {
		// 默认日志文件路径：logs/{serviceName}.log
		logFile = filepath.Join("logs", serviceName+".log")
	}

	// 确保日志目录存在，失败就只输出到控制台
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err == nil {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			writeSyncers = append(writeSyncers, zapcore.AddSync(file))
		}
	}
	if len(writeSyncers) == 0 {
		writeSyncers = append(writeSyncers, zapcore.AddSync(os.Stderr))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig), // JSON 格式方便 ELK 收集
		zapcore.NewMultiWriteSyncer(writeSyncers...),
		level,
	)

	// AddCallerSkip: 因为我们要封装一层函数，所以 Skip 1，否则行号永远指向 logger.go
	Log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	// 注入全局字段 (如服务名)
	Log = Log.With(zap.String("service", serviceName))
}

// SetLevel 修改全局日志级别，非法值回落到 info
func SetLevel(l string) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(l)); err != nil {
		level.SetLevel(zap.InfoLevel)
		return err
	}
	level.SetLevel(zapLevel)
	return nil
}

// Level 当前全局日志级别
func Level() zapcore.Level { return level.Level() }

// Named 给组件用的子 logger（不带 caller skip）；未初始化时返回 Nop
func Named(name string) *zap.Logger {
	if Log == nil {
		return zap.NewNop()
	}
	return Log.WithOptions(zap.AddCallerSkip(-1)).Named(name)
}

// ---------------------------------------------------------
// 核心封装：带 Context 的日志方法
// ---------------------------------------------------------

// Info 打印 Info 级别日志
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	extractTrace(ctx, &fields)
	Log.Info(msg, fields...)
}

// Error 打印 Error 级别日志
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	extractTrace(ctx, &fields)
	Log.Error(msg, fields...)
}

// Warn 打印 Warn 级别日志
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	extractTrace(ctx, &fields)
	Log.Warn(msg, fields...)
}

// Debug 打印 Debug 级别日志
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	extractTrace(ctx, &fields)
	Log.Debug(msg, fields...)
}

// extractTrace 从 Context 中提取 TraceID 并追加到 fields
func extractTrace(ctx context.Context, fields *[]zap.Field) {
	if ctx == nil {
		return
	}
	if traceID, ok := ctx.Value(TraceIdKey).(string); ok && traceID != "" {
		*fields = append(*fields, zap.String("trace_id", traceID))
	}
}

// Sync 刷新缓冲区 (建议在 main 函数 defer 中调用)
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
