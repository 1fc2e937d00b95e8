package config

import (
	"errors"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"matchcore.com/pkg/logger"
)

type options struct {
	defaults map[string]any
	paths    []string
	onChange []func()
	watch    bool
}

type Option func(*options)

// WithDefaults 配置文件和环境变量都没有时使用的默认值
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) { o.defaults = defaults }
}

// WithPaths 替换默认的搜索目录（./config 和 .）
func WithPaths(paths ...string) Option {
	return func(o *options) { o.paths = paths }
}

// WithOnChange 配置文件变更并重新 Unmarshal 成功后回调
func WithOnChange(fn func()) Option {
	return func(o *options) { o.onChange = append(o.onChange, fn) }
}

// WithoutWatch 不监听文件变更（测试用）
func WithoutWatch() Option {
	return func(o *options) { o.watch = false }
}

// LoadAndWatch 加载 config/{service}.yaml 并监听变更。
// 提示信息走 pkg/logger（未初始化时丢弃），不会打到 stdout/stderr 上。
func LoadAndWatch(service string, out interface{}, opts ...Option) (*viper.Viper, error) {
	o := options{paths: []string{"./config", "."}, watch: true}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	// 约定：config/{service}.yaml
	v.SetConfigName(service)
	v.SetConfigType("yaml")
	for _, p := range o.paths {
		v.AddConfigPath(p)
	}
	for k, val := range o.defaults {
		v.SetDefault(k, val)
	}

	// 环境变量覆盖，例如：
	//   MATCHCORE_LOG_LEVEL 覆盖 log.level
	//   MATCHCORE_METRICS_ADDR 覆盖 metrics.addr
	v.SetEnvPrefix(strings.ToUpper(service))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件；没有文件时只用默认值 + 环境变量
	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
		logger.Named("config").Info("no config file, using defaults and env", zap.String("service", service))
	}

	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}
	if !fileFound {
		return v, nil
	}

	logger.Named("config").Info("config loaded", zap.String("file", v.ConfigFileUsed()))
	if !o.watch {
		return v, nil
	}

	// 监听文件变更，热更新到 out
	v.OnConfigChange(func(e fsnotify.Event) {
		log := logger.Named("config")
		log.Info("config file changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))

		if err := v.Unmarshal(out); err != nil {
			log.Error("reload config error", zap.Error(err))
			return
		}
		log.Info("config reloaded")
		for _, fn := range o.onChange {
			fn()
		}
	})
	v.WatchConfig()

	return v, nil
}
