package config

import (
	"fmt"
	"strings"

	pkgconfig "matchcore.com/pkg/config"
)

const ServiceName = "matchcore"

type Cfg struct {
	Name    string  `yaml:"name" mapstructure:"name"`
	Log     Log     `yaml:"log" mapstructure:"log"`
	Engine  Engine  `yaml:"engine" mapstructure:"engine"`
	Metrics Metrics `yaml:"metrics" mapstructure:"metrics"`
	OTel    OTel    `yaml:"otel" mapstructure:"otel"`
	Shell   Shell   `yaml:"shell" mapstructure:"shell"`
	Events  Events  `yaml:"events" mapstructure:"events"`

	// File 实际加载的配置文件，没有文件时为空
	File string `yaml:"-" mapstructure:"-"`
}

type Events struct {
	File string `yaml:"file" mapstructure:"file"` // 为空不导出；jsonl 格式
}

type Log struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

type Engine struct {
	MailboxSize  int  `yaml:"mailbox_size" mapstructure:"mailbox_size"`
	BatchMax     int  `yaml:"batch_max" mapstructure:"batch_max"`
	FailFast     bool `yaml:"fail_fast" mapstructure:"fail_fast"`
	EventBusSize int  `yaml:"event_bus_size" mapstructure:"event_bus_size"`
}

type Metrics struct {
	Addr string `yaml:"addr" mapstructure:"addr"` // 为空不启动 /metrics
}

type OTel struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Exporter string `yaml:"exporter" mapstructure:"exporter"` // otlp | stdout
	Addr     string `yaml:"addr" mapstructure:"addr"`
}

type Shell struct {
	FirstOrderID uint64      `yaml:"first_order_id" mapstructure:"first_order_id"`
	TickSize     string      `yaml:"tick_size" mapstructure:"tick_size"` // 价格显示精度，例如 "0.01"
	SeedOrders   []SeedOrder `yaml:"seed_orders" mapstructure:"seed_orders"`
}

// SeedOrder 启动时预先挂上的订单
type SeedOrder struct {
	Type  string `yaml:"type" mapstructure:"type"` // gtc | fak
	Side  string `yaml:"side" mapstructure:"side"` // buy | sell
	Price uint32 `yaml:"price" mapstructure:"price"`
	Qty   uint32 `yaml:"qty" mapstructure:"qty"`
}

func Defaults() map[string]any {
	return map[string]any{
		"name":                  ServiceName,
		"log.level":             "info",
		"log.file":              "",
		"engine.mailbox_size":   4096,
		"engine.batch_max":      256,
		"engine.fail_fast":      false,
		"engine.event_bus_size": 1 << 16,
		"metrics.addr":          "",
		"otel.enabled":          false,
		"otel.exporter":         "otlp",
		"otel.addr":             "localhost:4317",
		"shell.first_order_id":  1,
		"shell.tick_size":       "1",
		"events.file":           "",
	}
}

// Load 读 config/matchcore.yaml + MATCHCORE_ 环境变量，并做基本校验
func Load(opts ...pkgconfig.Option) (*Cfg, error) {
	cfg := &Cfg{}
	opts = append([]pkgconfig.Option{pkgconfig.WithDefaults(Defaults())}, opts...)
	v, err := pkgconfig.LoadAndWatch(ServiceName, cfg, opts...)
	if err != nil {
		return nil, err
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Cfg) Validate() error {
	switch strings.ToLower(c.OTel.Exporter) {
	case "", "otlp", "stdout":
	default:
		return fmt.Errorf("config: unknown otel.exporter %q", c.OTel.Exporter)
	}
	if c.Shell.FirstOrderID == 0 {
		return fmt.Errorf("config: shell.first_order_id must be greater than zero")
	}
	for i, s := range c.Shell.SeedOrders {
		if s.Price == 0 || s.Qty == 0 {
			return fmt.Errorf("config: shell.seed_orders[%d]: price and qty must be greater than zero", i)
		}
	}
	return nil
}
