package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/magiconair/properties"
	"github.com/meoying/querystack/internal/errs"
	"github.com/meoying/querystack/internal/stack"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite3 = "sqlite3"
	DriverMySQL   = "mysql"
)

// Config 配置结构体
type Config struct {
	Querystack Querystack `yaml:"querystack" properties:"querystack"`
	Log        Log        `yaml:"log" properties:"log"`
	Datasource Datasource `yaml:"datasource" properties:"datasource"`
}

// Querystack 帧栈追踪相关的配置
type Querystack struct {
	// Enabled 新会话的开关默认值，会话里面可以用 SET querystack.enabled 修改
	Enabled          bool   `yaml:"enabled" properties:"enabled,default=true"`
	MaxDepth         int    `yaml:"maxDepth" properties:"maxDepth,default=64"`
	MaxTextLen       int    `yaml:"maxTextLen" properties:"maxTextLen,default=1024"`
	TruncationMarker string `yaml:"truncationMarker" properties:"truncationMarker,default=...<truncated>"`
}

type Log struct {
	Level string `yaml:"level" properties:"level,default=info"`
	// Frames 是否注册记录每一个帧的日志观察者
	Frames bool `yaml:"frames" properties:"frames,default=false"`
}

type Datasource struct {
	Driver string `yaml:"driver" properties:"driver,default=sqlite3"`
	DSN    string `yaml:"dsn" properties:"dsn,default=file::memory:"`
}

// Default 默认配置
func Default() Config {
	return Config{
		Querystack: Querystack{
			Enabled:          true,
			MaxDepth:         stack.DefaultMaxDepth,
			MaxTextLen:       stack.DefaultMaxTextLen,
			TruncationMarker: stack.DefaultMarker,
		},
		Log: Log{
			Level: "info",
		},
		Datasource: Datasource{
			Driver: DriverSQLite3,
			DSN:    "file::memory:",
		},
	}
}

// ParseFile parses the YAML configuration from a file.
func ParseFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "读取配置文件失败")
	}
	return parseConfig(data)
}

// ParseContent parses the YAML configuration from file content
func ParseContent(content string) (*Config, error) {
	return parseConfig([]byte(content))
}

// ParsePropertiesFile 解析 .properties 格式的配置文件，键名形如 querystack.maxDepth
func ParsePropertiesFile(filePath string) (*Config, error) {
	p, err := properties.LoadFile(filePath, properties.UTF8)
	if err != nil {
		return nil, errors.Wrap(err, "读取配置文件失败")
	}
	var cfg Config
	if err = p.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "解析配置文件失败")
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Internal function to parse the YAML data.
func parseConfig(data []byte) (*Config, error) {
	// 没有出现的字段保留默认值
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "解析配置文件失败")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置，零值使用默认值
func (c *Config) Validate() error {
	q := &c.Querystack
	if q.MaxDepth < 0 {
		return errors.Wrapf(errs.ErrInvalidConfig, "querystack.maxDepth 不能是负数: %d", q.MaxDepth)
	}
	if q.MaxTextLen < 0 {
		return errors.Wrapf(errs.ErrInvalidConfig, "querystack.maxTextLen 不能是负数: %d", q.MaxTextLen)
	}
	if q.MaxDepth == 0 {
		q.MaxDepth = stack.DefaultMaxDepth
	}
	if q.MaxTextLen == 0 {
		q.MaxTextLen = stack.DefaultMaxTextLen
	}
	if q.TruncationMarker == "" {
		q.TruncationMarker = stack.DefaultMarker
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Datasource.Driver {
	case "":
		c.Datasource.Driver = DriverSQLite3
	case DriverSQLite3, DriverMySQL:
	default:
		return errors.Wrapf(errs.ErrInvalidConfig, "不支持的驱动: %s", c.Datasource.Driver)
	}
	return nil
}

// StackOptions 每个会话的帧栈配置
func (c *Config) StackOptions() stack.Options {
	return stack.Options{
		MaxDepth:   c.Querystack.MaxDepth,
		MaxTextLen: c.Querystack.MaxTextLen,
		Marker:     c.Querystack.TruncationMarker,
	}
}

// SlogLevel 日志级别，调用之前需要先 Validate
func (l Log) SlogLevel() slog.Level {
	level, _ := parseLevel(l.Level)
	return level
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, errors.Wrapf(errs.ErrInvalidConfig, "未知的日志级别: %s", level)
}
