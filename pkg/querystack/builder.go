package querystack

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/meoying/querystack/config"
	"github.com/meoying/querystack/internal/driver/tracking"
	"github.com/meoying/querystack/internal/hook"
	loghook "github.com/meoying/querystack/internal/hook/log"
)

// ConnectorBuilder 根据配置信息构建带帧栈追踪的 driver.Connector 对象或者 *sql.DB 对象
type ConnectorBuilder struct {
	config *config.Config
	logger *slog.Logger
	hooks  []hook.Hook
}

// LoadConfigFile 根据扩展名选择 YAML 或者 .properties 格式
func (c *ConnectorBuilder) LoadConfigFile(path string) error {
	var (
		cfg *config.Config
		err error
	)
	if filepath.Ext(path) == ".properties" {
		cfg, err = config.ParsePropertiesFile(path)
	} else {
		cfg, err = config.ParseFile(path)
	}
	if err != nil {
		return fmt.Errorf("加载配置文件失败: %w", err)
	}
	c.SetConfig(*cfg)
	return nil
}

func (c *ConnectorBuilder) SetConfig(cfg config.Config) {
	cc := cfg
	c.config = &cc
}

func (c *ConnectorBuilder) SetLogger(l *slog.Logger) {
	c.logger = l
}

// AddHooks 额外的观察者，注册在追踪器之前
func (c *ConnectorBuilder) AddHooks(hooks ...hook.Hook) {
	c.hooks = append(c.hooks, hooks...)
}

// BuildDB 根据配置文件直接构建出*sql.DB对象
func (c *ConnectorBuilder) BuildDB(d driver.Driver, dsn string) (*sql.DB, error) {
	cc, err := c.Build(d, dsn)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(cc), nil
}

// Build 包装真实的驱动 d，dsn 为空的时候使用配置里面的数据源
func (c *ConnectorBuilder) Build(d driver.Driver, dsn string) (*tracking.Connector, error) {
	if c.config == nil {
		return nil, fmt.Errorf("未设置配置信息")
	}
	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	if dsn == "" {
		dsn = c.config.Datasource.DSN
	}
	l := c.logger
	if l == nil {
		l = slog.Default()
	}
	hooks := c.hooks
	if c.config.Log.Frames {
		hooks = append([]hook.Hook{loghook.New(loghook.WithLogger(l))}, hooks...)
	}
	return tracking.NewConnector(d, dsn,
		tracking.WithLogger(l),
		tracking.WithStackOptions(c.config.StackOptions()),
		tracking.WithEnabled(c.config.Querystack.Enabled),
		tracking.WithHooks(hooks...))
}
