package tracking

import (
	"context"
	"database/sql/driver"
	"log/slog"

	"github.com/meoying/querystack/internal/session"
	"github.com/meoying/querystack/internal/stack"
)

var _ driver.Driver = &Driver{}
var _ driver.DriverContext = &Driver{}

// Driver 包装一个真实的驱动，通过它打开的每一个连接都是一个被追踪的会话
type Driver struct {
	driver driver.Driver
	opts   []Option
}

func NewDriver(d driver.Driver, opts ...Option) *Driver {
	return &Driver{
		driver: d,
		opts:   opts,
	}
}

func (d *Driver) Open(name string) (driver.Conn, error) {
	c, err := d.openConnector(name)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	return d.openConnector(name)
}

func (d *Driver) openConnector(name string) (*Connector, error) {
	options := &ConnectorOptions{
		stackOpts: stack.DefaultOptions(),
		enabled:   true,
	}
	for _, opt := range d.opts {
		opt(options)
	}
	if options.l == nil {
		options.l = slog.Default()
	}
	if options.registry == nil {
		options.registry = session.NewRegistry()
	}

	var connector driver.Connector
	// 常用的 SQLite3 驱动没有实现 DriverContext，只能每次用 Open 打开连接
	if dc, ok := d.driver.(driver.DriverContext); ok {
		var err error
		connector, err = dc.OpenConnector(name)
		if err != nil {
			options.l.Error("打开连接器失败", "错误", err)
			return nil, err
		}
	}
	return newConnector(d, connector, name, options)
}
