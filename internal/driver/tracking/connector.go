package tracking

import (
	"context"
	"database/sql/driver"
	"io"
	"log/slog"

	"github.com/meoying/querystack/internal/hook"
	"github.com/meoying/querystack/internal/session"
	"github.com/meoying/querystack/internal/tracker"
)

var _ driver.Connector = &Connector{}
var _ io.Closer = &Connector{}

// terminal 宿主自己的处理逻辑，位于链条的末端
// 语句的 context 已经结束的时候，帧在开始阶段就失败
var terminal = hook.HandlerFuncs{
	BeginFunc: func(f *hook.Frame) error {
		if f.Ctx == nil {
			return nil
		}
		return f.Ctx.Err()
	},
}

// Connector 持有处理链条、事务事件总线和追踪器
// 同一个 Connector 打开的连接共享一条链，但是各自有独立的会话
type Connector struct {
	driver    *Driver
	connector driver.Connector
	dsn       string

	chain    *hook.Chain
	bus      *hook.Bus
	tracker  *tracker.Tracker
	registry *session.Registry

	opts   *ConnectorOptions
	logger *slog.Logger
}

func newConnector(d *Driver, connector driver.Connector, dsn string, opts *ConnectorOptions) (*Connector, error) {
	c := &Connector{
		driver:    d,
		connector: connector,
		dsn:       dsn,
		chain:     hook.NewChain(terminal),
		bus:       hook.NewBus(),
		tracker:   tracker.New(opts.registry),
		registry:  opts.registry,
		opts:      opts,
		logger:    opts.l,
	}
	for _, h := range opts.hooks {
		if err := c.chain.Register(h); err != nil {
			return nil, err
		}
	}
	if err := c.tracker.Install(c.chain, c.bus); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	var (
		conn driver.Conn
		err  error
	)
	if c.connector != nil {
		conn, err = c.connector.Connect(ctx)
	} else {
		conn, err = c.driver.driver.Open(c.dsn)
	}
	if err != nil {
		c.logger.Error("建立连接失败", "错误", err)
		return nil, err
	}
	s := session.New(c.opts.stackOpts,
		session.WithEnabled(c.opts.enabled),
		session.WithSecondary(session.IsSecondary(ctx)),
		session.WithLogger(c.logger))
	c.registry.Add(s)
	s.Logger().Debug("建立连接", "辅助会话", s.Secondary())
	return &connWrapper{conn: conn, sess: s, connector: c}, nil
}

func (c *Connector) Driver() driver.Driver {
	return c.driver
}

// Chain 处理链条，可以在运行期间注册或者注销其他观察者
func (c *Connector) Chain() *hook.Chain {
	return c.chain
}

func (c *Connector) Bus() *hook.Bus {
	return c.bus
}

func (c *Connector) Tracker() *tracker.Tracker {
	return c.tracker
}

func (c *Connector) Registry() *session.Registry {
	return c.registry
}

// Close 只关闭底层的连接器
// sql.DB 关闭的时候会调用这个方法，这时候还可能有连接在使用，
// 会话由各自的连接在 Close 的时候清理。
func (c *Connector) Close() error {
	if closer, ok := c.connector.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
