package tracking

import (
	"database/sql/driver"
	"log/slog"

	"github.com/meoying/querystack/internal/hook"
	"github.com/meoying/querystack/internal/session"
	"github.com/meoying/querystack/internal/stack"
)

type ConnectorOptions struct {
	l         *slog.Logger
	stackOpts stack.Options
	enabled   bool
	hooks     []hook.Hook
	registry  *session.Registry
}

type Option func(*ConnectorOptions)

func WithLogger(l *slog.Logger) Option {
	return func(opts *ConnectorOptions) {
		opts.l = l
	}
}

// WithStackOptions 每个会话的帧栈容量和文本长度上限
func WithStackOptions(stackOpts stack.Options) Option {
	return func(opts *ConnectorOptions) {
		opts.stackOpts = stackOpts
	}
}

// WithEnabled 新会话的开关默认值
func WithEnabled(enabled bool) Option {
	return func(opts *ConnectorOptions) {
		opts.enabled = enabled
	}
}

// WithHooks 额外的观察者，按顺序注册在追踪器之前
func WithHooks(hooks ...hook.Hook) Option {
	return func(opts *ConnectorOptions) {
		opts.hooks = append(opts.hooks, hooks...)
	}
}

func WithRegistry(r *session.Registry) Option {
	return func(opts *ConnectorOptions) {
		opts.registry = r
	}
}

func NewConnector(d driver.Driver, dsn string, opts ...Option) (*Connector, error) {
	return NewDriver(d, opts...).openConnector(dsn)
}
